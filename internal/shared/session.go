package shared

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Hash fields of a stored session. Free-form values are kept under valuePrefix.
const (
	fieldUser       = "uid"
	fieldSignedInAt = "signed_in_at"
	valuePrefix     = "v:"
)

// SessionManager keeps server-side sessions in Redis hashes, addressed by a
// random id carried in a cookie. Every commit slides the expiry forward.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
	prefix     string
}

// Session is the per-request view of one stored session.
type Session struct {
	ID         string
	values     map[string]string
	userID     string
	signedInAt time.Time
	stale      string
	isNew      bool
	dirty      bool
	destroyed  bool
}

// NewSessionManager constructs a SessionManager. prefix namespaces the Redis keys.
func NewSessionManager(client *redis.Client, cookieName, prefix string, ttl time.Duration, secure bool) *SessionManager {
	if prefix == "" {
		prefix = "glowdesk"
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &SessionManager{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
		prefix:     prefix,
	}
}

// Load returns the session named by the request cookie. A missing cookie or an
// unknown id yields a fresh session; client-chosen ids are never adopted.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if errors.Is(err, http.ErrNoCookie) || (err == nil && cookie.Value == "") {
		return fresh(), nil
	}
	if err != nil {
		return nil, err
	}

	fields, err := sm.client.HGetAll(ctx, sm.key(cookie.Value)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return fresh(), nil
	}

	sess := &Session{ID: cookie.Value, values: make(map[string]string, len(fields))}
	for field, value := range fields {
		switch {
		case field == fieldUser:
			sess.userID = value
		case field == fieldSignedInAt:
			if unix, err := strconv.ParseInt(value, 10, 64); err == nil {
				sess.signedInAt = time.Unix(unix, 0).UTC()
			}
		case strings.HasPrefix(field, valuePrefix):
			sess.values[strings.TrimPrefix(field, valuePrefix)] = value
		}
	}
	// Authenticated sessions slide on every request, not only on writes.
	sess.dirty = sess.userID != ""
	return sess, nil
}

// Commit persists the session and writes the cookie. Destroyed sessions are
// removed and their cookie cleared.
func (sm *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	if sess == nil {
		return nil
	}

	if sess.destroyed {
		keys := []string{sm.key(sess.ID)}
		if sess.stale != "" {
			keys = append(keys, sm.key(sess.stale))
		}
		if err := sm.client.Del(ctx, keys...).Err(); err != nil {
			return err
		}
		http.SetCookie(w, sm.cookie("", -1))
		return nil
	}
	if !sess.dirty && !sess.isNew {
		return nil
	}

	key := sm.key(sess.ID)
	_, err := sm.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if sess.stale != "" {
			pipe.Del(ctx, sm.key(sess.stale))
		}
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, sess.fields())
		pipe.Expire(ctx, key, sm.ttl)
		return nil
	})
	if err != nil {
		return err
	}
	sess.stale = ""
	sess.dirty = false
	sess.isNew = false

	http.SetCookie(w, sm.cookie(sess.ID, int(sm.ttl/time.Second)))
	return nil
}

// Destroy marks the session for deletion on the next commit.
func (sm *SessionManager) Destroy(sess *Session) {
	if sess != nil {
		sess.destroyed = true
	}
}

// Renew moves sess to a new id; the old entry is dropped on commit. Sign-in
// calls it so a pre-auth id never becomes an authenticated one.
func (sm *SessionManager) Renew(_ context.Context, sess *Session) error {
	if sess == nil {
		return nil
	}
	if !sess.isNew && sess.stale == "" {
		sess.stale = sess.ID
	}
	sess.ID = uuid.NewString()
	sess.dirty = true
	return nil
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// CookieName returns the session cookie name.
func (sm *SessionManager) CookieName() string {
	return sm.cookieName
}

func (sm *SessionManager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     sm.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (sm *SessionManager) key(id string) string {
	return sm.prefix + ":session:" + id
}

// Set stores a key-value pair.
func (s *Session) Set(key, value string) {
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[key] = value
	s.dirty = true
}

// Get retrieves a value.
func (s *Session) Get(key string) string {
	return s.values[key]
}

// Delete removes a value.
func (s *Session) Delete(key string) {
	if _, ok := s.values[key]; ok {
		delete(s.values, key)
		s.dirty = true
	}
}

// SetUser binds the session to a user id; an empty id signs the session out.
func (s *Session) SetUser(id string) {
	s.userID = id
	if id == "" {
		s.signedInAt = time.Time{}
	} else {
		s.signedInAt = time.Now().UTC().Truncate(time.Second)
	}
	s.dirty = true
}

// User returns the signed-in user id, or "".
func (s *Session) User() string {
	return s.userID
}

// SignedInAt reports when SetUser last bound a user.
func (s *Session) SignedInAt() time.Time {
	return s.signedInAt
}

func (s *Session) fields() map[string]any {
	out := make(map[string]any, len(s.values)+2)
	// HSET needs at least one field; uid is always written.
	out[fieldUser] = s.userID
	if !s.signedInAt.IsZero() {
		out[fieldSignedInAt] = strconv.FormatInt(s.signedInAt.Unix(), 10)
	}
	for k, v := range s.values {
		out[valuePrefix+k] = v
	}
	return out
}

func fresh() *Session {
	return &Session{
		ID:     uuid.NewString(),
		values: make(map[string]string),
		isNew:  true,
		dirty:  true,
	}
}

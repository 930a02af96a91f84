package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestIdempotencyStore(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)
	store := NewIdempotencyStore(client, "test", time.Minute)

	require.NoError(t, store.CheckAndInsert(ctx, "abc", "purchases"))
	require.ErrorIs(t, store.CheckAndInsert(ctx, "abc", "purchases"), ErrIdempotencyConflict)
	require.NoError(t, store.CheckAndInsert(ctx, "abc", "other"))

	require.NoError(t, store.Delete(ctx, "abc", "purchases"))
	require.NoError(t, store.CheckAndInsert(ctx, "abc", "purchases"))

	mr.FastForward(2 * time.Minute)
	require.NoError(t, store.CheckAndInsert(ctx, "abc", "purchases"))

	require.Error(t, store.CheckAndInsert(ctx, "", "purchases"))
}

func TestSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	_, client := newRedis(t)
	sm := NewSessionManager(client, "sid", "test", time.Hour, false)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	sess.SetUser("user-1")
	sess.Set("k", "v")

	res := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, res, sess))
	cookies := res.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, sess.ID, cookies[0].Value)

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(cookies[0])
	loaded, err := sm.Load(ctx, next)
	require.NoError(t, err)
	require.Equal(t, "user-1", loaded.User())
	require.Equal(t, "v", loaded.Get("k"))

	sm.Destroy(loaded)
	res = httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, res, loaded))
	again, err := sm.Load(ctx, next)
	require.NoError(t, err)
	require.Empty(t, again.User())
	require.NotEqual(t, loaded.ID, again.ID)
}

func TestSessionRenew(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)
	sm := NewSessionManager(client, "sid", "test", time.Hour, false)

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), sess))
	oldID := sess.ID
	require.True(t, mr.Exists("test:session:"+oldID))

	require.NoError(t, sm.Renew(ctx, sess))
	require.NotEqual(t, oldID, sess.ID)
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), sess))
	require.False(t, mr.Exists("test:session:"+oldID))
	require.True(t, mr.Exists("test:session:"+sess.ID))
}

func TestSessionSlidingExpiry(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)
	sm := NewSessionManager(client, "sid", "test", time.Hour, false)

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetUser("user-1")
	res := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, res, sess))
	cookie := res.Result().Cookies()[0]
	require.Equal(t, 3600, cookie.MaxAge)

	mr.FastForward(50 * time.Minute)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	require.False(t, loaded.SignedInAt().IsZero())
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), loaded))
	require.Equal(t, time.Hour, mr.TTL("test:session:"+sess.ID))

	mr.FastForward(2 * time.Hour)
	expired, err := sm.Load(ctx, req)
	require.NoError(t, err)
	require.Empty(t, expired.User())
	require.NotEqual(t, sess.ID, expired.ID)
}

func TestCSRFVerifyRequest(t *testing.T) {
	ctx := context.Background()
	_, client := newRedis(t)
	sm := NewSessionManager(client, "sid", "test", time.Hour, false)
	csrf := NewCSRFManager("secret")

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	token, err := csrf.EnsureToken(ctx, sess)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req = req.WithContext(ContextWithSession(req.Context(), sess))
	require.ErrorIs(t, csrf.VerifyRequest(req), ErrCSRFTokenMissing)

	req.Header.Set(CSRFHeader, "wrong")
	require.ErrorIs(t, csrf.VerifyRequest(req), ErrCSRFTokenMismatch)

	req.Header.Set(CSRFHeader, token)
	require.NoError(t, csrf.VerifyRequest(req))

	rotated := csrf.Rotate(sess)
	require.NotEqual(t, token, rotated)

	other, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	other.Set(CSRFSessionKey, rotated)
	require.ErrorIs(t, csrf.VerifyToken(ctx, other, rotated), ErrCSRFTokenMismatch)
}

func TestParseDateRange(t *testing.T) {
	from, to, ok, err := ParseDateRange("", "")
	require.NoError(t, err)
	require.False(t, ok)
	require.True(t, from.IsZero() && to.IsZero())

	from, to, ok, err = ParseDateRange("2024-03-01", "2024-03-31")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), from)
	require.Equal(t, time.Date(2024, 3, 31, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC), to)

	_, to, _, err = ParseDateRange("2024-03-01", "2024-03-02T10:00:00+02:00")
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC), to)

	for _, tc := range [][2]string{{"2024-03-01", ""}, {"yesterday", "2024-03-01"}, {"2024-03-02", "2024-03-01"}} {
		_, _, _, err := ParseDateRange(tc[0], tc[1])
		require.ErrorIs(t, err, ErrBadRequest, tc)
	}
}

func TestMonthBounds(t *testing.T) {
	start, end := MonthBounds(time.Date(2024, 2, 14, 12, 0, 0, 0, time.UTC))
	require.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), start)
	require.Equal(t, time.Date(2024, 2, 29, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC), end)
}

func TestTestModeFlag(t *testing.T) {
	t.Cleanup(RefreshTestMode)
	for value, want := range map[string]bool{"1": true, "TRUE": true, "0": false, "": false} {
		t.Setenv(TestModeEnv, value)
		RefreshTestMode()
		require.Equal(t, want, InTestMode(), "value %q", value)
	}
}

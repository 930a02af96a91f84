package auth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/glowdesk/glowdesk/internal/docstore"
	"github.com/glowdesk/glowdesk/internal/shared"
	"github.com/glowdesk/glowdesk/internal/validation"
	_ "github.com/glowdesk/glowdesk/testing"
)

type mail struct {
	to, subject, body string
}

type fakeMailQueue struct {
	sent []mail
	err  error
}

func (q *fakeMailQueue) EnqueueMail(_ context.Context, to, subject, body string) error {
	if q.err != nil {
		return q.err
	}
	q.sent = append(q.sent, mail{to: to, subject: subject, body: body})
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeMailQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	queue := &fakeMailQueue{}
	svc := NewService(NewRepository(docstore.NewMemoryStore()), Options{
		Tokens:   NewResetTokens(client, "test", 15*time.Minute),
		Mail:     queue,
		ResetURL: "https://glowdesk.test/reset",
	})
	return svc, queue, mr
}

func tokenFrom(t *testing.T, body string) string {
	t.Helper()
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "https://") {
			u, err := url.Parse(line)
			require.NoError(t, err)
			return u.Query().Get("token")
		}
	}
	t.Fatalf("no reset link in %q", body)
	return ""
}

func TestCreateUserAndSignIn(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, " Owner@Glowdesk.test ", "s3cret-pass", "Owner")
	require.NoError(t, err)
	require.Equal(t, "owner@glowdesk.test", created.Email)
	require.NotEqual(t, "s3cret-pass", created.PasswordHash)

	user, err := svc.SignIn(ctx, "OWNER@glowdesk.test", "s3cret-pass")
	require.NoError(t, err)
	require.Equal(t, created.ID, user.ID)

	_, err = svc.SignIn(ctx, "owner@glowdesk.test", "wrong-pass")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
	_, err = svc.SignIn(ctx, "nobody@glowdesk.test", "s3cret-pass")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestCreateUserRules(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "a@glowdesk.test", "short", "")
	require.ErrorIs(t, err, shared.ErrBadRequest)

	_, err = svc.CreateUser(ctx, "not-an-email", "long-enough", "")
	require.ErrorIs(t, err, validation.ErrInvalid)

	_, err = svc.CreateUser(ctx, "a@glowdesk.test", "long-enough", "")
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, "A@glowdesk.test", "long-enough", "")
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestInactiveUserCannotSignIn(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	user, err := svc.CreateUser(ctx, "staff@glowdesk.test", "long-enough", "")
	require.NoError(t, err)
	user.IsActive = false
	_, err = svc.repo.Update(ctx, user.ID, *user)
	require.NoError(t, err)

	_, err = svc.SignIn(ctx, "staff@glowdesk.test", "long-enough")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestSubscribe(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateUser(ctx, "owner@glowdesk.test", "long-enough", "Owner")
	require.NoError(t, err)

	var seen []StateChange
	unsubscribe := svc.Subscribe(func(c StateChange) { seen = append(seen, c) })
	require.Len(t, seen, 1)
	require.Nil(t, seen[0].User)

	user, err := svc.SignIn(ctx, "owner@glowdesk.test", "long-enough")
	require.NoError(t, err)
	require.Len(t, seen, 2)
	require.Equal(t, "Owner", seen[1].User.DisplayName)

	svc.SignOut(ctx, user)
	require.Len(t, seen, 3)
	require.Nil(t, seen[2].User)

	unsubscribe()
	unsubscribe()
	_, err = svc.SignIn(ctx, "owner@glowdesk.test", "long-enough")
	require.NoError(t, err)
	require.Len(t, seen, 3)

	var late []StateChange
	svc.Subscribe(func(c StateChange) { late = append(late, c) })
	require.Equal(t, "owner@glowdesk.test", late[0].User.Email)
}

func TestPasswordResetFlow(t *testing.T) {
	svc, queue, mr := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateUser(ctx, "owner@glowdesk.test", "old-password", "")
	require.NoError(t, err)

	require.NoError(t, svc.RequestPasswordReset(ctx, "owner@glowdesk.test"))
	require.Len(t, queue.sent, 1)
	require.Equal(t, "owner@glowdesk.test", queue.sent[0].to)
	token := tokenFrom(t, queue.sent[0].body)
	require.True(t, mr.Exists("test:auth:reset:"+token))
	require.Equal(t, 15*time.Minute, mr.TTL("test:auth:reset:"+token))

	require.ErrorIs(t, svc.ConfirmPasswordReset(ctx, token, "tiny"), shared.ErrBadRequest)
	require.NoError(t, svc.ConfirmPasswordReset(ctx, token, "new-password"))
	require.ErrorIs(t, svc.ConfirmPasswordReset(ctx, token, "newer-password"), ErrResetTokenInvalid)

	_, err = svc.SignIn(ctx, "owner@glowdesk.test", "old-password")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
	_, err = svc.SignIn(ctx, "owner@glowdesk.test", "new-password")
	require.NoError(t, err)
}

func TestPasswordResetExpiry(t *testing.T) {
	svc, queue, mr := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateUser(ctx, "owner@glowdesk.test", "old-password", "")
	require.NoError(t, err)
	require.NoError(t, svc.RequestPasswordReset(ctx, "owner@glowdesk.test"))
	token := tokenFrom(t, queue.sent[0].body)

	mr.FastForward(16 * time.Minute)
	require.ErrorIs(t, svc.ConfirmPasswordReset(ctx, token, "new-password"), ErrResetTokenInvalid)
}

func TestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	svc, queue, _ := newTestService(t)
	require.NoError(t, svc.RequestPasswordReset(context.Background(), "ghost@glowdesk.test"))
	require.Empty(t, queue.sent)
}

func TestPasswordResetQueueFailure(t *testing.T) {
	svc, queue, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateUser(ctx, "owner@glowdesk.test", "old-password", "")
	require.NoError(t, err)
	queue.err = errors.New("redis down")
	require.Error(t, svc.RequestPasswordReset(ctx, "owner@glowdesk.test"))
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/glowdesk/glowdesk/internal/shared"
)

// ErrResetTokenInvalid is returned for unknown, used or expired reset tokens.
var ErrResetTokenInvalid = fmt.Errorf("%w: reset token invalid or expired", shared.ErrBadRequest)

// ResetTokens stores one-time password reset tokens in Redis.
type ResetTokens struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewResetTokens constructs the token store.
func NewResetTokens(client *redis.Client, prefix string, ttl time.Duration) *ResetTokens {
	if prefix == "" {
		prefix = "glowdesk"
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ResetTokens{client: client, prefix: prefix, ttl: ttl}
}

// Issue creates a token for userID.
func (t *ResetTokens) Issue(ctx context.Context, userID string) (string, error) {
	token := uuid.NewString()
	if err := t.client.Set(ctx, t.key(token), userID, t.ttl).Err(); err != nil {
		return "", fmt.Errorf("auth: store reset token: %w", err)
	}
	return token, nil
}

// Consume returns the user id bound to token and deletes it.
func (t *ResetTokens) Consume(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrResetTokenInvalid
	}
	userID, err := t.client.GetDel(ctx, t.key(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrResetTokenInvalid
	}
	if err != nil {
		return "", fmt.Errorf("auth: consume reset token: %w", err)
	}
	return userID, nil
}

// TTL reports how long issued tokens stay valid.
func (t *ResetTokens) TTL() time.Duration {
	return t.ttl
}

func (t *ResetTokens) key(token string) string {
	return t.prefix + ":auth:reset:" + token
}

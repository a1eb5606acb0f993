package user

import (
	"context"
	"errors"
	"time"
)

// ErrTokenNotFound is returned when a key is absent or expired.
var ErrTokenNotFound = errors.New("token not found or expired")

// TokenStore keeps short-lived secrets: OTP hashes, reset token hashes and active refresh tokens.
type TokenStore interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)

	// Incr bumps a counter, starting its TTL on first use.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Delete(ctx context.Context, keys ...string) error
}

package cache

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get for a missing or expired key.
var ErrNotFound = errors.New("cache key not found")

type SetOptions struct {
	// ExpSeconds sets the key expiry. Zero keeps the key without expiry.
	ExpSeconds int
	// UseOldTTL preserves the remaining expiry of an existing key.
	UseOldTTL bool
}

// Store is the key-value backend behind the parsed-articles cache.
type Store interface {
	Exists(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, opts SetOptions) error
	Del(ctx context.Context, key string) error
	// TTL returns the remaining seconds, -1 for a key without expiry and -2 when missing.
	TTL(ctx context.Context, key string) (int, error)
	Expire(ctx context.Context, key string, seconds int) error
}

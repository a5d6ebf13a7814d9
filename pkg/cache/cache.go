package cache

import (
	"context"
	"time"
)

// Cache is a small key/value store with TTLs.
// Claim sets key only when absent and reports whether this caller won it.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
	Close() error
}

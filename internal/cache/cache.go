package cache

import (
	"context"
	"time"
)

// Cache is the key/value layer the record facade reads through. Get reports
// (false, nil) on a miss so callers can distinguish absence from transport
// failure.
type Cache interface {
	Get(ctx context.Context, key string, out any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	Close() error
}

package ports

import (
	"context"
	"time"
)

// Cache is a key/value store used to memoize each site's parameter bag
// (see cache.CachedSiteParameters). Redis
// is the primary implementation; LocalCache is an in-memory fallback
// with the same contract.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping() error
	Close() error
}

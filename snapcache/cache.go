// Package snapcache defines the shared cache for finalized render snapshots,
// so identical requests hitting any server instance can skip a full SSR pass
// until the cached copy ages out.
package snapcache

import (
	"context"
	"time"
)

// Cache stores encoded snapshots under digest keys with a bounded lifetime.
type Cache interface {
	// Get returns the cached snapshot bytes for key, if still live.
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	// Put stores data under key for at most ttl.
	Put(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

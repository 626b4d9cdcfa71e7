// Package cache provides a small byte cache with per-entry TTL, used to
// keep repeated weather lookups off the upstream service. Two backends
// exist: an in-process map and Redis for deployments with several
// processes sharing one upstream quota.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque bytes under string keys with a per-entry TTL.
type Cache interface {
	// Get returns the value and whether the key was present and fresh.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores the value. A non-positive ttl means the entry never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

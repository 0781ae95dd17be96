// Package cachestore caches small JSON blobs with a fixed TTL, fronting the
// durable store so the per-message hot path does not hit the database. The
// engine keeps filter settings and user roles here for about a minute.
package cachestore

import (
	"context"
)

// CacheStore returns "" for a missing or expired key; callers treat that as
// a miss and refill from the authoritative source.
type CacheStore interface {
	Get(ctx context.Context, name, key string) (string, error)
	Set(ctx context.Context, name, key string, val string) error
	Purge(ctx context.Context, name, key string) error
}

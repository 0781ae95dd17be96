package cachestore

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemCacheStore is a bounded in-process cache. The expirable LRU handles
// both the TTL and eviction, and is safe for concurrent use.
type MemCacheStore struct {
	data *expirable.LRU[string, string]
}

func NewMemCacheStore(capacity int, ttl time.Duration) *MemCacheStore {
	return &MemCacheStore{
		data: expirable.NewLRU[string, string](capacity, nil, ttl),
	}
}

var _ CacheStore = (*MemCacheStore)(nil)

func (s *MemCacheStore) Get(ctx context.Context, name, key string) (string, error) {
	v, ok := s.data.Get(name + "/" + key)
	if !ok {
		return "", nil
	}
	return v, nil
}

func (s *MemCacheStore) Set(ctx context.Context, name, key string, val string) error {
	s.data.Add(name+"/"+key, val)
	return nil
}

func (s *MemCacheStore) Purge(ctx context.Context, name, key string) error {
	s.data.Remove(name + "/" + key)
	return nil
}

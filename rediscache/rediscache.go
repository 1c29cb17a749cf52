// Package rediscache implements rerank.Cache against Redis, the
// candidate backing for C14's result cache harvested from the
// Tributary agent-builder example's go-redis/miniredis pairing — the
// only repo in the pack that wires a cache/session store this way. The
// default in-process LRU+TTL cache in rerank/rerank.go works for a
// single instance; this backend lets the cache survive restarts and be
// shared across multiple ragcore processes.
package rediscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kesslerio/ragcore/model"
	"github.com/kesslerio/ragcore/rerank"
)

// Cache stores reranked result sets as JSON-encoded Redis string
// values with a fixed TTL, implementing rerank.Cache.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New returns a Cache connected to a Redis server at addr.
func New(addr string, ttl time.Duration) *Cache {
	return NewWithClient(redis.NewClient(&redis.Options{Addr: addr}), ttl)
}

// NewWithClient wraps an already-configured *redis.Client, e.g. one
// pointed at a miniredis instance in tests.
func NewWithClient(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Get returns the cached result set for key, if present and unexpired.
// Redis's own TTL handles expiry; a miss (including a connection error)
// is reported the same way a cold cache entry would be.
func (c *Cache) Get(key string) ([]model.ScoredChunk, bool) {
	data, err := c.client.Get(context.Background(), key).Bytes()
	if err != nil {
		return nil, false
	}
	var results []model.ScoredChunk
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, false
	}
	return results, true
}

// Put stores results under key with the configured TTL. Marshal/Set
// failures are swallowed: a cache write must never fail the rerank
// call it's memoizing.
func (c *Cache) Put(key string, results []model.ScoredChunk) {
	data, err := json.Marshal(results)
	if err != nil {
		return
	}
	c.client.Set(context.Background(), key, data, c.ttl)
}

// Metrics is always zero: Redis tracks its own hit/miss/eviction
// counters externally (INFO stats), so there is nothing meaningful to
// accumulate client-side here.
func (c *Cache) Metrics() rerank.Metrics {
	return rerank.Metrics{}
}

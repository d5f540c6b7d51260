package main

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
)

// positionKeyPrefix namespaces cached positions in the shared store.
const positionKeyPrefix = "fen:"

// PositionCache stores the latest serialized position per room, keyed as
// fen:<roomID>. Writes are unconditional overwrites, last writer wins.
// Get reports absence as (_, false, nil) rather than an error; a fresh room
// legitimately has nothing cached.
//
// Implementations may be backed by memory (this package) or Redis.
type PositionCache interface {
	Put(ctx context.Context, roomID, position string) error
	Get(ctx context.Context, roomID string) (string, bool, error)
}

// RedisCache keeps positions in a shared Redis instance so they survive
// server-process restarts.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(url string) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	return &RedisCache{client: redis.NewClient(opts)}, nil
}

func (c *RedisCache) Put(ctx context.Context, roomID, position string) error {
	return c.client.Set(ctx, positionKeyPrefix+roomID, position, 0).Err()
}

func (c *RedisCache) Get(ctx context.Context, roomID string) (string, bool, error) {
	position, err := c.client.Get(ctx, positionKeyPrefix+roomID).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	return position, true, nil
}

// MemoryCache is the in-process fallback used when no redis URL is
// configured. Positions do not survive the process.
type MemoryCache struct {
	mu        sync.RWMutex
	positions map[string]string
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{positions: make(map[string]string)}
}

func (c *MemoryCache) Put(_ context.Context, roomID, position string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.positions[positionKeyPrefix+roomID] = position
	return nil
}

func (c *MemoryCache) Get(_ context.Context, roomID string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	position, ok := c.positions[positionKeyPrefix+roomID]
	return position, ok, nil
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"RankRadar/internal/model"
)

const (
	marketContextKey = "market_context"
	responsePrefix   = "api:"
	scanCount        = 100
)

// Cache is the subset of the Redis cache the API and pipeline use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisCache stores the batch market context and API responses in Redis.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(addr, password string, db int, prefix string) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return NewWithClient(rdb, prefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (r *RedisCache) key(k string) string { return r.prefix + k }

// Get returns the cached value; a miss is not an error.
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return val, true, nil
}

// Set stores value with a TTL.
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// MarketContext returns the cached market context.
func (r *RedisCache) MarketContext(ctx context.Context) (*model.MarketContext, bool, error) {
	raw, ok, err := r.Get(ctx, marketContextKey)
	if err != nil || !ok {
		return nil, false, err
	}
	var mc model.MarketContext
	if err := json.Unmarshal(raw, &mc); err != nil {
		return nil, false, fmt.Errorf("decode market context: %w", err)
	}
	return &mc, true, nil
}

// SetMarketContext caches the market context for ttl.
func (r *RedisCache) SetMarketContext(ctx context.Context, mc *model.MarketContext, ttl time.Duration) error {
	raw, err := json.Marshal(mc)
	if err != nil {
		return fmt.Errorf("encode market context: %w", err)
	}
	return r.Set(ctx, marketContextKey, raw, ttl)
}

// ResponseKey namespaces an API response key.
func ResponseKey(path string) string { return responsePrefix + path }

// InvalidateResponses drops every cached API response. Called after a batch writes new scores.
// Keys are walked with SCAN so a large keyspace never blocks the server.
func (r *RedisCache) InvalidateResponses(ctx context.Context) (int, error) {
	var (
		cursor  uint64
		deleted int64
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.key(responsePrefix+"*"), scanCount).Result()
		if err != nil {
			return int(deleted), fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			n, err := r.client.Del(ctx, keys...).Result()
			if err != nil {
				return int(deleted), fmt.Errorf("redis del: %w", err)
			}
			deleted += n
		}
		if next == 0 {
			return int(deleted), nil
		}
		cursor = next
	}
}

// Ping checks the connection.
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

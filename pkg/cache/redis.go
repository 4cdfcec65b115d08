package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a SharedStore backed by Redis.
type RedisStore struct {
	redis  *redis.Client
	prefix string
}

// NewRedisStore creates a shared store over an existing Redis client.
// The store does not own the client.
func NewRedisStore(redisClient *redis.Client, prefix string) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

// Get retrieves an entry by key.
// Returns ErrCacheMiss if the key doesn't exist.
func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, error) {
	data, err := s.redis.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	entry, err := decodeEntry(data)
	if err != nil {
		CacheErrors.WithLabelValues("decode").Inc()
		return nil, err
	}
	return entry, nil
}

// Set stores an entry; Redis removes it once ttl elapses.
func (s *RedisStore) Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	data, err := encodeEntry(entry)
	if err != nil {
		CacheErrors.WithLabelValues("encode").Inc()
		return err
	}

	if err := s.redis.Set(ctx, s.prefix+key, data, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

var _ SharedStore = (*RedisStore)(nil)

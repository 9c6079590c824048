package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKV implements KVStore on Redis. Every key is namespaced with prefix.
type RedisKV struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisKV wraps an existing client.
func NewRedisKV(client redis.UniversalClient, prefix string) *RedisKV {
	if prefix == "" {
		prefix = "bookstore-auth"
	}
	return &RedisKV{client: client, prefix: prefix}
}

func (r *RedisKV) key(k string) string {
	return r.prefix + ":" + k
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, r.key(key)).Result()
	if err != nil {
		return "", mapRedisErr(err)
	}
	return val, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return mapRedisErr(err)
	}
	return nil
}

func (r *RedisKV) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return mapRedisErr(err)
	}
	return nil
}

func (r *RedisKV) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(key)).Result()
	if err != nil {
		return false, mapRedisErr(err)
	}
	return n > 0, nil
}

func (r *RedisKV) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := r.client.PTTL(ctx, r.key(key)).Result()
	if err != nil {
		return 0, mapRedisErr(err)
	}
	// go-redis reports -2 (missing) and -1 (no expiry) as raw durations.
	switch ttl {
	case -2:
		return 0, ErrKeyNotFound
	case -1:
		return 0, nil
	}
	return ttl, nil
}

func (r *RedisKV) Take(ctx context.Context, key string) (string, error) {
	val, err := r.client.GetDel(ctx, r.key(key)).Result()
	if err != nil {
		return "", mapRedisErr(err)
	}
	return val, nil
}

func mapRedisErr(err error) error {
	if errors.Is(err, redis.Nil) {
		return ErrKeyNotFound
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

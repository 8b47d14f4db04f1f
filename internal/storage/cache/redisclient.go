package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by Load when nothing is cached for the key.
var ErrCacheMiss = errors.New("cache miss")

// presenceMember is stored alongside the registration IDs so that a user with
// no devices is cached as an empty set instead of a missing key.
const presenceMember = ""

// RedisClient stores each user's registration IDs as a Redis set.
type RedisClient struct {
	rdb redis.UniversalClient
}

// NewRedisClient connects and pings, failing fast on a bad address.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisClient{rdb: rdb}, nil
}

func (c *RedisClient) Load(ctx context.Context, key string) ([]string, error) {
	members, err := c.rdb.SMembers(ctx, key).Result()
	if errors.Is(err, redis.Nil) || (err == nil && len(members) == 0) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}

	tokens := make([]string, 0, len(members))
	for _, m := range members {
		if m != presenceMember {
			tokens = append(tokens, m)
		}
	}
	return tokens, nil
}

// Store replaces the cached set for key.
func (c *RedisClient) Store(ctx context.Context, key string, tokens []string, ttl time.Duration) error {
	members := make([]any, 0, len(tokens)+1)
	members = append(members, presenceMember)
	for _, t := range tokens {
		members = append(members, t)
	}

	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.SAdd(ctx, key, members...)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	return err
}

func (c *RedisClient) Invalidate(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

func (c *RedisClient) Close() error {
	return c.rdb.Close()
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eventmarket/internal/config"

	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "eventmarket:rate_limit:"

var errNilRedis = errors.New("redis client is nil")

// NewRedisClient builds a client from the redis config section.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

// RedisLimitStore keeps fixed-window counters in Redis so every API replica
// shares one budget per key.
type RedisLimitStore struct {
	client *redis.Client
}

func NewRedisLimitStore(client *redis.Client) *RedisLimitStore {
	return &RedisLimitStore{client: client}
}

// CheckRateLimit counts one hit against key. The counter and its expiry are
// set in one MULTI block, so a crash between them cannot leave a key that
// never expires.
func (r *RedisLimitStore) CheckRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, errNilRedis
	}
	redisKey := rateLimitPrefix + key

	var hits *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		hits = pipe.Incr(ctx, redisKey)
		pipe.ExpireNX(ctx, redisKey, window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", key, err)
	}
	return hits.Val() <= limit, nil
}

func (r *RedisLimitStore) Ping(ctx context.Context) error {
	return Ping(ctx, r.client)
}

// Ping checks the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if client == nil {
		return errNilRedis
	}
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes client when it is set.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}

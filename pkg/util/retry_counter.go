package util

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RetryCounter counts delivery attempts in redis; it satisfies mq.RetryTracker.
type RetryCounter struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRetryCounter(rdb *redis.Client, ttl time.Duration) *RetryCounter {
	return &RetryCounter{rdb: rdb, ttl: ttl}
}

// Increment increments the retry count for a given key and returns the new count
func (r *RetryCounter) Increment(ctx context.Context, key string) (int, error) {
	key = FormatRetryKey(key)
	pipe := r.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return int(incr.Val()), nil
}

// Get returns the current retry count
func (r *RetryCounter) Get(ctx context.Context, key string) (int, error) {
	count, err := r.rdb.Get(ctx, FormatRetryKey(key)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return count, err
}

// Reset resets the retry count
func (r *RetryCounter) Reset(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, FormatRetryKey(key)).Err()
}

// FormatRetryKey formats a retry key
func FormatRetryKey(key string) string {
	return "retry:" + key
}

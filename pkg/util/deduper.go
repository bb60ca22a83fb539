package util

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Deduper struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewDeduper(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Deduper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduper{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

// DedupKey formats the redis key for a handler + event key.
func DedupKey(handler, eventKey string) string {
	return "dedup:" + handler + ":" + eventKey
}

// AcquireOnce tries to acquire a dedup lock for a given handler + event key.
// returns true if this is the FIRST time processing
// returns false if it's a duplicate
func (d *Deduper) AcquireOnce(ctx context.Context, handler, eventKey string) bool {
	key := DedupKey(handler, eventKey)

	ok, err := d.rdb.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		// redis unavailable: process anyway
		d.logger.Warn("Redis dedup check failed, allowing processing",
			zap.String("handler", handler),
			zap.String("event_key", eventKey),
			zap.Error(err),
		)
		return true
	}

	if !ok {
		d.logger.Info("Skipped duplicated event",
			zap.String("handler", handler),
			zap.String("dedup_key", key),
		)
	}
	return ok
}

// Release drops the lock so a failed attempt can be processed again on redelivery.
func (d *Deduper) Release(ctx context.Context, handler, eventKey string) {
	if err := d.rdb.Del(ctx, DedupKey(handler, eventKey)).Err(); err != nil {
		d.logger.Warn("Failed to release dedup key",
			zap.String("handler", handler),
			zap.String("event_key", eventKey),
			zap.Error(err),
		)
	}
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ideaflow/internal/model"
)

const overviewKey = "ideaflow:dashboard:overview"

// DashboardCache keeps the analytics overview in redis. Redis failures degrade
// to cache misses.
type DashboardCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewDashboardCache(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *DashboardCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &DashboardCache{rdb: rdb, ttl: ttl, logger: logger}
}

func (c *DashboardCache) GetOverview(ctx context.Context) (*model.DashboardOverview, bool) {
	raw, err := c.rdb.Get(ctx, overviewKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Dashboard cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var o model.DashboardOverview
	if err := json.Unmarshal(raw, &o); err != nil {
		c.logger.Warn("Dropping undecodable dashboard cache entry", zap.Error(err))
		return nil, false
	}
	return &o, true
}

func (c *DashboardCache) SetOverview(ctx context.Context, o *model.DashboardOverview) {
	raw, err := json.Marshal(o)
	if err != nil {
		c.logger.Warn("Failed to encode dashboard overview", zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, overviewKey, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("Dashboard cache write failed", zap.Error(err))
	}
}

func (c *DashboardCache) Invalidate(ctx context.Context) error {
	return c.rdb.Del(ctx, overviewKey).Err()
}

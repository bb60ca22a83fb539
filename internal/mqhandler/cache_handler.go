package mqhandler

import (
	"context"

	"go.uber.org/zap"

	mqcontracts "ideaflow/contracts/mq"
	"ideaflow/pkg/mq"
)

type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// CacheRoutingKeys are the events that change dashboard numbers.
var CacheRoutingKeys = []string{
	mqcontracts.RoutingIdeaSubmitted,
	mqcontracts.RoutingEvaluatorAssigned,
	mqcontracts.RoutingEvaluationSubmitted,
	mqcontracts.RoutingIdeaEvaluated,
	mqcontracts.RoutingIdeaDecided,
	mqcontracts.RoutingIdeaImplemented,
}

// CacheHandler drops the cached dashboard overview. It needs no dedup: deleting
// twice is the same as deleting once.
type CacheHandler struct {
	cache  CacheInvalidator
	logger *zap.Logger
}

func NewCacheHandler(cache CacheInvalidator, logger *zap.Logger) *CacheHandler {
	return &CacheHandler{cache: cache, logger: logger}
}

func (h *CacheHandler) Handle(ctx context.Context, d mq.Delivery) error {
	if err := h.cache.Invalidate(ctx); err != nil {
		h.logger.Warn("Failed to invalidate dashboard cache",
			zap.String("routing_key", d.RoutingKey),
			zap.Error(err),
		)
		return err
	}
	h.logger.Debug("Dashboard cache invalidated", zap.String("routing_key", d.RoutingKey))
	return nil
}

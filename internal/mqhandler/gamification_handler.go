package mqhandler

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	mqcontracts "ideaflow/contracts/mq"
	"ideaflow/internal/model"
	"ideaflow/pkg/logger"
	"ideaflow/pkg/mq"
)

const gamificationHandlerName = "gamification"

type PointsAwarder interface {
	Award(ctx context.Context, userID, ideaID uuid.UUID, reason string) error
}

// GamificationRoutingKeys are the events that can earn points.
var GamificationRoutingKeys = []string{
	mqcontracts.RoutingIdeaSubmitted,
	mqcontracts.RoutingIdeaDecided,
	mqcontracts.RoutingIdeaImplemented,
	mqcontracts.RoutingEvaluationSubmitted,
}

type GamificationHandler struct {
	awarder PointsAwarder
	deduper Deduper
	logger  *zap.Logger
}

func NewGamificationHandler(awarder PointsAwarder, deduper Deduper, logger *zap.Logger) *GamificationHandler {
	return &GamificationHandler{
		awarder: awarder,
		deduper: deduper,
		logger:  logger,
	}
}

type award struct {
	userID uuid.UUID
	ideaID uuid.UUID
	reason string
}

func (h *GamificationHandler) Handle(ctx context.Context, d mq.Delivery) error {
	a, ok, err := h.awardFor(d)
	if err != nil {
		logger.WithTrace(ctx, h.logger).Error("Failed to decode gamification event",
			zap.String("routing_key", d.RoutingKey),
			zap.Error(err),
		)
		return err
	}
	if !ok {
		return nil
	}
	return once(ctx, h.deduper, gamificationHandlerName, d, func() error {
		return h.awarder.Award(ctx, a.userID, a.ideaID, a.reason)
	})
}

func (h *GamificationHandler) awardFor(d mq.Delivery) (award, bool, error) {
	switch d.RoutingKey {
	case mqcontracts.RoutingIdeaSubmitted:
		var p mqcontracts.IdeaSubmittedPayload
		if err := decode(d, &p); err != nil {
			return award{}, false, err
		}
		return award{p.SubmitterID, p.IdeaID, model.PointsReasonSubmitted}, true, nil

	case mqcontracts.RoutingIdeaDecided:
		var p mqcontracts.IdeaDecidedPayload
		if err := decode(d, &p); err != nil {
			return award{}, false, err
		}
		if model.IdeaStatus(p.ToStatus) != model.StatusApproved {
			return award{}, false, nil
		}
		return award{p.SubmitterID, p.IdeaID, model.PointsReasonApproved}, true, nil

	case mqcontracts.RoutingIdeaImplemented:
		var p mqcontracts.IdeaImplementedPayload
		if err := decode(d, &p); err != nil {
			return award{}, false, err
		}
		return award{p.SubmitterID, p.IdeaID, model.PointsReasonImplemented}, true, nil

	case mqcontracts.RoutingEvaluationSubmitted:
		var p mqcontracts.EvaluationSubmittedPayload
		if err := decode(d, &p); err != nil {
			return award{}, false, err
		}
		return award{p.EvaluatorID, p.IdeaID, model.EvaluationPointsReason(model.RubricCategory(p.EvaluationType))}, true, nil
	}
	return award{}, false, nil
}

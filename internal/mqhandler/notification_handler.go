package mqhandler

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	mqcontracts "ideaflow/contracts/mq"
	"ideaflow/internal/notify"
	"ideaflow/pkg/logger"
	"ideaflow/pkg/mq"
)

const notificationHandlerName = "notification"

type Notifier interface {
	Notify(ctx context.Context, n notify.Notice) error
}

// NotificationHandler tells submitters about evaluation results and decisions
// and evaluators about new or overdue assignments.
type NotificationHandler struct {
	notifier Notifier
	deduper  Deduper
	logger   *zap.Logger
}

func NewNotificationHandler(notifier Notifier, deduper Deduper, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		notifier: notifier,
		deduper:  deduper,
		logger:   logger,
	}
}

func (h *NotificationHandler) Handle(ctx context.Context, d mq.Delivery) error {
	notice, ok, err := h.render(d)
	if err != nil {
		logger.WithTrace(ctx, h.logger).Error("Failed to decode notification event",
			zap.String("routing_key", d.RoutingKey),
			zap.Error(err),
		)
		return err
	}
	if !ok {
		h.logger.Debug("No notification for routing key", zap.String("routing_key", d.RoutingKey))
		return nil
	}
	notice.EventKey = d.RoutingKey + ":" + eventKey(d)

	return once(ctx, h.deduper, notificationHandlerName, d, func() error {
		logger.WithTrace(ctx, h.logger).Info("Handling notification event",
			zap.String("routing_key", d.RoutingKey),
			zap.String("user_id", notice.UserID.String()),
		)
		return h.notifier.Notify(ctx, notice)
	})
}

// render builds the notice for d. ok is false for events nobody is notified about.
func (h *NotificationHandler) render(d mq.Delivery) (notify.Notice, bool, error) {
	switch d.RoutingKey {
	case mqcontracts.RoutingIdeaDecided:
		var p mqcontracts.IdeaDecidedPayload
		if err := decode(d, &p); err != nil {
			return notify.Notice{}, false, err
		}
		body := fmt.Sprintf("Your idea %q moved from %s to %s.", p.Title, p.FromStatus, p.ToStatus)
		if fb := strings.TrimSpace(p.Feedback); fb != "" {
			body += "\n\nFeedback: " + fb
		}
		return notify.Notice{
			UserID:  p.SubmitterID,
			IdeaID:  &p.IdeaID,
			Subject: fmt.Sprintf("Decision on %q: %s", p.Title, p.ToStatus),
			Body:    body,
		}, true, nil

	case mqcontracts.RoutingIdeaEvaluated:
		var p mqcontracts.IdeaEvaluatedPayload
		if err := decode(d, &p); err != nil {
			return notify.Notice{}, false, err
		}
		return notify.Notice{
			UserID:  p.SubmitterID,
			IdeaID:  &p.IdeaID,
			Subject: fmt.Sprintf("%q has been fully evaluated", p.Title),
			Body:    fmt.Sprintf("All evaluations for %q are in. Average score: %.1f.", p.Title, p.AverageScore),
		}, true, nil

	case mqcontracts.RoutingIdeaImplemented:
		var p mqcontracts.IdeaImplementedPayload
		if err := decode(d, &p); err != nil {
			return notify.Notice{}, false, err
		}
		return notify.Notice{
			UserID:  p.SubmitterID,
			IdeaID:  &p.IdeaID,
			Subject: fmt.Sprintf("%q has been implemented", p.Title),
			Body:    fmt.Sprintf("Your idea %q is now marked as implemented.", p.Title),
		}, true, nil

	case mqcontracts.RoutingEvaluatorAssigned:
		var p mqcontracts.EvaluatorAssignedPayload
		if err := decode(d, &p); err != nil {
			return notify.Notice{}, false, err
		}
		return notify.Notice{
			UserID:  p.EvaluatorID,
			IdeaID:  &p.IdeaID,
			Subject: fmt.Sprintf("New evaluation assignment: %q", p.IdeaTitle),
			Body:    fmt.Sprintf("You were assigned the %s evaluation of %q.", p.EvaluationType, p.IdeaTitle),
		}, true, nil

	case mqcontracts.RoutingAssignmentOverdue:
		var p mqcontracts.AssignmentOverduePayload
		if err := decode(d, &p); err != nil {
			return notify.Notice{}, false, err
		}
		return notify.Notice{
			UserID:  p.EvaluatorID,
			IdeaID:  &p.IdeaID,
			Subject: fmt.Sprintf("Evaluation overdue: %q", p.IdeaTitle),
			Body: fmt.Sprintf("Your %s evaluation of %q has been open for %d hours.",
				p.EvaluationType, p.IdeaTitle, p.OverdueHours),
		}, true, nil
	}
	return notify.Notice{}, false, nil
}

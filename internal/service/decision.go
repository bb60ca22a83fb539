package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	mqcontracts "ideaflow/contracts/mq"
	"ideaflow/internal/model"
	"ideaflow/internal/workflow"
	"ideaflow/pkg/logger"
	"ideaflow/pkg/metrics"
	"ideaflow/pkg/trace"
)

type DecisionService struct {
	ideas  IdeaStore
	audit  AuditStore
	logger *zap.Logger
	now    func() time.Time
}

func NewDecisionService(ideas IdeaStore, audit AuditStore, logger *zap.Logger) *DecisionService {
	return &DecisionService{ideas: ideas, audit: audit, logger: logger, now: time.Now}
}

// Decide applies a management decision. The status update, both log entries and
// the idea.decided event commit together or not at all.
func (s *DecisionService) Decide(ctx context.Context, actor model.Actor, ideaID uuid.UUID, kind workflow.DecisionKind, feedback string) (*model.Idea, error) {
	if !actor.IsManagement() {
		return nil, model.ErrForbidden
	}
	idea, err := s.ideas.GetIdea(ctx, ideaID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	t, err := workflow.PlanDecision(*idea, kind, actor.ID, feedback, now)
	if err != nil {
		return nil, err
	}

	payload := mqcontracts.IdeaDecidedPayload{
		IdeaID:      idea.ID,
		SubmitterID: idea.SubmitterID,
		Title:       idea.Title,
		DecidedBy:   actor.ID,
		Decision:    string(kind),
		FromStatus:  string(t.From),
		ToStatus:    string(t.To),
		DecidedAt:   now,
		TraceID:     trace.FromContext(ctx),
	}
	if t.Idea.ManagementFeedback != nil {
		payload.Feedback = *t.Idea.ManagementFeedback
	}
	events := []model.OutboxEvent{ideaEvent(idea.ID, mqcontracts.RoutingIdeaDecided, payload)}

	if err := s.ideas.ApplyTransition(ctx, t, events); err != nil {
		return nil, fmt.Errorf("apply decision: %w", err)
	}
	metrics.IncrementDecision(string(kind))

	logger.WithTrace(ctx, s.logger).Info("Decision recorded",
		zap.String("idea_id", idea.ID.String()),
		zap.String("decision", string(kind)),
		zap.String("from", string(t.From)),
		zap.String("to", string(t.To)),
	)
	return &t.Idea, nil
}

// History returns the action log and the status log of an idea, oldest first.
func (s *DecisionService) History(ctx context.Context, ideaID uuid.UUID) (model.History, error) {
	if _, err := s.ideas.GetIdea(ctx, ideaID); err != nil {
		return model.History{}, err
	}
	actions, err := s.audit.ListActions(ctx, ideaID)
	if err != nil {
		return model.History{}, fmt.Errorf("list actions: %w", err)
	}
	statuses, err := s.audit.ListStatusChanges(ctx, ideaID)
	if err != nil {
		return model.History{}, fmt.Errorf("list status changes: %w", err)
	}
	return model.History{Actions: actions, Statuses: statuses}, nil
}

type ActionInput struct {
	Action  string          `json:"action" validate:"required,max=64"`
	Details json.RawMessage `json:"details"`
}

// LogAction appends a free-form entry such as a reviewer comment to the action log.
func (s *DecisionService) LogAction(ctx context.Context, actor model.Actor, ideaID uuid.UUID, in ActionInput) (*model.ActionLog, error) {
	in.Action = strings.TrimSpace(in.Action)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if len(in.Details) > 0 && !json.Valid(in.Details) {
		return nil, fmt.Errorf("%w: details must be valid JSON", model.ErrValidation)
	}
	if _, err := s.ideas.GetIdea(ctx, ideaID); err != nil {
		return nil, err
	}

	a := model.ActionLog{
		ID:        uuid.New(),
		IdeaID:    ideaID,
		ActorID:   actor.ID,
		Action:    in.Action,
		Details:   in.Details,
		CreatedAt: s.now().UTC(),
	}
	if err := s.audit.AppendAction(ctx, a); err != nil {
		return nil, fmt.Errorf("append action: %w", err)
	}
	return &a, nil
}

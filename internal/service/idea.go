package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	mqcontracts "ideaflow/contracts/mq"
	"ideaflow/internal/model"
	"ideaflow/internal/workflow"
	"ideaflow/pkg/logger"
	"ideaflow/pkg/trace"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type IdeaInput struct {
	Title                   string             `json:"title" validate:"required,min=3,max=200"`
	Description             string             `json:"description" validate:"required,min=10,max=10000"`
	Category                model.IdeaCategory `json:"category" validate:"required,oneof=process_improvement product technology cost_reduction customer_experience other"`
	ImplementationCost      *float64           `json:"implementation_cost" validate:"omitempty,gte=0"`
	ExpectedROI             *float64           `json:"expected_roi" validate:"omitempty,gte=-100"`
	StrategicAlignmentScore *float64           `json:"strategic_alignment_score" validate:"omitempty,gte=1,lte=10"`
}

func (in *IdeaInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
}

type IdeaService struct {
	ideas  IdeaStore
	logger *zap.Logger
	now    func() time.Time
}

func NewIdeaService(ideas IdeaStore, logger *zap.Logger) *IdeaService {
	return &IdeaService{ideas: ideas, logger: logger, now: time.Now}
}

// Create stores a new draft owned by actor.
func (s *IdeaService) Create(ctx context.Context, actor model.Actor, in IdeaInput) (*model.Idea, error) {
	in.normalize()
	if err := validateInput(in); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	idea := &model.Idea{
		ID:                      uuid.New(),
		SubmitterID:             actor.ID,
		Title:                   in.Title,
		Description:             in.Description,
		Category:                in.Category,
		Status:                  model.StatusDraft,
		ImplementationCost:      in.ImplementationCost,
		ExpectedROI:             in.ExpectedROI,
		StrategicAlignmentScore: in.StrategicAlignmentScore,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	action, err := newAction(idea.ID, actor.ID, model.ActionCreated, map[string]string{"title": idea.Title}, now)
	if err != nil {
		return nil, err
	}
	if err := s.ideas.CreateIdea(ctx, idea, action); err != nil {
		return nil, fmt.Errorf("create idea: %w", err)
	}

	logger.WithTrace(ctx, s.logger).Info("Idea created",
		zap.String("idea_id", idea.ID.String()),
		zap.String("submitter_id", actor.ID.String()),
	)
	return idea, nil
}

// Update edits a draft. Only the owner may edit, and only before submission.
func (s *IdeaService) Update(ctx context.Context, actor model.Actor, id uuid.UUID, in IdeaInput) (*model.Idea, error) {
	idea, err := s.ideas.GetIdea(ctx, id)
	if err != nil {
		return nil, err
	}
	if idea.SubmitterID != actor.ID {
		return nil, fmt.Errorf("%w: only the submitter can edit an idea", model.ErrForbidden)
	}
	if idea.Status != model.StatusDraft {
		return nil, fmt.Errorf("%w: idea is %s, only drafts can be edited", model.ErrInvalidTransition, idea.Status)
	}
	in.normalize()
	if err := validateInput(in); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	idea.Title = in.Title
	idea.Description = in.Description
	idea.Category = in.Category
	idea.ImplementationCost = in.ImplementationCost
	idea.ExpectedROI = in.ExpectedROI
	idea.StrategicAlignmentScore = in.StrategicAlignmentScore
	idea.UpdatedAt = now

	action, err := newAction(idea.ID, actor.ID, model.ActionUpdated, nil, now)
	if err != nil {
		return nil, err
	}
	if err := s.ideas.UpdateDraft(ctx, idea, action); err != nil {
		return nil, fmt.Errorf("update idea: %w", err)
	}
	return idea, nil
}

// Submit moves a draft to submitted and emits idea.submitted.
func (s *IdeaService) Submit(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Idea, error) {
	idea, err := s.ideas.GetIdea(ctx, id)
	if err != nil {
		return nil, err
	}
	if idea.SubmitterID != actor.ID {
		return nil, fmt.Errorf("%w: only the submitter can submit an idea", model.ErrForbidden)
	}

	now := s.now().UTC()
	t, err := workflow.PlanTransition(*idea, model.StatusSubmitted, actor.ID, "", now)
	if err != nil {
		return nil, err
	}
	action, err := newAction(idea.ID, actor.ID, model.ActionSubmitted, nil, now)
	if err != nil {
		return nil, err
	}
	t.Action = &action

	payload := mqcontracts.IdeaSubmittedPayload{
		IdeaID:      idea.ID,
		SubmitterID: idea.SubmitterID,
		Title:       idea.Title,
		Category:    string(idea.Category),
		SubmittedAt: now,
		TraceID:     trace.FromContext(ctx),
	}
	events := []model.OutboxEvent{ideaEvent(idea.ID, mqcontracts.RoutingIdeaSubmitted, payload)}
	if err := s.ideas.ApplyTransition(ctx, t, events); err != nil {
		return nil, fmt.Errorf("submit idea: %w", err)
	}

	logger.WithTrace(ctx, s.logger).Info("Idea submitted", zap.String("idea_id", idea.ID.String()))
	return &t.Idea, nil
}

// MarkImplemented closes an approved idea.
func (s *IdeaService) MarkImplemented(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Idea, error) {
	if !actor.IsManagement() {
		return nil, model.ErrForbidden
	}
	idea, err := s.ideas.GetIdea(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	t, err := workflow.PlanTransition(*idea, model.StatusImplemented, actor.ID, "", now)
	if err != nil {
		return nil, err
	}
	action, err := newAction(idea.ID, actor.ID, model.ActionImplemented, nil, now)
	if err != nil {
		return nil, err
	}
	t.Action = &action

	payload := mqcontracts.IdeaImplementedPayload{
		IdeaID:        idea.ID,
		SubmitterID:   idea.SubmitterID,
		Title:         idea.Title,
		ImplementedAt: now,
		TraceID:       trace.FromContext(ctx),
	}
	events := []model.OutboxEvent{ideaEvent(idea.ID, mqcontracts.RoutingIdeaImplemented, payload)}
	if err := s.ideas.ApplyTransition(ctx, t, events); err != nil {
		return nil, fmt.Errorf("mark implemented: %w", err)
	}

	logger.WithTrace(ctx, s.logger).Info("Idea implemented", zap.String("idea_id", idea.ID.String()))
	return &t.Idea, nil
}

func (s *IdeaService) Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Idea, error) {
	idea, err := s.ideas.GetIdea(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, idea) {
		return nil, model.ErrNotFound
	}
	return idea, nil
}

// ListMine returns every idea the actor submitted, drafts included.
func (s *IdeaService) ListMine(ctx context.Context, actor model.Actor, filter model.IdeaFilter) ([]model.Idea, error) {
	filter.SubmitterID = &actor.ID
	return s.ideas.ListIdeas(ctx, clampFilter(filter))
}

// List applies visibility: submitters only see their own ideas and nobody else's
// drafts are listed.
func (s *IdeaService) List(ctx context.Context, actor model.Actor, filter model.IdeaFilter) ([]model.Idea, error) {
	if actor.Role == model.RoleSubmitter {
		filter.SubmitterID = &actor.ID
	} else {
		filter.Statuses = withoutDrafts(filter.Statuses)
		if len(filter.Statuses) == 0 {
			return []model.Idea{}, nil
		}
	}
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", model.ErrValidation, st)
		}
	}
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", model.ErrValidation, filter.Category)
	}
	return s.ideas.ListIdeas(ctx, clampFilter(filter))
}

func withoutDrafts(statuses []model.IdeaStatus) []model.IdeaStatus {
	if len(statuses) == 0 {
		statuses = model.IdeaStatuses
	}
	out := make([]model.IdeaStatus, 0, len(statuses))
	for _, st := range statuses {
		if st != model.StatusDraft {
			out = append(out, st)
		}
	}
	return out
}

func clampFilter(f model.IdeaFilter) model.IdeaFilter {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	f.Search = strings.TrimSpace(f.Search)
	return f
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	mqcontracts "ideaflow/contracts/mq"
	"ideaflow/internal/matching"
	"ideaflow/internal/model"
	"ideaflow/internal/workflow"
	"ideaflow/pkg/logger"
	"ideaflow/pkg/trace"
)

// assignable are the statuses an idea may receive evaluators in.
var assignable = map[model.IdeaStatus]bool{
	model.StatusSubmitted:   true,
	model.StatusUnderReview: true,
	model.StatusEvaluated:   true,
	model.StatusDeferred:    true,
}

type AssignmentService struct {
	ideas       IdeaStore
	assignments AssignmentStore
	profiles    ProfileStore
	logger      *zap.Logger
	now         func() time.Time
}

func NewAssignmentService(ideas IdeaStore, assignments AssignmentStore, profiles ProfileStore, logger *zap.Logger) *AssignmentService {
	return &AssignmentService{
		ideas:       ideas,
		assignments: assignments,
		profiles:    profiles,
		logger:      logger,
		now:         time.Now,
	}
}

type assignmentDetails struct {
	EvaluationType model.RubricCategory `json:"evaluation_type"`
	EvaluatorID    uuid.UUID            `json:"evaluator_id"`
	Replaced       *uuid.UUID           `json:"replaced_evaluator_id,omitempty"`
}

// Assign makes evaluatorID the active evaluator for one rubric category of an idea,
// replacing whoever held it. Ideas not yet under review are moved there.
func (s *AssignmentService) Assign(ctx context.Context, actor model.Actor, ideaID uuid.UUID, category model.RubricCategory, evaluatorID uuid.UUID) (*model.Assignment, error) {
	log := logger.WithTrace(ctx, s.logger)
	if !category.Valid() {
		return nil, fmt.Errorf("%w: unknown evaluation type %q", model.ErrValidation, category)
	}

	idea, err := s.ideas.GetIdea(ctx, ideaID)
	if err != nil {
		return nil, err
	}
	if !assignable[idea.Status] {
		return nil, fmt.Errorf("%w: cannot assign evaluators to a %s idea", model.ErrInvalidTransition, idea.Status)
	}

	evaluator, err := s.profiles.GetProfile(ctx, evaluatorID)
	if err != nil {
		return nil, err
	}
	if !matching.Eligible(*evaluator, category) {
		return nil, fmt.Errorf("%w: %s is not an active %s evaluator", model.ErrValidation, evaluator.FullName, category)
	}

	current, err := s.activeFor(ctx, ideaID, category)
	if err != nil {
		return nil, err
	}
	if current != nil && current.EvaluatorID == evaluatorID {
		return nil, fmt.Errorf("%w: evaluator already holds %s", model.ErrConflict, category)
	}

	now := s.now().UTC()
	a := model.Assignment{
		ID:             uuid.New(),
		IdeaID:         ideaID,
		EvaluatorID:    evaluatorID,
		EvaluationType: category,
		AssignedBy:     actor.ID,
		AssignedAt:     now,
		IsActive:       true,
	}

	var t *model.Transition
	if idea.Status != model.StatusUnderReview {
		planned, err := workflow.PlanTransition(*idea, model.StatusUnderReview, actor.ID, "evaluator assigned", now)
		if err != nil {
			return nil, err
		}
		t = &planned
	}

	details := assignmentDetails{EvaluationType: category, EvaluatorID: evaluatorID}
	if current != nil {
		details.Replaced = &current.EvaluatorID
	}
	action, err := newAction(ideaID, actor.ID, model.ActionEvaluatorAssigned, details, now)
	if err != nil {
		return nil, err
	}

	payload := mqcontracts.EvaluatorAssignedPayload{
		AssignmentID:   a.ID,
		IdeaID:         ideaID,
		IdeaTitle:      idea.Title,
		EvaluatorID:    evaluatorID,
		EvaluationType: string(category),
		AssignedBy:     actor.ID,
		AssignedAt:     now,
		TraceID:        trace.FromContext(ctx),
	}
	events := []model.OutboxEvent{{
		AggregateType: mqcontracts.AggregateAssignment,
		AggregateID:   a.ID,
		RoutingKey:    mqcontracts.RoutingEvaluatorAssigned,
		Payload:       payload,
	}}

	if _, err := s.assignments.ReplaceAssignment(ctx, a, t, action, events); err != nil {
		return nil, fmt.Errorf("assign evaluator: %w", err)
	}

	log.Info("Evaluator assigned",
		zap.String("idea_id", ideaID.String()),
		zap.String("evaluator_id", evaluatorID.String()),
		zap.String("evaluation_type", string(category)),
		zap.Bool("replaced", current != nil),
	)
	return &a, nil
}

// Unassign deactivates the active assignment for a category without replacing it.
func (s *AssignmentService) Unassign(ctx context.Context, actor model.Actor, ideaID uuid.UUID, category model.RubricCategory) error {
	if !category.Valid() {
		return fmt.Errorf("%w: unknown evaluation type %q", model.ErrValidation, category)
	}
	current, err := s.activeFor(ctx, ideaID, category)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("%w: no active %s assignment", model.ErrNotFound, category)
	}

	action, err := newAction(ideaID, actor.ID, model.ActionEvaluatorRemoved,
		assignmentDetails{EvaluationType: category, EvaluatorID: current.EvaluatorID}, s.now().UTC())
	if err != nil {
		return err
	}
	if err := s.assignments.DeactivateAssignment(ctx, ideaID, category, action); err != nil {
		return fmt.Errorf("unassign evaluator: %w", err)
	}

	logger.WithTrace(ctx, s.logger).Info("Evaluator unassigned",
		zap.String("idea_id", ideaID.String()),
		zap.String("evaluation_type", string(category)),
	)
	return nil
}

func (s *AssignmentService) ListForIdea(ctx context.Context, ideaID uuid.UUID, activeOnly bool) ([]model.Assignment, error) {
	if _, err := s.ideas.GetIdea(ctx, ideaID); err != nil {
		return nil, err
	}
	return s.assignments.ListAssignments(ctx, ideaID, activeOnly)
}

func (s *AssignmentService) ListForEvaluator(ctx context.Context, evaluatorID uuid.UUID, activeOnly bool) ([]model.AssignmentDetail, error) {
	return s.assignments.ListAssignmentsForEvaluator(ctx, evaluatorID, activeOnly)
}

// Suggest ranks eligible evaluators for a category by open workload.
func (s *AssignmentService) Suggest(ctx context.Context, ideaID uuid.UUID, category model.RubricCategory) ([]matching.Candidate, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("%w: unknown evaluation type %q", model.ErrValidation, category)
	}
	if _, err := s.ideas.GetIdea(ctx, ideaID); err != nil {
		return nil, err
	}

	profiles, err := s.profiles.ListProfiles(ctx, model.ProfileFilter{Role: model.RoleEvaluator, ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list evaluators: %w", err)
	}
	workload, err := s.assignments.EvaluatorWorkloads(ctx)
	if err != nil {
		return nil, fmt.Errorf("load workload: %w", err)
	}
	current, err := s.activeFor(ctx, ideaID, category)
	if err != nil {
		return nil, err
	}

	var currentID *uuid.UUID
	if current != nil {
		currentID = &current.EvaluatorID
	}
	return matching.Rank(profiles, category, workload, currentID), nil
}

func (s *AssignmentService) activeFor(ctx context.Context, ideaID uuid.UUID, category model.RubricCategory) (*model.Assignment, error) {
	active, err := s.assignments.ListAssignments(ctx, ideaID, true)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	for i := range active {
		if active[i].EvaluationType == category {
			return &active[i], nil
		}
	}
	return nil, nil
}

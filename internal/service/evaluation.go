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
	"ideaflow/internal/progress"
	"ideaflow/internal/workflow"
	"ideaflow/pkg/logger"
	"ideaflow/pkg/metrics"
	"ideaflow/pkg/trace"
)

type EvaluationInput struct {
	EvaluationType   model.RubricCategory `json:"evaluation_type" validate:"required,oneof=technology finance commercial"`
	FeasibilityScore float64              `json:"feasibility_score" validate:"gte=1,lte=10"`
	ImpactScore      float64              `json:"impact_score" validate:"gte=1,lte=10"`
	InnovationScore  float64              `json:"innovation_score" validate:"gte=1,lte=10"`
	OverallScore     float64              `json:"overall_score" validate:"gte=1,lte=10"`
	EnrichmentScore  float64              `json:"enrichment_score" validate:"gte=1,lte=10"`
	Feedback         string               `json:"feedback" validate:"max=5000"`
	Recommendation   model.Recommendation `json:"recommendation" validate:"omitempty,oneof=approve reject revise neutral"`
}

type EvaluationService struct {
	ideas       IdeaStore
	evaluations EvaluationStore
	policy      progress.ScoringPolicy
	logger      *zap.Logger
	now         func() time.Time
}

func NewEvaluationService(ideas IdeaStore, evaluations EvaluationStore, policy progress.ScoringPolicy, logger *zap.Logger) *EvaluationService {
	return &EvaluationService{
		ideas:       ideas,
		evaluations: evaluations,
		policy:      policy,
		logger:      logger,
		now:         time.Now,
	}
}

type evaluationDetails struct {
	EvaluationType model.RubricCategory `json:"evaluation_type"`
	OverallScore   float64              `json:"overall_score"`
	CompletedCount int                  `json:"completed_count"`
	TotalCount     int                  `json:"total_count"`
}

// Submit records an evaluator's scores for one category. The last outstanding
// category moves the idea to evaluated in the same transaction.
func (s *EvaluationService) Submit(ctx context.Context, actor model.Actor, ideaID uuid.UUID, in EvaluationInput) (*model.Evaluation, error) {
	in.Feedback = strings.TrimSpace(in.Feedback)
	if in.Recommendation == "" {
		in.Recommendation = model.RecommendNeutral
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	overall := in.OverallScore
	ev := &model.Evaluation{
		ID:               uuid.New(),
		IdeaID:           ideaID,
		EvaluatorID:      actor.ID,
		EvaluationType:   in.EvaluationType,
		FeasibilityScore: in.FeasibilityScore,
		ImpactScore:      in.ImpactScore,
		InnovationScore:  in.InnovationScore,
		OverallScore:     &overall,
		EnrichmentScore:  in.EnrichmentScore,
		Feedback:         in.Feedback,
		Recommendation:   in.Recommendation,
		CreatedAt:        now,
	}

	outcome, err := s.evaluations.SubmitEvaluation(ctx, ev, s.planner(ctx, *ev, actor, now))
	if err != nil {
		return nil, fmt.Errorf("submit evaluation: %w", err)
	}
	metrics.IncrementEvaluationSubmitted(string(ev.EvaluationType))

	logger.WithTrace(ctx, s.logger).Info("Evaluation submitted",
		zap.String("idea_id", ideaID.String()),
		zap.String("evaluator_id", actor.ID.String()),
		zap.String("evaluation_type", string(ev.EvaluationType)),
		zap.Bool("idea_evaluated", outcome.Transition != nil),
	)
	return ev, nil
}

// planner validates the submission against the locked rows and decides the
// average score, the lifecycle transition and the events.
func (s *EvaluationService) planner(ctx context.Context, ev model.Evaluation, actor model.Actor, now time.Time) model.EvaluationPlanner {
	traceID := trace.FromContext(ctx)
	return func(idea model.Idea, assignments []model.Assignment, evaluations []model.Evaluation) (model.EvaluationOutcome, error) {
		if idea.Status != model.StatusUnderReview {
			return model.EvaluationOutcome{}, fmt.Errorf("%w: idea is %s, not under review", model.ErrInvalidTransition, idea.Status)
		}
		if !holdsAssignment(assignments, ev) {
			return model.EvaluationOutcome{}, model.ErrNotAssigned
		}
		for _, other := range evaluations {
			if other.EvaluatorID == ev.EvaluatorID && other.EvaluationType == ev.EvaluationType {
				return model.EvaluationOutcome{}, model.ErrAlreadyEvaluated
			}
		}

		all := append(append([]model.Evaluation{}, evaluations...), ev)
		p := progress.Summarize(progress.Resolve(assignments, all))
		avg := progress.AverageScores(progress.Scoreable(s.policy, assignments, all))

		out := model.EvaluationOutcome{}
		if avg.Count > 0 {
			overall := avg.Overall
			out.AverageScore = &overall
		}

		action, err := newAction(idea.ID, actor.ID, model.ActionEvaluated, evaluationDetails{
			EvaluationType: ev.EvaluationType,
			OverallScore:   *ev.OverallScore,
			CompletedCount: p.CompletedCount,
			TotalCount:     p.TotalCount,
		}, now)
		if err != nil {
			return model.EvaluationOutcome{}, err
		}
		out.Action = action

		out.Events = append(out.Events, ideaEvent(idea.ID, mqcontracts.RoutingEvaluationSubmitted, mqcontracts.EvaluationSubmittedPayload{
			EvaluationID:   ev.ID,
			IdeaID:         idea.ID,
			EvaluatorID:    ev.EvaluatorID,
			EvaluationType: string(ev.EvaluationType),
			OverallScore:   *ev.OverallScore,
			CompletedCount: p.CompletedCount,
			TotalCount:     p.TotalCount,
			SubmittedAt:    now,
			TraceID:        traceID,
		}))

		if progress.BucketOf(p) == progress.BucketReady {
			t, err := workflow.PlanTransition(idea, model.StatusEvaluated, actor.ID, "all evaluations complete", now)
			if err != nil {
				return model.EvaluationOutcome{}, err
			}
			t.Idea.AverageEvaluationScore = out.AverageScore
			out.Transition = &t

			var score float64
			if out.AverageScore != nil {
				score = progress.Round1(*out.AverageScore)
			}
			out.Events = append(out.Events, ideaEvent(idea.ID, mqcontracts.RoutingIdeaEvaluated, mqcontracts.IdeaEvaluatedPayload{
				IdeaID:       idea.ID,
				SubmitterID:  idea.SubmitterID,
				Title:        idea.Title,
				AverageScore: score,
				EvaluatedAt:  now,
				TraceID:      traceID,
			}))
		}
		return out, nil
	}
}

func holdsAssignment(assignments []model.Assignment, ev model.Evaluation) bool {
	for _, a := range assignments {
		if a.IsActive && a.EvaluatorID == ev.EvaluatorID && a.EvaluationType == ev.EvaluationType {
			return true
		}
	}
	return false
}

// ListForIdea returns the evaluations of an idea. Evaluators only see their own.
func (s *EvaluationService) ListForIdea(ctx context.Context, actor model.Actor, ideaID uuid.UUID) ([]model.Evaluation, error) {
	idea, err := s.ideas.GetIdea(ctx, ideaID)
	if err != nil {
		return nil, err
	}
	if !canView(actor, idea) {
		return nil, model.ErrNotFound
	}
	evs, err := s.evaluations.ListEvaluations(ctx, ideaID)
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	if actor.IsManagement() {
		return evs, nil
	}
	own := make([]model.Evaluation, 0, len(evs))
	for _, ev := range evs {
		if ev.EvaluatorID == actor.ID {
			own = append(own, ev)
		}
	}
	return own, nil
}

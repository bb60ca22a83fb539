package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ideaflow/internal/model"
	"ideaflow/internal/progress"
)

// queuePageSize is how many review ideas one query loads; the queue reads
// pages until the last one comes back short.
const queuePageSize = 500

// ReviewService answers "how far along is this idea" for the review screens.
type ReviewService struct {
	ideas       IdeaStore
	assignments AssignmentStore
	evaluations EvaluationStore
	policy      progress.ScoringPolicy
	pageSize    int
	logger      *zap.Logger
}

func NewReviewService(ideas IdeaStore, assignments AssignmentStore, evaluations EvaluationStore, policy progress.ScoringPolicy, logger *zap.Logger) *ReviewService {
	return &ReviewService{
		ideas:       ideas,
		assignments: assignments,
		evaluations: evaluations,
		policy:      policy,
		pageSize:    queuePageSize,
		logger:      logger,
	}
}

// Progress returns per-category status, counts and score averages for one idea.
func (s *ReviewService) Progress(ctx context.Context, ideaID uuid.UUID) (progress.IdeaProgress, error) {
	idea, err := s.ideas.GetIdea(ctx, ideaID)
	if err != nil {
		return progress.IdeaProgress{}, err
	}
	as, err := s.assignments.ListAssignments(ctx, ideaID, false)
	if err != nil {
		return progress.IdeaProgress{}, fmt.Errorf("list assignments: %w", err)
	}
	evs, err := s.evaluations.ListEvaluations(ctx, ideaID)
	if err != nil {
		return progress.IdeaProgress{}, fmt.Errorf("list evaluations: %w", err)
	}
	return progress.Compute(*idea, as, evs, s.policy), nil
}

// Queue loads every idea awaiting review and splits it into the in-progress
// queue, the ready-for-decision list and the unassigned list.
func (s *ReviewService) Queue(ctx context.Context) (progress.Queue, error) {
	ideas, err := s.reviewIdeas(ctx)
	if err != nil {
		return progress.Queue{}, err
	}
	if len(ideas) == 0 {
		return progress.Partition(nil), nil
	}

	ids := make([]uuid.UUID, len(ideas))
	for i, idea := range ideas {
		ids[i] = idea.ID
	}
	as, err := s.assignments.ListActiveAssignmentsForIdeas(ctx, ids)
	if err != nil {
		return progress.Queue{}, fmt.Errorf("list assignments: %w", err)
	}
	evs, err := s.evaluations.ListEvaluationsForIdeas(ctx, ids)
	if err != nil {
		return progress.Queue{}, fmt.Errorf("list evaluations: %w", err)
	}

	byIdeaA := make(map[uuid.UUID][]model.Assignment, len(ideas))
	for _, a := range as {
		byIdeaA[a.IdeaID] = append(byIdeaA[a.IdeaID], a)
	}
	byIdeaE := make(map[uuid.UUID][]model.Evaluation, len(ideas))
	for _, ev := range evs {
		byIdeaE[ev.IdeaID] = append(byIdeaE[ev.IdeaID], ev)
	}

	items := make([]progress.IdeaProgress, 0, len(ideas))
	for _, idea := range ideas {
		items = append(items, progress.Compute(idea, byIdeaA[idea.ID], byIdeaE[idea.ID], s.policy))
	}
	q := progress.Partition(items)

	s.logger.Debug("Review queue computed",
		zap.Int("queue", len(q.Queue)),
		zap.Int("ready", len(q.Ready)),
		zap.Int("unassigned", len(q.Unassigned)),
	)
	return q, nil
}

func (s *ReviewService) reviewIdeas(ctx context.Context) ([]model.Idea, error) {
	var (
		out  []model.Idea
		seen = map[uuid.UUID]bool{}
	)
	for offset := 0; ; offset += s.pageSize {
		page, err := s.ideas.ListIdeas(ctx, model.IdeaFilter{Statuses: model.ReviewStatuses, Limit: s.pageSize, Offset: offset})
		if err != nil {
			return nil, fmt.Errorf("list review ideas: %w", err)
		}
		for _, idea := range page {
			// an insert between pages can shift a row onto the next page
			if !seen[idea.ID] {
				seen[idea.ID] = true
				out = append(out, idea)
			}
		}
		if len(page) < s.pageSize {
			return out, nil
		}
	}
}

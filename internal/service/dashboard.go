package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ideaflow/internal/model"
	"ideaflow/internal/progress"
)

type DashboardService struct {
	store       DashboardStore
	assignments AssignmentStore
	cache       DashboardCache
	logger      *zap.Logger
	now         func() time.Time
}

func NewDashboardService(store DashboardStore, assignments AssignmentStore, cache DashboardCache, logger *zap.Logger) *DashboardService {
	return &DashboardService{
		store:       store,
		assignments: assignments,
		cache:       cache,
		logger:      logger,
		now:         time.Now,
	}
}

// Overview serves the analytics overview from cache, computing it on a miss.
func (s *DashboardService) Overview(ctx context.Context) (*model.DashboardOverview, error) {
	if s.cache != nil {
		if o, ok := s.cache.GetOverview(ctx); ok {
			return o, nil
		}
	}

	byStatus, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	byCategory, err := s.store.CountByCategory(ctx)
	if err != nil {
		return nil, fmt.Errorf("count by category: %w", err)
	}
	avg, err := s.store.AverageScore(ctx)
	if err != nil {
		return nil, fmt.Errorf("average score: %w", err)
	}
	workload, err := s.assignments.EvaluatorWorkloads(ctx)
	if err != nil {
		return nil, fmt.Errorf("evaluator workload: %w", err)
	}

	o := &model.DashboardOverview{
		ByStatus:     byStatus,
		ByCategory:   byCategory,
		AverageScore: progress.Round1(avg),
		ApprovalRate: ApprovalRate(byStatus[model.StatusApproved]+byStatus[model.StatusImplemented], byStatus[model.StatusRejected]),
		Workload:     workload,
		GeneratedAt:  s.now().UTC(),
	}
	for _, n := range byStatus {
		o.TotalIdeas += n
	}
	for _, st := range model.ReviewStatuses {
		o.PendingReviews += byStatus[st]
	}

	if s.cache != nil {
		s.cache.SetOverview(ctx, o)
	}
	return o, nil
}

// ApprovalRate is approved / (approved + rejected) as a percentage with one decimal.
func ApprovalRate(approved, rejected int) float64 {
	decided := approved + rejected
	if decided == 0 {
		return 0
	}
	return progress.Round1(float64(approved) / float64(decided) * 100)
}

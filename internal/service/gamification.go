package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ideaflow/internal/model"
)

// Points per reason.
var pointsFor = map[string]int{
	model.PointsReasonSubmitted:   10,
	model.PointsReasonApproved:    50,
	model.PointsReasonImplemented: 100,
	model.PointsReasonEvaluation:  5,
}

type achievement struct {
	model.AchievementType
	earned func(model.ActivityCounts) bool
}

// achievements mirrors the achievement_types seed rows.
var achievements = []achievement{
	{model.AchievementType{Code: "first_idea", Name: "First Idea", Description: "Submitted a first idea", Points: 5},
		func(c model.ActivityCounts) bool { return c.Submitted >= 1 }},
	{model.AchievementType{Code: "five_ideas", Name: "Idea Machine", Description: "Submitted five ideas", Points: 25},
		func(c model.ActivityCounts) bool { return c.Submitted >= 5 }},
	{model.AchievementType{Code: "first_approval", Name: "Green Light", Description: "Had a first idea approved", Points: 20},
		func(c model.ActivityCounts) bool { return c.Approved >= 1 }},
	{model.AchievementType{Code: "innovator", Name: "Innovator", Description: "Had three ideas approved", Points: 75},
		func(c model.ActivityCounts) bool { return c.Approved >= 3 }},
	{model.AchievementType{Code: "implemented", Name: "Made It Real", Description: "Had an idea implemented", Points: 50},
		func(c model.ActivityCounts) bool { return c.Implemented >= 1 }},
	{model.AchievementType{Code: "diligent_evaluator", Name: "Diligent Evaluator", Description: "Completed ten evaluations", Points: 30},
		func(c model.ActivityCounts) bool { return c.Evaluations >= 10 }},
}

// Achievements returns the catalogue.
func Achievements() []model.AchievementType {
	out := make([]model.AchievementType, len(achievements))
	for i, a := range achievements {
		out[i] = a.AchievementType
	}
	return out
}

type GamificationService struct {
	store  GamificationStore
	logger *zap.Logger
	now    func() time.Time
}

func NewGamificationService(store GamificationStore, logger *zap.Logger) *GamificationService {
	return &GamificationService{store: store, logger: logger, now: time.Now}
}

// Award grants reason's points to userID for ideaID once, then grants any newly
// earned achievements. Replays of the same event are no-ops. The points come from
// the part of reason before any qualifier.
func (s *GamificationService) Award(ctx context.Context, userID, ideaID uuid.UUID, reason string) error {
	base, _, _ := strings.Cut(reason, ":")
	points, ok := pointsFor[base]
	if !ok {
		return fmt.Errorf("%w: unknown points reason %q", model.ErrValidation, reason)
	}

	idea := ideaID
	awarded, err := s.store.AwardPoints(ctx, model.PointsEntry{
		ID:        uuid.New(),
		UserID:    userID,
		IdeaID:    &idea,
		Points:    points,
		Reason:    reason,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("award points: %w", err)
	}
	if !awarded {
		s.logger.Debug("Points already awarded",
			zap.String("user_id", userID.String()),
			zap.String("reason", reason),
		)
	}

	_, err = s.checkAchievements(ctx, userID, &idea)
	return err
}

// checkAchievements grants every achievement whose threshold is met and returns
// the codes newly granted.
func (s *GamificationService) checkAchievements(ctx context.Context, userID uuid.UUID, ideaID *uuid.UUID) ([]string, error) {
	counts, err := s.store.ActivityCounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("activity counts: %w", err)
	}

	var granted []string
	for _, a := range achievements {
		if !a.earned(counts) {
			continue
		}
		now := s.now().UTC()
		inserted, err := s.store.InsertRecognition(ctx, model.RecognitionEvent{
			ID:              uuid.New(),
			UserID:          userID,
			AchievementCode: a.Code,
			IdeaID:          ideaID,
			CreatedAt:       now,
		})
		if err != nil {
			return granted, fmt.Errorf("grant %s: %w", a.Code, err)
		}
		if !inserted {
			continue
		}
		if _, err := s.store.AwardPoints(ctx, model.PointsEntry{
			ID:        uuid.New(),
			UserID:    userID,
			Points:    a.Points,
			Reason:    "achievement:" + a.Code,
			CreatedAt: now,
		}); err != nil {
			return granted, fmt.Errorf("achievement points %s: %w", a.Code, err)
		}
		granted = append(granted, a.Code)
		s.logger.Info("Achievement granted",
			zap.String("user_id", userID.String()),
			zap.String("achievement", a.Code),
		)
	}
	return granted, nil
}

// SubmitterMetrics computes the personal dashboard numbers for one user.
func (s *GamificationService) SubmitterMetrics(ctx context.Context, userID uuid.UUID) (model.SubmitterMetrics, error) {
	counts, err := s.store.ActivityCounts(ctx, userID)
	if err != nil {
		return model.SubmitterMetrics{}, fmt.Errorf("activity counts: %w", err)
	}
	total, err := s.store.TotalPoints(ctx, userID)
	if err != nil {
		return model.SubmitterMetrics{}, fmt.Errorf("total points: %w", err)
	}
	recs, err := s.store.ListRecognitions(ctx, userID)
	if err != nil {
		return model.SubmitterMetrics{}, fmt.Errorf("list recognitions: %w", err)
	}
	return model.SubmitterMetrics{
		UserID:       userID,
		Counts:       counts,
		ApprovalRate: ApprovalRate(counts.Approved, counts.Rejected),
		TotalPoints:  total,
		Achievements: recs,
		ComputedAt:   s.now().UTC(),
	}, nil
}

func (s *GamificationService) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	return s.store.Leaderboard(ctx, limit)
}

// RecalculateAll refreshes the metrics snapshot of every submitter and returns
// how many were written. Failures for one user do not stop the rest.
func (s *GamificationService) RecalculateAll(ctx context.Context) (int, error) {
	ids, err := s.store.ListSubmitterIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list submitters: %w", err)
	}
	written := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return written, ctx.Err()
		}
		m, err := s.SubmitterMetrics(ctx, id)
		if err != nil {
			s.logger.Error("Failed to compute submitter metrics", zap.String("user_id", id.String()), zap.Error(err))
			continue
		}
		if _, err := s.checkAchievements(ctx, id, nil); err != nil {
			s.logger.Warn("Achievement check failed", zap.String("user_id", id.String()), zap.Error(err))
		}
		if err := s.store.SaveMetrics(ctx, m); err != nil {
			s.logger.Error("Failed to save submitter metrics", zap.String("user_id", id.String()), zap.Error(err))
			continue
		}
		written++
	}
	return written, nil
}

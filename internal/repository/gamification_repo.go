package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"ideaflow/internal/model"
)

type GamificationRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewGamificationRepository(db *pgxpool.Pool, logger *zap.Logger) *GamificationRepository {
	return &GamificationRepository{db: db, logger: logger}
}

// AwardPoints relies on the (user_id, reason, idea_id) unique index for idempotency.
func (r *GamificationRepository) AwardPoints(ctx context.Context, e model.PointsEntry) (bool, error) {
	tag, err := r.db.Exec(ctx, `
        INSERT INTO points_history (id, user_id, idea_id, points, reason, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT DO NOTHING
    `, e.ID, e.UserID, e.IdeaID, e.Points, e.Reason, e.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to insert points", zap.Error(err), zap.String("user_id", e.UserID.String()))
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	r.logger.Info("Points awarded",
		zap.String("user_id", e.UserID.String()),
		zap.String("reason", e.Reason),
		zap.Int("points", e.Points),
	)
	return true, nil
}

func (r *GamificationRepository) TotalPoints(ctx context.Context, userID uuid.UUID) (int, error) {
	var total int
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(points), 0) FROM points_history WHERE user_id = $1`, userID).Scan(&total)
	return total, err
}

func (r *GamificationRepository) ListRecognitions(ctx context.Context, userID uuid.UUID) ([]model.RecognitionEvent, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, user_id, achievement_code, idea_id, created_at
        FROM recognition_events
        WHERE user_id = $1
        ORDER BY created_at ASC
    `, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.RecognitionEvent{}
	for rows.Next() {
		var e model.RecognitionEvent
		if err := rows.Scan(&e.ID, &e.UserID, &e.AchievementCode, &e.IdeaID, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *GamificationRepository) InsertRecognition(ctx context.Context, e model.RecognitionEvent) (bool, error) {
	tag, err := r.db.Exec(ctx, `
        INSERT INTO recognition_events (id, user_id, achievement_code, idea_id, created_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (user_id, achievement_code) DO NOTHING
    `, e.ID, e.UserID, e.AchievementCode, e.IdeaID, e.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to insert recognition", zap.Error(err), zap.String("achievement", e.AchievementCode))
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *GamificationRepository) ActivityCounts(ctx context.Context, userID uuid.UUID) (model.ActivityCounts, error) {
	var c model.ActivityCounts
	err := r.db.QueryRow(ctx, `
        SELECT
            COUNT(*) FILTER (WHERE status <> 'draft'),
            COUNT(*) FILTER (WHERE status IN ('submitted', 'under_review', 'evaluated')),
            COUNT(*) FILTER (WHERE status IN ('approved', 'implemented')),
            COUNT(*) FILTER (WHERE status = 'rejected'),
            COUNT(*) FILTER (WHERE status = 'implemented'),
            (SELECT COUNT(*) FROM evaluations WHERE evaluator_id = $1),
            AVG(average_evaluation_score)::float8
        FROM ideas
        WHERE submitter_id = $1
    `, userID).Scan(&c.Submitted, &c.UnderReview, &c.Approved, &c.Rejected, &c.Implemented, &c.Evaluations, &c.AvgScore)
	return c, err
}

func (r *GamificationRepository) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	rows, err := r.db.Query(ctx, `
        SELECT p.id, p.full_name, SUM(ph.points) AS total,
               RANK() OVER (ORDER BY SUM(ph.points) DESC)
        FROM points_history ph
        JOIN profiles p ON p.id = ph.user_id
        WHERE p.is_active
        GROUP BY p.id, p.full_name
        ORDER BY total DESC, p.full_name ASC
        LIMIT $1
    `, limit)
	if err != nil {
		r.logger.Error("Failed to query leaderboard", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	out := []model.LeaderboardEntry{}
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.FullName, &e.TotalPoints, &e.Rank); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *GamificationRepository) SaveMetrics(ctx context.Context, m model.SubmitterMetrics) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO submitter_metrics (user_id, submitted, under_review, approved, rejected, implemented,
            evaluations, average_score, approval_rate, total_points, computed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        ON CONFLICT (user_id) DO UPDATE SET
            submitted = EXCLUDED.submitted,
            under_review = EXCLUDED.under_review,
            approved = EXCLUDED.approved,
            rejected = EXCLUDED.rejected,
            implemented = EXCLUDED.implemented,
            evaluations = EXCLUDED.evaluations,
            average_score = EXCLUDED.average_score,
            approval_rate = EXCLUDED.approval_rate,
            total_points = EXCLUDED.total_points,
            computed_at = EXCLUDED.computed_at
    `, m.UserID, m.Counts.Submitted, m.Counts.UnderReview, m.Counts.Approved, m.Counts.Rejected,
		m.Counts.Implemented, m.Counts.Evaluations, m.Counts.AvgScore, m.ApprovalRate, m.TotalPoints, m.ComputedAt)
	if err != nil {
		r.logger.Error("Failed to save submitter metrics", zap.Error(err), zap.String("user_id", m.UserID.String()))
	}
	return err
}

func (r *GamificationRepository) ListSubmitterIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT submitter_id FROM ideas`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

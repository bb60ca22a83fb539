package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"ideaflow/internal/model"
)

// AuditRepository reads and appends the idea action and status logs.
type AuditRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewAuditRepository(db *pgxpool.Pool, logger *zap.Logger) *AuditRepository {
	return &AuditRepository{db: db, logger: logger}
}

func (r *AuditRepository) ListActions(ctx context.Context, ideaID uuid.UUID) ([]model.ActionLog, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, idea_id, actor_id, action, details, created_at
        FROM idea_action_log
        WHERE idea_id = $1
        ORDER BY created_at ASC, id ASC
    `, ideaID)
	if err != nil {
		r.logger.Error("Failed to query action log", zap.Error(err), zap.String("idea_id", ideaID.String()))
		return nil, err
	}
	defer rows.Close()

	out := []model.ActionLog{}
	for rows.Next() {
		var (
			a       model.ActionLog
			details []byte
		)
		if err := rows.Scan(&a.ID, &a.IdeaID, &a.ActorID, &a.Action, &details, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Details = details
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *AuditRepository) ListStatusChanges(ctx context.Context, ideaID uuid.UUID) ([]model.StatusLog, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, idea_id, from_status, to_status, changed_by, COALESCE(reason, ''), created_at
        FROM idea_status_log
        WHERE idea_id = $1
        ORDER BY created_at ASC, id ASC
    `, ideaID)
	if err != nil {
		r.logger.Error("Failed to query status log", zap.Error(err), zap.String("idea_id", ideaID.String()))
		return nil, err
	}
	defer rows.Close()

	out := []model.StatusLog{}
	for rows.Next() {
		var (
			s        model.StatusLog
			from, to string
		)
		if err := rows.Scan(&s.ID, &s.IdeaID, &from, &to, &s.ChangedBy, &s.Reason, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.FromStatus = model.IdeaStatus(from)
		s.ToStatus = model.IdeaStatus(to)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *AuditRepository) AppendAction(ctx context.Context, a model.ActionLog) error {
	if err := insertAction(ctx, r.db, a); err != nil {
		r.logger.Error("Failed to append action", zap.Error(err), zap.String("idea_id", a.IdeaID.String()))
		return mapErr(err)
	}
	r.logger.Info("Action appended",
		zap.String("idea_id", a.IdeaID.String()),
		zap.String("action", a.Action),
	)
	return nil
}

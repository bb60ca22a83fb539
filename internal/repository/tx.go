package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ideaflow/internal/model"
	"ideaflow/pkg/otel"
	"ideaflow/pkg/outbox"
	"ideaflow/pkg/util"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// withTx runs fn in one transaction, committing only when fn returns nil.
func withTx(ctx context.Context, db *pgxpool.Pool, name string, fn func(pgx.Tx) error) (err error) {
	ctx, span := otel.DBSpan(ctx, name, "BEGIN")
	defer func() { otel.EndDBSpan(span, err) }()

	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// mapErr translates driver errors into domain sentinels.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return model.ErrNotFound
	case util.IsUniqueViolation(err):
		return fmt.Errorf("%w: %v", model.ErrConflict, err)
	case isForeignKeyViolation(err):
		return fmt.Errorf("%w: %v", model.ErrConflict, err)
	}
	return err
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func insertAction(ctx context.Context, q querier, a model.ActionLog) error {
	_, err := q.Exec(ctx, `
        INSERT INTO idea_action_log (id, idea_id, actor_id, action, details, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, a.ID, a.IdeaID, a.ActorID, a.Action, nullableJSON(a.Details), a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert action log: %w", err)
	}
	return nil
}

func insertStatusLog(ctx context.Context, q querier, s model.StatusLog) error {
	_, err := q.Exec(ctx, `
        INSERT INTO idea_status_log (id, idea_id, from_status, to_status, changed_by, reason, created_at)
        VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
    `, s.ID, s.IdeaID, string(s.FromStatus), string(s.ToStatus), s.ChangedBy, s.Reason, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert status log: %w", err)
	}
	return nil
}

// applyTransition performs the guarded status update and writes both logs.
// Zero affected rows means someone else moved the idea first. The average
// score is owned by the evaluation write and is left untouched here.
func applyTransition(ctx context.Context, tx pgx.Tx, t model.Transition) error {
	i := t.Idea
	tag, err := tx.Exec(ctx, `
        UPDATE ideas
        SET status = $2,
            management_feedback = $3,
            updated_at = $4,
            submitted_at = $5,
            reviewed_at = $6,
            evaluated_at = $7,
            decided_at = $8,
            implemented_at = $9
        WHERE id = $1 AND status = $10
    `, i.ID, string(t.To), i.ManagementFeedback, i.UpdatedAt,
		i.SubmittedAt, i.ReviewedAt, i.EvaluatedAt, i.DecidedAt, i.ImplementedAt, string(t.From))
	if err != nil {
		return fmt.Errorf("failed to update idea status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: idea %s is no longer %s", model.ErrConflict, i.ID, t.From)
	}
	if err := insertStatusLog(ctx, tx, t.StatusLog); err != nil {
		return err
	}
	if t.Action != nil {
		return insertAction(ctx, tx, *t.Action)
	}
	return nil
}

func writeEvents(ctx context.Context, tx pgx.Tx, repo *outbox.Repository, events []model.OutboxEvent) error {
	for _, e := range events {
		if err := outbox.InsertEventInTx(ctx, tx, repo, e.AggregateType, e.AggregateID.String(), e.RoutingKey, e.Payload); err != nil {
			return err
		}
	}
	return nil
}

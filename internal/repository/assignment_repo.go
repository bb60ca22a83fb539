package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"ideaflow/internal/model"
	"ideaflow/pkg/outbox"
)

type AssignmentRepository struct {
	db     *pgxpool.Pool
	outbox *outbox.Repository
	logger *zap.Logger
}

func NewAssignmentRepository(db *pgxpool.Pool, outboxRepo *outbox.Repository, logger *zap.Logger) *AssignmentRepository {
	return &AssignmentRepository{db: db, outbox: outboxRepo, logger: logger}
}

const assignmentColumns = `a.id, a.idea_id, a.evaluator_id, a.evaluation_type, a.assigned_by, a.assigned_at, a.is_active`

func scanAssignment(row pgx.Row, extra ...any) (model.Assignment, error) {
	var (
		a   model.Assignment
		typ string
	)
	dest := append([]any{&a.ID, &a.IdeaID, &a.EvaluatorID, &typ, &a.AssignedBy, &a.AssignedAt, &a.IsActive}, extra...)
	if err := row.Scan(dest...); err != nil {
		return a, err
	}
	a.EvaluationType = model.RubricCategory(typ)
	return a, nil
}

func collectAssignments(rows pgx.Rows) ([]model.Assignment, error) {
	defer rows.Close()
	out := []model.Assignment{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func listAssignments(ctx context.Context, q querier, ideaID uuid.UUID, activeOnly bool) ([]model.Assignment, error) {
	rows, err := q.Query(ctx, `
        SELECT `+assignmentColumns+`
        FROM evaluator_assignments a
        WHERE a.idea_id = $1 AND (NOT $2 OR a.is_active)
        ORDER BY a.assigned_at ASC
    `, ideaID, activeOnly)
	if err != nil {
		return nil, err
	}
	return collectAssignments(rows)
}

func (r *AssignmentRepository) ListAssignments(ctx context.Context, ideaID uuid.UUID, activeOnly bool) ([]model.Assignment, error) {
	out, err := listAssignments(ctx, r.db, ideaID, activeOnly)
	if err != nil {
		r.logger.Error("Failed to list assignments", zap.Error(err), zap.String("idea_id", ideaID.String()))
		return nil, err
	}
	return out, nil
}

func (r *AssignmentRepository) ListActiveAssignmentsForIdeas(ctx context.Context, ideaIDs []uuid.UUID) ([]model.Assignment, error) {
	if len(ideaIDs) == 0 {
		return []model.Assignment{}, nil
	}
	rows, err := r.db.Query(ctx, `
        SELECT `+assignmentColumns+`
        FROM evaluator_assignments a
        WHERE a.idea_id = ANY($1) AND a.is_active
        ORDER BY a.assigned_at ASC
    `, ideaIDs)
	if err != nil {
		r.logger.Error("Failed to list active assignments", zap.Error(err), zap.Int("ideas", len(ideaIDs)))
		return nil, err
	}
	return collectAssignments(rows)
}

const assignmentDetailQuery = `
        SELECT ` + assignmentColumns + `, i.title, i.status, p.full_name,
               EXISTS (
                   SELECT 1 FROM evaluations e
                   WHERE e.idea_id = a.idea_id
                     AND e.evaluator_id = a.evaluator_id
                     AND e.evaluation_type = a.evaluation_type
               )
        FROM evaluator_assignments a
        JOIN ideas i ON i.id = a.idea_id
        JOIN profiles p ON p.id = a.evaluator_id`

func collectDetails(rows pgx.Rows) ([]model.AssignmentDetail, error) {
	defer rows.Close()
	out := []model.AssignmentDetail{}
	for rows.Next() {
		var (
			d      model.AssignmentDetail
			status string
		)
		a, err := scanAssignment(rows, &d.IdeaTitle, &status, &d.EvaluatorName, &d.Evaluated)
		if err != nil {
			return nil, err
		}
		d.Assignment = a
		d.IdeaStatus = model.IdeaStatus(status)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *AssignmentRepository) ListAssignmentsForEvaluator(ctx context.Context, evaluatorID uuid.UUID, activeOnly bool) ([]model.AssignmentDetail, error) {
	r.logger.Debug("Listing evaluator assignments", zap.String("evaluator_id", evaluatorID.String()))
	rows, err := r.db.Query(ctx, assignmentDetailQuery+`
        WHERE a.evaluator_id = $1 AND (NOT $2 OR a.is_active)
        ORDER BY a.assigned_at DESC
    `, evaluatorID, activeOnly)
	if err != nil {
		r.logger.Error("Failed to list evaluator assignments", zap.Error(err))
		return nil, err
	}
	return collectDetails(rows)
}

// ListOverdueAssignments returns one page of active assignments older than
// assignedBefore whose evaluator has not submitted yet, for ideas still under
// review. Rows come after the cursor in (assigned_at, id) order.
func (r *AssignmentRepository) ListOverdueAssignments(ctx context.Context, assignedBefore time.Time, after model.AssignmentCursor, limit int) ([]model.AssignmentDetail, error) {
	rows, err := r.db.Query(ctx, assignmentDetailQuery+`
        WHERE a.is_active AND a.assigned_at < $1 AND i.status = 'under_review'
          AND (a.assigned_at, a.id) > ($2, $3)
          AND NOT EXISTS (
              SELECT 1 FROM evaluations e
              WHERE e.idea_id = a.idea_id
                AND e.evaluator_id = a.evaluator_id
                AND e.evaluation_type = a.evaluation_type
          )
        ORDER BY a.assigned_at ASC, a.id ASC
        LIMIT $4
    `, assignedBefore, after.AssignedAt, after.ID, limit)
	if err != nil {
		r.logger.Error("Failed to list overdue assignments", zap.Error(err))
		return nil, err
	}
	return collectDetails(rows)
}

// ReplaceAssignment locks the idea, swaps the active row for (idea, category) and
// writes the optional transition, the action log and the events in one transaction.
func (r *AssignmentRepository) ReplaceAssignment(ctx context.Context, a model.Assignment, t *model.Transition, action model.ActionLog, events []model.OutboxEvent) (*model.Assignment, error) {
	var replaced *model.Assignment
	err := withTx(ctx, r.db, "replace_assignment", func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT 1 FROM ideas WHERE id = $1 FOR UPDATE`, a.IdeaID); err != nil {
			return err
		}

		prev, err := scanAssignment(tx.QueryRow(ctx, `
            UPDATE evaluator_assignments a
            SET is_active = FALSE
            WHERE a.idea_id = $1 AND a.evaluation_type = $2 AND a.is_active
            RETURNING `+assignmentColumns,
			a.IdeaID, string(a.EvaluationType)))
		switch {
		case err == nil:
			replaced = &prev
		case !errors.Is(err, pgx.ErrNoRows):
			return err
		}

		if _, err := tx.Exec(ctx, `
            INSERT INTO evaluator_assignments (id, idea_id, evaluator_id, evaluation_type, assigned_by, assigned_at, is_active)
            VALUES ($1, $2, $3, $4, $5, $6, TRUE)
        `, a.ID, a.IdeaID, a.EvaluatorID, string(a.EvaluationType), a.AssignedBy, a.AssignedAt); err != nil {
			return mapErr(err)
		}

		if t != nil {
			if err := applyTransition(ctx, tx, *t); err != nil {
				return err
			}
		}
		if err := insertAction(ctx, tx, action); err != nil {
			return err
		}
		return writeEvents(ctx, tx, r.outbox, events)
	})
	if err != nil {
		r.logger.Error("Failed to replace assignment",
			zap.Error(err),
			zap.String("idea_id", a.IdeaID.String()),
			zap.String("evaluation_type", string(a.EvaluationType)),
		)
		return nil, err
	}

	r.logger.Info("Assignment stored",
		zap.String("assignment_id", a.ID.String()),
		zap.String("idea_id", a.IdeaID.String()),
		zap.String("evaluator_id", a.EvaluatorID.String()),
		zap.Bool("replaced", replaced != nil),
	)
	return replaced, nil
}

func (r *AssignmentRepository) DeactivateAssignment(ctx context.Context, ideaID uuid.UUID, category model.RubricCategory, action model.ActionLog) error {
	return withTx(ctx, r.db, "deactivate_assignment", func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
            UPDATE evaluator_assignments
            SET is_active = FALSE
            WHERE idea_id = $1 AND evaluation_type = $2 AND is_active
        `, ideaID, string(category))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: no active %s assignment", model.ErrNotFound, category)
		}
		return insertAction(ctx, tx, action)
	})
}

func (r *AssignmentRepository) EvaluatorWorkloads(ctx context.Context) ([]model.EvaluatorWorkload, error) {
	rows, err := r.db.Query(ctx, `
        SELECT p.id, p.full_name,
               COUNT(a.id),
               COUNT(a.id) FILTER (WHERE e.id IS NULL),
               COUNT(a.id) FILTER (WHERE e.id IS NOT NULL)
        FROM profiles p
        JOIN evaluator_assignments a ON a.evaluator_id = p.id AND a.is_active
        LEFT JOIN evaluations e
               ON e.idea_id = a.idea_id
              AND e.evaluator_id = a.evaluator_id
              AND e.evaluation_type = a.evaluation_type
        GROUP BY p.id, p.full_name
        ORDER BY COUNT(a.id) FILTER (WHERE e.id IS NULL) DESC, p.full_name ASC
    `)
	if err != nil {
		r.logger.Error("Failed to query evaluator workload", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	out := []model.EvaluatorWorkload{}
	for rows.Next() {
		var w model.EvaluatorWorkload
		if err := rows.Scan(&w.EvaluatorID, &w.FullName, &w.Active, &w.Pending, &w.Completed); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

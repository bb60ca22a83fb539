package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"ideaflow/internal/model"
	"ideaflow/pkg/outbox"
)

type IdeaRepository struct {
	db     *pgxpool.Pool
	outbox *outbox.Repository
	logger *zap.Logger
}

func NewIdeaRepository(db *pgxpool.Pool, outboxRepo *outbox.Repository, logger *zap.Logger) *IdeaRepository {
	return &IdeaRepository{db: db, outbox: outboxRepo, logger: logger}
}

const ideaColumns = `id, submitter_id, title, description, category, status,
        implementation_cost, expected_roi, strategic_alignment_score,
        average_evaluation_score, management_feedback, created_at, updated_at,
        submitted_at, reviewed_at, evaluated_at, decided_at, implemented_at`

func scanIdea(row pgx.Row) (*model.Idea, error) {
	var (
		i                model.Idea
		category, status string
	)
	err := row.Scan(
		&i.ID,
		&i.SubmitterID,
		&i.Title,
		&i.Description,
		&category,
		&status,
		&i.ImplementationCost,
		&i.ExpectedROI,
		&i.StrategicAlignmentScore,
		&i.AverageEvaluationScore,
		&i.ManagementFeedback,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.SubmittedAt,
		&i.ReviewedAt,
		&i.EvaluatedAt,
		&i.DecidedAt,
		&i.ImplementedAt,
	)
	if err != nil {
		return nil, err
	}
	i.Category = model.IdeaCategory(category)
	i.Status = model.IdeaStatus(status)
	return &i, nil
}

func (r *IdeaRepository) CreateIdea(ctx context.Context, idea *model.Idea, action model.ActionLog) error {
	r.logger.Debug("Inserting idea",
		zap.String("idea_id", idea.ID.String()),
		zap.String("submitter_id", idea.SubmitterID.String()),
	)
	err := withTx(ctx, r.db, "create_idea", func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
            INSERT INTO ideas (id, submitter_id, title, description, category, status,
                implementation_cost, expected_roi, strategic_alignment_score, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        `, idea.ID, idea.SubmitterID, idea.Title, idea.Description, string(idea.Category), string(idea.Status),
			idea.ImplementationCost, idea.ExpectedROI, idea.StrategicAlignmentScore, idea.CreatedAt, idea.UpdatedAt)
		if err != nil {
			return mapErr(err)
		}
		return insertAction(ctx, tx, action)
	})
	if err != nil {
		r.logger.Error("Failed to insert idea", zap.Error(err), zap.String("idea_id", idea.ID.String()))
		return err
	}
	r.logger.Info("Idea inserted successfully", zap.String("idea_id", idea.ID.String()))
	return nil
}

func (r *IdeaRepository) GetIdea(ctx context.Context, id uuid.UUID) (*model.Idea, error) {
	idea, err := scanIdea(r.db.QueryRow(ctx, `SELECT `+ideaColumns+` FROM ideas WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return idea, nil
}

// UpdateDraft rewrites the editable fields; it matches only while the idea is a draft.
func (r *IdeaRepository) UpdateDraft(ctx context.Context, idea *model.Idea, action model.ActionLog) error {
	return withTx(ctx, r.db, "update_draft", func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
            UPDATE ideas
            SET title = $2, description = $3, category = $4,
                implementation_cost = $5, expected_roi = $6, strategic_alignment_score = $7,
                updated_at = $8
            WHERE id = $1 AND status = 'draft'
        `, idea.ID, idea.Title, idea.Description, string(idea.Category),
			idea.ImplementationCost, idea.ExpectedROI, idea.StrategicAlignmentScore, idea.UpdatedAt)
		if err != nil {
			r.logger.Error("Failed to update draft", zap.Error(err), zap.String("idea_id", idea.ID.String()))
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: idea %s is not a draft", model.ErrConflict, idea.ID)
		}
		return insertAction(ctx, tx, action)
	})
}

func (r *IdeaRepository) ListIdeas(ctx context.Context, f model.IdeaFilter) ([]model.Idea, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.SubmitterID != nil {
		where = append(where, "submitter_id = "+arg(*f.SubmitterID))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		where = append(where, "status = ANY("+arg(statuses)+")")
	}
	if f.Category != "" {
		where = append(where, "category = "+arg(string(f.Category)))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		p := arg("%" + s + "%")
		where = append(where, "(title ILIKE "+p+" OR description ILIKE "+p+")")
	}

	query := `SELECT ` + ideaColumns + ` FROM ideas`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id LIMIT ` + arg(f.Limit) + ` OFFSET ` + arg(f.Offset)

	r.logger.Debug("Listing ideas", zap.Int("conditions", len(where)), zap.Int("limit", f.Limit))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query ideas", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	ideas := []model.Idea{}
	for rows.Next() {
		idea, err := scanIdea(rows)
		if err != nil {
			r.logger.Error("Failed to scan idea row", zap.Error(err))
			return nil, err
		}
		ideas = append(ideas, *idea)
	}
	return ideas, rows.Err()
}

func (r *IdeaRepository) ApplyTransition(ctx context.Context, t model.Transition, events []model.OutboxEvent) error {
	err := withTx(ctx, r.db, "apply_transition", func(tx pgx.Tx) error {
		if err := applyTransition(ctx, tx, t); err != nil {
			return err
		}
		return writeEvents(ctx, tx, r.outbox, events)
	})
	if err != nil {
		r.logger.Warn("Idea transition not applied",
			zap.String("idea_id", t.Idea.ID.String()),
			zap.String("from", string(t.From)),
			zap.String("to", string(t.To)),
			zap.Error(err),
		)
		return err
	}
	r.logger.Info("Idea transition applied",
		zap.String("idea_id", t.Idea.ID.String()),
		zap.String("from", string(t.From)),
		zap.String("to", string(t.To)),
		zap.Int("events", len(events)),
	)
	return nil
}

// CountByStatus, CountByCategory and AverageScore back the analytics overview.
func (r *IdeaRepository) CountByStatus(ctx context.Context) (map[model.IdeaStatus]int, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM ideas GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[model.IdeaStatus]int{}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[model.IdeaStatus(status)] = n
	}
	return out, rows.Err()
}

func (r *IdeaRepository) CountByCategory(ctx context.Context) (map[model.IdeaCategory]int, error) {
	rows, err := r.db.Query(ctx, `SELECT category, COUNT(*) FROM ideas GROUP BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[model.IdeaCategory]int{}
	for rows.Next() {
		var (
			category string
			n        int
		)
		if err := rows.Scan(&category, &n); err != nil {
			return nil, err
		}
		out[model.IdeaCategory(category)] = n
	}
	return out, rows.Err()
}

func (r *IdeaRepository) AverageScore(ctx context.Context) (float64, error) {
	var avg float64
	err := r.db.QueryRow(ctx, `SELECT COALESCE(AVG(average_evaluation_score), 0)::float8 FROM ideas`).Scan(&avg)
	return avg, err
}

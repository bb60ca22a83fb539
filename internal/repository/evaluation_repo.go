package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"ideaflow/internal/model"
	"ideaflow/pkg/outbox"
	"ideaflow/pkg/util"
)

type EvaluationRepository struct {
	db     *pgxpool.Pool
	outbox *outbox.Repository
	logger *zap.Logger
}

func NewEvaluationRepository(db *pgxpool.Pool, outboxRepo *outbox.Repository, logger *zap.Logger) *EvaluationRepository {
	return &EvaluationRepository{db: db, outbox: outboxRepo, logger: logger}
}

const evaluationColumns = `id, idea_id, evaluator_id, evaluation_type, feasibility_score, impact_score,
        innovation_score, overall_score, enrichment_score, COALESCE(feedback, ''), recommendation, created_at`

func collectEvaluations(rows pgx.Rows) ([]model.Evaluation, error) {
	defer rows.Close()
	out := []model.Evaluation{}
	for rows.Next() {
		var (
			e        model.Evaluation
			typ, rec string
		)
		if err := rows.Scan(
			&e.ID,
			&e.IdeaID,
			&e.EvaluatorID,
			&typ,
			&e.FeasibilityScore,
			&e.ImpactScore,
			&e.InnovationScore,
			&e.OverallScore,
			&e.EnrichmentScore,
			&e.Feedback,
			&rec,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.EvaluationType = model.RubricCategory(typ)
		e.Recommendation = model.Recommendation(rec)
		out = append(out, e)
	}
	return out, rows.Err()
}

func listEvaluations(ctx context.Context, q querier, ideaID uuid.UUID) ([]model.Evaluation, error) {
	rows, err := q.Query(ctx, `
        SELECT `+evaluationColumns+`
        FROM evaluations
        WHERE idea_id = $1
        ORDER BY created_at ASC
    `, ideaID)
	if err != nil {
		return nil, err
	}
	return collectEvaluations(rows)
}

func (r *EvaluationRepository) ListEvaluations(ctx context.Context, ideaID uuid.UUID) ([]model.Evaluation, error) {
	out, err := listEvaluations(ctx, r.db, ideaID)
	if err != nil {
		r.logger.Error("Failed to list evaluations", zap.Error(err), zap.String("idea_id", ideaID.String()))
		return nil, err
	}
	return out, nil
}

func (r *EvaluationRepository) ListEvaluationsForIdeas(ctx context.Context, ideaIDs []uuid.UUID) ([]model.Evaluation, error) {
	if len(ideaIDs) == 0 {
		return []model.Evaluation{}, nil
	}
	rows, err := r.db.Query(ctx, `
        SELECT `+evaluationColumns+`
        FROM evaluations
        WHERE idea_id = ANY($1)
        ORDER BY created_at ASC
    `, ideaIDs)
	if err != nil {
		r.logger.Error("Failed to list evaluations", zap.Error(err), zap.Int("ideas", len(ideaIDs)))
		return nil, err
	}
	return collectEvaluations(rows)
}

// SubmitEvaluation serialises submissions per idea with a row lock so that the
// planner always sees every evaluation committed before it.
func (r *EvaluationRepository) SubmitEvaluation(ctx context.Context, ev *model.Evaluation, plan model.EvaluationPlanner) (model.EvaluationOutcome, error) {
	var out model.EvaluationOutcome
	err := withTx(ctx, r.db, "submit_evaluation", func(tx pgx.Tx) error {
		idea, err := scanIdea(tx.QueryRow(ctx, `SELECT `+ideaColumns+` FROM ideas WHERE id = $1 FOR UPDATE`, ev.IdeaID))
		if err != nil {
			return mapErr(err)
		}
		assignments, err := listAssignments(ctx, tx, ev.IdeaID, false)
		if err != nil {
			return err
		}
		evaluations, err := listEvaluations(ctx, tx, ev.IdeaID)
		if err != nil {
			return err
		}

		out, err = plan(*idea, assignments, evaluations)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
            INSERT INTO evaluations (id, idea_id, evaluator_id, evaluation_type, feasibility_score, impact_score,
                innovation_score, overall_score, enrichment_score, feedback, recommendation, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, $12)
        `, ev.ID, ev.IdeaID, ev.EvaluatorID, string(ev.EvaluationType), ev.FeasibilityScore, ev.ImpactScore,
			ev.InnovationScore, ev.OverallScore, ev.EnrichmentScore, ev.Feedback, string(ev.Recommendation), ev.CreatedAt); err != nil {
			if util.IsUniqueViolation(err) {
				return fmt.Errorf("%w: %s for %s", model.ErrAlreadyEvaluated, ev.EvaluationType, ev.IdeaID)
			}
			return err
		}

		if _, err := tx.Exec(ctx, `
            UPDATE ideas SET average_evaluation_score = $2, updated_at = $3 WHERE id = $1
        `, ev.IdeaID, out.AverageScore, ev.CreatedAt); err != nil {
			return fmt.Errorf("failed to update average score: %w", err)
		}
		if err := insertAction(ctx, tx, out.Action); err != nil {
			return err
		}
		if out.Transition != nil {
			if err := applyTransition(ctx, tx, *out.Transition); err != nil {
				return err
			}
		}
		return writeEvents(ctx, tx, r.outbox, out.Events)
	})
	if err != nil {
		r.logger.Warn("Evaluation not stored",
			zap.String("idea_id", ev.IdeaID.String()),
			zap.String("evaluation_type", string(ev.EvaluationType)),
			zap.Error(err),
		)
		return model.EvaluationOutcome{}, err
	}

	r.logger.Info("Evaluation stored",
		zap.String("evaluation_id", ev.ID.String()),
		zap.String("idea_id", ev.IdeaID.String()),
		zap.Bool("idea_evaluated", out.Transition != nil),
	)
	return out, nil
}

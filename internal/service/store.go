package service

import (
	"context"

	"github.com/google/uuid"

	"ideaflow/internal/model"
)

// IdeaStore persists ideas. ApplyTransition writes the status update, the status
// log, the optional action log and the outbox events in one transaction and
// returns model.ErrConflict when the idea is no longer in t.From.
type IdeaStore interface {
	CreateIdea(ctx context.Context, idea *model.Idea, action model.ActionLog) error
	GetIdea(ctx context.Context, id uuid.UUID) (*model.Idea, error)
	UpdateDraft(ctx context.Context, idea *model.Idea, action model.ActionLog) error
	ListIdeas(ctx context.Context, filter model.IdeaFilter) ([]model.Idea, error)
	ApplyTransition(ctx context.Context, t model.Transition, events []model.OutboxEvent) error
}

type AssignmentStore interface {
	ListAssignments(ctx context.Context, ideaID uuid.UUID, activeOnly bool) ([]model.Assignment, error)
	ListActiveAssignmentsForIdeas(ctx context.Context, ideaIDs []uuid.UUID) ([]model.Assignment, error)
	ListAssignmentsForEvaluator(ctx context.Context, evaluatorID uuid.UUID, activeOnly bool) ([]model.AssignmentDetail, error)
	// ReplaceAssignment deactivates the active row for (idea, category), inserts a,
	// and applies t when non-nil, all in one transaction. It returns the replaced row.
	ReplaceAssignment(ctx context.Context, a model.Assignment, t *model.Transition, action model.ActionLog, events []model.OutboxEvent) (*model.Assignment, error)
	DeactivateAssignment(ctx context.Context, ideaID uuid.UUID, category model.RubricCategory, action model.ActionLog) error
	EvaluatorWorkloads(ctx context.Context) ([]model.EvaluatorWorkload, error)
}

type EvaluationStore interface {
	ListEvaluations(ctx context.Context, ideaID uuid.UUID) ([]model.Evaluation, error)
	ListEvaluationsForIdeas(ctx context.Context, ideaIDs []uuid.UUID) ([]model.Evaluation, error)
	// SubmitEvaluation locks the idea, hands the current rows to plan and writes
	// the evaluation together with the planned outcome.
	SubmitEvaluation(ctx context.Context, ev *model.Evaluation, plan model.EvaluationPlanner) (model.EvaluationOutcome, error)
}

type ProfileStore interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*model.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*model.Profile, error)
	ListProfiles(ctx context.Context, filter model.ProfileFilter) ([]model.Profile, error)
	CreateProfile(ctx context.Context, p *model.Profile) error
	UpdateRole(ctx context.Context, id uuid.UUID, role model.Role) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	SetSpecializations(ctx context.Context, id uuid.UUID, specs []model.RubricCategory) error
	SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error
	ConfirmEmail(ctx context.Context, id uuid.UUID) error
	DeleteProfile(ctx context.Context, id uuid.UUID) error
}

type AuditStore interface {
	ListActions(ctx context.Context, ideaID uuid.UUID) ([]model.ActionLog, error)
	ListStatusChanges(ctx context.Context, ideaID uuid.UUID) ([]model.StatusLog, error)
	AppendAction(ctx context.Context, a model.ActionLog) error
}

type GamificationStore interface {
	// AwardPoints returns false when the user already holds e.Reason for e.IdeaID.
	AwardPoints(ctx context.Context, e model.PointsEntry) (bool, error)
	TotalPoints(ctx context.Context, userID uuid.UUID) (int, error)
	ListRecognitions(ctx context.Context, userID uuid.UUID) ([]model.RecognitionEvent, error)
	// InsertRecognition returns false when the achievement was already granted.
	InsertRecognition(ctx context.Context, r model.RecognitionEvent) (bool, error)
	ActivityCounts(ctx context.Context, userID uuid.UUID) (model.ActivityCounts, error)
	Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
	SaveMetrics(ctx context.Context, m model.SubmitterMetrics) error
	ListSubmitterIDs(ctx context.Context) ([]uuid.UUID, error)
}

type DashboardStore interface {
	CountByStatus(ctx context.Context) (map[model.IdeaStatus]int, error)
	CountByCategory(ctx context.Context) (map[model.IdeaCategory]int, error)
	AverageScore(ctx context.Context) (float64, error)
}

// DashboardCache holds the computed overview between invalidations.
type DashboardCache interface {
	GetOverview(ctx context.Context) (*model.DashboardOverview, bool)
	SetOverview(ctx context.Context, o *model.DashboardOverview)
	Invalidate(ctx context.Context) error
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// Point reasons; a user earns each reason at most once per idea. A reason may
// carry a qualifier after a colon.
const (
	PointsReasonSubmitted   = "idea_submitted"
	PointsReasonApproved    = "idea_approved"
	PointsReasonImplemented = "idea_implemented"
	PointsReasonEvaluation  = "evaluation_completed"
)

// EvaluationPointsReason is the reason for scoring one rubric category of an
// idea, so each category an evaluator completes earns separately.
func EvaluationPointsReason(category RubricCategory) string {
	return PointsReasonEvaluation + ":" + string(category)
}

type PointsEntry struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	IdeaID    *uuid.UUID `json:"idea_id,omitempty"`
	Points    int        `json:"points"`
	Reason    string     `json:"reason"`
	CreatedAt time.Time  `json:"created_at"`
}

type AchievementType struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Points      int    `json:"points"`
}

type RecognitionEvent struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	AchievementCode string     `json:"achievement_code"`
	IdeaID          *uuid.UUID `json:"idea_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ActivityCounts are the raw numbers achievements and metrics are derived from.
// Approved includes ideas that went on to be implemented.
type ActivityCounts struct {
	Submitted   int      `json:"submitted"`
	UnderReview int      `json:"under_review"`
	Approved    int      `json:"approved"`
	Rejected    int      `json:"rejected"`
	Implemented int      `json:"implemented"`
	Evaluations int      `json:"evaluations"`
	AvgScore    *float64 `json:"average_score,omitempty"`
}

type SubmitterMetrics struct {
	UserID       uuid.UUID          `json:"user_id"`
	Counts       ActivityCounts     `json:"counts"`
	ApprovalRate float64            `json:"approval_rate"`
	TotalPoints  int                `json:"total_points"`
	Achievements []RecognitionEvent `json:"achievements"`
	ComputedAt   time.Time          `json:"computed_at"`
}

type LeaderboardEntry struct {
	UserID      uuid.UUID `json:"user_id"`
	FullName    string    `json:"full_name"`
	TotalPoints int       `json:"total_points"`
	Rank        int       `json:"rank"`
}

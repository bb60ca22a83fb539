package model

import (
	"time"

	"github.com/google/uuid"
)

// RubricCategory is one of the three fixed evaluation dimensions an idea is scored on.
type RubricCategory string

const (
	RubricTechnology RubricCategory = "technology"
	RubricFinance    RubricCategory = "finance"
	RubricCommercial RubricCategory = "commercial"
)

// RubricCategories in display order.
var RubricCategories = []RubricCategory{RubricTechnology, RubricFinance, RubricCommercial}

func (c RubricCategory) Valid() bool {
	for _, v := range RubricCategories {
		if v == c {
			return true
		}
	}
	return false
}

// Assignment links one evaluator to one idea for one rubric category.
// Reassignment deactivates the old row instead of deleting it.
type Assignment struct {
	ID             uuid.UUID      `json:"id"`
	IdeaID         uuid.UUID      `json:"idea_id"`
	EvaluatorID    uuid.UUID      `json:"evaluator_id"`
	EvaluationType RubricCategory `json:"evaluation_type"`
	AssignedBy     uuid.UUID      `json:"assigned_by"`
	AssignedAt     time.Time      `json:"assigned_at"`
	IsActive       bool           `json:"is_active"`
}

// AssignmentCursor marks the last row of a scan ordered by (assigned_at, id).
// The zero value starts from the beginning.
type AssignmentCursor struct {
	AssignedAt time.Time
	ID         uuid.UUID
}

// AssignmentDetail is an assignment joined with what the evaluator dashboard shows.
type AssignmentDetail struct {
	Assignment
	IdeaTitle     string     `json:"idea_title"`
	IdeaStatus    IdeaStatus `json:"idea_status"`
	EvaluatorName string     `json:"evaluator_name"`
	Evaluated     bool       `json:"evaluated"`
}

type Recommendation string

const (
	RecommendApprove Recommendation = "approve"
	RecommendReject  Recommendation = "reject"
	RecommendRevise  Recommendation = "revise"
	RecommendNeutral Recommendation = "neutral"
)

// Evaluation is immutable once written.
type Evaluation struct {
	ID               uuid.UUID      `json:"id"`
	IdeaID           uuid.UUID      `json:"idea_id"`
	EvaluatorID      uuid.UUID      `json:"evaluator_id"`
	EvaluationType   RubricCategory `json:"evaluation_type"`
	FeasibilityScore float64        `json:"feasibility_score"`
	ImpactScore      float64        `json:"impact_score"`
	InnovationScore  float64        `json:"innovation_score"`
	OverallScore     *float64       `json:"overall_score"`
	EnrichmentScore  float64        `json:"enrichment_score"`
	Feedback         string         `json:"feedback"`
	Recommendation   Recommendation `json:"recommendation"`
	CreatedAt        time.Time      `json:"created_at"`
}

// Completed reports whether the evaluation counts towards progress.
func (e Evaluation) Completed() bool {
	return e.OverallScore != nil
}

// EvaluationOutcome is what the service decides once a new evaluation is visible
// alongside every other row for the idea, under the idea's row lock.
type EvaluationOutcome struct {
	AverageScore *float64
	Action       ActionLog
	Transition   *Transition
	Events       []OutboxEvent
}

// EvaluationPlanner computes the outcome of a submission from the locked idea state.
type EvaluationPlanner func(idea Idea, assignments []Assignment, evaluations []Evaluation) (EvaluationOutcome, error)

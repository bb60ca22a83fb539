package model

import (
	"time"

	"github.com/google/uuid"
)

type IdeaStatus string

const (
	StatusDraft       IdeaStatus = "draft"
	StatusSubmitted   IdeaStatus = "submitted"
	StatusUnderReview IdeaStatus = "under_review"
	StatusEvaluated   IdeaStatus = "evaluated"
	StatusApproved    IdeaStatus = "approved"
	StatusRejected    IdeaStatus = "rejected"
	StatusDeferred    IdeaStatus = "deferred"
	StatusImplemented IdeaStatus = "implemented"
)

// IdeaStatuses in lifecycle order.
var IdeaStatuses = []IdeaStatus{
	StatusDraft,
	StatusSubmitted,
	StatusUnderReview,
	StatusEvaluated,
	StatusApproved,
	StatusRejected,
	StatusDeferred,
	StatusImplemented,
}

func (s IdeaStatus) Valid() bool {
	for _, v := range IdeaStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// ReviewStatuses are the statuses an idea can have while it sits in the review queue.
var ReviewStatuses = []IdeaStatus{StatusSubmitted, StatusUnderReview, StatusEvaluated}

type IdeaCategory string

const (
	CategoryProcessImprovement IdeaCategory = "process_improvement"
	CategoryProduct            IdeaCategory = "product"
	CategoryTechnology         IdeaCategory = "technology"
	CategoryCostReduction      IdeaCategory = "cost_reduction"
	CategoryCustomerExperience IdeaCategory = "customer_experience"
	CategoryOther              IdeaCategory = "other"
)

var IdeaCategories = []IdeaCategory{
	CategoryProcessImprovement,
	CategoryProduct,
	CategoryTechnology,
	CategoryCostReduction,
	CategoryCustomerExperience,
	CategoryOther,
}

func (c IdeaCategory) Valid() bool {
	for _, v := range IdeaCategories {
		if v == c {
			return true
		}
	}
	return false
}

type Idea struct {
	ID                      uuid.UUID    `json:"id"`
	SubmitterID             uuid.UUID    `json:"submitter_id"`
	Title                   string       `json:"title"`
	Description             string       `json:"description"`
	Category                IdeaCategory `json:"category"`
	Status                  IdeaStatus   `json:"status"`
	ImplementationCost      *float64     `json:"implementation_cost,omitempty"`
	ExpectedROI             *float64     `json:"expected_roi,omitempty"`
	StrategicAlignmentScore *float64     `json:"strategic_alignment_score,omitempty"`
	AverageEvaluationScore  *float64     `json:"average_evaluation_score,omitempty"`
	ManagementFeedback      *string      `json:"management_feedback,omitempty"`
	CreatedAt               time.Time    `json:"created_at"`
	UpdatedAt               time.Time    `json:"updated_at"`
	SubmittedAt             *time.Time   `json:"submitted_at,omitempty"`
	ReviewedAt              *time.Time   `json:"reviewed_at,omitempty"`
	EvaluatedAt             *time.Time   `json:"evaluated_at,omitempty"`
	DecidedAt               *time.Time   `json:"decided_at,omitempty"`
	ImplementedAt           *time.Time   `json:"implemented_at,omitempty"`
}

// IdeaFilter narrows idea listings; zero fields match everything.
type IdeaFilter struct {
	SubmitterID *uuid.UUID
	Statuses    []IdeaStatus
	Category    IdeaCategory
	Search      string
	Limit       int
	Offset      int
}

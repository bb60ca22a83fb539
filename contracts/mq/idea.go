package mq

import (
	"time"

	"github.com/google/uuid"
)

// IdeaSubmittedPayload is published when a draft is submitted.
type IdeaSubmittedPayload struct {
	IdeaID      uuid.UUID `json:"idea_id"`
	SubmitterID uuid.UUID `json:"submitter_id"`
	Title       string    `json:"title"`
	Category    string    `json:"category"`
	SubmittedAt time.Time `json:"submitted_at"`
	TraceID     string    `json:"trace_id,omitempty"`
}

// IdeaEvaluatedPayload is published when every assigned category is evaluated.
type IdeaEvaluatedPayload struct {
	IdeaID       uuid.UUID `json:"idea_id"`
	SubmitterID  uuid.UUID `json:"submitter_id"`
	Title        string    `json:"title"`
	AverageScore float64   `json:"average_score"`
	EvaluatedAt  time.Time `json:"evaluated_at"`
	TraceID      string    `json:"trace_id,omitempty"`
}

// IdeaDecidedPayload is a management decision.
type IdeaDecidedPayload struct {
	IdeaID      uuid.UUID `json:"idea_id"`
	SubmitterID uuid.UUID `json:"submitter_id"`
	Title       string    `json:"title"`
	DecidedBy   uuid.UUID `json:"decided_by"`
	Decision    string    `json:"decision"`
	FromStatus  string    `json:"from_status"`
	ToStatus    string    `json:"to_status"`
	Feedback    string    `json:"feedback,omitempty"`
	DecidedAt   time.Time `json:"decided_at"`
	TraceID     string    `json:"trace_id,omitempty"`
}

// IdeaImplementedPayload approved → implemented
type IdeaImplementedPayload struct {
	IdeaID        uuid.UUID `json:"idea_id"`
	SubmitterID   uuid.UUID `json:"submitter_id"`
	Title         string    `json:"title"`
	ImplementedAt time.Time `json:"implemented_at"`
	TraceID       string    `json:"trace_id,omitempty"`
}

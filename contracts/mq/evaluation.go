package mq

import (
	"time"

	"github.com/google/uuid"
)

type EvaluatorAssignedPayload struct {
	AssignmentID   uuid.UUID `json:"assignment_id"`
	IdeaID         uuid.UUID `json:"idea_id"`
	IdeaTitle      string    `json:"idea_title"`
	EvaluatorID    uuid.UUID `json:"evaluator_id"`
	EvaluationType string    `json:"evaluation_type"`
	AssignedBy     uuid.UUID `json:"assigned_by"`
	AssignedAt     time.Time `json:"assigned_at"`
	TraceID        string    `json:"trace_id,omitempty"`
}

type EvaluationSubmittedPayload struct {
	EvaluationID   uuid.UUID `json:"evaluation_id"`
	IdeaID         uuid.UUID `json:"idea_id"`
	EvaluatorID    uuid.UUID `json:"evaluator_id"`
	EvaluationType string    `json:"evaluation_type"`
	OverallScore   float64   `json:"overall_score"`
	CompletedCount int       `json:"completed_count"`
	TotalCount     int       `json:"total_count"`
	SubmittedAt    time.Time `json:"submitted_at"`
	TraceID        string    `json:"trace_id,omitempty"`
}

// AssignmentOverduePayload is published by the runner.
type AssignmentOverduePayload struct {
	AssignmentID   uuid.UUID `json:"assignment_id"`
	IdeaID         uuid.UUID `json:"idea_id"`
	IdeaTitle      string    `json:"idea_title"`
	EvaluatorID    uuid.UUID `json:"evaluator_id"`
	EvaluationType string    `json:"evaluation_type"`
	AssignedAt     time.Time `json:"assigned_at"`
	OverdueHours   int       `json:"overdue_hours"`
	TraceID        string    `json:"trace_id,omitempty"`
}

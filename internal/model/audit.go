package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Action names written to idea_action_log.
const (
	ActionCreated           = "created"
	ActionUpdated           = "updated"
	ActionSubmitted         = "submitted"
	ActionEvaluatorAssigned = "evaluator_assigned"
	ActionEvaluatorRemoved  = "evaluator_removed"
	ActionEvaluated         = "evaluation_submitted"
	ActionDecision          = "decision"
	ActionImplemented       = "implemented"
	ActionComment           = "comment"
)

type ActionLog struct {
	ID        uuid.UUID       `json:"id"`
	IdeaID    uuid.UUID       `json:"idea_id"`
	ActorID   uuid.UUID       `json:"actor_id"`
	Action    string          `json:"action"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type StatusLog struct {
	ID         uuid.UUID  `json:"id"`
	IdeaID     uuid.UUID  `json:"idea_id"`
	FromStatus IdeaStatus `json:"from_status"`
	ToStatus   IdeaStatus `json:"to_status"`
	ChangedBy  uuid.UUID  `json:"changed_by"`
	Reason     string     `json:"reason,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Transition is a planned status change together with everything that must be
// written in the same transaction. Idea holds the post-transition row.
type Transition struct {
	Idea      Idea
	From      IdeaStatus
	To        IdeaStatus
	StatusLog StatusLog
	Action    *ActionLog
}

// OutboxEvent is an event to be inserted into the outbox alongside a write.
type OutboxEvent struct {
	AggregateType string
	AggregateID   uuid.UUID
	RoutingKey    string
	Payload       any
}

// History is the combined audit trail of one idea.
type History struct {
	Actions  []ActionLog `json:"actions"`
	Statuses []StatusLog `json:"statuses"`
}

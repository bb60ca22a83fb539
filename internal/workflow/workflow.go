// Package workflow holds the idea lifecycle: which status changes are legal and
// what a management decision writes. It plans changes; repositories apply them.
package workflow

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ideaflow/internal/model"
)

type DecisionKind string

const (
	DecisionApprove             DecisionKind = "approve"
	DecisionReject              DecisionKind = "reject"
	DecisionNeedsRevision       DecisionKind = "needs_revision"
	DecisionConditionalApproval DecisionKind = "conditional_approval"
	DecisionDefer               DecisionKind = "defer"
)

var decisionTargets = map[DecisionKind]model.IdeaStatus{
	DecisionApprove:             model.StatusApproved,
	DecisionReject:              model.StatusRejected,
	DecisionNeedsRevision:       model.StatusUnderReview,
	DecisionConditionalApproval: model.StatusUnderReview,
	DecisionDefer:               model.StatusDeferred,
}

// decisionSources are the statuses management may decide from.
var decisionSources = map[model.IdeaStatus]bool{
	model.StatusUnderReview: true,
	model.StatusEvaluated:   true,
}

var transitions = map[model.IdeaStatus][]model.IdeaStatus{
	model.StatusDraft:       {model.StatusSubmitted},
	model.StatusSubmitted:   {model.StatusUnderReview},
	model.StatusUnderReview: {model.StatusEvaluated, model.StatusUnderReview, model.StatusApproved, model.StatusRejected, model.StatusDeferred},
	model.StatusEvaluated:   {model.StatusUnderReview, model.StatusApproved, model.StatusRejected, model.StatusDeferred},
	model.StatusDeferred:    {model.StatusUnderReview},
	model.StatusApproved:    {model.StatusImplemented},
}

func (k DecisionKind) Valid() bool {
	_, ok := decisionTargets[k]
	return ok
}

// Target returns the status a decision moves an idea to.
func (k DecisionKind) Target() (model.IdeaStatus, error) {
	to, ok := decisionTargets[k]
	if !ok {
		return "", fmt.Errorf("%w: unknown decision %q", model.ErrValidation, k)
	}
	return to, nil
}

// RequiresFeedback reports whether the submitter must be told why.
func (k DecisionKind) RequiresFeedback() bool {
	return k == DecisionReject || k == DecisionNeedsRevision || k == DecisionConditionalApproval
}

// CanTransition reports whether from → to is an edge of the lifecycle.
func CanTransition(from, to model.IdeaStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal statuses have no outgoing transitions.
func Terminal(s model.IdeaStatus) bool {
	return len(transitions[s]) == 0
}

// PlanTransition validates from → to and returns the idea row as it should look
// afterwards plus the status-log entry.
func PlanTransition(idea model.Idea, to model.IdeaStatus, actor uuid.UUID, reason string, now time.Time) (model.Transition, error) {
	from := idea.Status
	if !CanTransition(from, to) {
		return model.Transition{}, fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, from, to)
	}

	next := idea
	next.Status = to
	next.UpdatedAt = now
	stamp(&next, to, now)

	return model.Transition{
		Idea: next,
		From: from,
		To:   to,
		StatusLog: model.StatusLog{
			ID:         uuid.New(),
			IdeaID:     idea.ID,
			FromStatus: from,
			ToStatus:   to,
			ChangedBy:  actor,
			Reason:     reason,
			CreatedAt:  now,
		},
	}, nil
}

// stamp sets the lifecycle timestamp belonging to status to.
func stamp(idea *model.Idea, to model.IdeaStatus, now time.Time) {
	t := now
	switch to {
	case model.StatusSubmitted:
		idea.SubmittedAt = &t
	case model.StatusUnderReview:
		if idea.ReviewedAt == nil {
			idea.ReviewedAt = &t
		}
		idea.EvaluatedAt = nil
	case model.StatusEvaluated:
		idea.EvaluatedAt = &t
	case model.StatusApproved, model.StatusRejected, model.StatusDeferred:
		idea.DecidedAt = &t
	case model.StatusImplemented:
		idea.ImplementedAt = &t
	}
}

type decisionDetails struct {
	Decision DecisionKind     `json:"decision"`
	From     model.IdeaStatus `json:"from_status"`
	To       model.IdeaStatus `json:"to_status"`
	Feedback string           `json:"feedback,omitempty"`
}

// PlanDecision validates a management decision and returns the status update,
// the status-log entry and the action-log entry to write atomically.
// Revision decisions keep the idea under review but still record the decision;
// evaluated_at is cleared so it re-enters the queue.
func PlanDecision(idea model.Idea, kind DecisionKind, actor uuid.UUID, feedback string, now time.Time) (model.Transition, error) {
	to, err := kind.Target()
	if err != nil {
		return model.Transition{}, err
	}
	if !decisionSources[idea.Status] {
		return model.Transition{}, fmt.Errorf("%w: cannot decide on an idea in %s", model.ErrInvalidTransition, idea.Status)
	}
	feedback = strings.TrimSpace(feedback)
	if kind.RequiresFeedback() && feedback == "" {
		return model.Transition{}, fmt.Errorf("%w: feedback is required for %s", model.ErrValidation, kind)
	}

	t, err := PlanTransition(idea, to, actor, string(kind), now)
	if err != nil {
		return model.Transition{}, err
	}
	if feedback != "" {
		t.Idea.ManagementFeedback = &feedback
	}

	details, err := json.Marshal(decisionDetails{Decision: kind, From: t.From, To: to, Feedback: feedback})
	if err != nil {
		return model.Transition{}, err
	}
	t.Action = &model.ActionLog{
		ID:        uuid.New(),
		IdeaID:    idea.ID,
		ActorID:   actor,
		Action:    model.ActionDecision,
		Details:   details,
		CreatedAt: now,
	}
	return t, nil
}

// Package progress derives per-idea evaluation completion and score averages
// from already-fetched assignment and evaluation rows. It does no I/O.
package progress

import (
	"math"

	"github.com/google/uuid"

	"ideaflow/internal/model"
)

type Status string

const (
	NotAssigned Status = "not_assigned"
	Assigned    Status = "assigned"
	Completed   Status = "completed"
)

// CategoryStatus is the resolved state of one rubric category for one idea.
type CategoryStatus struct {
	Category     model.RubricCategory `json:"category"`
	Status       Status               `json:"status"`
	EvaluatorID  *uuid.UUID           `json:"evaluator_id,omitempty"`
	AssignmentID *uuid.UUID           `json:"assignment_id,omitempty"`
	EvaluationID *uuid.UUID           `json:"evaluation_id,omitempty"`
}

type Progress struct {
	CompletedCount int `json:"completed_count"`
	TotalCount     int `json:"total_count"`
	Percentage     int `json:"progress_percentage"`
}

type Bucket string

const (
	BucketNone  Bucket = "none"
	BucketQueue Bucket = "queue"
	BucketReady Bucket = "ready"
)

type evalKey struct {
	idea      uuid.UUID
	evaluator uuid.UUID
	category  model.RubricCategory
}

// Resolve returns exactly one status per rubric category, in RubricCategories order.
// Only active assignments count; when a category has several, the first one wins.
// A category is completed when the assigned evaluator has a completed evaluation for it.
func Resolve(assignments []model.Assignment, evaluations []model.Evaluation) []CategoryStatus {
	done := make(map[evalKey]uuid.UUID, len(evaluations))
	for _, ev := range evaluations {
		if !ev.Completed() {
			continue
		}
		k := evalKey{ev.IdeaID, ev.EvaluatorID, ev.EvaluationType}
		if _, seen := done[k]; !seen {
			done[k] = ev.ID
		}
	}

	out := make([]CategoryStatus, 0, len(model.RubricCategories))
	for _, cat := range model.RubricCategories {
		cs := CategoryStatus{Category: cat, Status: NotAssigned}
		for _, a := range assignments {
			if !a.IsActive || a.EvaluationType != cat {
				continue
			}
			evaluatorID, assignmentID := a.EvaluatorID, a.ID
			cs.Status = Assigned
			cs.EvaluatorID = &evaluatorID
			cs.AssignmentID = &assignmentID
			if evID, ok := done[evalKey{a.IdeaID, a.EvaluatorID, cat}]; ok {
				cs.Status = Completed
				cs.EvaluationID = &evID
			}
			break
		}
		out = append(out, cs)
	}
	return out
}

// Summarize counts assigned and completed categories.
func Summarize(statuses []CategoryStatus) Progress {
	var p Progress
	for _, s := range statuses {
		switch s.Status {
		case Completed:
			p.CompletedCount++
			p.TotalCount++
		case Assigned:
			p.TotalCount++
		}
	}
	p.Percentage = Percentage(p.CompletedCount, p.TotalCount)
	return p
}

// Percentage is round(completed/total*100), 0 when total is 0.
func Percentage(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

// BucketOf places an idea in the review queue or the ready-for-decision list.
// Ideas with nothing assigned belong to neither.
func BucketOf(p Progress) Bucket {
	switch {
	case p.TotalCount == 0:
		return BucketNone
	case p.CompletedCount == p.TotalCount:
		return BucketReady
	default:
		return BucketQueue
	}
}

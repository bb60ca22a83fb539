// Package matching ranks evaluators for an open rubric category.
package matching

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"ideaflow/internal/model"
)

// Candidate is an evaluator eligible for a category, with the open work they carry.
type Candidate struct {
	EvaluatorID uuid.UUID `json:"evaluator_id"`
	FullName    string    `json:"full_name"`
	Email       string    `json:"email"`
	Pending     int       `json:"pending_evaluations"`
	Current     bool      `json:"currently_assigned"`
}

// Eligible reports whether p may be assigned to category.
func Eligible(p model.Profile, category model.RubricCategory) bool {
	return p.IsActive && p.Role == model.RoleEvaluator && p.HasSpecialization(category)
}

// Rank filters profiles down to eligible evaluators and orders them by pending
// workload ascending, then by name. current marks the evaluator already holding
// the category on this idea, if any.
func Rank(profiles []model.Profile, category model.RubricCategory, workload []model.EvaluatorWorkload, current *uuid.UUID) []Candidate {
	pending := make(map[uuid.UUID]int, len(workload))
	for _, w := range workload {
		pending[w.EvaluatorID] = w.Pending
	}

	out := make([]Candidate, 0, len(profiles))
	for _, p := range profiles {
		if !Eligible(p, category) {
			continue
		}
		out = append(out, Candidate{
			EvaluatorID: p.ID,
			FullName:    p.FullName,
			Email:       p.Email,
			Pending:     pending[p.ID],
			Current:     current != nil && *current == p.ID,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Pending != out[j].Pending {
			return out[i].Pending < out[j].Pending
		}
		return strings.ToLower(out[i].FullName) < strings.ToLower(out[j].FullName)
	})
	return out
}

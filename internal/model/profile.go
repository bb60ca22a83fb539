package model

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleSubmitter  Role = "submitter"
	RoleEvaluator  Role = "evaluator"
	RoleManagement Role = "management"
)

func (r Role) Valid() bool {
	return r == RoleSubmitter || r == RoleEvaluator || r == RoleManagement
}

type Profile struct {
	ID              uuid.UUID        `json:"id"`
	Email           string           `json:"email"`
	FullName        string           `json:"full_name"`
	Role            Role             `json:"role"`
	Department      string           `json:"department,omitempty"`
	Specializations []RubricCategory `json:"specializations"`
	IsActive        bool             `json:"is_active"`
	EmailConfirmed  bool             `json:"email_confirmed"`
	PasswordHash    string           `json:"-"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// HasSpecialization reports whether the profile covers a rubric category.
func (p Profile) HasSpecialization(c RubricCategory) bool {
	for _, s := range p.Specializations {
		if s == c {
			return true
		}
	}
	return false
}

type ProfileFilter struct {
	Role       Role
	ActiveOnly bool
	Search     string
	Limit      int
	Offset     int
}

// EvaluatorWorkload counts open work per evaluator.
type EvaluatorWorkload struct {
	EvaluatorID uuid.UUID `json:"evaluator_id"`
	FullName    string    `json:"full_name"`
	Active      int       `json:"active_assignments"`
	Pending     int       `json:"pending_evaluations"`
	Completed   int       `json:"completed_evaluations"`
}

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

func (a Actor) IsManagement() bool {
	return a.Role == RoleManagement
}

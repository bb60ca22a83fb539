package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ideaflow/internal/model"
	"ideaflow/pkg/logger"
	"ideaflow/pkg/util"
)

// AdminService is the privileged user administration surface. Every method
// requires a management actor.
type AdminService struct {
	profiles    ProfileStore
	assignments AssignmentStore
	logger      *zap.Logger
	now         func() time.Time
}

func NewAdminService(profiles ProfileStore, assignments AssignmentStore, logger *zap.Logger) *AdminService {
	return &AdminService{profiles: profiles, assignments: assignments, logger: logger, now: time.Now}
}

type CreateUserInput struct {
	Email           string                 `json:"email" validate:"required,email,max=254"`
	FullName        string                 `json:"full_name" validate:"required,max=200"`
	Password        string                 `json:"password" validate:"required,min=8,max=72"`
	Role            model.Role             `json:"role" validate:"required,oneof=submitter evaluator management"`
	Department      string                 `json:"department" validate:"max=200"`
	Specializations []model.RubricCategory `json:"specializations" validate:"omitempty,dive,oneof=technology finance commercial"`
	EmailConfirmed  bool                   `json:"email_confirmed"`
}

func requireManagement(actor model.Actor) error {
	if !actor.IsManagement() {
		return fmt.Errorf("%w: management role required", model.ErrForbidden)
	}
	return nil
}

func (s *AdminService) CreateUser(ctx context.Context, actor model.Actor, in CreateUserInput) (*model.Profile, error) {
	if err := requireManagement(actor); err != nil {
		return nil, err
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FullName = strings.TrimSpace(in.FullName)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	hash, err := util.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	p := &model.Profile{
		ID:              uuid.New(),
		Email:           in.Email,
		FullName:        in.FullName,
		Role:            in.Role,
		Department:      strings.TrimSpace(in.Department),
		Specializations: dedupeCategories(in.Specializations),
		IsActive:        true,
		EmailConfirmed:  in.EmailConfirmed,
		PasswordHash:    hash,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.profiles.CreateProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	logger.WithTrace(ctx, s.logger).Info("User created",
		zap.String("user_id", p.ID.String()),
		zap.String("role", string(p.Role)),
		zap.String("created_by", actor.ID.String()),
	)
	return p, nil
}

// DeleteUser refuses to remove the caller or anyone still holding active assignments.
func (s *AdminService) DeleteUser(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	if err := requireManagement(actor); err != nil {
		return err
	}
	if id == actor.ID {
		return fmt.Errorf("%w: cannot delete your own account", model.ErrForbidden)
	}
	if _, err := s.profiles.GetProfile(ctx, id); err != nil {
		return err
	}
	active, err := s.assignments.ListAssignmentsForEvaluator(ctx, id, true)
	if err != nil {
		return fmt.Errorf("list assignments: %w", err)
	}
	if len(active) > 0 {
		return fmt.Errorf("%w: user still holds %d active assignments", model.ErrConflict, len(active))
	}
	if err := s.profiles.DeleteProfile(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	logger.WithTrace(ctx, s.logger).Info("User deleted",
		zap.String("user_id", id.String()),
		zap.String("deleted_by", actor.ID.String()),
	)
	return nil
}

func (s *AdminService) ResetPassword(ctx context.Context, actor model.Actor, id uuid.UUID, password string) error {
	if err := requireManagement(actor); err != nil {
		return err
	}
	if len(password) < 8 || len(password) > 72 {
		return fmt.Errorf("%w: password must be 8 to 72 characters", model.ErrValidation)
	}
	hash, err := util.HashPassword(password)
	if err != nil {
		return err
	}
	return s.profiles.SetPasswordHash(ctx, id, hash)
}

func (s *AdminService) ConfirmEmail(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	if err := requireManagement(actor); err != nil {
		return err
	}
	return s.profiles.ConfirmEmail(ctx, id)
}

// UpdateRole changes a user's role. Management cannot change its own role.
func (s *AdminService) UpdateRole(ctx context.Context, actor model.Actor, id uuid.UUID, role model.Role) error {
	if err := requireManagement(actor); err != nil {
		return err
	}
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", model.ErrValidation, role)
	}
	if id == actor.ID {
		return fmt.Errorf("%w: cannot change your own role", model.ErrForbidden)
	}
	if err := s.profiles.UpdateRole(ctx, id, role); err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	logger.WithTrace(ctx, s.logger).Info("User role updated",
		zap.String("user_id", id.String()),
		zap.String("role", string(role)),
	)
	return nil
}

// ToggleStatus flips is_active and returns the new value.
func (s *AdminService) ToggleStatus(ctx context.Context, actor model.Actor, id uuid.UUID) (bool, error) {
	if err := requireManagement(actor); err != nil {
		return false, err
	}
	if id == actor.ID {
		return false, fmt.Errorf("%w: cannot block your own account", model.ErrForbidden)
	}
	p, err := s.profiles.GetProfile(ctx, id)
	if err != nil {
		return false, err
	}
	next := !p.IsActive
	if err := s.profiles.SetActive(ctx, id, next); err != nil {
		return false, fmt.Errorf("toggle status: %w", err)
	}
	logger.WithTrace(ctx, s.logger).Info("User status toggled",
		zap.String("user_id", id.String()),
		zap.Bool("active", next),
	)
	return next, nil
}

func (s *AdminService) SetSpecializations(ctx context.Context, actor model.Actor, id uuid.UUID, specs []model.RubricCategory) error {
	if err := requireManagement(actor); err != nil {
		return err
	}
	for _, c := range specs {
		if !c.Valid() {
			return fmt.Errorf("%w: unknown specialization %q", model.ErrValidation, c)
		}
	}
	return s.profiles.SetSpecializations(ctx, id, dedupeCategories(specs))
}

func (s *AdminService) List(ctx context.Context, actor model.Actor, filter model.ProfileFilter) ([]model.Profile, error) {
	if err := requireManagement(actor); err != nil {
		return nil, err
	}
	if filter.Role != "" && !filter.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", model.ErrValidation, filter.Role)
	}
	if filter.Limit <= 0 || filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	return s.profiles.ListProfiles(ctx, filter)
}

func dedupeCategories(in []model.RubricCategory) []model.RubricCategory {
	out := make([]model.RubricCategory, 0, len(in))
	for _, c := range model.RubricCategories {
		for _, v := range in {
			if v == c {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

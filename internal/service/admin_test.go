package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ideaflow/internal/model"
	"ideaflow/pkg/util"
)

func TestAdmin_CreateUserAndLogin(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	p, err := f.admin.CreateUser(ctx, f.manager, CreateUserInput{
		Email:           "  Lina@Example.com ",
		FullName:        "Lina",
		Password:        "s3cret-pass",
		Role:            model.RoleEvaluator,
		Specializations: []model.RubricCategory{model.RubricCommercial, model.RubricTechnology, model.RubricCommercial},
	})
	require.NoError(t, err)
	assert.Equal(t, "lina@example.com", p.Email)
	assert.Equal(t, []model.RubricCategory{model.RubricTechnology, model.RubricCommercial}, p.Specializations)
	assert.NotEqual(t, "s3cret-pass", p.PasswordHash)

	_, err = f.admin.CreateUser(ctx, f.manager, CreateUserInput{
		Email: "lina@example.com", FullName: "Dup", Password: "another-pass", Role: model.RoleSubmitter,
	})
	assert.ErrorIs(t, err, model.ErrConflict)

	auth := NewAuthService(f.store, "test-secret", time.Hour, zap.NewNop())
	token, who, err := auth.Login(ctx, "LINA@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, p.ID, who.ID)
	claims, err := util.ParseJWT(token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, p.ID, claims.UserID)
	assert.Equal(t, "evaluator", claims.Role)

	_, _, err = auth.Login(ctx, "lina@example.com", "wrong-pass")
	assert.ErrorIs(t, err, model.ErrInvalidCredential)
	_, _, err = auth.Login(ctx, "nobody@example.com", "s3cret-pass")
	assert.ErrorIs(t, err, model.ErrInvalidCredential)

	active, err := f.admin.ToggleStatus(ctx, f.manager, p.ID)
	require.NoError(t, err)
	assert.False(t, active)
	_, _, err = auth.Login(ctx, "lina@example.com", "s3cret-pass")
	assert.ErrorIs(t, err, model.ErrUserBlocked)
	_, err = auth.Me(ctx, p.ID)
	assert.ErrorIs(t, err, model.ErrUserBlocked)
}

func TestAdmin_CreateUserValidation(t *testing.T) {
	f := newFixture()
	tests := []struct {
		name string
		in   CreateUserInput
	}{
		{"bad email", CreateUserInput{Email: "nope", FullName: "A", Password: "long-enough", Role: model.RoleSubmitter}},
		{"short password", CreateUserInput{Email: "a@b.co", FullName: "A", Password: "short", Role: model.RoleSubmitter}},
		{"unknown role", CreateUserInput{Email: "a@b.co", FullName: "A", Password: "long-enough", Role: "admin"}},
		{"unknown specialization", CreateUserInput{Email: "a@b.co", FullName: "A", Password: "long-enough", Role: model.RoleEvaluator,
			Specializations: []model.RubricCategory{"legal"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.admin.CreateUser(context.Background(), f.manager, tt.in)
			assert.ErrorIs(t, err, model.ErrValidation)
		})
	}
}

func TestAdmin_SelfProtection(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	assert.ErrorIs(t, f.admin.UpdateRole(ctx, f.manager, f.manager.ID, model.RoleSubmitter), model.ErrForbidden)
	_, err := f.admin.ToggleStatus(ctx, f.manager, f.manager.ID)
	assert.ErrorIs(t, err, model.ErrForbidden)
	assert.ErrorIs(t, f.admin.DeleteUser(ctx, f.manager, f.manager.ID), model.ErrForbidden)

	_, err = f.admin.List(ctx, f.submitter, model.ProfileFilter{})
	assert.ErrorIs(t, err, model.ErrForbidden)
}

func TestAdmin_DeleteRefusesActiveAssignments(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	idea := submittedIdea(t, f)
	evaluator := f.evaluators[model.RubricFinance].ID
	_, err := f.assignments.Assign(ctx, f.manager, idea.ID, model.RubricFinance, evaluator)
	require.NoError(t, err)

	assert.ErrorIs(t, f.admin.DeleteUser(ctx, f.manager, evaluator), model.ErrConflict)

	require.NoError(t, f.assignments.Unassign(ctx, f.manager, idea.ID, model.RubricFinance))
	require.NoError(t, f.admin.DeleteUser(ctx, f.manager, evaluator))
	_, err = f.store.GetProfile(ctx, evaluator)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestAdmin_RoleAndSpecializations(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	id := f.submitter.ID

	require.NoError(t, f.admin.UpdateRole(ctx, f.manager, id, model.RoleEvaluator))
	assert.ErrorIs(t, f.admin.UpdateRole(ctx, f.manager, id, "owner"), model.ErrValidation)
	require.NoError(t, f.admin.SetSpecializations(ctx, f.manager, id, []model.RubricCategory{model.RubricFinance}))
	assert.ErrorIs(t, f.admin.SetSpecializations(ctx, f.manager, id, []model.RubricCategory{"hr"}), model.ErrValidation)
	require.NoError(t, f.admin.ConfirmEmail(ctx, f.manager, id))
	require.NoError(t, f.admin.ResetPassword(ctx, f.manager, id, "brand-new-pass"))
	assert.ErrorIs(t, f.admin.ResetPassword(ctx, f.manager, id, "short"), model.ErrValidation)

	p := f.store.profiles[id]
	assert.Equal(t, model.RoleEvaluator, p.Role)
	assert.Equal(t, []model.RubricCategory{model.RubricFinance}, p.Specializations)
	assert.True(t, p.EmailConfirmed)
	assert.True(t, util.CheckPassword("brand-new-pass", p.PasswordHash))
}

package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	mqcontracts "ideaflow/contracts/mq"
	"ideaflow/internal/model"
	"ideaflow/internal/workflow"
)

func evaluatedIdea(t *testing.T, f *fixture) *model.Idea {
	t.Helper()
	idea := submittedIdea(t, f)
	assignAll(t, f, idea.ID)
	for _, c := range model.RubricCategories {
		evaluate(t, f, idea.ID, c, 7)
	}
	got, err := f.store.GetIdea(context.Background(), idea.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusEvaluated, got.Status)
	return got
}

func TestDecide_WritesEverythingTogether(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	idea := evaluatedIdea(t, f)
	actionsBefore, statusesBefore, eventsBefore := len(f.store.actions), len(f.store.statuses), len(f.store.events)

	got, err := f.decisions.Decide(ctx, f.manager, idea.ID, workflow.DecisionReject, "Out of budget this year")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, got.Status)
	require.NotNil(t, got.ManagementFeedback)
	assert.Equal(t, "Out of budget this year", *got.ManagementFeedback)

	assert.Len(t, f.store.actions, actionsBefore+1)
	assert.Len(t, f.store.statuses, statusesBefore+1)
	require.Len(t, f.store.events, eventsBefore+1)

	ev := f.store.events[len(f.store.events)-1]
	assert.Equal(t, mqcontracts.RoutingIdeaDecided, ev.RoutingKey)
	payload := ev.Payload.(mqcontracts.IdeaDecidedPayload)
	assert.Equal(t, "reject", payload.Decision)
	assert.Equal(t, "evaluated", payload.FromStatus)
	assert.Equal(t, "rejected", payload.ToStatus)
	assert.Equal(t, "Out of budget this year", payload.Feedback)

	_, err = f.decisions.Decide(ctx, f.manager, idea.ID, workflow.DecisionApprove, "")
	assert.ErrorIs(t, err, model.ErrInvalidTransition, "rejected is terminal")
}

// scoreDriftStore changes the stored average right after the idea is read, as
// a concurrent evaluation commit would.
type scoreDriftStore struct {
	*memStore
	score float64
}

func (s scoreDriftStore) GetIdea(ctx context.Context, id uuid.UUID) (*model.Idea, error) {
	idea, err := s.memStore.GetIdea(ctx, id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	cur := s.ideas[id]
	score := s.score
	cur.AverageEvaluationScore = &score
	s.ideas[id] = cur
	s.mu.Unlock()
	return idea, nil
}

func TestDecide_KeepsConcurrentAverageScore(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	idea := evaluatedIdea(t, f)
	require.NotNil(t, idea.AverageEvaluationScore)

	decisions := NewDecisionService(scoreDriftStore{memStore: f.store, score: 8.5}, f.store, zap.NewNop())
	_, err := decisions.Decide(ctx, f.manager, idea.ID, workflow.DecisionApprove, "")
	require.NoError(t, err)

	got, err := f.store.GetIdea(ctx, idea.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, got.Status)
	require.NotNil(t, got.AverageEvaluationScore)
	assert.Equal(t, 8.5, *got.AverageEvaluationScore)
}

func TestDecide_Guards(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	idea := evaluatedIdea(t, f)

	_, err := f.decisions.Decide(ctx, f.evaluators[model.RubricFinance], idea.ID, workflow.DecisionApprove, "")
	assert.ErrorIs(t, err, model.ErrForbidden)

	_, err = f.decisions.Decide(ctx, f.manager, idea.ID, workflow.DecisionNeedsRevision, "")
	assert.ErrorIs(t, err, model.ErrValidation)

	eventsBefore := len(f.store.events)
	got, err := f.decisions.Decide(ctx, f.manager, idea.ID, workflow.DecisionNeedsRevision, "Add a cost estimate")
	require.NoError(t, err)
	assert.Equal(t, model.StatusUnderReview, got.Status)
	assert.Nil(t, got.EvaluatedAt)
	assert.Len(t, f.store.events, eventsBefore+1)

	q, err := f.review.Queue(ctx)
	require.NoError(t, err)
	require.Len(t, q.Ready, 1, "all categories are still complete")
	assert.Equal(t, model.StatusUnderReview, q.Ready[0].Status)
}

func TestDecide_SubmittedIsNotDecidable(t *testing.T) {
	f := newFixture()
	idea := submittedIdea(t, f)
	_, err := f.decisions.Decide(context.Background(), f.manager, idea.ID, workflow.DecisionApprove, "")
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
}

func TestLogAction(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	idea := submittedIdea(t, f)

	a, err := f.decisions.LogAction(ctx, f.manager, idea.ID, ActionInput{
		Action:  model.ActionComment,
		Details: json.RawMessage(`{"text":"looks promising"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, f.manager.ID, a.ActorID)

	_, err = f.decisions.LogAction(ctx, f.manager, idea.ID, ActionInput{Action: ""})
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = f.decisions.LogAction(ctx, f.manager, idea.ID, ActionInput{Action: "comment", Details: json.RawMessage(`{bad`)})
	assert.ErrorIs(t, err, model.ErrValidation)

	h, err := f.decisions.History(ctx, idea.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ActionComment, h.Actions[len(h.Actions)-1].Action)
}

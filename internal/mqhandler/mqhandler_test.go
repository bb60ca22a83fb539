package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	mqcontracts "ideaflow/contracts/mq"
	"ideaflow/internal/model"
	"ideaflow/internal/notify"
	"ideaflow/pkg/mq"
	"ideaflow/pkg/util"
)

type memDeduper struct {
	held     map[string]bool
	released int
}

func newMemDeduper() *memDeduper {
	return &memDeduper{held: map[string]bool{}}
}

func (m *memDeduper) AcquireOnce(_ context.Context, handler, key string) bool {
	k := util.DedupKey(handler, key)
	if m.held[k] {
		return false
	}
	m.held[k] = true
	return true
}

func (m *memDeduper) Release(_ context.Context, handler, key string) {
	delete(m.held, util.DedupKey(handler, key))
	m.released++
}

type recordingNotifier struct {
	notices []notify.Notice
	fail    error
}

func (r *recordingNotifier) Notify(_ context.Context, n notify.Notice) error {
	if r.fail != nil {
		return r.fail
	}
	r.notices = append(r.notices, n)
	return nil
}

type recordingAwarder struct {
	awards []award
}

func (r *recordingAwarder) Award(_ context.Context, userID, ideaID uuid.UUID, reason string) error {
	r.awards = append(r.awards, award{userID, ideaID, reason})
	return nil
}

type countingCache struct {
	calls int
	fail  error
}

func (c *countingCache) Invalidate(context.Context) error {
	c.calls++
	return c.fail
}

func delivery(t *testing.T, key, id string, payload any) mq.Delivery {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return mq.Delivery{RoutingKey: key, MessageID: id, Body: body}
}

func TestNotificationHandler_Recipients(t *testing.T) {
	submitter, evaluator, idea := uuid.New(), uuid.New(), uuid.New()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		d         mq.Delivery
		recipient uuid.UUID
		subject   string
	}{
		{
			name: "decision goes to submitter",
			d: delivery(t, mqcontracts.RoutingIdeaDecided, "outbox-1", mqcontracts.IdeaDecidedPayload{
				IdeaID: idea, SubmitterID: submitter, Title: "Solar roof", Decision: "approve",
				FromStatus: "evaluated", ToStatus: "approved", Feedback: "Great", DecidedAt: now,
			}),
			recipient: submitter,
			subject:   `Decision on "Solar roof": approved`,
		},
		{
			name: "evaluated goes to submitter",
			d: delivery(t, mqcontracts.RoutingIdeaEvaluated, "outbox-2", mqcontracts.IdeaEvaluatedPayload{
				IdeaID: idea, SubmitterID: submitter, Title: "Solar roof", AverageScore: 7.5, EvaluatedAt: now,
			}),
			recipient: submitter,
			subject:   `"Solar roof" has been fully evaluated`,
		},
		{
			name: "assignment goes to evaluator",
			d: delivery(t, mqcontracts.RoutingEvaluatorAssigned, "outbox-3", mqcontracts.EvaluatorAssignedPayload{
				IdeaID: idea, IdeaTitle: "Solar roof", EvaluatorID: evaluator, EvaluationType: "technical", AssignedAt: now,
			}),
			recipient: evaluator,
			subject:   `New evaluation assignment: "Solar roof"`,
		},
		{
			name: "overdue goes to evaluator",
			d: delivery(t, mqcontracts.RoutingAssignmentOverdue, "outbox-4", mqcontracts.AssignmentOverduePayload{
				IdeaID: idea, IdeaTitle: "Solar roof", EvaluatorID: evaluator, EvaluationType: "financial", OverdueHours: 80,
			}),
			recipient: evaluator,
			subject:   `Evaluation overdue: "Solar roof"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &recordingNotifier{}
			h := NewNotificationHandler(n, newMemDeduper(), zap.NewNop())
			require.NoError(t, h.Handle(context.Background(), tt.d))
			require.Len(t, n.notices, 1)
			got := n.notices[0]
			assert.Equal(t, tt.recipient, got.UserID)
			assert.Equal(t, tt.subject, got.Subject)
			require.NotNil(t, got.IdeaID)
			assert.Equal(t, idea, *got.IdeaID)
			assert.Equal(t, tt.d.RoutingKey+":"+tt.d.MessageID, got.EventKey)
		})
	}
}

func TestNotificationHandler_DecisionIncludesFeedback(t *testing.T) {
	n := &recordingNotifier{}
	h := NewNotificationHandler(n, newMemDeduper(), zap.NewNop())
	d := delivery(t, mqcontracts.RoutingIdeaDecided, "outbox-7", mqcontracts.IdeaDecidedPayload{
		IdeaID: uuid.New(), SubmitterID: uuid.New(), Title: "T", ToStatus: "rejected", Feedback: "too costly",
	})
	require.NoError(t, h.Handle(context.Background(), d))
	require.Len(t, n.notices, 1)
	assert.Contains(t, n.notices[0].Body, "too costly")
}

func TestNotificationHandler_IgnoresOtherKeys(t *testing.T) {
	n := &recordingNotifier{}
	h := NewNotificationHandler(n, newMemDeduper(), zap.NewNop())
	d := delivery(t, mqcontracts.RoutingIdeaSubmitted, "outbox-1", mqcontracts.IdeaSubmittedPayload{IdeaID: uuid.New()})
	require.NoError(t, h.Handle(context.Background(), d))
	assert.Empty(t, n.notices)
}

func TestNotificationHandler_DedupAndRelease(t *testing.T) {
	n := &recordingNotifier{fail: errors.New("smtp down")}
	dedup := newMemDeduper()
	h := NewNotificationHandler(n, dedup, zap.NewNop())
	d := delivery(t, mqcontracts.RoutingIdeaEvaluated, "outbox-5", mqcontracts.IdeaEvaluatedPayload{
		IdeaID: uuid.New(), SubmitterID: uuid.New(), Title: "T",
	})

	require.Error(t, h.Handle(context.Background(), d))
	assert.Equal(t, 1, dedup.released, "failure frees the key for redelivery")

	n.fail = nil
	require.NoError(t, h.Handle(context.Background(), d))
	require.NoError(t, h.Handle(context.Background(), d))
	assert.Len(t, n.notices, 1, "redelivery after success is skipped")
}

func TestNotificationHandler_BadPayloadIsPermanent(t *testing.T) {
	h := NewNotificationHandler(&recordingNotifier{}, newMemDeduper(), zap.NewNop())
	err := h.Handle(context.Background(), mq.Delivery{
		RoutingKey: mqcontracts.RoutingIdeaDecided,
		MessageID:  "outbox-9",
		Body:       json.RawMessage(`{"idea_id": 12`),
	})
	require.Error(t, err)
	retryable, kind := util.IsRetryableError(err)
	assert.False(t, retryable)
	assert.Equal(t, "permanent", kind)
}

func TestGamificationHandler_Awards(t *testing.T) {
	submitter, evaluator, idea := uuid.New(), uuid.New(), uuid.New()

	tests := []struct {
		name string
		d    mq.Delivery
		want []award
	}{
		{
			name: "submitted",
			d: delivery(t, mqcontracts.RoutingIdeaSubmitted, "outbox-1",
				mqcontracts.IdeaSubmittedPayload{IdeaID: idea, SubmitterID: submitter}),
			want: []award{{submitter, idea, model.PointsReasonSubmitted}},
		},
		{
			name: "approved",
			d: delivery(t, mqcontracts.RoutingIdeaDecided, "outbox-2",
				mqcontracts.IdeaDecidedPayload{IdeaID: idea, SubmitterID: submitter, ToStatus: "approved"}),
			want: []award{{submitter, idea, model.PointsReasonApproved}},
		},
		{
			name: "rejected earns nothing",
			d: delivery(t, mqcontracts.RoutingIdeaDecided, "outbox-3",
				mqcontracts.IdeaDecidedPayload{IdeaID: idea, SubmitterID: submitter, ToStatus: "rejected"}),
			want: nil,
		},
		{
			name: "implemented",
			d: delivery(t, mqcontracts.RoutingIdeaImplemented, "outbox-4",
				mqcontracts.IdeaImplementedPayload{IdeaID: idea, SubmitterID: submitter}),
			want: []award{{submitter, idea, model.PointsReasonImplemented}},
		},
		{
			name: "evaluation credits evaluator",
			d: delivery(t, mqcontracts.RoutingEvaluationSubmitted, "outbox-5",
				mqcontracts.EvaluationSubmittedPayload{IdeaID: idea, EvaluatorID: evaluator, EvaluationType: "finance"}),
			want: []award{{evaluator, idea, "evaluation_completed:finance"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &recordingAwarder{}
			h := NewGamificationHandler(a, newMemDeduper(), zap.NewNop())
			require.NoError(t, h.Handle(context.Background(), tt.d))
			require.NoError(t, h.Handle(context.Background(), tt.d))
			assert.Equal(t, tt.want, a.awards)
		})
	}
}

func TestCacheHandler(t *testing.T) {
	c := &countingCache{}
	h := NewCacheHandler(c, zap.NewNop())
	d := mq.Delivery{RoutingKey: mqcontracts.RoutingIdeaDecided}
	require.NoError(t, h.Handle(context.Background(), d))
	require.NoError(t, h.Handle(context.Background(), d))
	assert.Equal(t, 2, c.calls)

	c.fail = errors.New("redis down")
	assert.Error(t, h.Handle(context.Background(), d))
}

func TestEventKey(t *testing.T) {
	assert.Equal(t, "outbox-3", eventKey(mq.Delivery{MessageID: "outbox-3"}))

	a := eventKey(mq.Delivery{RoutingKey: "idea.submitted", Body: []byte(`{"a":1}`)})
	b := eventKey(mq.Delivery{RoutingKey: "idea.submitted", Body: []byte(`{"a":1}`)})
	c := eventKey(mq.Delivery{RoutingKey: "idea.submitted", Body: []byte(`{"a":2}`)})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

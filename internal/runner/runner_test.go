package runner

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	mqcontracts "ideaflow/contracts/mq"
	"ideaflow/internal/model"
)

var now = time.Date(2026, 6, 10, 8, 30, 0, 0, time.UTC)

// fakeOverdue pages rows in (assigned_at, id) order; rows must be given sorted.
type fakeOverdue struct {
	rows   []model.AssignmentDetail
	before time.Time
	limit  int
	calls  int
}

func (f *fakeOverdue) ListOverdueAssignments(_ context.Context, before time.Time, after model.AssignmentCursor, limit int) ([]model.AssignmentDetail, error) {
	f.before, f.limit = before, limit
	f.calls++
	var out []model.AssignmentDetail
	for _, r := range f.rows {
		if len(out) == limit {
			break
		}
		if afterCursor(r, after) {
			out = append(out, r)
		}
	}
	return out, nil
}

func afterCursor(r model.AssignmentDetail, c model.AssignmentCursor) bool {
	if !r.AssignedAt.Equal(c.AssignedAt) {
		return r.AssignedAt.After(c.AssignedAt)
	}
	return bytes.Compare(r.ID[:], c.ID[:]) > 0
}

type fakeWriter struct {
	written []model.OutboxEvent
	fail    error
}

func (f *fakeWriter) WriteEvents(_ context.Context, events []model.OutboxEvent) error {
	if f.fail != nil {
		return f.fail
	}
	f.written = append(f.written, events...)
	return nil
}

type memMarker struct {
	keys map[string]bool
}

func (m *memMarker) AcquireOnce(_ context.Context, handler, key string) bool {
	k := handler + ":" + key
	if m.keys[k] {
		return false
	}
	m.keys[k] = true
	return true
}

func (m *memMarker) Release(_ context.Context, handler, key string) {
	delete(m.keys, handler+":"+key)
}

type fakeRecalc struct {
	n   int
	err error
}

func (f fakeRecalc) RecalculateAll(context.Context) (int, error) { return f.n, f.err }

func overdueRow(assignedAt time.Time) model.AssignmentDetail {
	return model.AssignmentDetail{
		Assignment: model.Assignment{
			ID:             uuid.New(),
			IdeaID:         uuid.New(),
			EvaluatorID:    uuid.New(),
			EvaluationType: model.RubricCategory("technical"),
			AssignedAt:     assignedAt,
			IsActive:       true,
		},
		IdeaTitle: "Solar roof",
	}
}

func newTestJobs(src *fakeOverdue, w *fakeWriter, m *memMarker) *Jobs {
	j := NewJobs(src, w, m, fakeRecalc{n: 3}, Options{OverdueAfter: 72 * time.Hour, BatchSize: 50}, zap.NewNop())
	j.now = func() time.Time { return now }
	return j
}

func TestCheckOverdue(t *testing.T) {
	row := overdueRow(now.Add(-80 * time.Hour))
	src := &fakeOverdue{rows: []model.AssignmentDetail{row}}
	w := &fakeWriter{}
	j := newTestJobs(src, w, &memMarker{keys: map[string]bool{}})

	n, err := j.CheckOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, now.Add(-72*time.Hour), src.before)
	assert.Equal(t, 50, src.limit)

	require.Len(t, w.written, 1)
	ev := w.written[0]
	assert.Equal(t, mqcontracts.RoutingAssignmentOverdue, ev.RoutingKey)
	assert.Equal(t, mqcontracts.AggregateAssignment, ev.AggregateType)
	assert.Equal(t, row.ID, ev.AggregateID)
	p, ok := ev.Payload.(mqcontracts.AssignmentOverduePayload)
	require.True(t, ok)
	assert.Equal(t, 80, p.OverdueHours)
	assert.Equal(t, row.EvaluatorID, p.EvaluatorID)
	assert.Equal(t, "technical", p.EvaluationType)
	assert.NotEmpty(t, p.TraceID)

	n, err = j.CheckOverdue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "same day reminder is sent once")
	assert.Len(t, w.written, 1)

	j.now = func() time.Time { return now.Add(24 * time.Hour) }
	n, err = j.CheckOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n, "next day reminds again")
}

func TestCheckOverdue_WriteFailureReleasesMarkers(t *testing.T) {
	src := &fakeOverdue{rows: []model.AssignmentDetail{overdueRow(now.Add(-100 * time.Hour))}}
	w := &fakeWriter{fail: errors.New("db down")}
	m := &memMarker{keys: map[string]bool{}}
	j := newTestJobs(src, w, m)

	_, err := j.CheckOverdue(context.Background())
	require.Error(t, err)
	assert.Empty(t, m.keys)

	w.fail = nil
	n, err := j.CheckOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCheckOverdue_PagesPastAlreadyRemindedRows(t *testing.T) {
	var rows []model.AssignmentDetail
	for i := 0; i < 5; i++ {
		rows = append(rows, overdueRow(now.Add(-time.Duration(200-i)*time.Hour)))
	}
	src := &fakeOverdue{rows: rows}
	w := &fakeWriter{}
	m := &memMarker{keys: map[string]bool{}}
	j := NewJobs(src, w, m, fakeRecalc{}, Options{OverdueAfter: 72 * time.Hour, BatchSize: 2}, zap.NewNop())
	j.now = func() time.Time { return now }

	// the two oldest were reminded earlier today
	for _, r := range rows[:2] {
		m.keys[overdueMarker+":"+markerKey(r.ID, now)] = true
	}

	n, err := j.CheckOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, src.calls)
	require.Len(t, w.written, 3)
	for i, ev := range w.written {
		assert.Equal(t, rows[i+2].ID, ev.AggregateID)
	}

	n, err = j.CheckOverdue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRecalculateMetrics(t *testing.T) {
	j := newTestJobs(&fakeOverdue{}, &fakeWriter{}, &memMarker{keys: map[string]bool{}})
	n, err := j.RecalculateMetrics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	j.metrics = fakeRecalc{n: 1, err: context.Canceled}
	n, err = j.RecalculateMetrics(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, n)
}

func TestNextDaily(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		hour int
		want time.Time
	}{
		{"later today", time.Date(2026, 6, 10, 1, 0, 0, 0, time.UTC), 2, time.Date(2026, 6, 10, 2, 0, 0, 0, time.UTC)},
		{"already passed", time.Date(2026, 6, 10, 3, 0, 0, 0, time.UTC), 2, time.Date(2026, 6, 11, 2, 0, 0, 0, time.UTC)},
		{"exactly now", time.Date(2026, 6, 10, 2, 0, 0, 0, time.UTC), 2, time.Date(2026, 6, 11, 2, 0, 0, 0, time.UTC)},
		{"month end", time.Date(2026, 6, 30, 23, 0, 0, 0, time.UTC), 0, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextDaily(tt.now, tt.hour))
		})
	}
}

func TestEvery_RunsImmediatelyAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	done := make(chan struct{})
	go func() {
		Every(ctx, "test", time.Hour, zap.NewNop(), func(context.Context) error {
			calls.Add(1)
			cancel()
			return nil
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Every did not stop after cancel")
	}
	assert.Equal(t, int32(1), calls.Load())
}

package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	mqcontracts "ideaflow/contracts/mq"
	"ideaflow/internal/model"
	"ideaflow/pkg/metrics"
	"ideaflow/pkg/trace"
)

const (
	JobOverdue = "overdue_assignments"
	JobMetrics = "submitter_metrics"

	overdueMarker = "overdue"
)

type OverdueSource interface {
	ListOverdueAssignments(ctx context.Context, assignedBefore time.Time, after model.AssignmentCursor, limit int) ([]model.AssignmentDetail, error)
}

type EventWriter interface {
	WriteEvents(ctx context.Context, events []model.OutboxEvent) error
}

// Marker remembers which reminders were already sent.
type Marker interface {
	AcquireOnce(ctx context.Context, handler, eventKey string) bool
	Release(ctx context.Context, handler, eventKey string)
}

type MetricsRecalculator interface {
	RecalculateAll(ctx context.Context) (int, error)
}

type Options struct {
	OverdueAfter time.Duration
	BatchSize    int
}

// Jobs holds the periodic background work.
type Jobs struct {
	overdue OverdueSource
	events  EventWriter
	marker  Marker
	metrics MetricsRecalculator
	opts    Options
	logger  *zap.Logger
	now     func() time.Time
}

func NewJobs(overdue OverdueSource, events EventWriter, marker Marker, recalculator MetricsRecalculator, opts Options, logger *zap.Logger) *Jobs {
	if opts.OverdueAfter <= 0 {
		opts.OverdueAfter = 72 * time.Hour
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 200
	}
	return &Jobs{
		overdue: overdue,
		events:  events,
		marker:  marker,
		metrics: recalculator,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
}

// markerKey is per assignment per UTC day, so a stalled evaluation is reminded
// at most once a day.
func markerKey(assignmentID uuid.UUID, now time.Time) string {
	return assignmentID.String() + ":" + now.UTC().Format("2006-01-02")
}

// CheckOverdue publishes assignment.overdue for every active assignment older
// than OverdueAfter that has no evaluation yet. It pages through all of them,
// BatchSize rows at a time, and returns the number of events written.
func (j *Jobs) CheckOverdue(ctx context.Context) (int, error) {
	ctx, traceID := trace.Ensure(ctx)
	log := j.logger.With(zap.String("job", JobOverdue), zap.String("trace_id", traceID))
	log.Info("Checking for overdue assignments...")

	now := j.now().UTC()
	before := now.Add(-j.opts.OverdueAfter)

	var (
		cursor  model.AssignmentCursor
		scanned int
		sent    int
	)
	for {
		rows, err := j.overdue.ListOverdueAssignments(ctx, before, cursor, j.opts.BatchSize)
		if err != nil {
			metrics.IncrementJobRun(JobOverdue, "error")
			log.Error("Failed to list overdue assignments", zap.Error(err))
			return sent, fmt.Errorf("list overdue assignments: %w", err)
		}
		scanned += len(rows)

		n, err := j.remind(ctx, rows, now, traceID)
		if err != nil {
			metrics.IncrementJobRun(JobOverdue, "error")
			log.Error("Failed to write overdue events", zap.Error(err))
			return sent, fmt.Errorf("write overdue events: %w", err)
		}
		sent += n

		if len(rows) < j.opts.BatchSize {
			break
		}
		last := rows[len(rows)-1]
		cursor = model.AssignmentCursor{AssignedAt: last.AssignedAt, ID: last.ID}
	}

	metrics.IncrementJobRun(JobOverdue, "success")
	if scanned == 0 {
		log.Debug("No overdue assignments found")
		return 0, nil
	}
	log.Info("Overdue check completed",
		zap.Int("overdue_count", scanned),
		zap.Int("reminders", sent),
	)
	return sent, nil
}

// remind writes one reminder per row not yet reminded today. Markers taken for a
// page are released when its events cannot be written.
func (j *Jobs) remind(ctx context.Context, rows []model.AssignmentDetail, now time.Time, traceID string) (int, error) {
	var (
		events []model.OutboxEvent
		marked []string
	)
	for _, a := range rows {
		key := markerKey(a.ID, now)
		if !j.marker.AcquireOnce(ctx, overdueMarker, key) {
			continue
		}
		marked = append(marked, key)
		events = append(events, model.OutboxEvent{
			AggregateType: mqcontracts.AggregateAssignment,
			AggregateID:   a.ID,
			RoutingKey:    mqcontracts.RoutingAssignmentOverdue,
			Payload: mqcontracts.AssignmentOverduePayload{
				AssignmentID:   a.ID,
				IdeaID:         a.IdeaID,
				IdeaTitle:      a.IdeaTitle,
				EvaluatorID:    a.EvaluatorID,
				EvaluationType: string(a.EvaluationType),
				AssignedAt:     a.AssignedAt,
				OverdueHours:   int(now.Sub(a.AssignedAt).Hours()),
				TraceID:        traceID,
			},
		})
	}
	if len(events) == 0 {
		return 0, nil
	}

	if err := j.events.WriteEvents(ctx, events); err != nil {
		for _, key := range marked {
			j.marker.Release(ctx, overdueMarker, key)
		}
		return 0, err
	}
	return len(events), nil
}

// RecalculateMetrics refreshes the submitter_metrics snapshot.
func (j *Jobs) RecalculateMetrics(ctx context.Context) (int, error) {
	log := j.logger.With(zap.String("job", JobMetrics))
	log.Info("Recalculating submitter metrics...")
	start := j.now()

	n, err := j.metrics.RecalculateAll(ctx)
	if err != nil {
		metrics.IncrementJobRun(JobMetrics, "error")
		log.Error("Submitter metrics recalculation failed", zap.Int("written", n), zap.Error(err))
		return n, err
	}
	metrics.IncrementJobRun(JobMetrics, "success")
	log.Info("Submitter metrics recalculated",
		zap.Int("written", n),
		zap.Duration("took", j.now().Sub(start)),
	)
	return n, nil
}

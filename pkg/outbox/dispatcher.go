package outbox

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"ideaflow/pkg/metrics"
	"ideaflow/pkg/trace"
)

// Store is the outbox storage the Dispatcher needs.
type Store interface {
	ClaimPendingEvents(ctx context.Context, limit int) ([]*Event, error)
	MarkAsSent(ctx context.Context, eventID int64) error
	MarkAsFailed(ctx context.Context, eventID int64, maxRetries int, cause error) error
}

// Publisher sends an encoded event to the broker.
type Publisher interface {
	PublishWithContext(ctx context.Context, routingKey, messageID string, body []byte) error
}

// Dispatcher reads pending outbox events and publishes them.
type Dispatcher struct {
	store      Store
	publisher  Publisher
	logger     *zap.Logger
	maxRetries int
	interval   time.Duration
	batchSize  int
}

// NewDispatcher returns a Dispatcher with default tuning.
func NewDispatcher(store Store, publisher Publisher, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		store:      store,
		publisher:  publisher,
		logger:     logger,
		maxRetries: 5,
		interval:   time.Second,
		batchSize:  100,
	}
}

// WithMaxRetries sets how many failures mark an event failed.
func (d *Dispatcher) WithMaxRetries(maxRetries int) *Dispatcher {
	if maxRetries > 0 {
		d.maxRetries = maxRetries
	}
	return d
}

// WithInterval sets the poll interval.
func (d *Dispatcher) WithInterval(interval time.Duration) *Dispatcher {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

// WithBatchSize sets how many events one poll claims.
func (d *Dispatcher) WithBatchSize(batchSize int) *Dispatcher {
	if batchSize > 0 {
		d.batchSize = batchSize
	}
	return d
}

// Start polls until ctx is done. It blocks.
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("Starting Outbox Dispatcher",
		zap.Int("max_retries", d.maxRetries),
		zap.Duration("interval", d.interval),
		zap.Int("batch_size", d.batchSize),
	)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Outbox Dispatcher stopped")
			return
		case <-ticker.C:
			d.DispatchOnce(ctx)
		}
	}
}

// DispatchOnce publishes one batch and returns how many were sent.
func (d *Dispatcher) DispatchOnce(ctx context.Context) int {
	events, err := d.store.ClaimPendingEvents(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("Failed to claim pending events", zap.Error(err))
		return 0
	}
	if len(events) == 0 {
		return 0
	}

	d.logger.Debug("Processing pending events", zap.Int("count", len(events)))

	sent := 0
	for _, event := range events {
		if err := d.publishEvent(ctx, event); err != nil {
			metrics.IncrementOutboxPublish(event.RoutingKey, StatusFailed)
			d.logger.Error("Failed to publish event",
				zap.Int64("event_id", event.ID),
				zap.String("routing_key", event.RoutingKey),
				zap.Int("retry_count", event.RetryCount),
				zap.Error(err),
			)
			if err := d.store.MarkAsFailed(ctx, event.ID, d.maxRetries, err); err != nil {
				d.logger.Error("Failed to mark event as failed",
					zap.Int64("event_id", event.ID),
					zap.Error(err),
				)
			}
			continue
		}

		metrics.IncrementOutboxPublish(event.RoutingKey, StatusSent)
		if err := d.store.MarkAsSent(ctx, event.ID); err != nil {
			d.logger.Error("Failed to mark event as sent",
				zap.Int64("event_id", event.ID),
				zap.Error(err),
			)
			continue
		}
		sent++
		d.logger.Debug("Event published successfully",
			zap.Int64("event_id", event.ID),
			zap.String("routing_key", event.RoutingKey),
		)
	}
	return sent
}

// publishEvent publishes one event; the payload trace_id travels in the headers.
func (d *Dispatcher) publishEvent(ctx context.Context, event *Event) error {
	ctx = contextWithPayloadTrace(ctx, event.Payload)
	return d.publisher.PublishWithContext(ctx, event.RoutingKey, event.MessageID(), event.Payload)
}

func contextWithPayloadTrace(ctx context.Context, payload json.RawMessage) context.Context {
	var envelope struct {
		TraceID string `json:"trace_id"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil || envelope.TraceID == "" {
		return ctx
	}
	return trace.WithContext(ctx, envelope.TraceID)
}

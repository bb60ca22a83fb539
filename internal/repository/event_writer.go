package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"ideaflow/internal/model"
	"ideaflow/pkg/outbox"
)

// EventWriter inserts standalone events into the outbox, for producers that have
// no business row to write alongside them.
type EventWriter struct {
	db     *pgxpool.Pool
	outbox *outbox.Repository
	logger *zap.Logger
}

func NewEventWriter(db *pgxpool.Pool, outboxRepo *outbox.Repository, logger *zap.Logger) *EventWriter {
	return &EventWriter{db: db, outbox: outboxRepo, logger: logger}
}

func (w *EventWriter) WriteEvents(ctx context.Context, events []model.OutboxEvent) error {
	if len(events) == 0 {
		return nil
	}
	err := withTx(ctx, w.db, "write_events", func(tx pgx.Tx) error {
		return writeEvents(ctx, tx, w.outbox, events)
	})
	if err != nil {
		w.logger.Error("Failed to write outbox events", zap.Error(err), zap.Int("count", len(events)))
		return err
	}
	w.logger.Debug("Outbox events written", zap.Int("count", len(events)))
	return nil
}

package runner

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"ideaflow/pkg/otel"
)

// Every runs fn once immediately and then on each tick until ctx is done.
func Every(ctx context.Context, name string, interval time.Duration, logger *zap.Logger, fn func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	run(ctx, name, logger, fn)
	for {
		select {
		case <-ctx.Done():
			logger.Info("Job stopped", zap.String("job", name))
			return
		case <-ticker.C:
			run(ctx, name, logger, fn)
		}
	}
}

// Daily runs fn every day at hour:00 UTC until ctx is done.
func Daily(ctx context.Context, name string, hour int, logger *zap.Logger, fn func(context.Context) error) {
	for {
		next := nextDaily(time.Now(), hour)
		logger.Info("Next daily run scheduled", zap.String("job", name), zap.Time("at", next))
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Info("Job stopped", zap.String("job", name))
			return
		case <-timer.C:
			run(ctx, name, logger, fn)
		}
	}
}

// nextDaily returns the first hour:00 UTC strictly after now.
func nextDaily(now time.Time, hour int) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func run(ctx context.Context, name string, logger *zap.Logger, fn func(context.Context) error) {
	if ctx.Err() != nil {
		return
	}
	ctx, span := otel.StartSpan(ctx, "job "+name)
	defer span.End()

	logger.Debug("Running job", zap.String("job", name))
	if err := fn(ctx); err != nil {
		span.SetStatus(codes.Error, err.Error())
		logger.Error("Job failed", zap.String("job", name), zap.Error(err))
	}
}

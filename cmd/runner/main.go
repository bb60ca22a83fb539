package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"ideaflow/internal/config"
	"ideaflow/internal/httpserver"
	"ideaflow/internal/repository"
	"ideaflow/internal/runner"
	"ideaflow/internal/service"
	"ideaflow/pkg/db"
	"ideaflow/pkg/logger"
	"ideaflow/pkg/mq"
	"ideaflow/pkg/otel"
	"ideaflow/pkg/outbox"
	"ideaflow/pkg/redis"
	"ideaflow/pkg/util"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger("ideaflow-runner", cfg.LogLevel)
	defer log.Sync()

	log.Info("Starting ideaflow-runner...",
		zap.Duration("interval", cfg.Runner.Interval),
		zap.Duration("overdue_after", cfg.Runner.OverdueAfter),
		zap.Int("metrics_hour", cfg.Runner.MetricsHour),
	)

	shutdownTracing, err := otel.Init("ideaflow-runner", cfg.Otel, log)
	if err != nil {
		log.Fatal("Failed to init tracing", zap.Error(err))
	}
	defer shutdownTracing()

	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()

	rdb, err := redis.NewRedisClient(cfg.Redis, log)
	if err != nil {
		log.Fatal("Failed to init Redis", zap.Error(err))
	}
	defer rdb.Close()

	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	outboxRepo := outbox.NewRepository(dbConn)
	assignmentRepo := repository.NewAssignmentRepository(dbConn, outboxRepo, log)
	eventWriter := repository.NewEventWriter(dbConn, outboxRepo, log)
	gamificationService := service.NewGamificationService(repository.NewGamificationRepository(dbConn, log), log)

	// Reminder markers are per UTC day; the TTL outlives the day boundary.
	markers := util.NewDeduper(rdb, 26*time.Hour, log)

	jobs := runner.NewJobs(assignmentRepo, eventWriter, markers, gamificationService, runner.Options{
		OverdueAfter: cfg.Runner.OverdueAfter,
		BatchSize:    cfg.Runner.BatchSize,
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		outbox.NewDispatcher(outboxRepo, publisher, log).
			WithMaxRetries(cfg.MQ.MaxRetries).
			WithInterval(cfg.MQ.OutboxInterval).
			Start(ctx)
	}()
	go func() {
		defer wg.Done()
		runner.Every(ctx, runner.JobOverdue, cfg.Runner.Interval, log, func(ctx context.Context) error {
			_, err := jobs.CheckOverdue(ctx)
			return err
		})
	}()
	go func() {
		defer wg.Done()
		runner.Daily(ctx, runner.JobMetrics, cfg.Runner.MetricsHour, log, func(ctx context.Context) error {
			_, err := jobs.RecalculateMetrics(ctx)
			return err
		})
	}()

	probes := httpserver.NewProbeRouter(log,
		httpserver.ReadinessCheck{Name: "db", Check: dbConn.Ping},
		httpserver.ReadinessCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}},
		httpserver.ReadinessCheck{Name: "mq", Check: func(context.Context) error {
			if !publisher.IsConnected() {
				return errors.New("publisher disconnected")
			}
			return nil
		}},
	)
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: probes.Engine,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Probe server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down ideaflow-runner gracefully...")
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Probe server shutdown error", zap.Error(err))
	}
	wg.Wait()

	log.Info("ideaflow-runner shutdown complete")
}

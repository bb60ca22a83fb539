package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"ideaflow/internal/cache"
	"ideaflow/internal/config"
	"ideaflow/internal/handler"
	"ideaflow/internal/httpserver"
	"ideaflow/internal/repository"
	"ideaflow/internal/service"
	"ideaflow/pkg/db"
	"ideaflow/pkg/logger"
	"ideaflow/pkg/mq"
	"ideaflow/pkg/otel"
	"ideaflow/pkg/outbox"
	"ideaflow/pkg/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger("ideaflow-api", cfg.LogLevel)
	defer log.Sync()

	log.Info("Starting ideaflow-api...",
		zap.String("db_host", cfg.DB.Host),
		zap.Int("db_port", cfg.DB.Port),
		zap.String("port", cfg.Server.Port),
	)

	shutdownTracing, err := otel.Init("ideaflow-api", cfg.Otel, log)
	if err != nil {
		log.Fatal("Failed to init tracing", zap.Error(err))
	}
	defer shutdownTracing()

	// DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()

	// Redis
	rdb, err := redis.NewRedisClient(cfg.Redis, log)
	if err != nil {
		log.Fatal("Failed to init Redis", zap.Error(err))
	}
	defer rdb.Close()

	// MQ Publisher
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	policy, err := cfg.ScoringPolicy()
	if err != nil {
		log.Fatal("Invalid scoring policy", zap.Error(err))
	}

	// Repositories
	outboxRepo := outbox.NewRepository(dbConn)
	ideaRepo := repository.NewIdeaRepository(dbConn, outboxRepo, log)
	assignmentRepo := repository.NewAssignmentRepository(dbConn, outboxRepo, log)
	evaluationRepo := repository.NewEvaluationRepository(dbConn, outboxRepo, log)
	auditRepo := repository.NewAuditRepository(dbConn, log)
	profileRepo := repository.NewProfileRepository(dbConn, log)
	gamificationRepo := repository.NewGamificationRepository(dbConn, log)
	notificationRepo := repository.NewNotificationRepository(dbConn, log)

	dashboardCache := cache.NewDashboardCache(rdb, cfg.Dashboard.CacheTTL, log)

	// Services
	ideaService := service.NewIdeaService(ideaRepo, log)
	assignmentService := service.NewAssignmentService(ideaRepo, assignmentRepo, profileRepo, log)
	evaluationService := service.NewEvaluationService(ideaRepo, evaluationRepo, policy, log)
	reviewService := service.NewReviewService(ideaRepo, assignmentRepo, evaluationRepo, policy, log)
	decisionService := service.NewDecisionService(ideaRepo, auditRepo, log)
	adminService := service.NewAdminService(profileRepo, assignmentRepo, log)
	authService := service.NewAuthService(profileRepo, cfg.JWT.Secret, cfg.JWT.TTL, log)
	dashboardService := service.NewDashboardService(ideaRepo, assignmentRepo, dashboardCache, log)
	gamificationService := service.NewGamificationService(gamificationRepo, log)
	replayService := outbox.NewReplayService(outboxRepo)

	// Outbox Dispatcher
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	defer stopDispatch()
	dispatcher := outbox.NewDispatcher(outboxRepo, publisher, log).
		WithMaxRetries(cfg.MQ.MaxRetries).
		WithInterval(cfg.MQ.OutboxInterval)
	go dispatcher.Start(dispatchCtx)

	// HTTP
	router := httpserver.NewRouter(httpserver.Handlers{
		Ideas:   handler.NewIdeaHandler(ideaService, log),
		Review:  handler.NewReviewHandler(assignmentService, evaluationService, reviewService, decisionService, log),
		Admin:   handler.NewAdminHandler(adminService, replayService, log),
		Account: handler.NewAccountHandler(authService, gamificationService, dashboardService, notificationRepo, log),
	}, cfg.JWT.Secret, log,
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
		Handler: router.Engine,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down ideaflow-api gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	stopDispatch()

	log.Info("ideaflow-api shutdown complete")
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	mqcontracts "ideaflow/contracts/mq"
	"ideaflow/internal/cache"
	"ideaflow/internal/config"
	"ideaflow/internal/httpserver"
	"ideaflow/internal/mqhandler"
	"ideaflow/internal/notify"
	"ideaflow/internal/repository"
	"ideaflow/internal/service"
	"ideaflow/pkg/db"
	"ideaflow/pkg/logger"
	"ideaflow/pkg/mq"
	"ideaflow/pkg/otel"
	"ideaflow/pkg/redis"
	"ideaflow/pkg/util"
)

type consumerDef struct {
	queue   string
	keys    []string
	handler mq.MessageHandler
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger("ideaflow-worker", cfg.LogLevel)
	defer log.Sync()

	log.Info("Starting ideaflow-worker...")

	shutdownTracing, err := otel.Init("ideaflow-worker", cfg.Otel, log)
	if err != nil {
		log.Fatal("Failed to init tracing", zap.Error(err))
	}
	defer shutdownTracing()

	// Redis
	rdb, err := redis.NewRedisClient(cfg.Redis, log)
	if err != nil {
		log.Fatal("Failed to init Redis", zap.Error(err))
	}
	defer rdb.Close()

	deduper := util.NewDeduper(rdb, time.Hour, log)
	retryCounter := util.NewRetryCounter(rdb, time.Hour)

	// DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("DB connection failed", zap.Error(err))
	}
	defer dbConn.Close()

	profileRepo := repository.NewProfileRepository(dbConn, log)
	notificationRepo := repository.NewNotificationRepository(dbConn, log)
	gamificationRepo := repository.NewGamificationRepository(dbConn, log)

	var senders []notify.Sender
	if cfg.Mail.Host != "" {
		senders = append(senders, notify.NewEmailSender(cfg.Mail, log))
	}
	if cfg.Webhook.URL != "" {
		senders = append(senders, notify.NewWebhookSender(cfg.Webhook, log))
	}
	if len(senders) == 0 {
		log.Warn("No notification channel configured, notifications will only be skipped")
	}
	notifier := notify.NewNotifier(notificationRepo, profileRepo, log, senders...)

	notificationHandler := mqhandler.NewNotificationHandler(notifier, deduper, log)
	gamificationHandler := mqhandler.NewGamificationHandler(service.NewGamificationService(gamificationRepo, log), deduper, log)
	cacheHandler := mqhandler.NewCacheHandler(cache.NewDashboardCache(rdb, cfg.Dashboard.CacheTTL, log), log)

	defs := []consumerDef{
		{queue: "ideaflow.notify.q", keys: mqcontracts.AllRoutingKeys, handler: notificationHandler.Handle},
		{queue: "ideaflow.gamification.q", keys: mqhandler.GamificationRoutingKeys, handler: gamificationHandler.Handle},
		{queue: "ideaflow.cache.q", keys: mqhandler.CacheRoutingKeys, handler: cacheHandler.Handle},
	}

	consumers := make([]*mq.Consumer, 0, len(defs))
	for _, def := range defs {
		log.Info("Init consumer", zap.String("queue", def.queue), zap.Strings("routing_keys", def.keys))
		consumer, err := mq.NewConsumer(cfg.MQ.URL, def.queue, def.keys, log,
			mq.WithRetry(retryCounter, cfg.MQ.MaxRetries),
			mq.WithRetryable(util.Retryable),
		)
		if err != nil {
			log.Fatal("Consumer init failed", zap.String("queue", def.queue), zap.Error(err))
		}
		defer consumer.Close()
		consumer.SetHandler(def.handler)

		go func(queue string) {
			if err := consumer.StartConsuming(); err != nil {
				log.Fatal("Consumer crashed", zap.String("queue", queue), zap.Error(err))
			}
		}(def.queue)
		consumers = append(consumers, consumer)
	}

	// Probes
	probes := httpserver.NewProbeRouter(log,
		httpserver.ReadinessCheck{Name: "db", Check: dbConn.Ping},
		httpserver.ReadinessCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}},
		httpserver.ReadinessCheck{Name: "mq", Check: func(context.Context) error {
			for _, c := range consumers {
				if !c.IsConnected() {
					return errors.New("consumer disconnected")
				}
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

	log.Info("Worker running", zap.Int("consumers", len(consumers)), zap.Strings("channels", channelNames(notifier)))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down ideaflow-worker gracefully...")
	for _, c := range consumers {
		c.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Probe server shutdown error", zap.Error(err))
	}

	log.Info("ideaflow-worker shutdown complete")
}

func channelNames(n *notify.Notifier) []string {
	var out []string
	for _, ch := range n.Channels() {
		out = append(out, string(ch))
	}
	return out
}

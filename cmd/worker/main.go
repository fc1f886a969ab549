package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/clinicore/booking-api/internal/config"
	"github.com/clinicore/booking-api/internal/repository/postgres"
	"github.com/clinicore/booking-api/pkg/logger"
	redisbroker "github.com/clinicore/booking-api/pkg/messaging/redis"
	"github.com/clinicore/booking-api/pkg/metrics"
	pkgworker "github.com/clinicore/booking-api/pkg/worker"
)

// cleanupInterval is how often processed outbox rows are purged.
const cleanupInterval = time.Hour

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		appLogger.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	outboxRepo := postgres.NewOutboxRepository(db)

	broker, err := redisbroker.NewRedisBroker(cfg.Redis.ToBrokerConfig(), &appLogger.ZL)
	if err != nil {
		appLogger.Fatal(err, "failed to connect to message broker")
	}
	defer broker.Close()

	m := metrics.NewMetrics("booking", "worker")

	processor := pkgworker.NewOutboxProcessor(outboxRepo, broker, cfg.Outbox.ToProcessorConfig(), appLogger, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Start(ctx)

	retention := time.Duration(cfg.Outbox.RetentionHours) * time.Hour
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := processor.Cleanup(ctx, retention); err != nil {
					appLogger.Error(err, "outbox cleanup failed")
				}
			}
		}
	}()

	appLogger.Info("worker started",
		"poll_interval_seconds", cfg.Outbox.PollIntervalSeconds,
		"retention_hours", cfg.Outbox.RetentionHours,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	appLogger.Info("shutting down worker")
	cancel()
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/clinicore/booking-api/internal/clock"
	"github.com/clinicore/booking-api/internal/config"
	appointmentHandler "github.com/clinicore/booking-api/internal/handler/appointment"
	healthHandler "github.com/clinicore/booking-api/internal/handler/health"
	"github.com/clinicore/booking-api/internal/middleware"
	"github.com/clinicore/booking-api/internal/repository/postgres"
	"github.com/clinicore/booking-api/internal/router"
	eventService "github.com/clinicore/booking-api/internal/service/event"
	lifecycleService "github.com/clinicore/booking-api/internal/service/lifecycle"
	"github.com/clinicore/booking-api/internal/worker"
	"github.com/clinicore/booking-api/pkg/logger"
	"github.com/clinicore/booking-api/pkg/metrics"
)

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

	appointmentRepo := postgres.NewAppointmentRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	m := metrics.NewMetrics("booking", "api")

	emitter := eventService.NewService(outboxRepo, appLogger)
	lifecycleSvc := lifecycleService.NewService(appointmentRepo, emitter, clock.NewSystem(), appLogger, m)

	// The derivation sweep runs inside the API process; the outbox drain
	// lives in cmd/worker.
	sweep := worker.NewSweepWorker(appointmentRepo, lifecycleSvc, cfg.Sweep.ToWorkerConfig(), appLogger, m)

	aptHandler := appointmentHandler.NewHandler(lifecycleSvc)
	hHandler := healthHandler.NewHandler(db)

	r := router.NewRouter(router.Config{
		RateLimit: rate.Limit(cfg.RateLimit.RequestsPerSecond),
		RateBurst: cfg.RateLimit.Burst,
		CORS:      middleware.DefaultCORSConfig(),
		Timeout: middleware.TimeoutConfig{
			Duration: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		},
	}, aptHandler, hHandler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sweep.Start(ctx)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		appLogger.Info("starting api server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal(err, "server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	appLogger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(err, "graceful shutdown failed")
	}
}

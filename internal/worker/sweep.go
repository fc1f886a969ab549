package worker

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/clinicore/booking-api/internal/model"
	"github.com/clinicore/booking-api/internal/repository"
	"github.com/clinicore/booking-api/internal/service/lifecycle"
	apperrors "github.com/clinicore/booking-api/pkg/errors"
	"github.com/clinicore/booking-api/pkg/logger"
	"github.com/clinicore/booking-api/pkg/metrics"
)

// SweepConfig controls the periodic derivation sweep.
type SweepConfig struct {
	// Interval between sweeps. The admin UI refreshed statuses every
	// five minutes; sweeps default to the same cadence.
	Interval time.Duration
}

// SweepWorker periodically recomputes the status of every non-terminal
// appointment. Each appointment is handled independently so one bad record
// never aborts the rest of the sweep.
type SweepWorker struct {
	repo      repository.AppointmentRepository
	lifecycle *lifecycle.Service
	config    SweepConfig
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewSweepWorker(
	repo repository.AppointmentRepository,
	svc *lifecycle.Service,
	config SweepConfig,
	logger *logger.Logger,
	m *metrics.Metrics,
) *SweepWorker {
	if config.Interval <= 0 {
		config.Interval = 5 * time.Minute
	}
	return &SweepWorker{
		repo:      repo,
		lifecycle: svc,
		config:    config,
		logger:    logger,
		metrics:   m,
	}
}

func (w *SweepWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	w.logger.Info("starting derivation sweep", "interval", w.config.Interval.String())

	// Run once on startup so statuses are fresh after a restart.
	w.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("shutting down derivation sweep")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep over all non-terminal appointments.
func (w *SweepWorker) RunOnce(ctx context.Context) {
	timer := prometheus.NewTimer(w.metrics.SweepDuration)
	defer timer.ObserveDuration()
	w.metrics.SweepRuns.Inc()

	appointments, err := w.repo.ListActive(ctx)
	if err != nil {
		w.metrics.SweepErrors.Inc()
		w.logger.Error(err, "failed to list active appointments")
		return
	}
	w.metrics.SweepBatchSize.Set(float64(len(appointments)))

	for _, apt := range appointments {
		w.sweepOne(ctx, apt)
	}
}

func (w *SweepWorker) sweepOne(ctx context.Context, apt *model.Appointment) {
	updated, err := w.lifecycle.DeriveAndMaybePersist(ctx, apt)
	if err != nil {
		// A stale write means a manual transition committed between our
		// read and write. The manual action wins; nothing to retry.
		if errors.Is(err, apperrors.ErrStaleWrite) {
			w.logger.Debug("sweep lost a write race, skipping",
				"appointment_id", apt.ID.String())
			return
		}
		w.metrics.SweepErrors.Inc()
		w.logger.Error(err, "failed to derive status",
			"appointment_id", apt.ID.String())
		return
	}

	if updated.Status != apt.Status {
		w.metrics.SweepUpdates.Inc()
		w.metrics.Transitions.WithLabelValues(string(apt.Status), string(updated.Status)).Inc()
		w.logger.Info("derived status persisted",
			"appointment_id", apt.ID.String(),
			"from", string(apt.Status),
			"to", string(updated.Status))
	}
}

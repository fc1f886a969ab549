package worker

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/booking-api/internal/clock"
	"github.com/clinicore/booking-api/internal/model"
	"github.com/clinicore/booking-api/internal/repository/memory"
	"github.com/clinicore/booking-api/internal/service/lifecycle"
	apperrors "github.com/clinicore/booking-api/pkg/errors"
	"github.com/clinicore/booking-api/pkg/logger"
	"github.com/clinicore/booking-api/pkg/metrics"
)

// Metrics register on the default prometheus registry, so the package
// shares a single instance across tests.
var testMetrics = metrics.NewMetrics("booking_test", "sweep")

var sweepBase = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type nullEmitter struct{}

func (nullEmitter) Emit(context.Context, string, *model.LifecycleEvent) {}

// failingSaveRepo makes writes to one appointment fail so the sweep's
// error isolation can be observed.
type failingSaveRepo struct {
	*memory.AppointmentRepository
	failID uuid.UUID
	err    error
}

func (r *failingSaveRepo) Save(ctx context.Context, apt *model.Appointment, expectedVersion int64) (*model.Appointment, error) {
	if apt.ID == r.failID {
		return nil, r.err
	}
	return r.AppointmentRepository.Save(ctx, apt, expectedVersion)
}

func seedSweepAppointment(t *testing.T, repo *memory.AppointmentRepository, status model.AppointmentStatus, start time.Time) *model.Appointment {
	t.Helper()
	apt := &model.Appointment{
		ID:             uuid.New(),
		ClientID:       uuid.New(),
		TherapistID:    uuid.New(),
		ScheduledStart: start,
		ScheduledEnd:   start.Add(time.Hour),
		Status:         status,
		Amount:         decimal.RequireFromString("50.00"),
		Currency:       "EUR",
		PaymentStatus:  model.PaymentStatusUnpaid,
	}
	require.NoError(t, repo.Create(context.Background(), apt))
	return apt
}

func TestRunOnceUpdatesElapsedAppointments(t *testing.T) {
	repo := memory.NewAppointmentRepository()
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	svc := lifecycle.NewService(repo, nullEmitter{}, clock.NewFixed(sweepBase), log, testMetrics)
	w := NewSweepWorker(repo, svc, SweepConfig{}, log, testMetrics)

	elapsed := seedSweepAppointment(t, repo, model.AppointmentStatusConfirmed, sweepBase.Add(-26*time.Hour))
	today := seedSweepAppointment(t, repo, model.AppointmentStatusConfirmed, sweepBase.Add(3*time.Hour))
	future := seedSweepAppointment(t, repo, model.AppointmentStatusPending, sweepBase.Add(72*time.Hour))

	w.RunOnce(context.Background())

	got, err := repo.Get(context.Background(), elapsed.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusNoShow, got.Status)
	require.Len(t, got.History, 1)
	assert.Equal(t, lifecycle.ActorSystem, got.History[0].Actor)

	got, err = repo.Get(context.Background(), today.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusUpcoming, got.Status)

	got, err = repo.Get(context.Background(), future.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusUpcoming, got.Status)
}

func TestRunOnceIsolatesPerAppointmentErrors(t *testing.T) {
	inner := memory.NewAppointmentRepository()
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})

	bad := seedSweepAppointment(t, inner, model.AppointmentStatusConfirmed, sweepBase.Add(-26*time.Hour))
	good := seedSweepAppointment(t, inner, model.AppointmentStatusConfirmed, sweepBase.Add(-30*time.Hour))

	repo := &failingSaveRepo{
		AppointmentRepository: inner,
		failID:                bad.ID,
		err:                   errors.New("write failed"),
	}
	svc := lifecycle.NewService(repo, nullEmitter{}, clock.NewFixed(sweepBase), log, testMetrics)
	w := NewSweepWorker(repo, svc, SweepConfig{}, log, testMetrics)

	w.RunOnce(context.Background())

	got, err := inner.Get(context.Background(), good.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusNoShow, got.Status)

	got, err = inner.Get(context.Background(), bad.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusConfirmed, got.Status)
}

func TestRunOnceSkipsStaleWritesWithoutError(t *testing.T) {
	inner := memory.NewAppointmentRepository()
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})

	racy := seedSweepAppointment(t, inner, model.AppointmentStatusConfirmed, sweepBase.Add(-26*time.Hour))
	other := seedSweepAppointment(t, inner, model.AppointmentStatusConfirmed, sweepBase.Add(-48*time.Hour))

	repo := &failingSaveRepo{
		AppointmentRepository: inner,
		failID:                racy.ID,
		err:                   apperrors.ErrStaleWrite,
	}
	svc := lifecycle.NewService(repo, nullEmitter{}, clock.NewFixed(sweepBase), log, testMetrics)
	w := NewSweepWorker(repo, svc, SweepConfig{}, log, testMetrics)

	w.RunOnce(context.Background())

	got, err := inner.Get(context.Background(), other.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusNoShow, got.Status)

	// The racy appointment keeps whatever the manual transition wrote.
	got, err = inner.Get(context.Background(), racy.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusConfirmed, got.Status)
}

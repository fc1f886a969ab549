// Package memory provides in-process implementations of the storage
// collaborator with the same compare-and-swap semantics as the postgres
// repositories. Used by unit tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/booking-api/internal/model"
	"github.com/clinicore/booking-api/internal/repository"
	apperrors "github.com/clinicore/booking-api/pkg/errors"
)

type AppointmentRepository struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]*model.Appointment
}

func NewAppointmentRepository() *AppointmentRepository {
	return &AppointmentRepository{
		appointments: make(map[uuid.UUID]*model.Appointment),
	}
}

var _ repository.AppointmentRepository = (*AppointmentRepository)(nil)

func (r *AppointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	appointment.Version = 1
	appointment.CreatedAt = time.Now()
	appointment.UpdatedAt = appointment.CreatedAt

	r.appointments[appointment.ID] = appointment.Clone()
	return nil
}

func (r *AppointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.appointments[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return stored.Clone(), nil
}

func (r *AppointmentRepository) Save(ctx context.Context, appointment *model.Appointment, expectedVersion int64) (*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.appointments[appointment.ID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return nil, apperrors.ErrStaleWrite
	}

	saved := appointment.Clone()
	saved.Version = expectedVersion + 1
	saved.CreatedAt = stored.CreatedAt
	saved.UpdatedAt = time.Now()

	r.appointments[appointment.ID] = saved
	return saved.Clone(), nil
}

func (r *AppointmentRepository) ListActive(ctx context.Context) ([]*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var active []*model.Appointment
	for _, apt := range r.appointments {
		if !apt.Status.IsTerminal() {
			active = append(active, apt.Clone())
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].ScheduledStart.Before(active[j].ScheduledStart)
	})
	return active, nil
}

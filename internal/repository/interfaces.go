package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/booking-api/internal/model"
)

// All repository interfaces in one file
type (
	// AppointmentRepository is the storage collaborator for appointments.
	// Save is an optimistic compare-and-swap: it fails with
	// errors.ErrStaleWrite when the stored version no longer matches
	// expectedVersion, and increments the version on success.
	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		Save(ctx context.Context, appointment *model.Appointment, expectedVersion int64) (*model.Appointment, error)
		// ListActive returns appointments whose stored status is
		// non-terminal, for the derivation sweep.
		ListActive(ctx context.Context) ([]*model.Appointment, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error
		MoveToDeadLetter(ctx context.Context, event *model.OutboxEvent) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)

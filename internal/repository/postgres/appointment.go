package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clinicore/booking-api/internal/model"
	"github.com/clinicore/booking-api/internal/repository"
	apperrors "github.com/clinicore/booking-api/pkg/errors"
)

// historyJSON stores the append-only status history as a JSONB column.
type historyJSON []model.StatusChange

func (h historyJSON) Value() (driver.Value, error) {
	if h == nil {
		return "[]", nil
	}
	return json.Marshal(h)
}

func (h *historyJSON) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, h)
	case string:
		return json.Unmarshal([]byte(v), h)
	case nil:
		*h = nil
		return nil
	}
	return fmt.Errorf("unsupported history column type %T", src)
}

// cancellationJSON stores the optional cancellation record as JSONB.
type cancellationJSON struct {
	*model.Cancellation
}

func (c cancellationJSON) Value() (driver.Value, error) {
	if c.Cancellation == nil {
		return nil, nil
	}
	return json.Marshal(c.Cancellation)
}

func (c *cancellationJSON) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		c.Cancellation = &model.Cancellation{}
		return json.Unmarshal(v, c.Cancellation)
	case string:
		c.Cancellation = &model.Cancellation{}
		return json.Unmarshal([]byte(v), c.Cancellation)
	case nil:
		c.Cancellation = nil
		return nil
	}
	return fmt.Errorf("unsupported cancellation column type %T", src)
}

type appointmentRow struct {
	model.Appointment
	HistoryCol      historyJSON      `db:"history"`
	CancellationCol cancellationJSON `db:"cancellation"`
}

func (r *appointmentRow) toModel() *model.Appointment {
	apt := r.Appointment
	apt.History = r.HistoryCol
	apt.Cancellation = r.CancellationCol.Cancellation
	return &apt
}

type appointmentRepository struct {
	db *sqlx.DB
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentRepository {
	return &appointmentRepository{db: db}
}

const appointmentColumns = `
	id, client_id, therapist_id, scheduled_start, scheduled_end,
	status, amount, currency, payment_status, payment_method,
	cancellation, history, version, created_at, updated_at
`

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (` + appointmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	appointment.Version = 1
	appointment.CreatedAt = time.Now()
	appointment.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		appointment.ID,
		appointment.ClientID,
		appointment.TherapistID,
		appointment.ScheduledStart,
		appointment.ScheduledEnd,
		appointment.Status,
		appointment.Amount,
		appointment.Currency,
		appointment.PaymentStatus,
		appointment.PaymentMethod,
		cancellationJSON{appointment.Cancellation},
		historyJSON(appointment.History),
		appointment.Version,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	var row appointmentRow
	err := r.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return row.toModel(), nil
}

// Save updates the row only when the stored version still matches
// expectedVersion, bumping the version in the same statement.
func (r *appointmentRepository) Save(ctx context.Context, appointment *model.Appointment, expectedVersion int64) (*model.Appointment, error) {
	query := `
		UPDATE appointments
		SET scheduled_start = $1,
			scheduled_end = $2,
			status = $3,
			payment_status = $4,
			payment_method = $5,
			cancellation = $6,
			history = $7,
			version = version + 1,
			updated_at = $8
		WHERE id = $9 AND version = $10
	`
	appointment.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		appointment.ScheduledStart,
		appointment.ScheduledEnd,
		appointment.Status,
		appointment.PaymentStatus,
		appointment.PaymentMethod,
		cancellationJSON{appointment.Cancellation},
		historyJSON(appointment.History),
		appointment.UpdatedAt,
		appointment.ID,
		expectedVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save appointment: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		// Either the row vanished or someone else advanced the version.
		var exists bool
		if err := r.db.GetContext(ctx, &exists,
			`SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, appointment.ID); err != nil {
			return nil, fmt.Errorf("failed to check appointment existence: %w", err)
		}
		if !exists {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.ErrStaleWrite
	}

	saved := appointment.Clone()
	saved.Version = expectedVersion + 1
	return saved, nil
}

func (r *appointmentRepository) ListActive(ctx context.Context) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE status NOT IN ('completed', 'cancelled', 'no_show')
		ORDER BY scheduled_start ASC
	`

	var rows []appointmentRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list active appointments: %w", err)
	}

	appointments := make([]*model.Appointment, 0, len(rows))
	for i := range rows {
		appointments = append(appointments, rows[i].toModel())
	}
	return appointments, nil
}

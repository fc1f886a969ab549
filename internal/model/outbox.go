package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "PENDING"
	OutboxStatusProcessed  OutboxStatus = "PROCESSED"
	OutboxStatusFailed     OutboxStatus = "FAILED"
	OutboxStatusDeadLetter OutboxStatus = "DEAD_LETTER"
)

// Lifecycle event types published for the notification collaborator.
const (
	EventAppointmentCancelled       = "appointment.cancelled"
	EventAppointmentRescheduled     = "appointment.rescheduled"
	EventAppointmentCompleted       = "appointment.completed"
	EventAppointmentNoShow          = "appointment.no_show"
	EventAppointmentPaymentReceived = "appointment.payment_received"
	EventAppointmentStatusDerived   = "appointment.status_derived"
)

// LifecycleEvent is the payload carried by every outbox event.
type LifecycleEvent struct {
	AppointmentID uuid.UUID         `json:"appointment_id"`
	FromStatus    AppointmentStatus `json:"from_status"`
	ToStatus      AppointmentStatus `json:"to_status"`
	At            time.Time         `json:"at"`
	Actor         string            `json:"actor,omitempty"`
	Cancellation  *Cancellation     `json:"cancellation,omitempty"`
	PaymentMethod *string           `json:"payment_method,omitempty"`
}

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       string          `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	RetryAt      *time.Time      `db:"retry_at" json:"retry_at,omitempty"`
}

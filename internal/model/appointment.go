package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AppointmentStatus string

const (
	AppointmentStatusUpcoming      AppointmentStatus = "upcoming"
	AppointmentStatusPending       AppointmentStatus = "pending"
	AppointmentStatusConfirmed     AppointmentStatus = "confirmed"
	AppointmentStatusClientArrived AppointmentStatus = "client_arrived"
	AppointmentStatusCompleted     AppointmentStatus = "completed"
	AppointmentStatusCancelled     AppointmentStatus = "cancelled"
	AppointmentStatusNoShow        AppointmentStatus = "no_show"
	AppointmentStatusRescheduled   AppointmentStatus = "rescheduled"
)

// IsTerminal reports whether the status has no legal outgoing transitions.
// Rescheduled appointments re-enter upcoming immediately, so rescheduled
// never rests as a stored status; derivation still treats it as terminal.
func (s AppointmentStatus) IsTerminal() bool {
	switch s {
	case AppointmentStatusCompleted, AppointmentStatusCancelled, AppointmentStatusNoShow:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// StatusChange is a single history entry. History is append-only.
type StatusChange struct {
	FromStatus AppointmentStatus `db:"from_status" json:"from_status"`
	ToStatus   AppointmentStatus `db:"to_status" json:"to_status"`
	At         time.Time         `db:"at" json:"at"`
	Actor      string            `db:"actor" json:"actor"`
}

// Cancellation records the policy outcome of a cancelled appointment.
// It exists iff status == cancelled.
type Cancellation struct {
	Reason        string          `db:"reason" json:"reason"`
	RequestedAt   time.Time       `db:"requested_at" json:"requested_at"`
	PolicyApplied string          `db:"policy_applied" json:"policy_applied"`
	RefundAmount  decimal.Decimal `db:"refund_amount" json:"refund_amount"`
	FeeAmount     decimal.Decimal `db:"fee_amount" json:"fee_amount"`
}

type Appointment struct {
	ID             uuid.UUID         `db:"id" json:"id"`
	ClientID       uuid.UUID         `db:"client_id" json:"client_id"`
	TherapistID    uuid.UUID         `db:"therapist_id" json:"therapist_id"`
	ScheduledStart time.Time         `db:"scheduled_start" json:"scheduled_start"`
	ScheduledEnd   time.Time         `db:"scheduled_end" json:"scheduled_end"`
	Status         AppointmentStatus `db:"status" json:"status"`
	Amount         decimal.Decimal   `db:"amount" json:"amount"`
	Currency       string            `db:"currency" json:"currency"`
	PaymentStatus  PaymentStatus     `db:"payment_status" json:"payment_status"`
	PaymentMethod  *string           `db:"payment_method" json:"payment_method,omitempty"`
	Cancellation   *Cancellation     `db:"cancellation" json:"cancellation,omitempty"`
	History        []StatusChange    `db:"history" json:"history"`
	Version        int64             `db:"version" json:"version"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updated_at"`
}

// Clone returns a deep copy. Repositories hand out clones so callers never
// share mutable history slices with stored state.
func (a *Appointment) Clone() *Appointment {
	cp := *a
	if a.PaymentMethod != nil {
		m := *a.PaymentMethod
		cp.PaymentMethod = &m
	}
	if a.Cancellation != nil {
		c := *a.Cancellation
		cp.Cancellation = &c
	}
	cp.History = make([]StatusChange, len(a.History))
	copy(cp.History, a.History)
	return &cp
}

// AppendHistory records a transition without mutating prior entries.
func (a *Appointment) AppendHistory(from, to AppointmentStatus, at time.Time, actor string) {
	a.History = append(a.History, StatusChange{
		FromStatus: from,
		ToStatus:   to,
		At:         at,
		Actor:      actor,
	})
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason" binding:"required,oneof=client_request illness emergency schedule_conflict weather personal other"`
}

type RescheduleAppointmentRequest struct {
	StartTime time.Time `json:"start_time" binding:"required"`
	EndTime   time.Time `json:"end_time" binding:"required"`
}

type MarkPaidRequest struct {
	Method string `json:"method" binding:"required,oneof=card cash transfer bizum"`
}

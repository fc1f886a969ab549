// Package transition enforces which manual status changes are legal.
package transition

import (
	"github.com/clinicore/booking-api/internal/model"
	apperrors "github.com/clinicore/booking-api/pkg/errors"
)

// legal maps each status to the set of statuses an actor may move it to.
// Completed, cancelled and no_show are terminal: no outgoing entries.
var legal = map[model.AppointmentStatus]map[model.AppointmentStatus]bool{
	model.AppointmentStatusUpcoming: {
		model.AppointmentStatusCancelled:     true,
		model.AppointmentStatusRescheduled:   true,
		model.AppointmentStatusCompleted:     true,
		model.AppointmentStatusClientArrived: true,
	},
	model.AppointmentStatusPending: {
		model.AppointmentStatusCancelled:   true,
		model.AppointmentStatusRescheduled: true,
	},
	model.AppointmentStatusConfirmed: {
		model.AppointmentStatusCancelled:     true,
		model.AppointmentStatusRescheduled:   true,
		model.AppointmentStatusCompleted:     true,
		model.AppointmentStatusClientArrived: true,
	},
	model.AppointmentStatusClientArrived: {},
}

// Validate returns nil when from -> to is in the legal table. A non-terminal
// self-transition is always allowed: payment-only updates re-save the record
// without changing status.
func Validate(from, to model.AppointmentStatus) error {
	if from == to && !from.IsTerminal() && from != model.AppointmentStatusRescheduled {
		return nil
	}

	if legal[from][to] {
		return nil
	}

	return apperrors.NewInvalidTransition(string(from), string(to))
}

// CanMarkNoShow reports whether an actor may explicitly record a no-show.
// The derivation engine also produces no_show on elapsed windows; manual
// marking follows the same non-terminal rule.
func CanMarkNoShow(from model.AppointmentStatus) error {
	switch from {
	case model.AppointmentStatusUpcoming,
		model.AppointmentStatusPending,
		model.AppointmentStatusConfirmed,
		model.AppointmentStatusClientArrived:
		return nil
	}
	return apperrors.NewInvalidTransition(string(from), string(model.AppointmentStatusNoShow))
}

// Package derive recomputes the status an appointment should display from
// its stored status and the current time. The original admin UI did this
// inline in a timer callback; here it is a pure function over an explicit
// clock so the orchestrator decides what to persist.
package derive

import (
	"time"

	"github.com/clinicore/booking-api/internal/model"
)

// Status returns the status the appointment should carry at now.
//
// Terminal statuses (and rescheduled, which only exists transiently in
// history) are never overwritten. For the live statuses:
//
//  1. a fully elapsed time window derives no_show
//  2. a window starting today or later derives upcoming
//  3. anything else keeps the stored status
//
// The function is idempotent: feeding its output back in with the same
// now yields the same result.
func Status(stored model.AppointmentStatus, start, end, now time.Time) model.AppointmentStatus {
	if stored.IsTerminal() || stored == model.AppointmentStatusRescheduled {
		return stored
	}

	if end.Before(now) {
		return model.AppointmentStatusNoShow
	}

	if !start.Before(startOfDay(now)) {
		return model.AppointmentStatusUpcoming
	}

	return stored
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

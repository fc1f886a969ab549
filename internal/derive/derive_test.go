package derive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/clinicore/booking-api/internal/model"
)

var now = time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

func TestStatusElapsedWindowBecomesNoShow(t *testing.T) {
	start := now.Add(-2 * time.Hour)
	end := now.Add(-1 * time.Hour)

	got := Status(model.AppointmentStatusUpcoming, start, end, now)
	assert.Equal(t, model.AppointmentStatusNoShow, got)
}

func TestStatusYesterdayBecomesNoShow(t *testing.T) {
	start := now.Add(-26 * time.Hour)
	end := now.Add(-25 * time.Hour)

	for _, stored := range []model.AppointmentStatus{
		model.AppointmentStatusUpcoming,
		model.AppointmentStatusPending,
		model.AppointmentStatusConfirmed,
		model.AppointmentStatusClientArrived,
	} {
		assert.Equal(t, model.AppointmentStatusNoShow, Status(stored, start, end, now),
			"stored=%s", stored)
	}
}

func TestStatusTodayOrFutureBecomesUpcoming(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
	}{
		{"later today", now.Add(3 * time.Hour)},
		{"earlier today but not elapsed", now.Add(-1 * time.Hour)},
		{"tomorrow", now.Add(24 * time.Hour)},
		{"next week", now.Add(7 * 24 * time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Status(model.AppointmentStatusPending, tt.start, tt.start.Add(time.Hour), now)
			assert.Equal(t, model.AppointmentStatusUpcoming, got)
		})
	}
}

func TestStatusTerminalNeverOverwritten(t *testing.T) {
	start := now.Add(-26 * time.Hour)
	end := now.Add(-25 * time.Hour)

	for _, stored := range []model.AppointmentStatus{
		model.AppointmentStatusCompleted,
		model.AppointmentStatusCancelled,
		model.AppointmentStatusNoShow,
		model.AppointmentStatusRescheduled,
	} {
		assert.Equal(t, stored, Status(stored, start, end, now), "stored=%s", stored)
	}
}

func TestStatusIsIdempotent(t *testing.T) {
	windows := []struct {
		start, end time.Time
	}{
		{now.Add(-26 * time.Hour), now.Add(-25 * time.Hour)},
		{now.Add(-2 * time.Hour), now.Add(-time.Hour)},
		{now.Add(-time.Hour), now.Add(time.Hour)},
		{now.Add(3 * time.Hour), now.Add(4 * time.Hour)},
		{now.Add(50 * time.Hour), now.Add(51 * time.Hour)},
	}
	statuses := []model.AppointmentStatus{
		model.AppointmentStatusUpcoming,
		model.AppointmentStatusPending,
		model.AppointmentStatusConfirmed,
		model.AppointmentStatusClientArrived,
		model.AppointmentStatusCompleted,
		model.AppointmentStatusCancelled,
		model.AppointmentStatusNoShow,
	}

	for _, w := range windows {
		for _, s := range statuses {
			once := Status(s, w.start, w.end, now)
			twice := Status(once, w.start, w.end, now)
			assert.Equal(t, once, twice, "stored=%s start=%s", s, w.start)
		}
	}
}

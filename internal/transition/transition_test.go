package transition

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/booking-api/internal/model"
	apperrors "github.com/clinicore/booking-api/pkg/errors"
)

var allStatuses = []model.AppointmentStatus{
	model.AppointmentStatusUpcoming,
	model.AppointmentStatusPending,
	model.AppointmentStatusConfirmed,
	model.AppointmentStatusClientArrived,
	model.AppointmentStatusCompleted,
	model.AppointmentStatusCancelled,
	model.AppointmentStatusNoShow,
	model.AppointmentStatusRescheduled,
}

func TestValidateLegalTransitions(t *testing.T) {
	legal := []struct{ from, to model.AppointmentStatus }{
		{model.AppointmentStatusUpcoming, model.AppointmentStatusCancelled},
		{model.AppointmentStatusPending, model.AppointmentStatusCancelled},
		{model.AppointmentStatusConfirmed, model.AppointmentStatusCancelled},
		{model.AppointmentStatusUpcoming, model.AppointmentStatusRescheduled},
		{model.AppointmentStatusPending, model.AppointmentStatusRescheduled},
		{model.AppointmentStatusConfirmed, model.AppointmentStatusRescheduled},
		{model.AppointmentStatusUpcoming, model.AppointmentStatusCompleted},
		{model.AppointmentStatusConfirmed, model.AppointmentStatusCompleted},
		{model.AppointmentStatusUpcoming, model.AppointmentStatusClientArrived},
		{model.AppointmentStatusConfirmed, model.AppointmentStatusClientArrived},
		// payment-only self transitions
		{model.AppointmentStatusUpcoming, model.AppointmentStatusUpcoming},
		{model.AppointmentStatusPending, model.AppointmentStatusPending},
		{model.AppointmentStatusConfirmed, model.AppointmentStatusConfirmed},
		{model.AppointmentStatusClientArrived, model.AppointmentStatusClientArrived},
	}

	for _, tt := range legal {
		assert.NoError(t, Validate(tt.from, tt.to), "%s -> %s should be legal", tt.from, tt.to)
	}
}

func TestValidateRejectsEverythingElse(t *testing.T) {
	isLegal := func(from, to model.AppointmentStatus) bool {
		if from == to && !from.IsTerminal() && from != model.AppointmentStatusRescheduled {
			return true
		}
		switch from {
		case model.AppointmentStatusUpcoming, model.AppointmentStatusConfirmed:
			switch to {
			case model.AppointmentStatusCancelled, model.AppointmentStatusRescheduled,
				model.AppointmentStatusCompleted, model.AppointmentStatusClientArrived:
				return true
			}
		case model.AppointmentStatusPending:
			switch to {
			case model.AppointmentStatusCancelled, model.AppointmentStatusRescheduled:
				return true
			}
		}
		return false
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			if isLegal(from, to) {
				continue
			}
			err := Validate(from, to)
			require.Error(t, err, "%s -> %s should be rejected", from, to)

			var invalid *apperrors.InvalidTransitionError
			require.True(t, errors.As(err, &invalid))
			assert.Equal(t, string(from), invalid.From)
			assert.Equal(t, string(to), invalid.To)
		}
	}
}

func TestValidateTerminalStatesHaveNoExit(t *testing.T) {
	terminals := []model.AppointmentStatus{
		model.AppointmentStatusCompleted,
		model.AppointmentStatusCancelled,
		model.AppointmentStatusNoShow,
	}

	for _, from := range terminals {
		for _, to := range allStatuses {
			assert.Error(t, Validate(from, to), "%s -> %s", from, to)
		}
	}
}

func TestCanMarkNoShow(t *testing.T) {
	for _, from := range allStatuses {
		err := CanMarkNoShow(from)
		if from.IsTerminal() || from == model.AppointmentStatusRescheduled {
			assert.Error(t, err, "from=%s", from)
		} else {
			assert.NoError(t, err, "from=%s", from)
		}
	}
}

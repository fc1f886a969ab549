// Package lifecycle coordinates status derivation, transition validation
// and the cancellation policy against the appointment store. All mutations
// of an appointment go through here.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/booking-api/internal/clock"
	"github.com/clinicore/booking-api/internal/derive"
	"github.com/clinicore/booking-api/internal/model"
	"github.com/clinicore/booking-api/internal/policy"
	"github.com/clinicore/booking-api/internal/repository"
	"github.com/clinicore/booking-api/internal/transition"
	apperrors "github.com/clinicore/booking-api/pkg/errors"
	"github.com/clinicore/booking-api/pkg/logger"
	"github.com/clinicore/booking-api/pkg/metrics"
)

// ActorSystem is recorded on history entries written by the derivation
// sweep rather than a person.
const ActorSystem = "system"

// maxSaveAttempts bounds the reload-and-retry loop around optimistic
// version conflicts before surfacing Conflict.
const maxSaveAttempts = 3

type Service struct {
	repo    repository.AppointmentRepository
	emitter Emitter
	clock   clock.Clock
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// Emitter mirrors event.Emitter; declared locally so the orchestrator can
// be tested with a stub.
type Emitter interface {
	Emit(ctx context.Context, eventType string, event *model.LifecycleEvent)
}

func NewService(repo repository.AppointmentRepository, emitter Emitter, clk clock.Clock, logger *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		repo:    repo,
		emitter: emitter,
		clock:   clk,
		logger:  logger,
		metrics: m,
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return s.repo.Get(ctx, id)
}

// PreviewCancellation evaluates the cancellation policy for an appointment
// at the current instant without changing anything. The UI shows this in
// the cancel dialog before the user confirms.
func (s *Service) PreviewCancellation(ctx context.Context, id uuid.UUID) (*policy.Decision, error) {
	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if apt.Amount.Sign() < 0 {
		return nil, &apperrors.PolicyComputationError{Amount: apt.Amount.String()}
	}
	d := policy.Evaluate(apt.ScheduledStart, s.clock.Now(), apt.Amount)
	return &d, nil
}

// DeriveAndMaybePersist recomputes the display status of the given
// appointment and persists it when it changed. A version conflict means a
// manual transition won the race; the derived value is discarded and the
// caller gets ErrStaleWrite to decide whether to reload.
func (s *Service) DeriveAndMaybePersist(ctx context.Context, apt *model.Appointment) (*model.Appointment, error) {
	now := s.clock.Now()
	derived := derive.Status(apt.Status, apt.ScheduledStart, apt.ScheduledEnd, now)
	if derived == apt.Status {
		return apt, nil
	}

	updated := apt.Clone()
	from := updated.Status
	updated.Status = derived
	updated.AppendHistory(from, derived, now, ActorSystem)

	saved, err := s.repo.Save(ctx, updated, apt.Version)
	if err != nil {
		return nil, err
	}

	s.emitter.Emit(ctx, model.EventAppointmentStatusDerived, &model.LifecycleEvent{
		AppointmentID: saved.ID,
		FromStatus:    from,
		ToStatus:      derived,
		At:            now,
		Actor:         ActorSystem,
	})
	return saved, nil
}

// RefreshStatus is the on-demand variant of the derivation sweep for a
// single appointment id, with the usual retry on stale writes.
func (s *Service) RefreshStatus(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	var result *model.Appointment
	err := s.withRetry(ctx, id, func(apt *model.Appointment) error {
		saved, err := s.DeriveAndMaybePersist(ctx, apt)
		if err != nil {
			return err
		}
		result = saved
		return nil
	})
	return result, err
}

// Cancel applies the cancellation policy and moves the appointment to
// cancelled, recording the refund decision for audit.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason, actor string) (*model.Appointment, error) {
	var result *model.Appointment
	err := s.withRetry(ctx, id, func(apt *model.Appointment) error {
		if err := transition.Validate(apt.Status, model.AppointmentStatusCancelled); err != nil {
			return err
		}
		if apt.Amount.Sign() < 0 {
			s.logger.Error(nil, "negative amount on appointment, refusing to compute policy",
				"appointment_id", apt.ID.String(), "amount", apt.Amount.String())
			return &apperrors.PolicyComputationError{Amount: apt.Amount.String()}
		}

		now := s.clock.Now()
		decision := policy.Evaluate(apt.ScheduledStart, now, apt.Amount)

		updated := apt.Clone()
		from := updated.Status
		updated.Status = model.AppointmentStatusCancelled
		updated.Cancellation = &model.Cancellation{
			Reason:        reason,
			RequestedAt:   now,
			PolicyApplied: string(decision.Tier),
			RefundAmount:  decision.RefundAmount,
			FeeAmount:     decision.FeeAmount,
		}
		if updated.PaymentStatus == model.PaymentStatusPaid && decision.RefundAmount.Sign() > 0 {
			updated.PaymentStatus = model.PaymentStatusRefunded
		}
		updated.AppendHistory(from, updated.Status, now, actor)

		saved, err := s.repo.Save(ctx, updated, apt.Version)
		if err != nil {
			return err
		}

		s.emitter.Emit(ctx, model.EventAppointmentCancelled, &model.LifecycleEvent{
			AppointmentID: saved.ID,
			FromStatus:    from,
			ToStatus:      saved.Status,
			At:            now,
			Actor:         actor,
			Cancellation:  saved.Cancellation,
		})
		result = saved
		return nil
	})
	return result, err
}

// Reschedule moves the time window and resets the appointment to upcoming.
// It is modeled as cancel-and-recreate-in-place: the history records the
// passage through rescheduled so the linkage survives on the same record.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, newStart, newEnd time.Time, actor string) (*model.Appointment, error) {
	var result *model.Appointment
	err := s.withRetry(ctx, id, func(apt *model.Appointment) error {
		if err := transition.Validate(apt.Status, model.AppointmentStatusRescheduled); err != nil {
			return err
		}

		now := s.clock.Now()
		if !newEnd.After(newStart) {
			return apperrors.NewInvalidTimeRange("end must be after start")
		}
		if !newStart.After(now) {
			return apperrors.NewInvalidTimeRange("cannot reschedule into the past")
		}

		updated := apt.Clone()
		from := updated.Status
		updated.ScheduledStart = newStart
		updated.ScheduledEnd = newEnd
		updated.Status = model.AppointmentStatusUpcoming
		updated.AppendHistory(from, model.AppointmentStatusRescheduled, now, actor)
		updated.AppendHistory(model.AppointmentStatusRescheduled, model.AppointmentStatusUpcoming, now, actor)

		saved, err := s.repo.Save(ctx, updated, apt.Version)
		if err != nil {
			return err
		}

		s.emitter.Emit(ctx, model.EventAppointmentRescheduled, &model.LifecycleEvent{
			AppointmentID: saved.ID,
			FromStatus:    from,
			ToStatus:      saved.Status,
			At:            now,
			Actor:         actor,
		})
		result = saved
		return nil
	})
	return result, err
}

// MarkCompleted closes out a finished session. A session that has not
// started yet cannot be completed.
func (s *Service) MarkCompleted(ctx context.Context, id uuid.UUID, actor string) (*model.Appointment, error) {
	var result *model.Appointment
	err := s.withRetry(ctx, id, func(apt *model.Appointment) error {
		if err := transition.Validate(apt.Status, model.AppointmentStatusCompleted); err != nil {
			return err
		}

		now := s.clock.Now()
		if now.Before(apt.ScheduledStart) {
			return apperrors.ErrCompletionTooEarly
		}

		saved, err := s.commitStatus(ctx, apt, model.AppointmentStatusCompleted, actor, now)
		if err != nil {
			return err
		}
		s.emitter.Emit(ctx, model.EventAppointmentCompleted, &model.LifecycleEvent{
			AppointmentID: saved.ID,
			FromStatus:    apt.Status,
			ToStatus:      saved.Status,
			At:            now,
			Actor:         actor,
		})
		result = saved
		return nil
	})
	return result, err
}

// MarkNoShow records that the client did not attend.
func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID, actor string) (*model.Appointment, error) {
	var result *model.Appointment
	err := s.withRetry(ctx, id, func(apt *model.Appointment) error {
		if err := transition.CanMarkNoShow(apt.Status); err != nil {
			return err
		}

		now := s.clock.Now()
		saved, err := s.commitStatus(ctx, apt, model.AppointmentStatusNoShow, actor, now)
		if err != nil {
			return err
		}
		s.emitter.Emit(ctx, model.EventAppointmentNoShow, &model.LifecycleEvent{
			AppointmentID: saved.ID,
			FromStatus:    apt.Status,
			ToStatus:      saved.Status,
			At:            now,
			Actor:         actor,
		})
		result = saved
		return nil
	})
	return result, err
}

// MarkPaid updates the payment fields without touching the status. Marking
// an appointment that is already paid with the same method is a no-op, so
// repeated clicks do not pile up history entries or events.
func (s *Service) MarkPaid(ctx context.Context, id uuid.UUID, method, actor string) (*model.Appointment, error) {
	var result *model.Appointment
	err := s.withRetry(ctx, id, func(apt *model.Appointment) error {
		if apt.PaymentStatus == model.PaymentStatusPaid &&
			apt.PaymentMethod != nil && *apt.PaymentMethod == method {
			result = apt
			return nil
		}

		now := s.clock.Now()
		updated := apt.Clone()
		updated.PaymentStatus = model.PaymentStatusPaid
		updated.PaymentMethod = &method
		updated.AppendHistory(apt.Status, apt.Status, now, actor)

		saved, err := s.repo.Save(ctx, updated, apt.Version)
		if err != nil {
			return err
		}

		s.emitter.Emit(ctx, model.EventAppointmentPaymentReceived, &model.LifecycleEvent{
			AppointmentID: saved.ID,
			FromStatus:    apt.Status,
			ToStatus:      saved.Status,
			At:            now,
			Actor:         actor,
			PaymentMethod: saved.PaymentMethod,
		})
		result = saved
		return nil
	})
	return result, err
}

// commitStatus applies a plain status change with a history entry.
func (s *Service) commitStatus(ctx context.Context, apt *model.Appointment, to model.AppointmentStatus, actor string, now time.Time) (*model.Appointment, error) {
	updated := apt.Clone()
	from := updated.Status
	updated.Status = to
	updated.AppendHistory(from, to, now, actor)
	return s.repo.Save(ctx, updated, apt.Version)
}

// withRetry loads the appointment and runs fn, reloading and retrying when
// the optimistic write loses a race. Validation errors pass straight
// through; exhausted retries surface as ErrConflict.
func (s *Service) withRetry(ctx context.Context, id uuid.UUID, fn func(apt *model.Appointment) error) error {
	var lastErr error
	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		apt, err := s.repo.Get(ctx, id)
		if err != nil {
			return err
		}

		err = fn(apt)
		if err == nil {
			return nil
		}
		if !errors.Is(err, apperrors.ErrStaleWrite) {
			s.observeRejection(err)
			return err
		}

		lastErr = err
		if s.metrics != nil {
			s.metrics.StaleWriteRetries.Inc()
		}
		s.logger.Debug("stale write, retrying",
			"appointment_id", id.String(), "attempt", attempt+1)
	}
	return fmt.Errorf("%w: %w", apperrors.ErrConflict, lastErr)
}

// observeRejection counts refused state changes by class.
func (s *Service) observeRejection(err error) {
	if s.metrics == nil {
		return
	}

	var invalidTransition *apperrors.InvalidTransitionError
	var invalidRange *apperrors.InvalidTimeRangeError
	switch {
	case errors.As(err, &invalidTransition):
		s.metrics.TransitionErrors.WithLabelValues("invalid_transition").Inc()
	case errors.As(err, &invalidRange):
		s.metrics.TransitionErrors.WithLabelValues("invalid_time_range").Inc()
	case errors.Is(err, apperrors.ErrCompletionTooEarly):
		s.metrics.TransitionErrors.WithLabelValues("completion_too_early").Inc()
	}
}

// Package event records lifecycle events in the transactional outbox for
// asynchronous delivery to the notification collaborator.
package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/clinicore/booking-api/internal/model"
	"github.com/clinicore/booking-api/internal/repository"
	"github.com/clinicore/booking-api/pkg/logger"
)

// Emitter is what the orchestrator needs: fire-and-forget event emission.
type Emitter interface {
	Emit(ctx context.Context, eventType string, event *model.LifecycleEvent)
}

type Service struct {
	outboxRepo repository.OutboxRepository
	logger     *logger.Logger
}

func NewService(outboxRepo repository.OutboxRepository, logger *logger.Logger) *Service {
	return &Service{
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

// Emit stores the event in the outbox. It is best-effort: failures are
// logged, never propagated, so a notification hiccup cannot roll back an
// already committed state change.
func (s *Service) Emit(ctx context.Context, eventType string, event *model.LifecycleEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error(err, "failed to marshal lifecycle event",
			"event_type", eventType, "appointment_id", event.AppointmentID.String())
		return
	}

	outboxEvent := &model.OutboxEvent{
		EventType: eventType,
		Payload:   payload,
	}

	if err := s.outboxRepo.Create(ctx, outboxEvent); err != nil {
		s.logger.Error(err, "failed to record lifecycle event",
			"event_type", eventType, "appointment_id", event.AppointmentID.String())
		return
	}

	s.logger.Debug(fmt.Sprintf("recorded %s", eventType),
		"appointment_id", event.AppointmentID.String(),
		"from", string(event.FromStatus),
		"to", string(event.ToStatus))
}

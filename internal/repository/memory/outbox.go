package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/booking-api/internal/model"
	"github.com/clinicore/booking-api/internal/repository"
)

type OutboxRepository struct {
	mu     sync.Mutex
	events []*model.OutboxEvent
}

func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{}
}

var _ repository.OutboxRepository = (*OutboxRepository)(nil)

func (r *OutboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.Status = string(model.OutboxStatusPending)
	event.CreatedAt = time.Now()
	event.UpdatedAt = event.CreatedAt

	cp := *event
	r.events = append(r.events, &cp)
	return nil
}

func (r *OutboxRepository) GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var pending []*model.OutboxEvent
	for _, evt := range r.events {
		if len(pending) >= limit {
			break
		}
		if evt.Status != string(model.OutboxStatusPending) && evt.Status != string(model.OutboxStatusFailed) {
			continue
		}
		if evt.RetryAt != nil && evt.RetryAt.After(now) {
			continue
		}
		cp := *evt
		pending = append(pending, &cp)
	}
	return pending, nil
}

func (r *OutboxRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, evt := range r.events {
		if evt.ID != id {
			continue
		}
		evt.Status = string(status)
		evt.ErrorMessage = errorMessage
		evt.RetryAt = retryAt
		evt.UpdatedAt = time.Now()
		if status == model.OutboxStatusFailed {
			evt.RetryCount++
		}
		if status == model.OutboxStatusProcessed {
			now := time.Now()
			evt.ProcessedAt = &now
		}
		return nil
	}
	return nil
}

func (r *OutboxRepository) MoveToDeadLetter(ctx context.Context, event *model.OutboxEvent) error {
	return r.UpdateStatus(ctx, event.ID, model.OutboxStatusDeadLetter, event.ErrorMessage, nil)
}

func (r *OutboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var kept []*model.OutboxEvent
	var deleted int64
	for _, evt := range r.events {
		if evt.Status == string(model.OutboxStatusProcessed) && evt.ProcessedAt != nil && evt.ProcessedAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, evt)
	}
	r.events = kept
	return deleted, nil
}

// Events returns a snapshot of everything recorded, for assertions.
func (r *OutboxRepository) Events() []*model.OutboxEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make([]*model.OutboxEvent, 0, len(r.events))
	for _, evt := range r.events {
		cp := *evt
		snapshot = append(snapshot, &cp)
	}
	return snapshot
}

package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"chemledger/internal/models"
	"chemledger/internal/repository"
)

// EventService owns the append-only audit log and the in-process fan-out to
// live subscribers (websocket feed, monitoring). Rows are inserted inside the
// mutating operation's transaction; Publish runs after commit, so subscribers
// never see an event for a rolled-back mutation.
type EventService struct {
	Repo   repository.Repository
	Logger *zap.Logger
	// BufSize is the per-subscriber channel buffer; slow subscribers drop
	// events rather than block the publisher.
	BufSize int

	mu      sync.Mutex
	nextSub uint64
	subs    map[uint64]chan models.DomainEvent
}

func (s *EventService) RecordTx(ctx context.Context, tx *gorm.DB, item *models.DomainEvent) error {
	if s == nil || s.Repo == nil || item == nil {
		return nil
	}
	return s.Repo.InsertDomainEventTx(ctx, tx, item)
}

func (s *EventService) Publish(item models.DomainEvent) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subs {
		select {
		case ch <- item:
		default:
			if s.Logger != nil {
				s.Logger.Warn("event subscriber lagging, dropping event",
					zap.Uint64("subscriber", id),
					zap.String("type", string(item.Type)),
				)
			}
		}
	}
}

func (s *EventService) Subscribe() (uint64, <-chan models.DomainEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs == nil {
		s.subs = make(map[uint64]chan models.DomainEvent)
	}
	buf := s.BufSize
	if buf <= 0 {
		buf = 64
	}
	s.nextSub++
	id := s.nextSub
	ch := make(chan models.DomainEvent, buf)
	s.subs[id] = ch
	return id, ch
}

func (s *EventService) Unsubscribe(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *EventService) List(ctx context.Context, params repository.ListEventsParams) ([]models.DomainEvent, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	return s.Repo.ListDomainEvents(ctx, params)
}

func (s *EventService) Count(ctx context.Context, params repository.ListEventsParams) (int64, error) {
	if s == nil || s.Repo == nil {
		return 0, nil
	}
	return s.Repo.CountDomainEvents(ctx, params)
}

// Sweep removes events older than the retention window. Retention <= 0 keeps
// the log forever.
func (s *EventService) Sweep(ctx context.Context, retention time.Duration) (int64, error) {
	if s == nil || s.Repo == nil || retention <= 0 {
		return 0, nil
	}
	return s.Repo.DeleteDomainEventsBefore(ctx, time.Now().UTC().Add(-retention))
}

func eventPayload(fields map[string]any) datatypes.JSON {
	raw, err := json.Marshal(fields)
	if err != nil {
		return datatypes.JSON([]byte("{}"))
	}
	return datatypes.JSON(raw)
}

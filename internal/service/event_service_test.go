package service

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"chemledger/internal/models"
	"chemledger/internal/repository"
	gormrepository "chemledger/internal/repository/gorm"
)

func TestEventService_SubscribeAndPublish(t *testing.T) {
	events := &EventService{BufSize: 4}

	id1, ch1 := events.Subscribe()
	_, ch2 := events.Subscribe()

	events.Publish(models.DomainEvent{Type: models.EventAuctionOpened, EntityID: 1})

	for _, ch := range []<-chan models.DomainEvent{ch1, ch2} {
		select {
		case item := <-ch:
			if item.Type != models.EventAuctionOpened {
				t.Fatalf("type=%s want auction.opened", item.Type)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}

	events.Unsubscribe(id1)
	if _, ok := <-ch1; ok {
		t.Fatal("channel still open after unsubscribe")
	}
	events.Publish(models.DomainEvent{Type: models.EventAuctionClosed, EntityID: 1})
	select {
	case item := <-ch2:
		if item.Type != models.EventAuctionClosed {
			t.Fatalf("type=%s want auction.closed", item.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for second event")
	}
}

func TestEventService_SlowSubscriberDropsNotBlocks(t *testing.T) {
	events := &EventService{BufSize: 1}
	_, ch := events.Subscribe()

	events.Publish(models.DomainEvent{EntityID: 1})
	done := make(chan struct{})
	go func() {
		events.Publish(models.DomainEvent{EntityID: 2})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	item := <-ch
	if item.EntityID != 1 {
		t.Fatalf("entity=%d want 1 (second event dropped)", item.EntityID)
	}
}

func TestEventService_Sweep(t *testing.T) {
	store := gormrepository.New(openTestDB(t))
	events := &EventService{Repo: store}
	ctx := context.Background()

	err := store.InTx(ctx, func(tx *gorm.DB) error {
		return store.InsertDomainEventTx(ctx, tx, &models.DomainEvent{
			Type:       models.EventAuctionOpened,
			Actor:      "mfr-1",
			EntityKind: "chemical_auction",
			EntityID:   1,
			CreatedAt:  time.Now().UTC().Add(-48 * time.Hour),
		})
	})
	if err != nil {
		t.Fatalf("insert old event: %v", err)
	}

	removed, err := events.Sweep(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed=%d want 1", removed)
	}
	total, err := events.Count(ctx, repository.ListEventsParams{})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 0 {
		t.Fatalf("total=%d want 0", total)
	}

	// Retention 0 keeps everything.
	if removed, err := events.Sweep(ctx, 0); err != nil || removed != 0 {
		t.Fatalf("sweep with zero retention: removed=%d err=%v", removed, err)
	}
}

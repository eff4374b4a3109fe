package service

import (
	"context"
	"errors"
	"testing"

	"chemledger/internal/models"
	"chemledger/internal/repository"
)

func TestCreateShipment_BindsAuctionWinners(t *testing.T) {
	env := newTestEnv(t)
	caID, laID := settleTrade(t, env)

	shipment, err := env.shipments.Create(context.Background(), "mfr-1", caID, laID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if shipment.Sender != "mfr-1" || shipment.Receiver != "end-1" || shipment.Provider != "log-1" {
		t.Fatalf("parties=%s/%s/%s want mfr-1/end-1/log-1", shipment.Sender, shipment.Receiver, shipment.Provider)
	}
	if shipment.ChemicalID != "chem-1" || !shipment.Price.Equal(dec("40")) {
		t.Fatalf("chemical=%s price=%s want chem-1 at 40", shipment.ChemicalID, shipment.Price)
	}
	if shipment.Status != models.ShipmentCreated {
		t.Fatalf("status=%s want created", shipment.Status)
	}
}

func TestCreateShipment_Guards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	caID, laID := settleTrade(t, env)

	if _, err := env.shipments.Create(ctx, "mfr-1", caID, 999); !errors.Is(err, ErrInvalidReference) {
		t.Fatalf("unknown logistics auction: err=%v want ErrInvalidReference", err)
	}
	if _, err := env.shipments.Create(ctx, "mfr-1", 999, laID); !errors.Is(err, ErrInvalidReference) {
		t.Fatalf("mismatched chain: err=%v want ErrInvalidReference", err)
	}
	if _, err := env.shipments.Create(ctx, "end-1", caID, laID); !errors.Is(err, ErrConflict) {
		t.Fatalf("non-initiator create: err=%v want ErrConflict", err)
	}
	if _, err := env.shipments.Create(ctx, "mfr-1", caID, laID); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.shipments.Create(ctx, "mfr-1", caID, laID); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate create: err=%v want ErrConflict", err)
	}
}

func TestCreateShipment_OpenLogisticsAuction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	caID, _ := settleTrade(t, env)

	la, err := env.auctions.OpenLogisticsAuction(ctx, "mfr-1", caID, dec("50"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := env.shipments.Create(ctx, "mfr-1", caID, la.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("open logistics auction: err=%v want ErrInvalidState", err)
	}
}

func TestShipmentLifecycle_HappyPath(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	caID, laID := settleTrade(t, env)

	shipment, err := env.shipments.Create(ctx, "mfr-1", caID, laID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.shipments.Dispatch(ctx, "mfr-1", shipment.ID); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if _, err := env.shipments.MarkInTransit(ctx, "log-1", shipment.ID); err != nil {
		t.Fatalf("transit: %v", err)
	}
	final, err := env.shipments.MarkDelivered(ctx, "end-1", shipment.ID)
	if err != nil {
		t.Fatalf("delivered: %v", err)
	}
	if final.Status != models.ShipmentDelivered {
		t.Fatalf("status=%s want delivered", final.Status)
	}
	// Receiver is an end user, so delivery must be written through to the
	// registry before the local record commits.
	if len(env.oracle.delivered) != 1 || env.oracle.delivered[0] != "chem-1" {
		t.Fatalf("registry delivered=%v want [chem-1]", env.oracle.delivered)
	}
}

func TestShipmentLifecycle_PartyAndStateGuards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	caID, laID := settleTrade(t, env)

	shipment, err := env.shipments.Create(ctx, "mfr-1", caID, laID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.shipments.Dispatch(ctx, "log-1", shipment.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("provider dispatch: err=%v want ErrConflict", err)
	}
	if _, err := env.shipments.MarkInTransit(ctx, "log-1", shipment.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("transit before dispatch: err=%v want ErrInvalidState", err)
	}
	if _, err := env.shipments.Dispatch(ctx, "mfr-1", shipment.ID); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if _, err := env.shipments.Dispatch(ctx, "mfr-1", shipment.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("double dispatch: err=%v want ErrInvalidState", err)
	}
	if _, err := env.shipments.MarkDelivered(ctx, "end-1", shipment.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("delivered before transit: err=%v want ErrInvalidState", err)
	}
	if _, err := env.shipments.MarkInTransit(ctx, "mfr-1", shipment.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("sender transit: err=%v want ErrConflict", err)
	}
	if _, err := env.shipments.MarkInTransit(ctx, "log-1", shipment.ID); err != nil {
		t.Fatalf("transit: %v", err)
	}
	if _, err := env.shipments.MarkDelivered(ctx, "mfr-1", shipment.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("sender delivered: err=%v want ErrConflict", err)
	}
}

func TestMarkFailed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	caID, laID := settleTrade(t, env)

	shipment, err := env.shipments.Create(ctx, "mfr-1", caID, laID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.shipments.MarkFailed(ctx, "sup-1", shipment.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("outsider fail: err=%v want ErrConflict", err)
	}
	if _, err := env.shipments.MarkFailed(ctx, "log-1", shipment.ID); err != nil {
		t.Fatalf("provider fail: %v", err)
	}
	// A retried abort succeeds and is audited again.
	if _, err := env.shipments.MarkFailed(ctx, "mfr-1", shipment.ID); err != nil {
		t.Fatalf("repeat fail: %v", err)
	}

	eventType := models.EventShipmentStatusUpdated
	kind := "shipment"
	asc := true
	events, err := env.events.List(ctx, repository.ListEventsParams{
		Type:       &eventType,
		EntityKind: &kind,
		EntityID:   &shipment.ID,
		OrderBy:    "id",
		Asc:        &asc,
	})
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d status events want 2", len(events))
	}
}

func TestMarkFailed_AfterDelivered(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	caID, laID := settleTrade(t, env)

	shipment, err := env.shipments.Create(ctx, "mfr-1", caID, laID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, step := range []struct {
		caller string
		fn     func(context.Context, string, uint64) (*models.Shipment, error)
	}{
		{"mfr-1", env.shipments.Dispatch},
		{"log-1", env.shipments.MarkInTransit},
		{"end-1", env.shipments.MarkDelivered},
	} {
		if _, err := step.fn(ctx, step.caller, shipment.ID); err != nil {
			t.Fatalf("step as %s: %v", step.caller, err)
		}
	}
	if _, err := env.shipments.MarkFailed(ctx, "mfr-1", shipment.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("fail after delivered: err=%v want ErrInvalidState", err)
	}
}

func TestMarkDelivered_RegistryFailureAborts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	caID, laID := settleTrade(t, env)

	shipment, err := env.shipments.Create(ctx, "mfr-1", caID, laID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.shipments.Dispatch(ctx, "mfr-1", shipment.ID); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if _, err := env.shipments.MarkInTransit(ctx, "log-1", shipment.ID); err != nil {
		t.Fatalf("transit: %v", err)
	}
	env.oracle.markErr = errors.New("registry down")
	if _, err := env.shipments.MarkDelivered(ctx, "end-1", shipment.ID); err == nil {
		t.Fatal("delivered succeeded despite registry failure")
	}
	current, err := env.shipments.Get(ctx, shipment.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if current.Status != models.ShipmentInTransit {
		t.Fatalf("status=%s want in_transit after aborted delivery", current.Status)
	}
}

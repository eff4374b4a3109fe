package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"chemledger/internal/models"
	"chemledger/internal/registry"
	"chemledger/internal/repository"
)

// ShipmentService binds the winners of a settled chemical auction and its
// chained logistics auction into a shipment, then walks the shipment through
// its lifecycle. Each transition is owned by a specific party:
//
//	created    -> dispatched  (sender)
//	dispatched -> in_transit  (provider)
//	in_transit -> delivered   (receiver)
//	any non-delivered -> failed (sender, receiver, or provider)
//
// Delivered and failed are terminal.
type ShipmentService struct {
	Repo   repository.Repository
	Oracle registry.Oracle
	Events *EventService
	Logger *zap.Logger
	Locks  *KeyLock
}

func (s *ShipmentService) Create(ctx context.Context, caller string, chemicalAuctionID, logisticsAuctionID uint64) (*models.Shipment, error) {
	caller = strings.TrimSpace(caller)
	if caller == "" {
		return nil, fmt.Errorf("%w: caller identity required", ErrUnauthorized)
	}
	key := fmt.Sprintf("shipment-create:%d", logisticsAuctionID)
	s.Locks.Lock(key)
	defer s.Locks.Unlock(key)

	la, err := s.Repo.GetLogisticsAuctionByID(ctx, logisticsAuctionID)
	if err != nil {
		return nil, err
	}
	if la == nil {
		return nil, fmt.Errorf("%w: logistics auction %d", ErrInvalidReference, logisticsAuctionID)
	}
	if la.ChemicalAuctionID != chemicalAuctionID {
		return nil, fmt.Errorf("%w: logistics auction %d is not chained to chemical auction %d", ErrInvalidReference, logisticsAuctionID, chemicalAuctionID)
	}
	if la.Status != models.AuctionClosed {
		return nil, fmt.Errorf("%w: logistics auction %d is still open", ErrInvalidState, logisticsAuctionID)
	}
	if caller != la.Initiator {
		return nil, fmt.Errorf("%w: only the logistics auction initiator may create the shipment", ErrConflict)
	}
	ca, err := s.Repo.GetChemicalAuctionByID(ctx, chemicalAuctionID)
	if err != nil {
		return nil, err
	}
	if ca == nil {
		return nil, fmt.Errorf("%w: chemical auction %d", ErrInvalidReference, chemicalAuctionID)
	}
	// Both legs must have produced a winner; an auction closed without offers
	// settles on the zero identity and cannot back a shipment.
	if ca.TopBidder == "" {
		return nil, fmt.Errorf("%w: chemical auction %d closed without a winning buyer", ErrInvalidState, chemicalAuctionID)
	}
	if la.TopBidder == "" {
		return nil, fmt.Errorf("%w: logistics auction %d closed without a winning provider", ErrInvalidState, logisticsAuctionID)
	}
	if existing, err := s.Repo.GetShipmentByLogisticsAuctionID(ctx, logisticsAuctionID); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, fmt.Errorf("%w: shipment %d already exists for logistics auction %d", ErrConflict, existing.ID, logisticsAuctionID)
	}

	shipment := &models.Shipment{
		Sender:             ca.Initiator,
		Receiver:           ca.TopBidder,
		Provider:           la.TopBidder,
		ChemicalID:         ca.ChemicalID,
		ChemicalAuctionID:  ca.ID,
		LogisticsAuctionID: la.ID,
		Status:             models.ShipmentCreated,
		Price:              la.TopOffer,
	}
	var event *models.DomainEvent
	err = s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		if err := s.Repo.InsertShipmentTx(ctx, tx, shipment); err != nil {
			return err
		}
		event = &models.DomainEvent{
			Type:       models.EventShipmentCreated,
			Actor:      caller,
			EntityKind: "shipment",
			EntityID:   shipment.ID,
			Payload: eventPayload(map[string]any{
				"sender":               shipment.Sender,
				"receiver":             shipment.Receiver,
				"provider":             shipment.Provider,
				"chemical_id":          shipment.ChemicalID,
				"chemical_auction_id":  shipment.ChemicalAuctionID,
				"logistics_auction_id": shipment.LogisticsAuctionID,
				"price":                shipment.Price.String(),
			}),
		}
		return s.Events.RecordTx(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	s.Events.Publish(*event)
	if s.Logger != nil {
		s.Logger.Info("shipment created",
			zap.Uint64("shipment_id", shipment.ID),
			zap.String("sender", shipment.Sender),
			zap.String("receiver", shipment.Receiver),
			zap.String("provider", shipment.Provider),
		)
	}
	return shipment, nil
}

func (s *ShipmentService) Dispatch(ctx context.Context, caller string, shipmentID uint64) (*models.Shipment, error) {
	return s.transition(ctx, caller, shipmentID, models.ShipmentDispatched)
}

func (s *ShipmentService) MarkInTransit(ctx context.Context, caller string, shipmentID uint64) (*models.Shipment, error) {
	return s.transition(ctx, caller, shipmentID, models.ShipmentInTransit)
}

func (s *ShipmentService) MarkDelivered(ctx context.Context, caller string, shipmentID uint64) (*models.Shipment, error) {
	return s.transition(ctx, caller, shipmentID, models.ShipmentDelivered)
}

// MarkFailed may be invoked by any of the three parties from any non-delivered
// status. Failing an already failed shipment succeeds and still emits an
// event, so retried abort requests stay observable in the audit log.
func (s *ShipmentService) MarkFailed(ctx context.Context, caller string, shipmentID uint64) (*models.Shipment, error) {
	return s.transition(ctx, caller, shipmentID, models.ShipmentFailed)
}

func (s *ShipmentService) Get(ctx context.Context, shipmentID uint64) (*models.Shipment, error) {
	item, err := s.Repo.GetShipmentByID(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: shipment %d", ErrInvalidReference, shipmentID)
	}
	return item, nil
}

func (s *ShipmentService) transition(ctx context.Context, caller string, shipmentID uint64, target models.ShipmentStatus) (*models.Shipment, error) {
	caller = strings.TrimSpace(caller)
	if caller == "" {
		return nil, fmt.Errorf("%w: caller identity required", ErrUnauthorized)
	}
	key := fmt.Sprintf("shipment:%d", shipmentID)
	s.Locks.Lock(key)
	defer s.Locks.Unlock(key)

	shipment, err := s.Repo.GetShipmentByID(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if shipment == nil {
		return nil, fmt.Errorf("%w: shipment %d", ErrInvalidReference, shipmentID)
	}
	if err := checkTransition(shipment, caller, target); err != nil {
		return nil, err
	}

	// Delivery to an end user is final custody: the registry's delivered flag
	// is flipped first, so a registry failure aborts before anything commits
	// locally.
	if target == models.ShipmentDelivered {
		receiver, err := s.Oracle.ResolveStakeholder(ctx, shipment.Receiver)
		if err != nil {
			return nil, fmt.Errorf("registry lookup for %s: %w", shipment.Receiver, err)
		}
		if receiver.Role == registry.RoleEndUser {
			if err := s.Oracle.MarkChemicalDelivered(ctx, shipment.ChemicalID); err != nil {
				return nil, fmt.Errorf("registry delivery mark for chemical %s: %w", shipment.ChemicalID, err)
			}
		}
	}

	from := shipment.Status
	var event *models.DomainEvent
	err = s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		if err := s.Repo.UpdateShipmentStatusTx(ctx, tx, shipmentID, target); err != nil {
			return err
		}
		event = &models.DomainEvent{
			Type:       models.EventShipmentStatusUpdated,
			Actor:      caller,
			EntityKind: "shipment",
			EntityID:   shipmentID,
			Payload: eventPayload(map[string]any{
				"from": string(from),
				"to":   string(target),
			}),
		}
		return s.Events.RecordTx(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	s.Events.Publish(*event)
	if s.Logger != nil {
		s.Logger.Info("shipment status updated",
			zap.Uint64("shipment_id", shipmentID),
			zap.String("actor", caller),
			zap.String("from", string(from)),
			zap.String("to", string(target)),
		)
	}
	shipment.Status = target
	return shipment, nil
}

// checkTransition enforces both halves of the lifecycle rule: the status edge
// must be legal, and the caller must be the party that owns the edge.
func checkTransition(shipment *models.Shipment, caller string, target models.ShipmentStatus) error {
	switch target {
	case models.ShipmentDispatched:
		if caller != shipment.Sender {
			return fmt.Errorf("%w: only the sender may dispatch shipment %d", ErrConflict, shipment.ID)
		}
		if shipment.Status != models.ShipmentCreated {
			return fmt.Errorf("%w: shipment %d is %s, expected %s", ErrInvalidState, shipment.ID, shipment.Status, models.ShipmentCreated)
		}
	case models.ShipmentInTransit:
		if caller != shipment.Provider {
			return fmt.Errorf("%w: only the logistics provider may mark shipment %d in transit", ErrConflict, shipment.ID)
		}
		if shipment.Status != models.ShipmentDispatched {
			return fmt.Errorf("%w: shipment %d is %s, expected %s", ErrInvalidState, shipment.ID, shipment.Status, models.ShipmentDispatched)
		}
	case models.ShipmentDelivered:
		if caller != shipment.Receiver {
			return fmt.Errorf("%w: only the receiver may mark shipment %d delivered", ErrConflict, shipment.ID)
		}
		if shipment.Status != models.ShipmentInTransit {
			return fmt.Errorf("%w: shipment %d is %s, expected %s", ErrInvalidState, shipment.ID, shipment.Status, models.ShipmentInTransit)
		}
	case models.ShipmentFailed:
		if caller != shipment.Sender && caller != shipment.Receiver && caller != shipment.Provider {
			return fmt.Errorf("%w: only a shipment party may fail shipment %d", ErrConflict, shipment.ID)
		}
		if shipment.Status == models.ShipmentDelivered {
			return fmt.Errorf("%w: shipment %d already delivered", ErrInvalidState, shipment.ID)
		}
	default:
		return fmt.Errorf("%w: unknown target status %q", ErrValidation, target)
	}
	return nil
}

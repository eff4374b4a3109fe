package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"chemledger/internal/models"
	"chemledger/internal/registry"
	"chemledger/internal/repository"
)

// AuctionService layers the authorization and validation rules over the bid
// ledger: who may open an auction, who may bid, who may close it, and the
// chaining rule linking a closed chemical auction to a new logistics auction.
type AuctionService struct {
	Repo   repository.Repository
	Oracle registry.Oracle
	Events *EventService
	Logger *zap.Logger
	Locks  *KeyLock
}

// AuctionView is the kind-independent projection both auction tables share.
type AuctionView struct {
	Kind      models.AuctionKind
	ID        uint64
	Initiator string
	Chemical  string
	Reference decimal.Decimal
	Status    models.AuctionStatus
	TopBidder string
	TopOffer  decimal.Decimal
}

func (s *AuctionService) OpenChemicalAuction(ctx context.Context, caller, chemicalID string, referencePrice decimal.Decimal) (*models.ChemicalAuction, error) {
	caller = strings.TrimSpace(caller)
	chemicalID = strings.TrimSpace(chemicalID)
	if caller == "" {
		return nil, fmt.Errorf("%w: caller identity required", ErrUnauthorized)
	}
	if chemicalID == "" {
		return nil, fmt.Errorf("%w: chemical id required", ErrInvalidReference)
	}
	if referencePrice.IsNegative() {
		return nil, fmt.Errorf("%w: reference price must not be negative", ErrValidation)
	}
	if _, err := s.requireVerifiedRole(ctx, caller, registry.RoleManufacturer); err != nil {
		return nil, err
	}
	chem, err := s.Oracle.GetChemical(ctx, chemicalID)
	if err != nil {
		return nil, fmt.Errorf("registry lookup for chemical %s: %w", chemicalID, err)
	}
	if !chem.Exists {
		return nil, fmt.Errorf("%w: chemical %s is not registered", ErrInvalidReference, chemicalID)
	}
	if !chem.IsApproved {
		return nil, fmt.Errorf("%w: chemical %s is not approved", ErrValidation, chemicalID)
	}
	if chem.IsDeliveredToEndUser {
		return nil, fmt.Errorf("%w: chemical %s already delivered to an end user", ErrValidation, chemicalID)
	}

	auction := &models.ChemicalAuction{
		Initiator:      caller,
		ChemicalID:     chemicalID,
		ReferencePrice: referencePrice,
		Status:         models.AuctionOpen,
	}
	var event *models.DomainEvent
	err = s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		if err := s.Repo.InsertChemicalAuctionTx(ctx, tx, auction); err != nil {
			return err
		}
		event = &models.DomainEvent{
			Type:       models.EventAuctionOpened,
			Actor:      caller,
			EntityKind: entityKind(models.KindChemical),
			EntityID:   auction.ID,
			Payload: eventPayload(map[string]any{
				"chemical_id":     chemicalID,
				"reference_price": referencePrice.String(),
			}),
		}
		return s.Events.RecordTx(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	s.Events.Publish(*event)
	if s.Logger != nil {
		s.Logger.Info("chemical auction opened",
			zap.Uint64("auction_id", auction.ID),
			zap.String("initiator", caller),
			zap.String("chemical_id", chemicalID),
		)
	}
	return auction, nil
}

func (s *AuctionService) OpenLogisticsAuction(ctx context.Context, caller string, chemicalAuctionID uint64, referencePrice decimal.Decimal) (*models.LogisticsAuction, error) {
	caller = strings.TrimSpace(caller)
	if caller == "" {
		return nil, fmt.Errorf("%w: caller identity required", ErrUnauthorized)
	}
	if referencePrice.IsNegative() {
		return nil, fmt.Errorf("%w: reference price must not be negative", ErrValidation)
	}
	parent, err := s.Repo.GetChemicalAuctionByID(ctx, chemicalAuctionID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, fmt.Errorf("%w: chemical auction %d", ErrInvalidReference, chemicalAuctionID)
	}
	// Chaining rule: the parent auction must be settled before carriage for
	// its trade is put out to bid.
	if parent.Status != models.AuctionClosed {
		return nil, fmt.Errorf("%w: chemical auction %d is still open", ErrInvalidState, chemicalAuctionID)
	}
	if caller != parent.Initiator && caller != parent.TopBidder {
		return nil, fmt.Errorf("%w: only the chemical auction initiator or winning buyer may open a logistics auction", ErrConflict)
	}

	auction := &models.LogisticsAuction{
		ChemicalAuctionID: parent.ID,
		Initiator:         caller,
		ChemicalID:        parent.ChemicalID,
		ReferencePrice:    referencePrice,
		Status:            models.AuctionOpen,
	}
	var event *models.DomainEvent
	err = s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		if err := s.Repo.InsertLogisticsAuctionTx(ctx, tx, auction); err != nil {
			return err
		}
		event = &models.DomainEvent{
			Type:       models.EventAuctionOpened,
			Actor:      caller,
			EntityKind: entityKind(models.KindLogistics),
			EntityID:   auction.ID,
			Payload: eventPayload(map[string]any{
				"chemical_auction_id": parent.ID,
				"chemical_id":         parent.ChemicalID,
				"reference_price":     referencePrice.String(),
			}),
		}
		return s.Events.RecordTx(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	s.Events.Publish(*event)
	if s.Logger != nil {
		s.Logger.Info("logistics auction opened",
			zap.Uint64("auction_id", auction.ID),
			zap.Uint64("chemical_auction_id", parent.ID),
			zap.String("initiator", caller),
		)
	}
	return auction, nil
}

func (s *AuctionService) PlaceOffer(ctx context.Context, caller string, kind models.AuctionKind, auctionID uint64, amount decimal.Decimal) (*models.Offer, error) {
	caller = strings.TrimSpace(caller)
	if caller == "" {
		return nil, fmt.Errorf("%w: caller identity required", ErrUnauthorized)
	}
	key := lockKey(kind, auctionID)
	s.Locks.Lock(key)
	defer s.Locks.Unlock(key)

	auction, err := s.loadAuction(ctx, kind, auctionID)
	if err != nil {
		return nil, err
	}
	if auction.Status != models.AuctionOpen {
		return nil, fmt.Errorf("%w: auction %s/%d is closed", ErrInvalidState, kind, auctionID)
	}
	switch kind {
	case models.KindChemical:
		if _, err := s.requireVerifiedRole(ctx, caller, registry.RoleSupplier, registry.RoleEndUser); err != nil {
			return nil, err
		}
		// Buyers bid the fixed reference price up. The comparison is always
		// against the reference recorded at creation, never the current best.
		if !amount.GreaterThan(auction.Reference) {
			return nil, fmt.Errorf("%w: offer %s does not exceed reference price %s", ErrValidation, amount, auction.Reference)
		}
	case models.KindLogistics:
		if _, err := s.requireVerifiedRole(ctx, caller, registry.RoleLogistics); err != nil {
			return nil, err
		}
		// Providers bid the fixed reference price down.
		if !amount.LessThan(auction.Reference) {
			return nil, fmt.Errorf("%w: offer %s does not undercut reference price %s", ErrValidation, amount, auction.Reference)
		}
	default:
		return nil, fmt.Errorf("%w: unknown auction kind %q", ErrInvalidReference, kind)
	}

	offer := &models.Offer{
		AuctionKind: kind,
		AuctionID:   auctionID,
		Bidder:      caller,
		Amount:      amount,
	}
	var event *models.DomainEvent
	err = s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		if err := s.Repo.InsertOfferTx(ctx, tx, offer); err != nil {
			return err
		}
		event = &models.DomainEvent{
			Type:       models.EventOfferPlaced,
			Actor:      caller,
			EntityKind: entityKind(kind),
			EntityID:   auctionID,
			Payload: eventPayload(map[string]any{
				"offer_id": offer.ID,
				"amount":   amount.String(),
			}),
		}
		return s.Events.RecordTx(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	s.Events.Publish(*event)
	return offer, nil
}

// CloseAuction settles an open auction: a single scan over the offer list in
// insertion order selects the winner, with strict comparison so the earliest
// best offer wins ties. With no offers the winner is the zero identity at
// amount zero. Closing is final.
func (s *AuctionService) CloseAuction(ctx context.Context, caller string, kind models.AuctionKind, auctionID uint64) (*AuctionView, error) {
	caller = strings.TrimSpace(caller)
	if caller == "" {
		return nil, fmt.Errorf("%w: caller identity required", ErrUnauthorized)
	}
	key := lockKey(kind, auctionID)
	s.Locks.Lock(key)
	defer s.Locks.Unlock(key)

	auction, err := s.loadAuction(ctx, kind, auctionID)
	if err != nil {
		return nil, err
	}
	if caller != auction.Initiator {
		return nil, fmt.Errorf("%w: only the initiator may close auction %s/%d", ErrConflict, kind, auctionID)
	}
	if auction.Status != models.AuctionOpen {
		return nil, fmt.Errorf("%w: auction %s/%d already closed", ErrInvalidState, kind, auctionID)
	}

	offers, err := s.Repo.ListOffersByAuction(ctx, kind, auctionID)
	if err != nil {
		return nil, err
	}
	topBidder, topOffer := selectWinner(kind, offers)

	closedAt := time.Now().UTC()
	var event *models.DomainEvent
	err = s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		if err := s.Repo.MarkAuctionClosedTx(ctx, tx, kind, auctionID, topBidder, topOffer, closedAt); err != nil {
			return err
		}
		event = &models.DomainEvent{
			Type:       models.EventAuctionClosed,
			Actor:      caller,
			EntityKind: entityKind(kind),
			EntityID:   auctionID,
			Payload: eventPayload(map[string]any{
				"top_bidder": topBidder,
				"top_offer":  topOffer.String(),
				"offers":     len(offers),
			}),
		}
		return s.Events.RecordTx(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	s.Events.Publish(*event)
	if s.Logger != nil {
		s.Logger.Info("auction closed",
			zap.String("kind", string(kind)),
			zap.Uint64("auction_id", auctionID),
			zap.String("top_bidder", topBidder),
			zap.String("top_offer", topOffer.String()),
		)
	}
	auction.Status = models.AuctionClosed
	auction.TopBidder = topBidder
	auction.TopOffer = topOffer
	return auction, nil
}

func (s *AuctionService) ListOffers(ctx context.Context, kind models.AuctionKind, auctionID uint64) ([]models.Offer, error) {
	if _, err := s.loadAuction(ctx, kind, auctionID); err != nil {
		return nil, err
	}
	return s.Repo.ListOffersByAuction(ctx, kind, auctionID)
}

// selectWinner scans once in insertion order. Only a strictly better offer
// replaces the running best, so the earliest occurrence of the best amount
// wins ties deterministically.
func selectWinner(kind models.AuctionKind, offers []models.Offer) (string, decimal.Decimal) {
	topBidder := ""
	topOffer := decimal.Zero
	for i, offer := range offers {
		if i == 0 {
			topBidder, topOffer = offer.Bidder, offer.Amount
			continue
		}
		switch kind {
		case models.KindChemical:
			if offer.Amount.GreaterThan(topOffer) {
				topBidder, topOffer = offer.Bidder, offer.Amount
			}
		case models.KindLogistics:
			if offer.Amount.LessThan(topOffer) {
				topBidder, topOffer = offer.Bidder, offer.Amount
			}
		}
	}
	return topBidder, topOffer
}

func (s *AuctionService) loadAuction(ctx context.Context, kind models.AuctionKind, auctionID uint64) (*AuctionView, error) {
	switch kind {
	case models.KindChemical:
		item, err := s.Repo.GetChemicalAuctionByID(ctx, auctionID)
		if err != nil {
			return nil, err
		}
		if item == nil {
			return nil, fmt.Errorf("%w: chemical auction %d", ErrInvalidReference, auctionID)
		}
		return &AuctionView{
			Kind:      kind,
			ID:        item.ID,
			Initiator: item.Initiator,
			Chemical:  item.ChemicalID,
			Reference: item.ReferencePrice,
			Status:    item.Status,
			TopBidder: item.TopBidder,
			TopOffer:  item.TopOffer,
		}, nil
	case models.KindLogistics:
		item, err := s.Repo.GetLogisticsAuctionByID(ctx, auctionID)
		if err != nil {
			return nil, err
		}
		if item == nil {
			return nil, fmt.Errorf("%w: logistics auction %d", ErrInvalidReference, auctionID)
		}
		return &AuctionView{
			Kind:      kind,
			ID:        item.ID,
			Initiator: item.Initiator,
			Chemical:  item.ChemicalID,
			Reference: item.ReferencePrice,
			Status:    item.Status,
			TopBidder: item.TopBidder,
			TopOffer:  item.TopOffer,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown auction kind %q", ErrInvalidReference, kind)
	}
}

func (s *AuctionService) requireVerifiedRole(ctx context.Context, caller string, roles ...registry.Role) (registry.Stakeholder, error) {
	sh, err := s.Oracle.ResolveStakeholder(ctx, caller)
	if err != nil {
		return registry.Stakeholder{}, fmt.Errorf("registry lookup for %s: %w", caller, err)
	}
	if !sh.IsVerified {
		return registry.Stakeholder{}, fmt.Errorf("%w: stakeholder %s is not verified", ErrUnauthorized, caller)
	}
	for _, role := range roles {
		if sh.Role == role {
			return sh, nil
		}
	}
	return registry.Stakeholder{}, fmt.Errorf("%w: role %s may not perform this operation", ErrUnauthorized, sh.Role)
}

func entityKind(kind models.AuctionKind) string {
	return string(kind) + "_auction"
}

func lockKey(kind models.AuctionKind, id uint64) string {
	return fmt.Sprintf("%s:%d", kind, id)
}

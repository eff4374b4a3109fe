package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"chemledger/internal/models"
)

// Repository is the persistence boundary for the auction, shipment, and event
// ledgers. Mutating service operations run inside InTx; the *Tx variants take
// the transaction handle so a whole operation commits or rolls back as one.
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Chemical auctions
	InsertChemicalAuctionTx(ctx context.Context, tx *gorm.DB, item *models.ChemicalAuction) error
	GetChemicalAuctionByID(ctx context.Context, id uint64) (*models.ChemicalAuction, error)
	ListChemicalAuctions(ctx context.Context, params ListAuctionsParams) ([]models.ChemicalAuction, error)
	CountChemicalAuctions(ctx context.Context, params ListAuctionsParams) (int64, error)

	// Logistics auctions
	InsertLogisticsAuctionTx(ctx context.Context, tx *gorm.DB, item *models.LogisticsAuction) error
	GetLogisticsAuctionByID(ctx context.Context, id uint64) (*models.LogisticsAuction, error)
	ListLogisticsAuctions(ctx context.Context, params ListAuctionsParams) ([]models.LogisticsAuction, error)
	CountLogisticsAuctions(ctx context.Context, params ListAuctionsParams) (int64, error)

	// Closes an auction of either kind, recording the winner. The status flips
	// open->closed exactly once; callers guard the current status first.
	MarkAuctionClosedTx(ctx context.Context, tx *gorm.DB, kind models.AuctionKind, id uint64, topBidder string, topOffer decimal.Decimal, closedAt time.Time) error

	// Offers
	InsertOfferTx(ctx context.Context, tx *gorm.DB, item *models.Offer) error
	ListOffersByAuction(ctx context.Context, kind models.AuctionKind, auctionID uint64) ([]models.Offer, error)

	// Shipments
	InsertShipmentTx(ctx context.Context, tx *gorm.DB, item *models.Shipment) error
	GetShipmentByID(ctx context.Context, id uint64) (*models.Shipment, error)
	GetShipmentByLogisticsAuctionID(ctx context.Context, logisticsAuctionID uint64) (*models.Shipment, error)
	UpdateShipmentStatusTx(ctx context.Context, tx *gorm.DB, id uint64, status models.ShipmentStatus) error
	ListShipments(ctx context.Context, params ListShipmentsParams) ([]models.Shipment, error)
	CountShipments(ctx context.Context, params ListShipmentsParams) (int64, error)

	// Audit log
	InsertDomainEventTx(ctx context.Context, tx *gorm.DB, item *models.DomainEvent) error
	ListDomainEvents(ctx context.Context, params ListEventsParams) ([]models.DomainEvent, error)
	CountDomainEvents(ctx context.Context, params ListEventsParams) (int64, error)
	DeleteDomainEventsBefore(ctx context.Context, before time.Time) (int64, error)
}

type ListAuctionsParams struct {
	Limit     int
	Offset    int
	Status    *models.AuctionStatus
	Initiator *string
	Chemical  *string
	OrderBy   string
	Asc       *bool
}

type ListShipmentsParams struct {
	Limit   int
	Offset  int
	Status  *models.ShipmentStatus
	Party   *string
	OrderBy string
	Asc     *bool
}

type ListEventsParams struct {
	Limit      int
	Offset     int
	Type       *models.EventType
	Actor      *string
	EntityKind *string
	EntityID   *uint64
	Since      *time.Time
	OrderBy    string
	Asc        *bool
}

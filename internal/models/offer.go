package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Offer is one bidder's proposed price against an open auction. Rows are
// append-only; the autoincrement ID preserves insertion order, which the close
// scan relies on for deterministic tie-breaking.
type Offer struct {
	ID          uint64          `gorm:"primaryKey;autoIncrement"`
	AuctionKind AuctionKind     `gorm:"type:varchar(10);not null;index:idx_offers_auction,priority:1"`
	AuctionID   uint64          `gorm:"not null;index:idx_offers_auction,priority:2"`
	Bidder      string          `gorm:"type:varchar(128);not null;index"`
	Amount      decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	CreatedAt   time.Time       `gorm:"autoCreateTime"`
}

func (Offer) TableName() string {
	return "offers"
}

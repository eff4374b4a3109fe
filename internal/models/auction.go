package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type AuctionKind string

const (
	KindChemical  AuctionKind = "chemical"
	KindLogistics AuctionKind = "logistics"
)

func ParseAuctionKind(raw string) (AuctionKind, bool) {
	switch AuctionKind(raw) {
	case KindChemical:
		return KindChemical, true
	case KindLogistics:
		return KindLogistics, true
	default:
		return "", false
	}
}

type AuctionStatus string

const (
	AuctionOpen   AuctionStatus = "open"
	AuctionClosed AuctionStatus = "closed"
)

// ChemicalAuction solicits buy offers for an approved chemical. The reference
// price is fixed at creation; the top bidder and top offer stay empty until the
// single close event records the winner.
type ChemicalAuction struct {
	ID             uint64          `gorm:"primaryKey;autoIncrement"`
	Initiator      string          `gorm:"type:varchar(128);not null;index"`
	ChemicalID     string          `gorm:"type:varchar(128);not null;index"`
	ReferencePrice decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	Status         AuctionStatus   `gorm:"type:varchar(10);not null;default:'open';index"`
	TopBidder      string          `gorm:"type:varchar(128);not null;default:''"`
	TopOffer       decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	CreatedAt      time.Time       `gorm:"autoCreateTime"`
	ClosedAt       *time.Time
}

func (ChemicalAuction) TableName() string {
	return "chemical_auctions"
}

// LogisticsAuction solicits carriage offers for the trade settled by its parent
// chemical auction. Providers bid the reference price down.
type LogisticsAuction struct {
	ID                uint64          `gorm:"primaryKey;autoIncrement"`
	ChemicalAuctionID uint64          `gorm:"not null;index"`
	Initiator         string          `gorm:"type:varchar(128);not null;index"`
	ChemicalID        string          `gorm:"type:varchar(128);not null;index"`
	ReferencePrice    decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	Status            AuctionStatus   `gorm:"type:varchar(10);not null;default:'open';index"`
	TopBidder         string          `gorm:"type:varchar(128);not null;default:''"`
	TopOffer          decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	CreatedAt         time.Time       `gorm:"autoCreateTime"`
	ClosedAt          *time.Time
}

func (LogisticsAuction) TableName() string {
	return "logistics_auctions"
}

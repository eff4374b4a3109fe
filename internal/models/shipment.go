package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ShipmentStatus string

const (
	ShipmentCreated    ShipmentStatus = "created"
	ShipmentDispatched ShipmentStatus = "dispatched"
	ShipmentInTransit  ShipmentStatus = "in_transit"
	ShipmentDelivered  ShipmentStatus = "delivered"
	ShipmentFailed     ShipmentStatus = "failed"
)

// Terminal reports whether no further transition may leave the status.
func (s ShipmentStatus) Terminal() bool {
	return s == ShipmentDelivered || s == ShipmentFailed
}

// Shipment binds the winners of one chemical auction and one logistics auction
// to a physical delivery. The unique index on LogisticsAuctionID enforces one
// shipment per logistics contract.
type Shipment struct {
	ID                 uint64          `gorm:"primaryKey;autoIncrement"`
	Sender             string          `gorm:"type:varchar(128);not null;index"`
	Receiver           string          `gorm:"type:varchar(128);not null;index"`
	Provider           string          `gorm:"type:varchar(128);not null;index"`
	ChemicalID         string          `gorm:"type:varchar(128);not null;index"`
	ChemicalAuctionID  uint64          `gorm:"not null;index"`
	LogisticsAuctionID uint64          `gorm:"not null;uniqueIndex"`
	Status             ShipmentStatus  `gorm:"type:varchar(12);not null;default:'created';index"`
	Price              decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	CreatedAt          time.Time       `gorm:"autoCreateTime"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime"`
}

func (Shipment) TableName() string {
	return "shipments"
}

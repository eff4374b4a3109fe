package models

import (
	"time"

	"gorm.io/datatypes"
)

type EventType string

const (
	EventAuctionOpened         EventType = "auction.opened"
	EventOfferPlaced           EventType = "offer.placed"
	EventAuctionClosed         EventType = "auction.closed"
	EventShipmentCreated       EventType = "shipment.created"
	EventShipmentStatusUpdated EventType = "shipment.status_updated"
)

// DomainEvent is one row of the append-only audit log. Downstream consumers
// (insurance, monitoring) read it by entity or over the live stream; the core
// never updates or deletes rows except through the retention sweep.
type DomainEvent struct {
	ID         uint64         `gorm:"primaryKey;autoIncrement"`
	Type       EventType      `gorm:"type:varchar(40);not null;index"`
	Actor      string         `gorm:"type:varchar(128);not null;index"`
	EntityKind string         `gorm:"type:varchar(20);not null;index:idx_events_entity,priority:1"`
	EntityID   uint64         `gorm:"not null;index:idx_events_entity,priority:2"`
	Payload    datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt  time.Time      `gorm:"autoCreateTime;index"`
}

func (DomainEvent) TableName() string {
	return "domain_events"
}

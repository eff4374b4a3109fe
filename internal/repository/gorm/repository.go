package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"chemledger/internal/models"
	"chemledger/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- chemical auctions ------------------------------------------------------

func (s *Store) InsertChemicalAuctionTx(ctx context.Context, tx *gorm.DB, item *models.ChemicalAuction) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Create(item).Error
}

func (s *Store) GetChemicalAuctionByID(ctx context.Context, id uint64) (*models.ChemicalAuction, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.ChemicalAuction
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListChemicalAuctions(ctx context.Context, params repository.ListAuctionsParams) ([]models.ChemicalAuction, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyAuctionFilters(s.db.WithContext(ctx).Model(&models.ChemicalAuction{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "id")
	var items []models.ChemicalAuction
	if err := query.Limit(normalizeLimit(params.Limit, 100)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountChemicalAuctions(ctx context.Context, params repository.ListAuctionsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	err := applyAuctionFilters(s.db.WithContext(ctx).Model(&models.ChemicalAuction{}), params).Count(&total).Error
	return total, err
}

// --- logistics auctions -----------------------------------------------------

func (s *Store) InsertLogisticsAuctionTx(ctx context.Context, tx *gorm.DB, item *models.LogisticsAuction) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Create(item).Error
}

func (s *Store) GetLogisticsAuctionByID(ctx context.Context, id uint64) (*models.LogisticsAuction, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.LogisticsAuction
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListLogisticsAuctions(ctx context.Context, params repository.ListAuctionsParams) ([]models.LogisticsAuction, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyAuctionFilters(s.db.WithContext(ctx).Model(&models.LogisticsAuction{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "id")
	var items []models.LogisticsAuction
	if err := query.Limit(normalizeLimit(params.Limit, 100)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountLogisticsAuctions(ctx context.Context, params repository.ListAuctionsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	err := applyAuctionFilters(s.db.WithContext(ctx).Model(&models.LogisticsAuction{}), params).Count(&total).Error
	return total, err
}

func (s *Store) MarkAuctionClosedTx(ctx context.Context, tx *gorm.DB, kind models.AuctionKind, id uint64, topBidder string, topOffer decimal.Decimal, closedAt time.Time) error {
	if tx == nil || id == 0 {
		return nil
	}
	var model any
	switch kind {
	case models.KindChemical:
		model = &models.ChemicalAuction{}
	case models.KindLogistics:
		model = &models.LogisticsAuction{}
	default:
		return gorm.ErrInvalidData
	}
	res := tx.WithContext(ctx).Model(model).
		Where("id = ?", id).
		Where("status = ?", models.AuctionOpen).
		Updates(map[string]any{
			"status":     models.AuctionClosed,
			"top_bidder": topBidder,
			"top_offer":  topOffer,
			"closed_at":  closedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// --- offers -----------------------------------------------------------------

func (s *Store) InsertOfferTx(ctx context.Context, tx *gorm.DB, item *models.Offer) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Create(item).Error
}

func (s *Store) ListOffersByAuction(ctx context.Context, kind models.AuctionKind, auctionID uint64) ([]models.Offer, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Offer
	err := s.db.WithContext(ctx).
		Where("auction_kind = ?", kind).
		Where("auction_id = ?", auctionID).
		Order("id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- shipments --------------------------------------------------------------

func (s *Store) InsertShipmentTx(ctx context.Context, tx *gorm.DB, item *models.Shipment) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Create(item).Error
}

func (s *Store) GetShipmentByID(ctx context.Context, id uint64) (*models.Shipment, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.Shipment
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetShipmentByLogisticsAuctionID(ctx context.Context, logisticsAuctionID uint64) (*models.Shipment, error) {
	if s == nil || s.db == nil || logisticsAuctionID == 0 {
		return nil, nil
	}
	var item models.Shipment
	err := s.db.WithContext(ctx).First(&item, "logistics_auction_id = ?", logisticsAuctionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpdateShipmentStatusTx(ctx context.Context, tx *gorm.DB, id uint64, status models.ShipmentStatus) error {
	if tx == nil || id == 0 {
		return nil
	}
	res := tx.WithContext(ctx).Model(&models.Shipment{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *Store) ListShipments(ctx context.Context, params repository.ListShipmentsParams) ([]models.Shipment, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyShipmentFilters(s.db.WithContext(ctx).Model(&models.Shipment{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "id")
	var items []models.Shipment
	if err := query.Limit(normalizeLimit(params.Limit, 100)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountShipments(ctx context.Context, params repository.ListShipmentsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	err := applyShipmentFilters(s.db.WithContext(ctx).Model(&models.Shipment{}), params).Count(&total).Error
	return total, err
}

// --- audit log --------------------------------------------------------------

func (s *Store) InsertDomainEventTx(ctx context.Context, tx *gorm.DB, item *models.DomainEvent) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Create(item).Error
}

func (s *Store) ListDomainEvents(ctx context.Context, params repository.ListEventsParams) ([]models.DomainEvent, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyEventFilters(s.db.WithContext(ctx).Model(&models.DomainEvent{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "id")
	var items []models.DomainEvent
	if err := query.Limit(normalizeLimit(params.Limit, 200)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountDomainEvents(ctx context.Context, params repository.ListEventsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	err := applyEventFilters(s.db.WithContext(ctx).Model(&models.DomainEvent{}), params).Count(&total).Error
	return total, err
}

func (s *Store) DeleteDomainEventsBefore(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.db == nil || before.IsZero() {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Where("created_at < ?", before).
		Delete(&models.DomainEvent{})
	return res.RowsAffected, res.Error
}

// --- helpers ----------------------------------------------------------------

func applyAuctionFilters(query *gorm.DB, params repository.ListAuctionsParams) *gorm.DB {
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Initiator != nil && strings.TrimSpace(*params.Initiator) != "" {
		query = query.Where("initiator = ?", strings.TrimSpace(*params.Initiator))
	}
	if params.Chemical != nil && strings.TrimSpace(*params.Chemical) != "" {
		query = query.Where("chemical_id = ?", strings.TrimSpace(*params.Chemical))
	}
	return query
}

func applyShipmentFilters(query *gorm.DB, params repository.ListShipmentsParams) *gorm.DB {
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Party != nil && strings.TrimSpace(*params.Party) != "" {
		party := strings.TrimSpace(*params.Party)
		query = query.Where("sender = ? OR receiver = ? OR provider = ?", party, party, party)
	}
	return query
}

func applyEventFilters(query *gorm.DB, params repository.ListEventsParams) *gorm.DB {
	if params.Type != nil {
		query = query.Where("type = ?", *params.Type)
	}
	if params.Actor != nil && strings.TrimSpace(*params.Actor) != "" {
		query = query.Where("actor = ?", strings.TrimSpace(*params.Actor))
	}
	if params.EntityKind != nil && strings.TrimSpace(*params.EntityKind) != "" {
		query = query.Where("entity_kind = ?", strings.TrimSpace(*params.EntityKind))
	}
	if params.EntityID != nil && *params.EntityID > 0 {
		query = query.Where("entity_id = ?", *params.EntityID)
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("created_at >= ?", *params.Since)
	}
	return query
}

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"chemledger/internal/models"
	"chemledger/internal/registry"
	gormrepository "chemledger/internal/repository/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// A named shared-cache DSN keeps the schema visible across pooled
	// connections while isolating tests from each other.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = gdb.AutoMigrate(
		&models.ChemicalAuction{},
		&models.LogisticsAuction{},
		&models.Offer{},
		&models.Shipment{},
		&models.DomainEvent{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

// fakeOracle is an in-memory stand-in for the registry service.
type fakeOracle struct {
	stakeholders map[string]registry.Stakeholder
	chemicals    map[string]registry.Chemical
	delivered    []string
	markErr      error
	pingErr      error
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{
		stakeholders: map[string]registry.Stakeholder{
			"mfr-1": {Identity: "mfr-1", Role: registry.RoleManufacturer, IsVerified: true},
			"sup-1": {Identity: "sup-1", Role: registry.RoleSupplier, IsVerified: true},
			"sup-2": {Identity: "sup-2", Role: registry.RoleSupplier, IsVerified: true},
			"end-1": {Identity: "end-1", Role: registry.RoleEndUser, IsVerified: true},
			"log-1": {Identity: "log-1", Role: registry.RoleLogistics, IsVerified: true},
			"log-2": {Identity: "log-2", Role: registry.RoleLogistics, IsVerified: true},
			"shady": {Identity: "shady", Role: registry.RoleSupplier, IsVerified: false},
		},
		chemicals: map[string]registry.Chemical{
			"chem-1": {ID: "chem-1", Exists: true, IsApproved: true},
			"chem-2": {ID: "chem-2", Exists: true, IsApproved: false},
			"chem-3": {ID: "chem-3", Exists: true, IsApproved: true, IsDeliveredToEndUser: true},
		},
	}
}

func (f *fakeOracle) ResolveStakeholder(_ context.Context, identity string) (registry.Stakeholder, error) {
	if sh, ok := f.stakeholders[identity]; ok {
		return sh, nil
	}
	return registry.Stakeholder{Identity: identity}, nil
}

func (f *fakeOracle) IsVerified(ctx context.Context, identity string) (bool, error) {
	sh, err := f.ResolveStakeholder(ctx, identity)
	if err != nil {
		return false, err
	}
	return sh.IsVerified, nil
}

func (f *fakeOracle) GetChemical(_ context.Context, chemicalID string) (registry.Chemical, error) {
	if chem, ok := f.chemicals[chemicalID]; ok {
		return chem, nil
	}
	return registry.Chemical{ID: chemicalID}, nil
}

func (f *fakeOracle) MarkChemicalDelivered(_ context.Context, chemicalID string) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.delivered = append(f.delivered, chemicalID)
	if chem, ok := f.chemicals[chemicalID]; ok {
		chem.IsDeliveredToEndUser = true
		f.chemicals[chemicalID] = chem
	}
	return nil
}

func (f *fakeOracle) Ping(_ context.Context) error { return f.pingErr }

type testEnv struct {
	oracle    *fakeOracle
	events    *EventService
	auctions  *AuctionService
	shipments *ShipmentService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := gormrepository.New(openTestDB(t))
	oracle := newFakeOracle()
	events := &EventService{Repo: store}
	locks := NewKeyLock()
	return &testEnv{
		oracle: oracle,
		events: events,
		auctions: &AuctionService{
			Repo:   store,
			Oracle: oracle,
			Events: events,
			Locks:  locks,
		},
		shipments: &ShipmentService{
			Repo:   store,
			Oracle: oracle,
			Events: events,
			Locks:  locks,
		},
	}
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(fmt.Sprintf("bad decimal %q: %v", s, err))
	}
	return d
}

// settleTrade runs a chemical auction and its chained logistics auction to
// completion: end-1 buys chem-1 from mfr-1 at 120, log-1 carries it at 40.
func settleTrade(t *testing.T, env *testEnv) (chemicalAuctionID, logisticsAuctionID uint64) {
	t.Helper()
	ctx := context.Background()

	ca, err := env.auctions.OpenChemicalAuction(ctx, "mfr-1", "chem-1", dec("100"))
	if err != nil {
		t.Fatalf("open chemical auction: %v", err)
	}
	if _, err := env.auctions.PlaceOffer(ctx, "sup-1", models.KindChemical, ca.ID, dec("110")); err != nil {
		t.Fatalf("supplier offer: %v", err)
	}
	if _, err := env.auctions.PlaceOffer(ctx, "end-1", models.KindChemical, ca.ID, dec("120")); err != nil {
		t.Fatalf("end user offer: %v", err)
	}
	if _, err := env.auctions.CloseAuction(ctx, "mfr-1", models.KindChemical, ca.ID); err != nil {
		t.Fatalf("close chemical auction: %v", err)
	}

	la, err := env.auctions.OpenLogisticsAuction(ctx, "mfr-1", ca.ID, dec("50"))
	if err != nil {
		t.Fatalf("open logistics auction: %v", err)
	}
	if _, err := env.auctions.PlaceOffer(ctx, "log-2", models.KindLogistics, la.ID, dec("45")); err != nil {
		t.Fatalf("provider offer: %v", err)
	}
	if _, err := env.auctions.PlaceOffer(ctx, "log-1", models.KindLogistics, la.ID, dec("40")); err != nil {
		t.Fatalf("provider offer: %v", err)
	}
	if _, err := env.auctions.CloseAuction(ctx, "mfr-1", models.KindLogistics, la.ID); err != nil {
		t.Fatalf("close logistics auction: %v", err)
	}
	return ca.ID, la.ID
}

// Package registry consumes the Authorization & Registry service: the external
// system of record for stakeholder roles, verification status, and chemical
// approval/delivery flags. The core never implements this state, only reads it
// and writes the single delivery flag back on end-user delivery.
package registry

import "context"

type Role string

const (
	RoleManufacturer Role = "manufacturer"
	RoleSupplier     Role = "supplier"
	RoleEndUser      Role = "end_user"
	RoleLogistics    Role = "logistics"
	RoleRegulator    Role = "regulator"
	RoleUnknown      Role = ""
)

type Stakeholder struct {
	Identity   string `json:"identity"`
	Role       Role   `json:"role"`
	IsVerified bool   `json:"is_verified"`
}

type Chemical struct {
	ID                   string `json:"id"`
	Exists               bool   `json:"exists"`
	IsApproved           bool   `json:"is_approved"`
	IsDeliveredToEndUser bool   `json:"is_delivered_to_end_user"`
}

// Oracle is the narrow surface the ledger services depend on. Calls are
// synchronous; a failure aborts the calling operation before any local write
// commits.
type Oracle interface {
	ResolveStakeholder(ctx context.Context, identity string) (Stakeholder, error)
	IsVerified(ctx context.Context, identity string) (bool, error)
	GetChemical(ctx context.Context, chemicalID string) (Chemical, error)
	MarkChemicalDelivered(ctx context.Context, chemicalID string) error
}

// Pinger is the liveness slice of the client, used by the readiness probe and
// the periodic registry health job.
type Pinger interface {
	Ping(ctx context.Context) error
}

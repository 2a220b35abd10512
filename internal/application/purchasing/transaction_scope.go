package purchasing

import (
	"context"

	inventoryapp "github.com/clinic/pharmacy/internal/application/inventory"
	"github.com/clinic/pharmacy/internal/domain/inventory"
	"github.com/clinic/pharmacy/internal/domain/purchasing"
)

// ReceivingRepositories extends the stock repositories with supplier orders so
// the RECEIVED transition, the lots it opens and their reception entries
// commit together.
type ReceivingRepositories interface {
	inventoryapp.TransactionalRepositories
	SupplierOrders() purchasing.SupplierOrderRepository
}

// ReceivingScope runs fn inside one database transaction
type ReceivingScope interface {
	Execute(ctx context.Context, fn func(repos ReceivingRepositories) error) error
}

// NoOpReceivingScope runs fn against plain repositories. It is meant for tests.
type NoOpReceivingScope struct {
	*inventoryapp.NoOpTransactionScope
	orders purchasing.SupplierOrderRepository
}

// NewNoOpReceivingScope creates a NoOpReceivingScope
func NewNoOpReceivingScope(
	orders purchasing.SupplierOrderRepository,
	medications inventory.MedicationRepository,
	lots inventory.LotRepository,
	movements inventory.MovementRepository,
	levels inventory.StockLevelRepository,
) *NoOpReceivingScope {
	return &NoOpReceivingScope{
		NoOpTransactionScope: inventoryapp.NewNoOpTransactionScope(medications, lots, movements, levels),
		orders:               orders,
	}
}

// Execute runs fn without a real transaction
func (s *NoOpReceivingScope) Execute(_ context.Context, fn func(repos ReceivingRepositories) error) error {
	return fn(s)
}

func (s *NoOpReceivingScope) SupplierOrders() purchasing.SupplierOrderRepository { return s.orders }

var (
	_ ReceivingScope        = (*NoOpReceivingScope)(nil)
	_ ReceivingRepositories = (*NoOpReceivingScope)(nil)
)

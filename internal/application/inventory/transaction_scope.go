package inventory

import (
	"context"

	"github.com/clinic/pharmacy/internal/domain/inventory"
)

// TransactionScope provides transactional access to stock repositories.
// Every repository handed to fn shares one database transaction, which is
// committed when fn returns nil and rolled back otherwise.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories are the stock repositories bound to one transaction.
// A lot update and the ledger entry describing it always go through the same
// TransactionalRepositories so they commit or fail together.
type TransactionalRepositories interface {
	Medications() inventory.MedicationRepository
	Lots() inventory.LotRepository
	Movements() inventory.MovementRepository
	StockLevels() inventory.StockLevelRepository
}

// NoOpTransactionScope runs fn against plain repositories without a transaction.
// It is meant for tests.
type NoOpTransactionScope struct {
	medications inventory.MedicationRepository
	lots        inventory.LotRepository
	movements   inventory.MovementRepository
	levels      inventory.StockLevelRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope
func NewNoOpTransactionScope(
	medications inventory.MedicationRepository,
	lots inventory.LotRepository,
	movements inventory.MovementRepository,
	levels inventory.StockLevelRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		medications: medications,
		lots:        lots,
		movements:   movements,
		levels:      levels,
	}
}

// Execute runs fn without a real transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

func (s *NoOpTransactionScope) Medications() inventory.MedicationRepository { return s.medications }
func (s *NoOpTransactionScope) Lots() inventory.LotRepository               { return s.lots }
func (s *NoOpTransactionScope) Movements() inventory.MovementRepository     { return s.movements }
func (s *NoOpTransactionScope) StockLevels() inventory.StockLevelRepository { return s.levels }

var (
	_ TransactionScope          = (*NoOpTransactionScope)(nil)
	_ TransactionalRepositories = (*NoOpTransactionScope)(nil)
)

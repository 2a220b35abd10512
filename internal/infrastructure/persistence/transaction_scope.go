package persistence

import (
	"context"

	appinv "github.com/clinic/pharmacy/internal/application/inventory"
	apppurch "github.com/clinic/pharmacy/internal/application/purchasing"
	"github.com/clinic/pharmacy/internal/domain/inventory"
	"github.com/clinic/pharmacy/internal/domain/purchasing"
	"gorm.io/gorm"
)

// GormTransactionScope implements the stock and receiving transaction scopes
// using GORM transactions. Every repository handed to fn shares tx.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs fn within a database transaction; an error rolls it back
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appinv.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// ReceivingScope returns a scope that also exposes supplier orders, for
// receptions that update an order and open lots atomically
func (s *GormTransactionScope) ReceivingScope() *GormReceivingScope {
	return &GormReceivingScope{db: s.db}
}

// GormReceivingScope implements purchasing's ReceivingScope
type GormReceivingScope struct {
	db *gorm.DB
}

// Execute runs fn within a database transaction; an error rolls it back
func (s *GormReceivingScope) Execute(ctx context.Context, fn func(repos apppurch.ReceivingRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// gormTransactionalRepositories builds repositories bound to one transaction
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r *gormTransactionalRepositories) Medications() inventory.MedicationRepository {
	return NewGormMedicationRepository(r.tx)
}

func (r *gormTransactionalRepositories) Lots() inventory.LotRepository {
	return NewGormLotRepository(r.tx)
}

func (r *gormTransactionalRepositories) Movements() inventory.MovementRepository {
	return NewGormMovementRepository(r.tx)
}

func (r *gormTransactionalRepositories) StockLevels() inventory.StockLevelRepository {
	return NewGormStockLevelRepository(r.tx)
}

func (r *gormTransactionalRepositories) SupplierOrders() purchasing.SupplierOrderRepository {
	return NewGormSupplierOrderRepository(r.tx)
}

var (
	_ appinv.TransactionScope          = (*GormTransactionScope)(nil)
	_ apppurch.ReceivingScope          = (*GormReceivingScope)(nil)
	_ appinv.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
	_ apppurch.ReceivingRepositories   = (*gormTransactionalRepositories)(nil)
)

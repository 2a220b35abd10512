package purchasing

import (
	"context"

	"github.com/clinic/pharmacy/internal/domain/shared"
	"github.com/google/uuid"
)

// SupplierRepository persists suppliers
type SupplierRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Supplier, error)
	// FindAll returns every supplier matching filter.Search; ordering is left to the caller
	FindAll(ctx context.Context, filter shared.Filter) ([]Supplier, error)
	Save(ctx context.Context, s *Supplier) error
	ExistsByID(ctx context.Context, id uuid.UUID) (bool, error)
}

// SupplierOrderRepository persists supplier orders
type SupplierOrderRepository interface {
	// FindByID loads the order with its lines
	FindByID(ctx context.Context, id uuid.UUID) (*SupplierOrder, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]SupplierOrder, int64, error)
	// LastSequence returns the highest NNNNN used in year, 0 when none
	LastSequence(ctx context.Context, year int) (int, error)
	// CreateHeader inserts the order row only
	CreateHeader(ctx context.Context, o *SupplierOrder) error
	// CreateLines inserts the order's lines
	CreateLines(ctx context.Context, o *SupplierOrder) error
	// DeleteHeader removes an order row whose lines could not be written
	DeleteHeader(ctx context.Context, id uuid.UUID) error
	// SaveWithLock writes status fields and received quantities if the stored
	// version is o.Version-1, failing with ConcurrentModification otherwise
	SaveWithLock(ctx context.Context, o *SupplierOrder) error
}

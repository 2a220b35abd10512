package inventory

import (
	"context"
	"time"

	"github.com/clinic/pharmacy/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MedicationRepository persists the catalog
type MedicationRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Medication, error)
	FindByCode(ctx context.Context, code string) (*Medication, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]Medication, int64, error)
	// FindIDsAfter returns up to limit non-archived medication IDs greater than after, ascending
	FindIDsAfter(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
	// LastCodeSequence returns the highest N of generated MED-NNNNN codes, 0 when none
	LastCodeSequence(ctx context.Context) (int, error)
	Save(ctx context.Context, m *Medication) error
	// SaveWithLock updates m only if the stored version is m.Version-1
	SaveWithLock(ctx context.Context, m *Medication) error
}

// LotRepository persists lots
type LotRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Lot, error)
	FindByMedication(ctx context.Context, medicationID uuid.UUID, store *Store) ([]Lot, error)
	FindByNumber(ctx context.Context, medicationID uuid.UUID, lotNumber string, store Store) (*Lot, error)
	// FindExpiring returns non-depleted lots whose status is active and expiry is before cutoff
	FindExpiring(ctx context.Context, cutoff time.Time) ([]Lot, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]Lot, int64, error)
	Create(ctx context.Context, lot *Lot) error
	// Withdraw atomically lowers quantity_available by qty if at least qty remains.
	// It returns InsufficientStock otherwise, leaving the row untouched.
	Withdraw(ctx context.Context, lotID uuid.UUID, qty decimal.Decimal) error
	// Restock raises quantity_available without passing quantity_initial
	Restock(ctx context.Context, lotID uuid.UUID, qty decimal.Decimal) error
	// Absorb raises quantity_available and quantity_initial together
	Absorb(ctx context.Context, lotID uuid.UUID, qty decimal.Decimal) error
	UpdateStatus(ctx context.Context, lotID uuid.UUID, status LotStatus) error
	SumByStore(ctx context.Context, medicationID uuid.UUID) (StoreTotals, error)
}

// MovementFilter narrows ledger queries
type MovementFilter struct {
	MedicationID *uuid.UUID
	LotID        *uuid.UUID
	Type         *MovementType
	Status       *MovementStatus
	From         *time.Time
	To           *time.Time
}

// MovementCursor is a keyset position in ledger order (recorded_at, id)
type MovementCursor struct {
	RecordedAt time.Time
	ID         uuid.UUID
}

// MovementRepository persists the ledger
type MovementRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*StockMovement, error)
	Create(ctx context.Context, m *StockMovement) error
	// FindPage returns up to limit entries after cursor in ledger order
	FindPage(ctx context.Context, filter MovementFilter, after *MovementCursor, limit int) ([]StockMovement, error)
	FindAll(ctx context.Context, filter MovementFilter, page shared.Filter) ([]StockMovement, int64, error)
	CountByStatus(ctx context.Context, medicationID uuid.UUID, status MovementStatus) (int64, error)
	// MedicationsWithStatus lists distinct medications having entries in status
	MedicationsWithStatus(ctx context.Context, status MovementStatus) ([]uuid.UUID, error)
	// UpdateStatus writes m's status fields if the stored status still equals from
	UpdateStatus(ctx context.Context, m *StockMovement, from MovementStatus) error
	MarkApplied(ctx context.Context, m *StockMovement) error
}

// StockLevelRepository persists reported store totals
type StockLevelRepository interface {
	FindByMedication(ctx context.Context, medicationID uuid.UUID) ([]StoreStockLevel, error)
	// Align sets the reported quantity of each store and stamps the sync time
	Align(ctx context.Context, medicationID uuid.UUID, totals StoreTotals, at time.Time) error
}

// StockCountRepository persists physical stock counts
type StockCountRepository interface {
	// FindByID loads the count with its lines
	FindByID(ctx context.Context, id uuid.UUID) (*StockCount, error)
	// FindAll lists counts with their lines, filtered by status or store
	FindAll(ctx context.Context, filter shared.Filter) ([]StockCount, int64, error)
	// LastSequence returns the highest NNN used in year, 0 when none
	LastSequence(ctx context.Context, year int) (int, error)
	// Create inserts the count and its lines together
	Create(ctx context.Context, c *StockCount) error
	// SaveWithLock writes status fields and line counts if the stored version
	// is c.Version-1, failing with ConcurrentModification otherwise
	SaveWithLock(ctx context.Context, c *StockCount) error
}

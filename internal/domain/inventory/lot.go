package inventory

import (
	"strings"
	"time"

	"github.com/clinic/pharmacy/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LotStatus is the derived state of a lot
type LotStatus string

const (
	LotStatusActive   LotStatus = "active"
	LotStatusExpired  LotStatus = "expired"
	LotStatusDepleted LotStatus = "depleted"
)

// IsValid reports whether s is a known lot status
func (s LotStatus) IsValid() bool {
	switch s {
	case LotStatusActive, LotStatusExpired, LotStatusDepleted:
		return true
	}
	return false
}

func (s LotStatus) String() string {
	return string(s)
}

const maxLotNumberLength = 100

// Lot is a physical batch of one medication held in one store.
// QuantityAvailable never exceeds QuantityInitial and never goes negative.
type Lot struct {
	shared.BaseAggregateRoot
	MedicationID      uuid.UUID
	LotNumber         string
	Store             Store
	QuantityAvailable decimal.Decimal
	QuantityInitial   decimal.Decimal
	ExpiryDate        time.Time
	UnitCost          decimal.Decimal
	SupplierName      string
	ReceptionDate     time.Time
	Status            LotStatus
}

// LotSpec carries the attributes needed to open a lot
type LotSpec struct {
	MedicationID  uuid.UUID
	LotNumber     string
	Store         Store
	Quantity      decimal.Decimal
	ExpiryDate    time.Time
	UnitCost      decimal.Decimal
	SupplierName  string
	ReceptionDate time.Time
}

// NewLot opens a lot with QuantityAvailable = QuantityInitial = spec.Quantity
func NewLot(spec LotSpec) (*Lot, error) {
	if spec.MedicationID == uuid.Nil {
		return nil, shared.NewValidationError("medication_id is required")
	}
	number := strings.TrimSpace(spec.LotNumber)
	if number == "" {
		return nil, shared.NewValidationError("lot number cannot be empty")
	}
	if len(number) > maxLotNumberLength {
		return nil, shared.NewValidationError("lot number cannot exceed %d characters", maxLotNumberLength)
	}
	if !spec.Store.IsValid() {
		return nil, shared.NewValidationError("invalid store: %s", spec.Store)
	}
	if !spec.Quantity.IsPositive() {
		return nil, shared.NewValidationError("lot quantity must be positive")
	}
	if spec.ExpiryDate.IsZero() {
		return nil, shared.NewValidationError("expiry date is required")
	}
	if spec.UnitCost.IsNegative() {
		return nil, shared.NewValidationError("unit cost cannot be negative")
	}
	received := spec.ReceptionDate
	if received.IsZero() {
		received = time.Now()
	}

	lot := &Lot{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		MedicationID:      spec.MedicationID,
		LotNumber:         number,
		Store:             spec.Store,
		QuantityAvailable: spec.Quantity,
		QuantityInitial:   spec.Quantity,
		ExpiryDate:        spec.ExpiryDate,
		UnitCost:          spec.UnitCost,
		SupplierName:      strings.TrimSpace(spec.SupplierName),
		ReceptionDate:     received,
	}
	lot.RefreshStatus(time.Now())
	return lot, nil
}

// Withdraw removes qty from the lot. It fails with InsufficientStock and leaves
// the lot untouched when qty exceeds what is available.
func (l *Lot) Withdraw(qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return shared.NewValidationError("withdrawn quantity must be positive")
	}
	if qty.GreaterThan(l.QuantityAvailable) {
		return shared.NewInsufficientStockError("lot %s has %s available, %s requested",
			l.LotNumber, l.QuantityAvailable.String(), qty.String())
	}
	l.QuantityAvailable = l.QuantityAvailable.Sub(qty)
	l.RefreshStatus(time.Now())
	l.IncrementVersion()
	return nil
}

// Restock puts returned units back. A return never lifts the lot above its initial quantity.
func (l *Lot) Restock(qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return shared.NewValidationError("returned quantity must be positive")
	}
	if l.QuantityAvailable.Add(qty).GreaterThan(l.QuantityInitial) {
		return shared.NewValidationError("return of %s would exceed initial quantity %s of lot %s",
			qty.String(), l.QuantityInitial.String(), l.LotNumber)
	}
	l.QuantityAvailable = l.QuantityAvailable.Add(qty)
	l.RefreshStatus(time.Now())
	l.IncrementVersion()
	return nil
}

// Absorb adds incoming units (reception or transfer in); both counters grow
func (l *Lot) Absorb(qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return shared.NewValidationError("received quantity must be positive")
	}
	l.QuantityAvailable = l.QuantityAvailable.Add(qty)
	l.QuantityInitial = l.QuantityInitial.Add(qty)
	l.RefreshStatus(time.Now())
	l.IncrementVersion()
	return nil
}

// RefreshStatus derives Status from quantity and expiry. An empty lot is
// depleted even when it is also past its expiry date.
func (l *Lot) RefreshStatus(now time.Time) bool {
	next := LotStatusActive
	switch {
	case l.QuantityAvailable.IsZero():
		next = LotStatusDepleted
	case l.IsExpired(now):
		next = LotStatusExpired
	}
	changed := l.Status != next
	l.Status = next
	return changed
}

// IsExpired reports whether the expiry date lies before now
func (l *Lot) IsExpired(now time.Time) bool {
	return l.ExpiryDate.Before(now)
}

// ExpiresWithin reports whether a still-valid lot expires in the next days
func (l *Lot) ExpiresWithin(now time.Time, days int) bool {
	if l.IsExpired(now) {
		return false
	}
	return !l.ExpiryDate.After(now.AddDate(0, 0, days))
}

// Value is the stock value of what remains in the lot
func (l *Lot) Value() decimal.Decimal {
	return l.QuantityAvailable.Mul(l.UnitCost)
}

// Dispensable reports whether units can leave the lot for patients or another store
func (l *Lot) Dispensable(now time.Time) bool {
	return l.QuantityAvailable.IsPositive() && !l.IsExpired(now)
}

package inventory

import (
	"slices"
	"time"

	"github.com/clinic/pharmacy/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Allocation is the share of a quantity drawn from one lot
type Allocation struct {
	LotID      uuid.UUID
	LotNumber  string
	Quantity   decimal.Decimal
	ExpiryDate time.Time
}

// AllocateFEFO picks lots of one store, earliest expiry first, until qty is
// covered. Expired and empty lots are skipped; ties on expiry fall back to the
// oldest reception. It fails with InsufficientStock when the store cannot cover
// qty, and returns no partial allocation in that case.
func AllocateFEFO(lots []Lot, store Store, qty decimal.Decimal, now time.Time) ([]Allocation, error) {
	if !qty.IsPositive() {
		return nil, shared.NewValidationError("allocation quantity must be positive")
	}

	candidates := make([]Lot, 0, len(lots))
	for _, l := range lots {
		if l.Store == store && l.Dispensable(now) {
			candidates = append(candidates, l)
		}
	}
	slices.SortStableFunc(candidates, func(a, b Lot) int {
		if c := a.ExpiryDate.Compare(b.ExpiryDate); c != 0 {
			return c
		}
		return a.ReceptionDate.Compare(b.ReceptionDate)
	})

	remaining := qty
	allocations := make([]Allocation, 0)
	for _, l := range candidates {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(remaining, l.QuantityAvailable)
		allocations = append(allocations, Allocation{
			LotID:      l.ID,
			LotNumber:  l.LotNumber,
			Quantity:   take,
			ExpiryDate: l.ExpiryDate,
		})
		remaining = remaining.Sub(take)
	}

	if remaining.IsPositive() {
		return nil, shared.NewInsufficientStockError("%s store is short of %s units (requested %s)",
			store, remaining.String(), qty.String())
	}
	return allocations, nil
}

package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StoreStockLevel is the reported per-store total of a medication. It is a
// denormalized counter; lots are the truth and the reconciler realigns it.
type StoreStockLevel struct {
	MedicationID       uuid.UUID
	Store              Store
	Quantity           decimal.Decimal
	LastSynchronizedAt *time.Time
	Version            int
}

// StoreTotals maps each store to a quantity
type StoreTotals map[Store]decimal.Decimal

// Get returns the total for store, zero when absent
func (t StoreTotals) Get(store Store) decimal.Decimal {
	if v, ok := t[store]; ok {
		return v
	}
	return decimal.Zero
}

// Sum adds every store together
func (t StoreTotals) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, v := range t {
		total = total.Add(v)
	}
	return total
}

// SumLots totals available quantity per store
func SumLots(lots []Lot) StoreTotals {
	totals := StoreTotals{}
	for _, l := range lots {
		totals[l.Store] = totals.Get(l.Store).Add(l.QuantityAvailable)
	}
	return totals
}

// LevelsToTotals folds reported levels into StoreTotals and returns the latest sync time
func LevelsToTotals(levels []StoreStockLevel) (StoreTotals, *time.Time) {
	totals := StoreTotals{}
	var last *time.Time
	for _, lvl := range levels {
		totals[lvl.Store] = totals.Get(lvl.Store).Add(lvl.Quantity)
		if lvl.LastSynchronizedAt != nil && (last == nil || lvl.LastSynchronizedAt.After(*last)) {
			t := *lvl.LastSynchronizedAt
			last = &t
		}
	}
	return totals, last
}

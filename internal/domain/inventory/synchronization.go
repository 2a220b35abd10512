package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SyncStatus is the reconciliation state of one medication
type SyncStatus string

const (
	SyncStatusSynchronized   SyncStatus = "synchronized"
	SyncStatusDesynchronized SyncStatus = "desynchronized"
	SyncStatusReconciling    SyncStatus = "reconciling"
)

func (s SyncStatus) String() string {
	return string(s)
}

// SynchronizationRecord is a derived snapshot comparing reported store totals
// with the totals computed from lots. It is never stored.
type SynchronizationRecord struct {
	MedicationID         uuid.UUID
	WholesaleQuantity    decimal.Decimal
	RetailQuantity       decimal.Decimal
	ReportedWholesale    decimal.Decimal
	ReportedRetail       decimal.Decimal
	WholesaleDivergence  decimal.Decimal
	RetailDivergence     decimal.Decimal
	Divergence           decimal.Decimal
	Status               SyncStatus
	LastSynchronizedAt   *time.Time
	PendingMovementCount int64
	ErroredMovementCount int64
}

// SyncInputs gathers what is needed to compute a SynchronizationRecord
type SyncInputs struct {
	MedicationID       uuid.UUID
	Expected           StoreTotals
	Reported           StoreTotals
	PendingCount       int64
	ErroredCount       int64
	LastSynchronizedAt *time.Time
	Reconciling        bool
}

// ComputeSyncRecord derives the record. Status is synchronized only when both
// stores match and no entry is waiting or in error.
func ComputeSyncRecord(in SyncInputs) SynchronizationRecord {
	rec := SynchronizationRecord{
		MedicationID:         in.MedicationID,
		WholesaleQuantity:    in.Expected.Get(StoreWholesale),
		RetailQuantity:       in.Expected.Get(StoreRetail),
		ReportedWholesale:    in.Reported.Get(StoreWholesale),
		ReportedRetail:       in.Reported.Get(StoreRetail),
		LastSynchronizedAt:   in.LastSynchronizedAt,
		PendingMovementCount: in.PendingCount,
		ErroredMovementCount: in.ErroredCount,
	}
	rec.WholesaleDivergence = rec.ReportedWholesale.Sub(rec.WholesaleQuantity).Abs()
	rec.RetailDivergence = rec.ReportedRetail.Sub(rec.RetailQuantity).Abs()
	rec.Divergence = rec.WholesaleDivergence.Add(rec.RetailDivergence)

	switch {
	case in.Reconciling:
		rec.Status = SyncStatusReconciling
	case rec.Divergence.IsZero() && in.PendingCount == 0 && in.ErroredCount == 0:
		rec.Status = SyncStatusSynchronized
	default:
		rec.Status = SyncStatusDesynchronized
	}
	return rec
}

// NeedsAttention reports whether the record belongs in a divergence report
func (r SynchronizationRecord) NeedsAttention() bool {
	return !r.Divergence.IsZero() || r.PendingMovementCount > 0 || r.ErroredMovementCount > 0
}

// TotalQuantity is the lot-derived total across both stores
func (r SynchronizationRecord) TotalQuantity() decimal.Decimal {
	return r.WholesaleQuantity.Add(r.RetailQuantity)
}

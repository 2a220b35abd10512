package report

import (
	"context"
	"testing"
	"time"

	"github.com/clinic/pharmacy/internal/domain/inventory"
	"github.com/clinic/pharmacy/internal/domain/purchasing"
	"github.com/clinic/pharmacy/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMedications struct {
	inventory.MedicationRepository
	rows  []inventory.Medication
	calls int
}

func (s *stubMedications) FindAll(_ context.Context, f shared.Filter) ([]inventory.Medication, int64, error) {
	s.calls++
	return page(s.rows, f), int64(len(s.rows)), nil
}

type stubLots struct {
	inventory.LotRepository
	rows []inventory.Lot
}

func (s *stubLots) FindAll(_ context.Context, f shared.Filter) ([]inventory.Lot, int64, error) {
	return page(s.rows, f), int64(len(s.rows)), nil
}

type stubOrders struct {
	purchasing.SupplierOrderRepository
	rows []purchasing.SupplierOrder
}

func (s *stubOrders) FindAll(_ context.Context, f shared.Filter) ([]purchasing.SupplierOrder, int64, error) {
	return page(s.rows, f), int64(len(s.rows)), nil
}

type stubMovements struct {
	inventory.MovementRepository
	rows []inventory.StockMovement
}

func (s *stubMovements) FindPage(_ context.Context, f inventory.MovementFilter, after *inventory.MovementCursor, limit int) ([]inventory.StockMovement, error) {
	var out []inventory.StockMovement
	for _, m := range s.rows {
		if f.Status != nil && m.Status != *f.Status {
			continue
		}
		if f.From != nil && m.RecordedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && m.RecordedAt.After(*f.To) {
			continue
		}
		if after != nil && !m.RecordedAt.After(after.RecordedAt) {
			continue
		}
		out = append(out, m)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func page[T any](rows []T, f shared.Filter) []T {
	start := f.Offset()
	if start >= len(rows) {
		return nil
	}
	end := min(start+f.PageSize, len(rows))
	return rows[start:end]
}

func movementAt(typ inventory.MovementType, qty int64, status inventory.MovementStatus, at time.Time) inventory.StockMovement {
	return inventory.StockMovement{
		BaseAggregateRoot: shared.BaseAggregateRoot{BaseEntity: shared.BaseEntity{ID: uuid.New()}},
		Type:              typ,
		Quantity:          decimal.NewFromInt(qty),
		Status:            status,
		RecordedAt:        at,
	}
}

func TestDashboardService_Dashboard(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	from := now.AddDate(0, 0, -30)

	med, err := inventory.NewMedication("MED-00001", inventory.MedicationDetails{
		Name:             "Ibuprofene 400mg",
		ReorderThreshold: decimal.NewFromInt(50),
	})
	require.NoError(t, err)
	lot, err := inventory.NewLot(inventory.LotSpec{
		MedicationID: med.ID, LotNumber: "IBU-1", Store: inventory.StoreRetail,
		Quantity: decimal.NewFromInt(30), ExpiryDate: now.AddDate(1, 0, 0),
		UnitCost: decimal.NewFromInt(2), ReceptionDate: now.AddDate(0, -2, 0),
	})
	require.NoError(t, err)

	meds := &stubMedications{rows: []inventory.Medication{*med}}
	movements := &stubMovements{rows: []inventory.StockMovement{
		movementAt(inventory.MovementTypeDispensation, 4, inventory.MovementStatusPending, from.AddDate(0, 0, -3)),
		movementAt(inventory.MovementTypeDispensation, 6, inventory.MovementStatusSynchronized, from.AddDate(0, 0, -2)),
		movementAt(inventory.MovementTypeDispensation, 10, inventory.MovementStatusSynchronized, from.AddDate(0, 0, 5)),
		movementAt(inventory.MovementTypeReception, 20, inventory.MovementStatusPending, from.AddDate(0, 0, 10)),
	}}
	svc := NewDashboardService(meds, &stubLots{rows: []inventory.Lot{*lot}}, movements, &stubOrders{}, nil)
	svc.now = func() time.Time { return now }

	t.Run("reduces the snapshot", func(t *testing.T) {
		d, err := svc.Dashboard(ctx, DashboardRequest{From: from, To: now})
		require.NoError(t, err)

		assert.True(t, d.Totals.Units.Equal(decimal.NewFromInt(30)))
		assert.True(t, d.Totals.Value.Equal(decimal.NewFromInt(60)))
		assert.Equal(t, 1, d.Movements.Exits)
		assert.Equal(t, 1, d.Movements.Entries)
		// the old pending dispensation is still outstanding
		assert.Equal(t, 2, d.Movements.Pending)
		assert.Equal(t, 1, d.Alerts.BelowReorderCount)
		assert.Equal(t, now, d.GeneratedAt)
	})

	t.Run("rejects an inverted window before loading", func(t *testing.T) {
		before := meds.calls
		_, err := svc.Dashboard(ctx, DashboardRequest{From: now, To: from})
		assert.True(t, shared.IsCode(err, shared.CodeValidation))
		assert.Equal(t, before, meds.calls)
	})

	t.Run("rejects a missing bound", func(t *testing.T) {
		_, err := svc.Dashboard(ctx, DashboardRequest{To: now})
		assert.True(t, shared.IsCode(err, shared.CodeValidation))
	})
}

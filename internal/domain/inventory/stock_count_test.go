package inventory

import (
	"testing"
	"time"

	"github.com/clinic/pharmacy/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countLot(t *testing.T, store Store, number string, qty int64) Lot {
	t.Helper()
	lot, err := NewLot(LotSpec{
		MedicationID: uuid.New(),
		LotNumber:    number,
		Store:        store,
		Quantity:     decimal.NewFromInt(qty),
		ExpiryDate:   time.Now().AddDate(1, 0, 0),
		UnitCost:     decimal.NewFromInt(2),
	})
	require.NoError(t, err)
	return *lot
}

func newTestCount(t *testing.T) (*StockCount, Lot, Lot) {
	t.Helper()
	short := countLot(t, StoreRetail, "PAR-2024-001", 20)
	short.QuantityAvailable = decimal.NewFromInt(15)
	over := countLot(t, StoreRetail, "AMX-2024-001", 30)
	over.QuantityAvailable = decimal.NewFromInt(10)
	other := countLot(t, StoreWholesale, "IBU-2024-001", 50)
	empty := countLot(t, StoreRetail, "IBU-2024-002", 5)
	empty.QuantityAvailable = decimal.Zero
	empty.Status = LotStatusDepleted

	count, err := NewStockCount("INV-2026-001", StoreRetail, []Lot{short, over, other, empty}, "monthly count", "pharmacist-1")
	require.NoError(t, err)
	return count, short, over
}

func TestNewStockCount(t *testing.T) {
	count, short, _ := newTestCount(t)

	assert.Equal(t, CountStatusCounting, count.Status)
	require.Len(t, count.Lines, 2, "only active lots of the counted store are snapshotted")
	assert.Equal(t, short.ID, count.Lines[0].LotID)
	assert.True(t, count.Lines[0].ExpectedQuantity.Equal(decimal.NewFromInt(15)))
	assert.True(t, count.Lines[0].InitialQuantity.Equal(decimal.NewFromInt(20)))
	require.Len(t, count.GetDomainEvents(), 1)
	assert.Equal(t, EventTypeStockCountChanged, count.GetDomainEvents()[0].EventType())

	t.Run("store without active lots", func(t *testing.T) {
		lot := countLot(t, StoreWholesale, "L-1", 3)
		_, err := NewStockCount("INV-2026-002", StoreRetail, []Lot{lot}, "", "pharmacist-1")
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("actor is required", func(t *testing.T) {
		lot := countLot(t, StoreRetail, "L-1", 3)
		_, err := NewStockCount("INV-2026-002", StoreRetail, []Lot{lot}, "", " ")
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}

func TestStockCount_RecordCounts(t *testing.T) {
	tests := []struct {
		name    string
		entries func(short, over Lot) []CountEntry
	}{
		{"negative quantity", func(short, _ Lot) []CountEntry {
			return []CountEntry{{LotID: short.ID, Quantity: decimal.NewFromInt(-1)}}
		}},
		{"above the opened quantity", func(_, over Lot) []CountEntry {
			return []CountEntry{{LotID: over.ID, Quantity: decimal.NewFromInt(31)}}
		}},
		{"lot outside the count", func(_, _ Lot) []CountEntry {
			return []CountEntry{{LotID: uuid.New(), Quantity: decimal.NewFromInt(1)}}
		}},
		{"same lot twice", func(short, _ Lot) []CountEntry {
			return []CountEntry{{LotID: short.ID, Quantity: decimal.NewFromInt(1)}, {LotID: short.ID, Quantity: decimal.NewFromInt(2)}}
		}},
		{"nothing counted", func(_, _ Lot) []CountEntry { return nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, short, over := newTestCount(t)
			err := count.RecordCounts(tt.entries(short, over))
			assert.ErrorIs(t, err, shared.ErrValidation)
			assert.Equal(t, 1, count.Version, "a rejected batch changes nothing")
			counted, _ := count.Progress()
			assert.Zero(t, counted)
		})
	}

	t.Run("differences are counted minus expected", func(t *testing.T) {
		count, short, over := newTestCount(t)
		require.NoError(t, count.RecordCounts([]CountEntry{
			{LotID: short.ID, Quantity: decimal.NewFromInt(12), Remark: "broken box"},
			{LotID: over.ID, Quantity: decimal.NewFromInt(14)},
		}))
		assert.Equal(t, 2, count.Version)
		assert.True(t, count.Lines[0].Difference().Equal(decimal.NewFromInt(-3)))
		assert.True(t, count.Lines[1].Difference().Equal(decimal.NewFromInt(4)))
		assert.True(t, count.TotalDifference().Equal(decimal.NewFromInt(7)))
		assert.True(t, count.TotalDifferenceValue().Equal(decimal.NewFromInt(14)))
		assert.Equal(t, "broken box", count.Lines[0].Remark)
	})
}

func TestStockCount_Validation(t *testing.T) {
	t.Run("every lot must be counted first", func(t *testing.T) {
		count, short, _ := newTestCount(t)
		require.NoError(t, count.RecordCounts([]CountEntry{{LotID: short.ID, Quantity: decimal.NewFromInt(15)}}))
		err := count.StartValidation("pharmacist-2")
		assert.ErrorIs(t, err, shared.ErrValidation)
		assert.Equal(t, CountStatusCounting, count.Status)
	})

	t.Run("shortfall becomes a loss and surplus a return", func(t *testing.T) {
		count, short, over := newTestCount(t)
		require.NoError(t, count.RecordCounts([]CountEntry{
			{LotID: short.ID, Quantity: decimal.NewFromInt(12)},
			{LotID: over.ID, Quantity: decimal.NewFromInt(14)},
		}))
		require.NoError(t, count.StartValidation("pharmacist-2"))
		assert.Equal(t, CountStatusValidating, count.Status)

		adjustments := count.PendingAdjustments()
		require.Len(t, adjustments, 2)
		assert.Equal(t, MovementTypeLoss, adjustments[0].Type)
		assert.True(t, adjustments[0].Quantity.Equal(decimal.NewFromInt(3)))
		assert.Equal(t, MovementTypeReturn, adjustments[1].Type)
		assert.True(t, adjustments[1].Quantity.Equal(decimal.NewFromInt(4)))

		err := count.RecordCounts([]CountEntry{{LotID: short.ID, Quantity: decimal.NewFromInt(1)}})
		assert.ErrorIs(t, err, shared.ErrInvalidState, "counts are frozen once validation starts")

		require.NoError(t, count.MarkAdjusted(adjustments[0].LineID, uuid.New()))
		err = count.CompleteValidation(time.Now())
		assert.ErrorIs(t, err, shared.ErrInvalidState)

		require.NoError(t, count.MarkAdjusted(adjustments[1].LineID, uuid.New()))
		err = count.MarkAdjusted(adjustments[1].LineID, uuid.New())
		assert.ErrorIs(t, err, shared.ErrInvalidState)

		require.NoError(t, count.CompleteValidation(time.Now()))
		assert.Equal(t, CountStatusValidated, count.Status)
		assert.NotNil(t, count.ValidatedAt)
		assert.Empty(t, count.PendingAdjustments())
	})

	t.Run("matching count needs no adjustment", func(t *testing.T) {
		count, short, over := newTestCount(t)
		require.NoError(t, count.RecordCounts([]CountEntry{
			{LotID: short.ID, Quantity: decimal.NewFromInt(15)},
			{LotID: over.ID, Quantity: decimal.NewFromInt(10)},
		}))
		require.NoError(t, count.StartValidation("pharmacist-2"))
		assert.Empty(t, count.PendingAdjustments())
		require.NoError(t, count.CompleteValidation(time.Now()))
	})

	t.Run("an interrupted validation can be resumed", func(t *testing.T) {
		count, short, over := newTestCount(t)
		require.NoError(t, count.RecordCounts([]CountEntry{
			{LotID: short.ID, Quantity: decimal.NewFromInt(15)},
			{LotID: over.ID, Quantity: decimal.NewFromInt(10)},
		}))
		require.NoError(t, count.StartValidation("pharmacist-2"))
		events := len(count.GetDomainEvents())
		require.NoError(t, count.StartValidation("pharmacist-2"))
		assert.Len(t, count.GetDomainEvents(), events, "resuming raises no second event")
	})
}

func TestStockCount_Cancel(t *testing.T) {
	count, _, _ := newTestCount(t)
	assert.ErrorIs(t, count.Cancel("pharmacist-1", " ", time.Now()), shared.ErrValidation)
	require.NoError(t, count.Cancel("pharmacist-1", "wrong store", time.Now()))
	assert.Equal(t, CountStatusCancelled, count.Status)
	assert.True(t, count.Status.IsTerminal())

	assert.ErrorIs(t, count.StartValidation("pharmacist-1"), shared.ErrInvalidTransition)
}

func TestCountStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to CountStatus
		want     bool
	}{
		{CountStatusCounting, CountStatusValidating, true},
		{CountStatusCounting, CountStatusCancelled, true},
		{CountStatusCounting, CountStatusValidated, false},
		{CountStatusValidating, CountStatusValidating, true},
		{CountStatusValidating, CountStatusValidated, true},
		{CountStatusValidating, CountStatusCancelled, false},
		{CountStatusValidated, CountStatusCounting, false},
		{CountStatusCancelled, CountStatusCounting, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestCountNumber(t *testing.T) {
	assert.Equal(t, "INV-2026-007", GenerateCountNumber(2026, 7))
	assert.Equal(t, "INV-2026-1000", GenerateCountNumber(2026, 1000))

	seq, ok := ParseCountSequence("INV-2026-042")
	assert.True(t, ok)
	assert.Equal(t, 42, seq)
	_, ok = ParseCountSequence("CF-2026-00042")
	assert.False(t, ok)
}

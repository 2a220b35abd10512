package purchasing

import (
	"testing"
	"time"

	"github.com/clinic/pharmacy/internal/domain/inventory"
	"github.com/clinic/pharmacy/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder(t *testing.T) *SupplierOrder {
	t.Helper()
	order, err := NewSupplierOrder("CF-2026-00001", uuid.New(), []LineSpec{
		{MedicationID: uuid.New(), Quantity: decimal.NewFromInt(10), EstimatedUnitPrice: decimal.NewFromFloat(2.5)},
		{MedicationID: uuid.New(), Quantity: decimal.NewFromInt(4), EstimatedUnitPrice: decimal.NewFromInt(3)},
	}, nil, "urgent", "nurse-1")
	require.NoError(t, err)
	return order
}

func TestNewSupplierOrder(t *testing.T) {
	order := newTestOrder(t)
	assert.Equal(t, OrderStatusDraft, order.Status)
	require.Len(t, order.Lines, 2)
	assert.Equal(t, 1, order.Lines[0].LineNo)
	assert.Equal(t, order.ID, order.Lines[1].OrderID)
	assert.True(t, ComputeOrderTotal(order).Equal(decimal.NewFromInt(37)))
	require.Len(t, order.GetDomainEvents(), 1)

	tests := []struct {
		name     string
		supplier uuid.UUID
		lines    []LineSpec
	}{
		{"missing supplier", uuid.Nil, []LineSpec{{MedicationID: uuid.New(), Quantity: decimal.NewFromInt(1)}}},
		{"no lines", uuid.New(), nil},
		{"only zero lines", uuid.New(), []LineSpec{{MedicationID: uuid.New(), Quantity: decimal.Zero}}},
		{"negative line", uuid.New(), []LineSpec{{MedicationID: uuid.New(), Quantity: decimal.NewFromInt(-1)}}},
		{"negative price", uuid.New(), []LineSpec{{MedicationID: uuid.New(), Quantity: decimal.NewFromInt(1), EstimatedUnitPrice: decimal.NewFromInt(-1)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSupplierOrder("CF-2026-00002", tt.supplier, tt.lines, nil, "", "nurse-1")
			assert.ErrorIs(t, err, shared.ErrValidation)
		})
	}
}

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	statuses := AllOrderStatuses()
	for i, from := range statuses {
		for j, to := range statuses {
			assert.Equal(t, j == i+1, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestSupplierOrder_Advance(t *testing.T) {
	now := time.Now()

	t.Run("skipping steps fails", func(t *testing.T) {
		order := newTestOrder(t)
		err := order.Advance(OrderStatusReceived, "pharm-1", now)
		assert.ErrorIs(t, err, shared.ErrInvalidTransition)
		assert.ErrorIs(t, order.Advance(OrderStatusSentToSupplier, "pharm-1", now), shared.ErrInvalidTransition)
		assert.Equal(t, OrderStatusDraft, order.Status)
	})

	t.Run("walks forward and records validation", func(t *testing.T) {
		order := newTestOrder(t)
		require.NoError(t, order.Advance(OrderStatusAwaitingSignature, "pharm-1", now))
		assert.Equal(t, "pharm-1", order.ValidatedBy)
		require.NotNil(t, order.ValidatedAt)
		assert.Nil(t, order.SentAt)

		require.NoError(t, order.Advance(OrderStatusSentToSupplier, "chief-1", now))
		assert.Equal(t, "chief-1", order.ValidatedBy)
		require.NotNil(t, order.SentAt)
		assert.Equal(t, "purchase-orders/CF-2026-00001.json", order.DocumentKey)
		assert.Equal(t, 3, order.Version)

		assert.ErrorIs(t, order.Advance(OrderStatusAwaitingSignature, "chief-1", now), shared.ErrInvalidTransition)
	})

	t.Run("received needs a receipt", func(t *testing.T) {
		order := newTestOrder(t)
		require.NoError(t, order.Advance(OrderStatusAwaitingSignature, "a", now))
		require.NoError(t, order.Advance(OrderStatusSentToSupplier, "a", now))
		assert.ErrorIs(t, order.Advance(OrderStatusReceived, "a", now), shared.ErrValidation)
	})
}

func TestSupplierOrder_Receive(t *testing.T) {
	now := time.Now()
	expiry := now.AddDate(2, 0, 0)
	sent := func(t *testing.T) *SupplierOrder {
		order := newTestOrder(t)
		require.NoError(t, order.Advance(OrderStatusAwaitingSignature, "a", now))
		require.NoError(t, order.Advance(OrderStatusSentToSupplier, "a", now))
		return order
	}

	t.Run("one lot per line", func(t *testing.T) {
		order := sent(t)
		retail := inventory.StoreRetail
		cost := decimal.NewFromInt(2)
		lots, err := order.Receive(Receipt{Lines: []ReceiptLine{
			{LineNo: 1, LotNumber: "A1", ExpiryDate: expiry, Quantity: decimal.NewFromInt(9)},
			{LineNo: 2, LotNumber: "B1", ExpiryDate: expiry, Quantity: decimal.NewFromInt(4), UnitCost: &cost, Store: &retail},
		}}, "Laborex", "stock-1", now)
		require.NoError(t, err)
		require.Len(t, lots, 2)

		assert.Equal(t, inventory.StoreWholesale, lots[0].Lot.Store)
		assert.True(t, lots[0].Lot.UnitCost.Equal(decimal.NewFromFloat(2.5)))
		assert.True(t, lots[0].Lot.Quantity.Equal(decimal.NewFromInt(9)))
		assert.Equal(t, "Laborex", lots[0].Lot.SupplierName)
		assert.Equal(t, inventory.StoreRetail, lots[1].Lot.Store)
		assert.True(t, lots[1].Lot.UnitCost.Equal(cost))

		assert.Equal(t, OrderStatusReceived, order.Status)
		assert.Equal(t, "stock-1", order.ReceivedBy)
		assert.True(t, order.Lines[0].ReceivedQuantity.Equal(decimal.NewFromInt(9)))
	})

	t.Run("missing line", func(t *testing.T) {
		order := sent(t)
		_, err := order.Receive(Receipt{Lines: []ReceiptLine{
			{LineNo: 1, LotNumber: "A1", ExpiryDate: expiry, Quantity: decimal.NewFromInt(9)},
		}}, "Laborex", "stock-1", now)
		assert.ErrorIs(t, err, shared.ErrValidation)
		assert.Equal(t, OrderStatusSentToSupplier, order.Status)
	})

	t.Run("unknown line", func(t *testing.T) {
		order := sent(t)
		_, err := order.Receive(Receipt{Lines: []ReceiptLine{
			{LineNo: 1, LotNumber: "A1", ExpiryDate: expiry, Quantity: decimal.NewFromInt(9)},
			{LineNo: 2, LotNumber: "B1", ExpiryDate: expiry, Quantity: decimal.NewFromInt(4)},
			{LineNo: 7, LotNumber: "C1", ExpiryDate: expiry, Quantity: decimal.NewFromInt(4)},
		}}, "Laborex", "stock-1", now)
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("lot details are validated", func(t *testing.T) {
		order := sent(t)
		_, err := order.Receive(Receipt{Lines: []ReceiptLine{
			{LineNo: 1, LotNumber: "A1", ExpiryDate: expiry, Quantity: decimal.NewFromInt(9)},
			{LineNo: 2, LotNumber: "", ExpiryDate: expiry, Quantity: decimal.NewFromInt(4)},
		}}, "Laborex", "stock-1", now)
		assert.ErrorIs(t, err, shared.ErrValidation)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "line 2: lot number cannot be empty", domainErr.Message)
		assert.Equal(t, OrderStatusSentToSupplier, order.Status)
	})

	t.Run("draft cannot be received", func(t *testing.T) {
		order := newTestOrder(t)
		_, err := order.Receive(Receipt{}, "Laborex", "stock-1", now)
		assert.ErrorIs(t, err, shared.ErrInvalidTransition)
	})
}

func TestOrderNumber(t *testing.T) {
	n := GenerateOrderNumber(2026, 42)
	assert.Equal(t, "CF-2026-00042", n)
	seq, ok := ParseOrderSequence(n)
	assert.True(t, ok)
	assert.Equal(t, 42, seq)

	_, ok = ParseOrderSequence("PO-2026-1")
	assert.False(t, ok)
}

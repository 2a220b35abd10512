package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/clinic/pharmacy/internal/domain/inventory"
	"github.com/clinic/pharmacy/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ledgerFixture struct {
	store      *memoryStore
	ledger     *LedgerService
	reconciler *Reconciler
	publisher  *capturePublisher
	medication inventory.Medication
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	store := newMemoryStore()
	scope := store.scope()
	med, err := inventory.NewMedication("AMOX", inventory.MedicationDetails{Name: "Amoxicilline", ReorderThreshold: decimal.NewFromInt(10)})
	require.NoError(t, err)
	require.NoError(t, scope.Medications().Save(context.Background(), med))

	publisher := &capturePublisher{}
	ledger := NewLedgerService(scope, scope.Medications(), scope.Movements(), nil)
	ledger.SetEventPublisher(publisher)
	ledger.SetPageSize(2)
	reconciler := NewReconciler(scope, scope.Medications(), scope.Lots(), scope.Movements(), scope.StockLevels(), nil, nil)
	reconciler.SetEventPublisher(publisher)
	reconciler.SetPageSize(2)

	return &ledgerFixture{store: store, ledger: ledger, reconciler: reconciler, publisher: publisher, medication: *med}
}

func (f *ledgerFixture) addLot(t *testing.T, store inventory.Store, number string, qty int64, expiry time.Time) *inventory.Lot {
	t.Helper()
	lot, err := inventory.NewLot(inventory.LotSpec{
		MedicationID: f.medication.ID,
		LotNumber:    number,
		Store:        store,
		Quantity:     decimal.NewFromInt(qty),
		ExpiryDate:   expiry,
		UnitCost:     decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	require.NoError(t, f.store.scope().Lots().Create(context.Background(), lot))
	return lot
}

func (f *ledgerFixture) lot(t *testing.T, id uuid.UUID) *inventory.Lot {
	t.Helper()
	l, err := f.store.scope().Lots().FindByID(context.Background(), id)
	require.NoError(t, err)
	return l
}

func strPtr(s string) *string { return &s }

func TestLedgerService_RecordMovement_Dispensation(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	lot := f.addLot(t, inventory.StoreRetail, "A", 20, time.Now().AddDate(1, 0, 0))

	t.Run("over-draw is rejected and leaves the lot unchanged", func(t *testing.T) {
		_, err := f.ledger.RecordMovement(ctx, RecordMovementRequest{
			Type: "dispensation", MedicationID: f.medication.ID, LotID: &lot.ID,
			Quantity: decimal.NewFromInt(21), OriginStore: strPtr("retail"), ActorID: "nurse",
		})
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)
		assert.True(t, f.lot(t, lot.ID).QuantityAvailable.Equal(decimal.NewFromInt(20)))
		assert.Empty(t, f.store.movements, "nothing reaches the ledger when the lot update fails")
	})

	t.Run("applied dispensation", func(t *testing.T) {
		resp, err := f.ledger.RecordMovement(ctx, RecordMovementRequest{
			Type: "dispensation", MedicationID: f.medication.ID, LotID: &lot.ID,
			Quantity: decimal.NewFromInt(8), OriginStore: strPtr("retail"), ActorID: "nurse",
		})
		require.NoError(t, err)
		assert.Equal(t, "pending", resp.Status)
		assert.True(t, resp.LotApplied)
		assert.True(t, f.lot(t, lot.ID).QuantityAvailable.Equal(decimal.NewFromInt(12)))
		assert.Contains(t, f.publisher.types(), inventory.EventTypeMovementRecorded)
	})

	t.Run("wrong store", func(t *testing.T) {
		_, err := f.ledger.RecordMovement(ctx, RecordMovementRequest{
			Type: "loss", MedicationID: f.medication.ID, LotID: &lot.ID,
			Quantity: decimal.NewFromInt(1), OriginStore: strPtr("wholesale"),
			ActorID: "stock-1",
		})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("unknown medication", func(t *testing.T) {
		_, err := f.ledger.RecordMovement(ctx, RecordMovementRequest{
			Type: "loss", MedicationID: uuid.New(), Quantity: decimal.NewFromInt(1), OriginStore: strPtr("retail"),
			ActorID: "stock-1",
		})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestLedgerService_QuantityConservation(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	lot := f.addLot(t, inventory.StoreRetail, "A", 20, time.Now().AddDate(1, 0, 0))

	steps := []struct {
		typ string
		qty int64
		ok  bool
	}{
		{"dispensation", 5, true},
		{"loss", 2, true},
		{"return", 3, true},
		{"dispensation", 17, false},
		{"return", 5, false},
		{"dispensation", 16, true},
	}
	expected := decimal.NewFromInt(20)
	for _, st := range steps {
		req := RecordMovementRequest{Type: st.typ, MedicationID: f.medication.ID, LotID: &lot.ID, Quantity: decimal.NewFromInt(st.qty), ActorID: "stock-1"}
		if st.typ == "return" {
			req.DestinationStore = strPtr("retail")
		} else {
			req.OriginStore = strPtr("retail")
		}
		_, err := f.ledger.RecordMovement(ctx, req)
		if !st.ok {
			assert.Error(t, err, "%s %d", st.typ, st.qty)
			continue
		}
		require.NoError(t, err)
		if st.typ == "return" {
			expected = expected.Add(decimal.NewFromInt(st.qty))
		} else {
			expected = expected.Sub(decimal.NewFromInt(st.qty))
		}
	}

	got := f.lot(t, lot.ID)
	assert.True(t, got.QuantityAvailable.Equal(expected), "got %s want %s", got.QuantityAvailable, expected)
	assert.True(t, got.QuantityAvailable.IsZero())
	assert.Equal(t, inventory.LotStatusDepleted, got.Status)
}

func TestLedgerService_TransferCreatesDestinationLot(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	lot := f.addLot(t, inventory.StoreWholesale, "A", 20, time.Now().AddDate(1, 0, 0))

	resp, err := f.ledger.RecordMovement(ctx, RecordMovementRequest{
		Type: "transfer", MedicationID: f.medication.ID, LotID: &lot.ID, Quantity: decimal.NewFromInt(15),
		OriginStore: strPtr("wholesale"), DestinationStore: strPtr("retail"), ActorID: "stock",
	})
	require.NoError(t, err)
	require.NotNil(t, resp.DestinationLotID)

	assert.True(t, f.lot(t, lot.ID).QuantityAvailable.Equal(decimal.NewFromInt(5)))
	dest := f.lot(t, *resp.DestinationLotID)
	assert.Equal(t, inventory.StoreRetail, dest.Store)
	assert.Equal(t, "A", dest.LotNumber)
	assert.True(t, dest.QuantityAvailable.Equal(decimal.NewFromInt(15)))
	assert.Equal(t, lot.ExpiryDate, dest.ExpiryDate)

	_, err = f.ledger.RecordMovement(ctx, RecordMovementRequest{
		Type: "transfer", MedicationID: f.medication.ID, LotID: &lot.ID, Quantity: decimal.NewFromInt(5),
		OriginStore: strPtr("wholesale"), DestinationStore: strPtr("retail"),
		ActorID: "stock-1",
	})
	require.NoError(t, err)
	dest = f.lot(t, *resp.DestinationLotID)
	assert.True(t, dest.QuantityAvailable.Equal(decimal.NewFromInt(20)), "second transfer tops up the same retail lot")
	assert.Contains(t, f.publisher.types(), inventory.EventTypeLotCreated)
}

func TestLedgerService_ExpiredLotCannotBeDispensed(t *testing.T) {
	f := newLedgerFixture(t)
	lot := f.addLot(t, inventory.StoreRetail, "OLD", 10, time.Now().AddDate(0, 0, -1))

	_, err := f.ledger.RecordMovement(context.Background(), RecordMovementRequest{
		Type: "dispensation", MedicationID: f.medication.ID, LotID: &lot.ID,
		Quantity: decimal.NewFromInt(1), OriginStore: strPtr("retail"),
		ActorID: "stock-1",
	})
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	_, err = f.ledger.RecordMovement(context.Background(), RecordMovementRequest{
		Type: "loss", MedicationID: f.medication.ID, LotID: &lot.ID,
		Quantity: decimal.NewFromInt(10), OriginStore: strPtr("retail"), Reason: "destroyed after expiry",
		ActorID: "stock-1",
	})
	assert.NoError(t, err)
}

func TestLedgerService_MarkSynchronized(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	lot := f.addLot(t, inventory.StoreRetail, "A", 20, time.Now().AddDate(1, 0, 0))

	resp, err := f.ledger.RecordMovement(ctx, RecordMovementRequest{
		Type: "dispensation", MedicationID: f.medication.ID, LotID: &lot.ID,
		Quantity: decimal.NewFromInt(1), OriginStore: strPtr("retail"),
		ActorID: "stock-1",
	})
	require.NoError(t, err)

	first, err := f.ledger.MarkSynchronized(ctx, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, "synchronized", first.Status)

	second, err := f.ledger.MarkSynchronized(ctx, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, first.SynchronizedAt, second.SynchronizedAt)

	_, err = f.ledger.MarkSynchronized(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestLedgerService_ListPending(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	lot := f.addLot(t, inventory.StoreRetail, "A", 100, time.Now().AddDate(1, 0, 0))

	var recorded []uuid.UUID
	for range 5 {
		resp, err := f.ledger.RecordMovement(ctx, RecordMovementRequest{
			Type: "dispensation", MedicationID: f.medication.ID, LotID: &lot.ID,
			Quantity: decimal.NewFromInt(1), OriginStore: strPtr("retail"),
			ActorID: "stock-1",
		})
		require.NoError(t, err)
		recorded = append(recorded, resp.ID)
	}
	_, err := f.ledger.MarkSynchronized(ctx, recorded[1])
	require.NoError(t, err)

	collect := func() []uuid.UUID {
		var ids []uuid.UUID
		for m, err := range f.ledger.ListPending(ctx, &f.medication.ID) {
			require.NoError(t, err)
			ids = append(ids, m.ID)
		}
		return ids
	}

	want := []uuid.UUID{recorded[0], recorded[2], recorded[3], recorded[4]}
	assert.Equal(t, want, collect())
	assert.Equal(t, want, collect(), "each range restarts from the beginning")

	other := uuid.New()
	for range f.ledger.ListPending(ctx, &other) {
		t.Fatal("no pending entries expected for an unknown medication")
	}

	// early break stops the walk
	count := 0
	for range f.ledger.ListPending(ctx, nil) {
		count++
		break
	}
	assert.Equal(t, 1, count)
}

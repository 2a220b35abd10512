package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/clinic/pharmacy/internal/domain/inventory"
	"github.com/clinic/pharmacy/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedCount(t *testing.T, db *gorm.DB, number string, store inventory.Store, lots ...*inventory.Lot) *inventory.StockCount {
	t.Helper()
	snapshot := make([]inventory.Lot, len(lots))
	for i, l := range lots {
		snapshot[i] = *l
	}
	count, err := inventory.NewStockCount(number, store, snapshot, "", "pharmacist-1")
	require.NoError(t, err)
	require.NoError(t, NewGormStockCountRepository(db).Create(context.Background(), count))
	return count
}

func TestGormStockCountRepository_CreateAndLoad(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewGormStockCountRepository(db)
	ctx := context.Background()
	med := seedMedication(t, db, "PARA")
	expiry := time.Now().AddDate(1, 0, 0)
	late := seedLot(t, db, med.ID, "PAR-B", inventory.StoreRetail, 30, expiry.AddDate(0, 2, 0))
	early := seedLot(t, db, med.ID, "PAR-A", inventory.StoreRetail, 20, expiry)

	count := seedCount(t, db, "INV-2026-001", inventory.StoreRetail, late, early)

	got, err := repo.FindByID(ctx, count.ID)
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-001", got.CountNumber)
	assert.Equal(t, inventory.CountStatusCounting, got.Status)
	require.Len(t, got.Lines, 2)
	assert.Equal(t, "PAR-A", got.Lines[0].LotNumber, "lines load earliest expiry first")
	assert.True(t, got.Lines[1].ExpectedQuantity.Equal(decimal.NewFromInt(30)))

	t.Run("duplicate number", func(t *testing.T) {
		other := seedLot(t, db, med.ID, "PAR-C", inventory.StoreRetail, 5, expiry)
		dup, err := inventory.NewStockCount("INV-2026-001", inventory.StoreRetail, []inventory.Lot{*other}, "", "pharmacist-1")
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Create(ctx, dup), shared.ErrDuplicateKey)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := repo.FindByID(ctx, med.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormStockCountRepository_SaveWithLock(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewGormStockCountRepository(db)
	ctx := context.Background()
	med := seedMedication(t, db, "AMOX")
	lot := seedLot(t, db, med.ID, "AMX-1", inventory.StoreWholesale, 40, time.Now().AddDate(1, 0, 0))
	count := seedCount(t, db, "INV-2026-002", inventory.StoreWholesale, lot)

	require.NoError(t, count.RecordCounts([]inventory.CountEntry{{LotID: lot.ID, Quantity: decimal.NewFromInt(37), Remark: "torn box"}}))
	require.NoError(t, repo.SaveWithLock(ctx, count))

	stale, err := repo.FindByID(ctx, count.ID)
	require.NoError(t, err)
	stale.Version = 1
	require.NoError(t, stale.RecordCounts([]inventory.CountEntry{{LotID: lot.ID, Quantity: decimal.NewFromInt(40)}}))
	assert.ErrorIs(t, repo.SaveWithLock(ctx, stale), shared.ErrConcurrentModification)

	got, err := repo.FindByID(ctx, count.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	require.Len(t, got.Lines, 1)
	assert.True(t, got.Lines[0].Counted)
	assert.True(t, got.Lines[0].CountedQuantity.Equal(decimal.NewFromInt(37)))
	assert.Equal(t, "torn box", got.Lines[0].Remark)
	assert.Nil(t, got.Lines[0].AdjustmentID)
}

func TestGormStockCountRepository_FindAll(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewGormStockCountRepository(db)
	ctx := context.Background()
	med := seedMedication(t, db, "IBU")
	expiry := time.Now().AddDate(1, 0, 0)
	retail := seedLot(t, db, med.ID, "IBU-R", inventory.StoreRetail, 10, expiry)
	wholesale := seedLot(t, db, med.ID, "IBU-W", inventory.StoreWholesale, 10, expiry)

	seedCount(t, db, "INV-2026-003", inventory.StoreRetail, retail)
	cancelled := seedCount(t, db, "INV-2026-004", inventory.StoreWholesale, wholesale)
	require.NoError(t, cancelled.Cancel("pharmacist-1", "wrong shelf", time.Now()))
	require.NoError(t, repo.SaveWithLock(ctx, cancelled))

	counts, total, err := repo.FindAll(ctx, shared.Filter{}.With("status", inventory.CountStatusCancelled.String()))
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, counts, 1)
	assert.Equal(t, "wrong shelf", counts[0].CancelReason)
	assert.Len(t, counts[0].Lines, 1)

	_, total, err = repo.FindAll(ctx, shared.Filter{}.With("store", inventory.StoreRetail.String()))
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	last, err := repo.LastSequence(ctx, 2026)
	require.NoError(t, err)
	assert.Equal(t, 4, last)
}

func TestGormStockCountRepository_LastSequenceOrdering(t *testing.T) {
	db, mock, _ := newMockDB(t)
	repo := NewGormStockCountRepository(db)

	mock.ExpectQuery(`SELECT "count_number" FROM "stock_counts" WHERE count_number LIKE \$1 ORDER BY LENGTH\(count_number\) DESC,\s*count_number DESC LIMIT \$2`).
		WithArgs("INV-2026-%", 1).
		WillReturnRows(sqlmock.NewRows([]string{"count_number"}).AddRow("INV-2026-1000"))

	seq, err := repo.LastSequence(context.Background(), 2026)
	require.NoError(t, err)
	assert.Equal(t, 1000, seq)
	assert.NoError(t, mock.ExpectationsWereMet())
}

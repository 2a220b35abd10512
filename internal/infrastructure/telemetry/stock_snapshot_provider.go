package telemetry

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// GormStockSnapshotProvider reads StockSnapshot straight from the tables
type GormStockSnapshotProvider struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStockSnapshotProvider creates a GormStockSnapshotProvider
func NewGormStockSnapshotProvider(db *gorm.DB) *GormStockSnapshotProvider {
	return &GormStockSnapshotProvider{db: db, now: time.Now}
}

// StockSnapshot implements StockSnapshotProvider
func (p *GormStockSnapshotProvider) StockSnapshot(ctx context.Context) (StockSnapshot, error) {
	type row struct {
		Status string
		Total  int64
	}
	var rows []row
	err := p.db.WithContext(ctx).
		Table("stock_movements").
		Select("status, COUNT(*) AS total").
		Where("status IN ?", []string{"pending", "error"}).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return StockSnapshot{}, err
	}

	var snap StockSnapshot
	for _, r := range rows {
		switch r.Status {
		case "pending":
			snap.PendingMovements = r.Total
		case "error":
			snap.ErroredMovements = r.Total
		}
	}

	today := p.now().UTC().Truncate(24 * time.Hour)
	err = p.db.WithContext(ctx).
		Table("lots").
		Where("quantity_available > 0 AND expiry_date < ?", today).
		Count(&snap.ExpiredLotsStock).Error
	return snap, err
}

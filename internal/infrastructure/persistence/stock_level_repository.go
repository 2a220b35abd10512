package persistence

import (
	"context"
	"time"

	"github.com/clinic/pharmacy/internal/domain/inventory"
	"github.com/clinic/pharmacy/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStockLevelRepository implements inventory.StockLevelRepository using GORM
type GormStockLevelRepository struct {
	db *gorm.DB
}

// NewGormStockLevelRepository creates a new GormStockLevelRepository
func NewGormStockLevelRepository(db *gorm.DB) *GormStockLevelRepository {
	return &GormStockLevelRepository{db: db}
}

// FindByMedication returns the reported totals of a medication, one row per known store
func (r *GormStockLevelRepository) FindByMedication(ctx context.Context, medicationID uuid.UUID) ([]inventory.StoreStockLevel, error) {
	var rows []models.StoreStockLevelModel
	err := r.db.WithContext(ctx).
		Where("medication_id = ?", medicationID).
		Order("store ASC").
		Find(&rows).Error
	if err != nil {
		return nil, translateError(err)
	}
	out := make([]inventory.StoreStockLevel, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// Align upserts the reported quantity of every store and stamps the sync time
func (r *GormStockLevelRepository) Align(ctx context.Context, medicationID uuid.UUID, totals inventory.StoreTotals, at time.Time) error {
	rows := make([]models.StoreStockLevelModel, 0, len(inventory.AllStores()))
	for _, store := range inventory.AllStores() {
		synced := at
		rows = append(rows, models.StoreStockLevelModel{
			MedicationID:       medicationID,
			Store:              store.String(),
			Quantity:           totals.Get(store),
			LastSynchronizedAt: &synced,
			Version:            1,
			UpdatedAt:          at,
		})
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "medication_id"}, {Name: "store"}},
			DoUpdates: clause.Set{
				{Column: clause.Column{Name: "quantity"}, Value: clause.Column{Table: "excluded", Name: "quantity"}},
				{Column: clause.Column{Name: "last_synchronized_at"}, Value: clause.Column{Table: "excluded", Name: "last_synchronized_at"}},
				{Column: clause.Column{Name: "updated_at"}, Value: clause.Column{Table: "excluded", Name: "updated_at"}},
				{Column: clause.Column{Name: "version"}, Value: gorm.Expr("store_stock_levels.version + 1")},
			},
		}).
		Create(&rows).Error
	return translateError(err)
}

var _ inventory.StockLevelRepository = (*GormStockLevelRepository)(nil)

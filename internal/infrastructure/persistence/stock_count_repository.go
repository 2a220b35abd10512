package persistence

import (
	"context"
	"fmt"

	"github.com/clinic/pharmacy/internal/domain/inventory"
	"github.com/clinic/pharmacy/internal/domain/shared"
	"github.com/clinic/pharmacy/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStockCountRepository implements inventory.StockCountRepository using GORM
type GormStockCountRepository struct {
	db *gorm.DB
}

// NewGormStockCountRepository creates a new GormStockCountRepository
func NewGormStockCountRepository(db *gorm.DB) *GormStockCountRepository {
	return &GormStockCountRepository{db: db}
}

func preloadCountLines(db *gorm.DB) *gorm.DB {
	return db.Order("expiry_date ASC").Order("lot_number ASC")
}

// FindByID loads the count with its lines in FEFO order
func (r *GormStockCountRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.StockCount, error) {
	var model models.StockCountModel
	err := r.db.WithContext(ctx).
		Preload("Lines", preloadCountLines).
		First(&model, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "stock count", id)
	}
	return model.ToDomain(), nil
}

// FindAll lists counts with their lines, filtered by status or store
func (r *GormStockCountRepository) FindAll(ctx context.Context, filter shared.Filter) ([]inventory.StockCount, int64, error) {
	base := func() *gorm.DB {
		return r.applyFilter(r.db.WithContext(ctx).Model(&models.StockCountModel{}), filter)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}

	var rows []models.StockCountModel
	query := applyOrder(base().Preload("Lines", preloadCountLines), filter, StockCountSortFields, "created_at")
	if err := applyPage(query, filter).Find(&rows).Error; err != nil {
		return nil, 0, translateError(err)
	}
	out := make([]inventory.StockCount, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// LastSequence returns the highest NNN of INV-year-NNN numbers. A year past
// 999 counts grows a digit, so numbers compare by length first.
func (r *GormStockCountRepository) LastSequence(ctx context.Context, year int) (int, error) {
	var numbers []string
	err := r.db.WithContext(ctx).
		Model(&models.StockCountModel{}).
		Where("count_number LIKE ?", fmt.Sprintf("INV-%d-%%", year)).
		Order("LENGTH(count_number) DESC").
		Order("count_number DESC").
		Limit(1).
		Pluck("count_number", &numbers).Error
	if err != nil {
		return 0, translateError(err)
	}
	if len(numbers) == 0 {
		return 0, nil
	}
	seq, ok := inventory.ParseCountSequence(numbers[0])
	if !ok {
		return 0, shared.WrapDomainError(shared.CodePersistence, "malformed count number in storage",
			fmt.Errorf("count number %q", numbers[0]))
	}
	return seq, nil
}

// Create inserts the header and its lines in one transaction
func (r *GormStockCountRepository) Create(ctx context.Context, c *inventory.StockCount) error {
	model := models.StockCountModelFromDomain(c)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(model).Error; err != nil {
			return translateError(err)
		}
		if len(model.Lines) == 0 {
			return nil
		}
		return translateError(tx.Create(&model.Lines).Error)
	})
}

// SaveWithLock writes the header's status fields and every line's count and
// adjustment if the stored version is c.Version-1
func (r *GormStockCountRepository) SaveWithLock(ctx context.Context, c *inventory.StockCount) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.StockCountModel{}).
			Where("id = ? AND version = ?", c.ID, c.Version-1).
			Updates(map[string]any{
				"status":        c.Status.String(),
				"validated_by":  c.ValidatedBy,
				"validated_at":  c.ValidatedAt,
				"cancelled_by":  c.CancelledBy,
				"cancelled_at":  c.CancelledAt,
				"cancel_reason": c.CancelReason,
				"version":       c.Version,
				"updated_at":    c.UpdatedAt,
			})
		if result.Error != nil {
			return translateError(result.Error)
		}
		if result.RowsAffected == 0 {
			return shared.NewConcurrentModificationError("stock count", c.ID)
		}
		for _, l := range c.Lines {
			err := tx.Model(&models.StockCountLineModel{}).
				Where("id = ?", l.ID).
				Updates(map[string]any{
					"counted_quantity": l.CountedQuantity,
					"counted":          l.Counted,
					"remark":           l.Remark,
					"adjustment_id":    l.AdjustmentID,
				}).Error
			if err != nil {
				return translateError(err)
			}
		}
		return nil
	})
}

func (r *GormStockCountRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "store":
			query = query.Where("store = ?", value)
		}
	}
	if filter.Search != "" {
		query = query.Where("LOWER(count_number) LIKE ? ESCAPE '\\'", likePattern(filter.Search))
	}
	return query
}

var _ inventory.StockCountRepository = (*GormStockCountRepository)(nil)

package persistence

import (
	"context"
	"fmt"

	"github.com/clinic/pharmacy/internal/domain/purchasing"
	"github.com/clinic/pharmacy/internal/domain/shared"
	"github.com/clinic/pharmacy/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSupplierOrderRepository implements purchasing.SupplierOrderRepository using GORM.
// Headers and lines are separate writes; the caller compensates a failed
// line insert with DeleteHeader.
type GormSupplierOrderRepository struct {
	db *gorm.DB
}

// NewGormSupplierOrderRepository creates a new GormSupplierOrderRepository
func NewGormSupplierOrderRepository(db *gorm.DB) *GormSupplierOrderRepository {
	return &GormSupplierOrderRepository{db: db}
}

func preloadLines(db *gorm.DB) *gorm.DB {
	return db.Order("line_no ASC")
}

// FindByID loads the order with its lines
func (r *GormSupplierOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*purchasing.SupplierOrder, error) {
	var model models.SupplierOrderModel
	err := r.db.WithContext(ctx).
		Preload("Lines", preloadLines).
		First(&model, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "supplier order", id)
	}
	return model.ToDomain(), nil
}

// FindAll lists orders with their lines, filtered by status or supplier_id
func (r *GormSupplierOrderRepository) FindAll(ctx context.Context, filter shared.Filter) ([]purchasing.SupplierOrder, int64, error) {
	base := func() *gorm.DB {
		return r.applyFilter(r.db.WithContext(ctx).Model(&models.SupplierOrderModel{}), filter)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}

	var rows []models.SupplierOrderModel
	query := applyOrder(base().Preload("Lines", preloadLines), filter, SupplierOrderSortFields, "created_at")
	if err := applyPage(query, filter).Find(&rows).Error; err != nil {
		return nil, 0, translateError(err)
	}
	out := make([]purchasing.SupplierOrder, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// LastSequence returns the highest NNNNN of CF-year-NNNNN numbers. Sequences
// past 99999 grow a digit, so numbers compare by length first.
func (r *GormSupplierOrderRepository) LastSequence(ctx context.Context, year int) (int, error) {
	var numbers []string
	err := r.db.WithContext(ctx).
		Model(&models.SupplierOrderModel{}).
		Where("order_number LIKE ?", fmt.Sprintf("CF-%d-%%", year)).
		Order("LENGTH(order_number) DESC").
		Order("order_number DESC").
		Limit(1).
		Pluck("order_number", &numbers).Error
	if err != nil {
		return 0, translateError(err)
	}
	if len(numbers) == 0 {
		return 0, nil
	}
	seq, ok := purchasing.ParseOrderSequence(numbers[0])
	if !ok {
		return 0, shared.WrapDomainError(shared.CodePersistence, "malformed order number in storage",
			fmt.Errorf("order number %q", numbers[0]))
	}
	return seq, nil
}

// CreateHeader inserts the order row only
func (r *GormSupplierOrderRepository) CreateHeader(ctx context.Context, o *purchasing.SupplierOrder) error {
	model := models.SupplierOrderModelFromDomain(o)
	return translateError(r.db.WithContext(ctx).Omit(clause.Associations).Create(model).Error)
}

// CreateLines inserts the order's lines in one statement
func (r *GormSupplierOrderRepository) CreateLines(ctx context.Context, o *purchasing.SupplierOrder) error {
	if len(o.Lines) == 0 {
		return nil
	}
	rows := make([]models.SupplierOrderLineModel, len(o.Lines))
	for i, l := range o.Lines {
		rows[i] = models.SupplierOrderLineModelFromDomain(l)
		rows[i].OrderID = o.ID
	}
	return translateError(r.db.WithContext(ctx).Create(&rows).Error)
}

// DeleteHeader removes an order row and any lines that made it in
func (r *GormSupplierOrderRepository) DeleteHeader(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&models.SupplierOrderLineModel{}).Error; err != nil {
			return translateError(err)
		}
		return translateError(tx.Where("id = ?", id).Delete(&models.SupplierOrderModel{}).Error)
	})
}

// SaveWithLock writes workflow fields and received quantities if the stored
// version is o.Version-1
func (r *GormSupplierOrderRepository) SaveWithLock(ctx context.Context, o *purchasing.SupplierOrder) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.SupplierOrderModel{}).
			Where("id = ? AND version = ?", o.ID, o.Version-1).
			Updates(map[string]any{
				"status":       o.Status.String(),
				"validated_by": o.ValidatedBy,
				"validated_at": o.ValidatedAt,
				"sent_at":      o.SentAt,
				"received_by":  o.ReceivedBy,
				"received_at":  o.ReceivedAt,
				"document_key": o.DocumentKey,
				"version":      o.Version,
				"updated_at":   o.UpdatedAt,
			})
		if result.Error != nil {
			return translateError(result.Error)
		}
		if result.RowsAffected == 0 {
			return shared.NewConcurrentModificationError("supplier order", o.ID)
		}
		if o.Status != purchasing.OrderStatusReceived {
			return nil
		}
		for _, l := range o.Lines {
			err := tx.Model(&models.SupplierOrderLineModel{}).
				Where("id = ?", l.ID).
				Update("received_quantity", l.ReceivedQuantity).Error
			if err != nil {
				return translateError(err)
			}
		}
		return nil
	})
}

func (r *GormSupplierOrderRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "supplier_id":
			query = query.Where("supplier_id = ?", value)
		}
	}
	if filter.Search != "" {
		query = query.Where("LOWER(order_number) LIKE ? ESCAPE '\\'", likePattern(filter.Search))
	}
	return query
}

var _ purchasing.SupplierOrderRepository = (*GormSupplierOrderRepository)(nil)

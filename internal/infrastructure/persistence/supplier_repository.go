package persistence

import (
	"context"

	"github.com/clinic/pharmacy/internal/domain/purchasing"
	"github.com/clinic/pharmacy/internal/domain/shared"
	"github.com/clinic/pharmacy/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSupplierRepository implements purchasing.SupplierRepository using GORM
type GormSupplierRepository struct {
	db *gorm.DB
}

// NewGormSupplierRepository creates a new GormSupplierRepository
func NewGormSupplierRepository(db *gorm.DB) *GormSupplierRepository {
	return &GormSupplierRepository{db: db}
}

// FindByID finds a supplier by its ID
func (r *GormSupplierRepository) FindByID(ctx context.Context, id uuid.UUID) (*purchasing.Supplier, error) {
	var model models.SupplierModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "supplier", id)
	}
	return model.ToDomain(), nil
}

// FindAll returns suppliers whose name, phone or email matches filter.Search.
// Rows come back unordered; the caller collates names.
func (r *GormSupplierRepository) FindAll(ctx context.Context, filter shared.Filter) ([]purchasing.Supplier, error) {
	query := r.db.WithContext(ctx).Model(&models.SupplierModel{})
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		query = query.Where(
			"(LOWER(name) LIKE ? ESCAPE '\\' OR LOWER(phone) LIKE ? ESCAPE '\\' OR LOWER(email) LIKE ? ESCAPE '\\')",
			pattern, pattern, pattern)
	}
	var rows []models.SupplierModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	out := make([]purchasing.Supplier, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// Save inserts or overwrites a supplier. Updates require the stored version to
// be s.Version-1.
func (r *GormSupplierRepository) Save(ctx context.Context, s *purchasing.Supplier) error {
	model := models.SupplierModelFromDomain(s)
	if s.Version <= 1 {
		return translateError(r.db.WithContext(ctx).Create(model).Error)
	}
	result := r.db.WithContext(ctx).
		Model(&models.SupplierModel{}).
		Where("id = ? AND version = ?", s.ID, s.Version-1).
		Updates(map[string]any{
			"name":       s.Name,
			"phone":      s.Phone,
			"email":      s.Email,
			"address":    s.Address,
			"notes":      s.Notes,
			"version":    s.Version,
			"updated_at": s.UpdatedAt,
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewConcurrentModificationError("supplier", s.ID)
	}
	return nil
}

// ExistsByID reports whether a supplier exists
func (r *GormSupplierRepository) ExistsByID(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.SupplierModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, translateError(err)
	}
	return count > 0, nil
}

var _ purchasing.SupplierRepository = (*GormSupplierRepository)(nil)

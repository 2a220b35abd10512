package persistence

import (
	"context"
	"strconv"
	"strings"

	"github.com/clinic/pharmacy/internal/domain/inventory"
	"github.com/clinic/pharmacy/internal/domain/shared"
	"github.com/clinic/pharmacy/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const medicationCodePrefix = "MED-"

// GormMedicationRepository implements inventory.MedicationRepository using GORM
type GormMedicationRepository struct {
	db *gorm.DB
}

// NewGormMedicationRepository creates a new GormMedicationRepository
func NewGormMedicationRepository(db *gorm.DB) *GormMedicationRepository {
	return &GormMedicationRepository{db: db}
}

// FindByID finds a medication by its ID
func (r *GormMedicationRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Medication, error) {
	var model models.MedicationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "medication", id)
	}
	return model.ToDomain(), nil
}

// FindByCode finds a medication by its normalized code
func (r *GormMedicationRepository) FindByCode(ctx context.Context, code string) (*inventory.Medication, error) {
	code = inventory.NormalizeMedicationCode(code)
	var model models.MedicationModel
	if err := r.db.WithContext(ctx).First(&model, "code = ?", code).Error; err != nil {
		return nil, notFound(err, "medication", code)
	}
	return model.ToDomain(), nil
}

// FindAll lists medications. Archived entries are hidden unless the
// include_archived filter is true.
func (r *GormMedicationRepository) FindAll(ctx context.Context, filter shared.Filter) ([]inventory.Medication, int64, error) {
	base := func() *gorm.DB {
		return r.applyFilter(r.db.WithContext(ctx).Model(&models.MedicationModel{}), filter)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}

	var rows []models.MedicationModel
	query := applyOrder(base(), filter, MedicationSortFields, "name")
	if err := applyPage(query, filter).Find(&rows).Error; err != nil {
		return nil, 0, translateError(err)
	}

	out := make([]inventory.Medication, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// FindIDsAfter returns up to limit non-archived medication IDs greater than after
func (r *GormMedicationRepository) FindIDsAfter(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.MedicationModel{}).
		Where("archived_at IS NULL AND id > ?", after).
		Order("id ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, translateError(err)
	}
	return ids, nil
}

// LastCodeSequence returns the highest N among generated MED-NNNNN codes
func (r *GormMedicationRepository) LastCodeSequence(ctx context.Context) (int, error) {
	var codes []string
	err := r.db.WithContext(ctx).
		Model(&models.MedicationModel{}).
		Where("code LIKE ?", medicationCodePrefix+"%").
		Order("code DESC").
		Limit(20).
		Pluck("code", &codes).Error
	if err != nil {
		return 0, translateError(err)
	}
	// lexical order puts the widest zero-padded code first; hand-entered
	// MED-xyz codes are skipped
	highest := 0
	for _, code := range codes {
		rest, _ := strings.CutPrefix(code, medicationCodePrefix)
		if n, err := strconv.Atoi(rest); err == nil && n > highest {
			highest = n
		}
	}
	return highest, nil
}

// Save inserts or fully overwrites a medication
func (r *GormMedicationRepository) Save(ctx context.Context, m *inventory.Medication) error {
	return translateError(r.db.WithContext(ctx).Save(models.MedicationModelFromDomain(m)).Error)
}

// SaveWithLock updates m if the stored version is m.Version-1
func (r *GormMedicationRepository) SaveWithLock(ctx context.Context, m *inventory.Medication) error {
	result := r.db.WithContext(ctx).
		Model(&models.MedicationModel{}).
		Where("id = ? AND version = ?", m.ID, m.Version-1).
		Updates(map[string]any{
			"name":               m.Name,
			"dosage_form":        m.DosageForm,
			"strength":           m.Strength,
			"category":           m.Category,
			"reorder_threshold":  m.ReorderThreshold,
			"stockout_threshold": m.StockoutThreshold,
			"archived_at":        m.ArchivedAt,
			"version":            m.Version,
			"updated_at":         m.UpdatedAt,
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewConcurrentModificationError("medication", m.ID)
	}
	return nil
}

func (r *GormMedicationRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		query = query.Where("(LOWER(name) LIKE ? ESCAPE '\\' OR LOWER(code) LIKE ? ESCAPE '\\')", pattern, pattern)
	}
	if archived, _ := filter.Filters["include_archived"].(bool); !archived {
		query = query.Where("archived_at IS NULL")
	}
	if category, ok := filter.Filters["category"].(string); ok && category != "" {
		query = query.Where("category = ?", category)
	}
	return query
}

var _ inventory.MedicationRepository = (*GormMedicationRepository)(nil)

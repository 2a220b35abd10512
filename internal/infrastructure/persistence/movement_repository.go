package persistence

import (
	"context"

	"github.com/clinic/pharmacy/internal/domain/inventory"
	"github.com/clinic/pharmacy/internal/domain/shared"
	"github.com/clinic/pharmacy/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormMovementRepository implements inventory.MovementRepository using GORM.
// Ledger order is (recorded_at, id); ids are UUIDv7 so ties follow insertion.
type GormMovementRepository struct {
	db *gorm.DB
}

// NewGormMovementRepository creates a new GormMovementRepository
func NewGormMovementRepository(db *gorm.DB) *GormMovementRepository {
	return &GormMovementRepository{db: db}
}

// FindByID finds a ledger entry by its ID
func (r *GormMovementRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.StockMovement, error) {
	var model models.StockMovementModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "stock movement", id)
	}
	return model.ToDomain(), nil
}

// Create appends an entry to the ledger
func (r *GormMovementRepository) Create(ctx context.Context, m *inventory.StockMovement) error {
	return translateError(r.db.WithContext(ctx).Create(models.StockMovementModelFromDomain(m)).Error)
}

// FindPage returns up to limit entries strictly after cursor in ledger order
func (r *GormMovementRepository) FindPage(ctx context.Context, filter inventory.MovementFilter, after *inventory.MovementCursor, limit int) ([]inventory.StockMovement, error) {
	query := applyMovementFilter(r.db.WithContext(ctx).Model(&models.StockMovementModel{}), filter)
	if after != nil {
		query = query.Where("(recorded_at > ? OR (recorded_at = ? AND id > ?))",
			after.RecordedAt, after.RecordedAt, after.ID)
	}
	var rows []models.StockMovementModel
	err := query.Order("recorded_at ASC").Order("id ASC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, translateError(err)
	}
	return movementsToDomain(rows), nil
}

// FindAll lists ledger entries with offset pagination
func (r *GormMovementRepository) FindAll(ctx context.Context, filter inventory.MovementFilter, page shared.Filter) ([]inventory.StockMovement, int64, error) {
	base := func() *gorm.DB {
		return applyMovementFilter(r.db.WithContext(ctx).Model(&models.StockMovementModel{}), filter)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}

	var rows []models.StockMovementModel
	query := applyOrder(base(), page, MovementSortFields, "recorded_at")
	if err := applyPage(query, page).Find(&rows).Error; err != nil {
		return nil, 0, translateError(err)
	}
	return movementsToDomain(rows), total, nil
}

// CountByStatus counts a medication's entries in status
func (r *GormMovementRepository) CountByStatus(ctx context.Context, medicationID uuid.UUID, status inventory.MovementStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.StockMovementModel{}).
		Where("medication_id = ? AND status = ?", medicationID, status.String()).
		Count(&count).Error
	if err != nil {
		return 0, translateError(err)
	}
	return count, nil
}

// MedicationsWithStatus lists distinct medications having entries in status
func (r *GormMovementRepository) MedicationsWithStatus(ctx context.Context, status inventory.MovementStatus) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.StockMovementModel{}).
		Where("status = ?", status.String()).
		Distinct("medication_id").
		Order("medication_id ASC").
		Pluck("medication_id", &ids).Error
	if err != nil {
		return nil, translateError(err)
	}
	return ids, nil
}

// UpdateStatus writes m's status fields if the stored status still equals from
func (r *GormMovementRepository) UpdateStatus(ctx context.Context, m *inventory.StockMovement, from inventory.MovementStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.StockMovementModel{}).
		Where("id = ? AND status = ?", m.ID, from.String()).
		Updates(map[string]any{
			"status":          m.Status.String(),
			"error_message":   m.ErrorMessage,
			"synchronized_at": m.SynchronizedAt,
			"version":         m.Version,
			"updated_at":      m.UpdatedAt,
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, m.ID); err != nil {
			return err
		}
		return shared.NewConcurrentModificationError("stock movement", m.ID)
	}
	return nil
}

// MarkApplied records that the entry's quantity has been written to lots
func (r *GormMovementRepository) MarkApplied(ctx context.Context, m *inventory.StockMovement) error {
	result := r.db.WithContext(ctx).
		Model(&models.StockMovementModel{}).
		Where("id = ?", m.ID).
		Updates(map[string]any{
			"lot_applied":        m.LotApplied,
			"destination_lot_id": m.DestinationLotID,
			"updated_at":         m.UpdatedAt,
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("stock movement", m.ID)
	}
	return nil
}

func applyMovementFilter(query *gorm.DB, f inventory.MovementFilter) *gorm.DB {
	if f.MedicationID != nil {
		query = query.Where("medication_id = ?", *f.MedicationID)
	}
	if f.LotID != nil {
		query = query.Where("(lot_id = ? OR destination_lot_id = ?)", *f.LotID, *f.LotID)
	}
	if f.Type != nil {
		query = query.Where("type = ?", string(*f.Type))
	}
	if f.Status != nil {
		query = query.Where("status = ?", f.Status.String())
	}
	if f.From != nil {
		query = query.Where("recorded_at >= ?", *f.From)
	}
	if f.To != nil {
		query = query.Where("recorded_at <= ?", *f.To)
	}
	return query
}

func movementsToDomain(rows []models.StockMovementModel) []inventory.StockMovement {
	out := make([]inventory.StockMovement, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

var _ inventory.MovementRepository = (*GormMovementRepository)(nil)

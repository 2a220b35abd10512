package persistence

import (
	"context"
	"time"

	"github.com/clinic/pharmacy/internal/domain/inventory"
	"github.com/clinic/pharmacy/internal/domain/shared"
	"github.com/clinic/pharmacy/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLotRepository implements inventory.LotRepository using GORM.
// Quantity changes are single conditional UPDATE statements so concurrent
// writers can never drive a lot negative or above its initial quantity.
type GormLotRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormLotRepository creates a new GormLotRepository
func NewGormLotRepository(db *gorm.DB) *GormLotRepository {
	return &GormLotRepository{db: db, now: time.Now}
}

// FindByID finds a lot by its ID
func (r *GormLotRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Lot, error) {
	var model models.LotModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "lot", id)
	}
	return model.ToDomain(), nil
}

// FindByMedication lists a medication's lots in FEFO order, optionally for one store
func (r *GormLotRepository) FindByMedication(ctx context.Context, medicationID uuid.UUID, store *inventory.Store) ([]inventory.Lot, error) {
	query := r.db.WithContext(ctx).Where("medication_id = ?", medicationID)
	if store != nil {
		query = query.Where("store = ?", store.String())
	}
	var rows []models.LotModel
	if err := query.Order("expiry_date ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	return lotsToDomain(rows), nil
}

// FindByNumber finds the lot carrying lotNumber in store
func (r *GormLotRepository) FindByNumber(ctx context.Context, medicationID uuid.UUID, lotNumber string, store inventory.Store) (*inventory.Lot, error) {
	var model models.LotModel
	err := r.db.WithContext(ctx).
		Where("medication_id = ? AND lot_number = ? AND store = ?", medicationID, lotNumber, store.String()).
		First(&model).Error
	if err != nil {
		return nil, notFound(err, "lot", lotNumber)
	}
	return model.ToDomain(), nil
}

// FindExpiring returns active lots whose expiry date is before cutoff
func (r *GormLotRepository) FindExpiring(ctx context.Context, cutoff time.Time) ([]inventory.Lot, error) {
	var rows []models.LotModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND expiry_date < ?", inventory.LotStatusActive.String(), cutoff).
		Order("expiry_date ASC").Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, translateError(err)
	}
	return lotsToDomain(rows), nil
}

// FindAll lists lots filtered by medication_id, store or status
func (r *GormLotRepository) FindAll(ctx context.Context, filter shared.Filter) ([]inventory.Lot, int64, error) {
	base := func() *gorm.DB {
		return r.applyFilter(r.db.WithContext(ctx).Model(&models.LotModel{}), filter)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}

	var rows []models.LotModel
	query := applyOrder(base(), filter, LotSortFields, "expiry_date")
	if err := applyPage(query, filter).Find(&rows).Error; err != nil {
		return nil, 0, translateError(err)
	}
	return lotsToDomain(rows), total, nil
}

// Create inserts a new lot
func (r *GormLotRepository) Create(ctx context.Context, lot *inventory.Lot) error {
	return translateError(r.db.WithContext(ctx).Create(models.LotModelFromDomain(lot)).Error)
}

// Withdraw lowers quantity_available by qty only while at least qty remains
func (r *GormLotRepository) Withdraw(ctx context.Context, lotID uuid.UUID, qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return shared.NewValidationError("withdrawn quantity must be positive")
	}
	result := r.db.WithContext(ctx).
		Model(&models.LotModel{}).
		Where("id = ? AND quantity_available >= ?", lotID, qty).
		Updates(map[string]any{
			"quantity_available": gorm.Expr("quantity_available - ?", qty),
			"status": gorm.Expr("CASE WHEN quantity_available - ? <= 0 THEN ? ELSE status END",
				qty, inventory.LotStatusDepleted.String()),
			"version":    gorm.Expr("version + 1"),
			"updated_at": r.now(),
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		lot, err := r.FindByID(ctx, lotID)
		if err != nil {
			return err
		}
		return shared.NewInsufficientStockError("lot %s has %s available, %s requested",
			lot.LotNumber, lot.QuantityAvailable.String(), qty.String())
	}
	return nil
}

// Restock raises quantity_available without passing quantity_initial
func (r *GormLotRepository) Restock(ctx context.Context, lotID uuid.UUID, qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return shared.NewValidationError("returned quantity must be positive")
	}
	now := r.now()
	result := r.db.WithContext(ctx).
		Model(&models.LotModel{}).
		Where("id = ? AND quantity_available + ? <= quantity_initial", lotID, qty).
		Updates(map[string]any{
			"quantity_available": gorm.Expr("quantity_available + ?", qty),
			"status":             r.liveStatus(now),
			"version":            gorm.Expr("version + 1"),
			"updated_at":         now,
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		lot, err := r.FindByID(ctx, lotID)
		if err != nil {
			return err
		}
		return shared.NewValidationError("return of %s would exceed initial quantity %s of lot %s",
			qty.String(), lot.QuantityInitial.String(), lot.LotNumber)
	}
	return nil
}

// Absorb raises quantity_available and quantity_initial together
func (r *GormLotRepository) Absorb(ctx context.Context, lotID uuid.UUID, qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return shared.NewValidationError("received quantity must be positive")
	}
	now := r.now()
	result := r.db.WithContext(ctx).
		Model(&models.LotModel{}).
		Where("id = ?", lotID).
		Updates(map[string]any{
			"quantity_available": gorm.Expr("quantity_available + ?", qty),
			"quantity_initial":   gorm.Expr("quantity_initial + ?", qty),
			"status":             r.liveStatus(now),
			"version":            gorm.Expr("version + 1"),
			"updated_at":         now,
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("lot", lotID)
	}
	return nil
}

// liveStatus is the status of a lot that has just gained units
func (r *GormLotRepository) liveStatus(now time.Time) clause.Expr {
	return gorm.Expr("CASE WHEN expiry_date < ? THEN ? ELSE ? END",
		now, inventory.LotStatusExpired.String(), inventory.LotStatusActive.String())
}

// UpdateStatus overwrites the derived status of a lot
func (r *GormLotRepository) UpdateStatus(ctx context.Context, lotID uuid.UUID, status inventory.LotStatus) error {
	if !status.IsValid() {
		return shared.NewValidationError("invalid lot status: %s", status)
	}
	result := r.db.WithContext(ctx).
		Model(&models.LotModel{}).
		Where("id = ?", lotID).
		Updates(map[string]any{"status": status.String(), "updated_at": r.now()})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("lot", lotID)
	}
	return nil
}

// SumByStore totals available quantity per store for one medication
func (r *GormLotRepository) SumByStore(ctx context.Context, medicationID uuid.UUID) (inventory.StoreTotals, error) {
	var rows []struct {
		Store string
		Total decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Model(&models.LotModel{}).
		Select("store, COALESCE(SUM(quantity_available), 0) AS total").
		Where("medication_id = ?", medicationID).
		Group("store").
		Scan(&rows).Error
	if err != nil {
		return nil, translateError(err)
	}
	totals := inventory.StoreTotals{}
	for _, row := range rows {
		totals[inventory.Store(row.Store)] = row.Total
	}
	return totals, nil
}

func (r *GormLotRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case "medication_id":
			query = query.Where("medication_id = ?", value)
		case "store":
			query = query.Where("store = ?", value)
		case "status":
			query = query.Where("status = ?", value)
		}
	}
	if filter.Search != "" {
		query = query.Where("LOWER(lot_number) LIKE ? ESCAPE '\\'", likePattern(filter.Search))
	}
	return query
}

func lotsToDomain(rows []models.LotModel) []inventory.Lot {
	out := make([]inventory.Lot, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

var _ inventory.LotRepository = (*GormLotRepository)(nil)

package persistence

import (
	"context"

	"github.com/clinic/pharmacy/internal/domain/audit"
	"github.com/clinic/pharmacy/internal/domain/shared"
	"github.com/clinic/pharmacy/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormAuditRepository implements audit.Repository using GORM
type GormAuditRepository struct {
	db *gorm.DB
}

// NewGormAuditRepository creates a new GormAuditRepository
func NewGormAuditRepository(db *gorm.DB) *GormAuditRepository {
	return &GormAuditRepository{db: db}
}

// Append inserts an audit entry
func (r *GormAuditRepository) Append(ctx context.Context, e *audit.Entry) error {
	model, err := models.AuditEntryModelFromDomain(e)
	if err != nil {
		return shared.WrapDomainError(shared.CodeValidation, "audit payload is not serializable", err)
	}
	return translateError(r.db.WithContext(ctx).Create(model).Error)
}

// FindByEntity returns the newest entries for one entity first
func (r *GormAuditRepository) FindByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit int) ([]audit.Entry, error) {
	var rows []models.AuditEntryModel
	err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, translateError(err)
	}
	out := make([]audit.Entry, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

var _ audit.Repository = (*GormAuditRepository)(nil)

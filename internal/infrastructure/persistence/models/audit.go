package models

import (
	"encoding/json"
	"time"

	"github.com/clinic/pharmacy/internal/domain/audit"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AuditEntryModel is one row of stock_audit_log
type AuditEntryModel struct {
	ID         uuid.UUID      `gorm:"type:uuid;primary_key"`
	EntityType string         `gorm:"type:varchar(50);not null;index:idx_audit_entity,priority:1"`
	EntityID   uuid.UUID      `gorm:"type:uuid;not null;index:idx_audit_entity,priority:2"`
	Action     string         `gorm:"type:varchar(30);not null"`
	ActorID    string         `gorm:"type:varchar(100)"`
	OldStatus  string         `gorm:"type:varchar(30)"`
	NewStatus  string         `gorm:"type:varchar(30)"`
	OldData    datatypes.JSON `gorm:"type:jsonb"`
	NewData    datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt  time.Time      `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (AuditEntryModel) TableName() string {
	return "stock_audit_log"
}

// ToDomain converts the model to a domain audit Entry. Undecodable payloads
// are dropped rather than failing the whole history.
func (m *AuditEntryModel) ToDomain() audit.Entry {
	return audit.Entry{
		ID:         m.ID,
		EntityType: m.EntityType,
		EntityID:   m.EntityID,
		Action:     m.Action,
		ActorID:    m.ActorID,
		OldStatus:  m.OldStatus,
		NewStatus:  m.NewStatus,
		OldData:    decodePayload(m.OldData),
		NewData:    decodePayload(m.NewData),
		CreatedAt:  m.CreatedAt,
	}
}

// AuditEntryModelFromDomain builds a model from a domain audit Entry
func AuditEntryModelFromDomain(e *audit.Entry) (*AuditEntryModel, error) {
	oldData, err := encodePayload(e.OldData)
	if err != nil {
		return nil, err
	}
	newData, err := encodePayload(e.NewData)
	if err != nil {
		return nil, err
	}
	return &AuditEntryModel{
		ID:         e.ID,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Action:     e.Action,
		ActorID:    e.ActorID,
		OldStatus:  e.OldStatus,
		NewStatus:  e.NewStatus,
		OldData:    oldData,
		NewData:    newData,
		CreatedAt:  e.CreatedAt,
	}, nil
}

func encodePayload(data map[string]any) (datatypes.JSON, error) {
	if len(data) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func decodePayload(raw datatypes.JSON) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

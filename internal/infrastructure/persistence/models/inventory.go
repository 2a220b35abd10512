package models

import (
	"time"

	"github.com/clinic/pharmacy/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MedicationModel is the persistence model for the Medication aggregate root
type MedicationModel struct {
	AggregateModel
	Code              string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name              string          `gorm:"type:varchar(200);not null;index"`
	DosageForm        string          `gorm:"type:varchar(100)"`
	Strength          string          `gorm:"type:varchar(100)"`
	Category          string          `gorm:"type:varchar(100);index"`
	ReorderThreshold  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	StockoutThreshold decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ArchivedAt        *time.Time      `gorm:"index"`
}

// TableName returns the table name for GORM
func (MedicationModel) TableName() string {
	return "medications"
}

// ToDomain converts the model to a domain Medication
func (m *MedicationModel) ToDomain() *inventory.Medication {
	return &inventory.Medication{
		BaseAggregateRoot: m.ToAggregateRoot(),
		Code:              m.Code,
		Name:              m.Name,
		DosageForm:        m.DosageForm,
		Strength:          m.Strength,
		Category:          m.Category,
		ReorderThreshold:  m.ReorderThreshold,
		StockoutThreshold: m.StockoutThreshold,
		ArchivedAt:        m.ArchivedAt,
	}
}

// MedicationModelFromDomain builds a model from a domain Medication
func MedicationModelFromDomain(med *inventory.Medication) *MedicationModel {
	m := &MedicationModel{
		Code:              med.Code,
		Name:              med.Name,
		DosageForm:        med.DosageForm,
		Strength:          med.Strength,
		Category:          med.Category,
		ReorderThreshold:  med.ReorderThreshold,
		StockoutThreshold: med.StockoutThreshold,
		ArchivedAt:        med.ArchivedAt,
	}
	m.FromDomainAggregateRoot(med.BaseAggregateRoot)
	return m
}

// LotModel is the persistence model for the Lot aggregate root
type LotModel struct {
	AggregateModel
	MedicationID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_lot_medication_number_store,priority:1"`
	LotNumber         string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_lot_medication_number_store,priority:2"`
	Store             string          `gorm:"type:varchar(20);not null;uniqueIndex:idx_lot_medication_number_store,priority:3"`
	QuantityAvailable decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	QuantityInitial   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ExpiryDate        time.Time       `gorm:"type:date;not null;index"`
	UnitCost          decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	SupplierName      string          `gorm:"type:varchar(200)"`
	ReceptionDate     time.Time       `gorm:"not null"`
	Status            string          `gorm:"type:varchar(20);not null;index"`
}

// TableName returns the table name for GORM
func (LotModel) TableName() string {
	return "lots"
}

// ToDomain converts the model to a domain Lot
func (m *LotModel) ToDomain() *inventory.Lot {
	return &inventory.Lot{
		BaseAggregateRoot: m.ToAggregateRoot(),
		MedicationID:      m.MedicationID,
		LotNumber:         m.LotNumber,
		Store:             inventory.Store(m.Store),
		QuantityAvailable: m.QuantityAvailable,
		QuantityInitial:   m.QuantityInitial,
		ExpiryDate:        m.ExpiryDate,
		UnitCost:          m.UnitCost,
		SupplierName:      m.SupplierName,
		ReceptionDate:     m.ReceptionDate,
		Status:            inventory.LotStatus(m.Status),
	}
}

// LotModelFromDomain builds a model from a domain Lot
func LotModelFromDomain(l *inventory.Lot) *LotModel {
	m := &LotModel{
		MedicationID:      l.MedicationID,
		LotNumber:         l.LotNumber,
		Store:             l.Store.String(),
		QuantityAvailable: l.QuantityAvailable,
		QuantityInitial:   l.QuantityInitial,
		ExpiryDate:        l.ExpiryDate,
		UnitCost:          l.UnitCost,
		SupplierName:      l.SupplierName,
		ReceptionDate:     l.ReceptionDate,
		Status:            l.Status.String(),
	}
	m.FromDomainAggregateRoot(l.BaseAggregateRoot)
	return m
}

// StockMovementModel is one row of the stock ledger
type StockMovementModel struct {
	AggregateModel
	Type             string          `gorm:"type:varchar(20);not null;index"`
	MedicationID     uuid.UUID       `gorm:"type:uuid;not null;index:idx_movement_medication_status,priority:1"`
	LotID            *uuid.UUID      `gorm:"type:uuid;index"`
	DestinationLotID *uuid.UUID      `gorm:"type:uuid"`
	Quantity         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	OriginStore      *string         `gorm:"type:varchar(20)"`
	DestinationStore *string         `gorm:"type:varchar(20)"`
	ActorID          string          `gorm:"type:varchar(100);not null"`
	Reason           string          `gorm:"type:varchar(500)"`
	Status           string          `gorm:"type:varchar(20);not null;index:idx_movement_medication_status,priority:2"`
	LotApplied       bool            `gorm:"not null;default:false"`
	ErrorMessage     string          `gorm:"type:text"`
	RecordedAt       time.Time       `gorm:"not null;index:idx_movement_ledger,priority:1"`
	SynchronizedAt   *time.Time
}

// TableName returns the table name for GORM
func (StockMovementModel) TableName() string {
	return "stock_movements"
}

// ToDomain converts the model to a domain StockMovement
func (m *StockMovementModel) ToDomain() *inventory.StockMovement {
	return &inventory.StockMovement{
		BaseAggregateRoot: m.ToAggregateRoot(),
		Type:              inventory.MovementType(m.Type),
		MedicationID:      m.MedicationID,
		LotID:             m.LotID,
		DestinationLotID:  m.DestinationLotID,
		Quantity:          m.Quantity,
		OriginStore:       storePtr(m.OriginStore),
		DestinationStore:  storePtr(m.DestinationStore),
		ActorID:           m.ActorID,
		Reason:            m.Reason,
		Status:            inventory.MovementStatus(m.Status),
		LotApplied:        m.LotApplied,
		ErrorMessage:      m.ErrorMessage,
		RecordedAt:        m.RecordedAt,
		SynchronizedAt:    m.SynchronizedAt,
	}
}

// StockMovementModelFromDomain builds a model from a domain StockMovement
func StockMovementModelFromDomain(sm *inventory.StockMovement) *StockMovementModel {
	m := &StockMovementModel{
		Type:             string(sm.Type),
		MedicationID:     sm.MedicationID,
		LotID:            sm.LotID,
		DestinationLotID: sm.DestinationLotID,
		Quantity:         sm.Quantity,
		OriginStore:      storeString(sm.OriginStore),
		DestinationStore: storeString(sm.DestinationStore),
		ActorID:          sm.ActorID,
		Reason:           sm.Reason,
		Status:           sm.Status.String(),
		LotApplied:       sm.LotApplied,
		ErrorMessage:     sm.ErrorMessage,
		RecordedAt:       sm.RecordedAt,
		SynchronizedAt:   sm.SynchronizedAt,
	}
	m.FromDomainAggregateRoot(sm.BaseAggregateRoot)
	return m
}

// StoreStockLevelModel holds the reported total of one medication in one store
type StoreStockLevelModel struct {
	MedicationID       uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Store              string          `gorm:"type:varchar(20);primaryKey"`
	Quantity           decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	LastSynchronizedAt *time.Time
	Version            int       `gorm:"not null;default:1"`
	UpdatedAt          time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (StoreStockLevelModel) TableName() string {
	return "store_stock_levels"
}

// ToDomain converts the model to a domain StoreStockLevel
func (m *StoreStockLevelModel) ToDomain() inventory.StoreStockLevel {
	return inventory.StoreStockLevel{
		MedicationID:       m.MedicationID,
		Store:              inventory.Store(m.Store),
		Quantity:           m.Quantity,
		LastSynchronizedAt: m.LastSynchronizedAt,
		Version:            m.Version,
	}
}

func storePtr(s *string) *inventory.Store {
	if s == nil {
		return nil
	}
	st := inventory.Store(*s)
	return &st
}

func storeString(s *inventory.Store) *string {
	if s == nil {
		return nil
	}
	v := s.String()
	return &v
}

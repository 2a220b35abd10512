package models

import (
	"time"

	"github.com/clinic/pharmacy/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockCountModel is the count header row
type StockCountModel struct {
	AggregateModel
	CountNumber  string `gorm:"type:varchar(30);not null;uniqueIndex"`
	Store        string `gorm:"type:varchar(20);not null;index"`
	Status       string `gorm:"type:varchar(20);not null;index"`
	Notes        string `gorm:"type:text"`
	OpenedBy     string `gorm:"type:varchar(100);not null"`
	ValidatedBy  string `gorm:"type:varchar(100)"`
	ValidatedAt  *time.Time
	CancelledBy  string `gorm:"type:varchar(100)"`
	CancelledAt  *time.Time
	CancelReason string                `gorm:"type:varchar(500)"`
	Lines        []StockCountLineModel `gorm:"foreignKey:CountID;references:ID"`
}

// TableName returns the table name for GORM
func (StockCountModel) TableName() string {
	return "stock_counts"
}

// ToDomain converts the header and its preloaded lines to a domain StockCount
func (m *StockCountModel) ToDomain() *inventory.StockCount {
	c := &inventory.StockCount{
		BaseAggregateRoot: m.ToAggregateRoot(),
		CountNumber:       m.CountNumber,
		Store:             inventory.Store(m.Store),
		Status:            inventory.CountStatus(m.Status),
		Notes:             m.Notes,
		OpenedBy:          m.OpenedBy,
		ValidatedBy:       m.ValidatedBy,
		ValidatedAt:       m.ValidatedAt,
		CancelledBy:       m.CancelledBy,
		CancelledAt:       m.CancelledAt,
		CancelReason:      m.CancelReason,
		Lines:             make([]inventory.CountLine, len(m.Lines)),
	}
	for i := range m.Lines {
		c.Lines[i] = m.Lines[i].ToDomain()
	}
	return c
}

// StockCountModelFromDomain builds the header and line models
func StockCountModelFromDomain(c *inventory.StockCount) *StockCountModel {
	m := &StockCountModel{
		CountNumber:  c.CountNumber,
		Store:        c.Store.String(),
		Status:       c.Status.String(),
		Notes:        c.Notes,
		OpenedBy:     c.OpenedBy,
		ValidatedBy:  c.ValidatedBy,
		ValidatedAt:  c.ValidatedAt,
		CancelledBy:  c.CancelledBy,
		CancelledAt:  c.CancelledAt,
		CancelReason: c.CancelReason,
		Lines:        make([]StockCountLineModel, len(c.Lines)),
	}
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	for i, l := range c.Lines {
		m.Lines[i] = StockCountLineModelFromDomain(l)
		m.Lines[i].CountID = c.ID
	}
	return m
}

// StockCountLineModel is the count of one lot
type StockCountLineModel struct {
	ID               uuid.UUID       `gorm:"type:uuid;primary_key"`
	CountID          uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_count_line_lot,priority:1"`
	LotID            uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_count_line_lot,priority:2"`
	MedicationID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	LotNumber        string          `gorm:"type:varchar(100);not null"`
	ExpiryDate       time.Time       `gorm:"type:date;not null"`
	UnitCost         decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ExpectedQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	InitialQuantity  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	CountedQuantity  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Counted          bool            `gorm:"not null;default:false"`
	Remark           string          `gorm:"type:varchar(500)"`
	AdjustmentID     *uuid.UUID      `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (StockCountLineModel) TableName() string {
	return "stock_count_lines"
}

// ToDomain converts the model to a domain CountLine
func (m *StockCountLineModel) ToDomain() inventory.CountLine {
	return inventory.CountLine{
		ID:               m.ID,
		CountID:          m.CountID,
		LotID:            m.LotID,
		MedicationID:     m.MedicationID,
		LotNumber:        m.LotNumber,
		ExpiryDate:       m.ExpiryDate,
		UnitCost:         m.UnitCost,
		ExpectedQuantity: m.ExpectedQuantity,
		InitialQuantity:  m.InitialQuantity,
		CountedQuantity:  m.CountedQuantity,
		Counted:          m.Counted,
		Remark:           m.Remark,
		AdjustmentID:     m.AdjustmentID,
	}
}

// StockCountLineModelFromDomain builds a line model
func StockCountLineModelFromDomain(l inventory.CountLine) StockCountLineModel {
	return StockCountLineModel{
		ID:               l.ID,
		CountID:          l.CountID,
		LotID:            l.LotID,
		MedicationID:     l.MedicationID,
		LotNumber:        l.LotNumber,
		ExpiryDate:       l.ExpiryDate,
		UnitCost:         l.UnitCost,
		ExpectedQuantity: l.ExpectedQuantity,
		InitialQuantity:  l.InitialQuantity,
		CountedQuantity:  l.CountedQuantity,
		Counted:          l.Counted,
		Remark:           l.Remark,
		AdjustmentID:     l.AdjustmentID,
	}
}

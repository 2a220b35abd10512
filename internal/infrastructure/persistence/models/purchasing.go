package models

import (
	"time"

	"github.com/clinic/pharmacy/internal/domain/purchasing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SupplierModel is the persistence model for the Supplier aggregate root
type SupplierModel struct {
	AggregateModel
	Name    string `gorm:"type:varchar(200);not null;index"`
	Phone   string `gorm:"type:varchar(50)"`
	Email   string `gorm:"type:varchar(200)"`
	Address string `gorm:"type:text"`
	Notes   string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (SupplierModel) TableName() string {
	return "suppliers"
}

// ToDomain converts the model to a domain Supplier
func (m *SupplierModel) ToDomain() *purchasing.Supplier {
	return &purchasing.Supplier{
		BaseAggregateRoot: m.ToAggregateRoot(),
		Name:              m.Name,
		Phone:             m.Phone,
		Email:             m.Email,
		Address:           m.Address,
		Notes:             m.Notes,
	}
}

// SupplierModelFromDomain builds a model from a domain Supplier
func SupplierModelFromDomain(s *purchasing.Supplier) *SupplierModel {
	m := &SupplierModel{
		Name:    s.Name,
		Phone:   s.Phone,
		Email:   s.Email,
		Address: s.Address,
		Notes:   s.Notes,
	}
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	return m
}

// SupplierOrderModel is the order header row
type SupplierOrderModel struct {
	AggregateModel
	OrderNumber           string     `gorm:"type:varchar(30);not null;uniqueIndex"`
	SupplierID            uuid.UUID  `gorm:"type:uuid;not null;index"`
	Status                string     `gorm:"type:varchar(30);not null;index"`
	RequestedDeliveryDate *time.Time `gorm:"type:date"`
	Notes                 string     `gorm:"type:text"`
	CreatedBy             string     `gorm:"type:varchar(100);not null"`
	ValidatedBy           string     `gorm:"type:varchar(100)"`
	ValidatedAt           *time.Time
	SentAt                *time.Time
	ReceivedBy            string `gorm:"type:varchar(100)"`
	ReceivedAt            *time.Time
	DocumentKey           string                   `gorm:"type:varchar(300)"`
	Lines                 []SupplierOrderLineModel `gorm:"foreignKey:OrderID;references:ID"`
}

// TableName returns the table name for GORM
func (SupplierOrderModel) TableName() string {
	return "supplier_orders"
}

// ToDomain converts the header and its preloaded lines to a domain SupplierOrder
func (m *SupplierOrderModel) ToDomain() *purchasing.SupplierOrder {
	o := &purchasing.SupplierOrder{
		BaseAggregateRoot:     m.ToAggregateRoot(),
		OrderNumber:           m.OrderNumber,
		SupplierID:            m.SupplierID,
		Status:                purchasing.OrderStatus(m.Status),
		RequestedDeliveryDate: m.RequestedDeliveryDate,
		Notes:                 m.Notes,
		CreatedBy:             m.CreatedBy,
		ValidatedBy:           m.ValidatedBy,
		ValidatedAt:           m.ValidatedAt,
		SentAt:                m.SentAt,
		ReceivedBy:            m.ReceivedBy,
		ReceivedAt:            m.ReceivedAt,
		DocumentKey:           m.DocumentKey,
		Lines:                 make([]purchasing.OrderLine, len(m.Lines)),
	}
	for i := range m.Lines {
		o.Lines[i] = m.Lines[i].ToDomain()
	}
	return o
}

// SupplierOrderModelFromDomain builds the header model; lines are left empty
// because headers and lines are written separately.
func SupplierOrderModelFromDomain(o *purchasing.SupplierOrder) *SupplierOrderModel {
	m := &SupplierOrderModel{
		OrderNumber:           o.OrderNumber,
		SupplierID:            o.SupplierID,
		Status:                o.Status.String(),
		RequestedDeliveryDate: o.RequestedDeliveryDate,
		Notes:                 o.Notes,
		CreatedBy:             o.CreatedBy,
		ValidatedBy:           o.ValidatedBy,
		ValidatedAt:           o.ValidatedAt,
		SentAt:                o.SentAt,
		ReceivedBy:            o.ReceivedBy,
		ReceivedAt:            o.ReceivedAt,
		DocumentKey:           o.DocumentKey,
	}
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	return m
}

// SupplierOrderLineModel is one line of an order
type SupplierOrderLineModel struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primary_key"`
	OrderID            uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_order_line_no,priority:1"`
	LineNo             int             `gorm:"not null;uniqueIndex:idx_order_line_no,priority:2"`
	MedicationID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	Quantity           decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	EstimatedUnitPrice decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ReceivedQuantity   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (SupplierOrderLineModel) TableName() string {
	return "supplier_order_lines"
}

// ToDomain converts the model to a domain OrderLine
func (m *SupplierOrderLineModel) ToDomain() purchasing.OrderLine {
	return purchasing.OrderLine{
		ID:                 m.ID,
		OrderID:            m.OrderID,
		LineNo:             m.LineNo,
		MedicationID:       m.MedicationID,
		Quantity:           m.Quantity,
		EstimatedUnitPrice: m.EstimatedUnitPrice,
		ReceivedQuantity:   m.ReceivedQuantity,
	}
}

// SupplierOrderLineModelFromDomain builds a line model
func SupplierOrderLineModelFromDomain(l purchasing.OrderLine) SupplierOrderLineModel {
	return SupplierOrderLineModel{
		ID:                 l.ID,
		OrderID:            l.OrderID,
		LineNo:             l.LineNo,
		MedicationID:       l.MedicationID,
		Quantity:           l.Quantity,
		EstimatedUnitPrice: l.EstimatedUnitPrice,
		ReceivedQuantity:   l.ReceivedQuantity,
	}
}

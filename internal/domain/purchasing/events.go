package purchasing

import (
	"github.com/clinic/pharmacy/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event type constants
const (
	EventTypeOrderCreated       = "SupplierOrderCreated"
	EventTypeOrderStatusChanged = "SupplierOrderStatusChanged"
)

// OrderCreatedEvent is raised when a draft order is created
type OrderCreatedEvent struct {
	shared.BaseDomainEvent
	OrderID     uuid.UUID       `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	SupplierID  uuid.UUID       `json:"supplier_id"`
	Total       decimal.Decimal `json:"total"`
}

// NewOrderCreatedEvent creates an OrderCreatedEvent
func NewOrderCreatedEvent(o *SupplierOrder) *OrderCreatedEvent {
	return &OrderCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderCreated, AggregateTypeSupplierOrder, o.ID, o.CreatedBy),
		OrderID:         o.ID,
		OrderNumber:     o.OrderNumber,
		SupplierID:      o.SupplierID,
		Total:           ComputeOrderTotal(o),
	}
}

// OrderStatusChangedEvent is raised on every workflow step
type OrderStatusChangedEvent struct {
	shared.BaseDomainEvent
	OrderID     uuid.UUID   `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	From        OrderStatus `json:"from"`
	To          OrderStatus `json:"to"`
	DocumentKey string      `json:"document_key,omitempty"`
}

// NewOrderStatusChangedEvent creates an OrderStatusChangedEvent from the order's current status
func NewOrderStatusChangedEvent(o *SupplierOrder, from OrderStatus, actorID string) *OrderStatusChangedEvent {
	return &OrderStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderStatusChanged, AggregateTypeSupplierOrder, o.ID, actorID),
		OrderID:         o.ID,
		OrderNumber:     o.OrderNumber,
		From:            from,
		To:              o.Status,
		DocumentKey:     o.DocumentKey,
	}
}

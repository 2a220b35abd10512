package purchasing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/clinic/pharmacy/internal/domain/purchasing"
	"github.com/clinic/pharmacy/internal/domain/shared"
	"go.uber.org/zap"
)

// OrderDocument is the archived copy of an order as sent to the supplier
type OrderDocument struct {
	OrderNumber           string              `json:"order_number"`
	Status                string              `json:"status"`
	SentAt                *time.Time          `json:"sent_at,omitempty"`
	ValidatedBy           string              `json:"validated_by,omitempty"`
	RequestedDeliveryDate *time.Time          `json:"requested_delivery_date,omitempty"`
	Supplier              SupplierResponse    `json:"supplier"`
	Lines                 []OrderLineResponse `json:"lines"`
	Total                 string              `json:"total"`
	Notes                 string              `json:"notes,omitempty"`
}

// OrderDocumentHandler archives the order document when an order is sent
type OrderDocumentHandler struct {
	orders    purchasing.SupplierOrderRepository
	suppliers purchasing.SupplierRepository
	store     DocumentStore
	logger    *zap.Logger
}

// NewOrderDocumentHandler creates a new OrderDocumentHandler
func NewOrderDocumentHandler(
	orders purchasing.SupplierOrderRepository,
	suppliers purchasing.SupplierRepository,
	store DocumentStore,
	logger *zap.Logger,
) *OrderDocumentHandler {
	return &OrderDocumentHandler{orders: orders, suppliers: suppliers, store: store, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *OrderDocumentHandler) EventTypes() []string {
	return []string{purchasing.EventTypeOrderStatusChanged}
}

// Handle writes the document for orders that just reached SENT_TO_SUPPLIER
func (h *OrderDocumentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	changed, ok := event.(*purchasing.OrderStatusChangedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			purchasing.EventTypeOrderStatusChanged, event.EventType())
	}
	if changed.To != purchasing.OrderStatusSentToSupplier || changed.DocumentKey == "" {
		return nil
	}

	order, err := h.orders.FindByID(ctx, changed.OrderID)
	if err != nil {
		return err
	}
	supplier, err := h.suppliers.FindByID(ctx, order.SupplierID)
	if err != nil {
		return err
	}
	body, err := json.MarshalIndent(BuildOrderDocument(order, supplier), "", "  ")
	if err != nil {
		return err
	}
	if err := h.store.Put(ctx, changed.DocumentKey, body, "application/json"); err != nil {
		h.logger.Error("failed to archive order document",
			zap.String("order_number", order.OrderNumber),
			zap.String("key", changed.DocumentKey),
			zap.Error(err))
		return err
	}
	h.logger.Info("order document archived",
		zap.String("order_number", order.OrderNumber),
		zap.String("key", changed.DocumentKey),
		zap.Int("bytes", len(body)))
	return nil
}

// BuildOrderDocument renders the document content for an order
func BuildOrderDocument(order *purchasing.SupplierOrder, supplier *purchasing.Supplier) OrderDocument {
	resp := ToOrderResponse(order)
	return OrderDocument{
		OrderNumber:           order.OrderNumber,
		Status:                order.Status.String(),
		SentAt:                order.SentAt,
		ValidatedBy:           order.ValidatedBy,
		RequestedDeliveryDate: order.RequestedDeliveryDate,
		Supplier:              ToSupplierResponse(supplier),
		Lines:                 resp.Lines,
		Total:                 resp.Total.StringFixed(2),
		Notes:                 order.Notes,
	}
}

var _ shared.EventHandler = (*OrderDocumentHandler)(nil)

package purchasing

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/clinic/pharmacy/internal/domain/inventory"
	"github.com/clinic/pharmacy/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of a supplier order
type OrderStatus string

const (
	OrderStatusDraft             OrderStatus = "DRAFT"
	OrderStatusAwaitingSignature OrderStatus = "AWAITING_SIGNATURE"
	OrderStatusSentToSupplier    OrderStatus = "SENT_TO_SUPPLIER"
	OrderStatusReceived          OrderStatus = "RECEIVED"
)

// AllOrderStatuses lists the workflow in order
func AllOrderStatuses() []OrderStatus {
	return []OrderStatus{OrderStatusDraft, OrderStatusAwaitingSignature, OrderStatusSentToSupplier, OrderStatusReceived}
}

// IsValid checks if the status is a valid OrderStatus
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusDraft, OrderStatusAwaitingSignature, OrderStatusSentToSupplier, OrderStatusReceived:
		return true
	}
	return false
}

// String returns the string representation of OrderStatus
func (s OrderStatus) String() string {
	return string(s)
}

// CanTransitionTo reports whether target is the single next step of the workflow
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	switch s {
	case OrderStatusDraft:
		return target == OrderStatusAwaitingSignature
	case OrderStatusAwaitingSignature:
		return target == OrderStatusSentToSupplier
	case OrderStatusSentToSupplier:
		return target == OrderStatusReceived
	default:
		return false
	}
}

// ParseOrderStatus validates a raw status
func ParseOrderStatus(raw string) (OrderStatus, error) {
	s := OrderStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", shared.NewValidationError("invalid order status: %q", raw)
	}
	return s, nil
}

const (
	AggregateTypeSupplierOrder = "SupplierOrder"
	orderNumberPrefix          = "CF"
	maxOrderNotesLength        = 2000
)

// OrderLine is one medication requested from the supplier
type OrderLine struct {
	ID                 uuid.UUID
	OrderID            uuid.UUID
	LineNo             int
	MedicationID       uuid.UUID
	Quantity           decimal.Decimal
	EstimatedUnitPrice decimal.Decimal
	ReceivedQuantity   decimal.Decimal
}

// Amount is quantity times the estimated unit price
func (l OrderLine) Amount() decimal.Decimal {
	return l.Quantity.Mul(l.EstimatedUnitPrice)
}

// LineSpec is the input for one order line
type LineSpec struct {
	MedicationID       uuid.UUID
	Quantity           decimal.Decimal
	EstimatedUnitPrice decimal.Decimal
}

// SupplierOrder is a purchase order moving through
// DRAFT -> AWAITING_SIGNATURE -> SENT_TO_SUPPLIER -> RECEIVED, never backwards.
type SupplierOrder struct {
	shared.BaseAggregateRoot
	OrderNumber           string
	SupplierID            uuid.UUID
	Status                OrderStatus
	RequestedDeliveryDate *time.Time
	Notes                 string
	CreatedBy             string
	ValidatedBy           string
	ValidatedAt           *time.Time
	SentAt                *time.Time
	ReceivedBy            string
	ReceivedAt            *time.Time
	DocumentKey           string
	Lines                 []OrderLine
}

// NewSupplierOrder creates a DRAFT order. At least one line must ask for a
// positive quantity; no line may be negative.
func NewSupplierOrder(orderNumber string, supplierID uuid.UUID, lines []LineSpec, deliveryDate *time.Time, notes, createdBy string) (*SupplierOrder, error) {
	if strings.TrimSpace(orderNumber) == "" {
		return nil, shared.NewValidationError("order number cannot be empty")
	}
	if supplierID == uuid.Nil {
		return nil, shared.NewValidationError("supplier_id is required")
	}
	if len(notes) > maxOrderNotesLength {
		return nil, shared.NewValidationError("notes cannot exceed %d characters", maxOrderNotesLength)
	}

	order := &SupplierOrder{
		BaseAggregateRoot:     shared.NewBaseAggregateRoot(),
		OrderNumber:           orderNumber,
		SupplierID:            supplierID,
		Status:                OrderStatusDraft,
		RequestedDeliveryDate: deliveryDate,
		Notes:                 strings.TrimSpace(notes),
		CreatedBy:             createdBy,
		Lines:                 make([]OrderLine, 0, len(lines)),
	}
	for i, spec := range lines {
		if spec.MedicationID == uuid.Nil {
			return nil, shared.NewValidationError("line %d: medication_id is required", i+1)
		}
		if spec.Quantity.IsNegative() {
			return nil, shared.NewValidationError("line %d: quantity cannot be negative", i+1)
		}
		if spec.EstimatedUnitPrice.IsNegative() {
			return nil, shared.NewValidationError("line %d: estimated unit price cannot be negative", i+1)
		}
		order.Lines = append(order.Lines, OrderLine{
			ID:                 uuid.New(),
			OrderID:            order.ID,
			LineNo:             i + 1,
			MedicationID:       spec.MedicationID,
			Quantity:           spec.Quantity,
			EstimatedUnitPrice: spec.EstimatedUnitPrice,
			ReceivedQuantity:   decimal.Zero,
		})
	}
	if !order.HasOrderableLine() {
		return nil, shared.NewValidationError("order needs at least one line with a positive quantity")
	}

	order.AddDomainEvent(NewOrderCreatedEvent(order))
	return order, nil
}

// HasOrderableLine reports whether any line asks for a positive quantity
func (o *SupplierOrder) HasOrderableLine() bool {
	for _, l := range o.Lines {
		if l.Quantity.IsPositive() {
			return true
		}
	}
	return false
}

// Total returns the estimated order amount
func (o *SupplierOrder) Total() decimal.Decimal {
	return ComputeOrderTotal(o)
}

// ComputeOrderTotal sums quantity x estimated unit price over all lines
func ComputeOrderTotal(o *SupplierOrder) decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.Lines {
		total = total.Add(l.Amount())
	}
	return total
}

// Advance moves the order one step forward. Reaching RECEIVED goes through Receive.
func (o *SupplierOrder) Advance(target OrderStatus, actorID string, now time.Time) error {
	if err := o.checkTransition(target); err != nil {
		return err
	}
	if target == OrderStatusReceived {
		return shared.NewValidationError("receiving an order requires the received line details")
	}
	if strings.TrimSpace(actorID) == "" {
		return shared.NewValidationError("actor_id is required")
	}
	if !o.HasOrderableLine() {
		return shared.NewValidationError("order needs at least one line with a positive quantity")
	}

	from := o.Status
	o.ValidatedBy = actorID
	o.ValidatedAt = &now
	if target == OrderStatusSentToSupplier {
		o.SentAt = &now
		o.DocumentKey = DocumentKeyFor(o.OrderNumber)
	}
	o.Status = target
	o.IncrementVersion()
	o.AddDomainEvent(NewOrderStatusChangedEvent(o, from, actorID))
	return nil
}

func (o *SupplierOrder) checkTransition(target OrderStatus) error {
	if !target.IsValid() || !o.Status.CanTransitionTo(target) {
		return shared.NewInvalidTransitionError(o.Status.String(), target.String())
	}
	return nil
}

// ReceiptLine is what actually arrived for one order line
type ReceiptLine struct {
	LineNo     int
	LotNumber  string
	ExpiryDate time.Time
	Quantity   decimal.Decimal
	// UnitCost defaults to the line's estimated unit price
	UnitCost *decimal.Decimal
	// Store defaults to wholesale
	Store *inventory.Store
}

// Receipt confirms the delivery of an order
type Receipt struct {
	Lines []ReceiptLine
}

// ReceivedLot pairs an order line with the lot to open for it
type ReceivedLot struct {
	LineNo int
	Lot    inventory.LotSpec
}

// Receive moves a SENT_TO_SUPPLIER order to RECEIVED. Every line with a
// positive ordered quantity must appear exactly once in the receipt. It
// returns one lot to open per received line.
func (o *SupplierOrder) Receive(receipt Receipt, supplierName, actorID string, now time.Time) ([]ReceivedLot, error) {
	if err := o.checkTransition(OrderStatusReceived); err != nil {
		return nil, err
	}
	if strings.TrimSpace(actorID) == "" {
		return nil, shared.NewValidationError("actor_id is required")
	}

	byLine := make(map[int]ReceiptLine, len(receipt.Lines))
	for _, rl := range receipt.Lines {
		if _, dup := byLine[rl.LineNo]; dup {
			return nil, shared.NewValidationError("line %d appears twice in the receipt", rl.LineNo)
		}
		byLine[rl.LineNo] = rl
	}

	received := make([]ReceivedLot, 0, len(o.Lines))
	for i := range o.Lines {
		line := &o.Lines[i]
		rl, ok := byLine[line.LineNo]
		if !line.Quantity.IsPositive() {
			if ok {
				return nil, shared.NewValidationError("line %d was not ordered", line.LineNo)
			}
			continue
		}
		if !ok {
			return nil, shared.NewValidationError("line %d is missing from the receipt", line.LineNo)
		}
		delete(byLine, line.LineNo)

		if !rl.Quantity.IsPositive() {
			return nil, shared.NewValidationError("line %d: received quantity must be positive", line.LineNo)
		}
		store := inventory.StoreWholesale
		if rl.Store != nil {
			store = *rl.Store
		}
		cost := line.EstimatedUnitPrice
		if rl.UnitCost != nil {
			cost = *rl.UnitCost
		}
		spec := inventory.LotSpec{
			MedicationID:  line.MedicationID,
			LotNumber:     rl.LotNumber,
			Store:         store,
			Quantity:      rl.Quantity,
			ExpiryDate:    rl.ExpiryDate,
			UnitCost:      cost,
			SupplierName:  supplierName,
			ReceptionDate: now,
		}
		if _, err := inventory.NewLot(spec); err != nil {
			return nil, shared.NewValidationError("line %d: %s", line.LineNo, err)
		}
		line.ReceivedQuantity = rl.Quantity
		received = append(received, ReceivedLot{LineNo: line.LineNo, Lot: spec})
	}
	if len(byLine) > 0 {
		unknown := slices.Sorted(maps.Keys(byLine))
		return nil, shared.NewValidationError("receipt references unknown lines %v", unknown)
	}

	from := o.Status
	o.Status = OrderStatusReceived
	o.ReceivedBy = actorID
	o.ReceivedAt = &now
	o.IncrementVersion()
	o.AddDomainEvent(NewOrderStatusChangedEvent(o, from, actorID))
	return received, nil
}

// GenerateOrderNumber formats CF-YYYY-NNNNN
func GenerateOrderNumber(year, sequence int) string {
	return fmt.Sprintf("%s-%d-%05d", orderNumberPrefix, year, sequence)
}

// ParseOrderSequence extracts NNNNN from CF-YYYY-NNNNN
func ParseOrderSequence(orderNumber string) (int, bool) {
	parts := strings.Split(orderNumber, "-")
	if len(parts) != 3 || parts[0] != orderNumberPrefix {
		return 0, false
	}
	n, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, false
	}
	return n, true
}

// DocumentKeyFor is the archive key of an order's purchase-order document
func DocumentKeyFor(orderNumber string) string {
	return "purchase-orders/" + orderNumber + ".json"
}

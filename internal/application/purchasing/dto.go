package purchasing

import (
	"time"

	"github.com/clinic/pharmacy/internal/domain/inventory"
	"github.com/clinic/pharmacy/internal/domain/purchasing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateSupplierRequest creates a supplier
type CreateSupplierRequest struct {
	Name    string `json:"name" binding:"required,min=1,max=200"`
	Phone   string `json:"phone" binding:"omitempty,max=50"`
	Email   string `json:"email" binding:"omitempty,email"`
	Address string `json:"address" binding:"omitempty,max=500"`
	Notes   string `json:"notes" binding:"omitempty,max=2000"`
}

func (r CreateSupplierRequest) contact() purchasing.SupplierContact {
	return purchasing.SupplierContact{Name: r.Name, Phone: r.Phone, Email: r.Email, Address: r.Address, Notes: r.Notes}
}

// UpdateSupplierRequest replaces a supplier's contact details
type UpdateSupplierRequest struct {
	CreateSupplierRequest
	Version int `json:"version" binding:"required,min=1"`
}

// SupplierResponse is a supplier in API responses
type SupplierResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Address   string    `json:"address,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

// OrderLineInput is one requested line
type OrderLineInput struct {
	MedicationID       uuid.UUID       `json:"medication_id" binding:"required"`
	Quantity           decimal.Decimal `json:"quantity"`
	EstimatedUnitPrice decimal.Decimal `json:"estimated_unit_price"`
}

// CreateOrderRequest creates a DRAFT supplier order
type CreateOrderRequest struct {
	SupplierID            uuid.UUID        `json:"supplier_id" binding:"required"`
	Lines                 []OrderLineInput `json:"lines" binding:"required,min=1,dive"`
	RequestedDeliveryDate *time.Time       `json:"requested_delivery_date"`
	Notes                 string           `json:"notes" binding:"omitempty,max=2000"`
	CreatedBy             string           `json:"created_by"`
}

// ReceiptLineInput records what arrived for one order line
type ReceiptLineInput struct {
	LineNo     int              `json:"line_no" binding:"required,min=1"`
	LotNumber  string           `json:"lot_number" binding:"required,max=100"`
	ExpiryDate time.Time        `json:"expiry_date" binding:"required"`
	Quantity   decimal.Decimal  `json:"quantity"`
	UnitCost   *decimal.Decimal `json:"unit_cost"`
	Store      *string          `json:"store" binding:"omitempty,oneof=wholesale retail"`
}

// AdvanceStatusRequest moves an order one step forward. Receipt is required
// when the target is RECEIVED. A non-zero Version must match the stored one.
type AdvanceStatusRequest struct {
	Status  string             `json:"status" binding:"required"`
	ActorID string             `json:"actor_id"`
	Version int                `json:"version" binding:"omitempty,min=1"`
	Receipt []ReceiptLineInput `json:"receipt" binding:"omitempty,dive"`
}

// OrderListFilter filters supplier orders
type OrderListFilter struct {
	Status     string     `form:"status"`
	SupplierID *uuid.UUID `form:"supplier_id"`
	Page       int        `form:"page" binding:"omitempty,min=1"`
	PageSize   int        `form:"page_size" binding:"omitempty,min=1,max=200"`
}

// OrderLineResponse is an order line in API responses
type OrderLineResponse struct {
	ID                 uuid.UUID       `json:"id"`
	LineNo             int             `json:"line_no"`
	MedicationID       uuid.UUID       `json:"medication_id"`
	Quantity           decimal.Decimal `json:"quantity"`
	EstimatedUnitPrice decimal.Decimal `json:"estimated_unit_price"`
	Amount             decimal.Decimal `json:"amount"`
	ReceivedQuantity   decimal.Decimal `json:"received_quantity"`
}

// OrderResponse is a supplier order in API responses
type OrderResponse struct {
	ID                    uuid.UUID           `json:"id"`
	OrderNumber           string              `json:"order_number"`
	SupplierID            uuid.UUID           `json:"supplier_id"`
	Status                string              `json:"status"`
	RequestedDeliveryDate *time.Time          `json:"requested_delivery_date,omitempty"`
	Notes                 string              `json:"notes,omitempty"`
	CreatedBy             string              `json:"created_by,omitempty"`
	ValidatedBy           string              `json:"validated_by,omitempty"`
	ValidatedAt           *time.Time          `json:"validated_at,omitempty"`
	SentAt                *time.Time          `json:"sent_at,omitempty"`
	ReceivedBy            string              `json:"received_by,omitempty"`
	ReceivedAt            *time.Time          `json:"received_at,omitempty"`
	HasDocument           bool                `json:"has_document"`
	Total                 decimal.Decimal     `json:"total"`
	Lines                 []OrderLineResponse `json:"lines"`
	CreatedAt             time.Time           `json:"created_at"`
	UpdatedAt             time.Time           `json:"updated_at"`
	Version               int                 `json:"version"`
}

// AdvanceResult is the order after a transition plus any lots it opened
type AdvanceResult struct {
	Order     OrderResponse `json:"order"`
	LotIDs    []uuid.UUID   `json:"lot_ids,omitempty"`
	Movements []uuid.UUID   `json:"movement_ids,omitempty"`
}

// DocumentLink is a time-limited URL to an archived order document
type DocumentLink struct {
	OrderNumber string    `json:"order_number"`
	URL         string    `json:"url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ToSupplierResponse converts a domain supplier
func ToSupplierResponse(s *purchasing.Supplier) SupplierResponse {
	return SupplierResponse{
		ID:        s.ID,
		Name:      s.Name,
		Phone:     s.Phone,
		Email:     s.Email,
		Address:   s.Address,
		Notes:     s.Notes,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		Version:   s.Version,
	}
}

// ToOrderResponse converts a domain order
func ToOrderResponse(o *purchasing.SupplierOrder) OrderResponse {
	lines := make([]OrderLineResponse, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = OrderLineResponse{
			ID:                 l.ID,
			LineNo:             l.LineNo,
			MedicationID:       l.MedicationID,
			Quantity:           l.Quantity,
			EstimatedUnitPrice: l.EstimatedUnitPrice,
			Amount:             l.Amount(),
			ReceivedQuantity:   l.ReceivedQuantity,
		}
	}
	return OrderResponse{
		ID:                    o.ID,
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
		HasDocument:           o.DocumentKey != "",
		Total:                 purchasing.ComputeOrderTotal(o),
		Lines:                 lines,
		CreatedAt:             o.CreatedAt,
		UpdatedAt:             o.UpdatedAt,
		Version:               o.Version,
	}
}

func toReceipt(lines []ReceiptLineInput) (purchasing.Receipt, error) {
	receipt := purchasing.Receipt{Lines: make([]purchasing.ReceiptLine, 0, len(lines))}
	for _, in := range lines {
		rl := purchasing.ReceiptLine{
			LineNo:     in.LineNo,
			LotNumber:  in.LotNumber,
			ExpiryDate: in.ExpiryDate,
			Quantity:   in.Quantity,
			UnitCost:   in.UnitCost,
		}
		if in.Store != nil {
			st, err := inventory.ParseStore(*in.Store)
			if err != nil {
				return purchasing.Receipt{}, err
			}
			rl.Store = &st
		}
		receipt.Lines = append(receipt.Lines, rl)
	}
	return receipt, nil
}

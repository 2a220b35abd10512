package inventory

import (
	"time"

	"github.com/clinic/pharmacy/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OpenCountRequest opens a physical count of one store
type OpenCountRequest struct {
	Store   string `json:"store" binding:"required,oneof=wholesale retail"`
	Notes   string `json:"notes" binding:"omitempty,max=2000"`
	ActorID string `json:"actor_id"`
}

// CountEntryInput is the counted quantity of one lot
type CountEntryInput struct {
	LotID    uuid.UUID       `json:"lot_id" binding:"required"`
	Quantity decimal.Decimal `json:"quantity"`
	Remark   string          `json:"remark" binding:"omitempty,max=500"`
}

// RecordCountsRequest records counted quantities
type RecordCountsRequest struct {
	Counts  []CountEntryInput `json:"counts" binding:"required,min=1,dive"`
	Version int               `json:"version"`
}

// ValidateCountRequest settles a count's differences in the ledger
type ValidateCountRequest struct {
	ActorID string `json:"actor_id"`
}

// CancelCountRequest abandons a count
type CancelCountRequest struct {
	Reason  string `json:"reason" binding:"required,min=1,max=500"`
	ActorID string `json:"actor_id"`
}

// CountListFilter filters counts
type CountListFilter struct {
	Store    string `form:"store" binding:"omitempty,oneof=wholesale retail"`
	Status   string `form:"status"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// CountLineResponse is one counted lot in API responses
type CountLineResponse struct {
	ID               uuid.UUID       `json:"id"`
	LotID            uuid.UUID       `json:"lot_id"`
	MedicationID     uuid.UUID       `json:"medication_id"`
	LotNumber        string          `json:"lot_number"`
	ExpiryDate       time.Time       `json:"expiry_date"`
	ExpectedQuantity decimal.Decimal `json:"expected_quantity"`
	CountedQuantity  decimal.Decimal `json:"counted_quantity"`
	Difference       decimal.Decimal `json:"difference"`
	DifferenceValue  decimal.Decimal `json:"difference_value"`
	Counted          bool            `json:"counted"`
	Remark           string          `json:"remark,omitempty"`
	AdjustmentID     *uuid.UUID      `json:"adjustment_id,omitempty"`
}

// CountResponse is a stock count in API responses. Lines are left out of lists.
type CountResponse struct {
	ID                   uuid.UUID           `json:"id"`
	CountNumber          string              `json:"count_number"`
	Store                string              `json:"store"`
	Status               string              `json:"status"`
	Notes                string              `json:"notes,omitempty"`
	OpenedBy             string              `json:"opened_by"`
	ValidatedBy          string              `json:"validated_by,omitempty"`
	ValidatedAt          *time.Time          `json:"validated_at,omitempty"`
	CancelledBy          string              `json:"cancelled_by,omitempty"`
	CancelledAt          *time.Time          `json:"cancelled_at,omitempty"`
	CancelReason         string              `json:"cancel_reason,omitempty"`
	TotalLots            int                 `json:"total_lots"`
	CountedLots          int                 `json:"counted_lots"`
	TotalDifference      decimal.Decimal     `json:"total_difference"`
	TotalDifferenceValue decimal.Decimal     `json:"total_difference_value"`
	Lines                []CountLineResponse `json:"lines,omitempty"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
	Version              int                 `json:"version"`
}

// CountValidationResult is a validated count with the ledger entries it produced
type CountValidationResult struct {
	Count     CountResponse `json:"count"`
	Movements []uuid.UUID   `json:"movements"`
}

// ToCountResponse converts a count and its lines
func ToCountResponse(c *inventory.StockCount) CountResponse {
	resp := toCountSummary(c)
	resp.Lines = make([]CountLineResponse, len(c.Lines))
	for i, l := range c.Lines {
		resp.Lines[i] = CountLineResponse{
			ID:               l.ID,
			LotID:            l.LotID,
			MedicationID:     l.MedicationID,
			LotNumber:        l.LotNumber,
			ExpiryDate:       l.ExpiryDate,
			ExpectedQuantity: l.ExpectedQuantity,
			CountedQuantity:  l.CountedQuantity,
			Difference:       l.Difference(),
			DifferenceValue:  l.DifferenceValue(),
			Counted:          l.Counted,
			Remark:           l.Remark,
			AdjustmentID:     l.AdjustmentID,
		}
	}
	return resp
}

func toCountSummary(c *inventory.StockCount) CountResponse {
	counted, total := c.Progress()
	return CountResponse{
		ID:                   c.ID,
		CountNumber:          c.CountNumber,
		Store:                c.Store.String(),
		Status:               c.Status.String(),
		Notes:                c.Notes,
		OpenedBy:             c.OpenedBy,
		ValidatedBy:          c.ValidatedBy,
		ValidatedAt:          c.ValidatedAt,
		CancelledBy:          c.CancelledBy,
		CancelledAt:          c.CancelledAt,
		CancelReason:         c.CancelReason,
		TotalLots:            total,
		CountedLots:          counted,
		TotalDifference:      c.TotalDifference(),
		TotalDifferenceValue: c.TotalDifferenceValue(),
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
		Version:              c.Version,
	}
}

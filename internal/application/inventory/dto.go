package inventory

import (
	"time"

	"github.com/clinic/pharmacy/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateMedicationRequest creates a catalog entry. A blank code is generated.
type CreateMedicationRequest struct {
	Code              string          `json:"code" binding:"omitempty,max=50"`
	Name              string          `json:"name" binding:"required,min=1,max=200"`
	DosageForm        string          `json:"dosage_form" binding:"omitempty,max=100"`
	Strength          string          `json:"strength" binding:"omitempty,max=100"`
	Category          string          `json:"category" binding:"omitempty,max=100"`
	ReorderThreshold  decimal.Decimal `json:"reorder_threshold"`
	StockoutThreshold decimal.Decimal `json:"stockout_threshold"`
}

// UpdateMedicationRequest replaces a medication's editable fields
type UpdateMedicationRequest struct {
	Name              string          `json:"name" binding:"required,min=1,max=200"`
	DosageForm        string          `json:"dosage_form" binding:"omitempty,max=100"`
	Strength          string          `json:"strength" binding:"omitempty,max=100"`
	Category          string          `json:"category" binding:"omitempty,max=100"`
	ReorderThreshold  decimal.Decimal `json:"reorder_threshold"`
	StockoutThreshold decimal.Decimal `json:"stockout_threshold"`
	Version           int             `json:"version" binding:"required,min=1"`
}

func (r UpdateMedicationRequest) details() inventory.MedicationDetails {
	return inventory.MedicationDetails{
		Name:              r.Name,
		DosageForm:        r.DosageForm,
		Strength:          r.Strength,
		Category:          r.Category,
		ReorderThreshold:  r.ReorderThreshold,
		StockoutThreshold: r.StockoutThreshold,
	}
}

// MedicationListFilter filters the catalog
type MedicationListFilter struct {
	Search          string `form:"search"`
	Category        string `form:"category"`
	IncludeArchived bool   `form:"include_archived"`
	Page            int    `form:"page" binding:"omitempty,min=1"`
	PageSize        int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy         string `form:"order_by"`
	OrderDir        string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// MedicationResponse is a catalog entry in API responses
type MedicationResponse struct {
	ID                uuid.UUID       `json:"id"`
	Code              string          `json:"code"`
	Name              string          `json:"name"`
	DosageForm        string          `json:"dosage_form,omitempty"`
	Strength          string          `json:"strength,omitempty"`
	Category          string          `json:"category,omitempty"`
	ReorderThreshold  decimal.Decimal `json:"reorder_threshold"`
	StockoutThreshold decimal.Decimal `json:"stockout_threshold"`
	ArchivedAt        *time.Time      `json:"archived_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Version           int             `json:"version"`
}

// LotResponse is a lot in API responses
type LotResponse struct {
	ID                uuid.UUID       `json:"id"`
	MedicationID      uuid.UUID       `json:"medication_id"`
	LotNumber         string          `json:"lot_number"`
	Store             string          `json:"store"`
	QuantityAvailable decimal.Decimal `json:"quantity_available"`
	QuantityInitial   decimal.Decimal `json:"quantity_initial"`
	ExpiryDate        time.Time       `json:"expiry_date"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
	SupplierName      string          `json:"supplier_name,omitempty"`
	ReceptionDate     time.Time       `json:"reception_date"`
	Status            string          `json:"status"`
}

// RecordMovementRequest records one ledger entry
type RecordMovementRequest struct {
	Type             string          `json:"type" binding:"required,oneof=reception dispensation transfer return loss"`
	MedicationID     uuid.UUID       `json:"medication_id" binding:"required"`
	LotID            *uuid.UUID      `json:"lot_id"`
	Quantity         decimal.Decimal `json:"quantity"`
	OriginStore      *string         `json:"origin_store" binding:"omitempty,oneof=wholesale retail"`
	DestinationStore *string         `json:"destination_store" binding:"omitempty,oneof=wholesale retail"`
	ActorID          string          `json:"actor_id"`
	Reason           string          `json:"reason" binding:"omitempty,max=500"`
}

// MovementListFilter filters the ledger
type MovementListFilter struct {
	MedicationID *uuid.UUID `form:"medication_id"`
	LotID        *uuid.UUID `form:"lot_id"`
	Type         string     `form:"type" binding:"omitempty,oneof=reception dispensation transfer return loss"`
	Status       string     `form:"status" binding:"omitempty,oneof=pending synchronized error"`
	From         *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To           *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Page         int        `form:"page" binding:"omitempty,min=1"`
	PageSize     int        `form:"page_size" binding:"omitempty,min=1,max=200"`
}

// MovementResponse is a ledger entry in API responses
type MovementResponse struct {
	ID               uuid.UUID       `json:"id"`
	Type             string          `json:"type"`
	MedicationID     uuid.UUID       `json:"medication_id"`
	LotID            *uuid.UUID      `json:"lot_id,omitempty"`
	DestinationLotID *uuid.UUID      `json:"destination_lot_id,omitempty"`
	Quantity         decimal.Decimal `json:"quantity"`
	OriginStore      *string         `json:"origin_store,omitempty"`
	DestinationStore *string         `json:"destination_store,omitempty"`
	ActorID          string          `json:"actor_id,omitempty"`
	Reason           string          `json:"reason,omitempty"`
	Status           string          `json:"status"`
	LotApplied       bool            `json:"lot_applied"`
	ErrorMessage     string          `json:"error_message,omitempty"`
	Timestamp        time.Time       `json:"timestamp"`
	SynchronizedAt   *time.Time      `json:"synchronized_at,omitempty"`
}

// SyncRecordResponse is a SynchronizationRecord in API responses
type SyncRecordResponse struct {
	MedicationID         uuid.UUID       `json:"medication_id"`
	WholesaleQuantity    decimal.Decimal `json:"wholesale_quantity"`
	RetailQuantity       decimal.Decimal `json:"retail_quantity"`
	ReportedWholesale    decimal.Decimal `json:"reported_wholesale"`
	ReportedRetail       decimal.Decimal `json:"reported_retail"`
	Divergence           decimal.Decimal `json:"divergence"`
	Status               string          `json:"status"`
	LastSynchronizedAt   *time.Time      `json:"last_synchronized_at,omitempty"`
	PendingMovementCount int64           `json:"pending_movement_count"`
	ErroredMovementCount int64           `json:"errored_movement_count"`
}

// MovementFailure describes a ledger entry a reconcile pass could not replay
type MovementFailure struct {
	MovementID   uuid.UUID `json:"movement_id"`
	MedicationID uuid.UUID `json:"medication_id"`
	Code         string    `json:"code"`
	Message      string    `json:"message"`
}

// ReconcileResult is the aggregate outcome of a reconcile pass. Partial
// failure is reported here rather than as an error.
type ReconcileResult struct {
	Synchronized []uuid.UUID          `json:"synchronized"`
	Errored      []MovementFailure    `json:"errored"`
	Skipped      []uuid.UUID          `json:"skipped,omitempty"`
	Records      []SyncRecordResponse `json:"records"`
}

func newReconcileResult() *ReconcileResult {
	return &ReconcileResult{
		Synchronized: []uuid.UUID{},
		Errored:      []MovementFailure{},
		Records:      []SyncRecordResponse{},
	}
}

// ToMedicationResponse converts a domain medication
func ToMedicationResponse(m *inventory.Medication) MedicationResponse {
	return MedicationResponse{
		ID:                m.ID,
		Code:              m.Code,
		Name:              m.Name,
		DosageForm:        m.DosageForm,
		Strength:          m.Strength,
		Category:          m.Category,
		ReorderThreshold:  m.ReorderThreshold,
		StockoutThreshold: m.StockoutThreshold,
		ArchivedAt:        m.ArchivedAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
		Version:           m.Version,
	}
}

// ToMedicationResponses converts a slice of medications
func ToMedicationResponses(ms []inventory.Medication) []MedicationResponse {
	out := make([]MedicationResponse, len(ms))
	for i := range ms {
		out[i] = ToMedicationResponse(&ms[i])
	}
	return out
}

// ToLotResponse converts a domain lot
func ToLotResponse(l *inventory.Lot) LotResponse {
	return LotResponse{
		ID:                l.ID,
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
}

// ToLotResponses converts a slice of lots
func ToLotResponses(lots []inventory.Lot) []LotResponse {
	out := make([]LotResponse, len(lots))
	for i := range lots {
		out[i] = ToLotResponse(&lots[i])
	}
	return out
}

// ToMovementResponse converts a ledger entry
func ToMovementResponse(m *inventory.StockMovement) MovementResponse {
	return MovementResponse{
		ID:               m.ID,
		Type:             m.Type.String(),
		MedicationID:     m.MedicationID,
		LotID:            m.LotID,
		DestinationLotID: m.DestinationLotID,
		Quantity:         m.Quantity,
		OriginStore:      storeString(m.OriginStore),
		DestinationStore: storeString(m.DestinationStore),
		ActorID:          m.ActorID,
		Reason:           m.Reason,
		Status:           m.Status.String(),
		LotApplied:       m.LotApplied,
		ErrorMessage:     m.ErrorMessage,
		Timestamp:        m.RecordedAt,
		SynchronizedAt:   m.SynchronizedAt,
	}
}

// ToMovementResponses converts a slice of ledger entries
func ToMovementResponses(ms []inventory.StockMovement) []MovementResponse {
	out := make([]MovementResponse, len(ms))
	for i := range ms {
		out[i] = ToMovementResponse(&ms[i])
	}
	return out
}

// ToSyncRecordResponse converts a SynchronizationRecord
func ToSyncRecordResponse(r inventory.SynchronizationRecord) SyncRecordResponse {
	return SyncRecordResponse{
		MedicationID:         r.MedicationID,
		WholesaleQuantity:    r.WholesaleQuantity,
		RetailQuantity:       r.RetailQuantity,
		ReportedWholesale:    r.ReportedWholesale,
		ReportedRetail:       r.ReportedRetail,
		Divergence:           r.Divergence,
		Status:               r.Status.String(),
		LastSynchronizedAt:   r.LastSynchronizedAt,
		PendingMovementCount: r.PendingMovementCount,
		ErroredMovementCount: r.ErroredMovementCount,
	}
}

func storeString(s *inventory.Store) *string {
	if s == nil {
		return nil
	}
	v := s.String()
	return &v
}

func parseStorePtr(raw *string) (*inventory.Store, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	s, err := inventory.ParseStore(*raw)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

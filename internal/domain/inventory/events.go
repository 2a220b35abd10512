package inventory

import (
	"time"

	"github.com/clinic/pharmacy/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event type constants
const (
	EventTypeLotCreated           = "LotCreated"
	EventTypeLotExpired           = "LotExpired"
	EventTypeMovementRecorded     = "MovementRecorded"
	EventTypeMovementSynchronized = "MovementSynchronized"
	EventTypeMovementErrored      = "MovementErrored"
	EventTypeReconcileCompleted   = "ReconcileCompleted"
	EventTypeStockCountChanged    = "StockCountStatusChanged"
)

// LotCreatedEvent is raised when a lot is opened by a reception or an incoming transfer
type LotCreatedEvent struct {
	shared.BaseDomainEvent
	MedicationID uuid.UUID       `json:"medication_id"`
	LotNumber    string          `json:"lot_number"`
	Store        Store           `json:"store"`
	Quantity     decimal.Decimal `json:"quantity"`
	ExpiryDate   time.Time       `json:"expiry_date"`
}

// NewLotCreatedEvent creates a LotCreatedEvent
func NewLotCreatedEvent(lot *Lot, actorID string) *LotCreatedEvent {
	return &LotCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLotCreated, AggregateTypeLot, lot.ID, actorID),
		MedicationID:    lot.MedicationID,
		LotNumber:       lot.LotNumber,
		Store:           lot.Store,
		Quantity:        lot.QuantityInitial,
		ExpiryDate:      lot.ExpiryDate,
	}
}

// LotExpiredEvent is raised by the expiry sweep
type LotExpiredEvent struct {
	shared.BaseDomainEvent
	MedicationID uuid.UUID       `json:"medication_id"`
	LotNumber    string          `json:"lot_number"`
	Store        Store           `json:"store"`
	Remaining    decimal.Decimal `json:"remaining"`
}

// NewLotExpiredEvent creates a LotExpiredEvent
func NewLotExpiredEvent(lot *Lot) *LotExpiredEvent {
	return &LotExpiredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLotExpired, AggregateTypeLot, lot.ID, ""),
		MedicationID:    lot.MedicationID,
		LotNumber:       lot.LotNumber,
		Store:           lot.Store,
		Remaining:       lot.QuantityAvailable,
	}
}

// MovementRecordedEvent is raised once a ledger entry is committed
type MovementRecordedEvent struct {
	shared.BaseDomainEvent
	MovementID       uuid.UUID       `json:"movement_id"`
	MovementType     MovementType    `json:"movement_type"`
	MedicationID     uuid.UUID       `json:"medication_id"`
	LotID            *uuid.UUID      `json:"lot_id,omitempty"`
	Quantity         decimal.Decimal `json:"quantity"`
	OriginStore      *Store          `json:"origin_store,omitempty"`
	DestinationStore *Store          `json:"destination_store,omitempty"`
}

// NewMovementRecordedEvent creates a MovementRecordedEvent
func NewMovementRecordedEvent(m *StockMovement) *MovementRecordedEvent {
	return &MovementRecordedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeMovementRecorded, AggregateTypeMovement, m.ID, m.ActorID),
		MovementID:       m.ID,
		MovementType:     m.Type,
		MedicationID:     m.MedicationID,
		LotID:            m.LotID,
		Quantity:         m.Quantity,
		OriginStore:      m.OriginStore,
		DestinationStore: m.DestinationStore,
	}
}

// MovementSynchronizedEvent is raised when the reconciler consumes an entry
type MovementSynchronizedEvent struct {
	shared.BaseDomainEvent
	MovementID   uuid.UUID `json:"movement_id"`
	MedicationID uuid.UUID `json:"medication_id"`
}

// NewMovementSynchronizedEvent creates a MovementSynchronizedEvent
func NewMovementSynchronizedEvent(m *StockMovement) *MovementSynchronizedEvent {
	return &MovementSynchronizedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeMovementSynchronized, AggregateTypeMovement, m.ID, ""),
		MovementID:      m.ID,
		MedicationID:    m.MedicationID,
	}
}

// MovementErroredEvent is raised when an entry cannot be replayed
type MovementErroredEvent struct {
	shared.BaseDomainEvent
	MovementID   uuid.UUID `json:"movement_id"`
	MedicationID uuid.UUID `json:"medication_id"`
	Message      string    `json:"message"`
}

// NewMovementErroredEvent creates a MovementErroredEvent
func NewMovementErroredEvent(m *StockMovement) *MovementErroredEvent {
	return &MovementErroredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeMovementErrored, AggregateTypeMovement, m.ID, ""),
		MovementID:      m.ID,
		MedicationID:    m.MedicationID,
		Message:         m.ErrorMessage,
	}
}

// ReconcileCompletedEvent summarizes one reconcile pass over a medication
type ReconcileCompletedEvent struct {
	shared.BaseDomainEvent
	MedicationID uuid.UUID  `json:"medication_id"`
	Synchronized int        `json:"synchronized"`
	Errored      int        `json:"errored"`
	Status       SyncStatus `json:"status"`
}

// NewReconcileCompletedEvent creates a ReconcileCompletedEvent
func NewReconcileCompletedEvent(record SynchronizationRecord, synchronized, errored int) *ReconcileCompletedEvent {
	return &ReconcileCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReconcileCompleted, AggregateTypeMedication, record.MedicationID, ""),
		MedicationID:    record.MedicationID,
		Synchronized:    synchronized,
		Errored:         errored,
		Status:          record.Status,
	}
}

// StockCountStatusChangedEvent is raised when a count opens, starts
// validation, closes or is cancelled. From is empty when the count opens.
type StockCountStatusChangedEvent struct {
	shared.BaseDomainEvent
	CountID         uuid.UUID       `json:"count_id"`
	CountNumber     string          `json:"count_number"`
	Store           Store           `json:"store"`
	From            CountStatus     `json:"from,omitempty"`
	To              CountStatus     `json:"to"`
	Lots            int             `json:"lots"`
	TotalDifference decimal.Decimal `json:"total_difference"`
}

// NewStockCountStatusChangedEvent creates a StockCountStatusChangedEvent from the count's current status
func NewStockCountStatusChangedEvent(c *StockCount, from CountStatus, actorID string) *StockCountStatusChangedEvent {
	return &StockCountStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockCountChanged, AggregateTypeStockCount, c.ID, actorID),
		CountID:         c.ID,
		CountNumber:     c.CountNumber,
		Store:           c.Store,
		From:            from,
		To:              c.Status,
		Lots:            len(c.Lines),
		TotalDifference: c.TotalDifference(),
	}
}

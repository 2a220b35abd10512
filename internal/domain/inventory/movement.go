package inventory

import (
	"strings"
	"time"

	"github.com/clinic/pharmacy/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementType is the kind of quantity change a ledger entry records
type MovementType string

const (
	MovementTypeReception    MovementType = "reception"
	MovementTypeDispensation MovementType = "dispensation"
	MovementTypeTransfer     MovementType = "transfer"
	MovementTypeReturn       MovementType = "return"
	MovementTypeLoss         MovementType = "loss"
)

// AllMovementTypes lists movement types in display order
func AllMovementTypes() []MovementType {
	return []MovementType{
		MovementTypeReception,
		MovementTypeDispensation,
		MovementTypeTransfer,
		MovementTypeReturn,
		MovementTypeLoss,
	}
}

// IsValid reports whether t is a known movement type
func (t MovementType) IsValid() bool {
	switch t {
	case MovementTypeReception, MovementTypeDispensation, MovementTypeTransfer,
		MovementTypeReturn, MovementTypeLoss:
		return true
	}
	return false
}

func (t MovementType) String() string {
	return string(t)
}

// IsIncrease reports whether the movement brings units into the stores
func (t MovementType) IsIncrease() bool {
	return t == MovementTypeReception || t == MovementTypeReturn
}

// IsDecrease reports whether the movement takes units out of the stores
func (t MovementType) IsDecrease() bool {
	return t == MovementTypeDispensation || t == MovementTypeLoss
}

// ParseMovementType validates a raw movement type
func ParseMovementType(raw string) (MovementType, error) {
	t := MovementType(strings.ToLower(strings.TrimSpace(raw)))
	if !t.IsValid() {
		return "", shared.NewValidationError("invalid movement type: %q", raw)
	}
	return t, nil
}

// MovementStatus tracks whether the reconciler has consumed a ledger entry
type MovementStatus string

const (
	MovementStatusPending      MovementStatus = "pending"
	MovementStatusSynchronized MovementStatus = "synchronized"
	MovementStatusError        MovementStatus = "error"
)

// IsValid reports whether s is a known movement status
func (s MovementStatus) IsValid() bool {
	switch s {
	case MovementStatusPending, MovementStatusSynchronized, MovementStatusError:
		return true
	}
	return false
}

func (s MovementStatus) String() string {
	return string(s)
}

const maxReasonLength = 500

// StockMovement is an immutable ledger entry. Only its status (and the
// bookkeeping that goes with it) changes after it is recorded.
type StockMovement struct {
	shared.BaseAggregateRoot
	Type             MovementType
	MedicationID     uuid.UUID
	LotID            *uuid.UUID
	DestinationLotID *uuid.UUID
	Quantity         decimal.Decimal
	OriginStore      *Store
	DestinationStore *Store
	ActorID          string
	Reason           string
	Status           MovementStatus
	// LotApplied is set once the quantity has been written to lots
	LotApplied     bool
	ErrorMessage   string
	RecordedAt     time.Time
	SynchronizedAt *time.Time
}

// MovementSpec is the input to NewStockMovement
type MovementSpec struct {
	Type             MovementType
	MedicationID     uuid.UUID
	LotID            *uuid.UUID
	Quantity         decimal.Decimal
	OriginStore      *Store
	DestinationStore *Store
	ActorID          string
	Reason           string
}

// NewStockMovement validates spec and returns a pending entry with a time-ordered ID
func NewStockMovement(spec MovementSpec) (*StockMovement, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	m := &StockMovement{
		BaseAggregateRoot: shared.NewOrderedAggregateRoot(),
		Type:              spec.Type,
		MedicationID:      spec.MedicationID,
		LotID:             spec.LotID,
		Quantity:          spec.Quantity,
		OriginStore:       spec.OriginStore,
		DestinationStore:  spec.DestinationStore,
		ActorID:           strings.TrimSpace(spec.ActorID),
		Reason:            strings.TrimSpace(spec.Reason),
		Status:            MovementStatusPending,
	}
	m.RecordedAt = m.CreatedAt
	m.AddDomainEvent(NewMovementRecordedEvent(m))
	return m, nil
}

// Validate checks the shape rules of each movement type
func (s MovementSpec) Validate() error {
	if !s.Type.IsValid() {
		return shared.NewValidationError("invalid movement type: %q", s.Type)
	}
	if s.MedicationID == uuid.Nil {
		return shared.NewValidationError("medication_id is required")
	}
	if !s.Quantity.IsPositive() {
		return shared.NewValidationError("quantity must be greater than zero")
	}
	if s.LotID != nil && *s.LotID == uuid.Nil {
		return shared.NewValidationError("lot_id cannot be the nil UUID")
	}
	if strings.TrimSpace(s.ActorID) == "" {
		return shared.NewValidationError("actor_id is required")
	}
	if len(s.Reason) > maxReasonLength {
		return shared.NewValidationError("reason cannot exceed %d characters", maxReasonLength)
	}
	for _, st := range []*Store{s.OriginStore, s.DestinationStore} {
		if st != nil && !st.IsValid() {
			return shared.NewValidationError("invalid store: %s", *st)
		}
	}

	switch s.Type {
	case MovementTypeReception, MovementTypeReturn:
		if s.DestinationStore == nil {
			return shared.NewValidationError("%s requires a destination store", s.Type)
		}
		if s.LotID == nil {
			return shared.NewValidationError("%s requires a lot", s.Type)
		}
	case MovementTypeDispensation, MovementTypeLoss:
		if s.OriginStore == nil {
			return shared.NewValidationError("%s requires an origin store", s.Type)
		}
		if s.DestinationStore != nil {
			return shared.NewValidationError("%s cannot have a destination store", s.Type)
		}
	case MovementTypeTransfer:
		if s.OriginStore == nil || s.DestinationStore == nil {
			return shared.NewValidationError("transfer requires origin and destination stores")
		}
		if *s.OriginStore == *s.DestinationStore {
			return shared.NewValidationError("transfer origin and destination must differ")
		}
	}
	return nil
}

// IsAggregate reports whether the movement targets a medication rather than a lot
func (m *StockMovement) IsAggregate() bool {
	return m.LotID == nil
}

// SourceStore is the store units leave, if any
func (m *StockMovement) SourceStore() (Store, bool) {
	if m.Type.IsIncrease() || m.OriginStore == nil {
		return "", false
	}
	return *m.OriginStore, true
}

// TargetStore is the store units enter, if any
func (m *StockMovement) TargetStore() (Store, bool) {
	if m.Type.IsDecrease() || m.DestinationStore == nil {
		return "", false
	}
	return *m.DestinationStore, true
}

// MarkApplied records that the quantity has been written to lots
func (m *StockMovement) MarkApplied(destinationLotID *uuid.UUID) {
	m.LotApplied = true
	if destinationLotID != nil {
		m.DestinationLotID = destinationLotID
	}
}

// MarkSynchronized moves a pending, applied entry to synchronized. It is a
// no-op on an already synchronized entry and refuses entries in error.
// A pending aggregate entry has not reached any lot yet, so it is refused
// too: only the reconciler can allocate and then synchronize it.
func (m *StockMovement) MarkSynchronized(now time.Time) (bool, error) {
	switch m.Status {
	case MovementStatusSynchronized:
		return false, nil
	case MovementStatusError:
		return false, shared.NewInvalidStateError("movement %s is in error and must be requeued first", m.ID)
	}
	if !m.LotApplied {
		return false, shared.NewInvalidStateError("movement %s has not been applied to any lot yet", m.ID)
	}
	m.Status = MovementStatusSynchronized
	m.SynchronizedAt = &now
	m.ErrorMessage = ""
	m.IncrementVersion()
	m.AddDomainEvent(NewMovementSynchronizedEvent(m))
	return true, nil
}

// MarkErrored parks a pending entry for manual review
func (m *StockMovement) MarkErrored(reason string) error {
	if m.Status != MovementStatusPending {
		return shared.NewInvalidStateError("only pending movements can fail, movement %s is %s", m.ID, m.Status)
	}
	m.Status = MovementStatusError
	m.ErrorMessage = reason
	m.IncrementVersion()
	m.AddDomainEvent(NewMovementErroredEvent(m))
	return nil
}

// Requeue sends an errored entry back to pending so the next reconcile retries it
func (m *StockMovement) Requeue() error {
	if m.Status != MovementStatusError {
		return shared.NewInvalidStateError("only errored movements can be requeued, movement %s is %s", m.ID, m.Status)
	}
	m.Status = MovementStatusPending
	m.ErrorMessage = ""
	m.IncrementVersion()
	return nil
}

// StorePtr returns a pointer to a copy of s
func StorePtr(s Store) *Store {
	return &s
}

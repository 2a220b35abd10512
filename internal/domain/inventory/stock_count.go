package inventory

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/clinic/pharmacy/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CountStatus is the lifecycle state of a physical stock count
type CountStatus string

const (
	CountStatusCounting   CountStatus = "COUNTING"
	CountStatusValidating CountStatus = "VALIDATING"
	CountStatusValidated  CountStatus = "VALIDATED"
	CountStatusCancelled  CountStatus = "CANCELLED"
)

// IsValid checks if the status is a valid CountStatus
func (s CountStatus) IsValid() bool {
	switch s {
	case CountStatusCounting, CountStatusValidating, CountStatusValidated, CountStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of CountStatus
func (s CountStatus) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status.
// VALIDATING may be re-entered so an interrupted validation can resume.
func (s CountStatus) CanTransitionTo(target CountStatus) bool {
	switch s {
	case CountStatusCounting:
		return target == CountStatusValidating || target == CountStatusCancelled
	case CountStatusValidating:
		return target == CountStatusValidating || target == CountStatusValidated
	default:
		return false
	}
}

// IsTerminal reports whether no further change is possible
func (s CountStatus) IsTerminal() bool {
	return s == CountStatusValidated || s == CountStatusCancelled
}

// ParseCountStatus validates a raw status
func ParseCountStatus(raw string) (CountStatus, error) {
	s := CountStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", shared.NewValidationError("invalid count status: %q", raw)
	}
	return s, nil
}

const (
	AggregateTypeStockCount = "StockCount"
	countNumberPrefix       = "INV"
	maxCountNotesLength     = 2000
	maxCountRemarkLength    = 500
)

// CountLine is the count of one lot. ExpectedQuantity is the lot's available
// quantity when the count was opened.
type CountLine struct {
	ID               uuid.UUID
	CountID          uuid.UUID
	LotID            uuid.UUID
	MedicationID     uuid.UUID
	LotNumber        string
	ExpiryDate       time.Time
	UnitCost         decimal.Decimal
	ExpectedQuantity decimal.Decimal
	InitialQuantity  decimal.Decimal
	CountedQuantity  decimal.Decimal
	Counted          bool
	Remark           string
	// AdjustmentID is the ledger entry that settled the difference
	AdjustmentID *uuid.UUID
}

// Difference is counted minus expected; zero until the lot is counted
func (l CountLine) Difference() decimal.Decimal {
	if !l.Counted {
		return decimal.Zero
	}
	return l.CountedQuantity.Sub(l.ExpectedQuantity)
}

// DifferenceValue prices the difference at the lot's unit cost
func (l CountLine) DifferenceValue() decimal.Decimal {
	return l.Difference().Mul(l.UnitCost)
}

// NeedsAdjustment reports whether a counted difference still has no ledger entry
func (l CountLine) NeedsAdjustment() bool {
	return l.Counted && !l.Difference().IsZero() && l.AdjustmentID == nil
}

// CountEntry is one counted quantity
type CountEntry struct {
	LotID    uuid.UUID
	Quantity decimal.Decimal
	Remark   string
}

// CountAdjustment is the ledger entry a difference turns into: a loss for a
// shortfall, a return for a surplus.
type CountAdjustment struct {
	LineID       uuid.UUID
	LotID        uuid.UUID
	MedicationID uuid.UUID
	LotNumber    string
	Type         MovementType
	Quantity     decimal.Decimal
	// Expected is what the lot must still hold for the adjustment to apply
	Expected decimal.Decimal
}

// StockCount is a physical count of one store, numbered INV-YYYY-NNN.
// It moves COUNTING -> VALIDATING -> VALIDATED, or COUNTING -> CANCELLED.
type StockCount struct {
	shared.BaseAggregateRoot
	CountNumber  string
	Store        Store
	Status       CountStatus
	Notes        string
	OpenedBy     string
	ValidatedBy  string
	ValidatedAt  *time.Time
	CancelledBy  string
	CancelledAt  *time.Time
	CancelReason string
	Lines        []CountLine
}

// NewStockCount opens a count over the active lots of store. Lots from other
// stores or that are not active are left out; at least one must remain.
func NewStockCount(countNumber string, store Store, lots []Lot, notes, openedBy string) (*StockCount, error) {
	if strings.TrimSpace(countNumber) == "" {
		return nil, shared.NewValidationError("count number cannot be empty")
	}
	if !store.IsValid() {
		return nil, shared.NewValidationError("invalid store: %s", store)
	}
	if strings.TrimSpace(openedBy) == "" {
		return nil, shared.NewValidationError("actor_id is required")
	}
	if len(notes) > maxCountNotesLength {
		return nil, shared.NewValidationError("notes cannot exceed %d characters", maxCountNotesLength)
	}

	count := &StockCount{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		CountNumber:       countNumber,
		Store:             store,
		Status:            CountStatusCounting,
		Notes:             strings.TrimSpace(notes),
		OpenedBy:          openedBy,
	}
	for _, lot := range lots {
		if lot.Store != store || lot.Status != LotStatusActive {
			continue
		}
		count.Lines = append(count.Lines, CountLine{
			ID:               uuid.New(),
			CountID:          count.ID,
			LotID:            lot.ID,
			MedicationID:     lot.MedicationID,
			LotNumber:        lot.LotNumber,
			ExpiryDate:       lot.ExpiryDate,
			UnitCost:         lot.UnitCost,
			ExpectedQuantity: lot.QuantityAvailable,
			InitialQuantity:  lot.QuantityInitial,
			CountedQuantity:  decimal.Zero,
		})
	}
	if len(count.Lines) == 0 {
		return nil, shared.NewValidationError("the %s store has no active lot to count", store)
	}

	count.AddDomainEvent(NewStockCountStatusChangedEvent(count, "", openedBy))
	return count, nil
}

func (c *StockCount) line(lotID uuid.UUID) *CountLine {
	for i := range c.Lines {
		if c.Lines[i].LotID == lotID {
			return &c.Lines[i]
		}
	}
	return nil
}

// RecordCounts stores counted quantities. A count may be corrected until
// validation starts. A lot cannot be counted above the quantity it was opened
// with, since the surplus goes back through a return.
func (c *StockCount) RecordCounts(entries []CountEntry) error {
	if c.Status != CountStatusCounting {
		return shared.NewInvalidStateError("count %s is %s; quantities can only be recorded while counting", c.CountNumber, c.Status)
	}
	if len(entries) == 0 {
		return shared.NewValidationError("at least one counted lot is required")
	}
	seen := make(map[uuid.UUID]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.LotID]; dup {
			return shared.NewValidationError("lot %s appears twice", e.LotID)
		}
		seen[e.LotID] = struct{}{}
		line := c.line(e.LotID)
		if line == nil {
			return shared.NewValidationError("lot %s is not part of count %s", e.LotID, c.CountNumber)
		}
		if e.Quantity.IsNegative() {
			return shared.NewValidationError("lot %s: counted quantity cannot be negative", line.LotNumber)
		}
		if e.Quantity.GreaterThan(line.InitialQuantity) {
			return shared.NewValidationError("lot %s: counted %s exceeds the %s it was opened with",
				line.LotNumber, e.Quantity.String(), line.InitialQuantity.String())
		}
		if len(e.Remark) > maxCountRemarkLength {
			return shared.NewValidationError("lot %s: remark cannot exceed %d characters", line.LotNumber, maxCountRemarkLength)
		}
	}
	for _, e := range entries {
		line := c.line(e.LotID)
		line.CountedQuantity = e.Quantity
		line.Counted = true
		line.Remark = strings.TrimSpace(e.Remark)
	}
	c.IncrementVersion()
	return nil
}

// Uncounted returns the lines still waiting for a quantity
func (c *StockCount) Uncounted() []CountLine {
	var out []CountLine
	for _, l := range c.Lines {
		if !l.Counted {
			out = append(out, l)
		}
	}
	return out
}

// Progress returns how many lots are counted out of the total
func (c *StockCount) Progress() (counted, total int) {
	for _, l := range c.Lines {
		if l.Counted {
			counted++
		}
	}
	return counted, len(c.Lines)
}

// TotalDifference sums the absolute differences of counted lots
func (c *StockCount) TotalDifference() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Difference().Abs())
	}
	return total
}

// TotalDifferenceValue prices TotalDifference at each lot's unit cost
func (c *StockCount) TotalDifferenceValue() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.DifferenceValue().Abs())
	}
	return total
}

// StartValidation claims the count for validation. Every lot must be counted.
// Calling it again on a VALIDATING count resumes an interrupted validation.
func (c *StockCount) StartValidation(actorID string) error {
	if !c.Status.CanTransitionTo(CountStatusValidating) {
		return shared.NewInvalidTransitionError(c.Status.String(), CountStatusValidating.String())
	}
	if strings.TrimSpace(actorID) == "" {
		return shared.NewValidationError("actor_id is required")
	}
	if missing := c.Uncounted(); len(missing) > 0 {
		return shared.NewValidationError("%d lot(s) are not counted yet, first is %s", len(missing), missing[0].LotNumber)
	}
	from := c.Status
	c.Status = CountStatusValidating
	c.ValidatedBy = actorID
	c.IncrementVersion()
	if from != c.Status {
		c.AddDomainEvent(NewStockCountStatusChangedEvent(c, from, actorID))
	}
	return nil
}

// PendingAdjustments lists the differences that have no ledger entry yet
func (c *StockCount) PendingAdjustments() []CountAdjustment {
	var out []CountAdjustment
	for _, l := range c.Lines {
		if !l.NeedsAdjustment() {
			continue
		}
		diff := l.Difference()
		typ := MovementTypeLoss
		if diff.IsPositive() {
			typ = MovementTypeReturn
		}
		out = append(out, CountAdjustment{
			LineID:       l.ID,
			LotID:        l.LotID,
			MedicationID: l.MedicationID,
			LotNumber:    l.LotNumber,
			Type:         typ,
			Quantity:     diff.Abs(),
			Expected:     l.ExpectedQuantity,
		})
	}
	return out
}

// MarkAdjusted links a line to the ledger entry that settled it
func (c *StockCount) MarkAdjusted(lineID, movementID uuid.UUID) error {
	if c.Status != CountStatusValidating {
		return shared.NewInvalidStateError("count %s is %s, not VALIDATING", c.CountNumber, c.Status)
	}
	for i := range c.Lines {
		if c.Lines[i].ID != lineID {
			continue
		}
		if c.Lines[i].AdjustmentID != nil {
			return shared.NewInvalidStateError("lot %s is already adjusted", c.Lines[i].LotNumber)
		}
		c.Lines[i].AdjustmentID = &movementID
		c.IncrementVersion()
		return nil
	}
	return shared.NewNotFoundError("count line", lineID)
}

// CompleteValidation closes the count once every difference has its entry
func (c *StockCount) CompleteValidation(now time.Time) error {
	if !c.Status.CanTransitionTo(CountStatusValidated) {
		return shared.NewInvalidTransitionError(c.Status.String(), CountStatusValidated.String())
	}
	if pending := c.PendingAdjustments(); len(pending) > 0 {
		return shared.NewInvalidStateError("lot %s still has an unsettled difference", pending[0].LotNumber)
	}
	from := c.Status
	c.Status = CountStatusValidated
	c.ValidatedAt = &now
	c.IncrementVersion()
	c.AddDomainEvent(NewStockCountStatusChangedEvent(c, from, c.ValidatedBy))
	return nil
}

// Cancel abandons a count that is still being counted
func (c *StockCount) Cancel(actorID, reason string, now time.Time) error {
	if !c.Status.CanTransitionTo(CountStatusCancelled) {
		return shared.NewInvalidTransitionError(c.Status.String(), CountStatusCancelled.String())
	}
	if strings.TrimSpace(actorID) == "" {
		return shared.NewValidationError("actor_id is required")
	}
	if strings.TrimSpace(reason) == "" {
		return shared.NewValidationError("cancel reason is required")
	}
	from := c.Status
	c.Status = CountStatusCancelled
	c.CancelledBy = actorID
	c.CancelledAt = &now
	c.CancelReason = strings.TrimSpace(reason)
	c.IncrementVersion()
	c.AddDomainEvent(NewStockCountStatusChangedEvent(c, from, actorID))
	return nil
}

// GenerateCountNumber formats INV-YYYY-NNN
func GenerateCountNumber(year, sequence int) string {
	return fmt.Sprintf("%s-%d-%03d", countNumberPrefix, year, sequence)
}

// ParseCountSequence extracts NNN from INV-YYYY-NNN
func ParseCountSequence(countNumber string) (int, bool) {
	parts := strings.Split(countNumber, "-")
	if len(parts) != 3 || parts[0] != countNumberPrefix {
		return 0, false
	}
	n, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, false
	}
	return n, true
}

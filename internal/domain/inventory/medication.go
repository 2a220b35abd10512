package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/clinic/pharmacy/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Aggregate type constants
const (
	AggregateTypeMedication = "Medication"
	AggregateTypeLot        = "Lot"
	AggregateTypeMovement   = "StockMovement"
)

const (
	maxMedicationCodeLength = 50
	maxMedicationNameLength = 200
)

// Medication is a catalog entry. It is reference data: edited by an
// administrator, never deleted, only archived.
type Medication struct {
	shared.BaseAggregateRoot
	Code              string
	Name              string
	DosageForm        string
	Strength          string
	Category          string
	ReorderThreshold  decimal.Decimal
	StockoutThreshold decimal.Decimal
	ArchivedAt        *time.Time
}

// MedicationDetails holds the editable attributes of a medication
type MedicationDetails struct {
	Name              string
	DosageForm        string
	Strength          string
	Category          string
	ReorderThreshold  decimal.Decimal
	StockoutThreshold decimal.Decimal
}

// NewMedication creates a catalog entry
func NewMedication(code string, details MedicationDetails) (*Medication, error) {
	code = NormalizeMedicationCode(code)
	if code == "" {
		return nil, shared.NewValidationError("medication code cannot be empty")
	}
	if len(code) > maxMedicationCodeLength {
		return nil, shared.NewValidationError("medication code cannot exceed %d characters", maxMedicationCodeLength)
	}

	m := &Medication{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Code:              code,
	}
	if err := m.apply(details); err != nil {
		return nil, err
	}
	return m, nil
}

// Update replaces the editable attributes
func (m *Medication) Update(details MedicationDetails) error {
	if m.IsArchived() {
		return shared.NewInvalidStateError("medication %s is archived", m.Code)
	}
	if err := m.apply(details); err != nil {
		return err
	}
	m.IncrementVersion()
	return nil
}

// Archive soft-deletes the medication. Archiving twice is a no-op.
func (m *Medication) Archive() {
	if m.IsArchived() {
		return
	}
	now := time.Now()
	m.ArchivedAt = &now
	m.IncrementVersion()
}

// IsArchived reports whether the medication was archived
func (m *Medication) IsArchived() bool {
	return m.ArchivedAt != nil
}

// IsBelowReorder reports whether onHand has fallen under the reorder threshold
func (m *Medication) IsBelowReorder(onHand decimal.Decimal) bool {
	return m.ReorderThreshold.IsPositive() && onHand.LessThan(m.ReorderThreshold)
}

// IsStockOut reports whether onHand is at or under the stock-out threshold
func (m *Medication) IsStockOut(onHand decimal.Decimal) bool {
	return onHand.LessThanOrEqual(m.StockoutThreshold)
}

func (m *Medication) apply(d MedicationDetails) error {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return shared.NewValidationError("medication name cannot be empty")
	}
	if len(name) > maxMedicationNameLength {
		return shared.NewValidationError("medication name cannot exceed %d characters", maxMedicationNameLength)
	}
	if d.ReorderThreshold.IsNegative() || d.StockoutThreshold.IsNegative() {
		return shared.NewValidationError("thresholds cannot be negative")
	}
	if d.ReorderThreshold.IsPositive() && d.StockoutThreshold.GreaterThan(d.ReorderThreshold) {
		return shared.NewValidationError("stock-out threshold cannot exceed reorder threshold")
	}

	m.Name = name
	m.DosageForm = strings.TrimSpace(d.DosageForm)
	m.Strength = strings.TrimSpace(d.Strength)
	m.Category = strings.TrimSpace(d.Category)
	m.ReorderThreshold = d.ReorderThreshold
	m.StockoutThreshold = d.StockoutThreshold
	return nil
}

// NormalizeMedicationCode trims and upper-cases a catalog code
func NormalizeMedicationCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// GenerateMedicationCode builds the next MED-NNNNN code given the highest sequence in use
func GenerateMedicationCode(lastSequence int) string {
	return fmt.Sprintf("MED-%05d", lastSequence+1)
}

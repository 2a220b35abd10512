package inventory

import (
	"testing"

	"github.com/clinic/pharmacy/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMedication(t *testing.T) {
	m, err := NewMedication("  amx-500 ", MedicationDetails{
		Name:              "Amoxicilline 500mg",
		ReorderThreshold:  decimal.NewFromInt(10),
		StockoutThreshold: decimal.NewFromInt(2),
	})
	require.NoError(t, err)
	assert.Equal(t, "AMX-500", m.Code)
	assert.Equal(t, 1, m.Version)

	_, err = NewMedication("", MedicationDetails{Name: "x"})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = NewMedication("X", MedicationDetails{Name: "x", ReorderThreshold: decimal.NewFromInt(2), StockoutThreshold: decimal.NewFromInt(5)})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestMedication_Thresholds(t *testing.T) {
	m, err := NewMedication("PARA", MedicationDetails{Name: "Paracetamol", ReorderThreshold: decimal.NewFromInt(10)})
	require.NoError(t, err)

	assert.True(t, m.IsBelowReorder(decimal.NewFromInt(9)))
	assert.False(t, m.IsBelowReorder(decimal.NewFromInt(10)))
	assert.True(t, m.IsStockOut(decimal.Zero))
	assert.False(t, m.IsStockOut(decimal.NewFromInt(1)))
}

func TestMedication_Archive(t *testing.T) {
	m, err := NewMedication("PARA", MedicationDetails{Name: "Paracetamol"})
	require.NoError(t, err)

	m.Archive()
	first := m.ArchivedAt
	m.Archive()
	assert.Same(t, first, m.ArchivedAt)
	assert.ErrorIs(t, m.Update(MedicationDetails{Name: "New"}), shared.ErrInvalidState)
}

func TestGenerateMedicationCode(t *testing.T) {
	assert.Equal(t, "MED-00001", GenerateMedicationCode(0))
	assert.Equal(t, "MED-00124", GenerateMedicationCode(123))
}

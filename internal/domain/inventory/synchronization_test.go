package inventory

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestComputeSyncRecord(t *testing.T) {
	med := uuid.New()
	truth := StoreTotals{StoreWholesale: decimal.NewFromInt(5), StoreRetail: decimal.NewFromInt(15)}

	tests := []struct {
		name       string
		in         SyncInputs
		wantStatus SyncStatus
		wantDiv    int64
	}{
		{
			name:       "aligned and nothing pending",
			in:         SyncInputs{MedicationID: med, Expected: truth, Reported: truth},
			wantStatus: SyncStatusSynchronized,
		},
		{
			name:       "counters lag behind a transfer",
			in:         SyncInputs{MedicationID: med, Expected: truth, Reported: StoreTotals{StoreWholesale: decimal.NewFromInt(20)}, PendingCount: 1},
			wantStatus: SyncStatusDesynchronized,
			wantDiv:    30,
		},
		{
			name:       "aligned but an entry is pending",
			in:         SyncInputs{MedicationID: med, Expected: truth, Reported: truth, PendingCount: 2},
			wantStatus: SyncStatusDesynchronized,
		},
		{
			name:       "aligned but an entry is in error",
			in:         SyncInputs{MedicationID: med, Expected: truth, Reported: truth, ErroredCount: 1},
			wantStatus: SyncStatusDesynchronized,
		},
		{
			name:       "guard held",
			in:         SyncInputs{MedicationID: med, Expected: truth, Reported: truth, Reconciling: true},
			wantStatus: SyncStatusReconciling,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ComputeSyncRecord(tt.in)
			assert.Equal(t, tt.wantStatus, rec.Status)
			assert.True(t, rec.Divergence.Equal(decimal.NewFromInt(tt.wantDiv)), "divergence %s", rec.Divergence)
			assert.Equal(t, tt.in.PendingCount, rec.PendingMovementCount)
		})
	}
}

func TestSynchronizationRecord_NeedsAttention(t *testing.T) {
	clean := ComputeSyncRecord(SyncInputs{MedicationID: uuid.New()})
	assert.False(t, clean.NeedsAttention())

	pending := ComputeSyncRecord(SyncInputs{MedicationID: uuid.New(), PendingCount: 1})
	assert.True(t, pending.NeedsAttention())
}

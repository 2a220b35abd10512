package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/clinic/pharmacy/internal/domain/audit"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormAuditRepository_AppendAndHistory(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewGormAuditRepository(db)
	ctx := context.Background()
	orderID := uuid.New()

	created := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	for i, step := range [][2]string{
		{"DRAFT", "AWAITING_SIGNATURE"},
		{"AWAITING_SIGNATURE", "SENT_TO_SUPPLIER"},
	} {
		e := audit.NewEntry("supplier_order", orderID, audit.ActionStatusChange, "chief-1").
			WithStatus(step[0], step[1]).
			WithData(nil, map[string]any{"order_number": "CF-2026-00001"})
		e.CreatedAt = created.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Append(ctx, e))
	}
	require.NoError(t, repo.Append(ctx, audit.NewEntry("supplier_order", uuid.New(), audit.ActionStatusChange, "x")))

	history, err := repo.FindByEntity(ctx, "supplier_order", orderID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "SENT_TO_SUPPLIER", history[0].NewStatus, "newest first")
	assert.Equal(t, "CF-2026-00001", history[0].NewData["order_number"])
	assert.Nil(t, history[0].OldData)

	limited, err := repo.FindByEntity(ctx, "supplier_order", orderID, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

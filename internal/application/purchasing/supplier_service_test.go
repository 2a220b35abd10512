package purchasing

import (
	"context"
	"testing"

	"github.com/clinic/pharmacy/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupplierService_ListSuppliersCollatesNames(t *testing.T) {
	ctx := context.Background()
	svc := NewSupplierService(newMemSuppliers(), nil)
	for _, name := range []string{"Zenith Pharma", "Élan Médical", "abc distribution", "Eclat Santé"} {
		_, err := svc.CreateSupplier(ctx, CreateSupplierRequest{Name: name})
		require.NoError(t, err)
	}

	list, err := svc.ListSuppliers(ctx, "")
	require.NoError(t, err)
	names := make([]string, len(list))
	for i, s := range list {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"abc distribution", "Eclat Santé", "Élan Médical", "Zenith Pharma"}, names)
}

func TestSupplierService_UpdateSupplier(t *testing.T) {
	ctx := context.Background()
	svc := NewSupplierService(newMemSuppliers(), nil)
	created, err := svc.CreateSupplier(ctx, CreateSupplierRequest{Name: "Laborex"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		id      uuid.UUID
		req     UpdateSupplierRequest
		code    string
		wantErr bool
	}{
		{
			name: "updates contact details",
			id:   created.ID,
			req:  UpdateSupplierRequest{CreateSupplierRequest: CreateSupplierRequest{Name: "Laborex SA", Phone: "+221 33 000 00 00"}, Version: created.Version},
		},
		{
			name:    "stale version",
			id:      created.ID,
			req:     UpdateSupplierRequest{CreateSupplierRequest: CreateSupplierRequest{Name: "Laborex"}, Version: created.Version},
			code:    shared.CodeConcurrentModification,
			wantErr: true,
		},
		{
			name:    "unknown supplier",
			id:      uuid.New(),
			req:     UpdateSupplierRequest{CreateSupplierRequest: CreateSupplierRequest{Name: "Ghost"}, Version: 1},
			code:    shared.CodeNotFound,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.UpdateSupplier(ctx, tt.id, tt.req)
			if tt.wantErr {
				assert.True(t, shared.IsCode(err, tt.code), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Laborex SA", resp.Name)
			assert.Equal(t, created.Version+1, resp.Version)
		})
	}
}

func TestSupplierService_CreateSupplierValidates(t *testing.T) {
	svc := NewSupplierService(newMemSuppliers(), nil)
	_, err := svc.CreateSupplier(context.Background(), CreateSupplierRequest{Name: "  "})
	assert.True(t, shared.IsCode(err, shared.CodeValidation))
}

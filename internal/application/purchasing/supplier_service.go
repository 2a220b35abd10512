package purchasing

import (
	"context"
	"slices"

	"github.com/clinic/pharmacy/internal/domain/purchasing"
	"github.com/clinic/pharmacy/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SupplierService manages the supplier directory
type SupplierService struct {
	suppliers purchasing.SupplierRepository
	logger    *zap.Logger
	language  language.Tag
}

// NewSupplierService creates a new SupplierService
func NewSupplierService(suppliers purchasing.SupplierRepository, logger *zap.Logger) *SupplierService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SupplierService{
		suppliers: suppliers,
		logger:    logger,
		language:  language.French,
	}
}

// CreateSupplier adds a supplier
func (s *SupplierService) CreateSupplier(ctx context.Context, req CreateSupplierRequest) (*SupplierResponse, error) {
	supplier, err := purchasing.NewSupplier(req.contact())
	if err != nil {
		return nil, err
	}
	if err := s.suppliers.Save(ctx, supplier); err != nil {
		return nil, err
	}
	s.logger.Info("supplier created", zap.String("supplier_id", supplier.ID.String()), zap.String("name", supplier.Name))
	resp := ToSupplierResponse(supplier)
	return &resp, nil
}

// UpdateSupplier replaces a supplier's contact details
func (s *SupplierService) UpdateSupplier(ctx context.Context, id uuid.UUID, req UpdateSupplierRequest) (*SupplierResponse, error) {
	supplier, err := s.suppliers.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Version != supplier.Version {
		return nil, shared.NewConcurrentModificationError("supplier", id.String())
	}
	if err := supplier.Update(req.contact()); err != nil {
		return nil, err
	}
	if err := s.suppliers.Save(ctx, supplier); err != nil {
		return nil, err
	}
	resp := ToSupplierResponse(supplier)
	return &resp, nil
}

// GetSupplier returns one supplier
func (s *SupplierService) GetSupplier(ctx context.Context, id uuid.UUID) (*SupplierResponse, error) {
	supplier, err := s.suppliers.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToSupplierResponse(supplier)
	return &resp, nil
}

// ListSuppliers returns suppliers matching search, sorted by name in French
// collation order so accented names sort next to their base letter.
func (s *SupplierService) ListSuppliers(ctx context.Context, search string) ([]SupplierResponse, error) {
	filter := shared.DefaultFilter()
	filter.Search = search
	suppliers, err := s.suppliers.FindAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	// a Collator is not safe for concurrent use
	collator := collate.New(s.language, collate.IgnoreCase)
	slices.SortStableFunc(suppliers, func(a, b purchasing.Supplier) int {
		return collator.CompareString(a.Name, b.Name)
	})
	out := make([]SupplierResponse, len(suppliers))
	for i := range suppliers {
		out[i] = ToSupplierResponse(&suppliers[i])
	}
	return out, nil
}

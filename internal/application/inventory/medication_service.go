package inventory

import (
	"context"
	"time"

	"github.com/clinic/pharmacy/internal/domain/inventory"
	"github.com/clinic/pharmacy/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxCodeAttempts = 5

// MedicationService manages the catalog and lot lookups
type MedicationService struct {
	medications    inventory.MedicationRepository
	lots           inventory.LotRepository
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewMedicationService creates a new MedicationService
func NewMedicationService(
	medications inventory.MedicationRepository,
	lots inventory.LotRepository,
	logger *zap.Logger,
) *MedicationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MedicationService{
		medications: medications,
		lots:        lots,
		logger:      logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *MedicationService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// CreateMedication adds a catalog entry, generating MED-NNNNN when no code is given
func (s *MedicationService) CreateMedication(ctx context.Context, req CreateMedicationRequest) (*MedicationResponse, error) {
	details := inventory.MedicationDetails{
		Name:              req.Name,
		DosageForm:        req.DosageForm,
		Strength:          req.Strength,
		Category:          req.Category,
		ReorderThreshold:  req.ReorderThreshold,
		StockoutThreshold: req.StockoutThreshold,
	}

	code := inventory.NormalizeMedicationCode(req.Code)
	if code != "" {
		if _, err := s.medications.FindByCode(ctx, code); err == nil {
			return nil, shared.NewDomainError(shared.CodeDuplicateKey, "medication code already exists: "+code)
		} else if !shared.IsCode(err, shared.CodeNotFound) {
			return nil, err
		}
		m, err := inventory.NewMedication(code, details)
		if err != nil {
			return nil, err
		}
		if err := s.medications.Save(ctx, m); err != nil {
			return nil, err
		}
		resp := ToMedicationResponse(m)
		return &resp, nil
	}

	for attempt := 1; ; attempt++ {
		last, err := s.medications.LastCodeSequence(ctx)
		if err != nil {
			return nil, err
		}
		m, err := inventory.NewMedication(inventory.GenerateMedicationCode(last), details)
		if err != nil {
			return nil, err
		}
		err = s.medications.Save(ctx, m)
		if err == nil {
			resp := ToMedicationResponse(m)
			return &resp, nil
		}
		if !shared.IsCode(err, shared.CodeDuplicateKey) || attempt >= maxCodeAttempts {
			return nil, err
		}
		s.logger.Debug("generated medication code collided, retrying",
			zap.String("code", m.Code), zap.Int("attempt", attempt))
	}
}

// UpdateMedication edits a catalog entry with optimistic locking
func (s *MedicationService) UpdateMedication(ctx context.Context, id uuid.UUID, req UpdateMedicationRequest) (*MedicationResponse, error) {
	m, err := s.medications.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Version != req.Version {
		return nil, shared.NewConcurrentModificationError("medication", id)
	}
	if err := m.Update(req.details()); err != nil {
		return nil, err
	}
	if err := s.medications.SaveWithLock(ctx, m); err != nil {
		return nil, err
	}
	resp := ToMedicationResponse(m)
	return &resp, nil
}

// ArchiveMedication soft-deletes a catalog entry
func (s *MedicationService) ArchiveMedication(ctx context.Context, id uuid.UUID) (*MedicationResponse, error) {
	m, err := s.medications.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.IsArchived() {
		m.Archive()
		if err := s.medications.SaveWithLock(ctx, m); err != nil {
			return nil, err
		}
	}
	resp := ToMedicationResponse(m)
	return &resp, nil
}

// GetMedication returns one catalog entry
func (s *MedicationService) GetMedication(ctx context.Context, id uuid.UUID) (*MedicationResponse, error) {
	m, err := s.medications.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToMedicationResponse(m)
	return &resp, nil
}

// ListMedications pages through the catalog
func (s *MedicationService) ListMedications(ctx context.Context, f MedicationListFilter) (shared.Paginated[MedicationResponse], error) {
	filter := shared.DefaultFilter()
	if f.Page > 0 {
		filter.Page = f.Page
	}
	if f.PageSize > 0 {
		filter.PageSize = f.PageSize
	}
	if f.OrderBy != "" {
		filter.OrderBy = f.OrderBy
	}
	if f.OrderDir != "" {
		filter.OrderDir = f.OrderDir
	}
	filter.Search = f.Search
	if f.Category != "" {
		filter = filter.With("category", f.Category)
	}
	if f.IncludeArchived {
		filter = filter.With("include_archived", true)
	}

	items, total, err := s.medications.FindAll(ctx, filter)
	if err != nil {
		return shared.Paginated[MedicationResponse]{}, err
	}
	return shared.NewPaginated(ToMedicationResponses(items), total, filter.Page, filter.PageSize), nil
}

// ListLots returns a medication's lots, optionally for one store
func (s *MedicationService) ListLots(ctx context.Context, medicationID uuid.UUID, store *string) ([]LotResponse, error) {
	if _, err := s.medications.FindByID(ctx, medicationID); err != nil {
		return nil, err
	}
	st, err := parseStorePtr(store)
	if err != nil {
		return nil, err
	}
	lots, err := s.lots.FindByMedication(ctx, medicationID, st)
	if err != nil {
		return nil, err
	}
	return ToLotResponses(lots), nil
}

// ExpireLots flags every lot whose expiry date has passed and returns how many changed
func (s *MedicationService) ExpireLots(ctx context.Context, now time.Time) (int, error) {
	lots, err := s.lots.FindExpiring(ctx, now)
	if err != nil {
		return 0, err
	}
	expired := 0
	for i := range lots {
		lot := &lots[i]
		if !lot.RefreshStatus(now) || lot.Status != inventory.LotStatusExpired {
			continue
		}
		if err := s.lots.UpdateStatus(ctx, lot.ID, lot.Status); err != nil {
			return expired, err
		}
		expired++
		publish(ctx, s.eventPublisher, inventory.NewLotExpiredEvent(lot))
	}
	if expired > 0 {
		s.logger.Info("lots expired", zap.Int("count", expired))
	}
	return expired, nil
}

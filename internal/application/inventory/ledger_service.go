package inventory

import (
	"context"
	"iter"
	"time"

	"github.com/clinic/pharmacy/internal/domain/inventory"
	"github.com/clinic/pharmacy/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultPageSize bounds each query issued while iterating the ledger
const DefaultPageSize = 100

// LedgerService records stock movements and serves the ledger
type LedgerService struct {
	scope          TransactionScope
	medications    inventory.MedicationRepository
	movements      inventory.MovementRepository
	eventPublisher shared.EventPublisher
	recorder       StockRecorder
	logger         *zap.Logger
	pageSize       int
	now            func() time.Time
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(
	scope TransactionScope,
	medications inventory.MedicationRepository,
	movements inventory.MovementRepository,
	logger *zap.Logger,
) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{
		scope:       scope,
		medications: medications,
		movements:   movements,
		recorder:    nopRecorder{},
		logger:      logger,
		pageSize:    DefaultPageSize,
		now:         time.Now,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *LedgerService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetRecorder sets the metrics recorder
func (s *LedgerService) SetRecorder(r StockRecorder) {
	if r != nil {
		s.recorder = r
	}
}

// SetPageSize sets how many entries each ledger query fetches
func (s *LedgerService) SetPageSize(n int) {
	if n > 0 {
		s.pageSize = n
	}
}

// RecordMovement appends a ledger entry. An entry that names a lot is applied
// to that lot in the same transaction, so either both writes land or neither
// does. Aggregate entries are stored pending and applied by the reconciler.
func (s *LedgerService) RecordMovement(ctx context.Context, req RecordMovementRequest) (*MovementResponse, error) {
	m, err := s.buildMovement(req)
	if err != nil {
		return nil, err
	}
	if _, err := s.medications.FindByID(ctx, m.MedicationID); err != nil {
		return nil, err
	}

	var lotEvents []shared.DomainEvent
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if !m.IsAggregate() {
			events, err := applyMovement(ctx, repos, m, m.ActorID, s.now())
			if err != nil {
				return err
			}
			m.MarkApplied(nil)
			lotEvents = events
		}
		return repos.Movements().Create(ctx, m)
	})
	if err != nil {
		s.recorder.MovementRejected(ctx, m.Type, shared.CodeOf(err))
		s.logger.Info("movement rejected",
			zap.String("type", m.Type.String()),
			zap.String("medication_id", m.MedicationID.String()),
			zap.String("code", shared.CodeOf(err)),
			zap.Error(err))
		return nil, err
	}

	s.recorder.MovementRecorded(ctx, m.Type)
	publish(ctx, s.eventPublisher, lotEvents...)
	publishAggregate(ctx, s.eventPublisher, m)

	resp := ToMovementResponse(m)
	return &resp, nil
}

func (s *LedgerService) buildMovement(req RecordMovementRequest) (*inventory.StockMovement, error) {
	typ, err := inventory.ParseMovementType(req.Type)
	if err != nil {
		return nil, err
	}
	origin, err := parseStorePtr(req.OriginStore)
	if err != nil {
		return nil, err
	}
	dest, err := parseStorePtr(req.DestinationStore)
	if err != nil {
		return nil, err
	}
	return inventory.NewStockMovement(inventory.MovementSpec{
		Type:             typ,
		MedicationID:     req.MedicationID,
		LotID:            req.LotID,
		Quantity:         req.Quantity,
		OriginStore:      origin,
		DestinationStore: dest,
		ActorID:          req.ActorID,
		Reason:           req.Reason,
	})
}

// MarkSynchronized moves a pending entry to synchronized; repeated calls are no-ops
func (s *LedgerService) MarkSynchronized(ctx context.Context, id uuid.UUID) (*MovementResponse, error) {
	m, err := s.movements.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	changed, err := m.MarkSynchronized(s.now())
	if err != nil {
		return nil, err
	}
	if changed {
		if err := s.movements.UpdateStatus(ctx, m, inventory.MovementStatusPending); err != nil {
			return nil, err
		}
		publishAggregate(ctx, s.eventPublisher, m)
	}
	resp := ToMovementResponse(m)
	return &resp, nil
}

// RequeueMovement returns an errored entry to pending after manual review
func (s *LedgerService) RequeueMovement(ctx context.Context, id uuid.UUID) (*MovementResponse, error) {
	m, err := s.movements.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := m.Requeue(); err != nil {
		return nil, err
	}
	if err := s.movements.UpdateStatus(ctx, m, inventory.MovementStatusError); err != nil {
		return nil, err
	}
	resp := ToMovementResponse(m)
	return &resp, nil
}

// GetMovement returns one ledger entry
func (s *LedgerService) GetMovement(ctx context.Context, id uuid.UUID) (*MovementResponse, error) {
	m, err := s.movements.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToMovementResponse(m)
	return &resp, nil
}

// ListMovements pages through the ledger for traceability
func (s *LedgerService) ListMovements(ctx context.Context, f MovementListFilter) (shared.Paginated[MovementResponse], error) {
	filter := inventory.MovementFilter{
		MedicationID: f.MedicationID,
		LotID:        f.LotID,
		From:         f.From,
		To:           f.To,
	}
	if f.Type != "" {
		t, err := inventory.ParseMovementType(f.Type)
		if err != nil {
			return shared.Paginated[MovementResponse]{}, err
		}
		filter.Type = &t
	}
	if f.Status != "" {
		st := inventory.MovementStatus(f.Status)
		if !st.IsValid() {
			return shared.Paginated[MovementResponse]{}, shared.NewValidationError("invalid movement status: %q", f.Status)
		}
		filter.Status = &st
	}
	if f.From != nil && f.To != nil {
		if err := (shared.TimeWindow{From: *f.From, To: *f.To}).Validate(); err != nil {
			return shared.Paginated[MovementResponse]{}, err
		}
	}

	page := shared.DefaultFilter()
	if f.Page > 0 {
		page.Page = f.Page
	}
	if f.PageSize > 0 {
		page.PageSize = f.PageSize
	}
	items, total, err := s.movements.FindAll(ctx, filter, page)
	if err != nil {
		return shared.Paginated[MovementResponse]{}, err
	}
	return shared.NewPaginated(ToMovementResponses(items), total, page.Page, page.PageSize), nil
}

// ListPending yields pending entries in ledger order, optionally for one
// medication. Each range over the result starts a fresh query sequence.
func (s *LedgerService) ListPending(ctx context.Context, medicationID *uuid.UUID) iter.Seq2[inventory.StockMovement, error] {
	status := inventory.MovementStatusPending
	return pageMovements(ctx, s.movements, inventory.MovementFilter{
		MedicationID: medicationID,
		Status:       &status,
	}, s.pageSize)
}

// pageMovements walks the ledger with keyset pagination on (recorded_at, id),
// so rows changing status during the walk are neither skipped nor repeated.
func pageMovements(ctx context.Context, repo inventory.MovementRepository, filter inventory.MovementFilter, pageSize int) iter.Seq2[inventory.StockMovement, error] {
	return func(yield func(inventory.StockMovement, error) bool) {
		var cursor *inventory.MovementCursor
		for {
			page, err := repo.FindPage(ctx, filter, cursor, pageSize)
			if err != nil {
				yield(inventory.StockMovement{}, err)
				return
			}
			for _, m := range page {
				if !yield(m, nil) {
					return
				}
			}
			if len(page) < pageSize {
				return
			}
			last := page[len(page)-1]
			cursor = &inventory.MovementCursor{RecordedAt: last.RecordedAt, ID: last.ID}
		}
	}
}

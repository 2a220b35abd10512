package inventory

import (
	"context"
	"time"

	"github.com/clinic/pharmacy/internal/domain/inventory"
	"github.com/clinic/pharmacy/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultCountListCap = 100

// StockCountService runs physical stock counts. Differences found by a count
// reach the lots only as ledger entries recorded through the LedgerService.
type StockCountService struct {
	counts         inventory.StockCountRepository
	lots           inventory.LotRepository
	movements      inventory.MovementRepository
	ledger         *LedgerService
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
	numberAttempts int
	now            func() time.Time
}

// NewStockCountService creates a new StockCountService
func NewStockCountService(
	counts inventory.StockCountRepository,
	lots inventory.LotRepository,
	movements inventory.MovementRepository,
	ledger *LedgerService,
	logger *zap.Logger,
) *StockCountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockCountService{
		counts:         counts,
		lots:           lots,
		movements:      movements,
		ledger:         ledger,
		logger:         logger,
		numberAttempts: maxCodeAttempts,
		now:            time.Now,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *StockCountService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// OpenCount snapshots the active lots of a store into a new INV-YYYY-NNN count
func (s *StockCountService) OpenCount(ctx context.Context, req OpenCountRequest) (*CountResponse, error) {
	store, err := inventory.ParseStore(req.Store)
	if err != nil {
		return nil, err
	}
	filter := shared.Filter{OrderBy: "expiry_date", OrderDir: "asc"}.
		With("store", store.String()).
		With("status", inventory.LotStatusActive.String())
	lots, _, err := s.lots.FindAll(ctx, filter)
	if err != nil {
		return nil, err
	}

	year := s.now().Year()
	var count *inventory.StockCount
	for attempt := 1; ; attempt++ {
		last, err := s.counts.LastSequence(ctx, year)
		if err != nil {
			return nil, err
		}
		count, err = inventory.NewStockCount(inventory.GenerateCountNumber(year, last+1), store, lots, req.Notes, req.ActorID)
		if err != nil {
			return nil, err
		}
		err = s.counts.Create(ctx, count)
		if err == nil {
			break
		}
		if !shared.IsCode(err, shared.CodeDuplicateKey) || attempt >= s.numberAttempts {
			return nil, err
		}
		s.logger.Debug("count number collided, retrying",
			zap.String("count_number", count.CountNumber), zap.Int("attempt", attempt))
	}

	s.logger.Info("stock count opened",
		zap.String("count_number", count.CountNumber),
		zap.String("store", store.String()),
		zap.Int("lots", len(count.Lines)),
		zap.String("actor_id", req.ActorID))
	publishAggregate(ctx, s.eventPublisher, count)

	resp := ToCountResponse(count)
	return &resp, nil
}

// RecordCounts stores counted quantities for some lots of a count
func (s *StockCountService) RecordCounts(ctx context.Context, id uuid.UUID, req RecordCountsRequest) (*CountResponse, error) {
	count, err := s.counts.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Version != 0 && req.Version != count.Version {
		return nil, shared.NewConcurrentModificationError("stock count", id)
	}
	entries := make([]inventory.CountEntry, len(req.Counts))
	for i, c := range req.Counts {
		entries[i] = inventory.CountEntry{LotID: c.LotID, Quantity: c.Quantity, Remark: c.Remark}
	}
	if err := count.RecordCounts(entries); err != nil {
		return nil, err
	}
	if err := s.counts.SaveWithLock(ctx, count); err != nil {
		return nil, err
	}
	resp := ToCountResponse(count)
	return &resp, nil
}

// ValidateCount settles every difference of a fully counted count: a loss
// for each shortfall, a return for each surplus. Each entry is linked to its
// line as soon as it is recorded, so a validation cut short resumes where it
// stopped when called again.
func (s *StockCountService) ValidateCount(ctx context.Context, id uuid.UUID, req ValidateCountRequest) (*CountValidationResult, error) {
	count, err := s.counts.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	actorID := req.ActorID
	if count.Status == inventory.CountStatusValidating && count.ValidatedBy != "" && actorID == "" {
		actorID = count.ValidatedBy
	}
	if err := count.StartValidation(actorID); err != nil {
		return nil, err
	}
	if err := s.counts.SaveWithLock(ctx, count); err != nil {
		return nil, err
	}
	publishAggregate(ctx, s.eventPublisher, count)

	result := &CountValidationResult{}
	for _, adj := range count.PendingAdjustments() {
		movementID, err := s.settle(ctx, count, adj, actorID)
		if err != nil {
			s.logger.Warn("stock count validation stopped",
				zap.String("count_number", count.CountNumber),
				zap.String("lot_number", adj.LotNumber),
				zap.String("code", shared.CodeOf(err)),
				zap.Error(err))
			return nil, err
		}
		if err := count.MarkAdjusted(adj.LineID, movementID); err != nil {
			return nil, err
		}
		if err := s.counts.SaveWithLock(ctx, count); err != nil {
			return nil, err
		}
		result.Movements = append(result.Movements, movementID)
	}

	if err := count.CompleteValidation(s.now()); err != nil {
		return nil, err
	}
	if err := s.counts.SaveWithLock(ctx, count); err != nil {
		return nil, err
	}
	s.logger.Info("stock count validated",
		zap.String("count_number", count.CountNumber),
		zap.Int("adjustments", len(result.Movements)),
		zap.String("total_difference", count.TotalDifference().String()),
		zap.String("actor_id", actorID))
	publishAggregate(ctx, s.eventPublisher, count)

	result.Count = ToCountResponse(count)
	return result, nil
}

// settle records the ledger entry of one difference. A lot that moved since
// the count opened is refused, unless it already holds the counted quantity
// because this count's entry was recorded before the link was saved.
func (s *StockCountService) settle(ctx context.Context, count *inventory.StockCount, adj inventory.CountAdjustment, actorID string) (uuid.UUID, error) {
	reason := "stock count " + count.CountNumber
	lot, err := s.lots.FindByID(ctx, adj.LotID)
	if err != nil {
		return uuid.Nil, err
	}
	if !lot.QuantityAvailable.Equal(adj.Expected) {
		if id, ok := s.findSettlement(ctx, adj, reason); ok {
			return id, nil
		}
		return uuid.Nil, shared.NewInvalidStateError("lot %s holds %s, not the %s expected when count %s opened; cancel and recount",
			lot.LotNumber, lot.QuantityAvailable.String(), adj.Expected.String(), count.CountNumber)
	}

	store := count.Store.String()
	req := RecordMovementRequest{
		Type:         adj.Type.String(),
		MedicationID: adj.MedicationID,
		LotID:        &adj.LotID,
		Quantity:     adj.Quantity,
		ActorID:      actorID,
		Reason:       reason,
	}
	if adj.Type == inventory.MovementTypeLoss {
		req.OriginStore = &store
	} else {
		req.DestinationStore = &store
	}
	m, err := s.ledger.RecordMovement(ctx, req)
	if err != nil {
		return uuid.Nil, err
	}
	return m.ID, nil
}

func (s *StockCountService) findSettlement(ctx context.Context, adj inventory.CountAdjustment, reason string) (uuid.UUID, bool) {
	typ := adj.Type
	entries, _, err := s.movements.FindAll(ctx, inventory.MovementFilter{LotID: &adj.LotID, Type: &typ}, shared.Filter{})
	if err != nil {
		s.logger.Warn("failed to look up count adjustment", zap.String("lot_id", adj.LotID.String()), zap.Error(err))
		return uuid.Nil, false
	}
	for _, m := range entries {
		if m.Reason == reason && m.Quantity.Equal(adj.Quantity) {
			return m.ID, true
		}
	}
	return uuid.Nil, false
}

// CancelCount abandons a count that has not started validation
func (s *StockCountService) CancelCount(ctx context.Context, id uuid.UUID, req CancelCountRequest) (*CountResponse, error) {
	count, err := s.counts.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := count.Cancel(req.ActorID, req.Reason, s.now()); err != nil {
		return nil, err
	}
	if err := s.counts.SaveWithLock(ctx, count); err != nil {
		return nil, err
	}
	s.logger.Info("stock count cancelled",
		zap.String("count_number", count.CountNumber),
		zap.String("actor_id", req.ActorID))
	publishAggregate(ctx, s.eventPublisher, count)
	resp := ToCountResponse(count)
	return &resp, nil
}

// GetCount returns one count with its lines
func (s *StockCountService) GetCount(ctx context.Context, id uuid.UUID) (*CountResponse, error) {
	count, err := s.counts.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToCountResponse(count)
	return &resp, nil
}

// ListCounts returns counts newest first without their lines
func (s *StockCountService) ListCounts(ctx context.Context, f CountListFilter) (shared.Paginated[CountResponse], error) {
	filter := shared.DefaultFilter()
	if f.Page > 0 {
		filter.Page = f.Page
	}
	if f.PageSize > 0 && f.PageSize <= defaultCountListCap {
		filter.PageSize = f.PageSize
	}
	if f.Store != "" {
		store, err := inventory.ParseStore(f.Store)
		if err != nil {
			return shared.Paginated[CountResponse]{}, err
		}
		filter = filter.With("store", store.String())
	}
	if f.Status != "" {
		st, err := inventory.ParseCountStatus(f.Status)
		if err != nil {
			return shared.Paginated[CountResponse]{}, err
		}
		filter = filter.With("status", st.String())
	}

	counts, total, err := s.counts.FindAll(ctx, filter)
	if err != nil {
		return shared.Paginated[CountResponse]{}, err
	}
	items := make([]CountResponse, len(counts))
	for i := range counts {
		items[i] = toCountSummary(&counts[i])
	}
	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}

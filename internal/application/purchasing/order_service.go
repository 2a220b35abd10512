package purchasing

import (
	"context"
	"time"

	"github.com/clinic/pharmacy/internal/domain/inventory"
	"github.com/clinic/pharmacy/internal/domain/purchasing"
	"github.com/clinic/pharmacy/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	maxNumberAttempts   = 5
	defaultOrderListCap = 200
	defaultDocumentTTL  = 15 * time.Minute
)

// DocumentStore archives order documents and hands out download links
type DocumentStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// OrderService runs the supplier order workflow
type OrderService struct {
	orders         purchasing.SupplierOrderRepository
	suppliers      purchasing.SupplierRepository
	medications    inventory.MedicationRepository
	scope          ReceivingScope
	documents      DocumentStore
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
	documentTTL    time.Duration
	numberAttempts int
	now            func() time.Time
}

// NewOrderService creates a new OrderService
func NewOrderService(
	orders purchasing.SupplierOrderRepository,
	suppliers purchasing.SupplierRepository,
	medications inventory.MedicationRepository,
	scope ReceivingScope,
	logger *zap.Logger,
) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		orders:         orders,
		suppliers:      suppliers,
		medications:    medications,
		scope:          scope,
		logger:         logger,
		documentTTL:    defaultDocumentTTL,
		numberAttempts: maxNumberAttempts,
		now:            time.Now,
	}
}

// SetNumberAttempts bounds how many order numbers CreateOrder tries before
// giving up on a DuplicateKey
func (s *OrderService) SetNumberAttempts(n int) {
	if n > 0 {
		s.numberAttempts = n
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *OrderService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetDocumentStore sets where order documents are archived
func (s *OrderService) SetDocumentStore(store DocumentStore, ttl time.Duration) {
	s.documents = store
	if ttl > 0 {
		s.documentTTL = ttl
	}
}

// CreateOrder creates a DRAFT order numbered CF-YYYY-NNNNN. The header and
// lines are written separately; if the lines fail the header is removed again.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderResponse, error) {
	exists, err := s.suppliers.ExistsByID(ctx, req.SupplierID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, shared.NewNotFoundError("supplier", req.SupplierID.String())
	}
	if err := s.checkMedications(ctx, req.Lines); err != nil {
		return nil, err
	}

	specs := make([]purchasing.LineSpec, len(req.Lines))
	for i, l := range req.Lines {
		specs[i] = purchasing.LineSpec{
			MedicationID:       l.MedicationID,
			Quantity:           l.Quantity,
			EstimatedUnitPrice: l.EstimatedUnitPrice,
		}
	}

	year := s.now().Year()
	var order *purchasing.SupplierOrder
	for attempt := 1; ; attempt++ {
		last, err := s.orders.LastSequence(ctx, year)
		if err != nil {
			return nil, err
		}
		order, err = purchasing.NewSupplierOrder(
			purchasing.GenerateOrderNumber(year, last+1),
			req.SupplierID, specs, req.RequestedDeliveryDate, req.Notes, req.CreatedBy,
		)
		if err != nil {
			return nil, err
		}
		err = s.orders.CreateHeader(ctx, order)
		if err == nil {
			break
		}
		if !shared.IsCode(err, shared.CodeDuplicateKey) || attempt >= s.numberAttempts {
			return nil, err
		}
		s.logger.Debug("order number collided, retrying",
			zap.String("order_number", order.OrderNumber), zap.Int("attempt", attempt))
	}

	if err := s.orders.CreateLines(ctx, order); err != nil {
		if derr := s.orders.DeleteHeader(ctx, order.ID); derr != nil {
			s.logger.Error("failed to remove order header after line insert failure",
				zap.String("order_id", order.ID.String()),
				zap.String("order_number", order.OrderNumber),
				zap.Error(derr))
		}
		return nil, err
	}

	s.logger.Info("supplier order created",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.Int("lines", len(order.Lines)),
		zap.String("total", order.Total().String()))
	s.publish(ctx, order)

	resp := ToOrderResponse(order)
	return &resp, nil
}

func (s *OrderService) checkMedications(ctx context.Context, lines []OrderLineInput) error {
	seen := make(map[uuid.UUID]struct{}, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.MedicationID]; ok {
			continue
		}
		seen[l.MedicationID] = struct{}{}
		if _, err := s.medications.FindByID(ctx, l.MedicationID); err != nil {
			return err
		}
	}
	return nil
}

// AdvanceStatus moves an order one step along the workflow. The update only
// lands if nobody changed the order since it was read. Reaching RECEIVED opens
// one lot per received line and records its reception entry in the same
// transaction as the status change.
func (s *OrderService) AdvanceStatus(ctx context.Context, id uuid.UUID, req AdvanceStatusRequest) (*AdvanceResult, error) {
	target, err := purchasing.ParseOrderStatus(req.Status)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Version != 0 && req.Version != order.Version {
		return nil, shared.NewConcurrentModificationError("supplier order", id.String())
	}
	from := order.Status

	if target == purchasing.OrderStatusReceived {
		return s.receive(ctx, order, req)
	}

	if err := order.Advance(target, req.ActorID, s.now()); err != nil {
		return nil, err
	}
	if err := s.orders.SaveWithLock(ctx, order); err != nil {
		return nil, err
	}
	s.logger.Info("supplier order advanced",
		zap.String("order_number", order.OrderNumber),
		zap.String("from", from.String()),
		zap.String("to", order.Status.String()),
		zap.String("actor_id", req.ActorID))
	s.publish(ctx, order)
	return &AdvanceResult{Order: ToOrderResponse(order)}, nil
}

func (s *OrderService) receive(ctx context.Context, order *purchasing.SupplierOrder, req AdvanceStatusRequest) (*AdvanceResult, error) {
	receipt, err := toReceipt(req.Receipt)
	if err != nil {
		return nil, err
	}
	supplier, err := s.suppliers.FindByID(ctx, order.SupplierID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	received, err := order.Receive(receipt, supplier.Name, req.ActorID, now)
	if err != nil {
		return nil, err
	}

	result := &AdvanceResult{}
	var events []shared.DomainEvent
	err = s.scope.Execute(ctx, func(repos ReceivingRepositories) error {
		if err := repos.SupplierOrders().SaveWithLock(ctx, order); err != nil {
			return err
		}
		for _, rl := range received {
			lotID, lotEvents, err := openReceivedLot(ctx, repos, rl.Lot, req.ActorID)
			if err != nil {
				return err
			}
			m, err := inventory.NewStockMovement(inventory.MovementSpec{
				Type:             inventory.MovementTypeReception,
				MedicationID:     rl.Lot.MedicationID,
				LotID:            &lotID,
				Quantity:         rl.Lot.Quantity,
				DestinationStore: inventory.StorePtr(rl.Lot.Store),
				ActorID:          req.ActorID,
				Reason:           "supplier order " + order.OrderNumber,
			})
			if err != nil {
				return err
			}
			m.MarkApplied(nil)
			if err := repos.Movements().Create(ctx, m); err != nil {
				return err
			}
			events = append(events, lotEvents...)
			events = append(events, m.GetDomainEvents()...)
			m.ClearDomainEvents()
			result.LotIDs = append(result.LotIDs, lotID)
			result.Movements = append(result.Movements, m.ID)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("supplier order receipt failed",
			zap.String("order_number", order.OrderNumber),
			zap.String("code", shared.CodeOf(err)),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("supplier order received",
		zap.String("order_number", order.OrderNumber),
		zap.Int("lots", len(result.LotIDs)),
		zap.String("actor_id", req.ActorID))
	s.publish(ctx, order)
	s.publishEvents(ctx, order.OrderNumber, events...)
	result.Order = ToOrderResponse(order)
	return result, nil
}

// openReceivedLot tops up an existing lot with the same number in the target
// store or opens a new one.
func openReceivedLot(ctx context.Context, repos ReceivingRepositories, spec inventory.LotSpec, actorID string) (uuid.UUID, []shared.DomainEvent, error) {
	existing, err := repos.Lots().FindByNumber(ctx, spec.MedicationID, spec.LotNumber, spec.Store)
	switch {
	case err == nil:
		if !existing.ExpiryDate.Equal(spec.ExpiryDate) {
			return uuid.Nil, nil, shared.NewValidationError("lot %s already exists with expiry %s",
				spec.LotNumber, existing.ExpiryDate.Format(time.DateOnly))
		}
		return existing.ID, nil, repos.Lots().Absorb(ctx, existing.ID, spec.Quantity)
	case !shared.IsCode(err, shared.CodeNotFound):
		return uuid.Nil, nil, err
	}
	lot, err := inventory.NewLot(spec)
	if err != nil {
		return uuid.Nil, nil, err
	}
	if err := repos.Lots().Create(ctx, lot); err != nil {
		return uuid.Nil, nil, err
	}
	return lot.ID, []shared.DomainEvent{inventory.NewLotCreatedEvent(lot, actorID)}, nil
}

// GetOrder returns one order with its lines
func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*OrderResponse, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToOrderResponse(order)
	return &resp, nil
}

// ListOrders returns orders newest first, at most 200 per page
func (s *OrderService) ListOrders(ctx context.Context, f OrderListFilter) (shared.Paginated[OrderResponse], error) {
	filter := shared.DefaultFilter()
	filter.PageSize = defaultOrderListCap
	if f.Page > 0 {
		filter.Page = f.Page
	}
	if f.PageSize > 0 && f.PageSize <= defaultOrderListCap {
		filter.PageSize = f.PageSize
	}
	if f.Status != "" {
		st, err := purchasing.ParseOrderStatus(f.Status)
		if err != nil {
			return shared.Paginated[OrderResponse]{}, err
		}
		filter = filter.With("status", st.String())
	}
	if f.SupplierID != nil {
		filter = filter.With("supplier_id", *f.SupplierID)
	}

	orders, total, err := s.orders.FindAll(ctx, filter)
	if err != nil {
		return shared.Paginated[OrderResponse]{}, err
	}
	items := make([]OrderResponse, len(orders))
	for i := range orders {
		items[i] = ToOrderResponse(&orders[i])
	}
	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}

// ComputeOrderTotal returns the estimated amount of an order
func (s *OrderService) ComputeOrderTotal(ctx context.Context, id uuid.UUID) (decimal.Decimal, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return purchasing.ComputeOrderTotal(order), nil
}

// DocumentURL returns a time-limited link to the archived order document.
// Documents exist once the order has been sent to the supplier.
func (s *OrderService) DocumentURL(ctx context.Context, id uuid.UUID) (*DocumentLink, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.DocumentKey == "" {
		return nil, shared.NewInvalidStateError("order %s has no document before it is sent", order.OrderNumber)
	}
	if s.documents == nil {
		return nil, shared.NewInvalidStateError("document storage is not configured")
	}
	url, err := s.documents.PresignGet(ctx, order.DocumentKey, s.documentTTL)
	if err != nil {
		return nil, shared.WrapDomainError(shared.CodeTransient, "failed to sign document link", err)
	}
	return &DocumentLink{
		OrderNumber: order.OrderNumber,
		URL:         url,
		ExpiresAt:   s.now().Add(s.documentTTL),
	}, nil
}

func (s *OrderService) publish(ctx context.Context, order *purchasing.SupplierOrder) {
	events := order.GetDomainEvents()
	order.ClearDomainEvents()
	s.publishEvents(ctx, order.OrderNumber, events...)
}

// publishEvents is best-effort: the write behind the events has committed
func (s *OrderService) publishEvents(ctx context.Context, orderNumber string, events ...shared.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("failed to publish order events",
			zap.String("order_number", orderNumber),
			zap.Int("events", len(events)),
			zap.Error(err))
	}
}

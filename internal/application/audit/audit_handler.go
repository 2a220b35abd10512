package audit

import (
	"context"
	"strings"
	"time"

	"github.com/clinic/pharmacy/internal/domain/audit"
	"github.com/clinic/pharmacy/internal/domain/inventory"
	"github.com/clinic/pharmacy/internal/domain/purchasing"
	"github.com/clinic/pharmacy/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultHistoryLimit = 100

// TrailHandler writes stock and order events to the audit trail. Writes are
// best effort: a failure is logged and never fails the publishing operation.
type TrailHandler struct {
	repo   audit.Repository
	logger *zap.Logger
}

// NewTrailHandler creates a new TrailHandler
func NewTrailHandler(repo audit.Repository, logger *zap.Logger) *TrailHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrailHandler{repo: repo, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *TrailHandler) EventTypes() []string {
	return []string{
		purchasing.EventTypeOrderStatusChanged,
		inventory.EventTypeLotCreated,
		inventory.EventTypeLotExpired,
		inventory.EventTypeMovementErrored,
		inventory.EventTypeReconcileCompleted,
		inventory.EventTypeStockCountChanged,
	}
}

// Handle appends one audit entry for the event
func (h *TrailHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	entry := entryFor(event)
	if entry == nil {
		return nil
	}
	entry.CreatedAt = event.OccurredAt()
	if err := h.repo.Append(ctx, entry); err != nil {
		h.logger.Warn("failed to write audit entry",
			zap.String("event_type", event.EventType()),
			zap.String("entity_id", entry.EntityID.String()),
			zap.Error(err))
	}
	return nil
}

func entryFor(event shared.DomainEvent) *audit.Entry {
	actor := ""
	if a, ok := event.(shared.ActorEvent); ok {
		actor = a.Actor()
	}
	switch e := event.(type) {
	case *purchasing.OrderStatusChangedEvent:
		return audit.NewEntry(purchasing.AggregateTypeSupplierOrder, e.OrderID, audit.ActionStatusChange, actor).
			WithStatus(e.From.String(), e.To.String()).
			WithData(nil, map[string]any{"order_number": e.OrderNumber, "document_key": e.DocumentKey})
	case *inventory.LotCreatedEvent:
		return audit.NewEntry(inventory.AggregateTypeLot, e.AggregateID(), audit.ActionLotCreated, actor).
			WithData(nil, map[string]any{
				"medication_id": e.MedicationID.String(),
				"lot_number":    e.LotNumber,
				"store":         e.Store.String(),
				"quantity":      e.Quantity.String(),
				"expiry_date":   e.ExpiryDate.Format(time.DateOnly),
			})
	case *inventory.LotExpiredEvent:
		return audit.NewEntry(inventory.AggregateTypeLot, e.AggregateID(), audit.ActionStatusChange, actor).
			WithStatus(string(inventory.LotStatusActive), string(inventory.LotStatusExpired)).
			WithData(nil, map[string]any{"remaining": e.Remaining.String()})
	case *inventory.MovementErroredEvent:
		return audit.NewEntry(inventory.AggregateTypeMovement, e.MovementID, audit.ActionMovement, actor).
			WithStatus(string(inventory.MovementStatusPending), string(inventory.MovementStatusError)).
			WithData(nil, map[string]any{"medication_id": e.MedicationID.String(), "message": e.Message})
	case *inventory.StockCountStatusChangedEvent:
		return audit.NewEntry(inventory.AggregateTypeStockCount, e.CountID, audit.ActionStatusChange, actor).
			WithStatus(e.From.String(), e.To.String()).
			WithData(nil, map[string]any{
				"count_number":     e.CountNumber,
				"store":            e.Store.String(),
				"lots":             e.Lots,
				"total_difference": e.TotalDifference.String(),
			})
	case *inventory.ReconcileCompletedEvent:
		return audit.NewEntry(inventory.AggregateTypeMedication, e.MedicationID, audit.ActionReconcile, actor).
			WithData(nil, map[string]any{
				"synchronized": e.Synchronized,
				"errored":      e.Errored,
				"status":       string(e.Status),
			})
	}
	return nil
}

var _ shared.EventHandler = (*TrailHandler)(nil)

// EntryResponse is an audit entry in API responses
type EntryResponse struct {
	ID         uuid.UUID      `json:"id"`
	EntityType string         `json:"entity_type"`
	EntityID   uuid.UUID      `json:"entity_id"`
	Action     string         `json:"action"`
	ActorID    string         `json:"actor_id,omitempty"`
	OldStatus  string         `json:"old_status,omitempty"`
	NewStatus  string         `json:"new_status,omitempty"`
	OldData    map[string]any `json:"old_data,omitempty"`
	NewData    map[string]any `json:"new_data,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// TrailService reads the audit trail
type TrailService struct {
	repo audit.Repository
}

// NewTrailService creates a new TrailService
func NewTrailService(repo audit.Repository) *TrailService {
	return &TrailService{repo: repo}
}

var entityTypes = map[string]string{
	"supplier-order": purchasing.AggregateTypeSupplierOrder,
	"lot":            inventory.AggregateTypeLot,
	"movement":       inventory.AggregateTypeMovement,
	"medication":     inventory.AggregateTypeMedication,
	"stock-count":    inventory.AggregateTypeStockCount,
}

// History returns the newest entries for one entity. kind is the URL form
// of the entity type, e.g. "supplier-order".
func (s *TrailService) History(ctx context.Context, kind string, id uuid.UUID, limit int) ([]EntryResponse, error) {
	entityType, ok := entityTypes[strings.ToLower(kind)]
	if !ok {
		return nil, shared.NewValidationError("unknown audit entity type %q", kind)
	}
	if limit <= 0 || limit > defaultHistoryLimit {
		limit = defaultHistoryLimit
	}
	entries, err := s.repo.FindByEntity(ctx, entityType, id, limit)
	if err != nil {
		return nil, err
	}
	out := make([]EntryResponse, len(entries))
	for i, e := range entries {
		out[i] = EntryResponse{
			ID:         e.ID,
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			Action:     e.Action,
			ActorID:    e.ActorID,
			OldStatus:  e.OldStatus,
			NewStatus:  e.NewStatus,
			OldData:    e.OldData,
			NewData:    e.NewData,
			CreatedAt:  e.CreatedAt,
		}
	}
	return out, nil
}

package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Actions recorded in the stock audit trail
const (
	ActionStatusChange = "STATUS_CHANGE"
	ActionLotCreated   = "LOT_CREATED"
	ActionMovement     = "MOVEMENT"
	ActionReconcile    = "RECONCILE"
)

// Entry is one line of the stock audit trail
type Entry struct {
	ID         uuid.UUID
	EntityType string
	EntityID   uuid.UUID
	Action     string
	ActorID    string
	OldStatus  string
	NewStatus  string
	OldData    map[string]any
	NewData    map[string]any
	CreatedAt  time.Time
}

// NewEntry creates an entry stamped now
func NewEntry(entityType string, entityID uuid.UUID, action, actorID string) *Entry {
	return &Entry{
		ID:         uuid.New(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		ActorID:    actorID,
		CreatedAt:  time.Now(),
	}
}

// WithStatus records a status change
func (e *Entry) WithStatus(from, to string) *Entry {
	e.OldStatus = from
	e.NewStatus = to
	return e
}

// WithData attaches before/after payloads
func (e *Entry) WithData(oldData, newData map[string]any) *Entry {
	e.OldData = oldData
	e.NewData = newData
	return e
}

// Repository stores audit entries
type Repository interface {
	Append(ctx context.Context, e *Entry) error
	FindByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit int) ([]Entry, error)
}

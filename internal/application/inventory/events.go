package inventory

import (
	"context"
	"time"

	"github.com/clinic/pharmacy/internal/domain/inventory"
	"github.com/clinic/pharmacy/internal/domain/shared"
	"github.com/google/uuid"
)

// StockRecorder receives stock activity for metrics
type StockRecorder interface {
	MovementRecorded(ctx context.Context, movementType inventory.MovementType)
	MovementRejected(ctx context.Context, movementType inventory.MovementType, code string)
	ReconcileFinished(ctx context.Context, medicationID uuid.UUID, synchronized, errored int, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) MovementRecorded(context.Context, inventory.MovementType)         {}
func (nopRecorder) MovementRejected(context.Context, inventory.MovementType, string) {}
func (nopRecorder) ReconcileFinished(context.Context, uuid.UUID, int, int, time.Duration) {
}

// publish sends events after commit; failures are logged by the bus
func publish(ctx context.Context, publisher shared.EventPublisher, events ...shared.DomainEvent) {
	if publisher == nil || len(events) == 0 {
		return
	}
	_ = publisher.Publish(ctx, events...)
}

// publishAggregate flushes and clears an aggregate's pending events
func publishAggregate(ctx context.Context, publisher shared.EventPublisher, agg shared.AggregateRoot) {
	events := agg.GetDomainEvents()
	agg.ClearDomainEvents()
	publish(ctx, publisher, events...)
}

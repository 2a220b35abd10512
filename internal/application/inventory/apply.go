package inventory

import (
	"context"
	"time"

	"github.com/clinic/pharmacy/internal/domain/inventory"
	"github.com/clinic/pharmacy/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// applyMovement writes m's quantity to lots through repos. Lot-referencing
// entries touch that lot; aggregate entries are spread over the source store's
// lots in FEFO order. It must run inside the transaction that persists m.
func applyMovement(ctx context.Context, repos TransactionalRepositories, m *inventory.StockMovement, actorID string, now time.Time) ([]shared.DomainEvent, error) {
	if m.IsAggregate() {
		return applyAggregate(ctx, repos, m, actorID, now)
	}

	lot, err := repos.Lots().FindByID(ctx, *m.LotID)
	if err != nil {
		return nil, err
	}
	if lot.MedicationID != m.MedicationID {
		return nil, shared.NewValidationError("lot %s does not belong to medication %s", lot.LotNumber, m.MedicationID)
	}

	switch m.Type {
	case inventory.MovementTypeReception:
		if err := expectStore(lot, *m.DestinationStore); err != nil {
			return nil, err
		}
		return nil, repos.Lots().Absorb(ctx, lot.ID, m.Quantity)
	case inventory.MovementTypeReturn:
		if err := expectStore(lot, *m.DestinationStore); err != nil {
			return nil, err
		}
		return nil, repos.Lots().Restock(ctx, lot.ID, m.Quantity)
	case inventory.MovementTypeDispensation, inventory.MovementTypeLoss, inventory.MovementTypeTransfer:
		if err := expectStore(lot, *m.OriginStore); err != nil {
			return nil, err
		}
		if m.Type != inventory.MovementTypeLoss && lot.IsExpired(now) {
			return nil, shared.NewInvalidStateError("lot %s expired on %s", lot.LotNumber, lot.ExpiryDate.Format(time.DateOnly))
		}
		if err := repos.Lots().Withdraw(ctx, lot.ID, m.Quantity); err != nil {
			return nil, err
		}
		if m.Type != inventory.MovementTypeTransfer {
			return nil, nil
		}
		dest, events, err := transferInto(ctx, repos, lot, *m.DestinationStore, m.Quantity, actorID, now)
		if err != nil {
			return nil, err
		}
		m.MarkApplied(&dest)
		return events, nil
	}
	return nil, shared.NewValidationError("unsupported movement type %s", m.Type)
}

func applyAggregate(ctx context.Context, repos TransactionalRepositories, m *inventory.StockMovement, actorID string, now time.Time) ([]shared.DomainEvent, error) {
	source, ok := m.SourceStore()
	if !ok {
		return nil, shared.NewValidationError("%s movements must reference a lot", m.Type)
	}
	lots, err := repos.Lots().FindByMedication(ctx, m.MedicationID, &source)
	if err != nil {
		return nil, err
	}
	allocations, err := inventory.AllocateFEFO(lots, source, m.Quantity, now)
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]*inventory.Lot, len(lots))
	for i := range lots {
		byID[lots[i].ID] = &lots[i]
	}

	var events []shared.DomainEvent
	var lastDest *uuid.UUID
	for _, a := range allocations {
		if err := repos.Lots().Withdraw(ctx, a.LotID, a.Quantity); err != nil {
			return nil, err
		}
		if m.Type != inventory.MovementTypeTransfer {
			continue
		}
		dest, evs, err := transferInto(ctx, repos, byID[a.LotID], *m.DestinationStore, a.Quantity, actorID, now)
		if err != nil {
			return nil, err
		}
		events = append(events, evs...)
		lastDest = &dest
	}
	if len(allocations) == 1 {
		m.MarkApplied(lastDest)
	}
	return events, nil
}

// transferInto adds qty to the destination-store lot carrying the same lot
// number as source, opening that lot when it does not exist yet.
func transferInto(ctx context.Context, repos TransactionalRepositories, source *inventory.Lot, store inventory.Store, qty decimal.Decimal, actorID string, now time.Time) (uuid.UUID, []shared.DomainEvent, error) {
	existing, err := repos.Lots().FindByNumber(ctx, source.MedicationID, source.LotNumber, store)
	switch {
	case err == nil:
		return existing.ID, nil, repos.Lots().Absorb(ctx, existing.ID, qty)
	case !shared.IsCode(err, shared.CodeNotFound):
		return uuid.Nil, nil, err
	}

	lot, err := inventory.NewLot(inventory.LotSpec{
		MedicationID:  source.MedicationID,
		LotNumber:     source.LotNumber,
		Store:         store,
		Quantity:      qty,
		ExpiryDate:    source.ExpiryDate,
		UnitCost:      source.UnitCost,
		SupplierName:  source.SupplierName,
		ReceptionDate: now,
	})
	if err != nil {
		return uuid.Nil, nil, err
	}
	if err := repos.Lots().Create(ctx, lot); err != nil {
		return uuid.Nil, nil, err
	}
	return lot.ID, []shared.DomainEvent{inventory.NewLotCreatedEvent(lot, actorID)}, nil
}

func expectStore(lot *inventory.Lot, store inventory.Store) error {
	if lot.Store != store {
		return shared.NewValidationError("lot %s is held in the %s store, not %s", lot.LotNumber, lot.Store, store)
	}
	return nil
}

package inventory

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/clinic/pharmacy/internal/domain/inventory"
	"github.com/clinic/pharmacy/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Reconciler replays pending ledger entries and realigns the reported store
// totals with what the lots actually hold.
type Reconciler struct {
	scope          TransactionScope
	medications    inventory.MedicationRepository
	lots           inventory.LotRepository
	movements      inventory.MovementRepository
	levels         inventory.StockLevelRepository
	guard          ReconcileGuard
	eventPublisher shared.EventPublisher
	recorder       StockRecorder
	logger         *zap.Logger
	pageSize       int
	now            func() time.Time
}

// NewReconciler creates a new Reconciler
func NewReconciler(
	scope TransactionScope,
	medications inventory.MedicationRepository,
	lots inventory.LotRepository,
	movements inventory.MovementRepository,
	levels inventory.StockLevelRepository,
	guard ReconcileGuard,
	logger *zap.Logger,
) *Reconciler {
	if guard == nil {
		guard = NewLocalGuard()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		scope:       scope,
		medications: medications,
		lots:        lots,
		movements:   movements,
		levels:      levels,
		guard:       guard,
		recorder:    nopRecorder{},
		logger:      logger,
		pageSize:    DefaultPageSize,
		now:         time.Now,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (r *Reconciler) SetEventPublisher(publisher shared.EventPublisher) {
	r.eventPublisher = publisher
}

// SetRecorder sets the metrics recorder
func (r *Reconciler) SetRecorder(rec StockRecorder) {
	if rec != nil {
		r.recorder = rec
	}
}

// SetPageSize sets how many rows each iteration query fetches
func (r *Reconciler) SetPageSize(n int) {
	if n > 0 {
		r.pageSize = n
	}
}

// Reconcile replays pending entries for one medication, or for every
// medication when medicationID is nil. A failing entry is parked in error and
// the pass continues; failures are reported in the result, not returned.
func (r *Reconciler) Reconcile(ctx context.Context, medicationID *uuid.UUID) (*ReconcileResult, error) {
	result := newReconcileResult()

	if medicationID != nil {
		if _, err := r.medications.FindByID(ctx, *medicationID); err != nil {
			return nil, err
		}
		ok, err := r.reconcileOne(ctx, *medicationID, result)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, shared.NewDomainError(shared.CodeConcurrentModification,
				"a reconcile pass is already running for medication "+medicationID.String())
		}
		return result, nil
	}

	for id, err := range r.medicationIDs(ctx) {
		if err != nil {
			return nil, err
		}
		if ctx.Err() != nil {
			return result, shared.WrapDomainError(shared.CodeTransient, "reconcile interrupted", ctx.Err())
		}
		ok, err := r.reconcileOne(ctx, id, result)
		if err != nil {
			// one medication failing must not block the others
			r.logger.Error("reconcile failed for medication",
				zap.String("medication_id", id.String()), zap.Error(err))
			result.Skipped = append(result.Skipped, id)
			continue
		}
		if !ok {
			result.Skipped = append(result.Skipped, id)
		}
	}
	return result, nil
}

func (r *Reconciler) reconcileOne(ctx context.Context, medicationID uuid.UUID, result *ReconcileResult) (bool, error) {
	release, ok, err := r.guard.TryAcquire(ctx, medicationID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	defer release()

	started := r.now()
	synced, failed := 0, 0
	status := inventory.MovementStatusPending
	pending := pageMovements(ctx, r.movements, inventory.MovementFilter{
		MedicationID: &medicationID,
		Status:       &status,
	}, r.pageSize)

	for m, err := range pending {
		if err != nil {
			return true, err
		}
		if failure := r.replay(ctx, &m); failure != nil {
			failed++
			result.Errored = append(result.Errored, *failure)
			continue
		}
		synced++
		result.Synchronized = append(result.Synchronized, m.ID)
	}

	record, err := r.align(ctx, medicationID, synced > 0 || failed > 0)
	if err != nil {
		return true, err
	}
	result.Records = append(result.Records, ToSyncRecordResponse(record))

	r.recorder.ReconcileFinished(ctx, medicationID, synced, failed, r.now().Sub(started))
	if synced > 0 || failed > 0 {
		r.logger.Info("medication reconciled",
			zap.String("medication_id", medicationID.String()),
			zap.Int("synchronized", synced),
			zap.Int("errored", failed),
			zap.String("status", record.Status.String()))
		publish(ctx, r.eventPublisher, inventory.NewReconcileCompletedEvent(record, synced, failed))
	}
	return true, nil
}

// replay applies one pending entry if it has not reached the lots yet and
// marks it synchronized. Domain failures park the entry in error.
func (r *Reconciler) replay(ctx context.Context, m *inventory.StockMovement) *MovementFailure {
	now := r.now()
	var lotEvents []shared.DomainEvent

	err := r.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if !m.LotApplied {
			events, err := applyMovement(ctx, repos, m, m.ActorID, now)
			if err != nil {
				return err
			}
			m.MarkApplied(nil)
			if err := repos.Movements().MarkApplied(ctx, m); err != nil {
				return err
			}
			lotEvents = events
		}
		if _, err := m.MarkSynchronized(now); err != nil {
			return err
		}
		return repos.Movements().UpdateStatus(ctx, m, inventory.MovementStatusPending)
	})
	if err == nil {
		publish(ctx, r.eventPublisher, lotEvents...)
		publishAggregate(ctx, r.eventPublisher, m)
		return nil
	}

	failure := &MovementFailure{
		MovementID:   m.ID,
		MedicationID: m.MedicationID,
		Code:         shared.CodeOf(err),
		Message:      err.Error(),
	}
	r.logger.Warn("movement replay failed",
		zap.String("movement_id", m.ID.String()),
		zap.String("medication_id", m.MedicationID.String()),
		zap.String("code", failure.Code),
		zap.Error(err))

	if !parkable(err) {
		return failure
	}

	// the transaction rolled back; reload so the status write starts from the stored row
	stored, loadErr := r.movements.FindByID(ctx, m.ID)
	if loadErr != nil {
		r.logger.Error("reload of failed movement", zap.String("movement_id", m.ID.String()), zap.Error(loadErr))
		return failure
	}
	if markErr := stored.MarkErrored(err.Error()); markErr != nil {
		return failure
	}
	if saveErr := r.movements.UpdateStatus(ctx, stored, inventory.MovementStatusPending); saveErr != nil {
		r.logger.Error("could not park movement in error", zap.String("movement_id", m.ID.String()), zap.Error(saveErr))
		return failure
	}
	publishAggregate(ctx, r.eventPublisher, stored)
	return failure
}

// parkable reports whether a replay failure is a property of the entry itself
// rather than of the infrastructure, so retrying later would not help.
func parkable(err error) bool {
	var de *shared.DomainError
	if !errors.As(err, &de) {
		return false
	}
	switch de.Code {
	case shared.CodeInsufficientStock, shared.CodeInvalidState, shared.CodeValidation,
		shared.CodeNotFound, shared.CodeForeignKey:
		return true
	}
	return false
}

// align brings the reported per-store totals in line with the lots. Counters
// already in line are left alone so an idle pass changes nothing.
func (r *Reconciler) align(ctx context.Context, medicationID uuid.UUID, touched bool) (inventory.SynchronizationRecord, error) {
	record, err := r.computeRecord(ctx, medicationID, false)
	if err != nil {
		return record, err
	}
	if !touched && record.WholesaleDivergence.IsZero() && record.RetailDivergence.IsZero() {
		return record, nil
	}

	expected := inventory.StoreTotals{
		inventory.StoreWholesale: record.WholesaleQuantity,
		inventory.StoreRetail:    record.RetailQuantity,
	}
	if err := r.levels.Align(ctx, medicationID, expected, r.now()); err != nil {
		return record, err
	}
	return r.computeRecord(ctx, medicationID, false)
}

// SyncRecord computes the current SynchronizationRecord of one medication
func (r *Reconciler) SyncRecord(ctx context.Context, medicationID uuid.UUID) (*SyncRecordResponse, error) {
	if _, err := r.medications.FindByID(ctx, medicationID); err != nil {
		return nil, err
	}
	record, err := r.computeRecord(ctx, medicationID, true)
	if err != nil {
		return nil, err
	}
	resp := ToSyncRecordResponse(record)
	return &resp, nil
}

// DivergenceReport yields a record for every medication whose stores diverge
// or that still has entries waiting or in error. It only reads.
func (r *Reconciler) DivergenceReport(ctx context.Context) iter.Seq2[inventory.SynchronizationRecord, error] {
	return func(yield func(inventory.SynchronizationRecord, error) bool) {
		for id, err := range r.medicationIDs(ctx) {
			if err != nil {
				yield(inventory.SynchronizationRecord{}, err)
				return
			}
			record, err := r.computeRecord(ctx, id, true)
			if err != nil {
				yield(inventory.SynchronizationRecord{}, err)
				return
			}
			if !record.NeedsAttention() && record.Status != inventory.SyncStatusReconciling {
				continue
			}
			if !yield(record, nil) {
				return
			}
		}
	}
}

func (r *Reconciler) computeRecord(ctx context.Context, medicationID uuid.UUID, checkGuard bool) (inventory.SynchronizationRecord, error) {
	expected, err := r.lots.SumByStore(ctx, medicationID)
	if err != nil {
		return inventory.SynchronizationRecord{}, err
	}
	levels, err := r.levels.FindByMedication(ctx, medicationID)
	if err != nil {
		return inventory.SynchronizationRecord{}, err
	}
	pending, err := r.movements.CountByStatus(ctx, medicationID, inventory.MovementStatusPending)
	if err != nil {
		return inventory.SynchronizationRecord{}, err
	}
	errored, err := r.movements.CountByStatus(ctx, medicationID, inventory.MovementStatusError)
	if err != nil {
		return inventory.SynchronizationRecord{}, err
	}
	reported, lastSync := inventory.LevelsToTotals(levels)

	return inventory.ComputeSyncRecord(inventory.SyncInputs{
		MedicationID:       medicationID,
		Expected:           expected,
		Reported:           reported,
		PendingCount:       pending,
		ErroredCount:       errored,
		LastSynchronizedAt: lastSync,
		Reconciling:        checkGuard && r.guard.IsHeld(ctx, medicationID),
	}), nil
}

// medicationIDs walks the catalog by ID pages, a fresh query per page
func (r *Reconciler) medicationIDs(ctx context.Context) iter.Seq2[uuid.UUID, error] {
	return func(yield func(uuid.UUID, error) bool) {
		after := uuid.Nil
		for {
			ids, err := r.medications.FindIDsAfter(ctx, after, r.pageSize)
			if err != nil {
				yield(uuid.Nil, err)
				return
			}
			for _, id := range ids {
				if !yield(id, nil) {
					return
				}
			}
			if len(ids) < r.pageSize {
				return
			}
			after = ids[len(ids)-1]
		}
	}
}

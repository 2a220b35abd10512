package inventory

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/clinic/pharmacy/internal/domain/inventory"
	"github.com/clinic/pharmacy/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memoryStore backs the in-memory repositories used by the service tests
type memoryStore struct {
	mu          sync.Mutex
	medications map[uuid.UUID]inventory.Medication
	lots        map[uuid.UUID]inventory.Lot
	movements   map[uuid.UUID]inventory.StockMovement
	levels      map[uuid.UUID]map[inventory.Store]inventory.StoreStockLevel
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		medications: make(map[uuid.UUID]inventory.Medication),
		lots:        make(map[uuid.UUID]inventory.Lot),
		movements:   make(map[uuid.UUID]inventory.StockMovement),
		levels:      make(map[uuid.UUID]map[inventory.Store]inventory.StoreStockLevel),
	}
}

func (s *memoryStore) scope() *NoOpTransactionScope {
	return NewNoOpTransactionScope(&memMedications{s}, &memLots{s}, &memMovements{s}, &memLevels{s})
}

type memMedications struct{ s *memoryStore }

func (r *memMedications) FindByID(_ context.Context, id uuid.UUID) (*inventory.Medication, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.medications[id]
	if !ok {
		return nil, shared.NewNotFoundError("medication", id)
	}
	return &m, nil
}

func (r *memMedications) FindByCode(_ context.Context, code string) (*inventory.Medication, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.medications {
		if m.Code == code {
			return &m, nil
		}
	}
	return nil, shared.NewNotFoundError("medication", code)
}

func (r *memMedications) FindAll(_ context.Context, _ shared.Filter) ([]inventory.Medication, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]inventory.Medication, 0, len(r.s.medications))
	for _, m := range r.s.medications {
		out = append(out, m)
	}
	return out, int64(len(out)), nil
}

func (r *memMedications) FindIDsAfter(_ context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := make([]uuid.UUID, 0)
	for id, m := range r.s.medications {
		if !m.IsArchived() && bytes.Compare(id[:], after[:]) > 0 {
			ids = append(ids, id)
		}
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (r *memMedications) LastCodeSequence(_ context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	last := 0
	for _, m := range r.s.medications {
		var n int
		if _, err := fmt.Sscanf(m.Code, "MED-%d", &n); err == nil && n > last {
			last = n
		}
	}
	return last, nil
}

func (r *memMedications) Save(_ context.Context, m *inventory.Medication) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, existing := range r.s.medications {
		if id != m.ID && existing.Code == m.Code {
			return shared.NewDomainError(shared.CodeDuplicateKey, "duplicate code")
		}
	}
	r.s.medications[m.ID] = *m
	return nil
}

func (r *memMedications) SaveWithLock(_ context.Context, m *inventory.Medication) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.medications[m.ID]
	if !ok || existing.Version != m.Version-1 {
		return shared.NewConcurrentModificationError("medication", m.ID)
	}
	r.s.medications[m.ID] = *m
	return nil
}

type memLots struct{ s *memoryStore }

func (r *memLots) FindByID(_ context.Context, id uuid.UUID) (*inventory.Lot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.lots[id]
	if !ok {
		return nil, shared.NewNotFoundError("lot", id)
	}
	return &l, nil
}

func (r *memLots) FindByMedication(_ context.Context, medicationID uuid.UUID, store *inventory.Store) ([]inventory.Lot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]inventory.Lot, 0)
	for _, l := range r.s.lots {
		if l.MedicationID == medicationID && (store == nil || l.Store == *store) {
			out = append(out, l)
		}
	}
	slices.SortFunc(out, func(a, b inventory.Lot) int { return a.ExpiryDate.Compare(b.ExpiryDate) })
	return out, nil
}

func (r *memLots) FindByNumber(_ context.Context, medicationID uuid.UUID, lotNumber string, store inventory.Store) (*inventory.Lot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, l := range r.s.lots {
		if l.MedicationID == medicationID && l.LotNumber == lotNumber && l.Store == store {
			return &l, nil
		}
	}
	return nil, shared.NewNotFoundError("lot", lotNumber)
}

func (r *memLots) FindExpiring(_ context.Context, cutoff time.Time) ([]inventory.Lot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]inventory.Lot, 0)
	for _, l := range r.s.lots {
		if l.Status == inventory.LotStatusActive && l.ExpiryDate.Before(cutoff) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *memLots) FindAll(_ context.Context, _ shared.Filter) ([]inventory.Lot, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]inventory.Lot, 0, len(r.s.lots))
	for _, l := range r.s.lots {
		out = append(out, l)
	}
	slices.SortFunc(out, func(a, b inventory.Lot) int { return a.ExpiryDate.Compare(b.ExpiryDate) })
	return out, int64(len(out)), nil
}

func (r *memLots) Create(_ context.Context, lot *inventory.Lot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.lots[lot.ID] = *lot
	return nil
}

func (r *memLots) mutate(id uuid.UUID, fn func(l *inventory.Lot) error) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.lots[id]
	if !ok {
		return shared.NewNotFoundError("lot", id)
	}
	if err := fn(&l); err != nil {
		return err
	}
	r.s.lots[id] = l
	return nil
}

func (r *memLots) Withdraw(_ context.Context, id uuid.UUID, qty decimal.Decimal) error {
	return r.mutate(id, func(l *inventory.Lot) error { return l.Withdraw(qty) })
}

func (r *memLots) Restock(_ context.Context, id uuid.UUID, qty decimal.Decimal) error {
	return r.mutate(id, func(l *inventory.Lot) error { return l.Restock(qty) })
}

func (r *memLots) Absorb(_ context.Context, id uuid.UUID, qty decimal.Decimal) error {
	return r.mutate(id, func(l *inventory.Lot) error { return l.Absorb(qty) })
}

func (r *memLots) UpdateStatus(_ context.Context, id uuid.UUID, status inventory.LotStatus) error {
	return r.mutate(id, func(l *inventory.Lot) error { l.Status = status; return nil })
}

func (r *memLots) SumByStore(_ context.Context, medicationID uuid.UUID) (inventory.StoreTotals, error) {
	lots, _ := r.FindByMedication(context.Background(), medicationID, nil)
	return inventory.SumLots(lots), nil
}

type memMovements struct{ s *memoryStore }

func (r *memMovements) FindByID(_ context.Context, id uuid.UUID) (*inventory.StockMovement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.movements[id]
	if !ok {
		return nil, shared.NewNotFoundError("stock movement", id)
	}
	return &m, nil
}

func (r *memMovements) Create(_ context.Context, m *inventory.StockMovement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored := *m
	stored.ClearDomainEvents()
	r.s.movements[m.ID] = stored
	return nil
}

func (r *memMovements) matching(filter inventory.MovementFilter) []inventory.StockMovement {
	out := make([]inventory.StockMovement, 0)
	for _, m := range r.s.movements {
		if filter.MedicationID != nil && m.MedicationID != *filter.MedicationID {
			continue
		}
		if filter.Status != nil && m.Status != *filter.Status {
			continue
		}
		if filter.Type != nil && m.Type != *filter.Type {
			continue
		}
		if filter.LotID != nil && (m.LotID == nil || *m.LotID != *filter.LotID) {
			continue
		}
		out = append(out, m)
	}
	slices.SortFunc(out, compareLedger)
	return out
}

func compareLedger(a, b inventory.StockMovement) int {
	if c := a.RecordedAt.Compare(b.RecordedAt); c != 0 {
		return c
	}
	return bytes.Compare(a.ID[:], b.ID[:])
}

func (r *memMovements) FindPage(_ context.Context, filter inventory.MovementFilter, after *inventory.MovementCursor, limit int) ([]inventory.StockMovement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]inventory.StockMovement, 0)
	for _, m := range r.matching(filter) {
		if after != nil && compareLedger(m, inventory.StockMovement{
			BaseAggregateRoot: shared.BaseAggregateRoot{BaseEntity: shared.BaseEntity{ID: after.ID}},
			RecordedAt:        after.RecordedAt,
		}) <= 0 {
			continue
		}
		out = append(out, m)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memMovements) FindAll(_ context.Context, filter inventory.MovementFilter, _ shared.Filter) ([]inventory.StockMovement, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := r.matching(filter)
	return out, int64(len(out)), nil
}

func (r *memMovements) CountByStatus(_ context.Context, medicationID uuid.UUID, status inventory.MovementStatus) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.matching(inventory.MovementFilter{MedicationID: &medicationID, Status: &status}))), nil
}

func (r *memMovements) MedicationsWithStatus(_ context.Context, status inventory.MovementStatus) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := make(map[uuid.UUID]struct{})
	out := make([]uuid.UUID, 0)
	for _, m := range r.matching(inventory.MovementFilter{Status: &status}) {
		if _, ok := seen[m.MedicationID]; !ok {
			seen[m.MedicationID] = struct{}{}
			out = append(out, m.MedicationID)
		}
	}
	return out, nil
}

func (r *memMovements) UpdateStatus(_ context.Context, m *inventory.StockMovement, from inventory.MovementStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.movements[m.ID]
	if !ok || stored.Status != from {
		return shared.NewConcurrentModificationError("stock movement", m.ID)
	}
	stored.Status = m.Status
	stored.ErrorMessage = m.ErrorMessage
	stored.SynchronizedAt = m.SynchronizedAt
	r.s.movements[m.ID] = stored
	return nil
}

func (r *memMovements) MarkApplied(_ context.Context, m *inventory.StockMovement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored := r.s.movements[m.ID]
	stored.LotApplied = m.LotApplied
	stored.DestinationLotID = m.DestinationLotID
	r.s.movements[m.ID] = stored
	return nil
}

type memLevels struct{ s *memoryStore }

func (r *memLevels) FindByMedication(_ context.Context, medicationID uuid.UUID) ([]inventory.StoreStockLevel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]inventory.StoreStockLevel, 0)
	for _, lvl := range r.s.levels[medicationID] {
		out = append(out, lvl)
	}
	return out, nil
}

func (r *memLevels) Align(_ context.Context, medicationID uuid.UUID, totals inventory.StoreTotals, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.levels[medicationID] == nil {
		r.s.levels[medicationID] = make(map[inventory.Store]inventory.StoreStockLevel)
	}
	for _, store := range inventory.AllStores() {
		lvl := r.s.levels[medicationID][store]
		lvl.MedicationID = medicationID
		lvl.Store = store
		lvl.Quantity = totals.Get(store)
		lvl.LastSynchronizedAt = &at
		lvl.Version++
		r.s.levels[medicationID][store] = lvl
	}
	return nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *capturePublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *capturePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

type memStockCounts struct {
	mu sync.Mutex
	m  map[uuid.UUID]inventory.StockCount
}

func newMemStockCounts() *memStockCounts {
	return &memStockCounts{m: make(map[uuid.UUID]inventory.StockCount)}
}

func storedCount(c *inventory.StockCount) inventory.StockCount {
	out := *c
	out.Lines = slices.Clone(c.Lines)
	out.ClearDomainEvents()
	return out
}

func (r *memStockCounts) FindByID(_ context.Context, id uuid.UUID) (*inventory.StockCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.m[id]
	if !ok {
		return nil, shared.NewNotFoundError("stock count", id)
	}
	out := storedCount(&c)
	return &out, nil
}

func (r *memStockCounts) FindAll(_ context.Context, filter shared.Filter) ([]inventory.StockCount, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]inventory.StockCount, 0, len(r.m))
	for _, c := range r.m {
		if st, ok := filter.Filters["status"]; ok && c.Status.String() != st {
			continue
		}
		if store, ok := filter.Filters["store"]; ok && c.Store.String() != store {
			continue
		}
		out = append(out, storedCount(&c))
	}
	return out, int64(len(out)), nil
}

func (r *memStockCounts) LastSequence(_ context.Context, year int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	last := 0
	prefix := fmt.Sprintf("INV-%d-", year)
	for _, c := range r.m {
		if n, ok := inventory.ParseCountSequence(c.CountNumber); ok && strings.HasPrefix(c.CountNumber, prefix) && n > last {
			last = n
		}
	}
	return last, nil
}

func (r *memStockCounts) Create(_ context.Context, c *inventory.StockCount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.m {
		if existing.CountNumber == c.CountNumber {
			return shared.NewDomainError(shared.CodeDuplicateKey, "duplicate count number")
		}
	}
	r.m[c.ID] = storedCount(c)
	return nil
}

func (r *memStockCounts) SaveWithLock(_ context.Context, c *inventory.StockCount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.m[c.ID]
	if !ok || stored.Version != c.Version-1 {
		return shared.NewConcurrentModificationError("stock count", c.ID)
	}
	r.m[c.ID] = storedCount(c)
	return nil
}

package purchasing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/clinic/pharmacy/internal/domain/inventory"
	"github.com/clinic/pharmacy/internal/domain/purchasing"
	"github.com/clinic/pharmacy/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type memOrders struct {
	mu          sync.Mutex
	rows        map[uuid.UUID]purchasing.SupplierOrder
	collisions  int
	linesErr    error
	deletedIDs  []uuid.UUID
	headerCalls int
}

func newMemOrders() *memOrders {
	return &memOrders{rows: map[uuid.UUID]purchasing.SupplierOrder{}}
}

func cloneOrder(o purchasing.SupplierOrder) purchasing.SupplierOrder {
	o.Lines = append([]purchasing.OrderLine(nil), o.Lines...)
	return o
}

func (r *memOrders) FindByID(_ context.Context, id uuid.UUID) (*purchasing.SupplierOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.rows[id]
	if !ok {
		return nil, shared.NewNotFoundError("supplier order", id.String())
	}
	c := cloneOrder(o)
	return &c, nil
}

func (r *memOrders) FindAll(_ context.Context, filter shared.Filter) ([]purchasing.SupplierOrder, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []purchasing.SupplierOrder{}
	for _, o := range r.rows {
		if st, ok := filter.Filters["status"]; ok && o.Status.String() != st {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	return out, int64(len(out)), nil
}

func (r *memOrders) LastSequence(_ context.Context, year int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	last := 0
	for _, o := range r.rows {
		if n, ok := purchasing.ParseOrderSequence(o.OrderNumber); ok && strings.HasPrefix(o.OrderNumber, fmt.Sprintf("CF-%d-", year)) && n > last {
			last = n
		}
	}
	return last, nil
}

func (r *memOrders) CreateHeader(_ context.Context, o *purchasing.SupplierOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.headerCalls++
	if r.collisions > 0 {
		r.collisions--
		return shared.NewDomainError(shared.CodeDuplicateKey, "order number taken")
	}
	for _, existing := range r.rows {
		if existing.OrderNumber == o.OrderNumber {
			return shared.NewDomainError(shared.CodeDuplicateKey, "order number taken")
		}
	}
	header := *o
	header.Lines = nil
	r.rows[o.ID] = header
	return nil
}

func (r *memOrders) CreateLines(_ context.Context, o *purchasing.SupplierOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.linesErr != nil {
		return r.linesErr
	}
	stored := r.rows[o.ID]
	stored.Lines = append([]purchasing.OrderLine(nil), o.Lines...)
	r.rows[o.ID] = stored
	return nil
}

func (r *memOrders) DeleteHeader(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, id)
	r.deletedIDs = append(r.deletedIDs, id)
	return nil
}

func (r *memOrders) SaveWithLock(_ context.Context, o *purchasing.SupplierOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.rows[o.ID]
	if !ok {
		return shared.NewNotFoundError("supplier order", o.ID.String())
	}
	if stored.Version != o.Version-1 {
		return shared.NewConcurrentModificationError("supplier order", o.ID.String())
	}
	r.rows[o.ID] = cloneOrder(*o)
	return nil
}

type memSuppliers struct {
	rows map[uuid.UUID]purchasing.Supplier
}

func newMemSuppliers(suppliers ...*purchasing.Supplier) *memSuppliers {
	r := &memSuppliers{rows: map[uuid.UUID]purchasing.Supplier{}}
	for _, s := range suppliers {
		r.rows[s.ID] = *s
	}
	return r
}

func (r *memSuppliers) FindByID(_ context.Context, id uuid.UUID) (*purchasing.Supplier, error) {
	s, ok := r.rows[id]
	if !ok {
		return nil, shared.NewNotFoundError("supplier", id.String())
	}
	return &s, nil
}

func (r *memSuppliers) FindAll(_ context.Context, _ shared.Filter) ([]purchasing.Supplier, error) {
	out := make([]purchasing.Supplier, 0, len(r.rows))
	for _, s := range r.rows {
		out = append(out, s)
	}
	return out, nil
}

func (r *memSuppliers) Save(_ context.Context, s *purchasing.Supplier) error {
	r.rows[s.ID] = *s
	return nil
}

func (r *memSuppliers) ExistsByID(_ context.Context, id uuid.UUID) (bool, error) {
	_, ok := r.rows[id]
	return ok, nil
}

type memMedications struct {
	inventory.MedicationRepository
	rows map[uuid.UUID]inventory.Medication
}

func (r *memMedications) FindByID(_ context.Context, id uuid.UUID) (*inventory.Medication, error) {
	m, ok := r.rows[id]
	if !ok {
		return nil, shared.NewNotFoundError("medication", id.String())
	}
	return &m, nil
}

type memLots struct {
	inventory.LotRepository
	rows      map[uuid.UUID]*inventory.Lot
	createErr error
}

func (r *memLots) FindByNumber(_ context.Context, medicationID uuid.UUID, number string, store inventory.Store) (*inventory.Lot, error) {
	for _, l := range r.rows {
		if l.MedicationID == medicationID && l.LotNumber == number && l.Store == store {
			c := *l
			return &c, nil
		}
	}
	return nil, shared.NewNotFoundError("lot", number)
}

func (r *memLots) Create(_ context.Context, lot *inventory.Lot) error {
	if r.createErr != nil {
		return r.createErr
	}
	c := *lot
	r.rows[lot.ID] = &c
	return nil
}

func (r *memLots) Absorb(_ context.Context, id uuid.UUID, qty decimal.Decimal) error {
	l := r.rows[id]
	l.QuantityAvailable = l.QuantityAvailable.Add(qty)
	l.QuantityInitial = l.QuantityInitial.Add(qty)
	return nil
}

type memMovements struct {
	inventory.MovementRepository
	rows []inventory.StockMovement
}

func (r *memMovements) Create(_ context.Context, m *inventory.StockMovement) error {
	r.rows = append(r.rows, *m)
	return nil
}

type capturePublisher struct {
	events []shared.DomainEvent
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.events = append(p.events, events...)
	return p.err
}

func (p *capturePublisher) types() []string {
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

type memDocuments struct {
	objects map[string][]byte
}

func (d *memDocuments) Put(_ context.Context, key string, body []byte, _ string) error {
	d.objects[key] = body
	return nil
}

func (d *memDocuments) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	return "https://docs.example.test/" + key + "?ttl=" + ttl.String(), nil
}

package inventory

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// ReconcileGuard keeps two reconcile passes off the same medication
type ReconcileGuard interface {
	// TryAcquire takes the guard for medicationID. ok is false when another
	// pass holds it. release must be called once when ok is true.
	TryAcquire(ctx context.Context, medicationID uuid.UUID) (release func(), ok bool, err error)
	// IsHeld reports whether a pass is running for medicationID
	IsHeld(ctx context.Context, medicationID uuid.UUID) bool
}

// LocalGuard is a process-local ReconcileGuard
type LocalGuard struct {
	mu   sync.Mutex
	held map[uuid.UUID]struct{}
}

// NewLocalGuard creates a LocalGuard
func NewLocalGuard() *LocalGuard {
	return &LocalGuard{held: make(map[uuid.UUID]struct{})}
}

// TryAcquire implements ReconcileGuard
func (g *LocalGuard) TryAcquire(_ context.Context, medicationID uuid.UUID) (func(), bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.held[medicationID]; busy {
		return nil, false, nil
	}
	g.held[medicationID] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, medicationID)
			g.mu.Unlock()
		})
	}, true, nil
}

// IsHeld implements ReconcileGuard
func (g *LocalGuard) IsHeld(_ context.Context, medicationID uuid.UUID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.held[medicationID]
	return busy
}

var _ ReconcileGuard = (*LocalGuard)(nil)

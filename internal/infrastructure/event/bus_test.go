package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/clinic/pharmacy/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEvent struct {
	shared.BaseDomainEvent
	Data string `json:"data"`
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "Lot", uuid.New(), "pharmacist-1"),
		Data:            "payload",
	}
}

type recordingHandler struct {
	types   []string
	mu      sync.Mutex
	handled []shared.DomainEvent
	err     error
	panics  bool
}

func (h *recordingHandler) Handle(_ context.Context, ev shared.DomainEvent) error {
	if h.panics {
		panic("boom")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, ev)
	return h.err
}

func (h *recordingHandler) EventTypes() []string { return h.types }

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("routes by type", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		lots := &recordingHandler{types: []string{"LotCreated"}}
		moves := &recordingHandler{types: []string{"MovementRecorded"}}
		bus.Subscribe(lots)
		bus.Subscribe(moves)

		require.NoError(t, bus.Publish(ctx, newTestEvent("LotCreated"), newTestEvent("LotCreated")))
		assert.Equal(t, 2, lots.count())
		assert.Zero(t, moves.count())
	})

	t.Run("wildcard receives everything", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		all := &recordingHandler{}
		bus.Subscribe(all)

		require.NoError(t, bus.Publish(ctx, newTestEvent("LotCreated"), newTestEvent("MovementErrored")))
		assert.Equal(t, 2, all.count())
	})

	t.Run("explicit types override the handler's", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		h := &recordingHandler{types: []string{"LotCreated"}}
		bus.Subscribe(h, "LotExpired")

		require.NoError(t, bus.Publish(ctx, newTestEvent("LotCreated"), newTestEvent("LotExpired")))
		assert.Equal(t, 1, h.count())
	})

	t.Run("failing and panicking handlers do not stop delivery", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		bus.Subscribe(&recordingHandler{types: []string{"X"}, err: errors.New("down")})
		bus.Subscribe(&recordingHandler{types: []string{"X"}, panics: true})
		last := &recordingHandler{types: []string{"X"}}
		bus.Subscribe(last)

		require.NoError(t, bus.Publish(ctx, newTestEvent("X")))
		assert.Equal(t, 1, last.count())
		assert.Equal(t, int64(2), bus.Failures())
	})

	t.Run("stopped bus drops events", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		h := &recordingHandler{}
		bus.Subscribe(h)
		require.NoError(t, bus.Stop(ctx))
		require.NoError(t, bus.Publish(ctx, newTestEvent("X")))
		assert.Zero(t, h.count())

		require.NoError(t, bus.Start(ctx))
		require.NoError(t, bus.Publish(ctx, newTestEvent("X")))
		assert.Equal(t, 1, h.count())
	})
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	h := &recordingHandler{types: []string{"A", "B"}}
	bus.Subscribe(h)
	bus.Unsubscribe(h)

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("A"), newTestEvent("B")))
	assert.Zero(t, h.count())
	assert.Empty(t, bus.registry.Handlers("A"))
}

func TestHandlerRegistry_Handlers(t *testing.T) {
	r := NewHandlerRegistry()
	typed := &recordingHandler{}
	wild := &recordingHandler{}
	r.Register(typed, "LotCreated")
	r.Register(wild)

	hs := r.Handlers("LotCreated")
	require.Len(t, hs, 2)
	assert.Same(t, typed, hs[0])
	assert.Same(t, wild, hs[1])
	assert.Len(t, r.Handlers("Other"), 1)
}

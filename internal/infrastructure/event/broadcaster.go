package event

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/clinic/pharmacy/internal/domain/shared"
	"go.uber.org/zap"
)

const defaultSubscriberBuffer = 32

// Notification is the refresh message pushed to stream subscribers. Clients
// re-query the resource named by AggregateType/AggregateID.
type Notification struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// Broadcaster fans events out to live stream subscribers. It is a wildcard
// event handler; slow subscribers lose notifications rather than stall the bus.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[uint64]chan Notification
	nextID uint64
	buffer int
	logger *zap.Logger
}

// NewBroadcaster creates a Broadcaster whose subscribers buffer up to buffer messages
func NewBroadcaster(buffer int, logger *zap.Logger) *Broadcaster {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{subs: make(map[uint64]chan Notification), buffer: buffer, logger: logger}
}

// EventTypes is empty: the stream carries every event
func (b *Broadcaster) EventTypes() []string { return nil }

// Handle converts ev and offers it to every subscriber without blocking
func (b *Broadcaster) Handle(_ context.Context, ev shared.DomainEvent) error {
	n := Notification{
		ID:            ev.EventID().String(),
		Type:          ev.EventType(),
		AggregateType: ev.AggregateType(),
		AggregateID:   ev.AggregateID().String(),
		OccurredAt:    ev.OccurredAt(),
	}
	if payload, err := json.Marshal(ev); err == nil {
		n.Payload = payload
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- n:
		default:
			b.logger.Warn("stream subscriber lagging, notification dropped",
				zap.Uint64("subscriber", id), zap.String("event_type", n.Type))
		}
	}
	return nil
}

// Subscribe registers a subscriber until ctx ends or cancel is called
func (b *Broadcaster) Subscribe(ctx context.Context) (<-chan Notification, func()) {
	ch := make(chan Notification, b.buffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	stop := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(stop)
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-stop:
		}
	}()
	return ch, cancel
}

// Subscribers returns the number of live subscribers
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

var _ shared.EventHandler = (*Broadcaster)(nil)

package event

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBroadcaster_FanOut(t *testing.T) {
	b := NewBroadcaster(4, zap.NewNop())
	ctx := context.Background()

	first, cancelFirst := b.Subscribe(ctx)
	defer cancelFirst()
	second, cancelSecond := b.Subscribe(ctx)
	defer cancelSecond()
	assert.Equal(t, 2, b.Subscribers())

	ev := newTestEvent("MovementRecorded")
	require.NoError(t, b.Handle(ctx, ev))

	for _, ch := range []<-chan Notification{first, second} {
		select {
		case n := <-ch:
			assert.Equal(t, "MovementRecorded", n.Type)
			assert.Equal(t, ev.AggregateID().String(), n.AggregateID)
			var body map[string]any
			require.NoError(t, json.Unmarshal(n.Payload, &body))
			assert.Equal(t, "payload", body["data"])
		case <-time.After(time.Second):
			t.Fatal("notification not delivered")
		}
	}
}

func TestBroadcaster_SlowSubscriberDrops(t *testing.T) {
	b := NewBroadcaster(1, nil)
	ch, cancel := b.Subscribe(context.Background())
	defer cancel()

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Handle(context.Background(), newTestEvent("LotExpired")))
	}
	assert.Len(t, ch, 1)
}

func TestBroadcaster_ContextEndsSubscription(t *testing.T) {
	b := NewBroadcaster(1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := b.Subscribe(ctx)
	cancel()

	select {
	case _, open := <-ch:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
	assert.Eventually(t, func() bool { return b.Subscribers() == 0 }, time.Second, 10*time.Millisecond)
}

func TestBroadcaster_CancelIsIdempotent(t *testing.T) {
	b := NewBroadcaster(1, nil)
	_, cancel := b.Subscribe(context.Background())
	cancel()
	cancel()
	assert.Zero(t, b.Subscribers())
	assert.NoError(t, b.Handle(context.Background(), newTestEvent("X")))
}

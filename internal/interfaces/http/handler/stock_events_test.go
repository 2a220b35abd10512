package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/clinic/pharmacy/internal/infrastructure/event"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	ch          chan event.Notification
	subscribers int
	subscribed  chan struct{}
}

func newFakeSource(buffer int) *fakeSource {
	return &fakeSource{ch: make(chan event.Notification, buffer), subscribed: make(chan struct{}, 1)}
}

func (f *fakeSource) Subscribe(context.Context) (<-chan event.Notification, func()) {
	f.subscribed <- struct{}{}
	return f.ch, func() {}
}

func (f *fakeSource) Subscribers() int { return f.subscribers }

func serveStream(h *StockEventsHandler) (*httptest.ResponseRecorder, <-chan struct{}) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/stock/events", nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Stream(c)
	}()
	return w, done
}

func TestStockEvents_StreamsNotifications(t *testing.T) {
	source := newFakeSource(1)
	source.ch <- event.Notification{ID: "evt-1", Type: "LotCreated", AggregateType: "Lot", AggregateID: "lot-1"}
	close(source.ch)

	h := NewStockEventsHandler(source, WithSSEHeartbeat(time.Hour))
	w, done := serveStream(h)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end after the source closed")
	}
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.Contains(t, body, "event: connected\n")
	assert.Contains(t, body, "event: LotCreated\nid: evt-1\n")
	assert.Contains(t, body, `"aggregate_id":"lot-1"`)
}

func TestStockEvents_StopEndsStreams(t *testing.T) {
	source := newFakeSource(0)
	h := NewStockEventsHandler(source, WithSSEHeartbeat(time.Hour))
	_, done := serveStream(h)

	<-source.subscribed
	h.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream still open after Stop")
	}
}

func TestStockEvents_MaxClients(t *testing.T) {
	source := newFakeSource(0)
	source.subscribers = 2
	h := NewStockEventsHandler(source, WithSSEMaxClients(2))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/stock/events", nil)
	h.Stream(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_MAX_CONNECTIONS")
	assert.Empty(t, source.subscribed)
}

func TestWriteEvent(t *testing.T) {
	var buf bytes.Buffer
	writeEvent(&buf, SSEMessage{Data: `{"a":1}`})
	require.Equal(t, "data: {\"a\":1}\n\n", buf.String())

	buf.Reset()
	writeEvent(&buf, SSEMessage{Event: "heartbeat", ID: "7", Data: "{}"})
	assert.Equal(t, "event: heartbeat\nid: 7\ndata: {}\n\n", buf.String())
}

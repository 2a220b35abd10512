package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/clinic/pharmacy/internal/infrastructure/event"
	"github.com/clinic/pharmacy/internal/interfaces/http/dto"
	"github.com/clinic/pharmacy/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NotificationSource hands out stream subscriptions
type NotificationSource interface {
	Subscribe(ctx context.Context) (<-chan event.Notification, func())
	Subscribers() int
}

// SSEMessage is one frame of the event stream
type SSEMessage struct {
	Event string
	Data  string
	ID    string
}

// StockEventsHandler streams stock and order changes to UIs so they re-query
// what changed instead of polling
type StockEventsHandler struct {
	BaseHandler
	source     NotificationSource
	logger     *zap.Logger
	ctx        context.Context
	cancel     context.CancelFunc
	heartbeat  time.Duration
	maxClients int
}

// StockEventsOption configures a StockEventsHandler
type StockEventsOption func(*StockEventsHandler)

// WithSSELogger sets the logger for the handler
func WithSSELogger(logger *zap.Logger) StockEventsOption {
	return func(h *StockEventsHandler) {
		h.logger = logger
	}
}

// WithSSEHeartbeat sets the heartbeat interval
func WithSSEHeartbeat(interval time.Duration) StockEventsOption {
	return func(h *StockEventsHandler) {
		h.heartbeat = interval
	}
}

// WithSSEMaxClients bounds concurrent streams; 0 means unbounded
func WithSSEMaxClients(max int) StockEventsOption {
	return func(h *StockEventsHandler) {
		h.maxClients = max
	}
}

// NewStockEventsHandler creates a StockEventsHandler reading from source
func NewStockEventsHandler(source NotificationSource, opts ...StockEventsOption) *StockEventsHandler {
	ctx, cancel := context.WithCancel(context.Background())
	h := &StockEventsHandler{
		source:     source,
		logger:     zap.NewNop(),
		ctx:        ctx,
		cancel:     cancel,
		heartbeat:  30 * time.Second,
		maxClients: 1000,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Stop ends every open stream, letting the HTTP server shut down
func (h *StockEventsHandler) Stop() {
	h.cancel()
}

// Stream godoc
// @Summary      Stock event stream
// @Description  Server-sent events announcing stock and order changes so clients re-query what changed
// @Tags         stock
// @Produce      text/event-stream
// @Success      200 {string} string "event stream"
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /stock/events [get]
func (h *StockEventsHandler) Stream(c *gin.Context) {
	if h.maxClients > 0 && h.source.Subscribers() >= h.maxClients {
		h.Error(c, dto.ErrCodeMaxConnections, "Maximum number of event streams reached")
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	stop := context.AfterFunc(h.ctx, cancel)
	defer stop()

	notifications, unsubscribe := h.source.Subscribe(ctx)
	defer unsubscribe()

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	log := h.logger.With(zap.String("request_id", middleware.GetRequestID(c)))
	log.Info("event stream opened", zap.String("user_id", middleware.GetActor(c)))
	defer log.Info("event stream closed")

	h.send(c, SSEMessage{
		Event: "connected",
		Data:  fmt.Sprintf(`{"timestamp":%d}`, time.Now().Unix()),
	})

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.send(c, SSEMessage{
				Event: "heartbeat",
				Data:  fmt.Sprintf(`{"timestamp":%d}`, time.Now().Unix()),
			})
		case n, ok := <-notifications:
			if !ok {
				return
			}
			data, err := json.Marshal(n)
			if err != nil {
				log.Error("failed to marshal notification", zap.Error(err))
				continue
			}
			h.send(c, SSEMessage{Event: n.Type, ID: n.ID, Data: string(data)})
		}
	}
}

func (h *StockEventsHandler) send(c *gin.Context, msg SSEMessage) {
	writeEvent(c.Writer, msg)
	c.Writer.Flush()
}

// writeEvent writes one frame in text/event-stream format
func writeEvent(w io.Writer, msg SSEMessage) {
	if msg.Event != "" {
		fmt.Fprintf(w, "event: %s\n", msg.Event)
	}
	if msg.ID != "" {
		fmt.Fprintf(w, "id: %s\n", msg.ID)
	}
	fmt.Fprintf(w, "data: %s\n\n", msg.Data)
}

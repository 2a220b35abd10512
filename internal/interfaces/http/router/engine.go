package router

import (
	"net/http"

	"github.com/clinic/pharmacy/internal/infrastructure/logger"
	"github.com/clinic/pharmacy/internal/interfaces/http/dto"
	"github.com/clinic/pharmacy/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// EngineConfig tunes the middleware chain
type EngineConfig struct {
	ServiceName    string
	Tracing        bool
	MaxBodySize    int64
	CORS           middleware.CORSConfig
	TrustedProxies []string
}

// NewEngine builds the gin engine with the middleware chain and the routes
// of handlers. Order matters: the request ID feeds the span, the span feeds
// the request logger, and the actor is read once the logger is in place.
func NewEngine(cfg EngineConfig, log *zap.Logger, handlers Handlers) (*gin.Engine, error) {
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}
	middleware.SetupValidator()

	engine.Use(
		middleware.RequestID(),
		middleware.Tracing(cfg.ServiceName, cfg.Tracing),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.Actor(),
		middleware.SpanEnricher(),
		middleware.Secure(),
		middleware.CORSWithConfig(cfg.CORS),
		middleware.BodyLimit(cfg.MaxBodySize),
	)
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeNotFound, "route not found", middleware.GetRequestID(c)))
	})

	NewRouter(engine).Register(handlers.Groups()...).Setup()
	return engine, nil
}

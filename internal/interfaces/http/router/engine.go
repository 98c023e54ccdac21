package router

import (
	"github.com/feerecon/backend/internal/infrastructure/logger"
	"github.com/feerecon/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// EngineConfig controls the middleware chain of the HTTP engine
type EngineConfig struct {
	ServiceName      string
	TracingEnabled   bool
	Meter            metric.Meter
	MaxBodySize      int64
	CORSAllowOrigins []string
	TrustedProxies   []string
}

// NewEngine builds a gin engine with the standard middleware chain:
// request ID, tracing, panic recovery, request logging, metrics, security
// headers, CORS and the body limit.
func NewEngine(cfg EngineConfig, log *zap.Logger) (*gin.Engine, error) {
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	cors := middleware.DefaultCORSConfig()
	if len(cfg.CORSAllowOrigins) > 0 {
		cors.AllowOrigins = cfg.CORSAllowOrigins
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Tracing(middleware.TracingConfig{ServiceName: cfg.ServiceName, Enabled: cfg.TracingEnabled}),
		middleware.SpanEnricher(),
		logger.Recovery(log),
		logger.GinMiddleware(log),
		middleware.HTTPMetrics(cfg.Meter, log),
		middleware.Secure(),
		middleware.CORS(cors),
	)
	if cfg.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.MaxBodySize))
	}
	return engine, nil
}

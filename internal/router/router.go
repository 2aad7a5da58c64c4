package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/vitalflow/internal/middleware"
	"github.com/jwalitptl/vitalflow/pkg/logger"
	"github.com/jwalitptl/vitalflow/pkg/metrics"
)

const APIPrefix = "/api/v1"

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type RouterConfig struct {
	Mode           string
	RateLimit      rate.Limit
	RateBurst      int
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	CORSConfig     middleware.CORSConfig
	ServiceName    string
}

type Router struct {
	engine      *gin.Engine
	serviceName string
}

// NewRouter builds the engine. Ops handlers (health, metrics) are mounted at
// the root without rate limiting; api handlers go under /api/v1.
func NewRouter(log *logger.Logger, m *metrics.Metrics, config RouterConfig, ops []Handler, api ...Handler) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	if config.ServiceName == "" {
		config.ServiceName = "vitalflow"
	}

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(log),
		middleware.Logger(log),
		middleware.Metrics(m),
		middleware.SecurityHeaders(),
		middleware.CORS(config.CORSConfig),
		middleware.ErrorHandler(),
	)

	root := engine.Group("")
	for _, h := range ops {
		h.RegisterRoutes(root)
	}

	apiGroup := engine.Group(APIPrefix)
	if config.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		apiGroup.Use(limiter.RateLimit())
	}
	if config.MaxBodyBytes > 0 {
		apiGroup.Use(middleware.SizeLimit(middleware.SizeLimitConfig{MaxBodySize: config.MaxBodyBytes}))
	}
	apiGroup.Use(middleware.Timeout(middleware.TimeoutConfig{Duration: config.RequestTimeout}))
	for _, h := range api {
		h.RegisterRoutes(apiGroup)
	}

	return &Router{engine: engine, serviceName: config.ServiceName}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// Handler wraps the engine in an otelhttp server span per request.
func (r *Router) Handler() http.Handler {
	return otelhttp.NewHandler(r.engine, r.serviceName)
}

package peer

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

// NewHandler builds the peer routes behind the configured middleware.
//
// Routes:
//   - GET /api/data: the contact list
//   - POST /api/data: multipart upload echo
//   - GET /resource: the resource list
//   - POST /resource: create a resource from a JSON body
//   - GET /livez and GET /readyz: probes, readiness runs cfg.ReadinessChecks
//   - GET /metrics: cfg.MetricsHandler, when set
//   - /debug/pprof/*: runtime profiles, when cfg.Profiling is set
//
// Trailing slashes are ignored. Unknown paths get 404 and unsupported methods
// 405, both as {"error": ...}.
func NewHandler(cfg Config) (http.Handler, error) {
	logger := cfg.Logger

	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	maxMemory := cfg.MaxUploadMemory
	if maxMemory <= 0 {
		maxMemory = defaultMaxUploadMemory
	}

	r := chi.NewRouter()
	r.Use(Recovery(logger), RequestID())

	if cfg.TracingConfig != nil {
		tracingCfg := *cfg.TracingConfig
		tracingCfg.serviceName = cfg.ServiceName
		r.Use(Tracing(tracingCfg))
	}

	var metrics *Metrics
	if cfg.MetricsConfig != nil {
		metricsCfg := *cfg.MetricsConfig
		metricsCfg.serviceName = cfg.ServiceName
		var err error
		if metrics, err = NewMetrics(metricsCfg); err != nil {
			return nil, fmt.Errorf("failed to create peer metrics: %w", err)
		}
		r.Use(metrics.Middleware(metricsCfg.SkipPaths...))
	}

	if cfg.LoggerConfig != nil {
		loggerCfg := *cfg.LoggerConfig
		loggerCfg.serviceName = cfg.ServiceName
		r.Use(Logger(loggerCfg))
	}

	r.Use(CORS(cfg.CORS))
	if cfg.RateLimitConfig != nil {
		r.Use(RateLimit(*cfg.RateLimitConfig))
	}
	r.Use(middleware.StripSlashes)

	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed(msgMethodNotAllowed))

	data := &dataHandler{
		uploads:   NewUploads(cfg.UploadDir),
		maxMemory: maxMemory,
		metrics:   metrics,
		logger:    logger,
	}
	r.Route("/api/data", func(r chi.Router) {
		r.Get("/", data.list)
		r.Post("/", data.upload)
		r.MethodNotAllowed(methodNotAllowed(msgMethodNotAllowed))
	})

	resources := &resourceHandler{
		store:    store,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
	r.Route("/resource", func(r chi.Router) {
		r.Get("/", resources.list)
		r.Post("/", resources.create)
		r.MethodNotAllowed(methodNotAllowed(msgResourceNotAllowed))
	})

	probes := newHealth(cfg.ServiceName, cfg.ReadinessChecks)
	r.Get("/livez", probes.live)
	r.Get("/readyz", probes.ready)

	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}
	if cfg.Profiling {
		r.Mount("/debug/pprof", profiler())
	}

	return r, nil
}

package peer

import (
	"maps"
	"net/http"

	"github.com/rs/zerolog"
)

// Option configures the peer.
type Option func(*Config)

// WithConfig replaces the whole configuration. Apply it first.
func WithConfig(cfg Config) Option {
	return func(c *Config) {
		*c = cfg
	}
}

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(c *Config) {
		c.Addr = addr
	}
}

// WithServiceName sets the name used by the tracing, metrics and logging
// middleware.
func WithServiceName(name string) Option {
	return func(c *Config) {
		c.ServiceName = name
	}
}

// WithLogger sets the lifecycle logger. For one log line per request use
// WithLogging.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithUploadDir sets where uploaded files are stored.
func WithUploadDir(dir string) Option {
	return func(c *Config) {
		c.UploadDir = dir
	}
}

// WithStore sets the store behind /resource.
func WithStore(s Store) Option {
	return func(c *Config) {
		c.Store = s
	}
}

// WithCORS replaces the CORS configuration.
func WithCORS(cfg CORSConfig) Option {
	return func(c *Config) {
		c.CORS = cfg
	}
}

// WithAllowedHeaders adds request headers to Access-Control-Allow-Headers,
// e.g. the default headers a browser client sends.
func WithAllowedHeaders(headers ...string) Option {
	return func(c *Config) {
		c.CORS = c.CORS.WithExtraHeaders(headers...)
	}
}

// WithMetricsHandler mounts h at GET /metrics.
//
//	provider, _ := telemetry.Setup(ctx, telemetry.Config{ServiceName: "ocho"})
//	srv, _ := peer.New(peer.WithMetricsHandler(provider.MetricsHandler()))
func WithMetricsHandler(h http.Handler) Option {
	return func(c *Config) {
		c.MetricsHandler = h
	}
}

// WithReadinessCheck adds a dependency check to GET /readyz.
//
//	peer.WithReadinessCheck("database", db.PingContext)
func WithReadinessCheck(name string, check HealthCheck) Option {
	return func(c *Config) {
		checks := maps.Clone(c.ReadinessChecks)
		if checks == nil {
			checks = make(map[string]HealthCheck, 1)
		}
		checks[name] = check
		c.ReadinessChecks = checks
	}
}

// WithTracing enables the tracing middleware.
func WithTracing(cfg TracingConfig) Option {
	return func(c *Config) {
		c.TracingConfig = &cfg
	}
}

// WithMetrics enables the metrics middleware and the upload counter.
func WithMetrics(cfg MetricsConfig) Option {
	return func(c *Config) {
		c.MetricsConfig = &cfg
	}
}

// WithLogging enables the request-log middleware.
func WithLogging(cfg LoggerConfig) Option {
	return func(c *Config) {
		c.LoggerConfig = &cfg
	}
}

// WithRateLimit enables rate limiting on every route.
//
//	srv, _ := peer.New(peer.WithRateLimit(peer.RateLimitConfig{
//	    Limit:   50,
//	    Burst:   100,
//	    KeyFunc: peer.KeyFuncByIP(),
//	    Redis:   rdb,
//	}))
func WithRateLimit(cfg RateLimitConfig) Option {
	return func(c *Config) {
		c.RateLimitConfig = &cfg
	}
}

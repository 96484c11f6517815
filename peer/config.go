package peer

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	instrumentationName    = "github.com/kroma-labs/ocho-go/peer"
	instrumentationVersion = "1.0.0"
)

// Config holds the peer configuration.
//
// Start from DefaultConfig or DevelopmentConfig and override fields:
//
//	cfg := peer.DefaultConfig()
//	cfg.Addr = ":9090"
//	cfg.UploadDir = "/var/lib/ocho/uploads"
type Config struct {
	// Addr is the TCP address to listen on.
	Addr string

	// ServiceName labels spans, metrics and request logs.
	ServiceName string

	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	// ShutdownTimeout bounds how long in-flight requests may run once
	// shutdown starts.
	ShutdownTimeout time.Duration

	// UploadDir receives files posted to /api/data.
	UploadDir string

	// MaxUploadMemory is the part of a multipart body kept in memory; the
	// rest spills to temporary files.
	MaxUploadMemory int64

	// CORS is applied to every response.
	CORS CORSConfig

	// Store serves /resource. Nil means a fresh MemoryStore.
	Store Store

	// Logger receives lifecycle events. A disabled logger is replaced by a
	// stdout logger.
	Logger zerolog.Logger

	// MetricsHandler is mounted at GET /metrics when set.
	MetricsHandler http.Handler

	// Profiling mounts net/http/pprof under /debug/pprof.
	Profiling bool

	// ReadinessChecks run on GET /readyz, keyed by dependency name.
	ReadinessChecks map[string]HealthCheck

	TracingConfig   *TracingConfig
	MetricsConfig   *MetricsConfig
	LoggerConfig    *LoggerConfig
	RateLimitConfig *RateLimitConfig
}

// DefaultConfig returns timeouts sized for uploads of a few hundred
// megabytes over a slow link.
//
//   - ReadTimeout: 5m
//   - WriteTimeout: 5m
//   - IdleTimeout: 60s
//   - ShutdownTimeout: 10s
func DefaultConfig() Config {
	return Config{
		Addr:              ":8080",
		ServiceName:       "ocho-peer",
		ReadTimeout:       5 * time.Minute,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
		ShutdownTimeout:   10 * time.Second,
		UploadDir:         "uploads",
		MaxUploadMemory:   defaultMaxUploadMemory,
		CORS:              DefaultCORSConfig(),
	}
}

// DevelopmentConfig drops the read and write timeouts so requests survive a
// debugger. It also serves pprof and shuts down quickly.
func DevelopmentConfig() Config {
	cfg := DefaultConfig()
	cfg.ReadTimeout = 0
	cfg.ReadHeaderTimeout = 0
	cfg.WriteTimeout = 0
	cfg.IdleTimeout = 120 * time.Second
	cfg.ShutdownTimeout = 3 * time.Second
	cfg.Profiling = true
	return cfg
}

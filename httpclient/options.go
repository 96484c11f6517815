package httpclient

import (
	"crypto/tls"
	"maps"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	// scope is the instrumentation scope name for OpenTelemetry.
	scope = "github.com/kroma-labs/ocho-go/httpclient"
)

// =============================================================================
// ClientConfig - Immutable Request Defaults
// =============================================================================

// ClientConfig holds the defaults every call starts from.
//
// It is established by New and never mutated afterwards; each call merges
// its RequestOptions over it to produce a fresh RequestDescriptor.
type ClientConfig struct {
	// BaseAddress is the absolute http(s) URL every endpoint is joined to.
	// Trailing slashes are stripped at construction.
	BaseAddress string

	// Headers are sent with every call unless the call overrides the key.
	Headers map[string]string

	// Body is sent when the call does not supply one.
	Body any

	// ThrowOnHTTPError controls whether non-2xx statuses and undecodable
	// 2xx bodies reject the call or resolve to the raw body.
	//
	// Default: true
	ThrowOnHTTPError bool

	// Timeout bounds the whole call, including reading the response body.
	// Zero means no timeout.
	//
	// Default: 0
	Timeout time.Duration
}

func (c ClientConfig) clone() ClientConfig {
	c.Headers = maps.Clone(c.Headers)
	if c.Headers == nil {
		c.Headers = map[string]string{}
	}
	return c
}

// =============================================================================
// TransportConfig - Connection Level Settings
// =============================================================================

// TransportConfig tunes the connection-level behavior of the underlying
// http.Transport. Request-level timeouts belong in ClientConfig.Timeout.
type TransportConfig struct {
	// DialTimeout is the maximum time to establish a TCP connection.
	//
	// Default: 5s
	DialTimeout time.Duration

	// TLSHandshakeTimeout is the maximum time for the TLS handshake.
	//
	// Default: 10s
	TLSHandshakeTimeout time.Duration

	// ResponseHeaderTimeout limits the wait for response headers after the
	// request is written. Zero defers to ClientConfig.Timeout.
	//
	// Default: 0
	ResponseHeaderTimeout time.Duration

	// ExpectContinueTimeout is the wait for a 100-continue response when
	// the request carries "Expect: 100-continue".
	//
	// Default: 1s
	ExpectContinueTimeout time.Duration

	// DisableKeepAlives closes the connection after every call, so each
	// call owns exactly one connection from invocation to settlement.
	//
	// Default: true
	DisableKeepAlives bool

	// DisableCompression prevents the transport from requesting gzip.
	//
	// Default: true
	DisableCompression bool

	// WriteBufferSize is the size of the write buffer. It also bounds the
	// granularity of upload progress notifications.
	//
	// Default: 32KB
	WriteBufferSize int

	// ReadBufferSize is the size of the read buffer.
	//
	// Default: 32KB
	ReadBufferSize int
}

// DefaultTransportConfig returns the transport settings used by New.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		DialTimeout:           5 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 0,
		ExpectContinueTimeout: 1 * time.Second,
		DisableKeepAlives:     true,
		DisableCompression:    true,
		WriteBufferSize:       32 * 1024,
		ReadBufferSize:        32 * 1024,
	}
}

// =============================================================================
// Internal Configuration
// =============================================================================

// internalConfig holds the client defaults plus transport and OTel settings.
type internalConfig struct {
	client ClientConfig

	transportConfig TransportConfig

	// baseTransport replaces the http.Transport built from transportConfig.
	// The OTel transport still wraps it.
	baseTransport http.RoundTripper

	// === OpenTelemetry Configuration ===

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	Metrics        *metrics

	// Propagators injects trace context into outgoing headers.
	// Default: TraceContext + Baggage (W3C)
	Propagators propagation.TextMapPropagator

	// ServiceName is added as "http.client.name" on spans and metrics.
	ServiceName string

	// EnableNetworkTrace adds DNS/connect/TLS/TTFB span events.
	// Default: true
	EnableNetworkTrace bool

	// === Connection Settings ===

	TLSConfig            *tls.Config
	ProxyURL             *url.URL
	ProxyFromEnvironment bool

	// === Debugging ===

	Logger       zerolog.Logger
	Debug        bool
	GenerateCurl bool
}

// newConfig creates a config with defaults and applies options.
func newConfig(opts ...Option) *internalConfig {
	cfg := &internalConfig{
		client: ClientConfig{
			Headers:          map[string]string{},
			ThrowOnHTTPError: true,
		},
		transportConfig: DefaultTransportConfig(),
		TracerProvider:  otel.GetTracerProvider(),
		MeterProvider:   otel.GetMeterProvider(),
		Propagators: propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
		EnableNetworkTrace:   true,
		ProxyFromEnvironment: true,
		Logger:               debugLogger,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	cfg.Tracer = cfg.TracerProvider.Tracer(scope)
	cfg.Meter = cfg.MeterProvider.Meter(scope)

	// Metrics stay nil on failure; every record method is nil-safe.
	cfg.Metrics, _ = newMetrics(cfg.Meter)

	return cfg
}

// buildTransport returns the base RoundTripper the OTel transport wraps.
func (cfg *internalConfig) buildTransport() http.RoundTripper {
	if cfg.baseTransport != nil {
		return cfg.baseTransport
	}

	tc := cfg.transportConfig
	dialer := &net.Dialer{
		Timeout:   tc.DialTimeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   tc.TLSHandshakeTimeout,
		ResponseHeaderTimeout: tc.ResponseHeaderTimeout,
		ExpectContinueTimeout: tc.ExpectContinueTimeout,
		DisableKeepAlives:     tc.DisableKeepAlives,
		DisableCompression:    tc.DisableCompression,
		WriteBufferSize:       tc.WriteBufferSize,
		ReadBufferSize:        tc.ReadBufferSize,
		TLSClientConfig:       cfg.TLSConfig,
	}

	if cfg.ProxyURL != nil {
		transport.Proxy = http.ProxyURL(cfg.ProxyURL)
	} else if cfg.ProxyFromEnvironment {
		transport.Proxy = http.ProxyFromEnvironment
	}

	return transport
}

// baseAttributes returns common attributes for all spans and metrics.
func (cfg *internalConfig) baseAttributes() []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 1)
	if cfg.ServiceName != "" {
		attrs = append(attrs, attribute.String("http.client.name", cfg.ServiceName))
	}
	return attrs
}

// =============================================================================
// Options - Functional Options for Client Configuration
// =============================================================================

// Option configures the client.
type Option func(*internalConfig)

// WithDefaultHeaders adds headers sent with every call. Calls may override
// any key. Repeated use merges, later values winning.
//
// Example:
//
//	client, err := httpclient.New("https://api.example.com",
//	    httpclient.WithDefaultHeaders(map[string]string{
//	        "Authorization":   "Bearer " + token,
//	        "X-Custom-Header": "custom-value",
//	    }),
//	)
func WithDefaultHeaders(headers map[string]string) Option {
	return func(cfg *internalConfig) {
		maps.Copy(cfg.client.Headers, headers)
	}
}

// WithDefaultHeader adds a single default header.
func WithDefaultHeader(key, value string) Option {
	return func(cfg *internalConfig) {
		cfg.client.Headers[key] = value
	}
}

// WithDefaultBody sets the body sent when a call does not supply one.
// An io.Reader is read once by New and resent as a RawBody on every call.
// A form whose files come from readers is rejected, use File paths instead.
func WithDefaultBody(body any) Option {
	return func(cfg *internalConfig) {
		cfg.client.Body = body
	}
}

// WithDefaultTimeout sets the per-call timeout budget. Zero disables it.
// A negative value makes New fail with ErrInvalidArgument.
func WithDefaultTimeout(d time.Duration) Option {
	return func(cfg *internalConfig) {
		cfg.client.Timeout = d
	}
}

// WithThrowOnHTTPError sets the default error policy.
//
// When false, non-2xx responses and undecodable 2xx bodies resolve to the
// raw body instead of rejecting.
func WithThrowOnHTTPError(throw bool) Option {
	return func(cfg *internalConfig) {
		cfg.client.ThrowOnHTTPError = throw
	}
}

// WithTransportConfig sets the connection-level settings.
func WithTransportConfig(tc TransportConfig) Option {
	return func(cfg *internalConfig) {
		cfg.transportConfig = tc
	}
}

// WithTransport replaces the underlying RoundTripper, e.g. with a
// MockTransport in tests. Instrumentation still wraps it.
func WithTransport(rt http.RoundTripper) Option {
	return func(cfg *internalConfig) {
		cfg.baseTransport = rt
	}
}

// WithServiceName sets an identifier for this client in traces and metrics,
// recorded as the "http.client.name" attribute.
func WithServiceName(name string) Option {
	return func(cfg *internalConfig) {
		cfg.ServiceName = name
	}
}

// WithTracerProvider sets the tracer provider.
// If not set, the global provider from otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *internalConfig) {
		if tp != nil {
			cfg.TracerProvider = tp
		}
	}
}

// WithMeterProvider sets the meter provider.
// If not set, the global provider from otel.GetMeterProvider() is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(cfg *internalConfig) {
		if mp != nil {
			cfg.MeterProvider = mp
		}
	}
}

// WithPropagators sets the propagators used to inject trace context.
func WithPropagators(p propagation.TextMapPropagator) Option {
	return func(cfg *internalConfig) {
		if p != nil {
			cfg.Propagators = p
		}
	}
}

// WithDisableNetworkTrace turns off the DNS/connect/TLS span events.
func WithDisableNetworkTrace() Option {
	return func(cfg *internalConfig) {
		cfg.EnableNetworkTrace = false
	}
}

// WithTLSConfig sets the TLS configuration of the built transport.
func WithTLSConfig(tlsCfg *tls.Config) Option {
	return func(cfg *internalConfig) {
		cfg.TLSConfig = tlsCfg
	}
}

// WithProxyURL routes requests through the given proxy.
func WithProxyURL(proxyURL *url.URL) Option {
	return func(cfg *internalConfig) {
		cfg.ProxyURL = proxyURL
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *internalConfig) {
		cfg.Logger = logger
	}
}

// WithDebug logs each request line and its outcome at debug level.
func WithDebug(enabled bool) Option {
	return func(cfg *internalConfig) {
		cfg.Debug = enabled
	}
}

// WithGenerateCurl records an equivalent curl command on every Call.
func WithGenerateCurl(enabled bool) Option {
	return func(cfg *internalConfig) {
		cfg.GenerateCurl = enabled
	}
}

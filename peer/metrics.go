package peer

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records per-request server metrics.
type Metrics struct {
	serviceName     string
	requestDuration metric.Float64Histogram
	requestSize     metric.Int64Histogram
	responseSize    metric.Int64Histogram
	activeRequests  metric.Int64UpDownCounter
	uploadedFiles   metric.Int64Counter
}

// MetricsConfig configures the metrics middleware.
type MetricsConfig struct {
	// MeterProvider defaults to otel.GetMeterProvider().
	MeterProvider metric.MeterProvider

	// serviceName is set by the server.
	serviceName string

	// SkipPaths are not recorded.
	SkipPaths []string

	// DurationBuckets are the request duration histogram boundaries in seconds.
	DurationBuckets []float64
}

// DefaultMetricsConfig returns the global meter provider and latency buckets
// from 1ms to 10s.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		MeterProvider: otel.GetMeterProvider(),
		DurationBuckets: []float64{
			0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
		},
	}
}

// NewMetrics creates the server instruments.
//
// Instruments:
//   - http.server.request.duration: latency histogram in seconds
//   - http.server.request.body.size: request body size in bytes
//   - http.server.response.body.size: response body size in bytes
//   - http.server.active_requests: in-flight requests
//   - peer.upload.files: files stored from POST /api/data, by outcome
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = otel.GetMeterProvider()
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = DefaultMetricsConfig().DurationBuckets
	}

	meter := cfg.MeterProvider.Meter(instrumentationName, metric.WithInstrumentationVersion(instrumentationVersion))

	m := &Metrics{serviceName: cfg.serviceName}
	var err error

	if m.requestDuration, err = meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("Duration of HTTP requests in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(cfg.DurationBuckets...),
	); err != nil {
		return nil, err
	}

	if m.requestSize, err = meter.Int64Histogram(
		"http.server.request.body.size",
		metric.WithDescription("Size of HTTP request bodies in bytes"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}

	if m.responseSize, err = meter.Int64Histogram(
		"http.server.response.body.size",
		metric.WithDescription("Size of HTTP response bodies in bytes"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}

	if m.activeRequests, err = meter.Int64UpDownCounter(
		"http.server.active_requests",
		metric.WithDescription("Number of in-flight HTTP requests"),
	); err != nil {
		return nil, err
	}

	if m.uploadedFiles, err = meter.Int64Counter(
		"peer.upload.files",
		metric.WithDescription("Files received on /api/data, by outcome"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// Middleware returns middleware that records the request instruments.
// Requests are labelled with the matched route rather than the raw path.
func (m *Metrics) Middleware(skipPaths ...string) Middleware {
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			start := time.Now()

			active := metric.WithAttributes(
				attribute.String("service.name", m.serviceName),
				attribute.String("http.request.method", r.Method),
			)
			m.activeRequests.Add(ctx, 1, active)
			defer m.activeRequests.Add(ctx, -1, active)

			wrapped := wrapResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			route := routePattern(r)
			if route == "" {
				route = "unmatched"
			}
			attrs := metric.WithAttributes(
				attribute.String("service.name", m.serviceName),
				attribute.String("http.request.method", r.Method),
				attribute.String("http.route", route),
				attribute.Int("http.response.status_code", wrapped.Status()),
			)

			m.requestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
			if r.ContentLength > 0 {
				m.requestSize.Record(ctx, r.ContentLength, attrs)
			}
			m.responseSize.Record(ctx, int64(wrapped.BytesWritten()), attrs)
		})
	}
}

// recordUpload counts one file received by POST /api/data. Safe on nil.
func (m *Metrics) recordUpload(r *http.Request, outcome string) {
	if m == nil {
		return
	}
	m.uploadedFiles.Add(r.Context(), 1, metric.WithAttributes(
		attribute.String("service.name", m.serviceName),
		attribute.String("outcome", outcome),
	))
}

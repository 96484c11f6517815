package peer_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kroma-labs/ocho-go/peer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTracing(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	handler := newTestHandler(t,
		peer.WithServiceName("peer-test"),
		peer.WithTracing(peer.TracingConfig{
			TracerProvider: tp,
			Propagator:     propagation.TraceContext{},
		}),
	)

	req := httptest.NewRequest(http.MethodGet, "/resource/", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]

	assert.True(t, strings.HasPrefix(span.Name, "HTTP GET /resource"), span.Name)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", span.SpanContext.TraceID().String())
	assert.Equal(t, "00f067aa0ba902b7", span.Parent.SpanID().String())

	attrs := make(map[attribute.Key]attribute.Value, len(span.Attributes))
	for _, kv := range span.Attributes {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, "peer-test", attrs["service.name"].AsString())
	assert.Equal(t, int64(http.StatusOK), attrs["http.response.status_code"].AsInt64())
	assert.NotEmpty(t, attrs["request.id"].AsString())
	assert.NotEqual(t, codes.Error, span.Status.Code)
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	handler := newTestHandler(t, peer.WithMetrics(peer.MetricsConfig{MeterProvider: mp}))

	body, contentType := multipartBody(t, map[string]string{"name": "x"}, "a.txt", "abc")
	serve(handler, http.MethodPost, "/api/data", body, contentType)
	serve(handler, http.MethodGet, "/nope", nil, "")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = m
		}
	}

	require.Contains(t, found, "http.server.request.duration")
	require.Contains(t, found, "http.server.response.body.size")
	require.Contains(t, found, "peer.upload.files")

	duration, ok := found["http.server.request.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var total uint64
	for _, dp := range duration.DataPoints {
		total += dp.Count
	}
	assert.Equal(t, uint64(2), total)

	uploads, ok := found["peer.upload.files"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, uploads.DataPoints, 1)
	assert.Equal(t, int64(1), uploads.DataPoints[0].Value)
	outcome, _ := uploads.DataPoints[0].Attributes.Value("outcome")
	assert.Equal(t, "stored", outcome.AsString())
}

func TestMetricsHandler(t *testing.T) {
	t.Parallel()

	handler := newTestHandler(t, peer.WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})))

	rec := serve(handler, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics", rec.Body.String())
}

package httpclient

import (
	"crypto/tls"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestDefaultTransportConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultTransportConfig()

	assert.Equal(t, 5*time.Second, cfg.DialTimeout)
	assert.Equal(t, 10*time.Second, cfg.TLSHandshakeTimeout)
	assert.Zero(t, cfg.ResponseHeaderTimeout)
	assert.Equal(t, time.Second, cfg.ExpectContinueTimeout)
	assert.True(t, cfg.DisableKeepAlives)
	assert.True(t, cfg.DisableCompression)
	assert.Equal(t, 32*1024, cfg.WriteBufferSize)
	assert.Equal(t, 32*1024, cfg.ReadBufferSize)
}

func TestNewConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		opts   []Option
		assert func(t *testing.T, cfg *internalConfig)
	}{
		{
			name: "given no options, then applies defaults",
			assert: func(t *testing.T, cfg *internalConfig) {
				assert.True(t, cfg.client.ThrowOnHTTPError)
				assert.Zero(t, cfg.client.Timeout)
				assert.NotNil(t, cfg.client.Headers)
				assert.Empty(t, cfg.client.Headers)
				assert.Nil(t, cfg.client.Body)
				assert.True(t, cfg.EnableNetworkTrace)
				assert.True(t, cfg.ProxyFromEnvironment)
				assert.NotNil(t, cfg.Tracer)
				assert.NotNil(t, cfg.Meter)
				assert.NotNil(t, cfg.Metrics)
			},
		},
		{
			name: "given header options, then merges them with later values winning",
			opts: []Option{
				WithDefaultHeaders(map[string]string{"Accept": "application/json", "X-Env": "dev"}),
				WithDefaultHeader("X-Env", "prod"),
			},
			assert: func(t *testing.T, cfg *internalConfig) {
				assert.Equal(t, map[string]string{"Accept": "application/json", "X-Env": "prod"}, cfg.client.Headers)
			},
		},
		{
			name: "given request defaults, then stores them",
			opts: []Option{
				WithDefaultBody(map[string]any{"source": "cli"}),
				WithDefaultTimeout(3 * time.Second),
				WithThrowOnHTTPError(false),
			},
			assert: func(t *testing.T, cfg *internalConfig) {
				assert.Equal(t, map[string]any{"source": "cli"}, cfg.client.Body)
				assert.Equal(t, 3*time.Second, cfg.client.Timeout)
				assert.False(t, cfg.client.ThrowOnHTTPError)
			},
		},
		{
			name: "given nil providers, then keeps the globals",
			opts: []Option{WithTracerProvider(nil), WithMeterProvider(nil), WithPropagators(nil)},
			assert: func(t *testing.T, cfg *internalConfig) {
				assert.NotNil(t, cfg.TracerProvider)
				assert.NotNil(t, cfg.MeterProvider)
				assert.NotNil(t, cfg.Propagators)
			},
		},
		{
			name: "given telemetry options, then stores them",
			opts: []Option{
				WithTracerProvider(sdktrace.NewTracerProvider()),
				WithMeterProvider(noop.NewMeterProvider()),
				WithPropagators(propagation.TraceContext{}),
				WithServiceName("upload-cli"),
				WithDisableNetworkTrace(),
			},
			assert: func(t *testing.T, cfg *internalConfig) {
				assert.IsType(t, &sdktrace.TracerProvider{}, cfg.TracerProvider)
				assert.Equal(t, propagation.TraceContext{}, cfg.Propagators)
				assert.Equal(t, "upload-cli", cfg.ServiceName)
				assert.False(t, cfg.EnableNetworkTrace)
			},
		},
		{
			name: "given debug options, then stores them",
			opts: []Option{WithDebug(true), WithGenerateCurl(true), WithLogger(zerolog.Nop())},
			assert: func(t *testing.T, cfg *internalConfig) {
				assert.True(t, cfg.Debug)
				assert.True(t, cfg.GenerateCurl)
				assert.Equal(t, zerolog.Disabled, cfg.Logger.GetLevel())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.assert(t, newConfig(tt.opts...))
		})
	}
}

func TestBuildTransport(t *testing.T) {
	t.Parallel()

	t.Run("given transport config, then builds http.Transport from it", func(t *testing.T) {
		t.Parallel()

		tc := DefaultTransportConfig()
		tc.DisableKeepAlives = false
		tc.WriteBufferSize = 4096
		tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
		proxy, err := url.Parse("http://proxy.internal:3128")
		require.NoError(t, err)

		cfg := newConfig(WithTransportConfig(tc), WithTLSConfig(tlsCfg), WithProxyURL(proxy))
		transport, ok := cfg.buildTransport().(*http.Transport)
		require.True(t, ok)

		assert.False(t, transport.DisableKeepAlives)
		assert.Equal(t, 4096, transport.WriteBufferSize)
		assert.Same(t, tlsCfg, transport.TLSClientConfig)

		req, err := http.NewRequest(http.MethodGet, "http://api.example.com", nil)
		require.NoError(t, err)
		got, err := transport.Proxy(req)
		require.NoError(t, err)
		assert.Equal(t, proxy, got)
	})

	t.Run("given custom transport, then returns it unchanged", func(t *testing.T) {
		t.Parallel()

		mock := NewMockTransport()
		cfg := newConfig(WithTransport(mock))

		assert.Same(t, mock, cfg.buildTransport())
	})
}

func TestBaseAttributes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		serviceName string
		wantLen     int
	}{
		{name: "given service name, then returns http.client.name", serviceName: "test-service", wantLen: 1},
		{name: "given no service name, then returns empty", serviceName: "", wantLen: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			attrs := newConfig(WithServiceName(tt.serviceName)).baseAttributes()

			require.Len(t, attrs, tt.wantLen)
			if tt.wantLen > 0 {
				assert.Equal(t, "http.client.name", string(attrs[0].Key))
				assert.Equal(t, tt.serviceName, attrs[0].Value.AsString())
			}
		})
	}
}

func TestClientConfig_Clone(t *testing.T) {
	t.Parallel()

	original := ClientConfig{Headers: map[string]string{"A": "1"}}
	clone := original.clone()
	clone.Headers["A"] = "2"

	assert.Equal(t, "1", original.Headers["A"])
}

package peer_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/kroma-labs/ocho-go/peer"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestChain(t *testing.T) {
	t.Parallel()

	var order []string
	mark := func(name string) peer.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name+"-before")
				next.ServeHTTP(w, r)
				order = append(order, name+"-after")
			})
		}
	}

	handler := peer.Chain(mark("m1"), mark("m2"))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"m1-before", "m2-before", "handler", "m2-after", "m1-after"}, order)
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		incoming string
	}{
		{name: "given incoming id, then forwards it", incoming: "req-123"},
		{name: "given no id, then generates one"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var seen string
			handler := peer.RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				seen = peer.RequestIDFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set(peer.RequestIDHeader, tt.incoming)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.NotEmpty(t, seen)
			assert.Equal(t, seen, rec.Header().Get(peer.RequestIDHeader))
			if tt.incoming != "" {
				assert.Equal(t, tt.incoming, seen)
			} else {
				assert.Len(t, seen, 36)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	logger := zerolog.New(&logs)

	handler := peer.Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/resource", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error."}`, rec.Body.String())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(logs.Bytes(), &entry))
	assert.Equal(t, "panic recovered", entry["message"])
	assert.Equal(t, "boom", entry["panic"])
	assert.Equal(t, "/resource", entry["path"])
	assert.NotEmpty(t, entry["stack"])
}

func TestCORS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		cfg        peer.CORSConfig
		method     string
		origin     string
		wantStatus int
		wantOrigin string
		wantVary   string
	}{
		{
			name:       "given wildcard, then allows any origin literally",
			cfg:        peer.DefaultCORSConfig(),
			method:     http.MethodGet,
			wantStatus: http.StatusOK,
			wantOrigin: "*",
		},
		{
			name:       "given listed origin, then echoes it",
			cfg:        peer.CORSConfig{AllowedOrigins: []string{"https://app.example.com"}},
			method:     http.MethodGet,
			origin:     "https://app.example.com",
			wantStatus: http.StatusOK,
			wantOrigin: "https://app.example.com",
			wantVary:   "Origin",
		},
		{
			name:       "given unlisted origin, then omits allow-origin",
			cfg:        peer.CORSConfig{AllowedOrigins: []string{"https://app.example.com"}},
			method:     http.MethodGet,
			origin:     "https://evil.example.com",
			wantStatus: http.StatusOK,
		},
		{
			name:       "given preflight, then answers 204 without calling the handler",
			cfg:        peer.DefaultCORSConfig(),
			method:     http.MethodOptions,
			origin:     "https://app.example.com",
			wantStatus: http.StatusNoContent,
			wantOrigin: "*",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(tt.method, "/api/data", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			peer.CORS(tt.cfg)(okHandler()).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantVary, rec.Header().Get("Vary"))
		})
	}
}

func TestCORSConfig_WithExtraHeaders(t *testing.T) {
	t.Parallel()

	base := peer.DefaultCORSConfig()
	got := base.WithExtraHeaders("authorization", " ", "CONTENT-TYPE", "X-Trace")

	assert.Equal(t, []string{"Content-Type", "Authorization", "X-Trace"}, got.AllowedHeaders)
	assert.Equal(t, []string{"Content-Type"}, base.AllowedHeaders)
}

func TestLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{name: "given 200, then logs at info", status: http.StatusOK, wantLevel: "info"},
		{name: "given 404, then logs at warn", status: http.StatusNotFound, wantLevel: "warn"},
		{name: "given 500, then logs at error", status: http.StatusInternalServerError, wantLevel: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var logs bytes.Buffer
			handler := peer.Logger(peer.LoggerConfig{Logger: zerolog.New(&logs)})(
				http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
					w.WriteHeader(tt.status)
					_, _ = w.Write([]byte("abc"))
				}),
			)
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/resource", nil))

			var entry map[string]any
			require.NoError(t, json.Unmarshal(logs.Bytes(), &entry))
			assert.Equal(t, tt.wantLevel, entry["level"])
			assert.Equal(t, "request completed", entry["message"])
			assert.EqualValues(t, tt.status, entry["status"])
			assert.EqualValues(t, 3, entry["bytes"])
		})
	}

	t.Run("given skipped path, then logs nothing", func(t *testing.T) {
		t.Parallel()

		var logs bytes.Buffer
		handler := peer.Logger(peer.LoggerConfig{
			Logger:    zerolog.New(&logs),
			SkipPaths: []string{"/metrics"},
		})(okHandler())
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))

		assert.Zero(t, logs.Len())
	})
}

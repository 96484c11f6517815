package peer_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kroma-labs/ocho-go/peer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T, opts ...peer.Option) http.Handler {
	t.Helper()

	cfg := peer.DefaultConfig()
	cfg.UploadDir = t.TempDir()
	for _, opt := range opts {
		opt(&cfg)
	}

	handler, err := peer.NewHandler(cfg)
	require.NoError(t, err)
	return handler
}

func serve(handler http.Handler, method, target string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, body)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Routes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		method      string
		target      string
		body        string
		contentType string
		wantStatus  int
		wantBody    string
	}{
		{
			name:       "given GET /api/data, then returns the contacts",
			method:     http.MethodGet,
			target:     "/api/data",
			wantStatus: http.StatusOK,
			wantBody: `[{"name":"Jean Dupont","email":"jean.dupont@example.com"},` +
				`{"name":"Marie Curie","email":"marie.curie@example.com"}]`,
		},
		{
			name:       "given trailing slash, then routes the same",
			method:     http.MethodGet,
			target:     "/api/data/",
			wantStatus: http.StatusOK,
			wantBody: `[{"name":"Jean Dupont","email":"jean.dupont@example.com"},` +
				`{"name":"Marie Curie","email":"marie.curie@example.com"}]`,
		},
		{
			name:       "given PUT /api/data, then returns 405",
			method:     http.MethodPut,
			target:     "/api/data",
			wantStatus: http.StatusMethodNotAllowed,
			wantBody:   `{"error":"HTTP method not allowed."}`,
		},
		{
			name:       "given GET /resource, then returns the seeded resources",
			method:     http.MethodGet,
			target:     "/resource",
			wantStatus: http.StatusOK,
			wantBody: `[{"id":1,"name":"Resource 1","description":"Description of resource 1"},` +
				`{"id":2,"name":"Resource 2","description":"Description of resource 2"}]`,
		},
		{
			name:        "given POST /resource with name only, then creates with default description",
			method:      http.MethodPost,
			target:      "/resource",
			body:        `{"name":"Jane Doe"}`,
			contentType: "application/json",
			wantStatus:  http.StatusCreated,
			wantBody:    `{"message":"Resource created.","data":{"id":3,"name":"Jane Doe","description":"No description"}}`,
		},
		{
			name:        "given POST /resource with description, then keeps it",
			method:      http.MethodPost,
			target:      "/resource/",
			body:        `{"name":"Jane Doe","description":"Engineer"}`,
			contentType: "application/json",
			wantStatus:  http.StatusCreated,
			wantBody:    `{"message":"Resource created.","data":{"id":3,"name":"Jane Doe","description":"Engineer"}}`,
		},
		{
			name:        "given POST /resource with empty name, then returns 400",
			method:      http.MethodPost,
			target:      "/resource",
			body:        `{"name":""}`,
			contentType: "application/json",
			wantStatus:  http.StatusBadRequest,
			wantBody:    `{"error":"The \"name\" field is required."}`,
		},
		{
			name:        "given POST /resource with numeric name, then stores it as text",
			method:      http.MethodPost,
			target:      "/resource",
			body:        `{"name":123,"description":4.5}`,
			contentType: "application/json",
			wantStatus:  http.StatusCreated,
			wantBody:    `{"message":"Resource created.","data":{"id":3,"name":"123","description":"4.5"}}`,
		},
		{
			name:        "given POST /resource with null description, then uses the default",
			method:      http.MethodPost,
			target:      "/resource",
			body:        `{"name":true,"description":null}`,
			contentType: "application/json",
			wantStatus:  http.StatusCreated,
			wantBody:    `{"message":"Resource created.","data":{"id":3,"name":"true","description":"No description"}}`,
		},
		{
			name:        "given POST /resource with zero name, then returns 400",
			method:      http.MethodPost,
			target:      "/resource",
			body:        `{"name":0}`,
			contentType: "application/json",
			wantStatus:  http.StatusBadRequest,
			wantBody:    `{"error":"The \"name\" field is required."}`,
		},
		{
			name:        "given POST /resource with string zero name, then returns 400",
			method:      http.MethodPost,
			target:      "/resource",
			body:        `{"name":"0"}`,
			contentType: "application/json",
			wantStatus:  http.StatusBadRequest,
			wantBody:    `{"error":"The \"name\" field is required."}`,
		},
		{
			name:        "given POST /resource with null name, then returns 400",
			method:      http.MethodPost,
			target:      "/resource",
			body:        `{"name":null}`,
			contentType: "application/json",
			wantStatus:  http.StatusBadRequest,
			wantBody:    `{"error":"The \"name\" field is required."}`,
		},
		{
			name:        "given POST /resource with invalid JSON, then returns 400",
			method:      http.MethodPost,
			target:      "/resource",
			body:        `{"name":`,
			contentType: "application/json",
			wantStatus:  http.StatusBadRequest,
			wantBody:    `{"error":"The \"name\" field is required."}`,
		},
		{
			name:       "given DELETE /resource, then returns 405",
			method:     http.MethodDelete,
			target:     "/resource",
			wantStatus: http.StatusMethodNotAllowed,
			wantBody:   `{"error":"HTTP method not allowed for this endpoint."}`,
		},
		{
			name:       "given unknown path, then returns 404",
			method:     http.MethodGet,
			target:     "/users",
			wantStatus: http.StatusNotFound,
			wantBody:   `{"error":"Endpoint not found."}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler := newTestHandler(t)

			var body *bytes.Buffer
			if tt.body != "" {
				body = bytes.NewBufferString(tt.body)
			}
			rec := serve(handler, tt.method, tt.target, body, tt.contentType)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
			assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestHandler_CreateThenList(t *testing.T) {
	t.Parallel()

	handler := newTestHandler(t, peer.WithStore(peer.NewMemoryStore()))

	rec := serve(handler, http.MethodPost, "/resource", bytes.NewBufferString(`{"name":"Jane Doe"}`), "application/json")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = serve(handler, http.MethodGet, "/resource", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `{"id":3,"name":"Jane Doe","description":"No description"}`)
}

func TestHandler_Preflight(t *testing.T) {
	t.Parallel()

	handler := newTestHandler(t, peer.WithAllowedHeaders("x-client", "content-type"))

	req := httptest.NewRequest(http.MethodOptions, "/anything", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, PUT, PATCH, DELETE", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type, X-Client", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.NotEmpty(t, rec.Header().Get(peer.RequestIDHeader))
}

func multipartBody(t *testing.T, fields map[string]string, fileName, content string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHandler_Upload(t *testing.T) {
	t.Parallel()

	t.Run("given file and fields, then stores the file and echoes", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		handler := newTestHandler(t, peer.WithUploadDir(dir))
		body, contentType := multipartBody(t,
			map[string]string{"name": "Jane Doe", "email": "jane@example.com"},
			"../../report.txt", "quarterly numbers",
		)

		rec := serve(handler, http.MethodPost, "/api/data", body, contentType)
		require.Equal(t, http.StatusOK, rec.Code)

		stored := filepath.Join(dir, "report.txt")
		assert.JSONEq(t,
			`{"file":`+quoteJSON(stored)+`,"name":"Jane Doe","email":"jane@example.com"}`,
			rec.Body.String(),
		)

		content, err := os.ReadFile(stored)
		require.NoError(t, err)
		assert.Equal(t, "quarterly numbers", string(content))
	})

	t.Run("given fields only, then echoes them without file keys", func(t *testing.T) {
		t.Parallel()

		handler := newTestHandler(t)
		body, contentType := multipartBody(t, map[string]string{"name": ""}, "", "")

		rec := serve(handler, http.MethodPost, "/api/data", body, contentType)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"name":""}`, rec.Body.String())
	})

	t.Run("given urlencoded form, then echoes the fields", func(t *testing.T) {
		t.Parallel()

		handler := newTestHandler(t)
		rec := serve(handler, http.MethodPost, "/api/data",
			bytes.NewBufferString("email=a%40b.c"), "application/x-www-form-urlencoded")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"email":"a@b.c"}`, rec.Body.String())
	})

	t.Run("given JSON body, then returns an empty echo", func(t *testing.T) {
		t.Parallel()

		handler := newTestHandler(t)
		rec := serve(handler, http.MethodPost, "/api/data", bytes.NewBufferString(`{"name":"x"}`), "application/json")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{}`, rec.Body.String())
	})

	t.Run("given unwritable upload dir, then reports file_error", func(t *testing.T) {
		t.Parallel()

		blocker := filepath.Join(t.TempDir(), "not-a-dir")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

		handler := newTestHandler(t, peer.WithUploadDir(blocker))
		body, contentType := multipartBody(t, nil, "a.txt", "data")

		rec := serve(handler, http.MethodPost, "/api/data", body, contentType)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"file_error":"Failed to store the uploaded file."}`, rec.Body.String())
	})
}

func quoteJSON(s string) string {
	return `"` + strings.ReplaceAll(s, `\`, `\\`) + `"`
}

func TestHandler_Profiling(t *testing.T) {
	t.Parallel()

	enable := func(c *peer.Config) { c.Profiling = true }

	tests := []struct {
		name       string
		opts       []peer.Option
		target     string
		wantStatus int
	}{
		{name: "given profiling off, then 404", target: "/debug/pprof/goroutine?debug=1", wantStatus: http.StatusNotFound},
		{name: "given profiling on, then serves named profile", opts: []peer.Option{enable}, target: "/debug/pprof/goroutine?debug=1", wantStatus: http.StatusOK},
		{name: "given profiling on, then serves the index", opts: []peer.Option{enable}, target: "/debug/pprof/", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := serve(newTestHandler(t, tt.opts...), http.MethodGet, tt.target, nil, "")
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

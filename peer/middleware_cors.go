package peer

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// CORSConfig configures the CORS middleware.
type CORSConfig struct {
	// AllowedOrigins lists the origins allowed to call the peer. "*" allows
	// every origin and is sent back literally.
	AllowedOrigins []string

	// AllowedMethods is sent as Access-Control-Allow-Methods.
	AllowedMethods []string

	// AllowedHeaders is sent as Access-Control-Allow-Headers.
	AllowedHeaders []string

	// ExposedHeaders is sent as Access-Control-Expose-Headers.
	ExposedHeaders []string

	// MaxAge is the preflight cache lifetime in seconds. Zero omits the header.
	MaxAge int
}

// DefaultCORSConfig returns the headers browsers need to call the peer from
// any page: every origin, the five methods the client speaks, and a
// Content-Type request header.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{RequestIDHeader},
	}
}

// WithExtraHeaders returns a copy of cfg that also allows headers.
// Duplicates are dropped, compared case-insensitively.
func (cfg CORSConfig) WithExtraHeaders(headers ...string) CORSConfig {
	allowed := slices.Clone(cfg.AllowedHeaders)
	for _, h := range headers {
		h = http.CanonicalHeaderKey(strings.TrimSpace(h))
		if h == "" || slices.ContainsFunc(allowed, func(a string) bool { return strings.EqualFold(a, h) }) {
			continue
		}
		allowed = append(allowed, h)
	}
	cfg.AllowedHeaders = allowed
	return cfg
}

// CORS returns middleware that puts the CORS headers on every response and
// answers OPTIONS preflight requests with 204.
func CORS(cfg CORSConfig) Middleware {
	allowAll := slices.Contains(cfg.AllowedOrigins, "*")
	origins := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		origins[origin] = true
	}

	allowMethods := strings.Join(cfg.AllowedMethods, ", ")
	allowHeaders := strings.Join(cfg.AllowedHeaders, ", ")
	exposeHeaders := strings.Join(cfg.ExposedHeaders, ", ")
	maxAge := strconv.Itoa(cfg.MaxAge)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()

			switch origin := r.Header.Get("Origin"); {
			case allowAll:
				h.Set("Access-Control-Allow-Origin", "*")
			case origin != "" && origins[origin]:
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}

			if allowMethods != "" {
				h.Set("Access-Control-Allow-Methods", allowMethods)
			}
			if allowHeaders != "" {
				h.Set("Access-Control-Allow-Headers", allowHeaders)
			}
			if exposeHeaders != "" {
				h.Set("Access-Control-Expose-Headers", exposeHeaders)
			}

			if r.Method == http.MethodOptions {
				if cfg.MaxAge > 0 {
					h.Set("Access-Control-Max-Age", maxAge)
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

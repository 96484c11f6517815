package peer

import (
	"context"
	"maps"
	"net/http"
	"slices"
	"sync"
	"time"
)

// HealthCheck reports whether a dependency is usable.
//
//	func dbCheck(ctx context.Context) error {
//	    return db.PingContext(ctx)
//	}
type HealthCheck func(ctx context.Context) error

// CheckResult is the outcome of one check in a /readyz response.
type CheckResult struct {
	Status              string `json:"status"`
	Latency             string `json:"latency"`
	Message             string `json:"message,omitempty"`
	ConsecutiveFailures int    `json:"consecutive_failures,omitempty"`
}

// HealthStatus is the data of a /livez or /readyz response.
type HealthStatus struct {
	Status  string                 `json:"status"`
	Service string                 `json:"service"`
	Uptime  string                 `json:"uptime"`
	Checks  map[string]CheckResult `json:"checks,omitempty"`
}

// health serves the probe endpoints. Liveness only says the process
// answers; readiness runs every registered check.
type health struct {
	serviceName string
	startTime   time.Time
	timeout     time.Duration

	mu       sync.Mutex
	checks   map[string]HealthCheck
	failures map[string]int
}

func newHealth(serviceName string, checks map[string]HealthCheck) *health {
	return &health{
		serviceName: serviceName,
		startTime:   time.Now(),
		timeout:     2 * time.Second,
		checks:      maps.Clone(checks),
		failures:    make(map[string]int, len(checks)),
	}
}

func (h *health) live(w http.ResponseWriter, _ *http.Request) {
	WriteMessage(w, http.StatusOK, "alive", HealthStatus{
		Status:  "ok",
		Service: h.serviceName,
		Uptime:  h.uptime(),
	})
}

func (h *health) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	h.mu.Lock()
	defer h.mu.Unlock()

	results := make(map[string]CheckResult, len(h.checks))
	healthy := true
	for _, name := range slices.Sorted(maps.Keys(h.checks)) {
		start := time.Now()
		err := h.checks[name](ctx)
		result := CheckResult{Status: "ok", Latency: time.Since(start).String()}

		if err != nil {
			healthy = false
			h.failures[name]++
			result.Status = "fail"
			result.Message = err.Error()
			result.ConsecutiveFailures = h.failures[name]
		} else {
			h.failures[name] = 0
		}
		results[name] = result
	}

	status, code, message := "ok", http.StatusOK, "all checks passed"
	if !healthy {
		status, code, message = "fail", http.StatusServiceUnavailable, "one or more checks failed"
	}

	WriteMessage(w, code, message, HealthStatus{
		Status:  status,
		Service: h.serviceName,
		Uptime:  h.uptime(),
		Checks:  results,
	})
}

func (h *health) uptime() string {
	return time.Since(h.startTime).Round(time.Second).String()
}

package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// HealthCheck is the result of one check.
type HealthCheck struct {
	Name     string        `json:"name"`
	Status   HealthStatus  `json:"status"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration"`
	Critical bool          `json:"critical"`
}

// CheckFunc reports the state of one component.
type CheckFunc func(ctx context.Context) (HealthStatus, string)

type registeredCheck struct {
	fn       CheckFunc
	critical bool
}

// HealthResponse represents the overall health response
type HealthResponse struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Uptime    time.Duration `json:"uptime"`
	Checks    []HealthCheck `json:"checks"`
}

// Health runs registered checks on demand.
type Health struct {
	mu      sync.RWMutex
	checks  map[string]registeredCheck
	started time.Time
}

// NewHealth creates an empty set of checks.
func NewHealth() *Health {
	return &Health{
		checks:  make(map[string]registeredCheck),
		started: time.Now(),
	}
}

// Register adds or replaces the check called name. A failing critical check
// makes the whole service unhealthy; a failing non-critical check degrades it.
func (h *Health) Register(name string, critical bool, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.checks[name] = registeredCheck{fn: fn, critical: critical}
}

// Run executes every check and aggregates the result.
func (h *Health) Run(ctx context.Context) HealthResponse {
	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	checks := make(map[string]registeredCheck, len(h.checks))
	for k, v := range h.checks {
		checks[k] = v
	}
	h.mu.RUnlock()
	sort.Strings(names)

	resp := HealthResponse{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now(),
		Uptime:    time.Since(h.started),
		Checks:    make([]HealthCheck, 0, len(names)),
	}

	for _, name := range names {
		check := checks[name]
		start := time.Now()
		status, msg := check.fn(ctx)
		resp.Checks = append(resp.Checks, HealthCheck{
			Name:     name,
			Status:   status,
			Message:  msg,
			Duration: time.Since(start),
			Critical: check.critical,
		})

		switch {
		case status == HealthStatusHealthy:
		case check.critical:
			resp.Status = HealthStatusUnhealthy
		case resp.Status == HealthStatusHealthy:
			resp.Status = HealthStatusDegraded
		}
	}

	return resp
}

// Handler serves the aggregated result as JSON; unhealthy answers 503.
func (h *Health) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := h.Run(r.Context())

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		if resp.Status == HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		_ = json.NewEncoder(w).Encode(resp)
	})
}

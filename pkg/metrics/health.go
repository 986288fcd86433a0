package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the overall health state.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// DegradedReadFailureRate is the share of failed reads above which the
// service reports itself degraded.
const DegradedReadFailureRate = 0.01

// CheckFunc performs one health check. It returns nil when healthy.
type CheckFunc func(ctx context.Context) error

// HealthCheck runs named checks and summarizes ledger metrics.
type HealthCheck struct {
	mu        sync.RWMutex
	checks    map[string]CheckFunc
	collector *Collector
	startTime time.Time
	version   string
}

// HealthResponse is the JSON body of the health endpoint.
type HealthResponse struct {
	Status    HealthStatus           `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Uptime    string                 `json:"uptime"`
	Version   string                 `json:"version,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Metrics   *HealthMetrics         `json:"metrics,omitempty"`
}

// CheckResult is the outcome of a single check.
type CheckResult struct {
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
	Latency string       `json:"latency,omitempty"`
}

// HealthMetrics are the ledger figures included in a health response.
type HealthMetrics struct {
	Entries              uint64  `json:"entries"`
	CommitsTotal         uint64  `json:"commits_total"`
	VerificationFailures uint64  `json:"verification_failures"`
	ReadFailureRate      float64 `json:"read_failure_rate,omitempty"`
}

// NewHealthCheck creates a health check reporting collector figures.
func NewHealthCheck(collector *Collector, version string) *HealthCheck {
	return &HealthCheck{
		checks:    make(map[string]CheckFunc),
		collector: collector,
		startTime: time.Now(),
		version:   version,
	}
}

// AddCheck registers a named health check.
func (h *HealthCheck) AddCheck(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// RemoveCheck removes a named health check.
func (h *HealthCheck) RemoveCheck(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.checks, name)
}

// Check runs every check and returns the overall status. A failing check
// makes the service unhealthy; a failed chain verification or a high read
// failure rate makes it degraded.
func (h *HealthCheck) Check(ctx context.Context) HealthResponse {
	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	checks := make(map[string]CheckFunc, len(h.checks))
	for k, v := range h.checks {
		checks[k] = v
	}
	h.mu.RUnlock()
	sort.Strings(names)

	response := HealthResponse{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now(),
		Uptime:    formatDuration(time.Since(h.startTime)),
		Version:   h.version,
		Checks:    make(map[string]CheckResult, len(names)),
	}

	unhealthy, degraded := false, false
	for _, name := range names {
		start := time.Now()
		err := checks[name](ctx)
		result := CheckResult{Status: HealthStatusHealthy, Latency: time.Since(start).String()}
		if err != nil {
			result.Status = HealthStatusUnhealthy
			result.Message = err.Error()
			unhealthy = true
		}
		response.Checks[name] = result
	}

	if h.collector != nil {
		snap := h.collector.Snapshot()
		response.Metrics = &HealthMetrics{
			Entries:              snap.Entries,
			CommitsTotal:         snap.CommitsTotal,
			VerificationFailures: snap.VerificationFailures,
		}
		if attempts := snap.ReadsTotal + snap.ReadFailures; attempts > 0 {
			response.Metrics.ReadFailureRate = float64(snap.ReadFailures) / float64(attempts)
			degraded = degraded || response.Metrics.ReadFailureRate > DegradedReadFailureRate
		}
		degraded = degraded || snap.VerificationFailures > 0
	}

	switch {
	case unhealthy:
		response.Status = HealthStatusUnhealthy
	case degraded:
		response.Status = HealthStatusDegraded
	}
	return response
}

// Handler serves the full health response. Unhealthy answers 503.
func (h *HealthCheck) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response := h.Check(r.Context())
		code := http.StatusOK
		if response.Status == HealthStatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, response)
	})
}

// LivenessHandler answers 200 while the process runs.
func (h *HealthCheck) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})
}

// ReadinessHandler answers 200 unless a check fails.
func (h *HealthCheck) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response := h.Check(r.Context())
		ready := response.Status != HealthStatusUnhealthy
		code := http.StatusOK
		if !ready {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]interface{}{"status": response.Status, "ready": ready})
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// formatDuration renders d as e.g. "2d3h4m", "1h2m3s" or "45s".
func formatDuration(d time.Duration) string {
	d = d.Truncate(time.Second)
	days := int(d / (24 * time.Hour))
	hours := int(d/time.Hour) % 24
	minutes := int(d/time.Minute) % 60
	seconds := int(d/time.Second) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd%dh%dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// --- Common Health Checks ---

// PingCheck adapts a ping function, such as a store's Ping, into a check.
func PingCheck(ping func(ctx context.Context) error) CheckFunc {
	return ping
}

// SelfTestCheck reports the result of a one-shot self test, e.g. the
// power-on known-answer tests. The result is computed once.
func SelfTestCheck(run func() error) CheckFunc {
	var (
		once sync.Once
		err  error
	)
	return func(context.Context) error {
		once.Do(func() { err = run() })
		return err
	}
}

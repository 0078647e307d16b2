// Package healthprobe serves liveness and readiness endpoints. Liveness
// only proves the process is up; readiness flips once the feeds and
// gateways are started and flips back during shutdown so a load
// balancer drains the instance first.
package healthprobe

import (
	"net/http"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
)

// HealthChecker tracks process readiness.
type HealthChecker struct {
	startTime time.Time
	ready     atomic.Bool
}

// New creates a HealthChecker; the process starts not ready.
func New() *HealthChecker {
	return &HealthChecker{startTime: time.Now()}
}

// SetReady marks the application ready (or not) to serve traffic.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// ProbeResponse is the body of both probe endpoints.
type ProbeResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime,omitempty"`
	Message string `json:"message,omitempty"`
}

// Health handles liveness checks; it returns 200 as long as the
// process is running.
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.writeProbe(w, http.StatusOK, ProbeResponse{
			Status: "healthy",
			Uptime: time.Since(h.startTime).String(),
		})
	}
}

// Ready handles readiness checks: 200 when ready, 503 otherwise.
func (h *HealthChecker) Ready() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.ready.Load() {
			h.writeProbe(w, http.StatusServiceUnavailable, ProbeResponse{
				Status:  "not_ready",
				Message: "application is starting",
			})
			return
		}

		h.writeProbe(w, http.StatusOK, ProbeResponse{
			Status: "ready",
			Uptime: time.Since(h.startTime).String(),
		})
	}
}

func (h *HealthChecker) writeProbe(w http.ResponseWriter, code int, resp ProbeResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

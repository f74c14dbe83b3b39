package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"
)

// Pinger is any dependency whose reachability gates readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

type SystemHandler struct {
	deps      map[string]Pinger
	order     []string
	timeout   time.Duration
	startTime time.Time
}

// NewSystemHandler checks deps (by name, in name order) on /ready. Nil
// deps are skipped.
func NewSystemHandler(deps map[string]Pinger) *SystemHandler {
	h := &SystemHandler{
		deps:      make(map[string]Pinger, len(deps)),
		timeout:   2 * time.Second,
		startTime: time.Now(),
	}
	for name, p := range deps {
		if p != nil {
			h.deps[name] = p
			h.order = append(h.order, name)
		}
	}
	sort.Strings(h.order)
	return h
}

type ServiceStatus struct {
	Name      string `json:"name"`
	Status    string `json:"status"` // operational, degraded, outage
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// Health reports liveness.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
	})
}

// Ready pings every dependency and fails if any is down.
func (h *SystemHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := http.StatusOK
	services := make([]ServiceStatus, 0, len(h.order))
	for _, name := range h.order {
		start := time.Now()
		err := h.deps[name].Ping(ctx)
		s := ServiceStatus{
			Name:      name,
			Status:    "operational",
			LatencyMs: time.Since(start).Milliseconds(),
		}
		if err != nil {
			s.Status = "outage"
			s.Error = err.Error()
			status = http.StatusServiceUnavailable
		} else if s.LatencyMs > 200 {
			s.Status = "degraded"
		}
		services = append(services, s)
	}

	ready := "ready"
	if status != http.StatusOK {
		ready = "not_ready"
	}
	h.respondJSON(w, status, map[string]interface{}{
		"status":   ready,
		"services": services,
	})
}

func (h *SystemHandler) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(err.Error()))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

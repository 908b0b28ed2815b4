// Package health serves the liveness, readiness, and status probes for the
// presence simulator.
package health

import (
	"context"
	"maps"
	"net/http"
	"sync"
	"time"

	"vigil/pkg/platform/httputil"

	"github.com/go-chi/chi/v5"
)

// Version is set at build time via ldflags.
var Version = "dev"

// CheckFunc probes one dependency. A nil return means healthy; the error
// text is surfaced verbatim in the readiness payload.
type CheckFunc func(ctx context.Context) error

// Handler answers the probe endpoints. Checks registered after construction
// (the redis store, when configured) gate readiness only; liveness never
// depends on downstream state.
type Handler struct {
	environment string
	startedAt   time.Time

	mu     sync.RWMutex
	checks map[string]CheckFunc
}

func New(environment string) *Handler {
	return &Handler{
		environment: environment,
		startedAt:   time.Now(),
		checks:      make(map[string]CheckFunc),
	}
}

// RegisterCheck adds a named dependency probe to the readiness endpoint.
func (h *Handler) RegisterCheck(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// Register mounts the probe routes on the given router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.HandleStatus)
	r.Get("/health/live", h.HandleLiveness)
	r.Get("/health/ready", h.HandleReadiness)
}

// probeResponse is shared by the liveness and readiness payloads.
type probeResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HandleLiveness reports that the process is up. Always 200.
func (h *Handler) HandleLiveness(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, probeResponse{Status: "alive"})
}

// HandleReadiness runs every registered check and answers 503 when any
// fails. Checks receive the request context so a hung dependency cannot
// wedge the probe past the server timeout.
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	checks := maps.Clone(h.checks)
	h.mu.RUnlock()

	resp := probeResponse{Status: "ready", Checks: make(map[string]string, len(checks))}
	code := http.StatusOK
	for name, check := range checks {
		if err := check(r.Context()); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "not_ready"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	httputil.WriteJSON(w, code, resp)
}

// statusResponse carries build and uptime info for operators.
type statusResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Environment   string `json:"environment"`
	StartedAt     string `json:"started_at"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// HandleStatus reports the build version, environment, and uptime.
func (h *Handler) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, statusResponse{
		Status:        "healthy",
		Version:       Version,
		Environment:   h.environment,
		StartedAt:     h.startedAt.UTC().Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
	})
}

package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/anstrom/ipscannr/internal/session"
)

// Status constants.
const (
	StatusHealthy = "healthy"
)

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status    string        `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Uptime    string        `json:"uptime"`
	Session   session.State `json:"session"`
	Clients   int           `json:"websocket_clients"`
}

// VersionResponse represents version information.
type VersionResponse struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
}

// HealthHandler serves liveness and version information.
type HealthHandler struct {
	version   string
	session   SessionController
	hub       *Hub
	startTime time.Time
}

// NewHealthHandler creates a health handler. hub may be nil.
func NewHealthHandler(version string, s SessionController, hub *Hub) *HealthHandler {
	return &HealthHandler{version: version, session: s, hub: hub, startTime: time.Now()}
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Session:   h.session.State(),
	}
	if h.hub != nil {
		resp.Clients = h.hub.Clients()
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// Version handles GET /version.
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, VersionResponse{Version: h.version, GoVersion: runtime.Version()})
}

package handlers

import (
	"context"
	"net/http"

	"github.com/anstrom/ipscannr/internal/api/middleware"
	"github.com/anstrom/ipscannr/internal/errors"
	"github.com/anstrom/ipscannr/internal/logging"
	"github.com/anstrom/ipscannr/internal/session"
)

// ScanRequest starts a discovery run.
type ScanRequest struct {
	Range string `json:"range" validate:"required,max=256"`
}

// ScanStatusResponse describes the session without its host list.
type ScanStatusResponse struct {
	State     session.State `json:"state"`
	RunID     string        `json:"run_id,omitempty"`
	Range     string        `json:"range"`
	Total     int           `json:"total"`
	Completed int           `json:"completed"`
	Alive     int           `json:"alive"`
	Progress  float64       `json:"progress"`
	Summary   string        `json:"summary"`
	Selected  string        `json:"selected,omitempty"`
}

// ScanHandler starts, pauses and resumes discovery runs.
type ScanHandler struct {
	session SessionController
	events  EventForwarder
	// Runs outlive the request that started them; they stop when the
	// server's base context is canceled.
	baseCtx context.Context
	logger  *logging.Logger
}

// NewScanHandler creates a scan handler.
func NewScanHandler(ctx context.Context, s SessionController, events EventForwarder, logger *logging.Logger) *ScanHandler {
	return &ScanHandler{
		session: s,
		events:  events,
		baseCtx: ctx,
		logger:  logger.WithComponent("api.scan"),
	}
}

// StartScan handles POST /scan.
func (h *ScanHandler) StartScan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := parseJSON(r, &req, false); err != nil {
		writeCodedError(w, r, err)
		return
	}

	// The session itself lets a new run supersede an active one; over HTTP
	// that would silently discard another client's scan.
	if st := h.session.State(); st == session.StateScanning || st == session.StatePaused {
		writeCodedError(w, r, errors.ErrInvalidState("start a scan", st.String()))
		return
	}

	events, err := h.session.Start(h.baseCtx, req.Range)
	if err != nil {
		h.logger.Warn("Scan rejected", "request_id", middleware.GetRequestID(r), "range", req.Range, "error", err)
		writeCodedError(w, r, err)
		return
	}
	h.events.Forward(events)

	h.logger.InfoScan("Scan started via API", req.Range, "request_id", middleware.GetRequestID(r))
	writeJSON(w, r, http.StatusAccepted, h.status())
}

// PauseScan handles POST /scan/pause.
func (h *ScanHandler) PauseScan(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Pause(); err != nil {
		writeCodedError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, h.status())
}

// ResumeScan handles POST /scan/resume.
func (h *ScanHandler) ResumeScan(w http.ResponseWriter, r *http.Request) {
	events, err := h.session.Resume(h.baseCtx)
	if err != nil {
		writeCodedError(w, r, err)
		return
	}
	h.events.Forward(events)
	writeJSON(w, r, http.StatusAccepted, h.status())
}

// GetStatus handles GET /scan.
func (h *ScanHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.status())
}

func (h *ScanHandler) status() ScanStatusResponse {
	snap := h.session.Snapshot()
	resp := ScanStatusResponse{
		State:     snap.State,
		RunID:     snap.RunID,
		Range:     snap.Range,
		Total:     snap.Total,
		Completed: snap.Completed,
		Alive:     snap.Alive,
		Progress:  snap.Progress,
		Summary:   h.session.Summary(),
	}
	if snap.Selected != nil {
		resp.Selected = snap.Selected.String()
	}
	return resp
}

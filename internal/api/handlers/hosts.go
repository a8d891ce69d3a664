package handlers

import (
	"net/http"
	"net/netip"
	"strconv"
	"strings"

	"github.com/anstrom/ipscannr/internal/errors"
	"github.com/anstrom/ipscannr/internal/logging"
	"github.com/anstrom/ipscannr/internal/models"
	"github.com/anstrom/ipscannr/internal/scanning"
)

// PortScanRequest overrides the configured port list.
type PortScanRequest struct {
	Ports string `json:"ports" validate:"omitempty,max=4096"`
}

// PortScanResponse is the outcome of a port scan of one host.
type PortScanResponse struct {
	IP      string                `json:"ip"`
	Results []scanning.PortResult `json:"results"`
	Host    models.HostRecord     `json:"host"`
}

// HostListResponse is the host list of the session.
type HostListResponse struct {
	Hosts   []models.HostRecord `json:"hosts"`
	Total   int                 `json:"total"`
	Summary string              `json:"summary"`
}

// HostHandler exposes the session's host records.
type HostHandler struct {
	session SessionController
	logger  *logging.Logger
}

// NewHostHandler creates a host handler.
func NewHostHandler(s SessionController, logger *logging.Logger) *HostHandler {
	return &HostHandler{session: s, logger: logger.WithComponent("api.hosts")}
}

// ListHosts handles GET /hosts. ?alive=true or ?alive=false filters.
func (h *HostHandler) ListHosts(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot()
	hosts := snap.Hosts

	if raw := r.URL.Query().Get("alive"); raw != "" {
		want, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, errors.NewScanError(errors.CodeValidation, "alive must be true or false"))
			return
		}
		filtered := make([]models.HostRecord, 0, len(hosts))
		for _, host := range hosts {
			if host.Alive == want {
				filtered = append(filtered, host)
			}
		}
		hosts = filtered
	}
	if hosts == nil {
		hosts = []models.HostRecord{}
	}

	writeJSON(w, r, http.StatusOK, HostListResponse{
		Hosts:   hosts,
		Total:   len(hosts),
		Summary: h.session.Summary(),
	})
}

// GetHost handles GET /hosts/{ip}.
func (h *HostHandler) GetHost(w http.ResponseWriter, r *http.Request) {
	ip, err := ipFromPath(r)
	if err != nil {
		writeCodedError(w, r, err)
		return
	}
	host, ok := h.session.Host(ip)
	if !ok {
		writeCodedError(w, r, errors.ErrHostNotFound(ip.String()))
		return
	}
	writeJSON(w, r, http.StatusOK, host)
}

// SelectHost handles POST /hosts/{ip}/select.
func (h *HostHandler) SelectHost(w http.ResponseWriter, r *http.Request) {
	ip, err := ipFromPath(r)
	if err != nil {
		writeCodedError(w, r, err)
		return
	}
	if err := h.session.Select(ip); err != nil {
		writeCodedError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"selected": ip.String()})
}

// ScanPorts handles POST /hosts/{ip}/ports.
func (h *HostHandler) ScanPorts(w http.ResponseWriter, r *http.Request) {
	ip, err := ipFromPath(r)
	if err != nil {
		writeCodedError(w, r, err)
		return
	}
	h.scanPorts(w, r, ip)
}

// ScanSelectedPorts handles POST /hosts/selected/ports.
func (h *HostHandler) ScanSelectedPorts(w http.ResponseWriter, r *http.Request) {
	h.scanPorts(w, r, netip.Addr{})
}

// scanPorts scans ip, or the selected host when ip is the zero Addr. The
// request context bounds the scan.
func (h *HostHandler) scanPorts(w http.ResponseWriter, r *http.Request, ip netip.Addr) {
	var req PortScanRequest
	if err := parseJSON(r, &req, true); err != nil {
		writeCodedError(w, r, err)
		return
	}

	var (
		results []scanning.PortResult
		err     error
	)
	if strings.TrimSpace(req.Ports) == "" {
		results, err = h.session.ScanPortsForSelected(r.Context(), ip)
	} else {
		ports := scanning.ParsePorts(req.Ports)
		if len(ports) == 0 {
			writeCodedError(w, r, errors.NewScanError(errors.CodeValidation, "no valid ports in "+strconv.Quote(req.Ports)))
			return
		}
		results, err = h.session.ScanHostPorts(r.Context(), ip, ports)
	}
	if err != nil {
		writeCodedError(w, r, err)
		return
	}

	if !ip.IsValid() {
		ip, _ = h.session.Selected()
	}
	host, _ := h.session.Host(ip)
	if results == nil {
		results = []scanning.PortResult{}
	}
	h.logger.Debug("Port scan finished", "ip", ip.String(), "open", len(scanning.OpenPorts(results)))
	writeJSON(w, r, http.StatusOK, PortScanResponse{IP: ip.String(), Results: results, Host: host})
}

package handlers

import (
	"net/http"

	"github.com/anstrom/ipscannr/internal/errors"
	"github.com/anstrom/ipscannr/internal/logging"
	"github.com/anstrom/ipscannr/internal/netif"
)

// InterfacesResponse lists local adapters and the range a scan would use by
// default.
type InterfacesResponse struct {
	Adapters     []netif.Adapter `json:"adapters"`
	DefaultRange string          `json:"default_range,omitempty"`
}

// InterfacesHandler lists local network adapters.
type InterfacesHandler struct {
	enumerate func() ([]netif.Adapter, error)
	logger    *logging.Logger
}

// NewInterfacesHandler creates an interfaces handler. A nil enumerate uses
// netif.Enumerate.
func NewInterfacesHandler(enumerate func() ([]netif.Adapter, error), logger *logging.Logger) *InterfacesHandler {
	if enumerate == nil {
		enumerate = netif.Enumerate
	}
	return &InterfacesHandler{enumerate: enumerate, logger: logger.WithComponent("api.interfaces")}
}

// ListInterfaces handles GET /interfaces.
func (h *InterfacesHandler) ListInterfaces(w http.ResponseWriter, r *http.Request) {
	adapters, err := h.enumerate()
	if err != nil {
		h.logger.Error("Failed to enumerate interfaces", "error", err)
		writeError(w, r, http.StatusInternalServerError,
			errors.WrapScanError(errors.CodeUnknown, "failed to enumerate interfaces", err))
		return
	}

	resp := InterfacesResponse{Adapters: adapters}
	if resp.Adapters == nil {
		resp.Adapters = []netif.Adapter{}
	}
	if len(adapters) > 0 {
		resp.DefaultRange = adapters[0].Subnet.String()
	}
	writeJSON(w, r, http.StatusOK, resp)
}

package handlers

import (
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/ipscannr/internal/logging"
	"github.com/anstrom/ipscannr/internal/netif"
	"github.com/anstrom/ipscannr/internal/session"
)

func TestHealthAndVersion(t *testing.T) {
	hub := NewHub(logging.Discard(), nil, nil)
	t.Cleanup(hub.Shutdown)
	h := NewHealthHandler("1.2.3", newTestSession(newAliveScanner(), nil), hub)

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", http.NoBody))
	require.Equal(t, http.StatusOK, w.Code)
	health := decode[HealthResponse](t, w)
	assert.Equal(t, StatusHealthy, health.Status)
	assert.Equal(t, session.StateIdle, health.Session)
	assert.Zero(t, health.Clients)

	w = httptest.NewRecorder()
	h.Version(w, httptest.NewRequest(http.MethodGet, "/api/v1/version", http.NoBody))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, VersionResponse{Version: "1.2.3", GoVersion: runtime.Version()}, decode[VersionResponse](t, w))
}

func TestListInterfaces(t *testing.T) {
	tests := []struct {
		name      string
		adapters  []netif.Adapter
		err       error
		wantCode  int
		wantRange string
	}{
		{
			name: "preferred adapter subnet",
			adapters: []netif.Adapter{
				{Name: "eth0", Type: netif.TypeEthernet, IP: netip.MustParseAddr("192.168.1.20"), Subnet: netip.MustParsePrefix("192.168.1.0/24")},
				{Name: "wlan0", Type: netif.TypeWiFi, IP: netip.MustParseAddr("10.1.0.5"), Subnet: netip.MustParsePrefix("10.1.0.0/16")},
			},
			wantCode:  http.StatusOK,
			wantRange: "192.168.1.0/24",
		},
		{name: "no adapters", wantCode: http.StatusOK},
		{name: "enumeration fails", err: stderrors.New("netlink down"), wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewInterfacesHandler(func() ([]netif.Adapter, error) { return tt.adapters, tt.err }, logging.Discard())
			w := httptest.NewRecorder()
			h.ListInterfaces(w, httptest.NewRequest(http.MethodGet, "/api/v1/interfaces", http.NoBody))
			require.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode != http.StatusOK {
				return
			}
			assert.Contains(t, w.Body.String(), `"adapters":[`)
			type wireAdapter struct {
				Name string `json:"name"`
				Type string `json:"type"`
			}
			resp := decode[struct {
				Adapters     []wireAdapter `json:"adapters"`
				DefaultRange string        `json:"default_range"`
			}](t, w)
			assert.Len(t, resp.Adapters, len(tt.adapters))
			assert.Equal(t, tt.wantRange, resp.DefaultRange)
			if len(tt.adapters) > 0 {
				assert.Equal(t, "Ethernet", resp.Adapters[0].Type)
			}
		})
	}
}

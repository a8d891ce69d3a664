package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/ipscannr/internal/logging"
	"github.com/anstrom/ipscannr/internal/models"
)

func TestListHosts(t *testing.T) {
	h := NewHostHandler(completedSession(t, nil), logging.Discard())

	tests := []struct {
		query    string
		wantCode int
		wantIPs  []string
	}{
		{"", http.StatusOK, []string{"10.0.0.0", "10.0.0.1", "10.0.0.2", "10.0.0.3"}},
		{"?alive=true", http.StatusOK, []string{"10.0.0.1", "10.0.0.2"}},
		{"?alive=false", http.StatusOK, []string{"10.0.0.0", "10.0.0.3"}},
		{"?alive=maybe", http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.ListHosts(w, httptest.NewRequest(http.MethodGet, "/api/v1/hosts"+tt.query, http.NoBody))
			require.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode != http.StatusOK {
				return
			}

			resp := decode[HostListResponse](t, w)
			var ips []string
			for _, host := range resp.Hosts {
				ips = append(ips, host.IP.String())
			}
			assert.Equal(t, tt.wantIPs, ips)
			assert.Equal(t, len(tt.wantIPs), resp.Total)
			assert.Equal(t, "4 hosts (2 online)", resp.Summary)
		})
	}
}

func TestListHostsEmptySession(t *testing.T) {
	h := NewHostHandler(newTestSession(newAliveScanner(), nil), logging.Discard())
	w := httptest.NewRecorder()
	h.ListHosts(w, httptest.NewRequest(http.MethodGet, "/api/v1/hosts", http.NoBody))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"hosts":[]`)
}

func TestGetHost(t *testing.T) {
	h := NewHostHandler(completedSession(t, nil), logging.Discard())

	tests := []struct {
		ip       string
		wantCode int
		wantErr  string
	}{
		{"10.0.0.1", http.StatusOK, ""},
		{"10.0.0.9", http.StatusNotFound, "HOST_NOT_FOUND"},
		{"not-an-ip", http.StatusBadRequest, "TARGET_INVALID"},
		{"::1", http.StatusBadRequest, "TARGET_INVALID"},
	}
	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.GetHost(w, withIP(httptest.NewRequest(http.MethodGet, "/", http.NoBody), tt.ip))
			require.Equal(t, tt.wantCode, w.Code)
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, decode[ErrorResponse](t, w).Code)
				return
			}
			host := decode[models.HostRecord](t, w)
			assert.True(t, host.Alive)
			assert.Equal(t, models.StatusOnline, host.Status)
			assert.Contains(t, w.Body.String(), `"rtt_ms":1`)
		})
	}
}

func TestScanPorts(t *testing.T) {
	tests := []struct {
		name        string
		ip          string
		body        any
		wantCode    int
		wantResults int
		wantOpen    []uint16
	}{
		{"explicit ports", "10.0.0.1", PortScanRequest{Ports: "22,80"}, http.StatusOK, 2, []uint16{22}},
		{"configured ports", "10.0.0.2", nil, http.StatusOK, 2, []uint16{22}},
		{"offline host is skipped", "10.0.0.3", nil, http.StatusOK, 0, []uint16{}},
		{"unknown host", "10.0.0.50", nil, http.StatusNotFound, 0, nil},
		{"unparseable ports", "10.0.0.1", PortScanRequest{Ports: "ssh"}, http.StatusBadRequest, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := completedSession(t, nil)
			h := NewHostHandler(s, logging.Discard())

			w := httptest.NewRecorder()
			h.ScanPorts(w, withIP(jsonRequest(t, http.MethodPost, "/", tt.body), tt.ip))
			require.Equal(t, tt.wantCode, w.Code, w.Body.String())
			if tt.wantCode != http.StatusOK {
				return
			}

			resp := decode[PortScanResponse](t, w)
			assert.Equal(t, tt.ip, resp.IP)
			assert.Len(t, resp.Results, tt.wantResults)
			assert.Equal(t, tt.wantOpen, resp.Host.OpenPorts)

			stored, ok := s.Host(resp.Host.IP)
			require.True(t, ok)
			assert.Equal(t, tt.wantResults > 0, stored.PortsScanned)
		})
	}
}

func TestSelectAndScanSelected(t *testing.T) {
	s := completedSession(t, nil)
	h := NewHostHandler(s, logging.Discard())

	w := httptest.NewRecorder()
	h.ScanSelectedPorts(w, jsonRequest(t, http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	h.SelectHost(w, withIP(jsonRequest(t, http.MethodPost, "/", nil), "10.0.0.77"))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	h.SelectHost(w, withIP(jsonRequest(t, http.MethodPost, "/", nil), "10.0.0.2"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"selected":"10.0.0.2"}`, w.Body.String())

	w = httptest.NewRecorder()
	h.ScanSelectedPorts(w, jsonRequest(t, http.MethodPost, "/", PortScanRequest{Ports: "20-23"}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[PortScanResponse](t, w)
	assert.Equal(t, "10.0.0.2", resp.IP)
	assert.Len(t, resp.Results, 4)
	assert.Equal(t, []uint16{22}, resp.Host.OpenPorts)
}

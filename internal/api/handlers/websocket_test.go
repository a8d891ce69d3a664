package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/ipscannr/internal/logging"
	"github.com/anstrom/ipscannr/internal/models"
	"github.com/anstrom/ipscannr/internal/session"
)

type wireMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) wireMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(testTimeout)))
	var msg wireMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHubStreamsRunEvents(t *testing.T) {
	snap := session.Snapshot{State: session.StateIdle, Range: "10.0.0.0/30"}
	hub := NewHub(logging.Discard(), func() session.Snapshot { return snap }, nil)
	t.Cleanup(hub.Shutdown)

	conn := dialHub(t, hub)

	first := readMessage(t, conn)
	assert.Equal(t, "snapshot", first.Type)
	assert.Contains(t, string(first.Data), `"range":"10.0.0.0/30"`)
	assert.Contains(t, string(first.Data), `"state":"idle"`)

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, testTimeout, time.Millisecond)

	events := make(chan session.Event, 2)
	host := models.NewHostRecord(models.OfflineResult(netip.MustParseAddr("10.0.0.3"), models.MethodTCP))
	events <- session.Event{Type: session.EventHostDiscovered, RunID: "r1", Host: host, Completed: 1, Total: 4, State: session.StateScanning}
	events <- session.Event{Type: session.EventScanComplete, RunID: "r1", Completed: 4, Total: 4, State: session.StateCompleted}
	close(events)
	hub.Forward(events)

	msg := readMessage(t, conn)
	assert.Equal(t, "host", msg.Type)
	var ev struct {
		Type  string `json:"type"`
		RunID string `json:"run_id"`
		Host  struct {
			IP     string `json:"ip"`
			Status string `json:"status"`
		} `json:"host"`
	}
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	assert.Equal(t, "host", ev.Type)
	assert.Equal(t, "r1", ev.RunID)
	assert.Equal(t, "10.0.0.3", ev.Host.IP)
	assert.Equal(t, "Offline", ev.Host.Status)

	msg = readMessage(t, conn)
	assert.Equal(t, "complete", msg.Type)
	assert.NotContains(t, string(msg.Data), `"host"`)
}

func TestHubShutdownClosesClients(t *testing.T) {
	hub := NewHub(logging.Discard(), nil, nil)
	conn := dialHub(t, hub)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, testTimeout, time.Millisecond)

	hub.Shutdown()
	hub.Shutdown()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(testTimeout)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Zero(t, hub.Clients())
}

func TestHubForwardDrainsWithoutClients(t *testing.T) {
	hub := NewHub(logging.Discard(), nil, nil)
	t.Cleanup(hub.Shutdown)

	events := make(chan session.Event)
	hub.Forward(events)

	for i := 0; i < bufferSize*2; i++ {
		select {
		case events <- session.Event{Type: session.EventHostDiscovered}:
		case <-time.After(testTimeout):
			t.Fatalf("event %d was not drained", i)
		}
	}
	close(events)
}

func TestHubRejectsCrossOriginByDefault(t *testing.T) {
	hub := NewHub(logging.Discard(), nil, nil)
	t.Cleanup(hub.Shutdown)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()
}

package webstatus

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bridge "github.com/enVId-tech/Forza-Telemetry-Interpreter"
)

func TestStatusEndpoint(t *testing.T) {
	s := New(bridge.NewStateStore(), time.Second)
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var snap bridge.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.False(t, snap.Running)
	assert.Equal(t, 0, snap.PacketCount)
}

func TestWebsocketPush(t *testing.T) {
	s := New(bridge.NewStateStore(), 10*time.Millisecond)
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		defer resp.Body.Close()
	}
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var snap bridge.Snapshot
	require.NoError(t, conn.ReadJSON(&snap))
	assert.False(t, snap.Running)
}

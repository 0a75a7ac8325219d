package api

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/robmorgan/halofx/dmx"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, s *Server) (*websocket.Conn, func()) {
	t.Helper()
	ts := httptest.NewServer(s.WSRoutes())
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	return conn, func() {
		conn.Close()
		ts.Close()
	}
}

func TestHub_PingReceivesPong(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestServer(t)
	conn, closeAll := dialHub(t, s)
	defer closeAll()

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp map[string]string
	require.NoError(t, conn.ReadJSON(&resp))
	require.Equal(t, "pong", resp["type"])
}

func TestHub_FxStateRequestReturnsCurrentBPM(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestServer(t)
	conn, closeAll := dialHub(t, s)
	defer closeAll()

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "fxState"}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp map[string]interface{}
	require.NoError(t, conn.ReadJSON(&resp))
	require.Equal(t, "fxState", resp["type"])
	require.Equal(t, 120.0, resp["bpm"])
}

func TestHub_SetFxBpmBroadcastsStateAndBeatSync(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestServer(t)
	conn, closeAll := dialHub(t, s)
	defer closeAll()

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "setFxBpm", "bpm": 140}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var fxState map[string]interface{}
	require.NoError(t, conn.ReadJSON(&fxState))
	require.Equal(t, "fxState", fxState["type"])
	require.Equal(t, 140.0, fxState["bpm"])

	var beatSync map[string]interface{}
	require.NoError(t, conn.ReadJSON(&beatSync))
	require.Equal(t, "beatSync", beatSync["type"])
	require.Equal(t, -1.0, beatSync["beatNumber"])
}

func TestHub_UpdateChannelAppliesWriteAndWakesTransmitter(t *testing.T) {
	t.Parallel()
	s, _, engines := newTestServer(t)

	var u dmx.Universe
	for universe := range engines {
		u = universe
	}
	transmitter, err := dmx.NewUniverseTransmitter(u, "127.0.0.1:6454", false, nil)
	require.NoError(t, err)
	s.SetTransmitters(map[dmx.Universe]*dmx.UniverseTransmitter{u: transmitter})

	conn, closeAll := dialHub(t, s)
	defer closeAll()

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type":     "updateChannel",
		"universe": u,
		"id":       1,
		"level":    200,
	}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp map[string]interface{}
	require.NoError(t, conn.ReadJSON(&resp))
	require.Equal(t, "channelState", resp["type"])

	v, err := engines[u].Value(1)
	require.NoError(t, err)
	require.Equal(t, byte(200), v)
}

func TestHub_UnknownMessageTypeReturnsErrorFrame(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestServer(t)
	conn, closeAll := dialHub(t, s)
	defer closeAll()

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "notARealMessageType"}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp map[string]string
	require.NoError(t, conn.ReadJSON(&resp))
	require.Equal(t, "error", resp["type"])
}

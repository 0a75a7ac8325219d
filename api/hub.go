package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/robmorgan/halofx/dmx"
	"github.com/robmorgan/halofx/logging"
	"github.com/robmorgan/halofx/rhythm"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans fxState/fxChanged/beatSync/channelState pushes out to every
// connected WebSocket client and dispatches each client's inbound control
// messages back onto the Server. One Hub per Server.
type Hub struct {
	server *Server
	log    *logrus.Entry

	mu      sync.Mutex
	clients map[uuid.UUID]*wsClient

	beatsSinceSync int
}

// NewHub returns a Hub bound to server. Call AddClockListener once the
// MasterClock it reads BPM from is constructed, to start beat-sync pushes.
func NewHub(server *Server) *Hub {
	return &Hub{
		server:  server,
		log:     logging.GetProjectLogger().WithField("component", "ws"),
		clients: make(map[uuid.UUID]*wsClient),
	}
}

// AddClockListener subscribes the hub to clk so it can push a beatSync
// message every 16 beats, matching the documented cadence.
func (h *Hub) AddClockListener(clk *rhythm.MasterClock) {
	clk.AddListener(func(t rhythm.Tick) {
		if !t.IsBeat {
			return
		}
		h.mu.Lock()
		h.beatsSinceSync++
		due := h.beatsSinceSync >= 16
		if due {
			h.beatsSinceSync = 0
		}
		h.mu.Unlock()
		if due {
			h.broadcastBeatSync(int64(t.Index / rhythm.TicksPerBeat))
		}
	})
}

type wsClient struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan interface{}
}

// ServeHTTP upgrades the request to a WebSocket connection and runs the
// client's read/write pumps until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	client := &wsClient{id: uuid.New(), conn: conn, send: make(chan interface{}, 16)}

	h.mu.Lock()
	h.clients[client.id] = client
	h.mu.Unlock()

	h.log.WithField("client", client.id).Info("websocket client connected")

	go h.writePump(client)
	h.readPump(client)
}

func (h *Hub) readPump(c *wsClient) {
	defer h.disconnect(c)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		h.handleInbound(c, data)
	}
}

func (h *Hub) writePump(c *wsClient) {
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (h *Hub) disconnect(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	close(c.send)
	_ = c.conn.Close()
	h.log.WithField("client", c.id).Info("websocket client disconnected")
}

func (h *Hub) send(c *wsClient, msg interface{}) {
	select {
	case c.send <- msg:
	default:
		h.log.WithField("client", c.id).Warn("dropping message: client send buffer full")
	}
}

func (h *Hub) broadcast(msg interface{}) {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		h.send(c, msg)
	}
}

type inboundEnvelope struct {
	Type string `json:"type"`

	BPM          float64      `json:"bpm"`
	EffectID     uint64       `json:"effectId"`
	Universe     dmx.Universe `json:"universe"`
	ChannelID    int          `json:"id"`
	Level        int          `json:"level"`
	FadeTimeMs   int          `json:"fadeTime"`
}

func (h *Hub) handleInbound(c *wsClient, data []byte) {
	var msg inboundEnvelope
	if err := json.Unmarshal(data, &msg); err != nil {
		h.send(c, errorFrame("malformed message: "+err.Error()))
		return
	}

	switch msg.Type {
	case "ping":
		h.send(c, map[string]string{"type": "pong"})
	case "fxState":
		h.send(c, h.fxStateMessage())
	case "setFxBpm":
		if err := validateBPM(msg.BPM); err != nil {
			h.send(c, errorFrame(err.Error()))
			return
		}
		h.server.clock.SetBPM(msg.BPM)
		h.broadcastFxState()
		h.broadcastBeatSync(-1)
	case "tapTempo":
		h.server.clock.Tap(time.Now())
		h.broadcastFxState()
	case "removeFx":
		h.server.engine.RemoveEffect(msg.EffectID)
		h.server.forgetEffect(msg.EffectID)
		h.broadcastFxChanged("removed", msg.EffectID)
	case "pauseFx":
		if err := h.server.engine.Pause(msg.EffectID); err != nil {
			h.send(c, errorFrame(err.Error()))
			return
		}
		h.broadcastFxChanged("paused", msg.EffectID)
	case "resumeFx":
		if err := h.server.engine.Resume(msg.EffectID); err != nil {
			h.send(c, errorFrame(err.Error()))
			return
		}
		h.broadcastFxChanged("resumed", msg.EffectID)
	case "clearFx":
		h.server.engine.ClearAll()
		h.server.mu.Lock()
		h.server.names = make(map[uint64]effectMeta)
		h.server.mu.Unlock()
		h.broadcastFxChanged("cleared", 0)
	case "requestBeatSync":
		h.broadcastBeatSync(-1)
	case "updateChannel":
		h.handleUpdateChannel(c, msg)
	case "channelState":
		h.send(c, h.channelStateMessage())
	case "channelMappingState":
		h.send(c, h.channelMappingStateMessage())
	default:
		h.send(c, errorFrame("unknown message type "+msg.Type))
	}
}

func (h *Hub) handleUpdateChannel(c *wsClient, msg inboundEnvelope) {
	engine, ok := h.server.engines[msg.Universe]
	if !ok {
		h.send(c, errorFrame("unknown universe"))
		return
	}
	if err := dmx.ValidateValue(msg.Level); err != nil {
		h.send(c, errorFrame(err.Error()))
		return
	}
	if err := engine.Set(msg.ChannelID, dmx.ChannelChange{TargetValue: byte(msg.Level), FadeMs: msg.FadeTimeMs}); err != nil {
		h.send(c, errorFrame(err.Error()))
		return
	}
	h.server.requestTransmit(msg.Universe)
	h.broadcast(h.channelStateMessage())
}

func errorFrame(message string) map[string]string {
	return map[string]string{"type": "error", "message": message}
}

// --- outbound message builders ---

func (h *Hub) fxStateMessage() map[string]interface{} {
	snap := h.server.engine.Snapshot()
	effects := make([]EffectDto, 0, len(snap))
	for _, inst := range snap {
		effects = append(effects, h.server.toEffectDto(inst))
	}
	return map[string]interface{}{
		"type":           "fxState",
		"bpm":            h.server.clock.BPM(),
		"isClockRunning": h.server.clock.IsRunning(),
		"activeEffects":  effects,
	}
}

func (h *Hub) broadcastFxState() {
	h.broadcast(h.fxStateMessage())
}

func (h *Hub) broadcastFxChanged(changeType string, effectID uint64) {
	h.broadcast(map[string]interface{}{
		"type":       "fxChanged",
		"changeType": changeType,
		"effectId":   effectID,
	})
}

func (h *Hub) broadcastBeatSync(beatNumber int64) {
	h.broadcast(map[string]interface{}{
		"type":        "beatSync",
		"beatNumber":  beatNumber,
		"bpm":         h.server.clock.BPM(),
		"timestampMs": time.Now().UnixMilli(),
	})
}

type channelStateEntry struct {
	Universe     dmx.Universe `json:"universe"`
	ID           int          `json:"id"`
	CurrentLevel byte         `json:"currentLevel"`
}

func (h *Hub) channelStateMessage() map[string]interface{} {
	var channels []channelStateEntry
	for u, engine := range h.server.engines {
		frame := engine.Snapshot()
		for i, v := range frame {
			if v == 0 {
				continue
			}
			channels = append(channels, channelStateEntry{Universe: u, ID: i + 1, CurrentLevel: v})
		}
	}
	return map[string]interface{}{"type": "channelState", "channels": channels}
}

type fixtureMappingEntry struct {
	Key         string `json:"key"`
	DisplayName string `json:"displayName"`
}

func (h *Hub) channelMappingStateMessage() map[string]interface{} {
	keys := h.server.registry.FixtureKeys()
	fixtures := make([]fixtureMappingEntry, 0, len(keys))
	for _, key := range keys {
		f, ok := h.server.registry.Fixture(key)
		if !ok {
			continue
		}
		fixtures = append(fixtures, fixtureMappingEntry{Key: f.Key, DisplayName: f.DisplayName})
	}
	return map[string]interface{}{"type": "channelMappingState", "fixtures": fixtures}
}

package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/sensor-net-proxy/internal/infrastructure/config"
)

// WebSocket frame types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	wsSendBufferSize = 256
)

// WSMessage is a frame exchanged with a websocket client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload of subscribe and unsubscribe frames.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// wsRequest is a client frame as read off the wire; the payload is decoded
// once the type is known.
type wsRequest struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// Origins are enforced by corsMiddleware.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// WSClient is one websocket connection and its channel subscriptions.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu       sync.Mutex
	channels map[string]struct{}
	closed   bool
}

func newWSClient(hub *Hub, conn *websocket.Conn, buffer int, channels ...string) *WSClient {
	c := &WSClient{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, buffer),
		channels: make(map[string]struct{}, len(channels)),
	}
	for _, ch := range channels {
		c.channels[ch] = struct{}{}
	}
	return c
}

// handleWebSocket upgrades the request. Clients may pre-subscribe with
// ?channels=messages,node.12 or send subscribe frames later.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := newWSClient(s.hub, conn, wsSendBufferSize, splitChannels(r.URL.Query().Get("channels"))...)
	s.hub.Register(c)

	go c.writePump(s.wsCfg)
	go c.readPump(s.wsCfg)
}

// enqueue queues a frame without blocking. It reports false when the
// client is closed or its buffer is full.
func (c *WSClient) enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// shutdown closes the send queue once, which ends writePump.
func (c *WSClient) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *WSClient) subscribed(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.channels[channel]
	return ok
}

func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	if cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	}
	idle := pingInterval(cfg) + pongWait(cfg)
	extend := func(string) error { return c.conn.SetReadDeadline(time.Now().Add(idle)) }
	_ = extend("") //nolint:errcheck // a failed deadline surfaces as a read error
	c.conn.SetPongHandler(extend)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		_ = extend("") //nolint:errcheck // see above
		c.handle(data)
	}
}

func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	ping := time.NewTicker(pingInterval(cfg))
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	wait := pongWait(cfg)
	write := func(kind int, data []byte) error {
		_ = c.conn.SetWriteDeadline(time.Now().Add(wait)) //nolint:errcheck // write below fails instead
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				_ = write(websocket.CloseMessage, nil) //nolint:errcheck // closing anyway
				return
			}
			if write(websocket.TextMessage, frame) != nil {
				return
			}
		case <-ping.C:
			if write(websocket.PingMessage, nil) != nil {
				return
			}
		}
	}
}

// handle answers one client frame.
func (c *WSClient) handle(data []byte) {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.reply("", WSTypeError, errorPayload("invalid JSON message"))
		return
	}

	switch req.Type {
	case WSTypeSubscribe, WSTypeUnsubscribe:
		var sub WSSubscribePayload
		if len(req.Payload) == 0 || json.Unmarshal(req.Payload, &sub) != nil {
			c.reply(req.ID, WSTypeError, errorPayload("invalid "+req.Type+" payload"))
			return
		}
		c.updateChannels(req.Type == WSTypeSubscribe, sub.Channels)
		key := req.Type + "d"
		c.reply(req.ID, WSTypeResponse, map[string]any{key: sub.Channels})
	case WSTypePing:
		c.reply(req.ID, WSTypePong, nil)
	default:
		c.reply(req.ID, WSTypeError, errorPayload("unknown message type: "+req.Type))
	}
}

func (c *WSClient) updateChannels(add bool, channels []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range channels {
		if add {
			c.channels[ch] = struct{}{}
		} else {
			delete(c.channels, ch)
		}
	}
}

func (c *WSClient) reply(id, kind string, payload any) {
	frame, err := json.Marshal(WSMessage{
		Type:      kind,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.enqueue(frame)
}

func errorPayload(msg string) map[string]string {
	return map[string]string{"message": msg}
}

func pingInterval(cfg config.WebSocketConfig) time.Duration {
	if cfg.PingInterval <= 0 {
		return 30 * time.Second
	}
	return time.Duration(cfg.PingInterval) * time.Second
}

func pongWait(cfg config.WebSocketConfig) time.Duration {
	if cfg.PongTimeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(cfg.PongTimeout) * time.Second
}

func splitChannels(s string) []string {
	var out []string
	for _, ch := range strings.Split(s, ",") {
		if ch = strings.TrimSpace(ch); ch != "" {
			out = append(out, ch)
		}
	}
	return out
}

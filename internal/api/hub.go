package api

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/sensor-net-proxy/internal/bridges/mysensors"
	"github.com/nerrad567/sensor-net-proxy/internal/infrastructure/config"
	"github.com/nerrad567/sensor-net-proxy/internal/infrastructure/logging"
)

// Broadcast channels. Every inbound message goes to ChannelMessages and to
// the per-node channel "node.{id}".
const (
	ChannelMessages   = "messages"
	channelNodePrefix = "node."
)

// NodeChannel returns the channel carrying messages from one node.
func NodeChannel(nodeID int) string {
	return channelNodePrefix + strconv.Itoa(nodeID)
}

// Hub fans inbound sensor messages out to websocket clients by channel.
// It implements mysensors.Sink and never blocks the event loop: a client
// whose buffer is full misses the message.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*WSClient]struct{}

	dropped atomic.Uint64
}

// NewHub returns an empty hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.shutdown()
	}
}

// Register adds a client.
func (h *Hub) Register(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

// Unregister removes a client and closes its send queue. Calling it twice
// is harmless.
func (h *Hub) Unregister(c *WSClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	c.shutdown()
	h.logger.Debug("websocket client disconnected", "clients", n)
}

// Publish broadcasts the state form of in on ChannelMessages and on the
// node's channel.
func (h *Hub) Publish(_ context.Context, in mysensors.Inbound) error {
	state := mysensors.NewStateMessage(in)
	h.Broadcast(ChannelMessages, state)
	h.Broadcast(NodeChannel(in.Message.NodeID), state)
	return nil
}

// Broadcast sends payload as an event to every client subscribed to channel.
func (h *Hub) Broadcast(channel string, payload any) {
	targets := h.subscribers(channel)
	if len(targets) == 0 {
		return
	}

	frame, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("encoding websocket event", "channel", channel, "error", err)
		return
	}

	for _, c := range targets {
		if !c.enqueue(frame) {
			h.dropped.Add(1)
		}
	}
}

// subscribers snapshots the clients subscribed to channel. The hub lock is
// released before any client lock is taken.
func (h *Hub) subscribers(channel string) []*WSClient {
	h.mu.RLock()
	all := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		all = append(all, c)
	}
	h.mu.RUnlock()

	out := all[:0]
	for _, c := range all {
		if c.subscribed(channel) {
			out = append(out, c)
		}
	}
	return out
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many events were discarded for slow or closed clients.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

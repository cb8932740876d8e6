package inventory

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/sensor-net-proxy/internal/bridges/mysensors"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry keeps the node inventory up to date from inbound traffic.
// It wraps a Repository and adds an in-memory cache for fast lookups.
//
// The cache is populated on startup via RefreshCache() and every observed
// message is written through to the repository.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[int]*Node
	cacheMu sync.RWMutex
	logger  Logger
}

// NewRegistry creates a new node registry backed by repo.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[int]*Node),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// RefreshCache reloads all nodes from the repository into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	nodes, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading nodes: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[int]*Node, len(nodes))
	for i := range nodes {
		r.cache[nodes[i].ID] = nodes[i].DeepCopy()
	}

	r.logger.Info("node cache refreshed", "count", len(nodes))
	return nil
}

// GetNode returns a copy of the node with the given ID.
func (r *Registry) GetNode(ctx context.Context, id int) (*Node, error) {
	if !ValidNodeID(id) {
		return nil, ErrInvalidNode
	}

	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()
	if ok {
		return cached.DeepCopy(), nil
	}

	node, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[id] = node.DeepCopy()
	r.cacheMu.Unlock()

	return node, nil
}

// ListNodes returns copies of every cached node ordered by ID.
func (r *Registry) ListNodes() []Node {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	nodes := make([]Node, 0, len(r.cache))
	for _, n := range r.cache {
		nodes = append(nodes, *n.DeepCopy())
	}
	slices.SortFunc(nodes, func(a, b Node) int { return a.ID - b.ID })
	return nodes
}

// DeleteNode forgets a node. It reappears the next time it sends anything.
func (r *Registry) DeleteNode(ctx context.Context, id int) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("node deleted", "node_id", id)
	return nil
}

// Count returns the number of known nodes.
func (r *Registry) Count() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// Publish implements mysensors.Sink. It applies the message to the node it
// came from and persists the result.
func (r *Registry) Publish(ctx context.Context, in mysensors.Inbound) error {
	msg := in.Message
	if !ValidNodeID(msg.NodeID) {
		return nil
	}

	ts := in.ReceivedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	r.cacheMu.Lock()
	node, known := r.cache[msg.NodeID]
	if !known {
		node = &Node{ID: msg.NodeID, FirstSeen: ts}
	}
	updated := node.DeepCopy()
	apply(updated, in, ts)
	r.cache[msg.NodeID] = updated
	snapshot := updated.DeepCopy()
	r.cacheMu.Unlock()

	if !known {
		r.logger.Info("new node discovered", "node_id", msg.NodeID, "gateway", snapshot.Gateway)
	}

	if err := r.repo.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("saving node %d: %w", msg.NodeID, err)
	}
	return nil
}

// apply folds one message into the node.
func apply(n *Node, in mysensors.Inbound, ts time.Time) {
	msg := in.Message

	n.LastSeen = ts
	n.MessageCount++
	if in.Gateway != nil {
		n.Gateway = in.Gateway.String()
	}

	switch msg.Type {
	case mysensors.MessageTypePresentation:
		if msg.ChildID == mysensors.NodeChildID {
			n.Repeater = mysensors.SensorType(msg.SubType) == mysensors.SensorArduinoRepeaterNode
			n.LibraryVersion = msg.Payload
			return
		}
		c := n.child(msg.ChildID)
		sensorType := msg.SubType
		c.SensorType = &sensorType
		c.Description = msg.Payload

	case mysensors.MessageTypeSet:
		if msg.ChildID == mysensors.NodeChildID {
			return
		}
		c := n.child(msg.ChildID)
		valueType := msg.SubType
		c.LastValue = msg.Payload
		c.LastValueType = &valueType
		seen := ts
		c.LastSeen = &seen

	case mysensors.MessageTypeInternal:
		switch mysensors.InternalType(msg.SubType) {
		case mysensors.InternalBatteryLevel:
			if level, err := strconv.Atoi(strings.TrimSpace(msg.Payload)); err == nil && level >= 0 && level <= 100 {
				n.BatteryLevel = &level
			}
		case mysensors.InternalSketchName:
			n.SketchName = msg.Payload
		case mysensors.InternalSketchVersion:
			n.SketchVersion = msg.Payload
		}
	}
}

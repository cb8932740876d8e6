package mysensors

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"
)

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// Dedupe keeps one entry per (remote address, socket). When false every
	// discovery appends an entry and a re-discovered gateway receives
	// forwarded messages once per registration.
	Dedupe bool

	// WriteTimeout bounds each send. Zero means no deadline.
	WriteTimeout time.Duration

	// Logger is optional.
	Logger Logger
}

// Registry holds the broadcast-to-unicast mappings created at bind time and
// the gateways learned through discovery.
//
// Mappings are immutable after construction. Gateways are only added by the
// event loop goroutine; the lock lets status readers take snapshots.
type Registry struct {
	mappings map[netip.Addr]BroadcastMapping

	gateways []GatewayEndpoint
	mu       sync.RWMutex

	dedupe       bool
	writeTimeout time.Duration
	logger       Logger
}

// NewRegistry creates a registry seeded with the mappings of bound.
func NewRegistry(bound *BoundInterface, opts RegistryOptions) *Registry {
	r := &Registry{
		mappings:     make(map[netip.Addr]BroadcastMapping),
		dedupe:       opts.Dedupe,
		writeTimeout: opts.WriteTimeout,
		logger:       loggerOrNoop(opts.Logger),
	}
	if bound != nil {
		for _, m := range bound.Mappings {
			r.mappings[m.Broadcast] = m
		}
	}
	return r
}

// ResolveListenSocket returns the unicast address and socket paired with a
// broadcast address.
//
// Returns:
//   - BroadcastMapping: The pairing recorded at bind time
//   - error: ErrNoBroadcastMapping if the broadcast address was never bound
func (r *Registry) ResolveListenSocket(bcast netip.Addr) (BroadcastMapping, error) {
	m, ok := r.mappings[bcast]
	if !ok {
		return BroadcastMapping{}, fmt.Errorf("%w: %s", ErrNoBroadcastMapping, bcast)
	}
	return m, nil
}

// RegisterGateway records a gateway and the socket that owns its session.
// It reports whether a new entry was added; with Dedupe enabled a repeat
// registration is ignored.
func (r *Registry) RegisterGateway(remote net.Addr, sock *ListenSocket) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, gw := range r.gateways {
		if gw.Socket == sock && gw.Remote.String() == remote.String() {
			if r.dedupe {
				r.logger.Debug("gateway already registered", "gateway", remote.String(), "socket", sock.String())
				return false
			}
			r.logger.Warn("gateway registered again, it will receive duplicate messages",
				"gateway", remote.String(), "socket", sock.String())
			break
		}
	}

	r.gateways = append(r.gateways, GatewayEndpoint{
		Remote:       remote,
		Socket:       sock,
		RegisteredAt: time.Now().UTC(),
	})
	r.logger.Info("gateway registered", "gateway", remote.String(), "socket", sock.String(), "gateways", len(r.gateways))
	return true
}

// ForwardToAllGateways serialises msg once and sends it to every registered
// gateway from its owning socket, in registration order.
//
// A failed send is logged and does not stop the remaining sends.
//
// Returns:
//   - int: Number of gateways the message was sent to
//   - error: ErrMalformed if the message cannot be serialised, otherwise the
//     joined send failures (nil when every send succeeded)
func (r *Registry) ForwardToAllGateways(msg Message) (int, error) {
	if err := msg.Validate(); err != nil {
		return 0, err
	}
	data := msg.Encode()
	gateways := r.Gateways()

	r.logger.Info("sending message to gateways", "message", msg.String(), "gateways", len(gateways))

	sent := 0
	var errs []error
	for _, gw := range gateways {
		r.logger.Debug("sending message to gateway", "gateway", gw.Remote.String())
		if err := gw.Socket.Send(data, gw.Remote, r.writeTimeout); err != nil {
			r.logger.Error("sending message to gateway failed", "gateway", gw.Remote.String(), "error", err)
			errs = append(errs, err)
			continue
		}
		sent++
	}
	return sent, errors.Join(errs...)
}

// Gateways returns a snapshot of the registered gateways.
func (r *Registry) Gateways() []GatewayEndpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]GatewayEndpoint, len(r.gateways))
	copy(out, r.gateways)
	return out
}

// Len returns the number of registered gateways.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.gateways)
}

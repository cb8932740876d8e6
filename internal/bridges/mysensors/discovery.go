package mysensors

import (
	"fmt"
	"time"
)

// DiscoveryResponder answers controller-discovery broadcasts.
type DiscoveryResponder struct {
	registry     *Registry
	writeTimeout time.Duration
	logger       Logger
}

// NewDiscoveryResponder creates a responder that resolves reply sockets and
// records gateways in registry.
func NewDiscoveryResponder(registry *Registry, writeTimeout time.Duration, logger Logger) *DiscoveryResponder {
	return &DiscoveryResponder{
		registry:     registry,
		writeTimeout: writeTimeout,
		logger:       loggerOrNoop(logger),
	}
}

// Handle processes one datagram received on a broadcast socket.
//
// A valid request is answered from the paired unicast socket with the
// request echoed back and its payload replaced by the unicast IPv4 address.
// The sender is then registered as a gateway, even if the reply could not
// be sent.
//
// Returns:
//   - error: ErrMalformed or ErrUnexpectedDiscoveryType (wrapped) when the
//     request is dropped; ErrNoBroadcastMapping when the receiving socket has
//     no paired unicast socket, which callers must treat as fatal
func (d *DiscoveryResponder) Handle(dg Datagram) error {
	from := dg.From.String()
	d.logger.Info("received dynamic discovery request", "gateway", from)
	d.logger.Debug("received raw message", "gateway", from, "raw", string(dg.Data))

	msg, err := ParseDatagram(dg.Data)
	if err != nil {
		d.logger.Warn("dropping malformed discovery request", "gateway", from, "error", err)
		return fmt.Errorf("discovery request from %s: %w", from, err)
	}

	if !msg.IsDiscovery() {
		d.logger.Warn("bogus message on discovery socket",
			"gateway", from,
			"type", msg.Type.String(),
			"sub_type", msg.SubTypeName())
		return fmt.Errorf("%w: %s/%s from %s", ErrUnexpectedDiscoveryType, msg.Type, msg.SubTypeName(), from)
	}

	mapping, err := d.registry.ResolveListenSocket(dg.Socket.Addr)
	if err != nil {
		return err
	}

	reply := msg.WithPayload(mapping.Unicast.String())
	d.logger.Debug("sending discovery reply", "gateway", from, "raw", reply.String())
	if err := mapping.Socket.Send(reply.Encode(), dg.From, d.writeTimeout); err != nil {
		d.logger.Error("sending discovery reply failed", "gateway", from, "error", err)
	}

	d.registry.RegisterGateway(dg.From, mapping.Socket)
	return nil
}

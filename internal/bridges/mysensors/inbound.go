package mysensors

import (
	"context"
	"fmt"
	"time"
)

// InboundDispatcher decodes datagrams from unicast sockets and publishes
// them to the sink.
type InboundDispatcher struct {
	sink    Sink
	timeout time.Duration
	logger  Logger
}

// NewInboundDispatcher creates a dispatcher. A positive timeout bounds each
// publish call.
func NewInboundDispatcher(sink Sink, timeout time.Duration, logger Logger) *InboundDispatcher {
	return &InboundDispatcher{
		sink:    sink,
		timeout: timeout,
		logger:  loggerOrNoop(logger),
	}
}

// Handle decodes one datagram and publishes it.
//
// Returns:
//   - Message: The decoded message (zero value on parse failure)
//   - error: ErrMalformed (wrapped) for an undecodable datagram, or the
//     sink's error prefixed with "publishing message"
func (d *InboundDispatcher) Handle(ctx context.Context, dg Datagram) (Message, error) {
	from := dg.From.String()
	d.logger.Info("received message", "gateway", from)
	d.logger.Debug("received raw message", "gateway", from, "raw", string(dg.Data))

	msg, err := ParseDatagram(dg.Data)
	if err != nil {
		d.logger.Warn("dropping malformed message", "gateway", from, "error", err)
		return Message{}, fmt.Errorf("message from %s: %w", from, err)
	}

	d.logger.Debug(from+" > "+msg.String(),
		"type", msg.Type.String(),
		"sub_type", msg.SubTypeName())

	if d.sink == nil {
		return msg, nil
	}

	pctx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	in := Inbound{Message: msg, Gateway: dg.From, ReceivedAt: time.Now().UTC()}
	if err := d.sink.Publish(pctx, in); err != nil {
		return msg, fmt.Errorf("publishing message: %w", err)
	}
	return msg, nil
}

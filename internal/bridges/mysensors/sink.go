package mysensors

import (
	"context"
	"errors"
	"net"
	"time"
)

// Inbound is a decoded message together with where and when it arrived.
type Inbound struct {
	Message    Message
	Gateway    net.Addr
	ReceivedAt time.Time
}

// Sink receives every decoded inbound message.
// Publish is called from the event loop goroutine and should not block for
// long; the context carries the per-message handling deadline.
type Sink interface {
	Publish(ctx context.Context, in Inbound) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, in Inbound) error

// Publish calls f.
func (f SinkFunc) Publish(ctx context.Context, in Inbound) error {
	return f(ctx, in)
}

// MultiSink publishes to every sink in order. A failing sink does not stop
// the others; the failures are joined.
type MultiSink []Sink

// Publish implements Sink.
func (m MultiSink) Publish(ctx context.Context, in Inbound) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Publish(ctx, in); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package mysensors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Event loop constants.
const (
	// DefaultReadBufferSize is the largest datagram accepted (2^16 bytes).
	DefaultReadBufferSize = 1 << 16

	// datagramQueueSize bounds the datagrams buffered between the socket
	// readers and the dispatch goroutine.
	datagramQueueSize = 64
)

// LoopOptions holds the components driven by a Loop.
type LoopOptions struct {
	// Bound is the interface whose sockets are read. Required.
	Bound *BoundInterface

	// Registry resolves broadcast mappings and forwards outbound messages. Required.
	Registry *Registry

	// Discovery handles datagrams on broadcast sockets. Required when Bound
	// has broadcast sockets.
	Discovery *DiscoveryResponder

	// Inbound handles datagrams on unicast sockets. Required.
	Inbound *InboundDispatcher

	// ReadBufferSize defaults to DefaultReadBufferSize.
	ReadBufferSize int

	// Logger is optional.
	Logger Logger
}

// LoopStats is a snapshot of the event loop counters.
type LoopStats struct {
	DatagramsReceived   uint64    `json:"datagrams_received"`
	Malformed           uint64    `json:"malformed"`
	DiscoveriesAccepted uint64    `json:"discoveries_accepted"`
	DiscoveriesRejected uint64    `json:"discoveries_rejected"`
	MessagesPublished   uint64    `json:"messages_published"`
	PublishFailures     uint64    `json:"publish_failures"`
	ForwardsSent        uint64    `json:"forwards_sent"`
	ForwardFailures     uint64    `json:"forward_failures"`
	Gateways            int       `json:"gateways"`
	Sockets             int       `json:"sockets"`
	Running             bool      `json:"running"`
	LastActivity        time.Time `json:"last_activity,omitzero"`
}

// outboundRequest is a message handed to the dispatch goroutine by Submit.
type outboundRequest struct {
	msg    Message
	result chan forwardResult
}

type forwardResult struct {
	sent int
	err  error
}

// Loop multiplexes every bound socket onto one dispatch goroutine.
//
// Reader goroutines only receive; decoding, discovery replies, gateway
// registration and outbound forwarding all run on the goroutine that called
// Run, one event at a time.
type Loop struct {
	bound     *BoundInterface
	registry  *Registry
	discovery *DiscoveryResponder
	inbound   *InboundDispatcher
	bufSize   int
	logger    Logger

	datagrams chan Datagram
	outbound  chan outboundRequest
	done      chan struct{}
	started   atomic.Bool
	running   atomic.Bool

	// Statistics (atomic)
	datagramsRx         atomic.Uint64
	malformed           atomic.Uint64
	discoveriesAccepted atomic.Uint64
	discoveriesRejected atomic.Uint64
	published           atomic.Uint64
	publishFailures     atomic.Uint64
	forwardsSent        atomic.Uint64
	forwardFailures     atomic.Uint64
	lastActivity        atomic.Int64
}

// NewLoop validates the options and creates a loop ready to Run.
func NewLoop(opts LoopOptions) (*Loop, error) {
	if opts.Bound == nil {
		return nil, fmt.Errorf("bound interface is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if opts.Inbound == nil {
		return nil, fmt.Errorf("inbound dispatcher is required")
	}
	if len(opts.Bound.Broadcast) > 0 && opts.Discovery == nil {
		return nil, fmt.Errorf("discovery responder is required for broadcast sockets")
	}

	bufSize := opts.ReadBufferSize
	if bufSize <= 0 {
		bufSize = DefaultReadBufferSize
	}

	return &Loop{
		bound:     opts.Bound,
		registry:  opts.Registry,
		discovery: opts.Discovery,
		inbound:   opts.Inbound,
		bufSize:   bufSize,
		logger:    loggerOrNoop(opts.Logger),
		datagrams: make(chan Datagram, datagramQueueSize),
		outbound:  make(chan outboundRequest),
		done:      make(chan struct{}),
	}, nil
}

// Run services the sockets until ctx is cancelled or a fatal error occurs.
//
// Every socket of the bound interface is closed exactly once before Run
// returns, on every exit path, and all reader goroutines have exited.
// Run may only be called once.
//
// Returns:
//   - error: nil after cancellation; otherwise the fatal error (a socket read
//     failure or ErrNoBroadcastMapping)
func (l *Loop) Run(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return fmt.Errorf("mysensors: event loop already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	sockets := l.bound.Sockets()
	readErrs := make(chan error, len(sockets))

	var wg sync.WaitGroup
	for _, s := range sockets {
		wg.Add(1)
		go l.readLoop(ctx, s, &wg, readErrs)
	}

	l.running.Store(true)
	l.logger.Info("event loop started", "interface", l.bound.Name, "port", l.bound.Port, "sockets", len(sockets))

	defer func() {
		l.running.Store(false)
		cancel()
		close(l.done)
		l.logger.Debug("closing all sockets")
		if err := l.bound.Close(); err != nil {
			l.logger.Warn("closing sockets", "error", err)
		}
		wg.Wait()
		l.logger.Info("event loop stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-readErrs:
			return err

		case dg := <-l.datagrams:
			if err := l.dispatch(ctx, dg); err != nil {
				return err
			}

		case req := <-l.outbound:
			sent, err := l.registry.ForwardToAllGateways(req.msg)
			l.forwardsSent.Add(uint64(sent)) //nolint:gosec // sent is never negative
			if err != nil {
				l.forwardFailures.Add(1)
			}
			req.result <- forwardResult{sent: sent, err: err}
		}
	}
}

// Submit asks the loop to forward msg to every registered gateway and waits
// for the result. It is safe to call from any goroutine.
//
// Returns:
//   - int: Number of gateways the message was sent to
//   - error: ErrMalformed for an unrepresentable message, ErrLoopStopped
//     once Run has returned, the context error, or joined send failures
func (l *Loop) Submit(ctx context.Context, msg Message) (int, error) {
	if err := msg.Validate(); err != nil {
		return 0, err
	}

	req := outboundRequest{msg: msg, result: make(chan forwardResult, 1)}
	select {
	case l.outbound <- req:
	case <-l.done:
		return 0, ErrLoopStopped
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	select {
	case res := <-req.result:
		return res.sent, res.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Stats returns a snapshot of the loop counters.
func (l *Loop) Stats() LoopStats {
	st := LoopStats{
		DatagramsReceived:   l.datagramsRx.Load(),
		Malformed:           l.malformed.Load(),
		DiscoveriesAccepted: l.discoveriesAccepted.Load(),
		DiscoveriesRejected: l.discoveriesRejected.Load(),
		MessagesPublished:   l.published.Load(),
		PublishFailures:     l.publishFailures.Load(),
		ForwardsSent:        l.forwardsSent.Load(),
		ForwardFailures:     l.forwardFailures.Load(),
		Gateways:            l.registry.Len(),
		Sockets:             len(l.bound.Unicast) + len(l.bound.Broadcast),
		Running:             l.running.Load(),
	}
	if ts := l.lastActivity.Load(); ts > 0 {
		st.LastActivity = time.Unix(ts, 0).UTC()
	}
	return st
}

// IsRunning reports whether Run is servicing sockets.
func (l *Loop) IsRunning() bool {
	return l.running.Load()
}

// dispatch routes one datagram. Only a missing broadcast mapping is fatal.
func (l *Loop) dispatch(ctx context.Context, dg Datagram) error {
	l.datagramsRx.Add(1)
	l.lastActivity.Store(time.Now().Unix())

	if dg.Socket.Broadcast {
		err := l.discovery.Handle(dg)
		switch {
		case err == nil:
			l.discoveriesAccepted.Add(1)
		case errors.Is(err, ErrNoBroadcastMapping):
			return err
		case errors.Is(err, ErrMalformed):
			l.malformed.Add(1)
			l.discoveriesRejected.Add(1)
		default:
			l.discoveriesRejected.Add(1)
		}
		return nil
	}

	_, err := l.inbound.Handle(ctx, dg)
	switch {
	case err == nil:
		l.published.Add(1)
	case errors.Is(err, ErrMalformed):
		l.malformed.Add(1)
	default:
		l.publishFailures.Add(1)
		l.logger.Error("publishing message failed", "gateway", dg.From.String(), "error", err)
	}
	return nil
}

// readLoop receives datagrams from one socket until it is closed.
func (l *Loop) readLoop(ctx context.Context, s *ListenSocket, wg *sync.WaitGroup, errs chan<- error) {
	defer wg.Done()

	buf := make([]byte, l.bufSize)
	for {
		n, from, err := s.Conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			errs <- fmt.Errorf("reading from %s: %w", s, err)
			return
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		select {
		case l.datagrams <- Datagram{Socket: s, Data: data, From: from}:
		case <-ctx.Done():
			return
		}
	}
}

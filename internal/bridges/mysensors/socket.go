package mysensors

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"
)

// ListenSocket is a bound UDP socket and the IPv4 address it is bound to.
// Broadcast sockets only receive discovery requests; replies and forwarded
// messages always leave through a unicast socket.
type ListenSocket struct {
	Conn      net.PacketConn
	Addr      netip.Addr
	Port      int
	Broadcast bool

	closeOnce sync.Once
	closeErr  error
}

// String returns "addr:port", suffixed with "(broadcast)" for broadcast sockets.
func (s *ListenSocket) String() string {
	hp := netip.AddrPortFrom(s.Addr, uint16(s.Port)).String() //nolint:gosec // port validated at bind time
	if s.Broadcast {
		return hp + " (broadcast)"
	}
	return hp
}

// Send writes b to the remote address. A positive timeout bounds the write.
func (s *ListenSocket) Send(b []byte, to net.Addr, timeout time.Duration) error {
	if timeout > 0 {
		if err := s.Conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return fmt.Errorf("setting write deadline on %s: %w", s, err)
		}
	}
	if _, err := s.Conn.WriteTo(b, to); err != nil {
		return fmt.Errorf("sending to %s from %s: %w", to, s, err)
	}
	return nil
}

// Close closes the socket. Only the first call reaches the connection;
// later calls return the first result.
func (s *ListenSocket) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.Conn.Close()
	})
	return s.closeErr
}

// Datagram is one received datagram and the socket it arrived on.
type Datagram struct {
	Socket *ListenSocket
	Data   []byte
	From   net.Addr
}

// BroadcastMapping pairs a broadcast address with the unicast socket that
// answers discovery requests received on it.
type BroadcastMapping struct {
	Broadcast netip.Addr
	Unicast   netip.Addr
	Socket    *ListenSocket
}

// GatewayEndpoint is a gateway learned through discovery together with the
// unicast socket that owns its session.
type GatewayEndpoint struct {
	Remote       net.Addr
	Socket       *ListenSocket
	RegisteredAt time.Time
}

// BoundInterface is the result of binding a network interface.
type BoundInterface struct {
	Name      string
	Port      int
	Unicast   []*ListenSocket
	Broadcast []*ListenSocket
	Mappings  []BroadcastMapping
}

// Sockets returns every socket, unicast first.
func (b *BoundInterface) Sockets() []*ListenSocket {
	all := make([]*ListenSocket, 0, len(b.Unicast)+len(b.Broadcast))
	all = append(all, b.Unicast...)
	return append(all, b.Broadcast...)
}

// Close closes every socket exactly once and joins the errors.
func (b *BoundInterface) Close() error {
	var errs []error
	for _, s := range b.Sockets() {
		if err := s.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, fmt.Errorf("closing %s: %w", s, err))
		}
	}
	return errors.Join(errs...)
}

package mysensors

import (
	"context"
	"net"
	"net/netip"
	"sync"
	"time"
)

// fakePacket is a datagram queued on a fakeConn.
type fakePacket struct {
	data []byte
	from net.Addr
}

type fakeWrite struct {
	data []byte
	to   string
}

// fakeConn implements net.PacketConn in memory.
type fakeConn struct {
	mu       sync.Mutex
	local    net.Addr
	writes   []fakeWrite
	writeErr map[string]error
	closes   int
	incoming chan fakePacket
	closed   chan struct{}
}

func newFakeConn(local string) *fakeConn {
	return &fakeConn{
		local:    udpAddr(local),
		writeErr: make(map[string]error),
		incoming: make(chan fakePacket, 16),
		closed:   make(chan struct{}),
	}
}

func (c *fakeConn) ReadFrom(b []byte) (int, net.Addr, error) {
	select {
	case p := <-c.incoming:
		return copy(b, p.data), p.from, nil
	case <-c.closed:
		return 0, nil, net.ErrClosed
	}
}

func (c *fakeConn) WriteTo(b []byte, addr net.Addr) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.writeErr[addr.String()]; err != nil {
		return 0, err
	}
	c.writes = append(c.writes, fakeWrite{data: append([]byte(nil), b...), to: addr.String()})
	return len(b), nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	if c.closes == 1 {
		close(c.closed)
	}
	return nil
}

func (c *fakeConn) LocalAddr() net.Addr              { return c.local }
func (c *fakeConn) SetDeadline(time.Time) error      { return nil }
func (c *fakeConn) SetReadDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) deliver(data string, from string) {
	c.incoming <- fakePacket{data: []byte(data), from: udpAddr(from)}
}

func (c *fakeConn) getWrites() []fakeWrite {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]fakeWrite, len(c.writes))
	copy(out, c.writes)
	return out
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

func (c *fakeConn) failWritesTo(addr string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr[addr] = err
}

func udpAddr(s string) *net.UDPAddr {
	return net.UDPAddrFromAddrPort(netip.MustParseAddrPort(s))
}

// newFakeSocket wraps a fakeConn bound to addr:5003.
func newFakeSocket(addr string, broadcast bool) (*ListenSocket, *fakeConn) {
	conn := newFakeConn(addr + ":5003")
	return &ListenSocket{
		Conn:      conn,
		Addr:      netip.MustParseAddr(addr),
		Port:      5003,
		Broadcast: broadcast,
	}, conn
}

// fakeBound builds a bound interface with one unicast/broadcast pair.
func fakeBound() (*BoundInterface, *fakeConn, *fakeConn) {
	uni, uniConn := newFakeSocket("192.168.1.10", false)
	bc, bcConn := newFakeSocket("192.168.1.255", true)
	return &BoundInterface{
		Name:      "eth0",
		Port:      5003,
		Unicast:   []*ListenSocket{uni},
		Broadcast: []*ListenSocket{bc},
		Mappings: []BroadcastMapping{{
			Broadcast: bc.Addr,
			Unicast:   uni.Addr,
			Socket:    uni,
		}},
	}, uniConn, bcConn
}

// mockSink records published messages.
type mockSink struct {
	mu        sync.Mutex
	published []Inbound
	err       error
	notify    chan Inbound
}

func newMockSink() *mockSink {
	return &mockSink{notify: make(chan Inbound, 16)}
}

func (s *mockSink) Publish(_ context.Context, in Inbound) error {
	s.mu.Lock()
	err := s.err
	if err == nil {
		s.published = append(s.published, in)
	}
	s.mu.Unlock()
	if err == nil {
		s.notify <- in
	}
	return err
}

func (s *mockSink) getPublished() []Inbound {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Inbound, len(s.published))
	copy(out, s.published)
	return out
}

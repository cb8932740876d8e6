package mysensors

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
)

// Binder creates the listening sockets for one network interface.
//
// The interface lookup and socket constructor are fields so tests can
// substitute fakes; NewBinder wires the real network stack.
type Binder struct {
	interfaces func() ([]net.Interface, error)
	addrs      func(iface *net.Interface) ([]net.Addr, error)
	listen     func(ctx context.Context, address string) (net.PacketConn, error)
	logger     Logger
}

// NewBinder returns a Binder using the host's interfaces and UDP sockets with
// SO_REUSEADDR and SO_REUSEPORT set.
func NewBinder(logger Logger) *Binder {
	lc := net.ListenConfig{Control: reuseControl}
	return &Binder{
		interfaces: net.Interfaces,
		addrs: func(iface *net.Interface) ([]net.Addr, error) {
			return iface.Addrs()
		},
		listen: func(ctx context.Context, address string) (net.PacketConn, error) {
			return lc.ListenPacket(ctx, "udp4", address)
		},
		logger: loggerOrNoop(logger),
	}
}

// Bind creates one unicast socket per IPv4 address of the named interface
// and, when discovery is enabled, one broadcast socket per address paired
// with its unicast socket.
//
// On any failure every socket created so far is closed before returning, so
// no partial state escapes.
//
// Parameters:
//   - ctx: Context for the bind calls
//   - name: Interface name (e.g. "eth0")
//   - port: UDP port shared by unicast and broadcast sockets
//   - discovery: Whether to bind broadcast sockets for controller discovery
//
// Returns:
//   - *BoundInterface: The bound sockets and broadcast mappings
//   - error: ErrInterfaceNotFound, ErrNoIPv4, ErrNoBroadcastSupport or ErrBindFailed (wrapped)
func (b *Binder) Bind(ctx context.Context, name string, port int, discovery bool) (_ *BoundInterface, err error) {
	iface, err := b.lookup(name)
	if err != nil {
		return nil, err
	}

	raw, err := b.addrs(iface)
	if err != nil {
		return nil, fmt.Errorf("%w: listing addresses of %q: %v", ErrNoIPv4, name, err) //nolint:errorlint // sentinel carries the category
	}
	nets := ipv4Networks(raw)
	if len(nets) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoIPv4, name)
	}

	b.logger.Debug("creating listening sockets", "interface", name, "addresses", len(nets))

	bound := &BoundInterface{Name: name, Port: port}
	defer func() {
		if err != nil {
			if cerr := bound.Close(); cerr != nil {
				b.logger.Warn("closing sockets after failed bind", "error", cerr)
			}
		}
	}()

	for _, n := range nets {
		unicast, err := b.bindSocket(ctx, n.addr, port, false)
		if err != nil {
			return nil, err
		}
		bound.Unicast = append(bound.Unicast, unicast)

		if !discovery {
			continue
		}

		bcast, ok := broadcastAddr(iface, n)
		if !ok {
			return nil, fmt.Errorf("%w: %q (dynamic discovery needs a broadcast address)", ErrNoBroadcastSupport, name)
		}
		bsock, err := b.bindSocket(ctx, bcast, port, true)
		if err != nil {
			return nil, err
		}
		bound.Broadcast = append(bound.Broadcast, bsock)
		bound.Mappings = append(bound.Mappings, BroadcastMapping{
			Broadcast: bcast,
			Unicast:   n.addr,
			Socket:    unicast,
		})
	}

	return bound, nil
}

// lookup finds the interface by name. The error lists the interfaces that
// do exist.
func (b *Binder) lookup(name string) (*net.Interface, error) {
	ifaces, err := b.interfaces()
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInterfaceNotFound, name, err) //nolint:errorlint // sentinel carries the category
	}
	names := make([]string, 0, len(ifaces))
	for i := range ifaces {
		if ifaces[i].Name == name {
			return &ifaces[i], nil
		}
		names = append(names, ifaces[i].Name)
	}
	return nil, fmt.Errorf("%w: %q (existing interfaces: %s)", ErrInterfaceNotFound, name, strings.Join(names, ", "))
}

func (b *Binder) bindSocket(ctx context.Context, addr netip.Addr, port int, broadcast bool) (*ListenSocket, error) {
	address := net.JoinHostPort(addr.String(), strconv.Itoa(port))
	b.logger.Debug("creating listening socket", "address", address, "broadcast", broadcast)

	conn, err := b.listen(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBindFailed, address, err) //nolint:errorlint // sentinel carries the category
	}

	actual := port
	if ua, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		actual = ua.Port
	}
	return &ListenSocket{Conn: conn, Addr: addr, Port: actual, Broadcast: broadcast}, nil
}

// ipv4Net is one IPv4 address of an interface and its netmask.
type ipv4Net struct {
	addr netip.Addr
	mask net.IPMask
}

// ipv4Networks keeps the IPv4 entries of an interface address list.
func ipv4Networks(addrs []net.Addr) []ipv4Net {
	var out []ipv4Net
	for _, a := range addrs {
		ipn, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip4 := ipn.IP.To4()
		if ip4 == nil {
			continue
		}
		addr, _ := netip.AddrFromSlice(ip4)
		mask := ipn.Mask
		if len(mask) == net.IPv6len {
			mask = mask[12:]
		}
		out = append(out, ipv4Net{addr: addr, mask: mask})
	}
	return out
}

// broadcastAddr computes ip | ^mask. Interfaces without the broadcast flag,
// and host routes whose broadcast would equal the address, have none.
func broadcastAddr(iface *net.Interface, n ipv4Net) (netip.Addr, bool) {
	if iface.Flags&net.FlagBroadcast == 0 || len(n.mask) != net.IPv4len {
		return netip.Addr{}, false
	}
	ip := n.addr.As4()
	for i := range ip {
		ip[i] |= ^n.mask[i]
	}
	bcast := netip.AddrFrom4(ip)
	if bcast == n.addr {
		return netip.Addr{}, false
	}
	return bcast, true
}

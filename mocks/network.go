package mocks

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

// Network is the in-memory internet behind a hosted chip. TCP listeners are
// keyed by ip:port and connected through net.Pipe; UDP sockets are keyed by
// port alone, since the chip binds its UDP socket to a port on every
// interface.
//
// Plug it into config.Dependencies as TCPDialer / TCPListener /
// PacketListener.
type Network struct {
	mu        sync.Mutex
	listeners map[string]*tcpListener
	sockets   map[int]*udpSocket
}

// NewNetwork creates an empty network.
func NewNetwork() *Network {
	return &Network{
		listeners: make(map[string]*tcpListener),
		sockets:   make(map[int]*udpSocket),
	}
}

// ListenTCP creates a listener on laddr.
func (m *Network) ListenTCP(network string, laddr *net.TCPAddr) (net.Listener, error) {
	if !strings.HasPrefix(network, "tcp") {
		return nil, fmt.Errorf("unsupported network type: %s", network)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	addr := laddr.String()
	if _, exists := m.listeners[addr]; exists {
		return nil, fmt.Errorf("address already in use: %s", addr)
	}

	l := &tcpListener{
		addr:    laddr,
		connCh:  make(chan net.Conn, 10),
		closeCh: make(chan struct{}),
		network: m,
	}
	m.listeners[addr] = l
	return l, nil
}

// DialTCP connects to the listener on raddr.
func (m *Network) DialTCP(network string, laddr, raddr *net.TCPAddr) (net.Conn, error) {
	if !strings.HasPrefix(network, "tcp") {
		return nil, fmt.Errorf("unsupported network type: %s", network)
	}

	m.mu.Lock()
	l, exists := m.listeners[raddr.String()]
	m.mu.Unlock()

	if !exists {
		return nil, fmt.Errorf("dial %s: connection refused", raddr)
	}

	client, server := net.Pipe()
	select {
	case l.connCh <- &tcpConn{Conn: server, local: raddr, remote: laddr}:
	case <-l.closeCh:
		client.Close()
		server.Close()
		return nil, fmt.Errorf("dial %s: connection refused", raddr)
	case <-time.After(time.Second):
		client.Close()
		server.Close()
		return nil, fmt.Errorf("dial %s: timeout", raddr)
	}

	return &tcpConn{Conn: client, local: laddr, remote: raddr}, nil
}

// ListenPacket opens a UDP socket. address is host:port; only the port is
// used for routing.
func (m *Network) ListenPacket(network, address string) (net.PacketConn, error) {
	if !strings.HasPrefix(network, "udp") {
		return nil, fmt.Errorf("unsupported network type: %s", network)
	}
	laddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sockets[laddr.Port]; exists {
		return nil, fmt.Errorf("udp port %d already in use", laddr.Port)
	}

	s := &udpSocket{
		addr:    laddr,
		packets: make(chan packet, 100),
		closeCh: make(chan struct{}),
		network: m,
	}
	m.sockets[laddr.Port] = s
	return s, nil
}

// ServeUDP answers every datagram sent to addr with reply(request). A nil
// reply sends nothing. Close the returned socket to stop.
func (m *Network) ServeUDP(addr string, reply func(req []byte) []byte) (net.PacketConn, error) {
	pc, err := m.ListenPacket("udp", addr)
	if err != nil {
		return nil, err
	}

	go func() {
		buf := make([]byte, 512)
		for {
			n, from, err := pc.ReadFrom(buf)
			if err != nil {
				return
			}
			if resp := reply(buf[:n]); resp != nil {
				pc.WriteTo(resp, from) // lost replies are retried by the client
			}
		}
	}()

	return pc, nil
}

type tcpListener struct {
	addr    *net.TCPAddr
	connCh  chan net.Conn
	closeCh chan struct{}
	once    sync.Once
	network *Network
}

func (l *tcpListener) Accept() (net.Conn, error) {
	select {
	case conn := <-l.connCh:
		return conn, nil
	case <-l.closeCh:
		return nil, net.ErrClosed
	}
}

func (l *tcpListener) Close() error {
	l.once.Do(func() {
		close(l.closeCh)
		l.network.mu.Lock()
		delete(l.network.listeners, l.addr.String())
		l.network.mu.Unlock()
	})
	return nil
}

func (l *tcpListener) Addr() net.Addr {
	return l.addr
}

type tcpConn struct {
	net.Conn
	local, remote *net.TCPAddr
}

func (c *tcpConn) LocalAddr() net.Addr {
	if c.local != nil {
		return c.local
	}
	return c.Conn.LocalAddr()
}

func (c *tcpConn) RemoteAddr() net.Addr {
	if c.remote != nil {
		return c.remote
	}
	return c.Conn.RemoteAddr()
}

type packet struct {
	data []byte
	from *net.UDPAddr
}

type udpSocket struct {
	addr    *net.UDPAddr
	packets chan packet
	closeCh chan struct{}
	once    sync.Once
	network *Network
}

func (s *udpSocket) ReadFrom(p []byte) (int, net.Addr, error) {
	select {
	case pkt := <-s.packets:
		return copy(p, pkt.data), pkt.from, nil
	case <-s.closeCh:
		return 0, nil, net.ErrClosed
	}
}

// WriteTo delivers p to the socket bound to the port of addr. Like real UDP,
// datagrams to unbound ports or full queues are dropped silently.
func (s *udpSocket) WriteTo(p []byte, addr net.Addr) (int, error) {
	select {
	case <-s.closeCh:
		return 0, net.ErrClosed
	default:
	}

	dst, ok := addr.(*net.UDPAddr)
	if !ok {
		return 0, fmt.Errorf("address must be *net.UDPAddr, got %T", addr)
	}

	s.network.mu.Lock()
	peer, exists := s.network.sockets[dst.Port]
	s.network.mu.Unlock()
	if !exists {
		return len(p), nil
	}

	pkt := packet{data: append([]byte(nil), p...), from: s.addr}
	select {
	case peer.packets <- pkt:
	case <-peer.closeCh:
	default:
	}
	return len(p), nil
}

func (s *udpSocket) Close() error {
	s.once.Do(func() {
		close(s.closeCh)
		s.network.mu.Lock()
		delete(s.network.sockets, s.addr.Port)
		s.network.mu.Unlock()
	})
	return nil
}

func (s *udpSocket) LocalAddr() net.Addr {
	return s.addr
}

func (s *udpSocket) SetDeadline(time.Time) error      { return nil }
func (s *udpSocket) SetReadDeadline(time.Time) error  { return nil }
func (s *udpSocket) SetWriteDeadline(time.Time) error { return nil }

var (
	_ net.Listener   = (*tcpListener)(nil)
	_ net.Conn       = (*tcpConn)(nil)
	_ net.PacketConn = (*udpSocket)(nil)
)

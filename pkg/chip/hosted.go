package chip

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"sync"

	"github.com/eapache/queue"

	"ninjametal/ledticker/pkg/config"
)

// Hosted emulates the offload chip with host sockets. Like the real chip it
// keeps receiving in the background: every socket has a reader goroutine
// filling a FIFO that TryReceiveTCP / TryReceiveUDP drain without blocking.
type Hosted struct {
	mu sync.Mutex

	dialTCP      config.TCPDialerFunc
	listenPacket config.PacketListenerFunc

	mode    Mode
	mac     net.HardwareAddr
	ip      netip.Addr
	subnet  netip.Addr
	gateway netip.Addr

	slots [NumSockets]*slot
}

type slot struct {
	proto  Protocol
	status SocketStatus

	conn  net.Conn
	pconn net.PacketConn

	rx   *queue.Queue // []byte chunks (TCP) or datagram values (UDP)
	head []byte       // unread remainder of the oldest TCP chunk
}

type datagram struct {
	from netip.AddrPort
	data []byte
}

// NewHosted creates an emulated chip. deps is optional.
func NewHosted(deps *config.Dependencies) *Hosted {
	h := &Hosted{
		dialTCP:      config.GetTCPDialerFunc(deps),
		listenPacket: config.GetPacketListenerFunc(deps),
	}
	for i := range h.slots {
		h.slots[i] = newSlot(ProtocolClosed)
	}
	return h
}

func newSlot(p Protocol) *slot {
	return &slot{proto: p, status: StatusClosed, rx: queue.New()}
}

// SetMode stores m. The emulator has no use for the mode bits.
func (h *Hosted) SetMode(m Mode) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mode = m
	return nil
}

func (h *Hosted) SetMAC(mac net.HardwareAddr) error {
	if len(mac) != 6 {
		return fmt.Errorf("chip: mac %q must have 6 bytes", mac)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mac = append(net.HardwareAddr(nil), mac...)
	return nil
}

// SetIP, SetSubnet and SetGateway only accept IPv4 addresses.
func (h *Hosted) SetIP(ip netip.Addr) error {
	return h.setAddr(&h.ip, ip)
}

func (h *Hosted) SetSubnet(mask netip.Addr) error {
	return h.setAddr(&h.subnet, mask)
}

func (h *Hosted) SetGateway(gw netip.Addr) error {
	return h.setAddr(&h.gateway, gw)
}

func (h *Hosted) setAddr(dst *netip.Addr, v netip.Addr) error {
	if !v.Is4() {
		return fmt.Errorf("chip: %q is not an IPv4 address", v)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	*dst = v
	return nil
}

// LocalIP returns the address written with SetIP.
func (h *Hosted) LocalIP() netip.Addr {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ip
}

// SetProtocol resets the slot and selects its protocol.
func (h *Hosted) SetProtocol(s Socket, p Protocol) error {
	if p != ProtocolTCP && p != ProtocolUDP && p != ProtocolClosed {
		return fmt.Errorf("chip: unsupported %s", p)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reset(s, p)
}

// OpenTCP moves a TCP slot to Init.
func (h *Hosted) OpenTCP(s Socket) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	sl, err := h.slot(s)
	if err != nil {
		return err
	}
	if sl.proto != ProtocolTCP {
		return fmt.Errorf("OpenTCP(%s): %w", s, ErrWrongProtocol)
	}
	if err := h.reset(s, ProtocolTCP); err != nil {
		return err
	}
	h.slots[s].status = StatusInit
	return nil
}

// Connect starts connecting an opened TCP slot. Completion is observed
// through SocketStatus.
func (h *Hosted) Connect(s Socket, ip netip.Addr, port uint16) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	sl, err := h.slot(s)
	if err != nil {
		return err
	}
	if sl.status != StatusInit {
		return fmt.Errorf("Connect(%s) in status %s: %w", s, sl.status, ErrInvalidState)
	}

	sl.status = StatusSynSent
	raddr := net.TCPAddrFromAddrPort(netip.AddrPortFrom(ip, port))
	go h.dial(s, sl, raddr)
	return nil
}

func (h *Hosted) dial(s Socket, sl *slot, raddr *net.TCPAddr) {
	conn, err := h.dialTCP("tcp", nil, raddr)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.slots[s] != sl || sl.status != StatusSynSent {
		if conn != nil {
			conn.Close() // slot was reset while dialing
		}
		return
	}
	if err != nil {
		sl.status = StatusClosed
		return
	}

	sl.conn = conn
	sl.status = StatusEstablished
	go h.readTCP(s, sl, conn)
}

func (h *Hosted) readTCP(s Socket, sl *slot, conn net.Conn) {
	for {
		buf := make([]byte, MaxTransfer)
		n, err := conn.Read(buf)

		h.mu.Lock()
		if h.slots[s] != sl {
			h.mu.Unlock()
			return
		}
		if n > 0 {
			sl.rx.Add(buf[:n])
		}
		if err != nil {
			if sl.status == StatusEstablished {
				if errors.Is(err, io.EOF) {
					sl.status = StatusCloseWait
				} else {
					sl.status = StatusClosed
				}
			}
			h.mu.Unlock()
			return
		}
		h.mu.Unlock()
	}
}

// Disconnect closes the TCP connection of a slot and keeps its protocol.
func (h *Hosted) Disconnect(s Socket) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	sl, err := h.slot(s)
	if err != nil {
		return err
	}
	return h.reset(s, sl.proto)
}

// Close releases a slot entirely.
func (h *Hosted) Close(s Socket) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reset(s, ProtocolClosed)
}

// Shutdown closes every slot.
func (h *Hosted) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.slots {
		h.reset(Socket(i), ProtocolClosed) // only fails for invalid sockets
	}
}

// SocketStatus always reports a status; unlike the hardware the emulator
// cannot fail to answer.
func (h *Hosted) SocketStatus(s Socket) (SocketStatus, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sl, err := h.slot(s)
	if err != nil {
		return StatusClosed, false, err
	}
	return sl.status, true, nil
}

// TryReceiveTCP drains up to min(len(buf), MaxTransfer) buffered bytes.
func (h *Hosted) TryReceiveTCP(s Socket, buf []byte) (int, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sl, err := h.slot(s)
	if err != nil {
		return 0, false, err
	}
	if sl.proto != ProtocolTCP {
		return 0, false, fmt.Errorf("TryReceiveTCP(%s): %w", s, ErrWrongProtocol)
	}

	limit := min(len(buf), MaxTransfer)
	n := 0
	for n < limit {
		if len(sl.head) == 0 {
			if sl.rx.Length() == 0 {
				break
			}
			sl.head = sl.rx.Remove().([]byte)
		}
		c := copy(buf[n:limit], sl.head)
		sl.head = sl.head[c:]
		n += c
	}

	return n, n > 0, nil
}

// SendTCP writes at most MaxTransfer bytes to an established slot.
func (h *Hosted) SendTCP(s Socket, buf []byte) (int, error) {
	h.mu.Lock()
	sl, err := h.slot(s)
	if err != nil {
		h.mu.Unlock()
		return 0, err
	}
	if sl.status != StatusEstablished || sl.conn == nil {
		h.mu.Unlock()
		return 0, fmt.Errorf("SendTCP(%s) in status %s: %w", s, sl.status, ErrNotConnected)
	}
	conn := sl.conn
	h.mu.Unlock()

	// the write happens without the lock so the reader goroutine keeps draining
	n, err := conn.Write(buf[:min(len(buf), MaxTransfer)])
	if err != nil {
		return n, fmt.Errorf("SendTCP(%s): %w", s, err)
	}
	return n, nil
}

// SendUDP opens the slot on first use and sends one datagram.
func (h *Hosted) SendUDP(s Socket, localPort uint16, ip netip.Addr, port uint16, buf []byte) error {
	h.mu.Lock()
	sl, err := h.slot(s)
	if err != nil {
		h.mu.Unlock()
		return err
	}
	if sl.proto != ProtocolUDP {
		h.mu.Unlock()
		return fmt.Errorf("SendUDP(%s): %w", s, ErrWrongProtocol)
	}
	if sl.pconn == nil {
		pconn, err := h.listenPacket("udp4", fmt.Sprintf(":%d", localPort))
		if err != nil {
			h.mu.Unlock()
			return fmt.Errorf("SendUDP(%s): listen on port %d: %w", s, localPort, err)
		}
		sl.pconn = pconn
		sl.status = StatusUDP
		go h.readUDP(s, sl, pconn)
	}
	pconn := sl.pconn
	h.mu.Unlock()

	raddr := net.UDPAddrFromAddrPort(netip.AddrPortFrom(ip, port))
	if _, err := pconn.WriteTo(buf[:min(len(buf), MaxTransfer)], raddr); err != nil {
		return fmt.Errorf("SendUDP(%s): %w", s, err)
	}
	return nil
}

func (h *Hosted) readUDP(s Socket, sl *slot, pconn net.PacketConn) {
	for {
		buf := make([]byte, MaxTransfer)
		n, addr, err := pconn.ReadFrom(buf)

		h.mu.Lock()
		if h.slots[s] != sl {
			h.mu.Unlock()
			return
		}
		if err != nil {
			sl.status = StatusClosed
			h.mu.Unlock()
			return
		}
		if udpAddr, ok := addr.(*net.UDPAddr); ok {
			from := udpAddr.AddrPort()
			from = netip.AddrPortFrom(from.Addr().Unmap(), from.Port())
			sl.rx.Add(datagram{from: from, data: buf[:n]})
		}
		h.mu.Unlock()
	}
}

// TryReceiveUDP pops the oldest datagram.
func (h *Hosted) TryReceiveUDP(s Socket, buf []byte) (netip.Addr, uint16, int, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sl, err := h.slot(s)
	if err != nil {
		return netip.Addr{}, 0, 0, false, err
	}
	if sl.proto != ProtocolUDP {
		return netip.Addr{}, 0, 0, false, fmt.Errorf("TryReceiveUDP(%s): %w", s, ErrWrongProtocol)
	}
	if sl.rx.Length() == 0 {
		return netip.Addr{}, 0, 0, false, nil
	}

	d := sl.rx.Remove().(datagram)
	copy(buf, d.data)
	return d.from.Addr(), d.from.Port(), len(d.data), true, nil
}

func (h *Hosted) slot(s Socket) (*slot, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%s: %w", s, ErrInvalidSocket)
	}
	return h.slots[s], nil
}

// reset closes whatever the slot holds and installs a fresh one. Background
// goroutines of the old slot notice the swap and exit. Callers hold h.mu.
func (h *Hosted) reset(s Socket, p Protocol) error {
	sl, err := h.slot(s)
	if err != nil {
		return err
	}
	if sl.conn != nil {
		sl.conn.Close() // best effort
	}
	if sl.pconn != nil {
		sl.pconn.Close() // best effort
	}
	h.slots[s] = newSlot(p)
	return nil
}

var _ Driver = (*Hosted)(nil)

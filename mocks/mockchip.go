// Package mocks provides mock implementations for testing.
package mocks

import (
	"fmt"
	"net"
	"net/netip"
	"sync"

	"ninjametal/ledticker/pkg/chip"
)

// NoStatus is scripted when the chip should not report a status at all.
const NoStatus chip.SocketStatus = 0xFF

// Datagram is one UDP packet seen by MockChip.
type Datagram struct {
	IP        netip.Addr
	Port      uint16
	LocalPort uint16
	Data      []byte
}

// MockChip is a scripted chip.Driver. Statuses are replayed per socket, one
// value per SocketStatus call, the last value repeating. Sends are
// acknowledged in the chunk sizes given to ScriptSendSizes.
type MockChip struct {
	mu sync.Mutex

	statuses  map[chip.Socket][]chip.SocketStatus
	rx        map[chip.Socket][][]byte
	udpRx     map[chip.Socket][]Datagram
	sendSizes []int
	fail      map[string]error

	// OnSendTCP and OnSendUDP run after a send was recorded, without the
	// mock's lock held, so they may script replies.
	OnSendTCP func(s chip.Socket, data []byte)
	OnSendUDP func(s chip.Socket, d Datagram)

	sent    map[chip.Socket][]byte
	sentUDP []Datagram
	calls   map[string]int
	log     []string
}

// NewMockChip creates a chip whose sockets all report Closed.
func NewMockChip() *MockChip {
	return &MockChip{
		statuses: make(map[chip.Socket][]chip.SocketStatus),
		rx:       make(map[chip.Socket][][]byte),
		udpRx:    make(map[chip.Socket][]Datagram),
		fail:     make(map[string]error),
		sent:     make(map[chip.Socket][]byte),
		calls:    make(map[string]int),
	}
}

// ScriptStatus appends status values for socket s.
func (m *MockChip) ScriptStatus(s chip.Socket, statuses ...chip.SocketStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[s] = append(m.statuses[s], statuses...)
}

// SetStatus replaces the status script of socket s with a single value.
func (m *MockChip) SetStatus(s chip.Socket, status chip.SocketStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[s] = []chip.SocketStatus{status}
}

// ScriptSendSizes sets how many bytes consecutive SendTCP calls accept. The
// last size repeats. Without a script every call accepts all it can.
func (m *MockChip) ScriptSendSizes(sizes ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendSizes = append([]int(nil), sizes...)
}

// Feed queues data returned by the next TryReceiveTCP call on s.
func (m *MockChip) Feed(s chip.Socket, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rx[s] = append(m.rx[s], append([]byte(nil), data...))
}

// FeedUDP queues a datagram for TryReceiveUDP on s.
func (m *MockChip) FeedUDP(s chip.Socket, d Datagram) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.Data = append([]byte(nil), d.Data...)
	m.udpRx[s] = append(m.udpRx[s], d)
}

// FailOn makes every call of the named method return err.
func (m *MockChip) FailOn(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[method] = err
}

// Sent returns everything SendTCP accepted on s, in order.
func (m *MockChip) Sent(s chip.Socket) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.sent[s]...)
}

// SentUDP returns every datagram passed to SendUDP.
func (m *MockChip) SentUDP() []Datagram {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Datagram(nil), m.sentUDP...)
}

// Calls returns how often the named method was called.
func (m *MockChip) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// Log returns the names of all calls in order.
func (m *MockChip) Log() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.log...)
}

// record counts a call and returns the scripted failure. Callers hold m.mu.
func (m *MockChip) record(method string) error {
	m.calls[method]++
	m.log = append(m.log, method)
	return m.fail[method]
}

func (m *MockChip) simple(method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record(method)
}

func (m *MockChip) SetMode(chip.Mode) error { return m.simple("SetMode") }
func (m *MockChip) SetMAC(net.HardwareAddr) error { return m.simple("SetMAC") }
func (m *MockChip) SetIP(netip.Addr) error { return m.simple("SetIP") }
func (m *MockChip) SetSubnet(netip.Addr) error { return m.simple("SetSubnet") }
func (m *MockChip) SetGateway(netip.Addr) error { return m.simple("SetGateway") }
func (m *MockChip) OpenTCP(chip.Socket) error { return m.simple("OpenTCP") }
func (m *MockChip) Disconnect(chip.Socket) error { return m.simple("Disconnect") }
func (m *MockChip) Close(chip.Socket) error { return m.simple("Close") }
func (m *MockChip) SetProtocol(chip.Socket, chip.Protocol) error {
	return m.simple("SetProtocol")
}

func (m *MockChip) Connect(chip.Socket, netip.Addr, uint16) error {
	return m.simple("Connect")
}

func (m *MockChip) SocketStatus(s chip.Socket) (chip.SocketStatus, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record("SocketStatus"); err != nil {
		return chip.StatusClosed, false, err
	}

	script := m.statuses[s]
	if len(script) == 0 {
		return chip.StatusClosed, true, nil
	}
	status := script[0]
	if len(script) > 1 {
		m.statuses[s] = script[1:]
	}
	if status == NoStatus {
		return chip.StatusClosed, false, nil
	}
	return status, true, nil
}

func (m *MockChip) TryReceiveTCP(s chip.Socket, buf []byte) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record("TryReceiveTCP"); err != nil {
		return 0, false, err
	}

	queue := m.rx[s]
	if len(queue) == 0 {
		return 0, false, nil
	}

	n := copy(buf[:min(len(buf), chip.MaxTransfer)], queue[0])
	if n == len(queue[0]) {
		m.rx[s] = queue[1:]
	} else {
		queue[0] = queue[0][n:]
	}
	return n, n > 0, nil
}

func (m *MockChip) SendTCP(s chip.Socket, buf []byte) (int, error) {
	m.mu.Lock()

	if err := m.record("SendTCP"); err != nil {
		m.mu.Unlock()
		return 0, err
	}

	n := min(len(buf), chip.MaxTransfer)
	if len(m.sendSizes) > 0 {
		n = min(n, m.sendSizes[0])
		if len(m.sendSizes) > 1 {
			m.sendSizes = m.sendSizes[1:]
		}
	}
	data := append([]byte(nil), buf[:n]...)
	m.sent[s] = append(m.sent[s], data...)
	hook := m.OnSendTCP
	m.mu.Unlock()

	if hook != nil && n > 0 {
		hook(s, data)
	}
	return n, nil
}

func (m *MockChip) SendUDP(s chip.Socket, localPort uint16, ip netip.Addr, port uint16, buf []byte) error {
	m.mu.Lock()

	if err := m.record("SendUDP"); err != nil {
		m.mu.Unlock()
		return err
	}

	d := Datagram{IP: ip, Port: port, LocalPort: localPort, Data: append([]byte(nil), buf...)}
	m.sentUDP = append(m.sentUDP, d)
	hook := m.OnSendUDP
	m.mu.Unlock()

	if hook != nil {
		hook(s, d)
	}
	return nil
}

func (m *MockChip) TryReceiveUDP(s chip.Socket, buf []byte) (netip.Addr, uint16, int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record("TryReceiveUDP"); err != nil {
		return netip.Addr{}, 0, 0, false, err
	}

	queue := m.udpRx[s]
	if len(queue) == 0 {
		return netip.Addr{}, 0, 0, false, nil
	}
	d := queue[0]
	m.udpRx[s] = queue[1:]

	copy(buf, d.Data)
	return d.IP, d.Port, len(d.Data), true, nil
}

// String summarizes the recorded calls.
func (m *MockChip) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fmt.Sprintf("MockChip(%d calls)", len(m.log))
}

var _ chip.Driver = (*MockChip)(nil)

// Package chip describes the hardware TCP/IP offload chip the client talks
// to over its peripheral bus. The chip owns the TCP/IP stack; callers only
// configure addressing, open sockets and move bytes through them.
//
// Driver is the collaborator contract. Hosted implements it on top of the
// host operating system's sockets so the client can run on a workstation.
package chip

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
)

// MaxTransfer is the largest number of bytes a single send or receive moves.
// Larger buffers are transferred in several calls.
const MaxTransfer = 2048

// NumSockets is the number of socket slots on the chip.
const NumSockets = 8

// Socket is a socket slot number in [0, NumSockets).
type Socket uint8

func (s Socket) String() string {
	return fmt.Sprintf("Socket%d", uint8(s))
}

// Valid reports whether s addresses an existing slot.
func (s Socket) Valid() bool {
	return s < NumSockets
}

// Protocol selects how a socket slot operates.
type Protocol uint8

const (
	ProtocolClosed Protocol = 0x00
	ProtocolTCP    Protocol = 0x01
	ProtocolUDP    Protocol = 0x02
)

func (p Protocol) String() string {
	switch p {
	case ProtocolClosed:
		return "closed"
	case ProtocolTCP:
		return "tcp"
	case ProtocolUDP:
		return "udp"
	default:
		return fmt.Sprintf("protocol(%#02x)", uint8(p))
	}
}

// SocketStatus is the value of a socket's status register.
type SocketStatus uint8

const (
	StatusClosed      SocketStatus = 0x00
	StatusInit        SocketStatus = 0x13
	StatusListen      SocketStatus = 0x14
	StatusSynSent     SocketStatus = 0x15
	StatusSynRecv     SocketStatus = 0x16
	StatusEstablished SocketStatus = 0x17
	StatusFinWait     SocketStatus = 0x18
	StatusClosing     SocketStatus = 0x1A
	StatusTimeWait    SocketStatus = 0x1B
	StatusCloseWait   SocketStatus = 0x1C
	StatusLastAck     SocketStatus = 0x1D
	StatusUDP         SocketStatus = 0x22
	StatusMACRaw      SocketStatus = 0x42
)

var statusNames = map[SocketStatus]string{
	StatusClosed:      "Closed",
	StatusInit:        "Init",
	StatusListen:      "Listen",
	StatusSynSent:     "SynSent",
	StatusSynRecv:     "SynRecv",
	StatusEstablished: "Established",
	StatusFinWait:     "FinWait",
	StatusClosing:     "Closing",
	StatusTimeWait:    "TimeWait",
	StatusCloseWait:   "CloseWait",
	StatusLastAck:     "LastAck",
	StatusUDP:         "Udp",
	StatusMACRaw:      "MacRaw",
}

func (s SocketStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%#02x)", uint8(s))
}

// Known reports whether s is a documented status value.
func (s SocketStatus) Known() bool {
	_, ok := statusNames[s]
	return ok
}

// Terminal reports whether the current connection attempt is over and the
// socket must be reopened before retrying.
func (s SocketStatus) Terminal() bool {
	return s == StatusClosed || s == StatusCloseWait
}

// Mode is the chip's common mode register.
type Mode struct {
	WakeOnLAN bool
	PingBlock bool
	PPPoE     bool
	ForceARP  bool
}

// Driver is the contract of the offload chip driver. Every call goes over the
// shared bus and may fail with a bus-level I/O error.
type Driver interface {
	SetMode(m Mode) error
	SetMAC(mac net.HardwareAddr) error
	SetIP(ip netip.Addr) error
	SetSubnet(mask netip.Addr) error
	SetGateway(gw netip.Addr) error

	SetProtocol(s Socket, p Protocol) error
	OpenTCP(s Socket) error
	Connect(s Socket, ip netip.Addr, port uint16) error
	Disconnect(s Socket) error
	Close(s Socket) error

	// SocketStatus returns ok=false when the status register holds a value
	// the driver does not understand.
	SocketStatus(s Socket) (status SocketStatus, ok bool, err error)

	// TryReceiveTCP never blocks; ok=false means no data is buffered yet.
	TryReceiveTCP(s Socket, buf []byte) (n int, ok bool, err error)
	// SendTCP transfers at most MaxTransfer bytes and reports how many.
	SendTCP(s Socket, buf []byte) (n int, err error)

	SendUDP(s Socket, localPort uint16, ip netip.Addr, port uint16, buf []byte) error
	// TryReceiveUDP never blocks. n is the datagram size reported by the
	// chip; at most len(buf) bytes are copied.
	TryReceiveUDP(s Socket, buf []byte) (ip netip.Addr, port uint16, n int, ok bool, err error)
}

// Errors reported by drivers.
var (
	ErrInvalidSocket = errors.New("chip: invalid socket")
	ErrWrongProtocol = errors.New("chip: socket protocol does not allow this operation")
	ErrNotConnected  = errors.New("chip: socket not connected")
	ErrInvalidState  = errors.New("chip: socket in wrong state")
)

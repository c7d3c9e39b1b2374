// Package websocket implements the client side of RFC 6455 over caller
// provided buffers.
//
// Client is the protocol state machine. It never does I/O: handshakes and
// frames are encoded into and decoded from byte slices handed in by the
// caller, and every size overflow is a returned error. Framer drives a
// Client over a byte stream such as a TLS session.
package websocket

import (
	"errors"
	"fmt"
)

var (
	ErrWebSocketNotOpen       = errors.New("websocket not open")
	ErrInvalidState           = errors.New("websocket in the wrong state for this operation")
	ErrWriteToBufferTooSmall  = errors.New("websocket write buffer too small")
	ErrReadBufferTooSmall     = errors.New("websocket read destination too small for frame payload")
	ErrReadFrameIncomplete    = errors.New("websocket frame incomplete")
	ErrHandshakeIncomplete    = errors.New("websocket handshake response incomplete")
	ErrHandshakeStatus        = errors.New("websocket handshake rejected")
	ErrHandshakeMismatch      = errors.New("websocket handshake response does not match the request")
	ErrInvalidOpCode          = errors.New("websocket invalid opcode")
	ErrReservedBits           = errors.New("websocket reserved bits set")
	ErrControlFrameTooLarge   = errors.New("websocket control frame payload exceeds 125 bytes")
	ErrFragmentedControlFrame = errors.New("websocket control frame must not be fragmented")
	ErrInvalidCloseStatus     = errors.New("websocket invalid close status")
	ErrUnexpectedContinuation = errors.New("websocket continuation frame without a message")
	ErrExpectedContinuation   = errors.New("websocket new message while a fragmented one is pending")
	ErrInvalidUTF8            = errors.New("websocket text message is not valid utf-8")
	ErrFrameTooLarge          = errors.New("websocket frame exceeds the frame buffer")
	ErrMessageTooLarge        = errors.New("websocket message exceeds the message buffer")
	ErrHandshakeTooLarge      = errors.New("websocket handshake response exceeds the read buffer")
)

// State is the lifecycle of a connection.
type State int

const (
	StateNone State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MessageType classifies a received frame. The two close variants tell the
// caller what it owes the peer: CloseMustReply needs a CloseReply frame,
// CloseCompleted ends a close we started.
type MessageType int

const (
	Text MessageType = iota + 1
	Binary
	Ping
	Pong
	CloseMustReply
	CloseCompleted
)

func (t MessageType) String() string {
	switch t {
	case Text:
		return "text"
	case Binary:
		return "binary"
	case Ping:
		return "ping"
	case Pong:
		return "pong"
	case CloseMustReply:
		return "close (must reply)"
	case CloseCompleted:
		return "close (completed)"
	}
	return fmt.Sprintf("MessageType(%d)", int(t))
}

// IsControl reports whether t is a control frame.
func (t MessageType) IsControl() bool {
	return t == Ping || t == Pong || t == CloseMustReply || t == CloseCompleted
}

// SendType selects the frame written by Client.Write.
type SendType int

const (
	SendText SendType = iota + 1
	SendBinary
	SendPing
	SendPong
	SendCloseReply
	SendCloseInitiate
)

func (t SendType) String() string {
	switch t {
	case SendText:
		return "text"
	case SendBinary:
		return "binary"
	case SendPing:
		return "ping"
	case SendPong:
		return "pong"
	case SendCloseReply:
		return "close reply"
	case SendCloseInitiate:
		return "close"
	}
	return fmt.Sprintf("SendType(%d)", int(t))
}

func (t SendType) isControl() bool {
	return t >= SendPing
}

// CloseStatus is the status code carried by a close frame.
type CloseStatus uint16

const (
	NormalClosure      CloseStatus = 1000
	GoingAway          CloseStatus = 1001
	ProtocolError      CloseStatus = 1002
	UnsupportedData    CloseStatus = 1003
	NoStatusReceived   CloseStatus = 1005
	AbnormalClosure    CloseStatus = 1006
	InvalidPayload     CloseStatus = 1007
	PolicyViolation    CloseStatus = 1008
	MessageTooBig      CloseStatus = 1009
	MandatoryExtension CloseStatus = 1010
	InternalError      CloseStatus = 1011
)

// valid reports whether s may appear on the wire.
func (s CloseStatus) valid() bool {
	switch {
	case s >= 1000 && s <= 1003:
		return true
	case s >= 1007 && s <= 1014:
		return true
	case s >= 3000 && s <= 4999:
		return true
	}
	return false
}

func (s CloseStatus) String() string {
	switch s {
	case NormalClosure:
		return "normal closure"
	case GoingAway:
		return "going away"
	case ProtocolError:
		return "protocol error"
	case UnsupportedData:
		return "unsupported data"
	case NoStatusReceived:
		return "no status"
	case AbnormalClosure:
		return "abnormal closure"
	case InvalidPayload:
		return "invalid payload"
	case PolicyViolation:
		return "policy violation"
	case MessageTooBig:
		return "message too big"
	case MandatoryExtension:
		return "mandatory extension"
	case InternalError:
		return "internal error"
	}
	return fmt.Sprintf("status %d", uint16(s))
}

// Options configures the opening handshake.
type Options struct {
	Path         string
	Host         string
	Origin       string
	SubProtocols []string
	Headers      []string // extra "Name: value" lines
}

// ReadResult describes one decoded frame. LenFrom bytes of the input were
// consumed and LenTo payload bytes were written to the destination.
type ReadResult struct {
	MessageType  MessageType
	LenFrom      int
	LenTo        int
	EndOfMessage bool
	CloseStatus  CloseStatus // close frames only
}

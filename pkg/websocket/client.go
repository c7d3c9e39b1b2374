package websocket

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf8"
)

const (
	opContinuation = 0x0
	opText         = 0x1
	opBinary       = 0x2
	opClose        = 0x8
	opPing         = 0x9
	opPong         = 0xA

	finBit   = 0x80
	rsvBits  = 0x70
	maskBit  = 0x80
	opMask   = 0x0F
	len7Mask = 0x7F

	maxControlPayload = 125
)

// Client is the client side protocol state of one connection. It is not
// safe for concurrent use.
type Client struct {
	rng   io.Reader
	state State

	offered     []string // Sec-WebSocket-Protocol values of the request
	subProtocol string

	// fragmented messages in progress
	receiving   bool
	receiveType MessageType
	sending     bool
}

// NewClient returns a client in StateNone. rng supplies handshake keys and
// frame masks; nil selects crypto/rand.
func NewClient(rng io.Reader) *Client {
	if rng == nil {
		rng = rand.Reader
	}
	return &Client{rng: rng}
}

// State returns the connection state.
func (c *Client) State() State {
	return c.state
}

// SubProtocol returns the subprotocol selected by the server, if any.
func (c *Client) SubProtocol() string {
	return c.subProtocol
}

// Read decodes one frame from from into to. Read only decodes in StateOpen
// and StateClosing.
func (c *Client) Read(from, to []byte) (ReadResult, error) {
	if c.state != StateOpen && c.state != StateClosing {
		return ReadResult{}, fmt.Errorf("%w: state %s", ErrWebSocketNotOpen, c.state)
	}

	if len(from) < 2 {
		return ReadResult{}, ErrReadFrameIncomplete
	}

	b0, b1 := from[0], from[1]
	fin := b0&finBit != 0
	op := b0 & opMask
	masked := b1&maskBit != 0

	if b0&rsvBits != 0 {
		return ReadResult{}, ErrReservedBits
	}
	switch op {
	case opContinuation, opText, opBinary, opClose, opPing, opPong:
	default:
		return ReadResult{}, fmt.Errorf("%w: 0x%x", ErrInvalidOpCode, op)
	}

	header := 2
	length := uint64(b1 & len7Mask)
	switch length {
	case 126:
		if len(from) < header+2 {
			return ReadResult{}, ErrReadFrameIncomplete
		}
		length = uint64(binary.BigEndian.Uint16(from[header:]))
		header += 2
	case 127:
		if len(from) < header+8 {
			return ReadResult{}, ErrReadFrameIncomplete
		}
		length = binary.BigEndian.Uint64(from[header:])
		header += 8
	}

	if op >= opClose {
		if !fin {
			return ReadResult{}, ErrFragmentedControlFrame
		}
		if length > maxControlPayload {
			return ReadResult{}, ErrControlFrameTooLarge
		}
	}

	var key [4]byte
	if masked {
		if len(from) < header+4 {
			return ReadResult{}, ErrReadFrameIncomplete
		}
		copy(key[:], from[header:header+4])
		header += 4
	}

	if length > uint64(len(to)) {
		return ReadResult{}, fmt.Errorf("%w: payload %d, destination %d", ErrReadBufferTooSmall, length, len(to))
	}
	n := int(length)
	if len(from) < header+n {
		return ReadResult{}, ErrReadFrameIncomplete
	}

	res := ReadResult{LenFrom: header + n, LenTo: n, EndOfMessage: fin}

	switch op {
	case opContinuation:
		if !c.receiving {
			return ReadResult{}, ErrUnexpectedContinuation
		}
		res.MessageType = c.receiveType
		c.receiving = !fin
	case opText, opBinary:
		if c.receiving {
			return ReadResult{}, ErrExpectedContinuation
		}
		res.MessageType = Text
		if op == opBinary {
			res.MessageType = Binary
		}
		if !fin {
			c.receiving = true
			c.receiveType = res.MessageType
		}
	case opPing:
		res.MessageType = Ping
	case opPong:
		res.MessageType = Pong
	case opClose:
		status, err := closeStatus(from[header:header+n], key, masked)
		if err != nil {
			return ReadResult{}, err
		}
		res.CloseStatus = status
	}

	copy(to, from[header:header+n])
	if masked {
		mask(to[:n], key)
	}

	if op == opClose {
		if n > 2 && !utf8.Valid(to[2:n]) {
			return ReadResult{}, fmt.Errorf("%w: close reason", ErrInvalidUTF8)
		}
		if c.state == StateOpen {
			res.MessageType = CloseMustReply
			c.state = StateClosing
		} else {
			res.MessageType = CloseCompleted
			c.state = StateClosed
		}
	}

	return res, nil
}

func closeStatus(payload []byte, key [4]byte, masked bool) (CloseStatus, error) {
	switch len(payload) {
	case 0:
		return NoStatusReceived, nil
	case 1:
		return 0, fmt.Errorf("%w: one byte payload", ErrInvalidCloseStatus)
	}

	raw := [2]byte{payload[0], payload[1]}
	if masked {
		mask(raw[:], key)
	}
	status := CloseStatus(binary.BigEndian.Uint16(raw[:]))
	if !status.valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidCloseStatus, uint16(status))
	}
	return status, nil
}

// Write frames payload into to and returns the frame length. Frames are
// masked with a fresh key. Data frames need StateOpen; a CloseReply is
// only valid in StateClosing and moves the client to StateClosed, a
// CloseInitiate moves it from StateOpen to StateClosing.
func (c *Client) Write(t SendType, final bool, payload, to []byte) (int, error) {
	var op byte
	want := StateOpen
	switch t {
	case SendText:
		op = opText
	case SendBinary:
		op = opBinary
	case SendPing:
		op = opPing
	case SendPong:
		op = opPong
	case SendCloseInitiate:
		op = opClose
	case SendCloseReply:
		op = opClose
		want = StateClosing
	default:
		return 0, fmt.Errorf("websocket: unknown send type %d", int(t))
	}

	if c.state != want {
		return 0, fmt.Errorf("%w: cannot send %s in state %s", ErrWebSocketNotOpen, t, c.state)
	}

	if t.isControl() {
		if !final {
			return 0, ErrFragmentedControlFrame
		}
		if len(payload) > maxControlPayload {
			return 0, ErrControlFrameTooLarge
		}
	} else if c.sending {
		op = opContinuation
	}

	header := 2 + 4
	switch {
	case len(payload) > 0xFFFF:
		header += 8
	case len(payload) > 125:
		header += 2
	}
	if header+len(payload) > len(to) {
		return 0, fmt.Errorf("%w: need %d, have %d", ErrWriteToBufferTooSmall, header+len(payload), len(to))
	}

	var key [4]byte
	if _, err := io.ReadFull(c.rng, key[:]); err != nil {
		return 0, fmt.Errorf("reading mask key: %w", err)
	}

	to[0] = op
	if final {
		to[0] |= finBit
	}
	i := 2
	switch {
	case len(payload) > 0xFFFF:
		to[1] = maskBit | 127
		binary.BigEndian.PutUint64(to[2:], uint64(len(payload)))
		i += 8
	case len(payload) > 125:
		to[1] = maskBit | 126
		binary.BigEndian.PutUint16(to[2:], uint16(len(payload)))
		i += 2
	default:
		to[1] = maskBit | byte(len(payload))
	}
	copy(to[i:], key[:])
	i += 4
	copy(to[i:], payload)
	mask(to[i:i+len(payload)], key)

	if !t.isControl() {
		c.sending = !final
	}
	switch t {
	case SendCloseInitiate:
		c.state = StateClosing
	case SendCloseReply:
		c.state = StateClosed
	}

	return i + len(payload), nil
}

// Close frames a client initiated close with status and reason into to.
func (c *Client) Close(status CloseStatus, reason string, to []byte) (int, error) {
	if !status.valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidCloseStatus, uint16(status))
	}
	if 2+len(reason) > maxControlPayload {
		return 0, ErrControlFrameTooLarge
	}
	if !utf8.ValidString(reason) {
		return 0, fmt.Errorf("%w: close reason", ErrInvalidUTF8)
	}

	var payload [maxControlPayload]byte
	binary.BigEndian.PutUint16(payload[:], uint16(status))
	n := 2 + copy(payload[2:], reason)

	return c.Write(SendCloseInitiate, true, payload[:n], to)
}

func mask(b []byte, key [4]byte) {
	for i := range b {
		b[i] ^= key[i&3]
	}
}

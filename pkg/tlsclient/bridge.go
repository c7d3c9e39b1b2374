package tlsclient

import (
	"errors"
	"net"
	"sync/atomic"
	"time"
)

// ErrBridgeExpired is returned by a Bridge whose provider no longer refers
// to a live connection.
var ErrBridgeExpired = errors.New("tls bridge expired")

// IOProvider moves ciphertext for the TLS engine. Valid reports whether the
// provider still refers to the connection it was created for; a Bridge checks
// it before every call.
type IOProvider interface {
	Read(p []byte) (int, error)
	WriteAll(p []byte) error
	Valid() bool
}

// Bridge presents an IOProvider as the net.Conn the TLS engine drives. The
// engine pulls and pushes ciphertext through it as often as it needs;
// neither deadlines nor addresses mean anything to the provider.
type Bridge struct {
	io     IOProvider
	remote string
	closed atomic.Bool
}

// NewBridge creates a bridge over p. remote is only used for RemoteAddr.
func NewBridge(p IOProvider, remote string) *Bridge {
	return &Bridge{io: p, remote: remote}
}

// bridgeError marks failures of the provider so they can be told apart from
// protocol errors of the engine.
type bridgeError struct {
	err error
}

func (e *bridgeError) Error() string { return e.err.Error() }
func (e *bridgeError) Unwrap() error { return e.err }

func (b *Bridge) check() error {
	if b.closed.Load() {
		return &bridgeError{net.ErrClosed}
	}
	if !b.io.Valid() {
		return &bridgeError{ErrBridgeExpired}
	}
	return nil
}

// Read performs one provider read.
func (b *Bridge) Read(p []byte) (int, error) {
	if err := b.check(); err != nil {
		return 0, err
	}
	n, err := b.io.Read(p)
	if err != nil {
		return n, &bridgeError{err}
	}
	return n, nil
}

// Write hands all of p to the provider.
func (b *Bridge) Write(p []byte) (int, error) {
	if err := b.check(); err != nil {
		return 0, err
	}
	if err := b.io.WriteAll(p); err != nil {
		return 0, &bridgeError{err}
	}
	return len(p), nil
}

// Close detaches the bridge. The transport stays open; it belongs to the
// caller.
func (b *Bridge) Close() error {
	b.closed.Store(true)
	return nil
}

func (b *Bridge) LocalAddr() net.Addr  { return bridgeAddr("chip") }
func (b *Bridge) RemoteAddr() net.Addr { return bridgeAddr(b.remote) }

func (b *Bridge) SetDeadline(time.Time) error      { return nil }
func (b *Bridge) SetReadDeadline(time.Time) error  { return nil }
func (b *Bridge) SetWriteDeadline(time.Time) error { return nil }

type bridgeAddr string

func (a bridgeAddr) Network() string { return "chip" }
func (a bridgeAddr) String() string  { return string(a) }

var _ net.Conn = (*Bridge)(nil)

package tlsclient

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"

	"ninjametal/ledticker/pkg/trust"
)

var (
	// ErrNotInitialized means Reset or Handshake ran before Init.
	ErrNotInitialized = errors.New("tls session not initialized")
	// ErrNotReset means a handshake was attempted without a fresh Reset.
	ErrNotReset = errors.New("tls session not reset since the last handshake")
	// ErrNoConnection means Read or Write ran without a completed handshake.
	ErrNoConnection = errors.New("tls session has no connection")
)

// Code identifies why the engine failed. Values 0-255 are TLS alert numbers;
// negative values are local conditions.
type Code int

const (
	CodeUnknown      Code = -1
	CodeCertificate  Code = -2
	CodeRecordHeader Code = -3
	CodeTransport    Code = -4
	CodeRemoteAlert  Code = -5
	CodeClosed       Code = -6
)

func (c Code) String() string {
	switch c {
	case CodeUnknown:
		return "unknown"
	case CodeCertificate:
		return "certificate"
	case CodeRecordHeader:
		return "record header"
	case CodeTransport:
		return "transport"
	case CodeRemoteAlert:
		return "remote alert"
	case CodeClosed:
		return "closed"
	}
	if c >= 0 && c <= 255 {
		return fmt.Sprintf("alert %d", int(c))
	}
	return fmt.Sprintf("code %d", int(c))
}

// Error is a failure of the TLS engine. It is fatal to the connection.
type Error struct {
	Op   string // handshake, read, write
	Code Code
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("tls %s (%s): %s", e.Op, e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op string, err error) *Error {
	return &Error{Op: op, Code: classify(err), Err: err}
}

func classify(err error) Code {
	var (
		bridgeErr *bridgeError
		alert     tls.AlertError
		header    tls.RecordHeaderError
		certErr   *tls.CertificateVerificationError
		opErr     *net.OpError
	)

	switch {
	case errors.As(err, &bridgeErr):
		return CodeTransport
	case errors.Is(err, io.EOF):
		return CodeClosed
	case errors.As(err, &certErr),
		errors.Is(err, trust.ErrUntrusted),
		errors.Is(err, trust.ErrEmptyChain),
		errors.Is(err, trust.ErrNoAnchors):
		return CodeCertificate
	case errors.As(err, &alert):
		return Code(alert)
	case errors.As(err, &header):
		return CodeRecordHeader
	case errors.As(err, &opErr) && opErr.Op == "remote error":
		return CodeRemoteAlert
	}
	return CodeUnknown
}

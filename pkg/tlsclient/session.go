// Package tlsclient runs the TLS client session of the ticker on top of the
// chip's socket transport.
//
// The TLS engine (crypto/tls) pulls and pushes ciphertext on its own through
// a Bridge, a net.Conn whose I/O is satisfied by an IOProvider. A Bridge is
// tied to one connection attempt: once the provider reports it is no longer
// valid, every call fails with ErrBridgeExpired.
//
// The session lifecycle per connection attempt is
//
//	Init (once) -> Reset -> Handshake -> Read/WriteAll... -> Close
//
// Every Handshake needs its own Reset; the engine state is rebuilt from
// scratch each time and never reused across attempts.
package tlsclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net"
	"time"

	"ninjametal/ledticker/pkg/log"
	"ninjametal/ledticker/pkg/trust"
)

// Session is a TLS client session. It is not safe for concurrent use.
type Session struct {
	logger    *log.Logger
	traceFile string

	store   *trust.Store
	entropy io.Reader

	serverName string
	clock      time.Time
	resetAt    time.Time
	ready      bool

	conn *tls.Conn
}

// NewSession creates an uninitialized session. If traceFile is set, the
// ciphertext of every connection is hex dumped to it.
func NewSession(logger *log.Logger, traceFile string) *Session {
	return &Session{logger: logger, traceFile: traceFile}
}

// Init sets the trust anchors and the entropy source used by every later
// handshake.
func (s *Session) Init(store *trust.Store, entropy io.Reader) error {
	if store.Len() == 0 {
		return trust.ErrNoAnchors
	}
	if entropy == nil {
		return fmt.Errorf("tls session: no entropy source")
	}

	s.store = store
	s.entropy = entropy
	return nil
}

// Reset prepares the next handshake. It drops any previous connection and
// binds the server name and the current time, in Unix seconds, used for
// certificate validation.
func (s *Session) Reset(serverName string, unixTime int64) error {
	if s.store == nil {
		return ErrNotInitialized
	}

	if s.conn != nil {
		s.conn.Close() // the transport is gone already, this only frees the engine
		s.conn = nil
	}

	s.serverName = serverName
	s.clock = time.Unix(unixTime, 0)
	s.resetAt = time.Now()
	s.ready = true
	return nil
}

// now advances the clock handed to Reset by the time elapsed since.
func (s *Session) now() time.Time {
	return s.clock.Add(time.Since(s.resetAt))
}

// Handshake runs the TLS handshake over p. The engine drives p as often as
// it needs; the caller does not sequence handshake messages.
func (s *Session) Handshake(ctx context.Context, p IOProvider, remote string) error {
	if s.store == nil {
		return ErrNotInitialized
	}
	if !s.ready {
		return ErrNotReset
	}
	s.ready = false

	var conn net.Conn = NewBridge(p, remote)
	if s.traceFile != "" {
		traced, err := log.TraceToFile(conn, s.traceFile)
		if err != nil {
			return fmt.Errorf("log.TraceToFile(%s): %w", s.traceFile, err)
		}
		conn = traced
	}

	tlsConn := tls.Client(conn, s.buildTLSConfig())
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close() // best effort
		return newError("handshake", err)
	}

	state := tlsConn.ConnectionState()
	s.logger.VerboseMsg("tls handshake with %s done: %s, %s", s.serverName, tls.VersionName(state.Version), tls.CipherSuiteName(state.CipherSuite))

	s.conn = tlsConn
	return nil
}

func (s *Session) buildTLSConfig() *tls.Config {
	store, serverName, now := s.store, s.serverName, s.now

	return &tls.Config{
		ServerName: serverName,
		MinVersion: tls.VersionTLS12,
		Rand:       s.entropy,
		Time:       now,
		// the default verifier would use the system roots and wall clock;
		// the chain is checked against our anchors instead
		InsecureSkipVerify: true,
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			return store.VerifyChain(rawCerts, serverName, now())
		},
	}
}

// Read reads decrypted bytes.
func (s *Session) Read(buf []byte) (int, error) {
	if s.conn == nil {
		return 0, ErrNoConnection
	}

	n, err := s.conn.Read(buf)
	if err != nil {
		if n > 0 {
			return n, nil // deliver what we have, the error repeats on the next call
		}
		return 0, newError("read", err)
	}
	return n, nil
}

// WriteAll encrypts and sends all of buf, then flushes.
func (s *Session) WriteAll(buf []byte) error {
	if s.conn == nil {
		return ErrNoConnection
	}

	for len(buf) > 0 {
		n, err := s.conn.Write(buf)
		if err != nil {
			return newError("write", err)
		}
		buf = buf[n:]
	}

	return s.Flush()
}

// Flush pushes buffered ciphertext to the transport. crypto/tls writes
// every record as soon as it is sealed, so there is nothing to push; the
// call is kept so the write path reads the same for any engine.
func (s *Session) Flush() error {
	if s.conn == nil {
		return ErrNoConnection
	}
	return nil
}

// Close sends close_notify if the transport is still usable and drops the
// connection. The transport itself is closed by its owner.
func (s *Session) Close() error {
	if s.conn == nil {
		return nil
	}

	err := s.conn.Close()
	s.conn = nil
	if err != nil {
		return newError("close", err)
	}
	return nil
}

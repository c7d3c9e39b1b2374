package log

import (
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"
)

// tracedConn wraps a net.Conn and writes a hex dump of every read and write
// to a trace sink. Close closes both.
type tracedConn struct {
	net.Conn

	mu    sync.Mutex
	trace io.WriteCloser
}

func (tc *tracedConn) Read(b []byte) (int, error) {
	n, err := tc.Conn.Read(b)
	if n > 0 {
		if terr := tc.dump("<<", b[:n]); terr != nil {
			return n, fmt.Errorf("tracing read: %w", terr)
		}
	}
	return n, err
}

func (tc *tracedConn) Write(b []byte) (int, error) {
	n, err := tc.Conn.Write(b)
	if n > 0 {
		if terr := tc.dump(">>", b[:n]); terr != nil {
			return n, fmt.Errorf("tracing write: %w", terr)
		}
	}
	return n, err
}

func (tc *tracedConn) dump(dir string, b []byte) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if _, err := fmt.Fprintf(tc.trace, "%s %s %d bytes\n", time.Now().Format(time.RFC3339Nano), dir, len(b)); err != nil {
		return err
	}
	_, err := io.WriteString(tc.trace, hex.Dump(b))
	return err
}

func (tc *tracedConn) Close() error {
	err := tc.Conn.Close()
	tc.mu.Lock()
	tc.trace.Close() // best effort
	tc.mu.Unlock()
	return err
}

// TraceToFile wraps conn so its traffic is appended to the file at path.
func TraceToFile(conn net.Conn, path string) (net.Conn, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return NewTracedConn(conn, f), nil
}

// NewTracedConn wraps conn and dumps its traffic to trace.
func NewTracedConn(conn net.Conn, trace io.WriteCloser) net.Conn {
	return &tracedConn{Conn: conn, trace: trace}
}

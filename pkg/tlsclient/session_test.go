package tlsclient

import (
	"bufio"
	"context"
	"crypto/rand"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ninjametal/ledticker/pkg/crypto"
	"ninjametal/ledticker/pkg/trust"
)

// connProvider is an IOProvider over a real connection.
type connProvider struct {
	conn  net.Conn
	valid atomic.Bool
}

func newConnProvider(conn net.Conn) *connProvider {
	p := &connProvider{conn: conn}
	p.valid.Store(true)
	return p
}

func (p *connProvider) Read(b []byte) (int, error) { return p.conn.Read(b) }
func (p *connProvider) Valid() bool                { return p.valid.Load() }
func (p *connProvider) WriteAll(b []byte) error {
	_, err := p.conn.Write(b)
	return err
}

var (
	fixtureOnce  sync.Once
	fixtureStore *trust.Store
	fixtureCert  tls.Certificate
	fixtureErr   error
)

func fixture(t *testing.T) (*trust.Store, tls.Certificate) {
	t.Helper()

	fixtureOnce.Do(func() {
		var caPEM []byte
		caPEM, fixtureCert, fixtureErr = crypto.GenerateCertificates("tlsclient-tests", "ticker.test")
		if fixtureErr != nil {
			return
		}
		var anchors []trust.Anchor
		anchors, fixtureErr = trust.FromPEM(caPEM)
		if fixtureErr != nil {
			return
		}
		fixtureStore, fixtureErr = trust.NewStore(anchors...)
	})
	if fixtureErr != nil {
		t.Fatalf("generating fixtures: %v", fixtureErr)
	}
	return fixtureStore, fixtureCert
}

// echoServer accepts one TLS connection and echoes lines back upper-cased.
func echoServer(t *testing.T, cert tls.Certificate) net.Conn {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	t.Cleanup(func() { l.Close() })

	go func() {
		raw, err := l.Accept()
		if err != nil {
			return
		}
		conn := tls.Server(raw, &tls.Config{Certificates: []tls.Certificate{cert}})
		defer conn.Close()

		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			if _, err := io.WriteString(conn, strings.ToUpper(line)); err != nil {
				return
			}
		}
	}()

	client, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("net.Dial() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func newSession(t *testing.T, traceFile string) *Session {
	t.Helper()

	store, _ := fixture(t)
	s := NewSession(nil, traceFile)
	if err := s.Init(store, rand.Reader); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return s
}

func TestSession_HandshakeReadWrite(t *testing.T) {
	t.Parallel()

	_, cert := fixture(t)
	p := newConnProvider(echoServer(t, cert))
	s := newSession(t, "")

	if err := s.Reset("ticker.test", time.Now().Unix()); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if err := s.Handshake(context.Background(), p, "ticker.test:443"); err != nil {
		t.Fatalf("Handshake() error = %v", err)
	}

	if err := s.WriteAll([]byte("hello\n")); err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}

	var got []byte
	buf := make([]byte, 64)
	for len(got) < 6 {
		n, err := s.Read(buf)
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		got = append(got, buf[:n]...)
	}
	if string(got) != "HELLO\n" {
		t.Errorf("Read() = %q, want %q", got, "HELLO\n")
	}

	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if _, err := s.Read(buf); !errors.Is(err, ErrNoConnection) {
		t.Errorf("Read() after Close error = %v, want ErrNoConnection", err)
	}
}

func TestSession_ResetRequired(t *testing.T) {
	t.Parallel()

	_, cert := fixture(t)

	uninitialized := NewSession(nil, "")
	if err := uninitialized.Reset("ticker.test", time.Now().Unix()); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Reset() before Init error = %v, want ErrNotInitialized", err)
	}

	s := newSession(t, "")
	p := newConnProvider(echoServer(t, cert))
	if err := s.Handshake(context.Background(), p, ""); !errors.Is(err, ErrNotReset) {
		t.Fatalf("Handshake() without Reset error = %v, want ErrNotReset", err)
	}

	if err := s.Reset("ticker.test", time.Now().Unix()); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if err := s.Handshake(context.Background(), p, ""); err != nil {
		t.Fatalf("Handshake() error = %v", err)
	}

	// reusing the engine of the previous handshake is refused
	again := newConnProvider(echoServer(t, cert))
	if err := s.Handshake(context.Background(), again, ""); !errors.Is(err, ErrNotReset) {
		t.Errorf("second Handshake() error = %v, want ErrNotReset", err)
	}
}

func TestSession_HandshakeFailures(t *testing.T) {
	t.Parallel()

	_, cert := fixture(t)

	tests := []struct {
		name       string
		store      *trust.Store
		serverName string
		clock      time.Time
		expire     bool
		wantCode   Code
		wantErr    error
	}{
		{
			name:       "unknown ca",
			store:      trust.Default(),
			serverName: "ticker.test",
			clock:      time.Now(),
			wantCode:   CodeCertificate,
			wantErr:    trust.ErrUntrusted,
		},
		{
			name:       "wrong name",
			serverName: "other.test",
			clock:      time.Now(),
			wantCode:   CodeCertificate,
			wantErr:    trust.ErrUntrusted,
		},
		{
			name:       "clock after expiry",
			serverName: "ticker.test",
			clock:      time.Now().Add(2 * crypto.ServerLifetime),
			wantCode:   CodeCertificate,
			wantErr:    trust.ErrUntrusted,
		},
		{
			name:       "expired bridge",
			serverName: "ticker.test",
			clock:      time.Now(),
			expire:     true,
			wantCode:   CodeTransport,
			wantErr:    ErrBridgeExpired,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := newSession(t, "")
			if tc.store != nil {
				if err := s.Init(tc.store, rand.Reader); err != nil {
					t.Fatalf("Init() error = %v", err)
				}
			}

			p := newConnProvider(echoServer(t, cert))
			if tc.expire {
				p.valid.Store(false)
			}

			if err := s.Reset(tc.serverName, tc.clock.Unix()); err != nil {
				t.Fatalf("Reset() error = %v", err)
			}
			err := s.Handshake(context.Background(), p, "")

			var tlsErr *Error
			if !errors.As(err, &tlsErr) {
				t.Fatalf("Handshake() error = %v (%T), want *Error", err, err)
			}
			if tlsErr.Op != "handshake" || tlsErr.Code != tc.wantCode {
				t.Errorf("Handshake() error op %q code %s, want handshake / %s", tlsErr.Op, tlsErr.Code, tc.wantCode)
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Handshake() error = %v, want it to wrap %v", err, tc.wantErr)
			}
		})
	}
}

func TestSession_Trace(t *testing.T) {
	t.Parallel()

	_, cert := fixture(t)
	trace := filepath.Join(t.TempDir(), "tls.trace")
	s := newSession(t, trace)

	if err := s.Reset("ticker.test", time.Now().Unix()); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if err := s.Handshake(context.Background(), newConnProvider(echoServer(t, cert)), ""); err != nil {
		t.Fatalf("Handshake() error = %v", err)
	}
	s.Close()

	data, err := os.ReadFile(trace)
	if err != nil {
		t.Fatalf("reading trace: %v", err)
	}
	if !strings.Contains(string(data), ">>") || !strings.Contains(string(data), "<<") {
		t.Errorf("trace does not show both directions:\n%s", data)
	}
}

func TestInit_Rejects(t *testing.T) {
	t.Parallel()

	empty, _ := trust.NewStore()
	if err := NewSession(nil, "").Init(empty, rand.Reader); !errors.Is(err, trust.ErrNoAnchors) {
		t.Errorf("Init(empty store) error = %v, want ErrNoAnchors", err)
	}
	if err := NewSession(nil, "").Init(trust.Default(), nil); err == nil {
		t.Error("Init() without entropy should fail")
	}
}

func TestCode_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code Code
		want string
	}{
		{CodeCertificate, "certificate"},
		{CodeTransport, "transport"},
		{Code(40), "alert 40"},
		{Code(-99), "code -99"},
	}
	for _, tc := range tests {
		if got := tc.code.String(); got != tc.want {
			t.Errorf("Code(%d).String() = %q, want %q", int(tc.code), got, tc.want)
		}
	}
}

package integration

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/coder/websocket"

	"ninjametal/ledticker/mocks"
	"ninjametal/ledticker/pkg/chip"
	"ninjametal/ledticker/pkg/client"
	"ninjametal/ledticker/pkg/config"
	"ninjametal/ledticker/pkg/display"
	"ninjametal/ledticker/pkg/relay"
	"ninjametal/ledticker/pkg/trust"
	"ninjametal/ledticker/test/helpers"
)

// startRelay serves wss on helpers.ServerIP:443 of the mock network and
// returns the server and its CA.
func startRelay(t *testing.T, ctx context.Context, deps *config.Dependencies) (*relay.Server, []byte) {
	t.Helper()

	cfg := config.DefaultRelay()
	cfg.Host = helpers.ServerIP.String()
	cfg.Port = 443
	cfg.Rooms = []string{"ledpanel"}
	cfg.SSL = true
	cfg.CertHosts = []string{"relay.test"}
	cfg.CAOut = filepath.Join(t.TempDir(), "ca.pem")
	cfg.Deps = deps

	s := relay.New(cfg)
	go func() {
		if err := s.ListenAndServe(ctx); err != nil {
			t.Errorf("ListenAndServe() error = %v", err)
		}
	}()

	var caPEM []byte
	helpers.WaitFor(t, "the relay CA", func() bool {
		data, err := os.ReadFile(cfg.CAOut)
		if err != nil {
			return false
		}
		if _, err := trust.FromPEM(data); err != nil {
			return false
		}
		caPEM = data
		return true
	})
	return s, caPEM
}

// dialRoom joins the room as a regular chat member over the mock network.
func dialRoom(ctx context.Context, n *mocks.Network, caPEM []byte) (*websocket.Conn, error) {
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caPEM)

	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			raddr, err := net.ResolveTCPAddr("tcp", addr)
			if err != nil {
				return nil, err
			}
			return n.DialTCP("tcp", nil, raddr)
		},
		TLSClientConfig: &tls.Config{RootCAs: pool, ServerName: "relay.test"},
	}

	conn, _, err := websocket.Dial(ctx, "wss://10.0.0.2:443/ws/ledpanel", &websocket.DialOptions{
		HTTPClient: &http.Client{Transport: transport},
	})
	return conn, err
}

func TestTickerShowsRelayedChat(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, _, deps := helpers.SetupMockDependencies(t)
	s, caPEM := startRelay(t, ctx, deps)

	anchors, err := trust.FromPEM(caPEM)
	if err != nil {
		t.Fatalf("FromPEM() error = %v", err)
	}
	store, err := trust.Default().With(anchors...)
	if err != nil {
		t.Fatalf("With() error = %v", err)
	}

	hosted := chip.NewHosted(deps)
	defer hosted.Shutdown()

	sink := display.NewRecorder(nil)
	c, err := client.New(helpers.ClientConfig(deps, "relay.test", "/ws/ledpanel"), hosted, sink, store, rand.Reader)
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}

	tickerCtx, stopTicker := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- c.Run(tickerCtx)
	}()
	helpers.WaitFor(t, "the ticker to join", func() bool { return s.Hub().Size("ledpanel") == 1 })

	poster, err := dialRoom(ctx, n, caPEM)
	if err != nil {
		t.Fatalf("dialRoom() error = %v", err)
	}
	defer poster.CloseNow()
	helpers.WaitFor(t, "the poster to join", func() bool { return s.Hub().Size("ledpanel") == 2 })

	for _, line := range []string{"/name desk", "breaking news", "more at eleven"} {
		if err := poster.Write(ctx, websocket.MessageText, []byte(line)); err != nil {
			t.Fatalf("poster Write(%q) error = %v", line, err)
		}
	}

	want := []string{"@desk - breaking news", "@desk - more at eleven"}
	helpers.WaitFor(t, "the ticker to show both posts", func() bool {
		return len(sink.Messages()) >= len(want)
	})
	if got := sink.Messages(); !slices.Equal(got, want) {
		t.Errorf("ticker showed %q, want %q", got, want)
	}

	stopTicker()
	hosted.Shutdown()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-ctx.Done():
		t.Fatal("Run() did not return after cancellation")
	}
	helpers.WaitFor(t, "the ticker to leave", func() bool { return s.Hub().Size("ledpanel") == 1 })
}

func TestTickerRejectsUnknownRelay(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, _, deps := helpers.SetupMockDependencies(t)
	s, _ := startRelay(t, ctx, deps)

	hosted := chip.NewHosted(deps)
	defer hosted.Shutdown()

	sink := display.NewRecorder(nil)
	c, err := client.New(helpers.ClientConfig(deps, "relay.test", "/ws/ledpanel"), hosted, sink, trust.Default(), rand.Reader)
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}

	err = c.Run(ctx)

	var clientErr *client.Error
	if !errors.As(err, &clientErr) || clientErr.Stage != client.StageTLS {
		t.Fatalf("Run() error = %v, want a tls stage error", err)
	}
	if n := s.Hub().Size("ledpanel"); n != 0 {
		t.Errorf("room has %d members, want none", n)
	}
}

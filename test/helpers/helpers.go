// Package helpers provides common utilities for integration and end-to-end tests.
package helpers

import (
	"io"
	"net/netip"
	"testing"
	"time"

	"ninjametal/ledticker/mocks"
	"ninjametal/ledticker/pkg/config"
	"ninjametal/ledticker/pkg/ntp"
)

// Addresses of the mock internet set up by SetupMockDependencies.
var (
	ServerIP = netip.MustParseAddr("10.0.0.2")
	NTPIP    = netip.MustParseAddr("10.0.0.3")
)

// SetupMockDependencies creates an in-memory network with a time server on
// NTPIP:123, a mock terminal, and dependencies wired to both.
func SetupMockDependencies(t *testing.T) (*mocks.Network, *mocks.Terminal, *config.Dependencies) {
	t.Helper()

	mockNet := mocks.NewNetwork()
	term := mocks.NewTerminal()

	pc, err := mockNet.ServeUDP(netip.AddrPortFrom(NTPIP, 123).String(), func([]byte) []byte {
		return ntp.NewResponse(time.Now())
	})
	if err != nil {
		t.Fatalf("ServeUDP() error = %v", err)
	}
	t.Cleanup(func() { pc.Close() })

	deps := &config.Dependencies{
		TCPDialer:      mockNet.DialTCP,
		TCPListener:    mockNet.ListenTCP,
		PacketListener: mockNet.ListenPacket,
		Stdin:          func() io.Reader { return term.Stdin() },
		Stdout:         func() io.Writer { return term.Stdout() },
	}

	return mockNet, term, deps
}

// ClientConfig returns a client configuration for the mock network: server
// host at ServerIP:443 serving path, fast poll loops and a single attempt.
func ClientConfig(deps *config.Dependencies, host, path string) *config.Client {
	cfg := config.DefaultClient()
	cfg.Endpoint = config.Endpoint{
		Host:   host,
		IP:     ServerIP,
		Port:   443,
		Path:   path,
		Origin: "https://" + host,
	}
	cfg.NTP.Server = NTPIP
	cfg.NTP.StartDelay = 0
	cfg.NTP.Poll = config.PollPolicy{Interval: time.Millisecond, MaxAttempts: 2000}
	cfg.Connect = config.PollPolicy{Interval: time.Millisecond, MaxAttempts: 2000}
	cfg.Read = config.PollPolicy{Interval: time.Millisecond, MaxAttempts: 10000}
	cfg.MaxAttempts = 1
	cfg.Deps = deps
	return cfg
}

// WaitFor polls cond until it holds or five seconds pass.
func WaitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

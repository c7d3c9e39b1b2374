// Package config holds the configuration of the ticker client and the
// development relay. Configuration is compiled in (DefaultClient) and
// overridden by CLI flags; there is no configuration file.
package config

import (
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"ninjametal/ledticker/pkg/log"
)

// Endpoint describes the remote WebSocket server.
type Endpoint struct {
	Host   string     // TLS server name and HTTP Host header
	IP     netip.Addr // the chip has no resolver, so the address is given explicitly
	Port   int
	Path   string
	Origin string
}

// Network is the static addressing written to the offload chip.
type Network struct {
	MAC     net.HardwareAddr
	IP      netip.Addr
	Subnet  netip.Addr
	Gateway netip.Addr
}

// PollPolicy bounds a busy-wait loop: at most MaxAttempts polls with
// Interval between them.
type PollPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

// Budget is the worst-case time a loop following the policy can wait.
func (p PollPolicy) Budget() time.Duration {
	return p.Interval * time.Duration(p.MaxAttempts)
}

// Buffers sizes the fixed buffers allocated once per client.
type Buffers struct {
	Read  int // decrypted bytes waiting for the frame decoder
	Frame int // decoded payload (one whole message)
	Write int // outgoing frames and the opening handshake
}

// Time configures the network time source.
type Time struct {
	Server     netip.Addr
	Port       int
	Socket     uint8
	LocalPort  uint16
	StartDelay time.Duration
	Poll       PollPolicy
}

// Client is the configuration of the ticker client.
type Client struct {
	Endpoint     Endpoint
	Network      Network
	Socket       uint8
	Connect      PollPolicy
	Read         PollPolicy
	NTP          Time
	Buffers      Buffers
	SubProtocols []string

	Seed      string // fixed entropy seed, empty selects the system source
	CAFile    string // extra trust anchors (PEM)
	TraceFile string // hex dump of the ciphertext stream

	RetryDelay  time.Duration
	MaxAttempts int // 0 retries forever

	Verbose bool
	Logger  *log.Logger
	Deps    *Dependencies
}

// DefaultClient returns the compiled-in configuration.
func DefaultClient() *Client {
	return &Client{
		Endpoint: Endpoint{
			Host:   "ninjametal.com",
			IP:     netip.AddrFrom4([4]byte{51, 140, 68, 75}),
			Port:   443,
			Path:   "/ws/ledpanel",
			Origin: "https://ninjametal.com",
		},
		Network: Network{
			MAC:     net.HardwareAddr{0x02, 0x01, 0x02, 0x03, 0x04, 0x05},
			IP:      netip.AddrFrom4([4]byte{192, 168, 1, 33}),
			Subnet:  netip.AddrFrom4([4]byte{255, 255, 255, 0}),
			Gateway: netip.AddrFrom4([4]byte{192, 168, 1, 1}),
		},
		Socket:  0,
		Connect: PollPolicy{Interval: 5 * time.Millisecond, MaxAttempts: 2000},
		Read:    PollPolicy{Interval: 10 * time.Millisecond, MaxAttempts: 6000},
		NTP: Time{
			Server:     netip.AddrFrom4([4]byte{212, 71, 255, 35}),
			Port:       123,
			Socket:     1,
			LocalPort:  50123,
			StartDelay: 250 * time.Millisecond,
			Poll:       PollPolicy{Interval: 50 * time.Millisecond, MaxAttempts: 100},
		},
		Buffers: Buffers{
			Read:  4096,
			Frame: 4096,
			Write: 512,
		},
		RetryDelay: time.Second,
	}
}

// Validate checks the client configuration.
func (c *Client) Validate() []error {
	var errors []error

	if c.Endpoint.Host == "" {
		errors = append(errors, fmt.Errorf("endpoint host must not be empty"))
	}
	if !c.Endpoint.IP.Is4() {
		errors = append(errors, fmt.Errorf("endpoint ip: %q is not an IPv4 address", c.Endpoint.IP))
	}
	if err := validatePort(c.Endpoint.Port); err != nil {
		errors = append(errors, fmt.Errorf("endpoint port: %s", err))
	}
	if !strings.HasPrefix(c.Endpoint.Path, "/") {
		errors = append(errors, fmt.Errorf("endpoint path %q must start with '/'", c.Endpoint.Path))
	}

	errors = append(errors, c.Network.validate()...)

	if err := validateSocket(c.Socket); err != nil {
		errors = append(errors, fmt.Errorf("socket: %s", err))
	}
	if err := c.Connect.validate(); err != nil {
		errors = append(errors, fmt.Errorf("connect poll: %s", err))
	}
	if err := c.Read.validate(); err != nil {
		errors = append(errors, fmt.Errorf("read poll: %s", err))
	}

	errors = append(errors, c.NTP.validate(c.Socket)...)
	errors = append(errors, c.Buffers.validate()...)

	if c.MaxAttempts < 0 {
		errors = append(errors, fmt.Errorf("max attempts must not be negative"))
	}

	return errors
}

func (n Network) validate() []error {
	var errors []error

	if len(n.MAC) != 6 {
		errors = append(errors, fmt.Errorf("mac %q must have 6 bytes", n.MAC))
	}
	for name, addr := range map[string]netip.Addr{"local ip": n.IP, "subnet": n.Subnet, "gateway": n.Gateway} {
		if !addr.Is4() {
			errors = append(errors, fmt.Errorf("%s: %q is not an IPv4 address", name, addr))
		}
	}

	return errors
}

func (t Time) validate(clientSocket uint8) []error {
	var errors []error

	if !t.Server.Is4() {
		errors = append(errors, fmt.Errorf("ntp server: %q is not an IPv4 address", t.Server))
	}
	if err := validatePort(t.Port); err != nil {
		errors = append(errors, fmt.Errorf("ntp port: %s", err))
	}
	if err := validateSocket(t.Socket); err != nil {
		errors = append(errors, fmt.Errorf("ntp socket: %s", err))
	} else if t.Socket == clientSocket {
		errors = append(errors, fmt.Errorf("ntp socket %d must differ from the client socket", t.Socket))
	}
	if err := t.Poll.validate(); err != nil {
		errors = append(errors, fmt.Errorf("ntp poll: %s", err))
	}

	return errors
}

func (b Buffers) validate() []error {
	var errors []error

	if b.Read < 128 {
		errors = append(errors, fmt.Errorf("read buffer %d must be at least 128 bytes", b.Read))
	}
	if b.Frame < 128 {
		errors = append(errors, fmt.Errorf("frame buffer %d must be at least 128 bytes", b.Frame))
	}
	if b.Write < 256 {
		errors = append(errors, fmt.Errorf("write buffer %d must be at least 256 bytes", b.Write))
	}

	return errors
}

func (p PollPolicy) validate() error {
	if p.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1")
	}
	return nil
}

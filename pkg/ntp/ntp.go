// Package ntp fetches the current time with a single SNTP v4 exchange over a
// UDP socket slot of the offload chip. Certificate validation needs a clock
// and the device has no reliable real-time clock, so every connection
// attempt starts here.
package ntp

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"ninjametal/ledticker/pkg/chip"
	"ninjametal/ledticker/pkg/config"
	"ninjametal/ledticker/pkg/format"
	"ninjametal/ledticker/pkg/log"
)

// PacketSize is the size of an SNTP packet without extension fields.
const PacketSize = 48

const (
	version    = 4
	modeClient = 3
	modeServer = 4

	// seconds between 1900-01-01 and 1970-01-01
	unixOffset = 2208988800
	// timestamps with the top bit clear belong to era 1 (after 2036-02-07)
	eraLength = 1 << 32

	timestampOffset = 32
)

var (
	ErrInvalidPacketLength = errors.New("ntp: invalid packet length")
	ErrInvalidVersion      = errors.New("ntp: invalid version")
	ErrTimeout             = errors.New("ntp: no valid reply")
	ErrClockUnset          = errors.New("ntp: clock not set")
)

// NewRequest returns a client request: LI 0, VN 4, mode 3, all else zero.
func NewRequest() []byte {
	pkt := make([]byte, PacketSize)
	pkt[0] = 0<<6 | version<<3 | modeClient
	return pkt
}

// NewResponse returns a server reply carrying t in its timestamp fields.
func NewResponse(t time.Time) []byte {
	pkt := make([]byte, PacketSize)
	pkt[0] = 0<<6 | version<<3 | modeServer
	pkt[1] = 1 // stratum

	secs := uint64(t.Unix()+unixOffset) % eraLength
	frac := uint64(t.Nanosecond()) << 32 / uint64(time.Second)
	ts := secs<<32 | frac
	binary.BigEndian.PutUint64(pkt[32:40], ts)
	binary.BigEndian.PutUint64(pkt[40:48], ts)
	return pkt
}

// ParseResponse converts the timestamp of a server reply to Unix seconds.
// The seconds are the upper 32 bits of the 64-bit fixed-point value; the
// fraction is dropped.
func ParseResponse(pkt []byte) (int64, error) {
	if len(pkt) != PacketSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrInvalidPacketLength, len(pkt))
	}
	if v := (pkt[0] >> 3) & 0x07; v != version {
		return 0, fmt.Errorf("%w: %d", ErrInvalidVersion, v)
	}

	secs := int64(binary.BigEndian.Uint32(pkt[timestampOffset : timestampOffset+4]))
	if secs&(1<<31) == 0 {
		secs += eraLength
	}
	return secs - unixOffset, nil
}

// Client queries one time server through the chip.
type Client struct {
	drv    chip.Driver
	sock   chip.Socket
	cfg    config.Time
	sleep  config.SleepFunc
	logger *log.Logger
}

// New creates a time client from the client configuration.
func New(drv chip.Driver, cfg *config.Client) *Client {
	return &Client{
		drv:    drv,
		sock:   chip.Socket(cfg.NTP.Socket),
		cfg:    cfg.NTP,
		sleep:  config.GetSleepFunc(cfg.Deps),
		logger: cfg.Logger,
	}
}

// FetchUnixTime sends a request and polls for a valid reply. Malformed
// replies are logged and the request is sent again; the loop is bounded by
// the configured PollPolicy.
func (c *Client) FetchUnixTime(ctx context.Context) (int64, error) {
	server := format.Endpoint(c.cfg.Server, uint16(c.cfg.Port))

	if err := c.drv.SetProtocol(c.sock, chip.ProtocolUDP); err != nil {
		return 0, fmt.Errorf("SetProtocol(%s, udp): %w", c.sock, err)
	}
	defer c.drv.Close(c.sock) // best effort, the slot is reopened next time

	// don't hammer the server when the device is stuck in a reboot loop
	c.sleep(c.cfg.StartDelay)

	if err := c.send(); err != nil {
		return 0, err
	}
	c.logger.VerboseMsg("ntp request sent to %s", server)

	buf := make([]byte, PacketSize+16)
	var lastErr error
	for attempt := 0; attempt < c.cfg.Poll.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		ip, port, n, ok, err := c.drv.TryReceiveUDP(c.sock, buf)
		if err != nil {
			return 0, fmt.Errorf("TryReceiveUDP(%s): %w", c.sock, err)
		}
		if !ok {
			c.sleep(c.cfg.Poll.Interval)
			continue
		}
		if int(port) != c.cfg.Port {
			c.logger.VerboseMsg("ignoring datagram from %s", format.Endpoint(ip, port))
			continue
		}

		unix, err := ParseResponse(buf[:min(n, len(buf))])
		if err != nil {
			lastErr = err
			c.logger.WarnMsg("bad reply from %s: %s", server, err)
			if err := c.send(); err != nil {
				return 0, err
			}
			c.sleep(c.cfg.Poll.Interval)
			continue
		}

		c.logger.VerboseMsg("ntp time: %d (%s)", unix, time.Unix(unix, 0).UTC().Format(time.RFC3339))
		return unix, nil
	}

	if lastErr != nil {
		return 0, fmt.Errorf("%s after %s: %w: %w", server, c.cfg.Poll.Budget(), ErrTimeout, lastErr)
	}
	return 0, fmt.Errorf("%s after %s: %w", server, c.cfg.Poll.Budget(), ErrTimeout)
}

func (c *Client) send() error {
	err := c.drv.SendUDP(c.sock, c.cfg.LocalPort, c.cfg.Server, uint16(c.cfg.Port), NewRequest())
	if err != nil {
		return fmt.Errorf("SendUDP(%s): %w", c.sock, err)
	}
	return nil
}

// Clock hands the fetched time to the TLS session. It is written once and
// read once per connection attempt.
type Clock struct {
	mu    sync.Mutex
	value int64
	set   bool
}

// Set stores the current Unix time.
func (c *Clock) Set(unix int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value, c.set = unix, true
}

// Take returns the stored time and clears the clock.
func (c *Clock) Take() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.set {
		return 0, ErrClockUnset
	}
	c.set = false
	return c.value, nil
}

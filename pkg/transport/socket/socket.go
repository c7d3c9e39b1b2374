// Package socket drives one TCP socket slot of the offload chip.
//
// The chip runs the TCP/IP stack itself; this package owns the state machine
// layered on top: configure the chip, open the slot, wait for Established,
// and move bytes while re-checking the connection on every step. All waits
// are bounded poll loops (config.PollPolicy) that end with ErrTimeout.
//
//	Closed -> (open+connect) -> Init/SynSent -> Established -> CloseWait|Closed
//
// Only Established permits data transfer. Any other status observed by Read
// or WriteAll yields ErrClosed and the caller has to reconnect.
package socket

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	"ninjametal/ledticker/pkg/chip"
	"ninjametal/ledticker/pkg/config"
	"ninjametal/ledticker/pkg/format"
	"ninjametal/ledticker/pkg/log"
)

var (
	// ErrClosed means the connection is not (or no longer) Established.
	ErrClosed = errors.New("socket closed")
	// ErrStatusUnavailable means the chip could not report a socket status.
	ErrStatusUnavailable = errors.New("socket status unavailable")
	// ErrTimeout means a poll loop exhausted its PollPolicy.
	ErrTimeout = errors.New("socket poll timeout")
	// ErrLeaseExpired means a Lease outlived the connection it was taken from.
	ErrLeaseExpired = errors.New("socket lease expired")
)

// Conn is the Socket Transport for a single chip socket slot. It is not safe
// for concurrent use; the client drives it from one goroutine.
type Conn struct {
	drv    chip.Driver
	sock   chip.Socket
	net    config.Network
	dial   config.PollPolicy
	read   config.PollPolicy
	sleep  config.SleepFunc
	logger *log.Logger

	configured bool
	status     chip.SocketStatus
	remote     string

	// gen identifies the current connection. Leases taken from an older
	// generation are rejected.
	gen  uint64
	open bool
}

// New creates the transport for the socket slot named in cfg.
func New(drv chip.Driver, cfg *config.Client) *Conn {
	return &Conn{
		drv:    drv,
		sock:   chip.Socket(cfg.Socket),
		net:    cfg.Network,
		dial:   cfg.Connect,
		read:   cfg.Read,
		sleep:  config.GetSleepFunc(cfg.Deps),
		logger: cfg.Logger,
		status: chip.StatusClosed,
	}
}

// Connect opens the socket slot and waits until the connection to ip:port
// is Established. The chip is configured on the first call only.
func (c *Conn) Connect(ctx context.Context, ip netip.Addr, port uint16) error {
	if err := c.configure(); err != nil {
		return err
	}

	// a new attempt invalidates whatever was leased from the previous one
	c.gen++
	c.open = false
	c.remote = format.Endpoint(ip, port)

	if err := c.drv.SetProtocol(c.sock, chip.ProtocolTCP); err != nil {
		return fmt.Errorf("SetProtocol(%s, tcp): %w", c.sock, err)
	}
	if err := c.drv.Disconnect(c.sock); err != nil {
		return fmt.Errorf("Disconnect(%s): %w", c.sock, err)
	}
	if err := c.drv.OpenTCP(c.sock); err != nil {
		return fmt.Errorf("OpenTCP(%s): %w", c.sock, err)
	}
	if err := c.drv.Connect(c.sock, ip, port); err != nil {
		return fmt.Errorf("Connect(%s, %s): %w", c.sock, c.remote, err)
	}

	for attempt := 0; attempt < c.dial.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		status, err := c.poll()
		if err != nil {
			return fmt.Errorf("connecting to %s: %w", c.remote, err)
		}
		if status == chip.StatusEstablished {
			c.open = true
			c.logger.VerboseMsg("%s connected to %s", c.sock, c.remote)
			return nil
		}
		if status.Terminal() {
			return fmt.Errorf("connecting to %s: status %s: %w", c.remote, status, ErrClosed)
		}

		c.sleep(c.dial.Interval)
	}

	return fmt.Errorf("connecting to %s after %s: %w", c.remote, c.dial.Budget(), ErrTimeout)
}

func (c *Conn) configure() error {
	if c.configured {
		return nil
	}

	if err := c.drv.SetMode(chip.Mode{}); err != nil {
		return fmt.Errorf("SetMode(): %w", err)
	}
	if err := c.drv.SetMAC(c.net.MAC); err != nil {
		return fmt.Errorf("SetMAC(%s): %w", c.net.MAC, err)
	}
	if err := c.drv.SetIP(c.net.IP); err != nil {
		return fmt.Errorf("SetIP(%s): %w", c.net.IP, err)
	}
	if err := c.drv.SetSubnet(c.net.Subnet); err != nil {
		return fmt.Errorf("SetSubnet(%s): %w", c.net.Subnet, err)
	}
	if err := c.drv.SetGateway(c.net.Gateway); err != nil {
		return fmt.Errorf("SetGateway(%s): %w", c.net.Gateway, err)
	}

	c.configured = true
	c.logger.VerboseMsg("chip configured: mac %s, ip %s/%s, gateway %s", c.net.MAC, c.net.IP, c.net.Subnet, c.net.Gateway)
	return nil
}

// poll reads the socket status and records transitions.
func (c *Conn) poll() (chip.SocketStatus, error) {
	status, ok, err := c.drv.SocketStatus(c.sock)
	if err != nil {
		return c.status, fmt.Errorf("SocketStatus(%s): %w", c.sock, err)
	}
	if !ok {
		return c.status, ErrStatusUnavailable
	}

	if status != c.status {
		if status.Known() {
			c.logger.VerboseMsg("%s: %s -> %s", c.sock, c.status, status)
		} else {
			c.logger.WarnMsg("%s: undocumented status %s after %s", c.sock, status, c.status)
		}
		c.status = status
	}
	return status, nil
}

// established fails with ErrClosed unless the socket is Established.
func (c *Conn) established() error {
	status, err := c.poll()
	if err != nil {
		return err
	}
	if status != chip.StatusEstablished {
		c.open = false
		return fmt.Errorf("status %s: %w", status, ErrClosed)
	}
	return nil
}

// Read blocks until at least one byte was received and returns the number of
// bytes copied into buf. It fails with ErrClosed once the connection drops.
func (c *Conn) Read(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	for attempt := 0; attempt < c.read.MaxAttempts; attempt++ {
		if err := c.established(); err != nil {
			return 0, fmt.Errorf("Read(%s): %w", c.sock, err)
		}

		n, ok, err := c.drv.TryReceiveTCP(c.sock, buf)
		if err != nil {
			return 0, fmt.Errorf("TryReceiveTCP(%s): %w", c.sock, err)
		}
		if ok && n > 0 {
			return n, nil
		}

		c.sleep(c.read.Interval)
	}

	return 0, fmt.Errorf("Read(%s): nothing received for %s: %w", c.sock, c.read.Budget(), ErrTimeout)
}

// WriteAll sends buf in as many partial sends as the chip needs. The status
// is checked before every partial send.
func (c *Conn) WriteAll(buf []byte) error {
	stalled := 0
	for len(buf) > 0 {
		if err := c.established(); err != nil {
			return fmt.Errorf("WriteAll(%s): %d bytes left: %w", c.sock, len(buf), err)
		}

		n, err := c.drv.SendTCP(c.sock, buf)
		if err != nil {
			return fmt.Errorf("SendTCP(%s): %w", c.sock, err)
		}
		if n < 0 || n > len(buf) {
			return fmt.Errorf("SendTCP(%s): chip reported %d of %d bytes sent", c.sock, n, len(buf))
		}
		buf = buf[n:]

		if n > 0 {
			stalled = 0
			continue
		}
		stalled++
		if stalled >= c.read.MaxAttempts {
			return fmt.Errorf("WriteAll(%s): no progress for %s: %w", c.sock, c.read.Budget(), ErrTimeout)
		}
		c.sleep(c.read.Interval)
	}

	return nil
}

// Close releases the socket slot and expires every Lease. Close is safe to
// call on a closed Conn.
func (c *Conn) Close() error {
	c.gen++
	c.open = false
	c.status = chip.StatusClosed

	if err := c.drv.Close(c.sock); err != nil {
		return fmt.Errorf("Close(%s): %w", c.sock, err)
	}
	return nil
}

// Lease returns an I/O handle bound to the current connection. Once the
// connection is closed or replaced by a new Connect, every call through the
// handle fails with ErrLeaseExpired.
func (c *Conn) Lease() *Lease {
	return &Lease{conn: c, gen: c.gen}
}

// Lease is a generation-checked view of a Conn.
type Lease struct {
	conn *Conn
	gen  uint64
}

// Valid reports whether the lease still refers to the live connection.
func (l *Lease) Valid() bool {
	return l.conn.gen == l.gen && l.conn.open
}

// Read is Conn.Read for a valid lease.
func (l *Lease) Read(buf []byte) (int, error) {
	if !l.Valid() {
		return 0, ErrLeaseExpired
	}
	return l.conn.Read(buf)
}

// WriteAll is Conn.WriteAll for a valid lease.
func (l *Lease) WriteAll(buf []byte) error {
	if !l.Valid() {
		return ErrLeaseExpired
	}
	return l.conn.WriteAll(buf)
}

// Close closes the underlying connection if the lease is still valid.
func (l *Lease) Close() error {
	if !l.Valid() {
		return nil
	}
	return l.conn.Close()
}

// RemoteAddr returns the endpoint passed to Connect.
func (l *Lease) RemoteAddr() string {
	return l.conn.remote
}

// Package client composes the ticker stack: socket transport, time source,
// TLS session and WebSocket client, feeding text messages to a display.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"ninjametal/ledticker/pkg/chip"
	"ninjametal/ledticker/pkg/config"
	"ninjametal/ledticker/pkg/display"
	"ninjametal/ledticker/pkg/format"
	"ninjametal/ledticker/pkg/log"
	"ninjametal/ledticker/pkg/ntp"
	"ninjametal/ledticker/pkg/tlsclient"
	"ninjametal/ledticker/pkg/transport/socket"
	"ninjametal/ledticker/pkg/trust"
	"ninjametal/ledticker/pkg/websocket"
)

// previewLen bounds how much of a message is logged.
const previewLen = 100

// Stage names the layer a connection attempt failed in.
type Stage string

const (
	StageTransport Stage = "transport"
	StageTime      Stage = "time"
	StageTLS       Stage = "tls"
	StageWebSocket Stage = "websocket"
	StageDisplay   Stage = "display"
)

// Error is the failure of one connection attempt.
type Error struct {
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Client runs the ticker. It owns the chip and every buffer of the stack;
// it is not safe for concurrent use.
type Client struct {
	cfg    *config.Client
	sink   display.Sink
	logger *log.Logger

	conn    *socket.Conn
	time    *ntp.Client
	clock   ntp.Clock
	tls     *tlsclient.Session
	entropy io.Reader

	readBuf, frameBuf, writeBuf, msgBuf []byte
}

// New builds the stack on drv. Handshakes are validated against store and
// keyed from entropy.
func New(cfg *config.Client, drv chip.Driver, sink display.Sink, store *trust.Store, entropy io.Reader) (*Client, error) {
	session := tlsclient.NewSession(cfg.Logger, cfg.TraceFile)
	if err := session.Init(store, entropy); err != nil {
		return nil, fmt.Errorf("tls init: %w", err)
	}

	return &Client{
		cfg:      cfg,
		sink:     sink,
		logger:   cfg.Logger,
		conn:     socket.New(drv, cfg),
		time:     ntp.New(drv, cfg),
		tls:      session,
		entropy:  entropy,
		readBuf:  make([]byte, cfg.Buffers.Read),
		frameBuf: make([]byte, cfg.Buffers.Frame),
		writeBuf: make([]byte, cfg.Buffers.Write),
		msgBuf:   make([]byte, cfg.Buffers.Frame),
	}, nil
}

// Run connects and reconnects until ctx is cancelled or MaxAttempts
// attempts were made. It returns the error of the last attempt.
func (c *Client) Run(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		err := c.attempt(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			c.logger.ErrorMsg("attempt %d failed: %s", attempt, err)
		} else {
			c.logger.InfoMsg("connection to %s closed", c.cfg.Endpoint.Host)
		}

		if c.cfg.MaxAttempts > 0 && attempt >= c.cfg.MaxAttempts {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.RetryDelay):
		}
	}
}

// attempt runs one connection from scratch. It returns nil when the server
// closed the connection cleanly.
func (c *Client) attempt(ctx context.Context) error {
	ep := c.cfg.Endpoint

	c.logger.VerboseMsg("connecting to %s", format.Endpoint(ep.IP, uint16(ep.Port)))
	if err := c.conn.Connect(ctx, ep.IP, uint16(ep.Port)); err != nil {
		c.conn.Close() // best effort
		return &Error{Stage: StageTransport, Err: err}
	}
	lease := c.conn.Lease()
	defer lease.Close() // no-op once dispatch closed the connection

	unix, err := c.time.FetchUnixTime(ctx)
	if err != nil {
		return &Error{Stage: StageTime, Err: err}
	}
	c.clock.Set(unix)

	now, err := c.clock.Take()
	if err != nil {
		return &Error{Stage: StageTime, Err: err}
	}
	if err := c.tls.Reset(ep.Host, now); err != nil {
		return &Error{Stage: StageTLS, Err: err}
	}
	if err := c.tls.Handshake(ctx, lease, lease.RemoteAddr()); err != nil {
		return &Error{Stage: StageTLS, Err: err}
	}
	defer c.tls.Close() // close_notify, unless the transport is gone already

	framer := websocket.NewFramer(websocket.NewClient(c.entropy), c.tls, c.readBuf, c.frameBuf, c.writeBuf)
	err = framer.Connect(websocket.Options{
		Path:         ep.Path,
		Host:         ep.Host,
		Origin:       ep.Origin,
		SubProtocols: c.cfg.SubProtocols,
	})
	if err != nil {
		return &Error{Stage: stageOf(err, StageWebSocket), Err: err}
	}
	c.logger.InfoMsg("connected to wss://%s%s", format.Addr(ep.Host, ep.Port), ep.Path)

	for {
		if err := ctx.Err(); err != nil {
			if cerr := framer.Close(websocket.GoingAway, "ticker shutting down"); cerr != nil {
				c.logger.VerboseMsg("close handshake: %s", cerr)
			}
			return err
		}

		msg, err := framer.ReadMessage(c.msgBuf)
		if err != nil {
			return &Error{Stage: stageOf(err, StageWebSocket), Err: err}
		}

		done, err := c.dispatch(framer, lease, msg)
		if err != nil || done {
			return err
		}
	}
}

// stageOf attributes errors that surfaced through the TLS stream to the TLS
// stage.
func stageOf(err error, fallback Stage) Stage {
	var tlsErr *tlsclient.Error
	if errors.As(err, &tlsErr) {
		return StageTLS
	}
	return fallback
}

// replier answers control frames.
type replier interface {
	Reply(msg websocket.Message) error
}

// dispatch acts on one message. It reports done once the connection was
// closed.
func (c *Client) dispatch(r replier, transport io.Closer, msg websocket.Message) (bool, error) {
	switch msg.Type {
	case websocket.Text:
		text := string(msg.Data)
		c.logger.InfoMsg("message: %s", format.Preview(text, previewLen))
		if err := c.sink.Show(text); err != nil {
			c.logger.ErrorMsg("%s", &Error{Stage: StageDisplay, Err: err})
		}

	case websocket.Binary:
		c.logger.WarnMsg("ignoring %d byte binary message", len(msg.Data))

	case websocket.Ping:
		if err := r.Reply(msg); err != nil {
			return false, &Error{Stage: stageOf(err, StageWebSocket), Err: err}
		}

	case websocket.Pong:

	case websocket.CloseMustReply:
		c.logger.InfoMsg("server is closing the connection: %s%s", msg.CloseStatus, closeReason(msg.Data))
		if err := r.Reply(msg); err != nil {
			return true, &Error{Stage: stageOf(err, StageWebSocket), Err: err}
		}
		if err := transport.Close(); err != nil {
			return true, &Error{Stage: StageTransport, Err: err}
		}
		return true, nil

	case websocket.CloseCompleted:
		c.logger.VerboseMsg("close handshake completed: %s", msg.CloseStatus)
		if err := transport.Close(); err != nil {
			return true, &Error{Stage: StageTransport, Err: err}
		}
		return true, nil
	}

	return false, nil
}

func closeReason(payload []byte) string {
	if len(payload) <= 2 {
		return ""
	}
	return fmt.Sprintf(" (%s)", payload[2:])
}

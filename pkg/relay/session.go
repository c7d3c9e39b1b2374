package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coder/websocket"
)

// session runs one member until the peer leaves, misses a heartbeat or ctx
// ends.
func (s *Server) session(ctx context.Context, conn *websocket.Conn, room string) {
	m := s.hub.newMember("anon")
	if err := s.hub.join(m, room); err != nil {
		conn.Close(websocket.StatusPolicyViolation, err.Error())
		return
	}
	defer s.hub.leave(m)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.heartbeat(ctx, cancel, conn)
	go s.deliver(ctx, cancel, conn, m)

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status != -1 {
				s.logger.VerboseMsg("member %d closed: %s", m.id, status)
			} else if ctx.Err() == nil {
				s.logger.VerboseMsg("member %d: %s", m.id, err)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		s.handle(m, strings.TrimSpace(string(data)))
	}
}

// heartbeat pings the member every Heartbeat and drops it when a pong takes
// longer than ClientTimeout.
func (s *Server) heartbeat(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn) {
	ticker := time.NewTicker(s.cfg.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		pingCtx, pingCancel := context.WithTimeout(ctx, s.cfg.ClientTimeout)
		err := conn.Ping(pingCtx)
		pingCancel()
		if err != nil {
			if ctx.Err() == nil {
				s.logger.WarnMsg("heartbeat failed, disconnecting: %s", err)
			}
			cancel()
			return
		}
	}
}

// deliver writes queued room messages to the member.
func (s *Server) deliver(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, m *member) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-m.outbox:
			if err := conn.Write(ctx, websocket.MessageText, []byte(msg)); err != nil {
				if !errors.Is(err, context.Canceled) {
					s.logger.VerboseMsg("member %d: write: %s", m.id, err)
				}
				cancel()
				return
			}
		}
	}
}

// handle runs a chat command or broadcasts text.
func (s *Server) handle(m *member, text string) {
	if text == "" {
		return
	}
	if !strings.HasPrefix(text, "/") {
		n := s.hub.broadcast(m, text)
		s.logger.VerboseMsg("member %d posted to %d others", m.id, n)
		return
	}

	cmd, arg, _ := strings.Cut(text, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/list":
		for _, room := range s.hub.Rooms() {
			reply(m, room)
		}

	case "/join":
		if arg == "" {
			reply(m, "!!! room name is required")
			return
		}
		if err := s.hub.join(m, arg); err != nil {
			reply(m, fmt.Sprintf("!!! %s", err))
			return
		}
		reply(m, fmt.Sprintf("joined %s", arg))

	case "/name":
		if arg == "" {
			reply(m, "!!! name is required")
			return
		}
		s.hub.rename(m, arg)
		reply(m, fmt.Sprintf("name changed to: %s", arg))

	default:
		reply(m, fmt.Sprintf("!!! unknown command: %q", text))
	}
}

func reply(m *member, text string) {
	select {
	case m.outbox <- text:
	default:
	}
}

// Package relay is the development chat relay the ticker connects to: every
// text posted to a room under /ws/{room} is broadcast to the other members,
// so anything typed into the room scrolls across the panel.
package relay

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/coder/websocket"

	"ninjametal/ledticker/pkg/config"
	"ninjametal/ledticker/pkg/crypto"
	"ninjametal/ledticker/pkg/format"
	"ninjametal/ledticker/pkg/log"
	"ninjametal/ledticker/pkg/semaphore"
)

// Server accepts chat members.
type Server struct {
	cfg    *config.Relay
	hub    *Hub
	slots  *semaphore.Slots
	logger *log.Logger
}

// New creates a relay from cfg.
func New(cfg *config.Relay) *Server {
	return &Server{
		cfg:    cfg,
		hub:    NewHub(cfg.Rooms),
		slots:  semaphore.New(cfg.MaxConns),
		logger: cfg.Logger,
	}
}

// Hub returns the room registry.
func (s *Server) Hub() *Hub {
	return s.hub
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := format.Addr(s.cfg.Host, s.cfg.Port)

	listener, err := s.createNetListener(addr)
	if err != nil {
		return err
	}
	defer listener.Close()

	scheme := "ws"
	if s.cfg.SSL {
		scheme = "wss"
	}
	s.logger.InfoMsg("relay listening on %s://%s/ws/{room}, rooms %v", scheme, listener.Addr(), s.hub.Rooms())

	return s.Serve(ctx, listener)
}

// Serve serves on an existing listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return serveWithContext(ctx, server, listener)
}

func (s *Server) createNetListener(addr string) (net.Listener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("net.ResolveTCPAddr(tcp, %s): %w", addr, err)
	}

	// the CA must be on disk before the port accepts devices
	var tlsCfg *tls.Config
	if s.cfg.SSL {
		if tlsCfg, err = s.tlsConfig(); err != nil {
			return nil, fmt.Errorf("TLS setup: %w", err)
		}
	}

	listenTCP := config.GetTCPListenerFunc(s.cfg.Deps)
	nl, err := listenTCP("tcp", tcpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen(tcp, %s): %w", tcpAddr, err)
	}

	if tlsCfg != nil {
		return tls.NewListener(nl, tlsCfg), nil
	}
	return nl, nil
}

// tlsConfig serves a fresh certificate signed by a throwaway CA. The CA is
// written to CAOut so devices can be given it as a trust anchor.
func (s *Server) tlsConfig() (*tls.Config, error) {
	seed, err := crypto.Token(16)
	if err != nil {
		return nil, fmt.Errorf("crypto.Token(): %w", err)
	}
	caPEM, cert, err := crypto.GenerateCertificates(seed, s.cfg.CertHosts...)
	if err != nil {
		return nil, fmt.Errorf("crypto.GenerateCertificates(%v): %w", s.cfg.CertHosts, err)
	}

	if s.cfg.CAOut != "" {
		if err := os.WriteFile(s.cfg.CAOut, caPEM, 0o644); err != nil {
			return nil, fmt.Errorf("write CA: %w", err)
		}
		s.logger.InfoMsg("CA certificate written to %s", s.cfg.CAOut)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// Handler routes /ws/{room} to chat sessions. Sessions end when ctx does.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/{room}", func(w http.ResponseWriter, r *http.Request) {
		room := r.PathValue("room")
		if !s.hub.Valid(room) {
			s.logger.VerboseMsg("rejecting %s: unknown room %q", r.RemoteAddr, room)
			http.NotFound(w, r)
			return
		}

		if !s.slots.TryAcquire() {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
		defer s.slots.Release()

		s.handleUpgrade(ctx, w, r, room)
	})
	return mux
}

func (s *Server) handleUpgrade(ctx context.Context, w http.ResponseWriter, r *http.Request, room string) {
	// devices send their production origin, whatever host serves them
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		s.logger.ErrorMsg("websocket.Accept(): %s", err)
		return
	}
	defer conn.CloseNow()

	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorMsg("session panic: %v", r)
		}
	}()

	s.logger.InfoMsg("%s joined room %s", r.RemoteAddr, room)
	s.session(ctx, conn, room)
	s.logger.InfoMsg("%s left", r.RemoteAddr)
}

func serveWithContext(ctx context.Context, server *http.Server, listener net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		_ = listener.Close()
		err := <-errCh
		if err == nil || errors.Is(err, http.ErrServerClosed) || errors.Is(err, net.ErrClosed) {
			return nil
		}
		return fmt.Errorf("serving after cancellation: %w", err)

	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http.Server.Serve(): %w", err)
	}
}

package say

import (
	"context"
	"io"
	"path/filepath"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"ninjametal/ledticker/mocks"
	"ninjametal/ledticker/pkg/config"
	"ninjametal/ledticker/pkg/relay"
)

func TestGetCommand(t *testing.T) {
	t.Parallel()

	cmd := GetCommand()

	if cmd == nil {
		t.Fatal("GetCommand() returned nil")
	}
	if cmd.Name != "say" {
		t.Errorf("command name = %q; want %q", cmd.Name, "say")
	}
	if cmd.Action == nil {
		t.Error("command action should not be nil")
	}

	flagNames := make(map[string]bool)
	for _, flag := range getFlags() {
		flagNames[flag.Names()[0]] = true
	}
	for _, name := range []string{"verbose", "name", "ca"} {
		if !flagNames[name] {
			t.Errorf("expected flag %q not found", name)
		}
	}
}

func TestRun(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network test in short mode")
	}
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s := relay.New(config.DefaultRelay())
	srv := httptest.NewServer(s.Handler(ctx))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/demo"

	panel, err := relay.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer panel.CloseNow()

	term := mocks.NewTerminal()
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, url, nil, "desk", term.Stdin(), term.Stdout())
	}()

	if err := term.WaitForOutput("name changed to: desk", 5*time.Second); err != nil {
		t.Fatal(err)
	}
	if err := term.Type("hello panel"); err != nil {
		t.Fatalf("Type() error = %v", err)
	}

	_, data, err := panel.Read(ctx)
	if err != nil {
		t.Fatalf("panel Read() error = %v", err)
	}
	if got := string(data); got != "@desk - hello panel" {
		t.Errorf("panel read %q, want %q", got, "@desk - hello panel")
	}

	if err := panel.Write(ctx, websocket.MessageText, []byte("scrolling now")); err != nil {
		t.Fatalf("panel Write() error = %v", err)
	}
	if err := term.WaitForOutput("@anon - scrolling now", 5*time.Second); err != nil {
		t.Fatal(err)
	}

	term.EndInput()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() error = %v", err)
		}
	case <-ctx.Done():
		t.Fatal("run() did not return after input ended")
	}
}

func TestCommand_Action(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network test in short mode")
	}
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s := relay.New(config.DefaultRelay())
	srv := httptest.NewServer(s.Handler(ctx))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/demo"

	term := mocks.NewTerminal()
	deps := &config.Dependencies{
		Stdin:  func() io.Reader { return term.Stdin() },
		Stdout: func() io.Writer { return term.Stdout() },
	}

	done := make(chan error, 1)
	go func() {
		done <- getCommand(deps).Run(ctx, []string{"say", "--name", "desk", url})
	}()

	if err := term.WaitForOutput("name changed to: desk", 5*time.Second); err != nil {
		t.Fatal(err)
	}
	if err := term.Type("/list"); err != nil {
		t.Fatalf("Type() error = %v", err)
	}
	if err := term.WaitForOutput("demo\n", 5*time.Second); err != nil {
		t.Fatal(err)
	}

	term.EndInput()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-ctx.Done():
		t.Fatal("Run() did not return after input ended")
	}
}

func TestCommand_Errors(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "missing.pem")
	for _, args := range [][]string{
		{"say"},
		{"say", "http://localhost/ws/demo"},
		{"say", "--ca", missing, "wss://localhost/ws/demo"},
	} {
		if err := GetCommand().Run(context.Background(), args); err == nil {
			t.Errorf("Run(%v) succeeded, want error", args)
		}
	}
}

func TestRun_Unreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(nil)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/demo"
	srv.Close()

	term := mocks.NewTerminal()
	if err := run(context.Background(), url, nil, "", term.Stdin(), term.Stdout()); err == nil {
		t.Error("run() against a closed relay succeeded, want error")
	}
}

func TestRun_BadCA(t *testing.T) {
	t.Parallel()

	term := mocks.NewTerminal()
	if err := run(context.Background(), "wss://localhost:8663/ws/demo", []byte("junk"), "", term.Stdin(), term.Stdout()); err == nil {
		t.Error("run() with junk CA succeeded, want error")
	}
}

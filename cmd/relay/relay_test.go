package relay

import (
	"context"
	"slices"
	"testing"

	"github.com/urfave/cli/v3"

	"ninjametal/ledticker/pkg/config"
)

func TestGetCommand(t *testing.T) {
	t.Parallel()

	cmd := GetCommand()

	if cmd == nil {
		t.Fatal("GetCommand() returned nil")
	}
	if cmd.Name != "relay" {
		t.Errorf("command name = %q; want %q", cmd.Name, "relay")
	}
	if cmd.Usage == "" {
		t.Error("command usage should not be empty")
	}
	if cmd.Action == nil {
		t.Error("command action should not be nil")
	}
}

func TestGetFlags(t *testing.T) {
	t.Parallel()

	flagNames := make(map[string]bool)
	for _, flag := range getFlags() {
		if names := flag.Names(); len(names) > 0 {
			flagNames[names[0]] = true
		}
	}

	for _, name := range []string{"verbose", "ssl", "ca-out", "room", "cert-host", "max-conns"} {
		if !flagNames[name] {
			t.Errorf("expected flag %q not found", name)
		}
	}
}

func parse(t *testing.T, args ...string) (*config.Relay, error) {
	t.Helper()

	var cfg *config.Relay
	var buildErr error
	cmd := &cli.Command{
		Name:  "relay",
		Flags: getFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, buildErr = buildConfig(cmd)
			return nil
		},
	}
	if err := cmd.Run(context.Background(), append([]string{"relay"}, args...)); err != nil {
		t.Fatalf("Run(%v) error = %v", args, err)
	}
	return cfg, buildErr
}

func TestBuildConfig(t *testing.T) {
	t.Parallel()

	cfg, err := parse(t, "--ssl", "--ca-out", "ca.pem", "--room", "ledpanel", "--room", "lobby", "--max-conns", "4", "*:9000")
	if err != nil {
		t.Fatalf("buildConfig() error = %v", err)
	}

	if cfg.Host != "" || cfg.Port != 9000 {
		t.Errorf("listen = %q:%d, want all interfaces on 9000", cfg.Host, cfg.Port)
	}
	if !cfg.SSL || cfg.CAOut != "ca.pem" {
		t.Errorf("SSL = %v, CAOut = %q", cfg.SSL, cfg.CAOut)
	}
	if !slices.Equal(cfg.Rooms, []string{"ledpanel", "lobby"}) {
		t.Errorf("Rooms = %v", cfg.Rooms)
	}
	if !slices.Equal(cfg.CertHosts, []string{"localhost"}) {
		t.Errorf("CertHosts = %v, want the default", cfg.CertHosts)
	}
	if cfg.MaxConns != 4 {
		t.Errorf("MaxConns = %d, want 4", cfg.MaxConns)
	}
}

func TestBuildConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := parse(t, "127.0.0.1:8663")
	if err != nil {
		t.Fatalf("buildConfig() error = %v", err)
	}

	def := config.DefaultRelay()
	if cfg.Host != "127.0.0.1" || cfg.SSL || !slices.Equal(cfg.Rooms, def.Rooms) || cfg.MaxConns != def.MaxConns {
		t.Errorf("config = %+v, want defaults on 127.0.0.1", cfg)
	}
}

func TestBuildConfig_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{"no argument", nil},
		{"missing port", []string{"localhost"}},
		{"port out of range", []string{":70000"}},
		{"ca-out without ssl", []string{"--ca-out", "ca.pem", ":8663"}},
		{"no connections", []string{"--max-conns", "0", ":8663"}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := parse(t, tc.args...); err == nil {
				t.Errorf("buildConfig(%v) succeeded, want error", tc.args)
			}
		})
	}
}

// Package connect implements the connect command: the ticker client. It
// runs the device stack on a hosted chip and scrolls every text message the
// server sends through the terminal.
package connect

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"ninjametal/ledticker/cmd/shared"
	"ninjametal/ledticker/pkg/chip"
	"ninjametal/ledticker/pkg/client"
	"ninjametal/ledticker/pkg/config"
	"ninjametal/ledticker/pkg/crypto"
	"ninjametal/ledticker/pkg/display"
	"ninjametal/ledticker/pkg/log"
	"ninjametal/ledticker/pkg/trust"
)

// GetCommand returns the CLI command for the ticker client.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:        "connect",
		Usage:       "Connect to a ticker server and show its messages",
		Description: shared.GetBaseDescription(),
		ArgsUsage:   shared.GetArgsUsage(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := buildConfig(ctx, cmd, nil)
			if err != nil {
				return err
			}

			out := config.GetStdoutFunc(cfg.Deps)()
			sink := display.NewMarquee(out, int(cmd.Int(shared.WidthFlag)), cmd.Duration(shared.StepFlag))
			return run(ctx, cfg, sink)
		},
		Flags: getFlags(),
	}
}

func getFlags() []cli.Flag {
	flags := []cli.Flag{}

	flags = append(flags, shared.GetCommonFlags()...)
	flags = append(flags, shared.GetConnectFlags()...)

	return flags
}

// buildConfig turns arguments and flags into a validated client
// configuration. lookup resolves the server host; nil uses the system
// resolver.
func buildConfig(ctx context.Context, cmd *cli.Command, lookup shared.ResolverFunc) (*config.Client, error) {
	args := cmd.Args()
	if args.Len() != 1 {
		return nil, fmt.Errorf("must provide exactly one argument, got %d (%s)", args.Len(), strings.Join(args.Slice(), ", "))
	}

	host, port, path, err := shared.ParseServer(args.Get(0))
	if err != nil {
		return nil, err
	}

	cfg := config.DefaultClient()
	cfg.Endpoint.Host = host
	cfg.Endpoint.Port = port
	cfg.Endpoint.Path = path
	cfg.Endpoint.Origin = cmd.String(shared.OriginFlag)
	if cfg.Endpoint.Origin == "" {
		cfg.Endpoint.Origin = "https://" + host
	}

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if ip := cmd.String(shared.IPFlag); ip != "" {
		cfg.Endpoint.IP, err = shared.ParseIPv4(shared.IPFlag, ip)
		collect(err)
	} else {
		cfg.Endpoint.IP, err = shared.ResolveIPv4(ctx, lookup, host)
		collect(err)
	}

	cfg.NTP.Server, err = shared.ParseIPv4(shared.NTPFlag, cmd.String(shared.NTPFlag))
	collect(err)
	cfg.Network.IP, err = shared.ParseIPv4(shared.LocalIPFlag, cmd.String(shared.LocalIPFlag))
	collect(err)
	cfg.Network.Gateway, err = shared.ParseIPv4(shared.GatewayFlag, cmd.String(shared.GatewayFlag))
	collect(err)
	cfg.Network.Subnet, err = shared.ParseIPv4(shared.SubnetFlag, cmd.String(shared.SubnetFlag))
	collect(err)
	cfg.Network.MAC, err = shared.ParseMAC(cmd.String(shared.MACFlag))
	collect(err)

	if timeout := cmd.Duration(shared.TimeoutFlag); timeout > 0 {
		cfg.Read.MaxAttempts = int((timeout + cfg.Read.Interval - 1) / cfg.Read.Interval)
	}

	cfg.SubProtocols = cmd.StringSlice(shared.SubProtoFlag)
	cfg.CAFile = cmd.String(shared.CAFlag)
	cfg.Seed = cmd.String(shared.SeedFlag)
	cfg.TraceFile = cmd.String(shared.TraceFlag)
	cfg.MaxAttempts = int(cmd.Int(shared.RetriesFlag))
	cfg.RetryDelay = cmd.Duration(shared.RetryDelayFlag)
	cfg.Verbose = cmd.Bool(shared.VerboseFlag)
	cfg.Logger = log.NewLogger(cfg.Verbose)

	if cmd.Int(shared.WidthFlag) < 0 {
		errs = append(errs, fmt.Errorf("--%s must not be negative", shared.WidthFlag))
	}
	if cmd.Duration(shared.StepFlag) < 0 {
		errs = append(errs, fmt.Errorf("--%s must not be negative", shared.StepFlag))
	}

	errs = append(errs, config.Validate(cfg)...)
	if err := shared.ReportValidation(errs); err != nil {
		return nil, err
	}

	return cfg, nil
}

// run drives the client on a hosted chip until ctx is cancelled or the
// configured attempts are used up.
func run(ctx context.Context, cfg *config.Client, sink display.Sink) error {
	store, err := loadTrust(cfg.CAFile)
	if err != nil {
		return err
	}

	entropy, insecure := crypto.Entropy(cfg.Seed)
	if insecure {
		cfg.Logger.WarnMsg("fixed entropy seed: every session is predictable, never use --%s outside of debugging", shared.SeedFlag)
	}

	hosted := chip.NewHosted(cfg.Deps)
	defer hosted.Shutdown()
	// closing the sockets unblocks a client waiting in a poll loop
	stop := context.AfterFunc(ctx, hosted.Shutdown)
	defer stop()

	c, err := client.New(cfg, hosted, sink, store, entropy)
	if err != nil {
		return err
	}

	cfg.Logger.InfoMsg("ticker for wss://%s:%d%s (%s)", cfg.Endpoint.Host, cfg.Endpoint.Port, cfg.Endpoint.Path, cfg.Endpoint.IP)
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// loadTrust returns the compiled-in anchors, extended by the PEM file at
// path if one is given.
func loadTrust(path string) (*trust.Store, error) {
	store := trust.Default()
	if path == "" {
		return store, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading --%s: %w", shared.CAFlag, err)
	}
	anchors, err := trust.FromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("parsing --%s: %w", shared.CAFlag, err)
	}
	return store.With(anchors...)
}

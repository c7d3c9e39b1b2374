// Package relay implements the relay command: a development chat server the
// ticker can connect to instead of the production feed.
package relay

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"ninjametal/ledticker/cmd/shared"
	"ninjametal/ledticker/pkg/config"
	"ninjametal/ledticker/pkg/log"
	"ninjametal/ledticker/pkg/relay"
)

// GetCommand returns the CLI command for the development relay.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:  "relay",
		Usage: "Serve chat rooms for tickers to connect to",
		Description: strings.Join([]string{
			"Specify the listen address like this: *:8663 (all interfaces) or 127.0.0.1:8663.",
			"Text posted to ws[s]://host:port/ws/<room> is shown to everyone else in the room.",
			"With --ssl and --ca-out, give the written CA to 'connect --ca' or 'say --ca'.",
		}, "\n"),
		ArgsUsage: "[host]:port",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := buildConfig(cmd)
			if err != nil {
				return err
			}
			return relay.New(cfg).ListenAndServe(ctx)
		},
		Flags: getFlags(),
	}
}

func getFlags() []cli.Flag {
	flags := []cli.Flag{}

	flags = append(flags, shared.GetCommonFlags()...)
	flags = append(flags, shared.GetRelayFlags()...)

	return flags
}

func buildConfig(cmd *cli.Command) (*config.Relay, error) {
	args := cmd.Args()
	if args.Len() != 1 {
		return nil, fmt.Errorf("must provide exactly one argument, got %d (%s)", args.Len(), strings.Join(args.Slice(), ", "))
	}

	host, port, err := shared.ParseListen(args.Get(0))
	if err != nil {
		return nil, err
	}

	cfg := config.DefaultRelay()
	cfg.Host = host
	cfg.Port = port
	cfg.SSL = cmd.Bool(shared.SSLFlag)
	cfg.CAOut = cmd.String(shared.CAOutFlag)
	cfg.Rooms = cmd.StringSlice(shared.RoomFlag)
	cfg.CertHosts = cmd.StringSlice(shared.CertHostFlag)
	cfg.MaxConns = int(cmd.Int(shared.MaxConnsFlag))
	cfg.Verbose = cmd.Bool(shared.VerboseFlag)
	cfg.Logger = log.NewLogger(cfg.Verbose)

	if err := shared.ReportValidation(config.Validate(cfg)); err != nil {
		return nil, err
	}

	return cfg, nil
}

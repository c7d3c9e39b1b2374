// Package clock implements the time command: one network time query through
// the hosted chip, the same way the ticker sets its clock before each
// connection.
package clock

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v3"

	"ninjametal/ledticker/cmd/shared"
	"ninjametal/ledticker/pkg/chip"
	"ninjametal/ledticker/pkg/config"
	"ninjametal/ledticker/pkg/log"
	"ninjametal/ledticker/pkg/ntp"
)

// GetCommand returns the CLI command for the time query.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:  "time",
		Usage: "Query the time server the ticker uses",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := buildConfig(cmd)
			if err != nil {
				return err
			}
			return run(ctx, cfg, config.GetStdoutFunc(cfg.Deps)())
		},
		Flags: getFlags(),
	}
}

func getFlags() []cli.Flag {
	flags := []cli.Flag{}

	flags = append(flags, shared.GetCommonFlags()...)
	flags = append(flags, shared.GetTimeFlags()...)

	return flags
}

func buildConfig(cmd *cli.Command) (*config.Client, error) {
	if cmd.Args().Len() != 0 {
		return nil, fmt.Errorf("takes no arguments, got %d", cmd.Args().Len())
	}

	cfg := config.DefaultClient()
	cfg.Verbose = cmd.Bool(shared.VerboseFlag)
	cfg.Logger = log.NewLogger(cfg.Verbose)

	var errs []error
	server, err := shared.ParseIPv4(shared.NTPFlag, cmd.String(shared.NTPFlag))
	if err != nil {
		errs = append(errs, err)
	}
	cfg.NTP.Server = server

	if timeout := cmd.Duration(shared.TimeoutFlag); timeout > 0 {
		cfg.NTP.Poll.MaxAttempts = int((timeout + cfg.NTP.Poll.Interval - 1) / cfg.NTP.Poll.Interval)
	}
	// one-shot query, no reboot loop to protect the server from
	cfg.NTP.StartDelay = 0

	errs = append(errs, config.Validate(cfg)...)
	if err := shared.ReportValidation(errs); err != nil {
		return nil, err
	}
	return cfg, nil
}

// run fetches the time and prints it as RFC 3339 UTC.
func run(ctx context.Context, cfg *config.Client, out io.Writer) error {
	hosted := chip.NewHosted(cfg.Deps)
	defer hosted.Shutdown()

	unix, err := ntp.New(hosted, cfg).FetchUnixTime(ctx)
	if err != nil {
		return fmt.Errorf("time from %s: %w", cfg.NTP.Server, err)
	}

	fmt.Fprintln(out, time.Unix(unix, 0).UTC().Format(time.RFC3339))
	return nil
}

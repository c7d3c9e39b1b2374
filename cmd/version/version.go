// Package version implements the version command.
package version

import (
	"context"
	"fmt"
	"runtime"

	"github.com/urfave/cli/v3"
)

// Version is set at build time with -ldflags "-X ninjametal/ledticker/cmd/version.Version=...".
var Version = "unknown"

// String returns the version line printed by the command.
func String() string {
	return fmt.Sprintf("ledticker %s (%s %s/%s)", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// GetCommand returns the CLI command printing the version.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print the build version and Go toolchain",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, err := fmt.Fprintln(cmd.Root().Writer, String())
			return err
		},
	}
}

package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"ninjametal/ledticker/cmd/clock"
	"ninjametal/ledticker/cmd/connect"
	"ninjametal/ledticker/cmd/relay"
	"ninjametal/ledticker/cmd/say"
	"ninjametal/ledticker/cmd/shared"
	"ninjametal/ledticker/cmd/version"
	"ninjametal/ledticker/pkg/log"
)

func main() {
	ctx, cancel := shared.SetupSignalHandling(context.Background())
	defer cancel()

	if err := newApp().Run(ctx, os.Args); err != nil {
		log.ErrorMsg("%s\n", err)
		cancel()
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "ledticker",
		Usage: "Scrolling LED ticker fed over a TLS WebSocket",
		Commands: []*cli.Command{
			connect.GetCommand(),
			relay.GetCommand(),
			say.GetCommand(),
			clock.GetCommand(),
			version.GetCommand(),
		},
	}
}

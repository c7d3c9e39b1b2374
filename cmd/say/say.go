// Package say implements the say command: post lines from the terminal to a
// relay room and print what the room says back.
package say

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"ninjametal/ledticker/cmd/shared"
	"ninjametal/ledticker/pkg/config"
	"ninjametal/ledticker/pkg/pipeio"
	"ninjametal/ledticker/pkg/relay"
)

// GetCommand returns the CLI command for the chat poster.
func GetCommand() *cli.Command {
	return getCommand(nil)
}

func getCommand(deps *config.Dependencies) *cli.Command {
	return &cli.Command{
		Name:  "say",
		Usage: "Post to a relay room from the terminal",
		Description: strings.Join([]string{
			"Specify the room like this: ws://localhost:8663/ws/demo (port defaults to 8663).",
			"Every line typed is posted; end input with Ctrl-D.",
		}, "\n"),
		ArgsUsage: "ws[s]://host[:port]/ws/room",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args()
			if args.Len() != 1 {
				return fmt.Errorf("must provide exactly one argument, got %d (%s)", args.Len(), strings.Join(args.Slice(), ", "))
			}
			url, _, err := shared.ParseRoom(args.Get(0))
			if err != nil {
				return err
			}

			var caPEM []byte
			if path := cmd.String(shared.CAFlag); path != "" {
				if caPEM, err = os.ReadFile(path); err != nil {
					return fmt.Errorf("reading --%s: %w", shared.CAFlag, err)
				}
			}

			stdio := pipeio.NewStdio(config.GetStdinFunc(deps)(), config.GetStdoutFunc(deps)())
			defer stdio.Close()
			stop := context.AfterFunc(ctx, stdio.Cancel)
			defer stop()

			return run(ctx, url, caPEM, cmd.String(shared.NameFlag), stdio, stdio)
		},
		Flags: getFlags(),
	}
}

func getFlags() []cli.Flag {
	flags := []cli.Flag{}

	flags = append(flags, shared.GetCommonFlags()...)
	flags = append(flags, shared.GetSayFlags()...)

	return flags
}

// run joins the room at url and chats until in ends. A non-empty name is
// claimed before the first line is posted.
func run(ctx context.Context, url string, caPEM []byte, name string, in io.Reader, out io.Writer) error {
	conn, err := relay.Dial(ctx, url, caPEM)
	if err != nil {
		return err
	}
	defer conn.CloseNow()

	if name != "" {
		in = io.MultiReader(strings.NewReader("/name "+name+"\n"), in)
	}

	if err := relay.Chat(ctx, conn, in, out); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/olimci/lazycell/pkg/version"
	"github.com/urfave/cli/v3"
)

var Version = version.String()

func Execute(ctx context.Context, args []string) error {
	app := &cli.Command{
		Name:  "lazycell",
		Usage: "Race goroutines against lazily initialized cells",
		Commands: []*cli.Command{
			{
				Name:   "version",
				Usage:  "print version",
				Action: runVersion,
			},
			{
				Name:  "stress",
				Usage: "Run stress scenarios and check every cell kept its guarantees",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: "", Usage: "scenario file (.toml, .yaml, .yml, .json); built-in scenarios when empty"},
					&cli.StringSliceFlag{Name: "only", Aliases: []string{"o"}, Usage: "run only the named scenarios (repeatable)"},
					&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Value: 0, Usage: "maximum concurrent workers per scenario (0 = all)"},
					&cli.StringFlag{Name: "html", Value: "", Usage: "write an HTML report to this path"},
					&cli.BoolFlag{Name: "watch", Value: false, Usage: "re-run when the scenario file changes"},
					&cli.DurationFlag{Name: "debounce", Value: 250 * time.Millisecond, Usage: "debounce window for --watch"},
					&cli.StringFlag{Name: "metrics-addr", Value: "", Usage: "serve prometheus metrics on this address"},
					&cli.BoolFlag{Name: "no-ui", Value: false, Usage: "disable the interactive UI and log to stdout only"},
					&cli.BoolFlag{Name: "interactive", Aliases: []string{"i"}, Value: false, Usage: "choose scenarios and overrides in a form"},
					&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Value: false, Usage: "log every slow-path cell event"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return RunStress(ctx, cmd)
				},
			},
		},
	}

	return app.Run(ctx, args)
}

func runVersion(ctx context.Context, cmd *cli.Command) error {
	fmt.Fprintf(cmd.Root().Writer, "lazycell version %s\n", Version)
	return nil
}

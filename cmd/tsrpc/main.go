// Command tsrpc compiles the exported async functions of a TypeScript module
// into an OpenAPI document.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	tcli "github.com/shipq/tsrpc/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		stop()
		tcli.FatalErr("tsrpc", err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "tsrpc",
		Usage: "derive OpenAPI schemas from exported TypeScript async functions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				EnvVars: []string{"TSRPC_LOG_LEVEL"},
			},
			&cli.BoolFlag{
				Name:  "json-log",
				Usage: "write logs as JSON",
			},
		},
		Commands: []*cli.Command{
			generateCommand(),
			validateCommand(),
		},
		HideHelpCommand: true,
	}
}

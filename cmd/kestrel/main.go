package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	app := &cli.App{
		Name:  "kestrel",
		Usage: "Multi-coin wallet and peer messaging CLI",
		Description: `A command-line tool for the kestrel wallet service.

Use this CLI to manage wallets, send transactions, and message peers
through a running kestrel server.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			walletCommands(),
			txCommands(),
			messageCommands(),
			contactCommands(),
			{
				Name:  "network",
				Usage: "Network status commands",
				Subcommands: []*cli.Command{
					networkStatusCommand(),
					validateAddressCommand(),
				},
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Usage:   "HTTP server URL",
				EnvVars: []string{"KESTREL_SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

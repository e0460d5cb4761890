package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "crewportal.toml",
		Sources: cli.EnvVars("CREWPORTAL_CONFIG"),
	}
}

func main() {
	app := &cli.Command{
		Name:    "crewportal",
		Usage:   "XCM crew portal web front end",
		Version: version,
		Flags:   []cli.Flag{configFlag()},
		Action:  serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the portal HTTP server",
				Flags:  []cli.Flag{configFlag()},
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "Apply database migrations and exit",
				Flags:  []cli.Flag{configFlag()},
				Action: migrate,
			},
			{
				Name:  "init",
				Usage: "Write an example configuration file",
				Flags: []cli.Flag{configFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return initConfig(cmd.String("config"))
				},
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		slog.Error("application_error", "error", err)
		os.Exit(1)
	}
}

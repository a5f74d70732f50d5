// Command cercia runs the Moltbook vote and identity core: the local bridge the
// browser extension talks to, plus a few operator commands.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/cercia-labs/cercia-core/internal/platform/config"
	"github.com/cercia-labs/cercia-core/internal/platform/logging"
)

const version = "0.1.0"

func main() {
	app := &cli.App{
		Name:    "cercia",
		Usage:   "Vote reconciliation and comment identity core for Moltbook",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
				EnvVars: []string{"CERCIA_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			voteCommand(),
			votesCommand(),
			loginCommand(),
			logoutCommand(),
			whoamiCommand(),
			configCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// loadConfig reads and validates the configuration named by --config.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// withCore loads configuration, wires the core and runs fn with it.
func withCore(c *cli.Context, fn func(ctx context.Context, core *core) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	core, err := buildCore(c.Context, cfg, log)
	if err != nil {
		log.Error("startup failed", zap.Error(err))
		return err
	}
	defer core.Close()
	return fn(c.Context, core)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/examcell/duty-roster/internal/app"
	"github.com/examcell/duty-roster/internal/config"
	"github.com/examcell/duty-roster/internal/observability"
)

// cli carries state shared by every subcommand. app is opened lazily so
// that tests can inject one.
type cli struct {
	out     io.Writer
	envFile string
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
	app    *app.App
}

func newRootCmd(out io.Writer) *cobra.Command {
	return (&cli{out: out}).rootCmd()
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dutyctl",
		Short: "Operate the invigilation duty roster",
		Long: `dutyctl seeds staff, runs assignment batches, redistributes and transfers
duties, and prints roster reports. It uses the same STORE_BACKEND and
LOCK_BACKEND settings as the API server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&c.envFile, "env-file", "", "env file to load instead of .env")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		c.seedCmd(),
		c.assignCmd(),
		c.redistributeCmd(),
		c.transferCmd(),
		c.reportCmd(),
		c.cleanupCmd(),
		c.migrateCmd(),
	)
	return root
}

func (c *cli) init() error {
	if c.cfg == nil {
		cfg, err := config.LoadFile(c.envFile)
		if err != nil {
			return err
		}
		c.cfg = cfg
	}
	if c.logger == nil {
		logCfg := c.cfg.Logger
		if c.verbose {
			logCfg.Level = zapcore.DebugLevel.String()
		}
		logger, err := observability.NewLogger(logCfg)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		c.logger = logger
	}
	return nil
}

// open returns the shared App, connecting on first use.
func (c *cli) open(ctx context.Context) (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	a, err := app.New(ctx, c.cfg, c.logger)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

func (c *cli) print(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

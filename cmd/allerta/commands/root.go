package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/abelzeko/allerta-bot/internal/app"
	"github.com/abelzeko/allerta-bot/internal/config"
	"github.com/abelzeko/allerta-bot/internal/logging"
	"github.com/abelzeko/allerta-bot/internal/monitoring"
	"github.com/spf13/cobra"
)

// application is built before any subcommand runs
var application *app.App

var rootCmd = &cobra.Command{
	Use:           "allerta",
	Short:         "allerta runs the Basilicata civil protection scrapers once and exits.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		logging.Setup(cfg.LogLevel)
		monitoring.Init(monitoring.Options{DSN: cfg.SentryDSN, Environment: cfg.SentryEnvironment, Release: cfg.SentryRelease})

		application, err = app.New(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		shutdown()
	},
}

func shutdown() {
	if application != nil {
		application.Close()
		application = nil
	}
	monitoring.Flush()
}

// ExecuteContext runs the command line and exits 1 on failure
func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		shutdown()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

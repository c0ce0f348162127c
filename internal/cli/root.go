// Package cli implements the seqflow command line interface.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/me/seqflow/internal/config"
	"github.com/me/seqflow/internal/logging"
)

var (
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string
	flagWorkers   int
	flagDB        string

	logger *slog.Logger
)

// NewRootCmd creates the root cobra command for the seqflow CLI.
func NewRootCmd() *cobra.Command {
	defaults := config.Default()

	root := &cobra.Command{
		Use:   "seqflow",
		Short: "DAG workflow engine for sequencing pipelines",
		Long:  "seqflow builds, validates and executes DAG workflows of typed processing steps.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLogger(logging.ParseLevel(flagLogLevel), flagLogFormat)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", defaults.LogLevel, "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", defaults.LogFormat, "Log format (text, json)")
	root.PersistentFlags().IntVar(&flagWorkers, "workers", defaults.Workers, "Worker pool size")
	root.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database path for run persistence (empty disables)")

	root.AddCommand(
		newRunCmd(),
		newValidateCmd(),
		newStatusCmd(),
		newServeCmd(),
	)

	return root
}

package main

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/michaelbrown/codecollab/internal/config"
	"github.com/michaelbrown/codecollab/internal/logger"
)

var (
	configFlag   string
	logJSONFlag  bool
	logLevelFlag string

	// cfg is loaded once before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "codecollab",
	Short: "CodeCollab - collaborative coding backend",
	Long: `CodeCollab runs the backend for a collaborative code editor.

It executes code snippets in a dozen languages, validates HTML and CSS,
and relays edits and chat between everyone in a room over websockets.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configFlag)
		if err != nil {
			return errors.Wrap(err, "loading config")
		}
		if cmd.Flags().Changed("log-json") {
			loaded.Log.JSON = logJSONFlag
		}
		if cmd.Flags().Changed("log-level") {
			loaded.Log.Level = logLevelFlag
		}
		if err := logger.Initialize(loaded.Log.JSON, loaded.Log.Level); err != nil {
			return errors.Wrap(err, "initializing logger")
		}
		cfg = loaded
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default: ./codecollab.yaml or ~/.codecollab/codecollab.yaml)")
	rootCmd.PersistentFlags().BoolVar(&logJSONFlag, "log-json", false, "Write logs as JSON")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		for _, h := range errors.GetAllHints(err) {
			fmt.Fprintln(os.Stderr, "hint:", h)
		}
		os.Exit(1)
	}
}

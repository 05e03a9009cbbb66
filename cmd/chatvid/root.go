package main

import (
	"fmt"
	"os"

	"github.com/drewmudry/chatshorts-api/config"
	"github.com/drewmudry/chatshorts-api/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	cfg     *config.Config
	logger  zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "chatvid",
	Short: "Render text-message conversation videos locally",
	Long: `chatvid runs the render pipeline on this machine without Postgres or Redis.

Configuration is read from the environment and .env, the same as the
API and worker services.

  chatvid render --input conv.json --out out/video.mp4
  chatvid voices
  chatvid token --user 1`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		logger = logging.New(logging.Config{Level: level, Format: "console", Service: "chatvid"})
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.AddCommand(renderCmd, voicesCmd, tokenCmd)
}

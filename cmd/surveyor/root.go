package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"roadsurvey/internal/config"
	"roadsurvey/internal/env"
	"roadsurvey/internal/logging"
)

var (
	verbose bool
	envFile string

	cfg       *config.Config
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "surveyor",
	Short: "Road distress survey server",
	Long: `surveyor serves the road distress survey: participant details, a short
knowledge test and a photo assessment with GPS capture.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile != "" {
			env.LoadEnv(envFile)
		} else {
			env.LoadEnv()
		}
		cfg = config.Load()

		level := logging.ParseLevel(cfg.LogLevel)
		if verbose {
			level = slog.LevelDebug
		}
		_, closer, err := logging.Setup(level, cfg.LogFile)
		if err != nil {
			return err
		}
		logCloser = closer
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},
}

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment from this file instead of .env")
}

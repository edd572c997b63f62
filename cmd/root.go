package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/placematch/internal/config"
	"github.com/kozaktomas/placematch/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "placematch",
	Short: "Visual place recognition by local feature matching",
	Long: `placematch finds, for every query photo, the reference photo taken at the
most similar place. It extracts oriented binary keypoint descriptors from each
image, matches them between images, discards implausible pairs and keeps the
reference with the best score.

A separate evaluate command checks the answers against known camera positions
and reports Recall@1.

Settings come from flags, PLACEMATCH_* environment variables (a .env file in
the working directory is loaded first) and built-in defaults, in that order.`,
	SilenceUsage: true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := config.Defaults()
	rootCmd.PersistentFlags().String("log-level", defaults.Log.Level, "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-format", defaults.Log.Format, "Log format: text, json or pretty")
	rootCmd.PersistentFlags().Bool("log-source", defaults.Log.Source, "Include source file:line in log records")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// loadConfig returns the environment configuration with persistent flags
// applied, and a logger built from it.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg := config.Load()
	cfg.Log.Level = stringFlagOr(cmd, "log-level", cfg.Log.Level)
	cfg.Log.Format = stringFlagOr(cmd, "log-format", cfg.Log.Format)
	cfg.Log.Source = boolFlagOr(cmd, "log-source", cfg.Log.Source)

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	opts, err := logger.FromFormat(cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(append(opts, logger.WithLevel(level), logger.WithSource(cfg.Log.Source))...)
	slog.SetDefault(log)
	return cfg, log, nil
}

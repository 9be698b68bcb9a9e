// Package commands holds the scraper command tree.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/qepting91/reddit-export/internal/config"
	"github.com/qepting91/reddit-export/internal/logger"
)

// errRunFailed is returned when at least one target did not export; the
// per-target reasons are already in the summary and the log.
var errRunFailed = errors.New("one or more targets failed")

var (
	cfg   config.Config
	debug bool
)

var rootCmd = &cobra.Command{
	Use:           "scraper",
	Short:         "scraper exports reddit posts and comments to csv, xlsx or ndjson files.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cmd.Context())
		if err != nil {
			return err
		}
		cfg = loaded

		level := slog.LevelInfo
		if debug {
			level = slog.LevelDebug
		}
		slog.SetDefault(logger.New(os.Stderr, cfg.LogFormat, level))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging.")
}

func ExecuteContext(ctx context.Context) {
	start := time.Now()
	err := rootCmd.ExecuteContext(ctx)
	slog.InfoContext(ctx, "Runtime", "seconds", fmt.Sprintf("%.2f", time.Since(start).Seconds()))
	if err != nil {
		if !errors.Is(err, errRunFailed) {
			slog.ErrorContext(ctx, "Command failed", "err", err)
		}
		os.Exit(1)
	}
}

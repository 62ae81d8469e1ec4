// Package cmd implements the lorekeep command-line interface.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lorekeep/lorekeep/internal/app"
	"github.com/lorekeep/lorekeep/internal/config"
	"github.com/lorekeep/lorekeep/internal/log"
)

var debugLog bool

var rootCmd = &cobra.Command{
	Use:   "lorekeep",
	Short: "Lorekeep - a personal knowledge assistant",
	Long: `Lorekeep answers natural-language questions over your personal article
corpus using retrieval-augmented generation, keeps its tag folksonomy
consistent, and re-scores stored articles against your accumulated feedback.`,
	SilenceUsage: true,
}

// Execute runs the root command. Called from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugLog, "debug", false, "enable debug logging")
}

// setupApp loads configuration and assembles the application. Callers must
// Close the returned App.
func setupApp(ctx context.Context) (*app.App, error) {
	level := slog.LevelInfo
	if debugLog {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	return app.Setup(ctx, cfg, logger)
}

package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	configPath string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "grabarr",
	Short: "Media asset ingestion for scraped releases",
	Long: `grabarr - media asset ingestion for scraped releases

Downloads the assets referenced by scraped release metadata, places them
deterministically on disk, fingerprints them, and reconciles fingerprints
against an external catalog.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "grabarr.toml", "Path to config file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("grabarr {{.Version}}\n")
}

// newLogger builds the process-wide logger at the configured level.
func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

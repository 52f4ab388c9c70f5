package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/grabarr/grabarr/internal/catalog"
	"github.com/grabarr/grabarr/internal/config"
	"github.com/spf13/cobra"
)

var downloadsCmd = &cobra.Command{
	Use:   "downloads <release-uuid>",
	Short: "List the recorded downloads of a release",
	Args:  cobra.ExactArgs(1),
	RunE:  runDownloads,
}

func init() {
	rootCmd.AddCommand(downloadsCmd)
}

func runDownloads(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	db, err := catalog.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	records, err := catalog.NewStore(db).ListDownloads(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No downloads recorded")
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Downloads (%d):\n\n", len(records))
	fmt.Fprintf(cmd.OutOrStdout(), "  %-10s %-10s %-16s %-50s %s\n",
		"TYPE", "VARIANT", "DOWNLOADED", "SAVED", "PHASH")
	fmt.Fprintln(cmd.OutOrStdout(), "  "+strings.Repeat("-", 100))

	for _, rec := range records {
		saved := rec.SavedFilename
		if len(saved) > 50 {
			saved = saved[:47] + "..."
		}
		variant := rec.Variant
		if variant == "" {
			variant = "-"
		}
		phash := "-"
		if rec.Metadata.PHash != nil {
			phash = *rec.Metadata.PHash
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  %-10s %-10s %-16s %-50s %s\n",
			rec.FileType, variant, rec.DownloadedAt.Format(time.DateOnly), saved, phash)
	}
	return nil
}

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/grabarr/grabarr/internal/config"
	"github.com/grabarr/grabarr/internal/match"
	"github.com/spf13/cobra"
)

var matchCmd = &cobra.Command{
	Use:   "match <locals.json> <candidates.json>",
	Short: "Match local fingerprints against external catalog candidates",
	Args:  cobra.ExactArgs(2),
	RunE:  runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	var locals []match.Local
	if err := readJSON(args[0], &locals); err != nil {
		return err
	}
	var candidates []match.Candidate
	if err := readJSON(args[1], &candidates); err != nil {
		return err
	}

	results := match.Match(locals, candidates, match.Options{
		MaxDistance:      cfg.Matching.MaxDistance,
		MaxDurationDelta: cfg.Matching.MaxDurationDeltaSecs,
	})

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	for _, local := range locals {
		r := results[local.Hash]
		if !r.Matched {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  no match\n", local.Filename, local.Hash)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  -> %s (distance %d, duration delta %.1fs)\n",
			local.Filename, local.Hash, r.CandidateID, r.Distance, r.DurationDelta)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianVision/services/vision/storage/sqlite"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	statsDBPath     string // Prediction store path
	statsJSONOutput bool   // Output as JSON
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// statsCmd summarizes the prediction store: total records, distinct
// visitors, and per-label counts with average confidence.
//
// # Examples
//
//	visionctl stats
//	visionctl stats --json --db /data/predictions.db
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the prediction store",
	Long: `Reads the prediction store and prints record counts, distinct
visitor counts, and per-label confidence averages.

Examples:
  visionctl stats           # Human-readable summary
  visionctl stats --json    # JSON output for scripting`,
	RunE: runStatsCommand,
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	statsCmd.Flags().StringVar(&statsDBPath, "db", "predictions.db",
		"Path to the prediction store")
	statsCmd.Flags().BoolVar(&statsJSONOutput, "json", false,
		"Output as JSON for scripting")
	rootCmd.AddCommand(statsCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runStatsCommand(cmd *cobra.Command, args []string) error {
	store, err := sqlite.Open(statsDBPath)
	if err != nil {
		return fmt.Errorf("open prediction store: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats, err := store.CollectStats(ctx)
	if err != nil {
		return fmt.Errorf("collect stats: %w", err)
	}

	if statsJSONOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	fmt.Printf("Records:  %d\n", stats.TotalRecords)
	fmt.Printf("Visitors: %d\n", stats.DistinctOwners)
	for _, l := range stats.Labels {
		fmt.Printf("  %-4s  count=%-6d avg confidence=%.4f\n", l.Label, l.Count, l.AvgConfidence)
	}
	return nil
}

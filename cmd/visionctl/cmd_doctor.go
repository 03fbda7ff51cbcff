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
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianVision/services/vision/storage/sqlite"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	doctorRuntime    string // Python interpreter to check
	doctorModelPath  string // Model artifact path
	doctorScriptPath string // Predictor script path
	doctorDBPath     string // Prediction store path
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// doctorCmd checks every external dependency the vision server needs at
// upload time: the Python runtime, the model and script artifacts, and
// the prediction store schema.
//
// # Examples
//
//	visionctl doctor
//	visionctl doctor --runtime python3.12 --db /data/predictions.db
//
// # Limitations
//
//   - Does not run the classifier end to end; it only checks presence.
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Verify the vision service's runtime dependencies",
	Long: `Checks the external pieces the upload pipeline depends on:

  - Python runtime resolvable on PATH
  - Model artifact and predictor script on disk
  - Prediction store reachable with a current schema

Each check prints ok/FAIL; the command exits non-zero if any check fails.`,
	RunE: runDoctorCommand,
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	doctorCmd.Flags().StringVar(&doctorRuntime, "runtime", "python3",
		"Python interpreter the server invokes")
	doctorCmd.Flags().StringVar(&doctorModelPath, "model", "cat_dog_classifier_rf.pkl",
		"Path to the trained model artifact")
	doctorCmd.Flags().StringVar(&doctorScriptPath, "script", "predict_image_rf.py",
		"Path to the predictor script")
	doctorCmd.Flags().StringVar(&doctorDBPath, "db", "predictions.db",
		"Path to the prediction store")
	rootCmd.AddCommand(doctorCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runDoctorCommand(cmd *cobra.Command, args []string) error {
	failed := false

	check := func(name string, err error) {
		if err != nil {
			failed = true
			fmt.Printf("FAIL  %-22s %v\n", name, err)
			return
		}
		fmt.Printf("ok    %s\n", name)
	}

	_, err := exec.LookPath(doctorRuntime)
	check("python runtime", err)

	_, err = os.Stat(doctorModelPath)
	check("model artifact", err)

	_, err = os.Stat(doctorScriptPath)
	check("predictor script", err)

	check("prediction store", checkStore())

	if failed {
		return fmt.Errorf("one or more checks failed")
	}
	return nil
}

func checkStore() error {
	store, err := sqlite.Open(doctorDBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	version, err := store.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if version == 0 {
		return fmt.Errorf("no schema ledger (store has never been initialized)")
	}
	return nil
}

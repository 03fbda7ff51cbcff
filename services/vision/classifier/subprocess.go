// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// legacyPattern matches the line the existing predictor script prints:
//
//	<path> -> CAT (confidence: 0.8700)
var legacyPattern = regexp.MustCompile(`->\s*(CAT|DOG)\s*\(confidence:\s*([\d.]+)`)

// SubprocessInvoker classifies images by spawning the external predictor
// as a child process, one independent process per call.
//
// Thread Safety: safe for concurrent use. Every call stages its own
// temporary file and owns its own child process.
type SubprocessInvoker struct {
	runtime    string
	scriptPath string
	modelPath  string
	timeout    time.Duration
	validate   *validator.Validate
}

// Option configures the SubprocessInvoker.
type Option func(*SubprocessInvoker)

// WithRuntime overrides the interpreter binary used to run the predictor
// script. Default: python3.
func WithRuntime(bin string) Option {
	return func(inv *SubprocessInvoker) {
		inv.runtime = bin
	}
}

// WithTimeout bounds a single classification. Zero (the default) means no
// timeout: a hung predictor blocks its request indefinitely.
func WithTimeout(d time.Duration) Option {
	return func(inv *SubprocessInvoker) {
		inv.timeout = d
	}
}

// NewSubprocessInvoker creates an invoker for the predictor script and
// model artifact at the given paths.
//
// Inputs:
//
//	scriptPath - Path to the predictor entry program.
//	modelPath - Path to the trained model artifact.
//	opts - Optional configuration options.
//
// Outputs:
//
//	*SubprocessInvoker - The configured invoker.
func NewSubprocessInvoker(scriptPath, modelPath string, opts ...Option) *SubprocessInvoker {
	inv := &SubprocessInvoker{
		runtime:    "python3",
		scriptPath: scriptPath,
		modelPath:  modelPath,
		validate:   validator.New(),
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Classify runs the external predictor on the image bytes.
//
// Steps, each a documented failure point:
//  1. Environment preflight - the interpreter must be resolvable
//     (ErrRuntimeUnavailable).
//  2. Artifact presence - model and script must exist on disk
//     (ErrArtifactMissing).
//  3. Staging - bytes are written to a uniquely named temp file, removed
//     on every path (removal failure is logged and swallowed).
//  4. Invocation - child process spawned with the staged path as its
//     argument; stdout and stderr drained concurrently while waiting.
//  5. Interpretation - non-zero exit is ErrClassificationFailed (stderr
//     logged only); unmatched output is ErrUnparsableOutput.
func (inv *SubprocessInvoker) Classify(ctx context.Context, image []byte) (Prediction, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := otel.Tracer("classifier").Start(ctx, "classifier.SubprocessInvoker.Classify",
		trace.WithAttributes(
			attribute.Int("image_bytes", len(image)),
		),
	)
	defer span.End()

	if len(image) == 0 {
		return Prediction{}, fmt.Errorf("%w: empty image payload", ErrClassificationFailed)
	}

	// 1. Environment preflight.
	runtimePath, err := exec.LookPath(inv.runtime)
	if err != nil {
		slog.Error("Classifier runtime not found", "runtime", inv.runtime, "error", err)
		return Prediction{}, fmt.Errorf("%w: %s", ErrRuntimeUnavailable, inv.runtime)
	}

	// 2. Artifact presence.
	if _, err := os.Stat(inv.modelPath); err != nil {
		slog.Error("Model artifact not found", "path", inv.modelPath)
		return Prediction{}, fmt.Errorf("%w: model %s", ErrArtifactMissing, inv.modelPath)
	}
	if _, err := os.Stat(inv.scriptPath); err != nil {
		slog.Error("Predictor script not found", "path", inv.scriptPath)
		return Prediction{}, fmt.Errorf("%w: script %s", ErrArtifactMissing, inv.scriptPath)
	}

	// 3. Staging.
	stagedPath, err := inv.stage(image)
	if err != nil {
		return Prediction{}, err
	}
	defer func() {
		if err := os.Remove(stagedPath); err != nil && !os.IsNotExist(err) {
			slog.Warn("Failed to remove staging file", "path", stagedPath, "error", err)
		}
	}()

	// 4. Invocation.
	stdout, err := inv.run(ctx, runtimePath, stagedPath)
	if err != nil {
		return Prediction{}, err
	}

	// 5. Interpretation.
	pred, err := inv.parse(stdout)
	if err != nil {
		slog.Error("Could not parse predictor output", "output", truncateForLog(stdout))
		return Prediction{}, err
	}

	span.SetAttributes(
		attribute.String("label", pred.Label),
		attribute.Float64("confidence", pred.Confidence),
	)
	return pred, nil
}

// stage writes the image to a uniquely named temp file and returns its path.
func (inv *SubprocessInvoker) stage(image []byte) (string, error) {
	tmpFile, err := os.CreateTemp("", "vision-stage-*.img")
	if err != nil {
		return "", fmt.Errorf("creating staging file: %w", err)
	}
	stagedPath := tmpFile.Name()

	if _, err := tmpFile.Write(image); err != nil {
		tmpFile.Close()
		_ = os.Remove(stagedPath)
		return "", fmt.Errorf("writing staging file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(stagedPath)
		return "", fmt.Errorf("closing staging file: %w", err)
	}
	return stagedPath, nil
}

// run spawns the predictor and drains both output streams concurrently so
// a chatty child can never deadlock against a full pipe.
func (inv *SubprocessInvoker) run(ctx context.Context, runtimePath, stagedPath string) (string, error) {
	cmdCtx := ctx
	var cancel context.CancelFunc
	if inv.timeout > 0 {
		cmdCtx, cancel = context.WithTimeout(ctx, inv.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(cmdCtx, runtimePath, inv.scriptPath, stagedPath)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("%w: stdout pipe: %v", ErrClassificationFailed, err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("%w: stderr pipe: %v", ErrClassificationFailed, err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("%w: start: %v", ErrClassificationFailed, err)
	}

	var outBuf, errBuf bytes.Buffer
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = io.Copy(&outBuf, stdoutPipe)
	}()
	go func() {
		defer wg.Done()
		_, _ = io.Copy(&errBuf, stderrPipe)
	}()
	wg.Wait()

	waitErr := cmd.Wait()

	if cmdCtx.Err() == context.DeadlineExceeded {
		slog.Error("Predictor timed out", "timeout", inv.timeout)
		return "", fmt.Errorf("%w: timed out after %s", ErrClassificationFailed, inv.timeout)
	}
	if waitErr != nil {
		slog.Error("Predictor exited with error",
			"error", waitErr,
			"stderr", truncateForLog(errBuf.String()),
			"duration", time.Since(start),
		)
		return "", fmt.Errorf("%w: %v", ErrClassificationFailed, waitErr)
	}

	slog.Debug("Predictor completed", "duration", time.Since(start))
	return outBuf.String(), nil
}

// parse interprets the predictor's stdout: a single JSON line first, the
// legacy textual pattern as fallback. The parsed result is validated
// against the prediction contract.
func (inv *SubprocessInvoker) parse(output string) (Prediction, error) {
	pred, ok := parseJSONLine(output)
	if !ok {
		pred, ok = parseLegacyLine(output)
	}
	if !ok {
		return Prediction{}, ErrUnparsableOutput
	}

	if err := inv.validate.Struct(pred); err != nil {
		return Prediction{}, fmt.Errorf("%w: %v", ErrUnparsableOutput, err)
	}
	return pred, nil
}

func parseJSONLine(output string) (Prediction, bool) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var pred Prediction
		if err := json.Unmarshal([]byte(line), &pred); err == nil && pred.Label != "" {
			return pred, true
		}
	}
	return Prediction{}, false
}

func parseLegacyLine(output string) (Prediction, bool) {
	match := legacyPattern.FindStringSubmatch(output)
	if match == nil {
		return Prediction{}, false
	}
	confidence, err := strconv.ParseFloat(match[2], 64)
	if err != nil {
		return Prediction{}, false
	}
	return Prediction{Label: match[1], Confidence: confidence}, true
}

// truncateForLog keeps log lines bounded when a child prints garbage.
func truncateForLog(s string) string {
	const max = 512
	s = strings.TrimSpace(s)
	if len(s) > max {
		return s[:max] + "...(truncated)"
	}
	return s
}

// Ensure SubprocessInvoker implements Invoker.
var _ Invoker = (*SubprocessInvoker)(nil)

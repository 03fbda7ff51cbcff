// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package classifier hands an uploaded image to an external classification
// process and interprets its output.
//
// The package exposes a single-method Invoker boundary so the upload
// pipeline never cares whether a classification is served by a child
// process, an in-process model, or a remote call. The shipped
// implementation, SubprocessInvoker, spawns one independent Python process
// per call with no pooling or reuse.
//
// # Exchange format
//
// The preferred exchange with the external program is a single JSON line
// on stdout:
//
//	{"label": "CAT", "confidence": 0.87}
//
// For backward compatibility with the existing predictor script the legacy
// textual pattern is retained as a fallback:
//
//	<path> -> CAT (confidence: 0.8700)
//
// The fallback is a compatibility seam, not a design choice; new predictor
// programs should emit the JSON line.
package classifier

import "context"

// Prediction is the interpreted outcome of one classification.
//
// Validation tags enforce the result contract: the label is one of the
// fixed classes and the confidence is a probability.
type Prediction struct {
	Label      string  `json:"label" validate:"required,oneof=CAT DOG"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
}

// Invoker classifies a single image.
//
// Thread Safety: implementations must be safe for concurrent use; each
// call is an independent invocation with no shared mutable state.
type Invoker interface {
	// Classify runs the classifier on the raw image bytes and returns
	// the predicted label and confidence.
	//
	// Errors are one of the package sentinels (ErrRuntimeUnavailable,
	// ErrArtifactMissing, ErrClassificationFailed, ErrUnparsableOutput),
	// possibly wrapped; match with errors.Is.
	Classify(ctx context.Context, image []byte) (Prediction, error)
}

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

import "errors"

var (
	// ErrRuntimeUnavailable indicates the external runtime (the Python
	// interpreter) could not be found on this host.
	ErrRuntimeUnavailable = errors.New("classifier runtime unavailable")

	// ErrArtifactMissing indicates the trained model artifact or the
	// predictor script is absent from disk.
	ErrArtifactMissing = errors.New("classifier artifact missing")

	// ErrClassificationFailed indicates the external process exited with
	// a non-zero status. Its stderr is logged, never surfaced.
	ErrClassificationFailed = errors.New("classification failed")

	// ErrUnparsableOutput indicates the process succeeded but its output
	// matched neither the JSON exchange format nor the legacy pattern.
	ErrUnparsableOutput = errors.New("unparsable classifier output")
)

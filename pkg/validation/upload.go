// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that end up in
// file paths or subprocess calls. Using these validators prevents path
// traversal and keeps unexpected file types away from the classifier.
package validation

import (
	"fmt"
	"path/filepath"
	"strings"
)

// imageExtensions are the upload extensions the classifier accepts.
// Matching is case-insensitive.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// ValidateImageFilename validates a client-supplied upload filename.
//
// The filename never touches the filesystem directly (uploads are staged
// under server-generated names), so this is a type filter, not a path
// check: only jpg, jpeg and png extensions pass.
//
// Example:
//
//	if err := validation.ValidateImageFilename(header.Filename); err != nil {
//	    c.JSON(http.StatusBadRequest, gin.H{"error": "Only image files are allowed!"})
//	    return
//	}
func ValidateImageFilename(filename string) error {
	if strings.TrimSpace(filename) == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !imageExtensions[ext] {
		return fmt.Errorf("unsupported upload extension: %q", ext)
	}
	return nil
}

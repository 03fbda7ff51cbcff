// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for upload filename validation

package validation

import (
	"testing"
)

func TestValidateImageFilename(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		wantErr  bool
	}{
		// Valid uploads
		{"jpg", "pet.jpg", false},
		{"jpeg", "pet.jpeg", false},
		{"png", "pet.png", false},
		{"uppercase extension", "PET.JPG", false},
		{"mixed case", "Pet.PnG", false},
		{"dotted name", "my.favorite.pet.jpg", false},

		// Rejected uploads
		{"empty", "", true},
		{"whitespace", "   ", true},
		{"no extension", "pet", true},
		{"text file", "notes.txt", true},
		{"gif", "pet.gif", true},
		{"executable", "pet.exe", true},
		{"double extension trick", "pet.jpg.exe", true},
		{"extension only prefix", "petjpg", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateImageFilename(tt.filename)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateImageFilename(%q) error = %v, wantErr %v", tt.filename, err, tt.wantErr)
			}
		})
	}
}

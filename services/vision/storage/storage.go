// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storage defines the persistence model for classification records.
//
// A Record is written exactly once, after a successful classification, and
// is never updated or deleted by the service. Every read is scoped to the
// owning visitor: a lookup with the wrong owner behaves exactly like a
// lookup for a row that does not exist, so callers cannot probe for other
// visitors' record ids.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist or is owned by a
// different visitor. The two cases are deliberately indistinguishable.
var ErrNotFound = errors.New("record not found")

// Record is one persisted classification outcome together with the source
// image bytes and the identity that owns it.
type Record struct {
	// ID is the surrogate key assigned by the store on insert.
	ID int64

	// OwnerID is the visitor identity that created the record.
	// Ownership is permanent and exclusive.
	OwnerID string

	// Label is the predicted class, "CAT" or "DOG".
	Label string

	// Confidence is the classifier's confidence in [0.0, 1.0].
	Confidence float64

	// ImageData holds the raw uploaded bytes. Non-empty on insert.
	// List queries leave it nil; only GetByID loads the payload.
	ImageData []byte

	// MimeType is the content type declared by the uploader.
	MimeType string

	// CreatedAt is assigned by the store at persistence time.
	CreatedAt time.Time
}

// Store is the persistence boundary for classification records.
//
// Implementations must serialize writes internally; callers add no locking
// of their own.
type Store interface {
	// Insert persists a new record and fills in ID and CreatedAt.
	// ImageData must be non-empty.
	Insert(ctx context.Context, rec *Record) error

	// ListRecent returns up to limit records owned by ownerID, newest
	// first (CreatedAt descending, ties broken by descending ID).
	// ImageData is not populated.
	ListRecent(ctx context.Context, ownerID string, limit int) ([]Record, error)

	// GetByID returns the record only when it exists and is owned by
	// ownerID; otherwise ErrNotFound.
	GetByID(ctx context.Context, id int64, ownerID string) (Record, error)

	// Close releases the underlying database handle.
	Close() error
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianVision/services/vision/storage"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "predictions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.EnsureSchema(context.Background()))
	return store
}

func insertRecord(t *testing.T, store *Store, owner, label string) *storage.Record {
	t.Helper()
	rec := &storage.Record{
		OwnerID:    owner,
		Label:      label,
		Confidence: 0.9,
		ImageData:  []byte("fake image bytes"),
		MimeType:   "image/jpeg",
	}
	require.NoError(t, store.Insert(context.Background(), rec))
	return rec
}

// =============================================================================
// Schema Tests
// =============================================================================

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestEnsureSchema_CreatesFreshStore(t *testing.T) {
	store := openStore(t)

	version, err := store.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, schemaVersion, version)
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	store := openStore(t)
	insertRecord(t, store, "owner-a", "CAT")

	require.NoError(t, store.EnsureSchema(context.Background()))

	records, err := store.ListRecent(context.Background(), "owner-a", 10)
	require.NoError(t, err)
	assert.Len(t, records, 1, "a second EnsureSchema must not touch existing rows")
}

func TestEnsureSchema_RebuildsLegacyStore(t *testing.T) {
	ctx := context.Background()
	store, err := Open(filepath.Join(t.TempDir(), "predictions.db"))
	require.NoError(t, err)
	defer store.Close()

	// Shape of the table before visitor identity and image retention
	// existed: no owner_id, no image_data.
	_, err = store.DB().ExecContext(ctx, `CREATE TABLE predictions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		prediction TEXT NOT NULL,
		confidence REAL NOT NULL
	)`)
	require.NoError(t, err)
	_, err = store.DB().ExecContext(ctx,
		`INSERT INTO predictions (prediction, confidence) VALUES ('CAT', 0.5)`)
	require.NoError(t, err)

	require.NoError(t, store.EnsureSchema(ctx))

	// Rebuild drops the legacy rows and records the current version.
	var count int
	require.NoError(t, store.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM predictions`).Scan(&count))
	assert.Zero(t, count)

	version, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, schemaVersion, version)
}

func TestEnsureSchema_AdoptsCompatibleStore(t *testing.T) {
	ctx := context.Background()
	store, err := Open(filepath.Join(t.TempDir(), "predictions.db"))
	require.NoError(t, err)
	defer store.Close()

	// Current table shape but no ledger, as left behind by a deployment
	// that predates schema_meta.
	_, err = store.DB().ExecContext(ctx, createPredictionsSQL)
	require.NoError(t, err)
	_, err = store.DB().ExecContext(ctx,
		`INSERT INTO predictions (owner_id, label, confidence, image_data, mime_type, created_at)
		 VALUES ('owner-a', 'DOG', 0.8, X'00', 'image/png', 1700000000000)`)
	require.NoError(t, err)

	require.NoError(t, store.EnsureSchema(ctx))

	records, err := store.ListRecent(ctx, "owner-a", 10)
	require.NoError(t, err)
	assert.Len(t, records, 1, "adoption must preserve existing rows")

	version, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, schemaVersion, version)
}

func TestEnsureSchema_RebuildsOnStaleVersion(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	insertRecord(t, store, "owner-a", "CAT")

	_, err := store.DB().ExecContext(ctx, `UPDATE schema_meta SET version = 1`)
	require.NoError(t, err)

	require.NoError(t, store.EnsureSchema(ctx))

	records, err := store.ListRecent(ctx, "owner-a", 10)
	require.NoError(t, err)
	assert.Empty(t, records, "stale version must trigger a destructive rebuild")

	version, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, schemaVersion, version)
}

func TestSchemaVersion_NoLedger(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "predictions.db"))
	require.NoError(t, err)
	defer store.Close()

	version, err := store.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Zero(t, version)
}

// =============================================================================
// Record Tests
// =============================================================================

func TestInsert_RoundTrip(t *testing.T) {
	store := openStore(t)

	rec := insertRecord(t, store, "owner-a", "CAT")
	require.NotZero(t, rec.ID)
	require.False(t, rec.CreatedAt.IsZero())

	got, err := store.GetByID(context.Background(), rec.ID, "owner-a")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "owner-a", got.OwnerID)
	assert.Equal(t, "CAT", got.Label)
	assert.InDelta(t, 0.9, got.Confidence, 1e-9)
	assert.Equal(t, []byte("fake image bytes"), got.ImageData)
	assert.Equal(t, "image/jpeg", got.MimeType)
	assert.Equal(t, rec.CreatedAt.UnixMilli(), got.CreatedAt.UnixMilli())
}

func TestInsert_RejectsNilRecord(t *testing.T) {
	store := openStore(t)
	assert.Error(t, store.Insert(context.Background(), nil))
}

func TestInsert_RejectsEmptyImage(t *testing.T) {
	store := openStore(t)
	err := store.Insert(context.Background(), &storage.Record{
		OwnerID: "owner-a",
		Label:   "CAT",
	})
	assert.Error(t, err)
}

func TestGetByID_WrongOwnerIsNotFound(t *testing.T) {
	store := openStore(t)
	rec := insertRecord(t, store, "owner-a", "CAT")

	_, err := store.GetByID(context.Background(), rec.ID, "owner-b")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGetByID_MissingRowIsNotFound(t *testing.T) {
	store := openStore(t)

	_, err := store.GetByID(context.Background(), 9999, "owner-a")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListRecent_NewestFirstAndScoped(t *testing.T) {
	store := openStore(t)
	first := insertRecord(t, store, "owner-a", "CAT")
	second := insertRecord(t, store, "owner-a", "DOG")
	insertRecord(t, store, "owner-b", "DOG")

	records, err := store.ListRecent(context.Background(), "owner-a", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Equal timestamps fall back to insertion order, newest first.
	assert.Equal(t, second.ID, records[0].ID)
	assert.Equal(t, first.ID, records[1].ID)
	for _, rec := range records {
		assert.Equal(t, "owner-a", rec.OwnerID)
		assert.Nil(t, rec.ImageData, "history must not carry image payloads")
	}
}

func TestListRecent_TieBrokenByID(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	// Force identical created_at values; the id must break the tie.
	for i := 0; i < 3; i++ {
		_, err := store.DB().ExecContext(ctx,
			`INSERT INTO predictions (owner_id, label, confidence, image_data, mime_type, created_at)
			 VALUES ('owner-a', 'CAT', 0.5, X'00', 'image/png', 1700000000000)`)
		require.NoError(t, err)
	}

	records, err := store.ListRecent(ctx, "owner-a", 10)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Greater(t, records[0].ID, records[1].ID)
	assert.Greater(t, records[1].ID, records[2].ID)
}

func TestListRecent_HonorsLimit(t *testing.T) {
	store := openStore(t)
	for i := 0; i < 12; i++ {
		insertRecord(t, store, "owner-a", "CAT")
	}

	records, err := store.ListRecent(context.Background(), "owner-a", 10)
	require.NoError(t, err)
	assert.Len(t, records, 10)
}

func TestListRecent_ZeroLimit(t *testing.T) {
	store := openStore(t)
	insertRecord(t, store, "owner-a", "CAT")

	records, err := store.ListRecent(context.Background(), "owner-a", 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestListRecent_UnknownOwnerIsEmpty(t *testing.T) {
	store := openStore(t)
	insertRecord(t, store, "owner-a", "CAT")

	records, err := store.ListRecent(context.Background(), "owner-z", 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

// =============================================================================
// Stats Tests
// =============================================================================

func TestCollectStats(t *testing.T) {
	store := openStore(t)
	insertRecord(t, store, "owner-a", "CAT")
	insertRecord(t, store, "owner-a", "CAT")
	insertRecord(t, store, "owner-b", "DOG")

	stats, err := store.CollectStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalRecords)
	assert.Equal(t, 2, stats.DistinctOwners)
	require.Len(t, stats.Labels, 2)
	assert.Equal(t, "CAT", stats.Labels[0].Label)
	assert.Equal(t, 2, stats.Labels[0].Count)
	assert.Equal(t, "DOG", stats.Labels[1].Label)
	assert.Equal(t, 1, stats.Labels[1].Count)
	assert.InDelta(t, 0.9, stats.Labels[0].AvgConfidence, 1e-9)
}

func TestCollectStats_EmptyStore(t *testing.T) {
	store := openStore(t)

	stats, err := store.CollectStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalRecords)
	assert.Zero(t, stats.DistinctOwners)
	assert.Empty(t, stats.Labels)
}

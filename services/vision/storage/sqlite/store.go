// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sqlite provides the SQLite-backed record store.
//
// # Schema self-healing
//
// The store carries a one-row schema_meta ledger recording the schema
// version it was created with. EnsureSchema consults the ledger first; a
// store without a ledger is inspected structurally (the way early
// deployments had to be), and a predictions table missing the owner or
// image payload columns is treated as legacy and rebuilt destructively:
// all rows are dropped and the table is recreated empty. EnsureSchema
// must run once per process, before any other component touches the
// store; failure to open or rebuild is fatal to the caller.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianVision/services/vision/storage"
	_ "modernc.org/sqlite"
)

// schemaVersion is the version recorded in the schema_meta ledger.
// Bump it whenever the predictions table shape changes; EnsureSchema
// rebuilds any store whose ledger disagrees.
const schemaVersion = 2

const createPredictionsSQL = `CREATE TABLE predictions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_id TEXT NOT NULL,
	label TEXT NOT NULL,
	confidence REAL NOT NULL,
	image_data BLOB NOT NULL,
	mime_type TEXT NOT NULL,
	created_at INTEGER NOT NULL
)`

const createOwnerIndexSQL = `CREATE INDEX IF NOT EXISTS predictions_owner_recent
	ON predictions (owner_id, created_at DESC, id DESC)`

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store provides SQLite-backed persistence for classification records.
type Store struct {
	sqlDB *sql.DB
}

// Ensure Store implements the storage boundary.
var _ storage.Store = (*Store)(nil)

// Open opens a SQLite store at the provided path. It does not touch the
// schema; call EnsureSchema before any record operation.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// DB returns the underlying sql.DB instance.
func (s *Store) DB() *sql.DB {
	if s == nil {
		return nil
	}
	return s.sqlDB
}

// EnsureSchema checks the persisted structure against the current record
// shape and heals it if needed. See the package comment for the policy.
func (s *Store) EnsureSchema(ctx context.Context) error {
	hasLedger, err := s.tableExists(ctx, "schema_meta")
	if err != nil {
		return fmt.Errorf("inspect schema ledger: %w", err)
	}

	if hasLedger {
		var version int
		err := s.sqlDB.QueryRowContext(ctx, `SELECT version FROM schema_meta LIMIT 1`).Scan(&version)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			// Empty ledger, fall through to structural inspection.
		case err != nil:
			return fmt.Errorf("read schema version: %w", err)
		case version == schemaVersion:
			return nil
		default:
			slog.Warn("Stale schema version recorded, rebuilding store",
				"recorded", version, "expected", schemaVersion)
			return s.rebuild(ctx)
		}
	}

	// No usable ledger: inspect the live structure. This is the
	// compatibility seam for stores created before the ledger existed.
	var ddl string
	err = s.sqlDB.QueryRowContext(ctx,
		`SELECT sql FROM sqlite_master WHERE type='table' AND name='predictions'`).Scan(&ddl)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return s.createSchema(ctx)
	case err != nil:
		return fmt.Errorf("inspect predictions table: %w", err)
	}

	if !strings.Contains(ddl, "owner_id") || !strings.Contains(ddl, "image_data") {
		slog.Warn("Legacy predictions schema detected, rebuilding store")
		return s.rebuild(ctx)
	}

	// Structure is already current, just missing the ledger. Adopt the
	// existing rows and record the version.
	return s.writeLedger(ctx)
}

func (s *Store) tableExists(ctx context.Context, name string) (bool, error) {
	var found string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, createPredictionsSQL); err != nil {
		return fmt.Errorf("create predictions table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, createOwnerIndexSQL); err != nil {
		return fmt.Errorf("create owner index: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `CREATE TABLE schema_meta (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema ledger: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_meta (version) VALUES (?)`, schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}

	slog.Info("Created predictions store", "schema_version", schemaVersion)
	return nil
}

func (s *Store) rebuild(ctx context.Context) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DROP TABLE IF EXISTS predictions`); err != nil {
		return fmt.Errorf("drop predictions table: %w", err)
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DROP TABLE IF EXISTS schema_meta`); err != nil {
		return fmt.Errorf("drop schema ledger: %w", err)
	}
	return s.createSchema(ctx)
}

func (s *Store) writeLedger(ctx context.Context) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_meta (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema ledger: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM schema_meta`); err != nil {
		return fmt.Errorf("reset schema ledger: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_meta (version) VALUES (?)`, schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}

	slog.Info("Adopted compatible predictions store", "schema_version", schemaVersion)
	return nil
}

// SchemaVersion reads the recorded schema version without healing
// anything. Returns 0 when no ledger is present.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	hasLedger, err := s.tableExists(ctx, "schema_meta")
	if err != nil {
		return 0, err
	}
	if !hasLedger {
		return 0, nil
	}
	var version int
	err = s.sqlDB.QueryRowContext(ctx, `SELECT version FROM schema_meta LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}

// Insert persists a new record, filling in ID and CreatedAt.
func (s *Store) Insert(ctx context.Context, rec *storage.Record) error {
	if rec == nil {
		return fmt.Errorf("record must not be nil")
	}
	if len(rec.ImageData) == 0 {
		return fmt.Errorf("image payload must not be empty")
	}

	createdAt := time.Now().UTC()
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO predictions (owner_id, label, confidence, image_data, mime_type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.OwnerID, rec.Label, rec.Confidence, rec.ImageData, rec.MimeType, toMillis(createdAt))
	if err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read inserted id: %w", err)
	}
	rec.ID = id
	rec.CreatedAt = createdAt
	return nil
}

// ListRecent returns the owner's newest records without image payloads.
func (s *Store) ListRecent(ctx context.Context, ownerID string, limit int) ([]storage.Record, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, owner_id, label, confidence, mime_type, created_at
		 FROM predictions
		 WHERE owner_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	defer rows.Close()

	var records []storage.Record
	for rows.Next() {
		var (
			rec       storage.Record
			createdAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.OwnerID, &rec.Label, &rec.Confidence,
			&rec.MimeType, &createdAt); err != nil {
			return nil, fmt.Errorf("scan prediction row: %w", err)
		}
		rec.CreatedAt = fromMillis(createdAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prediction rows: %w", err)
	}
	return records, nil
}

// GetByID returns a record only when owned by ownerID. A wrong owner is
// indistinguishable from a missing row.
func (s *Store) GetByID(ctx context.Context, id int64, ownerID string) (storage.Record, error) {
	var (
		rec       storage.Record
		createdAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, owner_id, label, confidence, image_data, mime_type, created_at
		 FROM predictions
		 WHERE id = ? AND owner_id = ?`,
		id, ownerID).Scan(&rec.ID, &rec.OwnerID, &rec.Label, &rec.Confidence,
		&rec.ImageData, &rec.MimeType, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Record{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Record{}, fmt.Errorf("get prediction: %w", err)
	}
	rec.CreatedAt = fromMillis(createdAt)
	return rec, nil
}

// LabelStats summarizes the stored records for a single label.
type LabelStats struct {
	Label         string  `json:"label"`
	Count         int     `json:"count"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// Stats summarizes the stored records for operator tooling.
type Stats struct {
	TotalRecords   int          `json:"total_records"`
	DistinctOwners int          `json:"distinct_owners"`
	Labels         []LabelStats `json:"labels"`
}

// CollectStats counts stored records overall, per label, and per owner.
func (s *Store) CollectStats(ctx context.Context) (Stats, error) {
	var stats Stats

	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT owner_id) FROM predictions`).Scan(&stats.DistinctOwners)
	if err != nil {
		return Stats{}, fmt.Errorf("count owners: %w", err)
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT label, COUNT(*), AVG(confidence) FROM predictions GROUP BY label ORDER BY label`)
	if err != nil {
		return Stats{}, fmt.Errorf("count predictions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ls LabelStats
		var avg sql.NullFloat64
		if err := rows.Scan(&ls.Label, &ls.Count, &avg); err != nil {
			return Stats{}, fmt.Errorf("scan stats row: %w", err)
		}
		ls.AvgConfidence = avg.Float64
		stats.Labels = append(stats.Labels, ls)
		stats.TotalRecords += ls.Count
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("iterate stats rows: %w", err)
	}
	return stats, nil
}

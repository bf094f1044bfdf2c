// Copyright 2026 © The Agentloop Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteSink persists entries in a SQLite table.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLiteSink opens (or creates) a SQLite database at path.
func OpenSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	sink, err := NewSQLiteSink(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return sink, nil
}

// NewSQLiteSink creates a sink on an existing database and ensures schema.
func NewSQLiteSink(db *sql.DB) (*SQLiteSink, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := ensureTranscriptSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteSink{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

// Record stores a single entry.
func (s *SQLiteSink) Record(ctx context.Context, runID string, e Entry) error {
	if runID == "" {
		return errors.New("memory: run id is required")
	}
	content, err := json.Marshal(e.Content)
	if err != nil {
		return fmt.Errorf("failed to encode entry content: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transcript_entries (id, run_id, entry_type, content_json, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		e.ID,
		runID,
		string(e.Type),
		string(content),
		e.CreatedAt.UTC().UnixMilli(),
	)
	return err
}

// Entries returns the entries of a run in insertion order.
func (s *SQLiteSink) Entries(ctx context.Context, runID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entry_type, content_json, created_at
		FROM transcript_entries
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e           Entry
			entryType   string
			contentJSON string
			createdMs   int64
		)
		if err := rows.Scan(&e.ID, &entryType, &contentJSON, &createdMs); err != nil {
			return nil, err
		}
		e.Type = EntryType(entryType)
		if contentJSON != "" {
			if err := json.Unmarshal([]byte(contentJSON), &e.Content); err != nil {
				return nil, fmt.Errorf("failed to decode entry %s: %w", e.ID, err)
			}
		}
		e.CreatedAt = time.UnixMilli(createdMs).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrRunNotFound
	}
	return entries, nil
}

// Runs lists the stored run ids, sorted.
func (s *SQLiteSink) Runs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT run_id FROM transcript_entries ORDER BY run_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		runs = append(runs, id)
	}
	return runs, rows.Err()
}

func ensureTranscriptSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS transcript_entries (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			run_id TEXT NOT NULL,
			entry_type TEXT NOT NULL,
			content_json TEXT,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_transcript_run ON transcript_entries(run_id);
	`)
	return err
}

var _ Sink = (*SQLiteSink)(nil)

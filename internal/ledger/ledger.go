// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger records resolve runs and their per-entry outcomes in a
// SQLite database so earlier runs can be listed and compared.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/rebib/pkg/types"
)

// Ledger is an open run history database.
type Ledger struct {
	db *sql.DB
}

// Run is one recorded resolve run.
type Run struct {
	ID        string    `json:"id" yaml:"id"`
	Input     string    `json:"input" yaml:"input"`
	Started   time.Time `json:"started" yaml:"started"`
	Finished  time.Time `json:"finished" yaml:"finished"`
	Updated   int       `json:"updated" yaml:"updated"`
	Untouched int       `json:"untouched" yaml:"untouched"`
}

// Total returns the number of entries processed in the run.
func (r Run) Total() int {
	return r.Updated + r.Untouched
}

// EntryRecord is one entry's stored outcome.
type EntryRecord struct {
	Key    string `json:"key" yaml:"key"`
	Status string `json:"status" yaml:"status"`
	Title  string `json:"title,omitempty" yaml:"title,omitempty"`
	Info   string `json:"info,omitempty" yaml:"info,omitempty"`
}

// Open opens or creates the ledger at path and ensures its schema.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	l := &Ledger{db: db}
	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}
	return l, nil
}

// Close releases the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			input TEXT NOT NULL,
			started TEXT NOT NULL,
			finished TEXT NOT NULL,
			updated INTEGER NOT NULL,
			untouched INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS entries (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			key TEXT NOT NULL,
			status TEXT NOT NULL,
			title TEXT,
			info TEXT,
			PRIMARY KEY (run_id, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_key ON entries(key)`,
	}
	for _, stmt := range statements {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// EntryRecords converts settled outcomes into ledger rows.
func EntryRecords(outcomes []types.Outcome) []EntryRecord {
	records := make([]EntryRecord, 0, len(outcomes))
	for _, o := range outcomes {
		rec := EntryRecord{Key: o.Source.Key, Status: "untouched", Title: o.Source.Title(), Info: o.Info}
		if o.Status == types.StatusSucceeded && o.Record != nil {
			rec.Status = "updated"
			rec.Title = o.Record.Title()
		}
		records = append(records, rec)
	}
	return records
}

// RecordRun stores run and its entries in one transaction. An empty
// run.ID is replaced with a new UUID; the stored ID is returned.
func (l *Ledger) RecordRun(ctx context.Context, run Run, entries []EntryRecord) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, input, started, finished, updated, untouched) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Input,
		run.Started.UTC().Format(time.RFC3339Nano), run.Finished.UTC().Format(time.RFC3339Nano),
		run.Updated, run.Untouched,
	); err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entries (run_id, position, key, status, title, info) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("preparing entry insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range entries {
		if _, err := stmt.ExecContext(ctx, run.ID, i, e.Key, e.Status, e.Title, e.Info); err != nil {
			return "", fmt.Errorf("inserting entry %s: %w", e.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}
	return run.ID, nil
}

// Runs returns the most recent runs first. A limit of zero or less
// returns every run.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, input, started, finished, updated, untouched FROM runs ORDER BY started DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished string
		if err := rows.Scan(&r.ID, &r.Input, &started, &finished, &r.Updated, &r.Untouched); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Started, _ = time.Parse(time.RFC3339Nano, started)
		r.Finished, _ = time.Parse(time.RFC3339Nano, finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Entries returns the stored entries of a run in input order.
func (l *Ledger) Entries(ctx context.Context, runID string) ([]EntryRecord, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT key, status, COALESCE(title, ''), COALESCE(info, '') FROM entries WHERE run_id = ? ORDER BY position`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var entries []EntryRecord
	for rows.Next() {
		var e EntryRecord
		if err := rows.Scan(&e.Key, &e.Status, &e.Title, &e.Info); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger records converted archives in a SQLite database so a batch
// can skip archives whose content has not changed since their deck was
// written.
package ledger

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/zeebo/blake3"

	"github.com/bernie-nyc/smart-notebook-converter/pkg/types"
)

// Record is one completed conversion.
type Record struct {
	Digest    string
	Archive   string
	Output    string
	Format    types.DeckFormat
	Slides    int
	RunID     string
	Converted time.Time
}

// Ledger is the conversion history database.
type Ledger struct {
	db *sql.DB
}

// Open opens or creates the ledger at path, creating parent directories.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	// Batches record from several goroutines; one writer avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	l := &Ledger{db: db}
	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return l, nil
}

// Close releases the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS conversions (
			digest TEXT NOT NULL,
			format TEXT NOT NULL,
			archive TEXT NOT NULL,
			output TEXT NOT NULL,
			slides INTEGER NOT NULL,
			run_id TEXT,
			converted_at TEXT NOT NULL,
			PRIMARY KEY (digest, format, output)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversions_archive ON conversions(archive)`,
	}
	for _, stmt := range statements {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Lookup returns the latest record of digest converted to output in format.
// The boolean is false when none exists. Identical archives written to
// different outputs have separate records.
func (l *Ledger) Lookup(digest, output string, format types.DeckFormat) (Record, bool, error) {
	var (
		rec       Record
		converted string
		runID     sql.NullString
	)
	err := l.db.QueryRow(
		`SELECT digest, format, archive, output, slides, run_id, converted_at
		 FROM conversions WHERE digest = ? AND format = ? AND output = ?`,
		digest, string(format), output,
	).Scan(&rec.Digest, &rec.Format, &rec.Archive, &rec.Output, &rec.Slides, &runID, &converted)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("looking up %s: %w", digest, err)
	}
	rec.RunID = runID.String
	if rec.Converted, err = time.Parse(time.RFC3339Nano, converted); err != nil {
		return Record{}, false, fmt.Errorf("parsing timestamp for %s: %w", digest, err)
	}
	return rec, true, nil
}

// UpToDate reports whether digest was converted to output in format and the
// output file still exists.
func (l *Ledger) UpToDate(digest, output string, format types.DeckFormat) (bool, error) {
	_, ok, err := l.Lookup(digest, output, format)
	if err != nil || !ok {
		return false, err
	}
	if _, err := os.Stat(output); err != nil {
		return false, nil
	}
	return true, nil
}

// Put inserts or replaces the record for rec.Digest, rec.Format and
// rec.Output.
func (l *Ledger) Put(rec Record) error {
	if rec.Converted.IsZero() {
		rec.Converted = time.Now()
	}
	_, err := l.db.Exec(
		`INSERT OR REPLACE INTO conversions
		 (digest, format, archive, output, slides, run_id, converted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Digest, string(rec.Format), rec.Archive, rec.Output, rec.Slides,
		sql.NullString{String: rec.RunID, Valid: rec.RunID != ""},
		rec.Converted.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording %s: %w", rec.Archive, err)
	}
	return nil
}

// Digest returns the hex BLAKE3 hash of the file at path.
func Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

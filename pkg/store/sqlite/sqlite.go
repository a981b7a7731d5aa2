// Package sqlite implements the per-host sync index: a small SQLite database
// next to the cached captures that records what the last size probes saw and
// what the last conversions produced. The pipeline works without it being
// queried; the status command reads it.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/solarlog/vbusmirror/pkg/model"
)

// Schema version for migrations.
const schemaVersion = 1

// IndexFilename is the database filename inside a host directory.
const IndexFilename = "mirror.idx.db"

// Index is the per-host sync index.
type Index struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the index at path.
func Open(path string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Single writer is best practice for SQLite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	x := &Index{db: db, path: path}
	if err := x.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return x, nil
}

// Close closes the database.
func (x *Index) Close() error {
	return x.db.Close()
}

// Path returns the database file path.
func (x *Index) Path() string {
	return x.path
}

func (x *Index) initSchema() error {
	schema := `
-- Meta table for index metadata
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT
);

-- One row per UTC-day capture, updated on every size probe
CREATE TABLE IF NOT EXISTS captures (
	datecode    TEXT PRIMARY KEY,
	remote_size INTEGER NOT NULL,
	local_size  INTEGER NOT NULL,
	modified_at TEXT NOT NULL,
	checked_at  TEXT NOT NULL,
	downloads   INTEGER NOT NULL DEFAULT 0
);

-- One row per output bucket, updated on every conversion
CREATE TABLE IF NOT EXISTS buckets (
	datecode     TEXT PRIMARY KEY,
	strategy     TEXT NOT NULL,
	sources      TEXT NOT NULL,  -- JSON array of capture datecodes
	row_count    INTEGER NOT NULL,
	written      INTEGER NOT NULL,
	converted_at TEXT NOT NULL
);
`
	if _, err := x.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}

	_, err := x.db.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`,
		"schema_version", fmt.Sprintf("%d", schemaVersion))
	return err
}

// SetMeta stores one metadata value.
func (x *Index) SetMeta(key, value string) error {
	_, err := x.db.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, key, value)
	return err
}

// GetMeta retrieves one metadata value, or "" when unset.
func (x *Index) GetMeta(key string) (string, error) {
	var value string
	err := x.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// RecordCheck upserts the outcome of one size probe. A download bumps the
// counter and the modification stamp; a no-op probe only refreshes sizes and
// the check stamp.
func (x *Index) RecordCheck(datecode string, remoteSize, localSize int64, downloaded bool, at time.Time) error {
	stamp := at.UTC().Format(time.RFC3339Nano)
	bump := 0
	if downloaded {
		bump = 1
	}
	_, err := x.db.Exec(`INSERT INTO captures (datecode, remote_size, local_size, modified_at, checked_at, downloads)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(datecode) DO UPDATE SET
	remote_size = excluded.remote_size,
	local_size  = excluded.local_size,
	modified_at = CASE WHEN ? THEN excluded.modified_at ELSE modified_at END,
	checked_at  = excluded.checked_at,
	downloads   = downloads + ?`,
		datecode, remoteSize, localSize, stamp, stamp, bump,
		downloaded, bump,
	)
	return err
}

// RecordBucket upserts the outcome of one conversion.
func (x *Index) RecordBucket(b model.BucketState) error {
	sources, err := json.Marshal(b.Sources)
	if err != nil {
		return err
	}
	_, err = x.db.Exec(`INSERT OR REPLACE INTO buckets (datecode, strategy, sources, row_count, written, converted_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		b.DateCode, b.Strategy, string(sources), b.RowCount, b.Written,
		b.ConvertedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// Captures returns every capture row in ascending datecode order.
func (x *Index) Captures() ([]model.CaptureState, error) {
	rows, err := x.db.Query(`SELECT datecode, remote_size, local_size, modified_at, checked_at, downloads
FROM captures ORDER BY datecode`)
	if err != nil {
		return nil, fmt.Errorf("query captures: %w", err)
	}
	defer rows.Close()

	var out []model.CaptureState
	for rows.Next() {
		var c model.CaptureState
		var modified, checked string
		if err := rows.Scan(&c.DateCode, &c.RemoteSize, &c.LocalSize, &modified, &checked, &c.Downloads); err != nil {
			return nil, err
		}
		c.ModifiedAt, _ = time.Parse(time.RFC3339Nano, modified)
		c.CheckedAt, _ = time.Parse(time.RFC3339Nano, checked)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Buckets returns every bucket row in ascending datecode order.
func (x *Index) Buckets() ([]model.BucketState, error) {
	rows, err := x.db.Query(`SELECT datecode, strategy, sources, row_count, written, converted_at
FROM buckets ORDER BY datecode`)
	if err != nil {
		return nil, fmt.Errorf("query buckets: %w", err)
	}
	defer rows.Close()

	var out []model.BucketState
	for rows.Next() {
		var b model.BucketState
		var sources, converted string
		if err := rows.Scan(&b.DateCode, &b.Strategy, &sources, &b.RowCount, &b.Written, &converted); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(sources), &b.Sources); err != nil {
			return nil, fmt.Errorf("decode sources for %s: %w", b.DateCode, err)
		}
		b.ConvertedAt, _ = time.Parse(time.RFC3339Nano, converted)
		out = append(out, b)
	}
	return out, rows.Err()
}

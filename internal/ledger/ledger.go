// Package ledger records compilations in SQLite.
//
// Every successful compile appends one compilation row and one row per
// artifact with its SHA-256 digest. Compilation is deterministic, so the
// same plan fingerprint compiled in the same mode must always produce the
// same digests. Check reports a DriftError when it does not, before any
// output is written.
//
// # Ordering
//
// Rows are ordered by seq, the SQLite rowid, never by compiled_at. The
// timestamp is informational only and comes from an injectable clock.
//
// # Database Configuration
//
//   - WAL mode
//   - busy_timeout=5000
//   - foreign_keys=ON
package ledger

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema versions:
// 1 - compilations and artifacts
const currentSchemaVersion = 1

// Ledger is an open compile ledger.
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock sets the source of compiled_at timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// Open creates or opens the ledger at path. ":memory:" opens a private
// in-memory ledger.
func Open(path string, opts ...Option) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "connect to database")
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "apply pragmas")
	}
	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "apply schema")
	}

	l := &Ledger{db: db, now: time.Now}
	for _, o := range opts {
		o(l)
	}
	return l, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return errors.Wrapf(err, "execute %q", pragma)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return errors.Wrap(err, "get user_version")
	}
	if version > currentSchemaVersion {
		return errors.Errorf("ledger schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return errors.Wrap(err, "execute schema")
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return errors.Wrap(err, "set user_version")
	}
	return nil
}

// Package db is the persistence layer: sqlite in WAL mode, a single-writer
// discipline, explicit-column-list writes (never an ActiveModel-style
// partial update that silently extends its write set — §9 REDESIGN FLAG),
// and additive-only migrations so a restart never resets a download_status
// value (§6 "Persistent state").
//
// Grounded on internal/plex/dvr.go's direct database/sql + modernc.org/sqlite
// usage in the teacher, the only real DB code it carries (raw SQL, no ORM).
package db

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// Pool wraps *sql.DB with the WAL-mode single-writer discipline described in
// spec.md §5: many concurrent readers, one writer transaction at a time.
// writeMu serialises write transactions at the application level in addition
// to sqlite's own locking, so callers get predictable ordering rather than
// relying on SQLITE_BUSY retries.
type Pool struct {
	db      *sql.DB
	writeMu sync.Mutex
}

// Open opens (or creates) the sqlite database at path, enables WAL mode, and
// applies all pending migrations.
func Open(path string) (*Pool, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("db: open %s: %w", path, err)
	}
	sqlDB.SetMaxOpenConns(1 + readerHint) // 1 writer slot is implicit via writeMu; readers share the pool
	p := &Pool{db: sqlDB}
	if err := migrate(sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("db: migrate: %w", err)
	}
	return p, nil
}

// readerHint bounds the reader connection pool; sqlite WAL supports many
// concurrent readers alongside a single writer.
const readerHint = 16

// Close closes the underlying database.
func (p *Pool) Close() error { return p.db.Close() }

// DB returns the raw *sql.DB for packages that need read-only queries outside
// the write-transaction helpers below (e.g. listing).
func (p *Pool) DB() *sql.DB { return p.db }

// WithTx runs fn inside a single write transaction, serialised against every
// other writer in the process via writeMu (spec.md §5: "all writes on an
// item are wrapped in a transaction ... only one writer may hold the
// transaction at a time"). fn's error determines commit vs rollback.
func (p *Pool) WithTx(fn func(tx *sql.Tx) error) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	tx, err := p.db.Begin()
	if err != nil {
		return fmt.Errorf("db: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("db: commit: %w", err)
	}
	return nil
}

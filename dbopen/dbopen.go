// Package dbopen opens the SQLite databases behind the audit store. Every
// pooled connection of a file database gets the same pragmas through the DSN
// (modernc's _pragma parameter); they are applied again with EXEC so that
// in-memory databases and the tracing driver see them too:
//
//	foreign_keys = ON
//	journal_mode = WAL      (file databases; checked after opening)
//	busy_timeout = 10000
//	synchronous  = NORMAL
//
// Usage:
//
//	db, err := dbopen.Open("data/audit.db", dbopen.WithMkdirAll(), dbopen.WithSchema(schema))
//
// In tests:
//
//	db := dbopen.OpenMemory(t, dbopen.WithSchema(schema))
package dbopen

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

// Memory is the path of a private in-memory database.
const Memory = ":memory:"

type options struct {
	driver       string
	busyTimeout  int
	synchronous  string
	mkdirAll     bool
	maxOpenConns int
	schemas      []string
}

// Option customises Open.
type Option func(*options)

// WithDriver sets the database/sql driver name: "sqlite" (default) or TraceDriver.
func WithDriver(name string) Option { return func(o *options) { o.driver = name } }

// WithBusyTimeout sets PRAGMA busy_timeout in milliseconds.
func WithBusyTimeout(ms int) Option { return func(o *options) { o.busyTimeout = ms } }

// WithSynchronous sets PRAGMA synchronous (OFF, NORMAL, FULL, EXTRA).
func WithSynchronous(mode string) Option { return func(o *options) { o.synchronous = mode } }

// WithMkdirAll creates the parent directory of the database file.
func WithMkdirAll() Option { return func(o *options) { o.mkdirAll = true } }

// WithMaxOpenConns caps the pool; 0 leaves database/sql's default.
func WithMaxOpenConns(n int) Option { return func(o *options) { o.maxOpenConns = n } }

// WithSchema queues SQL executed after the pragmas. Statements must be
// idempotent (CREATE ... IF NOT EXISTS).
func WithSchema(s string) Option { return func(o *options) { o.schemas = append(o.schemas, s) } }

// Open opens the database at path, applies pragmas and schemas, and pings it.
func Open(path string, opts ...Option) (*sql.DB, error) {
	o := options{driver: "sqlite", busyTimeout: 10_000, synchronous: "NORMAL"}
	for _, fn := range opts {
		fn(&o)
	}

	if o.mkdirAll && path != Memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("dbopen: mkdir: %w", err)
		}
	}
	db, err := sql.Open(o.driver, dsn(path, &o))
	if err != nil {
		return nil, fmt.Errorf("dbopen: open %s: %w", path, err)
	}
	if o.maxOpenConns > 0 {
		db.SetMaxOpenConns(o.maxOpenConns)
	}
	if err := prepare(db, path, &o); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// OpenMemory opens an in-memory database for tests, pinned to a single
// connection because every ":memory:" connection is a separate database.
func OpenMemory(t testing.TB, opts ...Option) *sql.DB {
	t.Helper()
	db, err := Open(Memory, append([]Option{WithMaxOpenConns(1)}, opts...)...)
	if err != nil {
		t.Fatalf("dbopen.OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func dsn(path string, o *options) string {
	if path == Memory {
		return path
	}
	q := url.Values{}
	for _, p := range []string{
		"foreign_keys(1)",
		fmt.Sprintf("busy_timeout(%d)", o.busyTimeout),
		"synchronous(" + o.synchronous + ")",
	} {
		q.Add("_pragma", p)
	}
	return "file:" + path + "?" + q.Encode()
}

func prepare(db *sql.DB, path string, o *options) error {
	exec := func(stmt string) error {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("dbopen: %s: %w", strings.SplitN(stmt, "\n", 2)[0], err)
		}
		return nil
	}

	if err := exec("PRAGMA foreign_keys = ON"); err != nil {
		return err
	}
	if path != Memory {
		var mode string
		if err := db.QueryRow("PRAGMA journal_mode = WAL").Scan(&mode); err != nil {
			return fmt.Errorf("dbopen: journal_mode: %w", err)
		}
		if !strings.EqualFold(mode, "wal") {
			return fmt.Errorf("dbopen: %s: journal_mode is %q, want wal", path, mode)
		}
	}
	if err := exec(fmt.Sprintf("PRAGMA busy_timeout = %d", o.busyTimeout)); err != nil {
		return err
	}
	if err := exec("PRAGMA synchronous = " + o.synchronous); err != nil {
		return err
	}
	for _, s := range o.schemas {
		if err := exec(s); err != nil {
			return err
		}
	}
	if err := db.Ping(); err != nil {
		return fmt.Errorf("dbopen: ping: %w", err)
	}
	return nil
}

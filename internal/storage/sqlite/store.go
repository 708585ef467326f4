// Package sqlite implements internal/storage.Storage over an embedded,
// pure-Go SQLite database (github.com/ncruces/go-sqlite3 — no cgo),
// the same single-file-database shape the teacher repo uses for its
// issue store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/templedb/templedb/internal/storage"
)

// Store is the sqlite-backed storage.Storage implementation. It embeds
// a *txWrapper bound to the raw *sql.DB so that every Transaction
// method is usable directly on a Store for single-statement reads,
// while RunInTransaction hands callers a *txWrapper bound to a single
// locked connection for multi-statement writes.
type Store struct {
	*txWrapper
	db   *sql.DB
	path string
}

var _ storage.Storage = (*Store)(nil)

// New opens (creating if necessary) the database at path, applies the
// baseline schema, and runs every registered migration.
func New(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single-writer file database; avoid SQLITE_BUSY storms

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal_mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign_keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply baseline schema: %w", err)
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	store := &Store{db: db, path: path}
	store.txWrapper = &txWrapper{q: db}
	return store, nil
}

func (s *Store) Path() string       { return s.path }
func (s *Store) UnderlyingDB() *sql.DB { return s.db }

func (s *Store) UnderlyingConn(ctx context.Context) (*sql.Conn, error) {
	return s.db.Conn(ctx)
}

func (s *Store) Close() error { return s.db.Close() }

// txWrapper adapts a queryer to the storage.Transaction interface;
// every query method in this package is defined on *txWrapper so it can
// run identically against either the Store's *sql.DB or the *sql.Conn
// that RunInTransaction holds inside BEGIN IMMEDIATE.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txWrapper struct {
	q queryer
}

var _ storage.Transaction = (*txWrapper)(nil)

// RunInTransaction runs fn inside a BEGIN IMMEDIATE transaction: writes
// start taking the write lock immediately rather than on first write,
// which avoids the classic SQLite upgrade deadlock between two
// concurrently-open read transactions that both later try to write.
// Commits on a nil return; rolls back (and re-panics) otherwise.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("begin immediate: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(ctx, "ROLLBACK")
		}
	}()

	tx := &txWrapper{q: conn}
	if err := fn(tx); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// Package store provides durable storage for apagea document
// collections. Uses SQLite with WAL mode for concurrent read access.
//
// Documents live one per row as a JSON blob; queries against them go
// through the querysql predicate compiler, never through string
// interpolation. Collection tables carry the "col_" prefix, view
// relations the "view_" prefix.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/apagea/internal/query"
)

// Store owns the SQLite database backing a set of document collections.
type Store struct {
	db     *sql.DB
	path   string
	limits query.Limits
}

// Open creates or opens a SQLite database at the given path.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - foreign key enforcement
//   - 10000-page cache
//   - case-sensitive LIKE, so the case-insensitive query operators are
//     the only case-folding ones
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Store, error) {
	// Open database (creates file if doesn't exist).
	// case_sensitive_like goes in the DSN so every pooled connection
	// gets it; a plain PRAGMA would only hit the current connection.
	db, err := sql.Open("sqlite3", path+"?_case_sensitive_like=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify connection works
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1) // Single writer to avoid SQLITE_BUSY errors
	db.SetMaxIdleConns(1) // Keep one connection ready

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA cache_size = 10000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection.
// Should be called when the store is no longer needed.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Destroy closes the store and removes the database file, including
// all collections and views within it.
func (s *Store) Destroy() error {
	if err := s.Close(); err != nil {
		return fmt.Errorf("destroy store: %w", err)
	}
	if err := os.Remove(s.path); err != nil {
		return fmt.Errorf("destroy store: %w", err)
	}
	// WAL sidecar files may outlive the main database file.
	os.Remove(s.path + "-wal")
	os.Remove(s.path + "-shm")
	return nil
}

// SetQueryLimits overrides the nesting limits applied to Find queries.
// The zero value means query.DefaultLimits.
func (s *Store) SetQueryLimits(l query.Limits) {
	s.limits = l
}

// QueryLimits returns the nesting limits applied to Find queries.
func (s *Store) QueryLimits() query.Limits {
	return s.limits
}

// CreateCollection creates a collection and returns its handle.
// Fails with ErrCodeCollectionExists if the name is already in use and
// ErrCodeInvalidName if the name fails validation.
func (s *Store) CreateCollection(ctx context.Context, name string) (*Collection, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	exists, err := s.relationExists(ctx, "table", collectionPrefix+name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errCollectionExists(name)
	}

	// json_valid enforces that every stored blob is well-formed JSON.
	createSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			pk TEXT PRIMARY KEY NOT NULL,
			data TEXT NOT NULL CHECK (json_valid(data)),
			date_created TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			last_updated TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`, collectionTable(name))
	if _, err := s.db.ExecContext(ctx, createSQL); err != nil {
		return nil, fmt.Errorf("create collection %q: %w", name, err)
	}

	return s.collectionHandle(name), nil
}

// Collection returns a handle to an existing collection.
// Fails with ErrCodeCollectionNotFound if it does not exist.
func (s *Store) Collection(ctx context.Context, name string) (*Collection, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	exists, err := s.relationExists(ctx, "table", collectionPrefix+name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errCollectionNotFound(name)
	}

	return s.collectionHandle(name), nil
}

// EnsureCollection returns a handle to the named collection, creating
// it first if it does not exist.
func (s *Store) EnsureCollection(ctx context.Context, name string) (*Collection, error) {
	col, err := s.Collection(ctx, name)
	if err == nil {
		return col, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}
	return s.CreateCollection(ctx, name)
}

// CollectionExists reports whether a collection with the name exists.
func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}
	return s.relationExists(ctx, "table", collectionPrefix+name)
}

// ListCollections returns the names of all collections, sorted.
// Returns an empty slice (not nil) when the store has no collections.
func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	return s.listRelations(ctx, "table", collectionPrefix)
}

// RenameCollection renames a collection. The old name must exist and
// the new name must be free.
func (s *Store) RenameCollection(ctx context.Context, oldName, newName string) error {
	if err := ValidateName(oldName); err != nil {
		return err
	}
	if err := ValidateName(newName); err != nil {
		return err
	}

	exists, err := s.relationExists(ctx, "table", collectionPrefix+oldName)
	if err != nil {
		return err
	}
	if !exists {
		return errCollectionNotFound(oldName)
	}

	taken, err := s.relationExists(ctx, "table", collectionPrefix+newName)
	if err != nil {
		return err
	}
	if taken {
		return errCollectionExists(newName)
	}

	renameSQL := fmt.Sprintf("ALTER TABLE %s RENAME TO %s",
		collectionTable(oldName), collectionTable(newName))
	if _, err := s.db.ExecContext(ctx, renameSQL); err != nil {
		return fmt.Errorf("rename collection %q: %w", oldName, err)
	}
	return nil
}

// DropCollection removes a collection and all records within it.
// Dropping a collection that does not exist is a no-op.
func (s *Store) DropCollection(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	dropSQL := fmt.Sprintf("DROP TABLE IF EXISTS %s", collectionTable(name))
	if _, err := s.db.ExecContext(ctx, dropSQL); err != nil {
		return fmt.Errorf("drop collection %q: %w", name, err)
	}
	return nil
}

func (s *Store) collectionHandle(name string) *Collection {
	return &Collection{store: s, name: name, table: collectionTable(name)}
}

// relationExists checks sqlite_master for a relation of the given kind
// ("table" or "view") with the exact physical name.
func (s *Store) relationExists(ctx context.Context, kind, relation string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = ? AND name = ?",
		kind, relation,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query sqlite_master: %w", err)
	}
	return n > 0, nil
}

// listRelations returns logical names of relations of the given kind
// carrying the prefix. Prefix matching happens in Go because "_" is a
// LIKE wildcard.
func (s *Store) listRelations(ctx context.Context, kind, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = ?", kind)
	if err != nil {
		return nil, fmt.Errorf("query sqlite_master: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan relation name: %w", err)
		}
		if strings.HasPrefix(name, prefix) {
			names = append(names, strings.TrimPrefix(name, prefix))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate relations: %w", err)
	}

	sort.Strings(names)
	return names, nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/franz/travel-sos/internal/live"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver
)

const (
	currentSchemaVersion = 2
)

// Store is the single long-lived handle to the reference database.
// All reads and writes serialize through its one connection.
type Store struct {
	db      *sql.DB
	path    string
	changes *live.Notifier
	logger  *zap.Logger
}

// OpenOptions holds options for opening a database
type OpenOptions struct {
	Logger *zap.Logger
}

// Open opens or creates a SQLite database at the given path with default options
func Open(path string) (*Store, error) {
	return OpenWithOptions(path, nil)
}

// OpenWithOptions opens or creates a SQLite database with custom options
func OpenWithOptions(path string, opts *OpenOptions) (*Store, error) {
	if opts == nil {
		opts = &OpenOptions{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// Pragmas are applied per connection by the driver
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // one handle, serialized internally
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &Store{
		db:      db,
		path:    path,
		changes: live.NewNotifier(),
		logger:  logger.Named("store"),
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for custom queries
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// Changed returns a channel closed by the next committed write.
func (s *Store) Changed() <-chan struct{} {
	return s.changes.Changed()
}

// notify signals live readers after a committed write
func (s *Store) notify() {
	s.changes.Notify()
}

// SQLiteVersion returns the SQLite version string
func SQLiteVersion() string {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return ""
	}
	defer db.Close()

	var version string
	err = db.QueryRow("SELECT sqlite_version()").Scan(&version)
	if err != nil {
		return ""
	}
	return version
}

// CheckIntegrity runs PRAGMA integrity_check and the FTS5 index consistency check
func (s *Store) CheckIntegrity(ctx context.Context) error {
	var result string
	err := s.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result)
	if err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}

	rows, err := s.db.QueryContext(ctx, "PRAGMA foreign_key_check")
	if err != nil {
		return fmt.Errorf("foreign key check query failed: %w", err)
	}
	violations := 0
	for rows.Next() {
		violations++
	}
	iterErr := rows.Err()
	rows.Close()
	if iterErr != nil {
		return fmt.Errorf("foreign key check failed: %w", iterErr)
	}
	if violations > 0 {
		return fmt.Errorf("foreign key check failed: %d orphaned rows", violations)
	}

	if _, err := s.db.ExecContext(ctx, `INSERT INTO country_names_fts(country_names_fts) VALUES ('integrity-check')`); err != nil {
		return fmt.Errorf("search index check failed: %w", err)
	}

	return nil
}

// RebuildSearchIndex regenerates the full-text projection from country_names
func (s *Store) RebuildSearchIndex(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `INSERT INTO country_names_fts(country_names_fts) VALUES ('rebuild')`); err != nil {
		return fmt.Errorf("failed to rebuild search index: %w", err)
	}
	s.notify()
	return nil
}

// PollExternalChanges watches PRAGMA data_version and signals live readers
// when another process commits to the database file. Blocks until ctx is done.
func (s *Store) PollExternalChanges(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}

	var last int64 = -1
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		var v int64
		if err := s.db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("data_version check failed", zap.Error(err))
		} else {
			if last >= 0 && v != last {
				s.logger.Debug("external change detected", zap.Int64("data_version", v))
				s.notify()
			}
			last = v
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// migrate applies database migrations
func (s *Store) migrate() error {
	version, err := s.getSchemaVersion()
	if err != nil {
		return err
	}

	if version >= currentSchemaVersion {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if version < 1 {
		if _, err := tx.Exec(schemaV1); err != nil {
			return fmt.Errorf("failed to apply schema v1: %w", err)
		}
		if err := s.setSchemaVersion(tx, 1); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}
	}

	if version < 2 {
		if _, err := tx.Exec(schemaV2); err != nil {
			return fmt.Errorf("failed to apply schema v2: %w", err)
		}
		if err := s.setSchemaVersion(tx, 2); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	s.logger.Debug("schema migrated", zap.Int("from", version), zap.Int("to", currentSchemaVersion))
	return nil
}

// getSchemaVersion returns the current schema version
func (s *Store) getSchemaVersion() (int, error) {
	var exists int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&exists)
	if err != nil {
		return 0, err
	}

	if exists == 0 {
		return 0, nil
	}

	var version int
	err = s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return 0, err
	}

	return version, nil
}

// setSchemaVersion records a schema version in a transaction
func (s *Store) setSchemaVersion(tx *sql.Tx, version int) error {
	_, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

// Transaction executes fn within a transaction and signals live readers
// once it commits. Nothing is signalled when fn fails.
func (s *Store) Transaction(ctx context.Context, fn func(*Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Tx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.notify()
	return nil
}

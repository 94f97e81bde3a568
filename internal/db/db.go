// Package db provides database connection management and the clipboard content store.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// FileName is the name of the database file inside the data directory.
const FileName = "memoria.db"

// DB wraps the sql.DB with memoria-specific configuration.
type DB struct {
	*sql.DB
	Path string
}

// Open opens the SQLite database in dataDir and applies pending migrations.
// The database is opened with:
// - WAL mode
// - Foreign key constraints enabled (image rows cascade with their item)
// - A single connection, since all access is serialized anyway
// - FTS5 verified
func Open(ctx context.Context, dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, FileName)
	dsn := "file:" + dbPath +
		"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	var fts5Enabled bool
	if err := sqlDB.QueryRowContext(ctx, "SELECT COUNT(*) > 0 FROM pragma_compile_options WHERE compile_options = 'ENABLE_FTS5'").Scan(&fts5Enabled); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to verify FTS5: %w", err)
	}
	if !fts5Enabled {
		sqlDB.Close()
		return nil, fmt.Errorf("FTS5 is not enabled in this SQLite build")
	}

	if err := Migrate(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &DB{DB: sqlDB, Path: dbPath}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}

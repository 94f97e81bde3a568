package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/kimhsiao/memoria/internal/logging"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// goose keeps its configuration in package globals.
var gooseMu sync.Mutex

// gooseLogger routes goose output into the structured log at debug level.
type gooseLogger struct{}

func (gooseLogger) Fatalf(format string, v ...interface{}) {
	logging.Error("migration failure", fmt.Errorf(format, v...))
}

func (gooseLogger) Printf(format string, v ...interface{}) {
	logging.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Migrate applies every embedded migration that has not been applied yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(gooseLogger{})
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// CurrentVersion returns the current schema version.
func CurrentVersion(db *sql.DB) (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := goose.SetDialect("sqlite3"); err != nil {
		return 0, fmt.Errorf("failed to set migration dialect: %w", err)
	}
	return goose.GetDBVersion(db)
}

// Package sqlite stores regeneration history in a local SQLite file using
// the pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bryanwahyu/texture-automaton/internal/infra/db/sqlstore"
)

// Connect opens (and creates) the database at path. ":memory:" gives a
// private in-memory database.
func Connect(ctx context.Context, path string) (*sql.DB, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create dir: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	// One writer; also keeps a :memory: database on a single connection.
	db.SetMaxOpenConns(1)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping database: %w", err)
	}
	return db, nil
}

// NewPassRepository migrates the schema and returns the history repository.
func NewPassRepository(ctx context.Context, db *sql.DB) (*sqlstore.PassRepository, error) {
	repo := sqlstore.NewPassRepository(db, sqlstore.SQLite)
	if err := repo.Migrate(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

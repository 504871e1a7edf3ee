package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"

	"github.com/bryanwahyu/texture-automaton/internal/infra/db/sqlstore"
)

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// NewPassRepository migrates the schema and returns the history repository.
func NewPassRepository(ctx context.Context, db *sql.DB) (*sqlstore.PassRepository, error) {
	repo := sqlstore.NewPassRepository(db, sqlstore.Postgres)
	if err := repo.Migrate(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"liveness-intake/internal/db"
)

// OpenSubmissionIndex connects to the submissions database, brings its schema
// up to date and returns the index. ctx bounds the connectivity check only;
// migrations run to completion.
func OpenSubmissionIndex(ctx context.Context, databaseURL string) (*SubmissionIndex, error) {
	pool, err := openPool(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return prepareIndex(pool, db.RunMigrations)
}

func openPool(ctx context.Context, databaseURL string) (*sql.DB, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is empty")
	}
	u, err := url.Parse(databaseURL)
	if err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
		return nil, errors.New("DATABASE_URL must be a postgres:// connection string")
	}

	pool, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	// One insert per submission plus the occasional listing.
	pool.SetMaxOpenConns(10)
	pool.SetMaxIdleConns(10)
	pool.SetConnMaxLifetime(30 * time.Minute)

	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping submissions db: %w", err)
	}
	return pool, nil
}

func prepareIndex(pool *sql.DB, migrate func(*sql.DB) error) (*SubmissionIndex, error) {
	if err := migrate(pool); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("migrate submissions schema: %w", err)
	}
	return NewSubmissionIndex(pool), nil
}

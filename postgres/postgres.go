// Package postgres implements gasrag.VectorDatabase on a Postgres database
// with the pgvector extension. Searches call the same SQL procedures that
// the PostgREST client invokes remotely.
package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"github.com/solracnyc/gasrag"
)

//go:embed schema.sql
var schema string

// DB wraps a pgx connection pool.
type DB struct {
	pool *pgxpool.Pool

	// DSN is the connection string.
	DSN string
}

// NewDB returns a new DB for dsn. Call Open before use.
func NewDB(dsn string) *DB {
	return &DB{DSN: dsn}
}

// Open connects the pool and registers the vector types on every
// connection.
func (db *DB) Open(ctx context.Context) error {
	if db.DSN == "" {
		return gasrag.Errorf(gasrag.EINVALID, "database URL required")
	}
	cfg, err := pgxpool.ParseConfig(db.DSN)
	if err != nil {
		return gasrag.Errorf(gasrag.EINVALID, "parse database URL: %v", err)
	}
	// The vector type must exist before its codec can be registered.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if _, err := conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
			return fmt.Errorf("create vector extension: %w", err)
		}
		return pgxvec.RegisterTypes(ctx, conn)
	}

	if db.pool, err = pgxpool.NewWithConfig(ctx, cfg); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if err := db.pool.Ping(ctx); err != nil {
		db.pool.Close()
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Migrate creates the extension, table, indexes and procedures.
// It is safe to run repeatedly.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Close closes the pool.
func (db *DB) Close() error {
	if db.pool != nil {
		db.pool.Close()
	}
	return nil
}

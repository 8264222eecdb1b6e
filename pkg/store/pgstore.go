// Copyright 2025 Certen Protocol
//
// Postgres-backed Content Store. Connection pooling adapted from
// pkg/database.Client; schema narrowed to the single content-addressed
// table the store interface needs (cid text primary key, bytes payload).

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/certen/vms/pkg/codec"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/ipfs/go-cid"
)

// PostgresConfig configures connection pooling for PostgresBackend,
// mirroring pkg/database.Client's pool tuning fields.
type PostgresConfig struct {
	DatabaseURL     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

// PostgresBackend stores objects in a Postgres table keyed by CID string.
type PostgresBackend struct {
	db *sql.DB
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS vms_objects (
	cid  TEXT PRIMARY KEY,
	data BYTEA NOT NULL
)`

// NewPostgresBackend opens a pooled connection and ensures the backing
// table exists.
func NewPostgresBackend(ctx context.Context, cfg PostgresConfig) (*PostgresBackend, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("postgres backend: database URL must not be empty")
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres backend: open: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres backend: ping: %w", err)
	}

	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres backend: migrate: %w", err)
	}

	return &PostgresBackend{db: db}, nil
}

func (p *PostgresBackend) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	c, err := codec.DeriveCID(data)
	if err != nil {
		return cid.Undef, err
	}
	// ON CONFLICT DO NOTHING makes concurrent puts of identical bytes
	// converge on the single row keyed by cid, satisfying the
	// idempotent-put guarantee without a read-modify-write race.
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO vms_objects (cid, data) VALUES ($1, $2) ON CONFLICT (cid) DO NOTHING`,
		c.String(), data)
	if err != nil {
		return cid.Undef, fmt.Errorf("postgres backend: put: %w", err)
	}
	return c, nil
}

func (p *PostgresBackend) Get(ctx context.Context, c cid.Cid) ([]byte, error) {
	var data []byte
	err := p.db.QueryRowContext(ctx, `SELECT data FROM vms_objects WHERE cid = $1`, c.String()).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres backend: get: %w", err)
	}
	return data, nil
}

func (p *PostgresBackend) Has(ctx context.Context, c cid.Cid) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM vms_objects WHERE cid = $1)`, c.String()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres backend: has: %w", err)
	}
	return exists, nil
}

func (p *PostgresBackend) Delete(ctx context.Context, c cid.Cid) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM vms_objects WHERE cid = $1`, c.String())
	if err != nil {
		return fmt.Errorf("postgres backend: delete: %w", err)
	}
	return nil
}

// Close closes the pooled connection.
func (p *PostgresBackend) Close() error {
	return p.db.Close()
}

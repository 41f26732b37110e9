// Package db persists the healer's observations (alerts raised,
// remediations spawned, batch health snapshots) in Postgres.
//
// Persistence is optional: the control loop runs fine without a DSN
// and every caller treats a nil *DB as "recording disabled".
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB wraps the Postgres connection pool.
type DB struct {
	conn *sql.DB
}

// Open connects to the database at the given DSN.
func Open(ctx context.Context, dsn string) (*DB, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(4)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the connection pool.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Conn returns the underlying *sql.DB for advanced queries.
func (d *DB) Conn() *sql.DB {
	return d.conn
}

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
    version    INTEGER PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS alerts (
    id          BIGSERIAL PRIMARY KEY,
    detector    TEXT NOT NULL,
    severity    TEXT NOT NULL,
    message     TEXT NOT NULL,
    context     JSONB,
    detected_at TIMESTAMPTZ NOT NULL,
    recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_alerts_detector ON alerts(detector, detected_at DESC);

CREATE TABLE IF NOT EXISTS remediations (
    id         BIGSERIAL PRIMARY KEY,
    task_id    TEXT NOT NULL,
    run_name   TEXT NOT NULL,
    category   TEXT NOT NULL,
    summary    TEXT NOT NULL,
    started_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_remediations_task ON remediations(task_id, started_at DESC);

CREATE TABLE IF NOT EXISTS health_snapshots (
    id        BIGSERIAL PRIMARY KEY,
    status    TEXT NOT NULL,
    total     INTEGER NOT NULL,
    completed INTEGER NOT NULL,
    running   INTEGER NOT NULL,
    stuck     INTEGER NOT NULL,
    failed    INTEGER NOT NULL,
    pending   INTEGER NOT NULL,
    progress  DOUBLE PRECISION NOT NULL,
    taken_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_snapshots_taken ON health_snapshots(taken_at DESC);
`

// Migrate applies the database schema.
func (d *DB) Migrate(ctx context.Context) error {
	var count int
	err := d.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM schema_version WHERE version = 1").Scan(&count)
	if err == nil && count > 0 {
		return nil
	}

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("apply schema v1: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_version (version) VALUES (1) ON CONFLICT (version) DO NOTHING"); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

// Reset drops all tables and re-applies the schema.
func (d *DB) Reset(ctx context.Context) error {
	tables := []string{"health_snapshots", "remediations", "alerts", "schema_version"}
	for _, t := range tables {
		if _, err := d.conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+t); err != nil {
			return fmt.Errorf("drop table %s: %w", t, err)
		}
	}
	return d.Migrate(ctx)
}

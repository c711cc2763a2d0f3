// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

// Package store is the DuckDB-backed analytics store. It owns the raw event
// log, the per-user history index, lifetime product counters, and the daily
// and breakdown rollup tables the aggregator maintains.
//
// All access goes through a circuit breaker so a wedged database degrades
// queries to UNAVAILABLE instead of piling up goroutines.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/launchdeck/viewtrack/internal/config"
	"github.com/launchdeck/viewtrack/internal/logging"
	"github.com/launchdeck/viewtrack/internal/metrics"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrUnavailable is returned when the circuit breaker is open.
	ErrUnavailable = errors.New("store: unavailable")
)

// DB wraps the DuckDB connection and provides data access methods.
type DB struct {
	conn    *sql.DB
	cfg     config.DatabaseConfig
	breaker *gobreaker.CircuitBreaker[any]
}

// New opens (or creates) the DuckDB database and initializes the schema.
func New(cfg config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 2 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}

	// Ensure the parent directory exists for file-backed databases.
	if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
		}
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// DuckDB is an in-process engine; a small pool avoids write contention.
	conn.SetMaxOpenConns(numThreads)
	conn.SetMaxIdleConns(2)

	db := &DB{
		conn: conn,
		cfg:  cfg,
		breaker: gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
			Name:    "duckdb",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			// Missing rows and caller-side cancellation are not store
			// failures; only real engine errors should trip the breaker.
			IsSuccessful: func(err error) bool {
				return err == nil ||
					errors.Is(err, sql.ErrNoRows) ||
					errors.Is(err, context.Canceled) ||
					errors.Is(err, context.DeadlineExceeded)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logging.Warn().
					Str("breaker", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("store circuit breaker state change")
			},
		}),
	}

	if err := db.createSchema(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	if cfg.SeedMockData {
		if err := db.seedMockData(); err != nil {
			logging.Warn().Err(err).Msg("seeding mock data")
		}
	}

	return db, nil
}

// Close checkpoints and closes the database.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := db.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
		logging.Warn().Err(err).Msg("checkpoint before close")
	}
	return db.conn.Close()
}

// Ping checks whether the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return db.conn.PingContext(ctx)
}

// readCtx bounds a read query with the configured read deadline.
func (db *DB) readCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, db.cfg.ReadTimeout)
}

// writeCtx bounds a write with the configured write deadline.
func (db *DB) writeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, db.cfg.WriteTimeout)
}

// exec runs a write statement through the circuit breaker.
func (db *DB) exec(ctx context.Context, op, table, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := db.breaker.Execute(func() (any, error) {
		return db.conn.ExecContext(ctx, query, args...)
	})
	metrics.RecordStoreQuery(op, table, time.Since(start))
	if err != nil {
		metrics.RecordStoreError(op, table)
		return nil, mapBreakerErr(err)
	}
	return res.(sql.Result), nil
}

// query runs a read query through the circuit breaker. Callers own the
// returned rows and the context deadline covering the scan.
func (db *DB) query(ctx context.Context, op, table, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	res, err := db.breaker.Execute(func() (any, error) {
		return db.conn.QueryContext(ctx, query, args...)
	})
	metrics.RecordStoreQuery(op, table, time.Since(start))
	if err != nil {
		metrics.RecordStoreError(op, table)
		return nil, mapBreakerErr(err)
	}
	return res.(*sql.Rows), nil
}

// queryRow runs a single-row read through the circuit breaker and scans it
// into dest. sql.ErrNoRows maps to ErrNotFound.
func (db *DB) queryRow(ctx context.Context, op, table, query string, args []any, dest ...any) error {
	start := time.Now()
	_, err := db.breaker.Execute(func() (any, error) {
		return nil, db.conn.QueryRowContext(ctx, query, args...).Scan(dest...)
	})
	metrics.RecordStoreQuery(op, table, time.Since(start))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		metrics.RecordStoreError(op, table)
		return mapBreakerErr(err)
	}
	return nil
}

// withTx runs fn inside a single transaction through the circuit breaker.
// fn's error rolls the transaction back and is returned unmapped, so callers
// can translate sql.ErrNoRows themselves.
func (db *DB) withTx(ctx context.Context, op, table string, fn func(tx *sql.Tx) error) error {
	start := time.Now()
	_, err := db.breaker.Execute(func() (any, error) {
		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		return nil, tx.Commit()
	})
	metrics.RecordStoreQuery(op, table, time.Since(start))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			metrics.RecordStoreError(op, table)
		}
		return mapBreakerErr(err)
	}
	return nil
}

// mapBreakerErr translates breaker-open states into ErrUnavailable.
func mapBreakerErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s", ErrUnavailable, err)
	}
	return err
}

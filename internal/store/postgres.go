// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package store provides the PostgreSQL connection pool and schema
// migrations for credauth.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// ConnectOptions bounds how long Connect waits for the database.
type ConnectOptions struct {
	MaxConns     int32
	MaxRetries   uint64
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultConnectOptions waits roughly half a minute for a starting database.
func DefaultConnectOptions() ConnectOptions {
	return ConnectOptions{
		MaxConns:     10,
		MaxRetries:   6,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     8 * time.Second,
	}
}

// pinger is the part of pgxpool.Pool Connect needs after construction.
type pinger interface {
	Ping(ctx context.Context) error
}

// Connect opens a pgx pool and pings it, retrying with exponential backoff
// until the database answers or the retry budget is spent.
func Connect(ctx context.Context, dsn string, opts ConnectOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	if err := waitReady(ctx, pool, opts); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func waitReady(ctx context.Context, db pinger, opts ConnectOptions) error {
	backoff := retry.NewExponential(opts.InitialDelay)
	backoff = retry.WithCappedDuration(opts.MaxDelay, backoff)
	backoff = retry.WithMaxRetries(opts.MaxRetries, backoff)

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := db.Ping(ctx); err != nil {
			slog.WarnContext(ctx, "database not ready", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			With("attempts", attempt).
			Wrap(err)
	}
	return nil
}

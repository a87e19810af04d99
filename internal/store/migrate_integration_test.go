//go:build integration

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/holomush/credauth/internal/store"
)

func TestMigrator_FullCycle(t *testing.T) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	require.NoError(t, err)
	defer pgContainer.Terminate(ctx)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := store.Connect(ctx, connStr, store.DefaultConnectOptions())
	require.NoError(t, err)
	defer pool.Close()

	migrator, err := store.NewMigrator(connStr)
	require.NoError(t, err)
	defer migrator.Close()

	st, err := migrator.Status()
	require.NoError(t, err)
	assert.Equal(t, uint(0), st.Version)
	assert.Equal(t, []uint{1, 2}, st.Pending)

	require.NoError(t, migrator.Up())

	st, err = migrator.Status()
	require.NoError(t, err)
	assert.Equal(t, uint(2), st.Version)
	assert.False(t, st.Dirty)
	assert.Empty(t, st.Pending)

	var exists bool
	err = pool.QueryRow(ctx, `SELECT EXISTS (SELECT FROM pg_indexes WHERE indexname = 'accounts_reset_token_hash_key')`).Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists)

	// Normalization is enforced by the schema.
	_, err = pool.Exec(ctx, `INSERT INTO accounts (id, email, created_at, updated_at) VALUES ('x', 'Mixed@Case.com', now(), now())`)
	require.Error(t, err)

	require.NoError(t, migrator.Steps(-1))
	version, _, err := migrator.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	require.NoError(t, migrator.Up())
	require.NoError(t, migrator.Down())

	version, _, err = migrator.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)

	// Up again after a full rollback.
	require.NoError(t, migrator.Up())
}

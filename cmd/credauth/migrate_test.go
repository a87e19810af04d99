// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/credauth/internal/store"
	"github.com/holomush/credauth/pkg/errutil"
)

type fakeMigrator struct {
	calls   []string
	steps   int
	forced  int
	status  store.Status
	failOn  string
	closed  bool
	openDSN string
}

func (f *fakeMigrator) record(call string) error {
	f.calls = append(f.calls, call)
	if call == f.failOn {
		return oops.Code("MIGRATION_FAILED").Errorf("%s failed", call)
	}
	return nil
}

func (f *fakeMigrator) Up() error   { return f.record("up") }
func (f *fakeMigrator) Down() error { return f.record("down") }
func (f *fakeMigrator) Steps(n int) error {
	f.steps = n
	return f.record("steps")
}

func (f *fakeMigrator) Force(v int) error {
	f.forced = v
	return f.record("force")
}

func (f *fakeMigrator) Status() (store.Status, error) {
	return f.status, f.record("status")
}

func (f *fakeMigrator) Close() error {
	f.closed = true
	return nil
}

func runMigrate(t *testing.T, fake *fakeMigrator, args ...string) (string, error) {
	t.Helper()
	resetGlobals(t)
	cmd := newMigrateCmd(func(dsn string) (Migrator, error) {
		fake.openDSN = dsn
		return fake, nil
	})
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMigrate_Up(t *testing.T) {
	fake := &fakeMigrator{status: store.Status{Version: 2, Applied: []uint{1, 2}}}
	out, err := runMigrate(t, fake, "up", "--database-url", "postgres://db/credauth")
	require.NoError(t, err)

	assert.Equal(t, []string{"up", "status"}, fake.calls)
	assert.Equal(t, "postgres://db/credauth", fake.openDSN)
	assert.True(t, fake.closed)
	assert.Contains(t, out, "Current version: 2")
	assert.Contains(t, out, "applied  000001_create_accounts")
	assert.Contains(t, out, "applied  000002_reset_token_index")
}

func TestMigrate_Down(t *testing.T) {
	t.Run("all", func(t *testing.T) {
		fake := &fakeMigrator{}
		_, err := runMigrate(t, fake, "down", "--database-url", "postgres://db/x")
		require.NoError(t, err)
		assert.Equal(t, []string{"down", "status"}, fake.calls)
	})

	t.Run("steps", func(t *testing.T) {
		fake := &fakeMigrator{}
		_, err := runMigrate(t, fake, "down", "--steps", "1", "--database-url", "postgres://db/x")
		require.NoError(t, err)
		assert.Equal(t, -1, fake.steps)
	})
}

func TestMigrate_StatusShowsDirtyAndPending(t *testing.T) {
	fake := &fakeMigrator{status: store.Status{Version: 1, Dirty: true, Applied: []uint{1}, Pending: []uint{2}}}
	t.Setenv("CREDAUTH_STORE__DSN", "postgres://env/credauth")
	out, err := runMigrate(t, fake, "status")
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/credauth", fake.openDSN)
	assert.Contains(t, out, "Current version: 1 (dirty)")
	assert.Contains(t, out, "pending  000002_reset_token_index")
}

func TestMigrate_Force(t *testing.T) {
	fake := &fakeMigrator{}
	out, err := runMigrate(t, fake, "force", "1", "--database-url", "postgres://db/x")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.forced)
	assert.Contains(t, out, "Forced version 1")

	_, err = runMigrate(t, &fakeMigrator{}, "force", "one", "--database-url", "postgres://db/x")
	errutil.AssertErrorCode(t, err, "INVALID_VERSION")
}

func TestMigrate_Errors(t *testing.T) {
	t.Run("no database url", func(t *testing.T) {
		t.Setenv("CREDAUTH_STORE__DSN", "")
		_, err := runMigrate(t, &fakeMigrator{}, "up")
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	})

	t.Run("migration failure still closes", func(t *testing.T) {
		fake := &fakeMigrator{failOn: "up"}
		_, err := runMigrate(t, fake, "up", "--database-url", "postgres://db/x")
		errutil.AssertErrorCode(t, err, "MIGRATION_FAILED")
		assert.True(t, fake.closed)
	})

	t.Run("factory failure", func(t *testing.T) {
		resetGlobals(t)
		boom := errors.New("no driver")
		cmd := newMigrateCmd(func(string) (Migrator, error) { return nil, boom })
		cmd.SetOut(new(bytes.Buffer))
		cmd.SetErr(new(bytes.Buffer))
		cmd.SetArgs([]string{"status", "--database-url", "postgres://db/x"})
		assert.ErrorIs(t, cmd.Execute(), boom)
	})
}

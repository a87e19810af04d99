// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/credauth/internal/auth"
)

func TestStore_ReturnsCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	at := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	account, _, err := s.UpsertUnverified(ctx, auth.UnverifiedSignup{
		ID: ulid.Make(), Email: "Alice@Example.com", PasswordHash: "pw", VerificationCodeHash: "code",
		VerificationCodeExpiresAt: at.Add(time.Minute), At: at,
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", account.Email)

	*account.PasswordHash = "tampered"
	account.IsVerified = true

	stored, err := s.FindByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "pw", *stored.PasswordHash)
	assert.False(t, stored.IsVerified)
}

func TestStore_ResetTokenIndex(t *testing.T) {
	s := New()
	ctx := context.Background()
	at := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	account := &auth.Account{ID: ulid.Make(), Email: "bob@example.com", IsVerified: true, CreatedAt: at, UpdatedAt: at}
	require.NoError(t, s.Create(ctx, account))

	require.NoError(t, s.SetResetToken(ctx, account.ID, "first", at.Add(time.Hour)))
	require.NoError(t, s.SetResetToken(ctx, account.ID, "second", at.Add(time.Hour)))

	_, err := s.FindByResetToken(ctx, "first")
	assert.ErrorIs(t, err, auth.ErrNotFound, "replaced token is no longer indexed")

	assert.ErrorIs(t, s.ConsumeResetToken(ctx, "second", "new", at.Add(2*time.Hour)), auth.ErrStale)
	require.NoError(t, s.ConsumeResetToken(ctx, "second", "new", at))
	assert.ErrorIs(t, s.ConsumeResetToken(ctx, "second", "new", at), auth.ErrStale)
}

func TestStore_Delete(t *testing.T) {
	s := New()
	ctx := context.Background()
	account := &auth.Account{ID: ulid.Make(), Email: "carol@example.com"}
	require.NoError(t, s.Create(ctx, account))
	require.NoError(t, s.SetResetToken(ctx, account.ID, "tok", time.Now().Add(time.Hour)))

	deleted, err := s.Delete(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, 0, s.Len())

	_, err = s.FindByResetToken(ctx, "tok")
	assert.ErrorIs(t, err, auth.ErrNotFound)
	_, err = s.FindByEmail(ctx, "carol@example.com")
	assert.ErrorIs(t, err, auth.ErrNotFound)

	deleted, err = s.Delete(ctx, account.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestStore_CanceledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.FindByEmail(ctx, "alice@example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, auth.ErrNotFound)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/credauth/internal/auth"
	"github.com/holomush/credauth/pkg/errutil"
)

func ptr[T any](v T) *T { return &v }

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantMsg string
	}{
		{"valid", "alice@example.com", ""},
		{"empty", "", "Email is required."},
		{"no at sign", "alice.example.com", "Invalid email format."},
		{"display name", "Alice <alice@example.com>", "Invalid email format."},
		{"too long", strings.Repeat("a", 250) + "@example.com", "Email address is too long."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.ValidateEmail(tt.email)
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, auth.CodeValidation)
			errutil.AssertPublicMessage(t, err, tt.wantMsg)
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "alice@example.com", auth.NormalizeEmail("  Alice@Example.COM\t"))
}

func TestAccount_Expiry(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	a := &auth.Account{}
	assert.True(t, a.VerificationCodeExpired(now), "missing expiry counts as expired")
	assert.True(t, a.ResetTokenExpired(now))

	a.VerificationCodeExpiresAt = ptr(now)
	a.ResetTokenExpiresAt = ptr(now.Add(time.Minute))
	assert.False(t, a.VerificationCodeExpired(now), "expiry instant is still valid")
	assert.True(t, a.VerificationCodeExpired(now.Add(time.Nanosecond)))
	assert.False(t, a.ResetTokenExpired(now))
}

func TestAccount_ViewHidesSecrets(t *testing.T) {
	a := &auth.Account{
		ID:                   ulid.Make(),
		Email:                "alice@example.com",
		PasswordHash:         ptr("$argon2id$secret"),
		VerificationCodeHash: ptr("$argon2id$code"),
		ResetTokenHash:       ptr("deadbeef"),
		DisplayName:          ptr("Alice"),
	}
	assert.True(t, a.HasPassword())

	raw, err := json.Marshal(a.View())
	require.NoError(t, err)
	body := string(raw)
	assert.Contains(t, body, `"email":"alice@example.com"`)
	assert.Contains(t, body, `"name":"Alice"`)
	assert.NotContains(t, body, "argon2id")
	assert.NotContains(t, body, "deadbeef")
	assert.NotContains(t, body, "picture")
}

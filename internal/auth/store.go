// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// UnverifiedSignup carries the fields written by a password signup.
type UnverifiedSignup struct {
	ID                        ulid.ULID // used only when a new row is inserted
	Email                     string
	PasswordHash              string
	VerificationCodeHash      string
	VerificationCodeExpiresAt time.Time
	At                        time.Time
}

// AccountStore persists accounts. Every method must be safe for concurrent use.
//
// Conditional transitions (UpsertUnverified, MarkVerified, ConsumeResetToken)
// must be atomic at the store level; Lifecycle never does check-then-write
// for them.
type AccountStore interface {
	// FindByEmail returns the account for a normalized email, or ErrNotFound.
	FindByEmail(ctx context.Context, email string) (*Account, error)

	// FindByID returns the account with the given id, or ErrNotFound.
	FindByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// FindByResetToken returns the account holding the reset token hash, or ErrNotFound.
	FindByResetToken(ctx context.Context, tokenHash string) (*Account, error)

	// UpsertUnverified inserts a new unverified account or, when an unverified
	// account already owns the email, replaces its verification code and
	// expiry in place. The existing password hash is kept. Returns
	// ErrAlreadyVerified if a verified account owns the email. created is
	// true when a row was inserted.
	UpsertUnverified(ctx context.Context, signup UnverifiedSignup) (account *Account, created bool, err error)

	// Create inserts a fully-formed account. Returns ErrDuplicate when the
	// email is taken.
	Create(ctx context.Context, account *Account) error

	// MarkVerified sets the account verified and clears its code fields, but
	// only while codeHash is still the stored code and the account is
	// unverified. Returns ErrStale otherwise.
	MarkVerified(ctx context.Context, id ulid.ULID, codeHash string, at time.Time) error

	// SetResetToken stores a reset token hash and expiry, replacing any
	// prior token. Returns ErrNotFound if the account is gone.
	SetResetToken(ctx context.Context, id ulid.ULID, tokenHash string, expiresAt time.Time) error

	// ConsumeResetToken replaces the password hash and clears the reset
	// token, but only while tokenHash is stored and unexpired at the given
	// instant. Returns ErrStale otherwise.
	ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, at time.Time) error

	// UpdatePasswordHash rewrites the password hash. Returns ErrNotFound if
	// the account is gone.
	UpdatePasswordHash(ctx context.Context, id ulid.ULID, passwordHash string) error

	// Delete removes the account. Returns false when no row matched.
	Delete(ctx context.Context, id ulid.ULID) (bool, error)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package memstore is an in-process auth.AccountStore for development and
// tests. All state is lost on restart.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/credauth/internal/auth"
)

// Store keeps accounts in maps guarded by a single mutex, which makes every
// conditional transition atomic.
type Store struct {
	mu      sync.Mutex
	byID    map[ulid.ULID]*auth.Account
	byEmail map[string]ulid.ULID
	byReset map[string]ulid.ULID
}

var _ auth.AccountStore = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{
		byID:    make(map[ulid.ULID]*auth.Account),
		byEmail: make(map[string]ulid.ULID),
		byReset: make(map[string]ulid.ULID),
	}
}

// Len returns the number of stored accounts.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// FindByEmail returns a copy of the account owning email.
func (s *Store) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_EMAIL_FAILED").Wrap(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[auth.NormalizeEmail(email)]
	if !ok {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	return clone(s.byID[id]), nil
}

// FindByID returns a copy of the account with id.
func (s *Store) FindByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_ID_FAILED").Wrap(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return clone(a), nil
}

// FindByResetToken returns a copy of the account holding tokenHash.
func (s *Store) FindByResetToken(ctx context.Context, tokenHash string) (*auth.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_RESET_TOKEN_FAILED").Wrap(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byReset[tokenHash]
	if !ok {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return clone(s.byID[id]), nil
}

// UpsertUnverified inserts or resumes an unverified signup.
func (s *Store) UpsertUnverified(ctx context.Context, signup auth.UnverifiedSignup) (*auth.Account, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, oops.Code("ACCOUNT_UPSERT_FAILED").Wrap(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	email := auth.NormalizeEmail(signup.Email)
	codeHash := signup.VerificationCodeHash
	expiresAt := signup.VerificationCodeExpiresAt

	if id, ok := s.byEmail[email]; ok {
		a := s.byID[id]
		if a.IsVerified {
			return nil, false, oops.Code("ACCOUNT_ALREADY_VERIFIED").With("email", email).Wrap(auth.ErrAlreadyVerified)
		}
		a.VerificationCodeHash = &codeHash
		a.VerificationCodeExpiresAt = &expiresAt
		a.UpdatedAt = signup.At
		return clone(a), false, nil
	}

	passwordHash := signup.PasswordHash
	a := &auth.Account{
		ID:                        signup.ID,
		Email:                     email,
		PasswordHash:              &passwordHash,
		VerificationCodeHash:      &codeHash,
		VerificationCodeExpiresAt: &expiresAt,
		CreatedAt:                 signup.At,
		UpdatedAt:                 signup.At,
	}
	s.byID[a.ID] = a
	s.byEmail[email] = a.ID
	return clone(a), true, nil
}

// Create inserts account.
func (s *Store) Create(ctx context.Context, account *auth.Account) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("ACCOUNT_CREATE_FAILED").Wrap(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	email := auth.NormalizeEmail(account.Email)
	if _, ok := s.byEmail[email]; ok {
		return oops.Code("ACCOUNT_DUPLICATE").With("email", email).Wrap(auth.ErrDuplicate)
	}
	if _, ok := s.byID[account.ID]; ok {
		return oops.Code("ACCOUNT_DUPLICATE").With("id", account.ID.String()).Wrap(auth.ErrDuplicate)
	}

	a := clone(account)
	a.Email = email
	s.byID[a.ID] = a
	s.byEmail[email] = a.ID
	if a.ResetTokenHash != nil {
		s.byReset[*a.ResetTokenHash] = a.ID
	}
	return nil
}

// MarkVerified verifies the account if codeHash is still current.
func (s *Store) MarkVerified(ctx context.Context, id ulid.ULID, codeHash string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("ACCOUNT_VERIFY_FAILED").Wrap(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok || a.IsVerified || a.VerificationCodeHash == nil || *a.VerificationCodeHash != codeHash {
		return oops.Code("ACCOUNT_VERIFY_STALE").With("id", id.String()).Wrap(auth.ErrStale)
	}
	a.IsVerified = true
	a.VerificationCodeHash = nil
	a.VerificationCodeExpiresAt = nil
	a.UpdatedAt = at
	return nil
}

// SetResetToken replaces the reset token of the account.
func (s *Store) SetResetToken(ctx context.Context, id ulid.ULID, tokenHash string, expiresAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("ACCOUNT_SET_RESET_TOKEN_FAILED").Wrap(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return oops.Code("ACCOUNT_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	if a.ResetTokenHash != nil {
		delete(s.byReset, *a.ResetTokenHash)
	}
	a.ResetTokenHash = &tokenHash
	a.ResetTokenExpiresAt = &expiresAt
	a.UpdatedAt = time.Now().UTC()
	s.byReset[tokenHash] = id
	return nil
}

// ConsumeResetToken swaps the password and retires the token if it is still
// stored and unexpired at the given instant.
func (s *Store) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("ACCOUNT_CONSUME_RESET_TOKEN_FAILED").Wrap(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byReset[tokenHash]
	if !ok {
		return oops.Code("RESET_TOKEN_STALE").Wrap(auth.ErrStale)
	}
	a := s.byID[id]
	if a.ResetTokenExpired(at) {
		return oops.Code("RESET_TOKEN_STALE").With("id", id.String()).Wrap(auth.ErrStale)
	}
	delete(s.byReset, tokenHash)
	a.PasswordHash = &passwordHash
	a.ResetTokenHash = nil
	a.ResetTokenExpiresAt = nil
	a.UpdatedAt = at
	return nil
}

// UpdatePasswordHash rewrites the password hash.
func (s *Store) UpdatePasswordHash(ctx context.Context, id ulid.ULID, passwordHash string) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("ACCOUNT_UPDATE_PASSWORD_FAILED").Wrap(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return oops.Code("ACCOUNT_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	a.PasswordHash = &passwordHash
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// Delete removes the account.
func (s *Store) Delete(ctx context.Context, id ulid.ULID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, oops.Code("ACCOUNT_DELETE_FAILED").Wrap(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return false, nil
	}
	delete(s.byID, id)
	delete(s.byEmail, a.Email)
	if a.ResetTokenHash != nil {
		delete(s.byReset, *a.ResetTokenHash)
	}
	return true, nil
}

// clone deep-copies an account so callers never alias stored state.
func clone(a *auth.Account) *auth.Account {
	c := *a
	c.PasswordHash = copyPtr(a.PasswordHash)
	c.VerificationCodeHash = copyPtr(a.VerificationCodeHash)
	c.VerificationCodeExpiresAt = copyPtr(a.VerificationCodeExpiresAt)
	c.ResetTokenHash = copyPtr(a.ResetTokenHash)
	c.ResetTokenExpiresAt = copyPtr(a.ResetTokenExpiresAt)
	c.DisplayName = copyPtr(a.DisplayName)
	c.Picture = copyPtr(a.Picture)
	c.PhoneNumber = copyPtr(a.PhoneNumber)
	return &c
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

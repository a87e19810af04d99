// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package postgres provides the PostgreSQL implementation of auth.AccountStore.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/credauth/internal/auth"
)

// DB is the subset of pgxpool.Pool used by AccountStore. pgxmock pools
// satisfy it in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AccountStore implements auth.AccountStore using PostgreSQL.
type AccountStore struct {
	db DB
}

var _ auth.AccountStore = (*AccountStore)(nil)

// NewAccountStore creates a new AccountStore.
func NewAccountStore(db DB) *AccountStore {
	return &AccountStore{db: db}
}

const accountColumns = `id, email, password_hash, is_verified,
	verification_code_hash, verification_code_expires_at,
	reset_token_hash, reset_token_expires_at,
	display_name, picture, phone_number,
	created_at, updated_at`

// FindByEmail retrieves an account by normalized email.
func (s *AccountStore) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	row := s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_EMAIL_FAILED").
			With("operation", "get account by email").
			With("email", email).
			Wrap(err)
	}
	return account, nil
}

// FindByID retrieves an account by id.
func (s *AccountStore) FindByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	row := s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id.String())

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_ID_FAILED").
			With("operation", "get account by id").
			With("id", id.String()).
			Wrap(err)
	}
	return account, nil
}

// FindByResetToken retrieves the account holding a reset token hash.
func (s *AccountStore) FindByResetToken(ctx context.Context, tokenHash string) (*auth.Account, error) {
	row := s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE reset_token_hash = $1`, tokenHash)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_RESET_TOKEN_FAILED").
			With("operation", "get account by reset token").
			Wrap(err)
	}
	return account, nil
}

// UpsertUnverified inserts an unverified account or refreshes the code of an
// existing unverified one in a single statement. The conflict update is
// skipped for verified rows, which then return no row at all.
func (s *AccountStore) UpsertUnverified(ctx context.Context, signup auth.UnverifiedSignup) (*auth.Account, bool, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO accounts (
			id, email, password_hash, is_verified,
			verification_code_hash, verification_code_expires_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, FALSE, $4, $5, $6, $6)
		ON CONFLICT (email) DO UPDATE SET
			verification_code_hash = EXCLUDED.verification_code_hash,
			verification_code_expires_at = EXCLUDED.verification_code_expires_at,
			updated_at = EXCLUDED.updated_at
		WHERE accounts.is_verified = FALSE
		RETURNING `+accountColumns+`, (xmax = 0) AS inserted
	`,
		signup.ID.String(),
		signup.Email,
		signup.PasswordHash,
		signup.VerificationCodeHash,
		signup.VerificationCodeExpiresAt,
		signup.At,
	)

	var inserted bool
	account, err := scanAccount(row, &inserted)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, oops.Code("ACCOUNT_ALREADY_VERIFIED").
			With("email", signup.Email).
			Wrap(auth.ErrAlreadyVerified)
	}
	if err != nil {
		return nil, false, oops.Code("ACCOUNT_UPSERT_FAILED").
			With("operation", "upsert unverified account").
			With("email", signup.Email).
			Wrap(err)
	}
	return account, inserted, nil
}

// Create inserts a fully-formed account.
func (s *AccountStore) Create(ctx context.Context, account *auth.Account) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		account.ID.String(),
		account.Email,
		account.PasswordHash,
		account.IsVerified,
		account.VerificationCodeHash,
		account.VerificationCodeExpiresAt,
		account.ResetTokenHash,
		account.ResetTokenExpiresAt,
		account.DisplayName,
		account.Picture,
		account.PhoneNumber,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return oops.Code("ACCOUNT_DUPLICATE").
			With("email", account.Email).
			Wrap(auth.ErrDuplicate)
	}
	if err != nil {
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("email", account.Email).
			Wrap(err)
	}
	return nil
}

// MarkVerified verifies the account if codeHash is still its current code.
func (s *AccountStore) MarkVerified(ctx context.Context, id ulid.ULID, codeHash string, at time.Time) error {
	result, err := s.db.Exec(ctx, `
		UPDATE accounts SET
			is_verified = TRUE,
			verification_code_hash = NULL,
			verification_code_expires_at = NULL,
			updated_at = $3
		WHERE id = $1
		  AND verification_code_hash = $2
		  AND is_verified = FALSE
	`, id.String(), codeHash, at)
	if err != nil {
		return oops.Code("ACCOUNT_VERIFY_FAILED").
			With("operation", "mark account verified").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_VERIFY_STALE").With("id", id.String()).Wrap(auth.ErrStale)
	}
	return nil
}

// SetResetToken stores a reset token hash, replacing any previous one.
func (s *AccountStore) SetResetToken(ctx context.Context, id ulid.ULID, tokenHash string, expiresAt time.Time) error {
	result, err := s.db.Exec(ctx, `
		UPDATE accounts SET
			reset_token_hash = $2,
			reset_token_expires_at = $3,
			updated_at = now()
		WHERE id = $1
	`, id.String(), tokenHash, expiresAt)
	if err != nil {
		return oops.Code("ACCOUNT_SET_RESET_TOKEN_FAILED").
			With("operation", "set reset token").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

// ConsumeResetToken swaps in a new password hash and retires the token while
// it is still stored and unexpired. Concurrent callers race on the row lock;
// only the first sees a matching row.
func (s *AccountStore) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, at time.Time) error {
	result, err := s.db.Exec(ctx, `
		UPDATE accounts SET
			password_hash = $2,
			reset_token_hash = NULL,
			reset_token_expires_at = NULL,
			updated_at = $3
		WHERE reset_token_hash = $1
		  AND reset_token_expires_at >= $3
	`, tokenHash, passwordHash, at)
	if err != nil {
		return oops.Code("ACCOUNT_CONSUME_RESET_TOKEN_FAILED").
			With("operation", "consume reset token").
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("RESET_TOKEN_STALE").Wrap(auth.ErrStale)
	}
	return nil
}

// UpdatePasswordHash rewrites the password hash.
func (s *AccountStore) UpdatePasswordHash(ctx context.Context, id ulid.ULID, passwordHash string) error {
	result, err := s.db.Exec(ctx, `
		UPDATE accounts SET password_hash = $2, updated_at = now()
		WHERE id = $1
	`, id.String(), passwordHash)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_PASSWORD_FAILED").
			With("operation", "update password hash").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

// Delete removes an account.
func (s *AccountStore) Delete(ctx context.Context, id ulid.ULID) (bool, error) {
	result, err := s.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id.String())
	if err != nil {
		return false, oops.Code("ACCOUNT_DELETE_FAILED").
			With("operation", "delete account").
			With("id", id.String()).
			Wrap(err)
	}
	return result.RowsAffected() > 0, nil
}

// scanAccount reads accountColumns from row, followed by any extra
// destinations.
func scanAccount(row pgx.Row, extra ...any) (*auth.Account, error) {
	var (
		a     auth.Account
		idStr string
	)

	dest := []any{
		&idStr,
		&a.Email,
		&a.PasswordHash,
		&a.IsVerified,
		&a.VerificationCodeHash,
		&a.VerificationCodeExpiresAt,
		&a.ResetTokenHash,
		&a.ResetTokenExpiresAt,
		&a.DisplayName,
		&a.Picture,
		&a.PhoneNumber,
		&a.CreatedAt,
		&a.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context-specific info
		}
		return nil, oops.Code("ACCOUNT_SCAN_FAILED").With("operation", "scan account").Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_ID").With("id", idStr).Wrap(err)
	}
	a.ID = id
	return &a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"

	"github.com/oklog/ulid/v2"
)

// dummyPasswordHash is compared when no usable hash exists so that unknown
// emails and federated-only accounts cost the same as a real comparison.
// It never matches any password.
//
//nolint:gosec // G101: intentionally fake hash for timing equalization, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// GoogleProfile is the identity asserted by Google after the boundary has
// verified the provider token.
type GoogleProfile struct {
	Email       string
	DisplayName string
	Picture     string
	PhoneNumber string
}

// Login authenticates with email and password. Unverified accounts may log
// in unless Config.RequireVerifiedLogin is set.
func (l *Lifecycle) Login(ctx context.Context, email, password string) (res *Authenticated, err error) {
	ctx, span := l.begin(ctx, OpLogin)
	defer func() { l.observe(span, OpLogin, err) }()

	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, validationError("All fields are required.")
	}

	account, err := l.store.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		l.burnCompare(password)
		return nil, errNoAccountForEmail()
	}
	if err != nil {
		return nil, l.internal(ctx, OpLogin, err)
	}

	if !account.HasPassword() {
		l.burnCompare(password)
		return nil, errInvalidCredentials(account)
	}

	ok, err := l.hasher.Compare(password, *account.PasswordHash)
	if err != nil {
		l.logger.WarnContext(ctx, "stored password hash is unusable",
			"account_id", account.ID.String(), "error", err)
		return nil, errInvalidCredentials(account)
	}
	if !ok {
		return nil, errInvalidCredentials(account)
	}

	if l.cfg.RequireVerifiedLogin && !account.IsVerified {
		return nil, authError(CodeUnverifiedAccount, "Please verify your email before logging in.").
			With("account_id", account.ID.String()).
			Errorf("account is not verified")
	}

	if l.hasher.NeedsUpgrade(*account.PasswordHash) {
		l.upgradePasswordHash(ctx, account, password)
	}

	return l.issue(ctx, OpLogin, account)
}

// LoginWithGoogle signs in the account owning an email asserted by Google.
// No password is checked.
func (l *Lifecycle) LoginWithGoogle(ctx context.Context, email string) (res *Authenticated, err error) {
	ctx, span := l.begin(ctx, OpLoginWithGoogle)
	defer func() { l.observe(span, OpLoginWithGoogle, err) }()

	email = NormalizeEmail(email)
	if email == "" {
		return nil, validationError("Email is required.")
	}

	account, err := l.store.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, authError(CodeAccountNotFound, "No account found. Try signing up.").
			Errorf("no account for federated email")
	}
	if err != nil {
		return nil, l.internal(ctx, OpLoginWithGoogle, err)
	}
	return l.issue(ctx, OpLoginWithGoogle, account)
}

// SignupWithGoogle creates a verified, password-less account for an email
// asserted by Google.
func (l *Lifecycle) SignupWithGoogle(ctx context.Context, profile GoogleProfile) (res *Authenticated, err error) {
	ctx, span := l.begin(ctx, OpSignupWithGoogle)
	defer func() { l.observe(span, OpSignupWithGoogle, err) }()

	email := NormalizeEmail(profile.Email)
	if email == "" {
		return nil, validationError("Email is required.")
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}

	now := l.now().UTC()
	account := &Account{
		ID:          ulid.Make(),
		Email:       email,
		IsVerified:  true,
		DisplayName: optional(profile.DisplayName),
		Picture:     optional(profile.Picture),
		PhoneNumber: optional(profile.PhoneNumber),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = l.store.Create(ctx, account)
	if errors.Is(err, ErrDuplicate) {
		return nil, authError(CodeDuplicateAccount, "An account with this email already exists.").
			Errorf("account exists for federated email")
	}
	if err != nil {
		return nil, l.internal(ctx, OpSignupWithGoogle, err)
	}

	l.logger.InfoContext(ctx, "federated signup", "account_id", account.ID.String(), "provider", "google")
	return l.issue(ctx, OpSignupWithGoogle, account)
}

// CheckSession resolves a presented session credential to its account.
func (l *Lifecycle) CheckSession(ctx context.Context, token string) (view *AccountView, err error) {
	ctx, span := l.begin(ctx, OpCheckSession)
	defer func() { l.observe(span, OpCheckSession, err) }()

	id, err := l.sessions.Verify(token)
	if err != nil {
		if IsCode(err, CodeUnauthenticated) || IsCode(err, CodeInvalidToken) {
			return nil, err
		}
		return nil, l.internal(ctx, OpCheckSession, err)
	}

	account, err := l.store.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, errNoUser()
	}
	if err != nil {
		return nil, l.internal(ctx, OpCheckSession, err)
	}

	v := account.View()
	return &v, nil
}

func (l *Lifecycle) burnCompare(password string) {
	_, _ = l.hasher.Compare(password, dummyPasswordHash) //nolint:errcheck // timing only
}

// upgradePasswordHash rehashes with current parameters. Failure leaves the
// old hash in place and does not fail the login.
func (l *Lifecycle) upgradePasswordHash(ctx context.Context, account *Account, password string) {
	newHash, err := l.hasher.Hash(password)
	if err != nil {
		l.logger.WarnContext(ctx, "password rehash failed", "account_id", account.ID.String(), "error", err)
		return
	}
	if err := l.store.UpdatePasswordHash(ctx, account.ID, newHash); err != nil {
		l.logger.WarnContext(ctx, "password hash upgrade not stored", "account_id", account.ID.String(), "error", err)
		return
	}
	account.PasswordHash = &newHash
}

func errInvalidCredentials(account *Account) error {
	return authError(CodeInvalidCredentials, "The password entered is incorrect.").
		With("account_id", account.ID.String()).
		Errorf("invalid credentials")
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

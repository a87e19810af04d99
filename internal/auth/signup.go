// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/oklog/ulid/v2"
)

// SignupInput is a password signup request.
type SignupInput struct {
	Email           string
	Password        string
	ConfirmPassword string
}

// SignupResult reports the outcome of a signup.
type SignupResult struct {
	Account AccountView
	// Created is false when an unverified signup was resumed and a fresh
	// code was issued for the existing record.
	Created bool
	Message string
}

// Signup messages.
const (
	MsgSignupCreated = "Registration is almost complete. Please verify your email to proceed."
	MsgSignupResumed = "Verification code has been sent to your email."
)

// Signup registers an unverified account and sends a verification code.
// Repeating a signup for an unverified email reissues the code in place.
func (l *Lifecycle) Signup(ctx context.Context, in SignupInput) (result *SignupResult, err error) {
	ctx, span := l.begin(ctx, OpSignup)
	defer func() { l.observe(span, OpSignup, err) }()

	email := NormalizeEmail(in.Email)
	if email == "" || in.Password == "" || in.ConfirmPassword == "" {
		return nil, validationError("All fields are required.")
	}
	if err := l.checkNewPassword(in.Password, in.ConfirmPassword); err != nil {
		return nil, err
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}

	passwordHash, err := l.hasher.Hash(in.Password)
	if err != nil {
		return nil, l.internal(ctx, OpSignup, err)
	}
	code, codeHash, err := l.newVerificationCode()
	if err != nil {
		return nil, l.internal(ctx, OpSignup, err)
	}

	now := l.now().UTC()
	account, created, err := l.store.UpsertUnverified(ctx, UnverifiedSignup{
		ID:                        ulid.Make(),
		Email:                     email,
		PasswordHash:              passwordHash,
		VerificationCodeHash:      codeHash,
		VerificationCodeExpiresAt: now.Add(l.cfg.VerificationCodeTTL),
		At:                        now,
	})
	if errors.Is(err, ErrAlreadyVerified) {
		return nil, authError(CodeDuplicateAccount, "An account with this email already exists.").
			Errorf("verified account exists for email")
	}
	if err != nil {
		return nil, l.internal(ctx, OpSignup, err)
	}

	l.deliver(ctx, "verification_code", email, func(ctx context.Context) error {
		return l.notifier.SendVerificationCode(ctx, email, code)
	})

	msg := MsgSignupCreated
	if !created {
		msg = MsgSignupResumed
	}
	l.logger.InfoContext(ctx, "signup accepted", "account_id", account.ID.String(), "created", created)
	return &SignupResult{Account: account.View(), Created: created, Message: msg}, nil
}

// VerifyEmail consumes the verification code of an unverified account and
// signs the user in. Expiry is checked before the code is compared.
func (l *Lifecycle) VerifyEmail(ctx context.Context, email, code string) (res *Authenticated, err error) {
	ctx, span := l.begin(ctx, OpVerifyEmail)
	defer func() { l.observe(span, OpVerifyEmail, err) }()

	email = NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return nil, validationError("Email and verification code are required.")
	}

	account, err := l.store.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, errNoAccountForEmail()
	}
	if err != nil {
		return nil, l.internal(ctx, OpVerifyEmail, err)
	}

	if account.IsVerified || account.VerificationCodeHash == nil {
		return nil, errCodeRetired(account)
	}

	now := l.now().UTC()
	if account.VerificationCodeExpired(now) {
		return nil, authError(CodeCodeExpired, "Verification code has expired. Sign up again to receive a new code.").
			With("account_id", account.ID.String()).
			Errorf("verification code expired")
	}

	ok, err := l.hasher.Compare(code, *account.VerificationCodeHash)
	if err != nil {
		return nil, l.internal(ctx, OpVerifyEmail, err)
	}
	if !ok {
		return nil, authError(CodeInvalidCode, "The verification code entered is incorrect. Please try again.").
			With("account_id", account.ID.String()).
			Errorf("verification code mismatch")
	}

	err = l.store.MarkVerified(ctx, account.ID, *account.VerificationCodeHash, now)
	if errors.Is(err, ErrStale) {
		return nil, errCodeRetired(account)
	}
	if err != nil {
		return nil, l.internal(ctx, OpVerifyEmail, err)
	}

	account.IsVerified = true
	account.VerificationCodeHash = nil
	account.VerificationCodeExpiresAt = nil
	account.UpdatedAt = now

	l.logger.InfoContext(ctx, "email verified", "account_id", account.ID.String())
	return l.issue(ctx, OpVerifyEmail, account)
}

func (l *Lifecycle) newVerificationCode() (code, codeHash string, err error) {
	code, err = l.secrets.VerificationCode()
	if err != nil {
		return "", "", err
	}
	codeHash, err = l.hasher.Hash(code)
	if err != nil {
		return "", "", err
	}
	return code, codeHash, nil
}

func errCodeRetired(account *Account) error {
	return authError(CodeInvalidCode, "This verification code is no longer valid.").
		With("account_id", account.ID.String()).
		Errorf("verification code already retired")
}

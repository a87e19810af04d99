// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
)

// CompleteResetInput is a password reset completion request.
type CompleteResetInput struct {
	Token              string
	NewPassword        string
	ConfirmNewPassword string
}

// RequestPasswordReset mints a single-use reset token for email and sends
// the reset link. Delivery failure does not fail the request.
func (l *Lifecycle) RequestPasswordReset(ctx context.Context, email string) (err error) {
	ctx, span := l.begin(ctx, OpRequestPasswordReset)
	defer func() { l.observe(span, OpRequestPasswordReset, err) }()

	email = NormalizeEmail(email)
	if email == "" {
		return validationError("User email is required.")
	}
	if err := ValidateEmail(email); err != nil {
		return err
	}

	if l.protected.IsProtected(email) {
		return authError(CodeProtectedAccount, "This is a demo account; its password cannot be reset.").
			Errorf("protected account cannot reset password")
	}

	account, err := l.store.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return errNoAccountForEmail()
	}
	if err != nil {
		return l.internal(ctx, OpRequestPasswordReset, err)
	}

	token, err := l.secrets.ResetToken()
	if err != nil {
		return l.internal(ctx, OpRequestPasswordReset, err)
	}

	expiresAt := l.now().UTC().Add(l.cfg.ResetTokenTTL)
	err = l.store.SetResetToken(ctx, account.ID, HashToken(token), expiresAt)
	if errors.Is(err, ErrNotFound) {
		return errNoAccountForEmail()
	}
	if err != nil {
		return l.internal(ctx, OpRequestPasswordReset, err)
	}

	link := l.resetLink(token)
	l.deliver(ctx, "reset_link", email, func(ctx context.Context) error {
		return l.notifier.SendResetLink(ctx, email, link)
	})

	l.logger.InfoContext(ctx, "password reset requested",
		"account_id", account.ID.String(), "expires_at", expiresAt)
	return nil
}

// CompletePasswordReset sets a new password using a reset token. The token
// is retired by the same conditional write that stores the password, so a
// token can succeed at most once.
func (l *Lifecycle) CompletePasswordReset(ctx context.Context, in CompleteResetInput) (err error) {
	ctx, span := l.begin(ctx, OpCompletePasswordReset)
	defer func() { l.observe(span, OpCompletePasswordReset, err) }()

	if in.Token == "" || in.NewPassword == "" || in.ConfirmNewPassword == "" {
		return validationError("All fields are required.")
	}
	if err := l.checkNewPassword(in.NewPassword, in.ConfirmNewPassword); err != nil {
		return err
	}

	tokenHash := HashToken(in.Token)
	account, err := l.store.FindByResetToken(ctx, tokenHash)
	if errors.Is(err, ErrNotFound) {
		return errResetTokenInvalid()
	}
	if err != nil {
		return l.internal(ctx, OpCompletePasswordReset, err)
	}

	now := l.now().UTC()
	if account.ResetTokenExpired(now) {
		return authError(CodeTokenExpired, "Error! The link is expired.").
			With("account_id", account.ID.String()).
			Errorf("reset token expired")
	}

	passwordHash, err := l.hasher.Hash(in.NewPassword)
	if err != nil {
		return l.internal(ctx, OpCompletePasswordReset, err)
	}

	err = l.store.ConsumeResetToken(ctx, tokenHash, passwordHash, now)
	if errors.Is(err, ErrStale) {
		return errResetTokenInvalid()
	}
	if err != nil {
		return l.internal(ctx, OpCompletePasswordReset, err)
	}

	l.logger.InfoContext(ctx, "password reset completed", "account_id", account.ID.String())
	return nil
}

func (l *Lifecycle) resetLink(token string) string {
	u := *l.resetURL
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

func errResetTokenInvalid() error {
	return authError(CodeInvalidToken, "The reset link is invalid or has already been used.").
		Errorf("reset token not found")
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// MaxEmailLength bounds stored addresses (RFC 5321 path limit).
const MaxEmailLength = 254

// Account is the durable credential record keyed by normalized email.
type Account struct {
	ID                        ulid.ULID
	Email                     string
	PasswordHash              *string // nil for federated-only accounts
	IsVerified                bool
	VerificationCodeHash      *string
	VerificationCodeExpiresAt *time.Time
	ResetTokenHash            *string // sha256 hex of the reset token
	ResetTokenExpiresAt       *time.Time
	DisplayName               *string
	Picture                   *string
	PhoneNumber               *string
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

// HasPassword reports whether the account can log in with a password.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != nil && *a.PasswordHash != ""
}

// VerificationCodeExpired reports whether the stored code is past its expiry
// at the given instant. An account without an expiry is treated as expired.
func (a *Account) VerificationCodeExpired(now time.Time) bool {
	return a.VerificationCodeExpiresAt == nil || now.After(*a.VerificationCodeExpiresAt)
}

// ResetTokenExpired reports whether the stored reset token is past its expiry.
func (a *Account) ResetTokenExpired(now time.Time) bool {
	return a.ResetTokenExpiresAt == nil || now.After(*a.ResetTokenExpiresAt)
}

// View returns the sanitized projection of the account.
func (a *Account) View() AccountView {
	return AccountView{
		ID:          a.ID.String(),
		Email:       a.Email,
		IsVerified:  a.IsVerified,
		DisplayName: a.DisplayName,
		Picture:     a.Picture,
		PhoneNumber: a.PhoneNumber,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

// AccountView is what callers of Lifecycle see. It never carries password
// hashes, verification codes or reset tokens.
type AccountView struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	IsVerified  bool      `json:"isVerified"`
	DisplayName *string   `json:"name,omitempty"`
	Picture     *string   `json:"picture,omitempty"`
	PhoneNumber *string   `json:"phoneNumber,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that a normalized address is a bare, well-formed
// mailbox (no display name, no angle brackets).
func ValidateEmail(email string) error {
	if email == "" {
		return validationError("Email is required.")
	}
	if len(email) > MaxEmailLength {
		return validationError("Email address is too long.")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return validationError("Invalid email format.")
	}
	return nil
}

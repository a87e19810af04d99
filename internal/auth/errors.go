// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// Store sentinels. AccountStore implementations wrap these with oops context;
// callers classify with errors.Is.
var (
	// ErrNotFound is returned when a requested account does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when an insert collides with an existing email.
	ErrDuplicate = errors.New("duplicate account")

	// ErrAlreadyVerified is returned by UpsertUnverified when the email
	// belongs to a verified account.
	ErrAlreadyVerified = errors.New("account already verified")

	// ErrStale is returned when a conditional update matched no row because
	// the guarded secret was consumed, replaced or expired concurrently.
	ErrStale = errors.New("stale secret")
)

// Error codes exposed by Lifecycle operations.
const (
	CodeValidation         = "AUTH_VALIDATION"
	CodeDuplicateAccount   = "AUTH_DUPLICATE_ACCOUNT"
	CodeAccountNotFound    = "AUTH_ACCOUNT_NOT_FOUND"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeInvalidCode        = "AUTH_INVALID_CODE"
	CodeCodeExpired        = "AUTH_CODE_EXPIRED"
	CodeInvalidToken       = "AUTH_INVALID_TOKEN"
	CodeTokenExpired       = "AUTH_TOKEN_EXPIRED"
	CodeProtectedAccount   = "AUTH_PROTECTED_ACCOUNT"
	CodeUnauthenticated    = "AUTH_UNAUTHENTICATED"
	CodeUnverifiedAccount  = "AUTH_UNVERIFIED_ACCOUNT"
	CodeUpstreamDelivery   = "AUTH_UPSTREAM_DELIVERY"
	CodeInternal           = "AUTH_INTERNAL"
)

// InternalMessage is the only message callers see for unexpected failures.
const InternalMessage = "Something went wrong on our side. Please try again later."

// ErrorCode returns the oops code carried by err, or "" when err is nil or
// carries no code.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := oopsErr.Code().(string) //nolint:errcheck // type assertion, not an error
	return code
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool {
	return err != nil && ErrorCode(err) == code
}

// PublicMessage returns the user-safe message for err. Errors without a
// public message fall back to InternalMessage.
func PublicMessage(err error) string {
	return oops.GetPublic(err, InternalMessage)
}

func authError(code, public string) oops.OopsErrorBuilder {
	return oops.Code(code).Public(public)
}

func validationError(msg string) error {
	return authError(CodeValidation, msg).Errorf("%s", msg)
}

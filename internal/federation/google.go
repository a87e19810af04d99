// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package federation verifies identity assertions from external providers
// and turns them into the profiles the auth lifecycle trusts.
package federation

import (
	"context"

	"github.com/samber/oops"
	"google.golang.org/api/idtoken"

	"github.com/holomush/credauth/internal/auth"
)

// CodeInvalidAssertion marks a provider token that failed verification.
const CodeInvalidAssertion = "FEDERATION_INVALID_ASSERTION"

// ValidateFunc verifies a Google ID token for an audience.
type ValidateFunc func(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)

// GoogleVerifier validates Google Sign-In ID tokens.
type GoogleVerifier struct {
	clientID string
	validate ValidateFunc
}

// NewGoogleVerifier creates a verifier for tokens minted for clientID.
func NewGoogleVerifier(clientID string) (*GoogleVerifier, error) {
	return NewGoogleVerifierWith(clientID, idtoken.Validate)
}

// NewGoogleVerifierWith uses a custom validation function.
func NewGoogleVerifierWith(clientID string, validate ValidateFunc) (*GoogleVerifier, error) {
	if clientID == "" {
		return nil, oops.Code("FEDERATION_CONFIG_INVALID").Errorf("google client id is required")
	}
	if validate == nil {
		return nil, oops.Code("FEDERATION_CONFIG_INVALID").Errorf("validate func is required")
	}
	return &GoogleVerifier{clientID: clientID, validate: validate}, nil
}

// Verify checks the signature, audience and expiry of credential and
// returns the asserted profile. Only emails Google reports as verified are
// accepted.
func (v *GoogleVerifier) Verify(ctx context.Context, credential string) (auth.GoogleProfile, error) {
	if credential == "" {
		return auth.GoogleProfile{}, invalid("A Google credential is required.").Errorf("google credential missing")
	}

	payload, err := v.validate(ctx, credential, v.clientID)
	if err != nil {
		return auth.GoogleProfile{}, invalid("Google sign-in could not be verified.").Wrap(err)
	}

	email := claim(payload, "email")
	if email == "" {
		return auth.GoogleProfile{}, invalid("Google did not provide an email address.").
			With("subject", payload.Subject).
			Errorf("google token has no email claim")
	}
	if verified, _ := payload.Claims["email_verified"].(bool); !verified { //nolint:errcheck // type assertion
		return auth.GoogleProfile{}, invalid("Your Google email address is not verified.").
			With("subject", payload.Subject).
			Errorf("google email is not verified")
	}

	return auth.GoogleProfile{
		Email:       email,
		DisplayName: claim(payload, "name"),
		Picture:     claim(payload, "picture"),
	}, nil
}

func claim(p *idtoken.Payload, key string) string {
	s, _ := p.Claims[key].(string) //nolint:errcheck // type assertion
	return s
}

func invalid(public string) oops.OopsErrorBuilder {
	return oops.Code(CodeInvalidAssertion).Public(public)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session defaults.
const (
	DefaultSessionTTL    = 24 * time.Hour
	DefaultSessionIssuer = "credauth"
	MinSessionSecretLen  = 32
)

// Session is a signed, client-held credential.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SessionIssuer mints and verifies session credentials.
type SessionIssuer interface {
	// Issue signs a credential bound to accountID.
	Issue(accountID ulid.ULID) (Session, error)

	// Verify returns the account id bound to token. An empty token yields
	// CodeUnauthenticated; anything malformed, forged or expired yields
	// CodeInvalidToken.
	Verify(token string) (ulid.ULID, error)
}

// SessionClaims are the JWT claims of a session credential.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// JWTIssuer issues HS256 JWT session credentials.
type JWTIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

var _ SessionIssuer = (*JWTIssuer)(nil)

// JWTOption configures a JWTIssuer.
type JWTOption func(*JWTIssuer)

// WithIssuer overrides the iss claim.
func WithIssuer(iss string) JWTOption {
	return func(j *JWTIssuer) { j.issuer = iss }
}

// WithSessionTTL overrides the credential lifetime.
func WithSessionTTL(ttl time.Duration) JWTOption {
	return func(j *JWTIssuer) { j.ttl = ttl }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) JWTOption {
	return func(j *JWTIssuer) { j.now = now }
}

// NewJWTIssuer creates an issuer signing with secret.
func NewJWTIssuer(secret []byte, opts ...JWTOption) (*JWTIssuer, error) {
	if len(secret) < MinSessionSecretLen {
		return nil, oops.Code("SESSION_SECRET_INVALID").
			With("min_length", MinSessionSecretLen).
			Errorf("session secret must be at least %d bytes", MinSessionSecretLen)
	}
	j := &JWTIssuer{
		secret: secret,
		issuer: DefaultSessionIssuer,
		ttl:    DefaultSessionTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	if j.ttl <= 0 {
		return nil, oops.Code("SESSION_TTL_INVALID").With("ttl", j.ttl.String()).Errorf("session ttl must be positive")
	}
	return j, nil
}

// TTL returns the credential lifetime.
func (j *JWTIssuer) TTL() time.Duration {
	return j.ttl
}

// Issue signs a credential for accountID.
func (j *JWTIssuer) Issue(accountID ulid.ULID) (Session, error) {
	now := j.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(j.ttl)

	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID.String(),
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        ulid.Make().String(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return Session{}, oops.Code("SESSION_SIGN_FAILED").With("account_id", accountID.String()).Wrap(err)
	}
	return Session{Token: signed, ExpiresAt: expiresAt}, nil
}

// Verify parses and validates token.
func (j *JWTIssuer) Verify(token string) (ulid.ULID, error) {
	if token == "" {
		return ulid.ULID{}, authError(CodeUnauthenticated, "Unauthorized - No token provided.").
			Errorf("session token is missing")
	}

	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(j.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		reason := "invalid"
		if errors.Is(err, jwt.ErrTokenExpired) {
			reason = "expired"
		}
		return ulid.ULID{}, authError(CodeInvalidToken, "Unauthorized - Invalid token.").
			With("reason", reason).
			Errorf("session token rejected: %v", err)
	}

	id, err := ulid.Parse(claims.Subject)
	if err != nil {
		return ulid.ULID{}, authError(CodeInvalidToken, "Unauthorized - Invalid token.").
			With("reason", "subject").
			Errorf("session token subject is not an account id")
	}
	return id, nil
}

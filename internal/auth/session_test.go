// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/credauth/internal/auth"
	"github.com/holomush/credauth/pkg/errutil"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func TestNewJWTIssuer(t *testing.T) {
	t.Run("rejects short secret", func(t *testing.T) {
		_, err := auth.NewJWTIssuer([]byte("short"))
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SESSION_SECRET_INVALID")
	})

	t.Run("rejects non-positive ttl", func(t *testing.T) {
		_, err := auth.NewJWTIssuer(testSecret, auth.WithSessionTTL(0))
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SESSION_TTL_INVALID")
	})

	t.Run("defaults to a day", func(t *testing.T) {
		issuer, err := auth.NewJWTIssuer(testSecret)
		require.NoError(t, err)
		assert.Equal(t, auth.DefaultSessionTTL, issuer.TTL())
	})
}

func TestJWTIssuer_RoundTrip(t *testing.T) {
	clock := newClock()
	issuer, err := auth.NewJWTIssuer(testSecret, auth.WithClock(clock.Now), auth.WithSessionTTL(time.Hour))
	require.NoError(t, err)

	id := ulid.Make()
	session, err := issuer.Issue(id)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(time.Hour), session.ExpiresAt)
	assert.Len(t, strings.Split(session.Token, "."), 3)

	got, err := issuer.Verify(session.Token)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestJWTIssuer_Verify_Rejections(t *testing.T) {
	clock := newClock()
	issuer, err := auth.NewJWTIssuer(testSecret, auth.WithClock(clock.Now), auth.WithSessionTTL(time.Hour))
	require.NoError(t, err)

	session, err := issuer.Issue(ulid.Make())
	require.NoError(t, err)

	t.Run("missing token is unauthenticated", func(t *testing.T) {
		_, err := issuer.Verify("")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, auth.CodeUnauthenticated)
		errutil.AssertPublicMessage(t, err, "Unauthorized - No token provided.")
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := issuer.Verify("not.a.jwt")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, auth.CodeInvalidToken)
		errutil.AssertErrorContext(t, err, "reason", "invalid")
	})

	t.Run("tampered signature", func(t *testing.T) {
		tampered := session.Token[:len(session.Token)-2] + "xx"
		_, err := issuer.Verify(tampered)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, auth.CodeInvalidToken)
	})

	t.Run("signed with another secret", func(t *testing.T) {
		other, err := auth.NewJWTIssuer([]byte("ffffffffffffffffffffffffffffffff"), auth.WithClock(clock.Now))
		require.NoError(t, err)
		foreign, err := other.Issue(ulid.Make())
		require.NoError(t, err)

		_, err = issuer.Verify(foreign.Token)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, auth.CodeInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other, err := auth.NewJWTIssuer(testSecret, auth.WithClock(clock.Now), auth.WithIssuer("someone-else"))
		require.NoError(t, err)
		foreign, err := other.Issue(ulid.Make())
		require.NoError(t, err)

		_, err = issuer.Verify(foreign.Token)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, auth.CodeInvalidToken)
	})

	t.Run("alg none", func(t *testing.T) {
		claims := jwt.RegisteredClaims{
			Subject:   ulid.Make().String(),
			Issuer:    auth.DefaultSessionIssuer,
			ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
		}
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = issuer.Verify(unsigned)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, auth.CodeInvalidToken)
	})

	t.Run("subject is not an account id", func(t *testing.T) {
		claims := jwt.RegisteredClaims{
			Subject:   "player-42",
			Issuer:    auth.DefaultSessionIssuer,
			ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
		}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
		require.NoError(t, err)

		_, err = issuer.Verify(signed)
		require.Error(t, err)
		errutil.AssertErrorContext(t, err, "reason", "subject")
	})

	t.Run("expired", func(t *testing.T) {
		clock.Advance(2 * time.Hour)
		defer clock.Advance(-2 * time.Hour)

		_, err := issuer.Verify(session.Token)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, auth.CodeInvalidToken)
		errutil.AssertErrorContext(t, err, "reason", "expired")
	})
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"

	"github.com/samber/oops"
)

// Secret sizes.
const (
	VerificationCodeDigits = 6
	ResetTokenBytes        = 32 // 64 hex chars
)

// SecretGenerator mints verification codes and reset tokens.
type SecretGenerator interface {
	// VerificationCode returns a fresh numeric code.
	VerificationCode() (string, error)

	// ResetToken returns a fresh opaque token suitable for a URL.
	ResetToken() (string, error)
}

// RandomSecrets draws every secret from a cryptographic random source.
type RandomSecrets struct {
	rand io.Reader
}

// NewRandomSecrets creates a generator backed by crypto/rand.
func NewRandomSecrets() *RandomSecrets {
	return &RandomSecrets{rand: rand.Reader}
}

var _ SecretGenerator = (*RandomSecrets)(nil)

var codeSpace = big.NewInt(1_000_000) // 10^VerificationCodeDigits

// VerificationCode returns a uniformly distributed zero-padded 6-digit code.
func (g *RandomSecrets) VerificationCode() (string, error) {
	n, err := rand.Int(g.rand, codeSpace)
	if err != nil {
		return "", oops.Code("AUTH_CODE_GENERATE_FAILED").Wrap(err)
	}
	return fmt.Sprintf("%0*d", VerificationCodeDigits, n.Int64()), nil
}

// ResetToken returns 32 random bytes, hex encoded.
func (g *RandomSecrets) ResetToken() (string, error) {
	b := make([]byte, ResetTokenBytes)
	if _, err := io.ReadFull(g.rand, b); err != nil {
		return "", oops.Code("AUTH_TOKEN_GENERATE_FAILED").Wrap(err)
	}
	return hex.EncodeToString(b), nil
}

// HashToken returns the hex SHA-256 of a reset token. Only this digest is stored.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

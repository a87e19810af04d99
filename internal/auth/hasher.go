// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// OWASP-recommended argon2id parameters.
const (
	argon2Time    = 1         // iterations
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4         // parallelism
	argon2SaltLen = 16        // salt length in bytes
	argon2KeyLen  = 32        // output length in bytes
)

// ErrEmptySecret is returned when asked to hash an empty plaintext.
var ErrEmptySecret = oops.Code("AUTH_EMPTY_SECRET").Errorf("secret cannot be empty")

// CredentialHasher is a one-way hash with a constant-time compare. It hashes
// passwords and verification codes alike.
type CredentialHasher interface {
	// Hash produces an encoded hash of plaintext.
	Hash(plaintext string) (string, error)

	// Compare reports whether plaintext matches hash.
	// Returns (true, nil) on match, (false, nil) on mismatch, or an error
	// when hash cannot be parsed.
	Compare(plaintext, hash string) (bool, error)

	// NeedsUpgrade reports whether hash should be recomputed with the
	// current algorithm and parameters.
	NeedsUpgrade(hash string) bool
}

// Argon2idHasher hashes with argon2id in PHC string format. It also accepts
// bcrypt hashes for comparison so records imported from bcrypt-based
// systems keep working until their next login upgrades them.
type Argon2idHasher struct{}

// NewArgon2idHasher creates a new Argon2idHasher.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{}
}

var _ CredentialHasher = (*Argon2idHasher)(nil)

// Hash produces an argon2id hash of plaintext.
func (h *Argon2idHasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptySecret
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	key := argon2.IDKey([]byte(plaintext), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Compare checks plaintext against an argon2id or bcrypt hash.
func (h *Argon2idHasher) Compare(plaintext, encodedHash string) (bool, error) {
	if isBcrypt(encodedHash) {
		err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(plaintext))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		if err != nil {
			return false, oops.Code("AUTH_INVALID_HASH").With("algorithm", "bcrypt").Wrap(err)
		}
		return true, nil
	}

	params, salt, expected, err := decodeArgon2id(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(plaintext), salt, params.time, params.memory, params.threads, uint32(len(expected)))
	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

// NeedsUpgrade reports true for non-argon2id hashes and for argon2id hashes
// produced with weaker parameters than the current ones.
func (h *Argon2idHasher) NeedsUpgrade(encodedHash string) bool {
	if !strings.HasPrefix(encodedHash, "$argon2id$") {
		return true
	}
	params, _, _, err := decodeArgon2id(encodedHash)
	if err != nil {
		return true
	}
	return params.memory < argon2Memory || params.time < argon2Time
}

type argon2Params struct {
	memory  uint32
	time    uint32
	threads uint8
}

func decodeArgon2id(encodedHash string) (argon2Params, []byte, []byte, error) {
	var p argon2Params

	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return p, nil, nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash format")
	}
	if parts[1] != "argon2id" {
		return p, nil, nil, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return p, nil, nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if version != argon2.Version {
		return p, nil, nil, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported argon2 version: %d", version)
	}

	var threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &threads); err != nil {
		return p, nil, nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if threads == 0 || threads > 255 {
		return p, nil, nil, oops.Code("AUTH_INVALID_HASH").Errorf("threads value %d out of range", threads)
	}
	p.threads = uint8(threads)
	// argon2.IDKey panics below these bounds.
	if p.time < 1 {
		return p, nil, nil, oops.Code("AUTH_INVALID_HASH").Errorf("time value %d out of range", p.time)
	}
	if p.memory < 8*threads {
		return p, nil, nil, oops.Code("AUTH_INVALID_HASH").Errorf("memory value %d out of range", p.memory)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return p, nil, nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if len(key) == 0 || len(key) > 1<<10 {
		return p, nil, nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash key length: %d", len(key))
	}

	return p, salt, key, nil
}

func isBcrypt(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$") || strings.HasPrefix(hash, "$2y$")
}

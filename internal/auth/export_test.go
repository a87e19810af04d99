// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "io"

// NewRandomSecretsFrom exposes a generator over an arbitrary source to tests.
func NewRandomSecretsFrom(r io.Reader) *RandomSecrets {
	return &RandomSecrets{rand: r}
}

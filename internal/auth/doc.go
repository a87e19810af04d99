// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth implements the account and credential lifecycle of credauth.
//
// # Account states
//
// An account is created unverified with a hashed verification code. A
// successful VerifyEmail marks it verified and retires the code. Password
// reset stores the SHA-256 of a random token; completing the reset replaces
// the password and retires the token in one conditional write.
//
// # Collaborators
//
// Lifecycle is built with NewLifecycle from explicit Deps:
//   - AccountStore - persistence (see the postgres and memstore packages)
//   - CredentialHasher - argon2id hashing of passwords and codes
//   - SecretGenerator - crypto/rand codes and reset tokens
//   - SessionIssuer - signed JWT session credentials
//   - NotificationGateway - best-effort email delivery
//
// # Errors
//
// Operations return oops errors whose code is one of the Code* constants.
// Each carries a user-safe public message; use PublicMessage to read it.
// Unexpected failures are logged in full and surface as CodeInternal.
package auth

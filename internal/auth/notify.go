// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "context"

// NotificationGateway delivers account emails. Lifecycle treats every send
// as best effort: errors are logged, never returned to the caller.
type NotificationGateway interface {
	SendVerificationCode(ctx context.Context, email, code string) error
	SendResetLink(ctx context.Context, email, link string) error
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package notify delivers account emails.
//
// A Mailer renders messages and hands them to a Sender. Senders compose:
//
//	mailer := notify.NewMailer(
//		notify.NewAsyncSender(
//			notify.Instrument(notify.NewRetrySender(resend, notify.RetryOptions{}), metrics),
//			notify.AsyncOptions{}),
//		notify.MailerConfig{})
//
// so a Lifecycle call returns as soon as the message is queued.
package notify

import (
	"context"

	"github.com/samber/oops"
)

// Message kinds.
const (
	KindVerificationCode = "verification_code"
	KindResetLink        = "reset_link"
)

// Delivery statuses recorded per message.
const (
	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusDropped = "dropped"
)

// Error codes.
const (
	CodeRejected    = "NOTIFY_REJECTED"
	CodeUnavailable = "NOTIFY_UNAVAILABLE"
	CodeQueueFull   = "NOTIFY_QUEUE_FULL"
	CodeClosed      = "NOTIFY_CLOSED"
)

// Message is a rendered email.
type Message struct {
	Kind    string
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Recorder counts delivery outcomes.
type Recorder interface {
	ObserveNotification(kind, status string)
}

// IsPermanent reports whether err will not succeed on retry.
func IsPermanent(err error) bool {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return false
	}
	code, _ := oopsErr.Code().(string) //nolint:errcheck // type assertion, not an error
	return code == CodeRejected || code == CodeClosed
}

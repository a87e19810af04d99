// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryOptions bounds redelivery.
type RetryOptions struct {
	MaxRetries     uint64
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = 250 * time.Millisecond
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 5 * time.Second
	}
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = 10 * time.Second
	}
	return o
}

// RetrySender retries transient failures of the wrapped Sender with
// jittered exponential backoff.
type RetrySender struct {
	next Sender
	opts RetryOptions
}

// NewRetrySender wraps next. Zero options take defaults.
func NewRetrySender(next Sender, opts RetryOptions) *RetrySender {
	return &RetrySender{next: next, opts: opts.withDefaults()}
}

// Send delivers msg, retrying errors that are not permanent.
func (s *RetrySender) Send(ctx context.Context, msg Message) error {
	backoff := retry.NewExponential(s.opts.InitialDelay)
	backoff = retry.WithJitterPercent(20, backoff)
	backoff = retry.WithCappedDuration(s.opts.MaxDelay, backoff)
	backoff = retry.WithMaxRetries(s.opts.MaxRetries, backoff)

	//nolint:wrapcheck // errors come from the wrapped sender with their codes
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, s.opts.AttemptTimeout)
		defer cancel()

		err := s.next.Send(attemptCtx, msg)
		if err == nil || IsPermanent(err) {
			return err
		}
		return retry.RetryableError(err)
	})
}

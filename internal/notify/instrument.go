// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import "context"

type instrumented struct {
	next     Sender
	recorder Recorder
}

// Instrument records the final outcome of every Send on r.
func Instrument(next Sender, r Recorder) Sender {
	if r == nil {
		return next
	}
	return &instrumented{next: next, recorder: r}
}

func (s *instrumented) Send(ctx context.Context, msg Message) error {
	err := s.next.Send(ctx, msg)
	status := StatusSent
	if err != nil {
		status = StatusFailed
	}
	s.recorder.ObserveNotification(msg.Kind, status)
	return err
}

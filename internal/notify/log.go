// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"context"
	"log/slog"
)

// LogSender writes messages to a logger instead of sending them. Bodies
// carry secrets, so they are logged at debug level only.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender. A nil logger uses slog.Default.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send logs msg.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "email not sent (log notifier)",
		"kind", msg.Kind, "to", msg.To, "subject", msg.Subject)
	s.logger.DebugContext(ctx, "email body", "kind", msg.Kind, "to", msg.To, "text", msg.Text)
	return nil
}

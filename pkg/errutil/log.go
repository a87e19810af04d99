// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package errutil bridges oops errors to slog and to tests.
package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs err at error level without a request context.
func LogError(logger *slog.Logger, msg string, err error) {
	LogErrorContext(context.Background(), logger, msg, err)
}

// LogErrorContext logs err at error level. For oops errors it adds the code,
// the merged context, the public message and the stacktrace; the context is
// passed through so handlers can attach trace ids.
func LogErrorContext(ctx context.Context, logger *slog.Logger, msg string, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		logger.ErrorContext(ctx, msg, "error", err)
		return
	}

	attrs := []any{"error", oopsErr.Error()}
	if code := oopsErr.Code(); code != nil && code != "" {
		attrs = append(attrs, "code", code)
	}
	if c := oopsErr.Context(); len(c) > 0 {
		attrs = append(attrs, "context", c)
	}
	if public := oopsErr.Public(); public != "" {
		attrs = append(attrs, "public", public)
	}
	if stack := oopsErr.Stacktrace(); stack != "" {
		attrs = append(attrs, "stacktrace", stack)
	}
	logger.ErrorContext(ctx, msg, attrs...)
}

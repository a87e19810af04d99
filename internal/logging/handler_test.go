// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/credauth/pkg/errutil"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "not JSON: %s", buf.String())
	return entry
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Version: "1.2.3", Writer: &buf})
	require.NoError(t, err)

	logger.Info("signup", "account_id", "01J")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "signup", entry["msg"])
	assert.Equal(t, "credauth", entry["service"])
	assert.Equal(t, "1.2.3", entry["version"])
	assert.Equal(t, "01J", entry["account_id"])
	assert.NotContains(t, entry, "trace_id")
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Service: "credauth-test", Format: "text", Writer: &buf})
	require.NoError(t, err)

	logger.Warn("login failed")
	assert.Contains(t, buf.String(), "login failed")
	assert.Contains(t, buf.String(), "service=credauth-test")
}

func TestNew_Level(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Writer: &buf})
	require.NoError(t, err)

	logger.Info("hidden")
	assert.Empty(t, buf.String())
	logger.Error("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_InvalidOptions(t *testing.T) {
	_, err := New(Options{Format: "xml"})
	errutil.AssertErrorCode(t, err, "LOG_FORMAT_INVALID")

	_, err = New(Options{Level: "loud"})
	errutil.AssertErrorCode(t, err, "LOG_LEVEL_INVALID")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for name, want := range tests {
		got, err := ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}

func TestHandler_TraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Writer: &buf})
	require.NoError(t, err)

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	logger.InfoContext(ctx, "traced")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])
}

func TestHandler_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Writer: &buf})
	require.NoError(t, err)

	logger.With("component", "notify").WithGroup("mail").Info("queued", "kind", "reset_link")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "notify", entry["component"])
	mail, ok := entry["mail"].(map[string]any)
	require.True(t, ok, "expected mail group: %v", entry)
	assert.Equal(t, "reset_link", mail["kind"])
}

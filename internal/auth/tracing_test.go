// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/credauth/internal/auth"
	"github.com/holomush/credauth/internal/auth/mocks"
	"github.com/holomush/credauth/internal/logging"
	"github.com/holomush/credauth/pkg/errutil"
)

func TestLifecycle_FailedOperationLogsTraceIDs(t *testing.T) {
	traceID := trace.TraceID{0x4b, 0xf9, 0x2f, 0x35, 0x77, 0xb3, 0x4d, 0xa6, 0xa3, 0xce, 0x92, 0x9d, 0x0e, 0x0e, 0x47, 0x36}
	spanID := trace.SpanID{0x00, 0xf0, 0x67, 0xaa, 0x0b, 0xa9, 0x02, 0xb7}
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	var logs bytes.Buffer
	logger, err := logging.New(logging.Options{Version: "test", Writer: &logs})
	require.NoError(t, err)

	store := mocks.NewMockAccountStore(t)
	inTrace := mock.MatchedBy(func(c context.Context) bool {
		return trace.SpanContextFromContext(c).TraceID() == traceID
	})
	store.On("FindByEmail", inTrace, "alice@example.com").Return(nil, errors.New("connection reset")).Once()

	cfg := auth.DefaultConfig()
	cfg.ResetURL = "https://app.example.com/reset-password"
	lc, err := auth.NewLifecycle(auth.Deps{
		Store:    store,
		Hasher:   mocks.NewMockCredentialHasher(t),
		Secrets:  mocks.NewMockSecretGenerator(t),
		Sessions: mocks.NewMockSessionIssuer(t),
		Notifier: mocks.NewMockNotificationGateway(t),
		Logger:   logger,
	}, cfg)
	require.NoError(t, err)

	_, err = lc.Login(ctx, "alice@example.com", "password123")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, auth.CodeInternal)

	var record map[string]any
	require.NoError(t, json.NewDecoder(&logs).Decode(&record))
	assert.Equal(t, "auth operation failed", record["msg"])
	assert.Equal(t, traceID.String(), record["trace_id"])
	assert.NotEmpty(t, record["span_id"])
}

func TestLifecycle_OperationWithoutTraceHasNoTraceIDs(t *testing.T) {
	var logs bytes.Buffer
	logger, err := logging.New(logging.Options{Writer: &logs})
	require.NoError(t, err)

	store := mocks.NewMockAccountStore(t)
	store.On("FindByEmail", mock.Anything, "alice@example.com").Return(nil, errors.New("connection reset")).Once()

	cfg := auth.DefaultConfig()
	cfg.ResetURL = "https://app.example.com/reset-password"
	lc, err := auth.NewLifecycle(auth.Deps{
		Store:    store,
		Hasher:   mocks.NewMockCredentialHasher(t),
		Secrets:  mocks.NewMockSecretGenerator(t),
		Sessions: mocks.NewMockSessionIssuer(t),
		Notifier: mocks.NewMockNotificationGateway(t),
		Logger:   logger,
	}, cfg)
	require.NoError(t, err)

	_, err = lc.Login(context.Background(), "alice@example.com", "password123")
	require.Error(t, err)

	var record map[string]any
	require.NoError(t, json.NewDecoder(&logs).Decode(&record))
	assert.NotContains(t, record, "trace_id")
}

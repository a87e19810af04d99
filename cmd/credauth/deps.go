// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"net"

	"github.com/spf13/pflag"

	"github.com/holomush/credauth/internal/auth"
	"github.com/holomush/credauth/internal/config"
	"github.com/holomush/credauth/internal/httpapi"
	"github.com/holomush/credauth/internal/notify"
	"github.com/holomush/credauth/internal/observability"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// ConfigLoader reads and validates configuration.
	// Default: config.Load
	ConfigLoader func(path string, fs *pflag.FlagSet) (*config.Config, error)

	// StoreFactory opens the configured account store.
	// Default: openStore
	StoreFactory func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*StoreHandle, error)

	// SenderFactory builds the transport that delivers rendered email.
	// Default: newSender
	SenderFactory func(cfg *config.Config, logger *slog.Logger) (notify.Sender, error)

	// GoogleVerifierFactory validates Google ID tokens for a client id.
	// Default: federation.NewGoogleVerifier
	GoogleVerifierFactory func(clientID string) (httpapi.GoogleVerifier, error)

	// ObservabilityServerFactory creates the metrics and health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer

	// ListenerFactory creates the API listener.
	// Default: net.Listen
	ListenerFactory func(network, address string) (net.Listener, error)
}

// StoreHandle is an opened account store.
type StoreHandle struct {
	Store auth.AccountStore
	// Ping backs the readiness probe. Nil means always ready.
	Ping func(ctx context.Context) error
	// Close releases the store. May be nil.
	Close func()
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/credauth/internal/auth"
	"github.com/holomush/credauth/internal/auth/memstore"
	"github.com/holomush/credauth/internal/auth/postgres"
	"github.com/holomush/credauth/internal/config"
	"github.com/holomush/credauth/internal/federation"
	"github.com/holomush/credauth/internal/httpapi"
	"github.com/holomush/credauth/internal/logging"
	"github.com/holomush/credauth/internal/notify"
	"github.com/holomush/credauth/internal/observability"
	"github.com/holomush/credauth/internal/store"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the authentication API",
		Long: `Serve the /api/v1/auth routes, plus metrics and health probes on a
separate address. Shuts down gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServeWithDeps(ctx, cmd, nil)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	if d == nil {
		d = &ServeDeps{}
	}
	if d.ConfigLoader == nil {
		d.ConfigLoader = config.Load
	}
	if d.StoreFactory == nil {
		d.StoreFactory = openStore
	}
	if d.SenderFactory == nil {
		d.SenderFactory = newSender
	}
	if d.GoogleVerifierFactory == nil {
		d.GoogleVerifierFactory = func(clientID string) (httpapi.GoogleVerifier, error) {
			return federation.NewGoogleVerifier(clientID)
		}
	}
	if d.ObservabilityServerFactory == nil {
		d.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, ready, logger)
		}
	}
	if d.ListenerFactory == nil {
		d.ListenerFactory = net.Listen
	}
	return d
}

// runServeWithDeps runs until ctx is canceled or a server fails.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()

	cfg, err := deps.ConfigLoader(configFile, cmd.Flags())
	if err != nil {
		return oops.With("operation", "load configuration").Wrap(err)
	}

	logger, err := logging.New(logging.Options{
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
		Writer:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	handle, err := deps.StoreFactory(ctx, cfg, logger)
	if err != nil {
		return oops.With("operation", "open account store").With("store", cfg.Store.Kind).Wrap(err)
	}
	if handle.Close != nil {
		defer handle.Close()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var metrics *observability.Metrics
	var obsServer ObservabilityServer
	if cfg.Server.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Server.MetricsAddr, handle.Ping, logger)
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.With("operation", "start observability server").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability", logger)
		metrics = obsServer.Metrics()
	}

	base, err := deps.SenderFactory(cfg, logger)
	if err != nil {
		stopObservability(obsServer, logger)
		return oops.With("operation", "create notifier").With("notifier", cfg.Notify.Kind).Wrap(err)
	}
	async := notify.NewAsyncSender(
		notify.Instrument(notify.NewRetrySender(base, notify.RetryOptions{MaxRetries: cfg.Notify.MaxRetries}), recorder(metrics)),
		notify.AsyncOptions{
			Workers:   cfg.Notify.Workers,
			QueueSize: cfg.Notify.QueueSize,
			Logger:    logger,
			Recorder:  recorder(metrics),
		},
	)
	mailer := notify.NewMailer(async, notify.MailerConfig{
		AppName:             cfg.Notify.AppName,
		VerificationCodeTTL: cfg.Auth.VerificationCodeTTL,
		ResetTokenTTL:       cfg.Auth.ResetTokenTTL,
	})

	lifecycle, google, err := buildLifecycle(cfg, deps, handle.Store, mailer, metrics, logger)
	if err != nil {
		closeNotifier(async, cfg, logger)
		stopObservability(obsServer, logger)
		return err
	}

	api := httpapi.NewServer(lifecycle, httpapi.Options{
		Google:       google,
		CookieSecure: cfg.Server.CookieSecure,
		SessionTTL:   cfg.Session.TTL,
		CORSOrigins:  cfg.Server.CORSOrigins,
		Recorder:     requestRecorder(metrics),
		Logger:       logger,
	})

	listener, err := deps.ListenerFactory("tcp", cfg.Server.Addr)
	if err != nil {
		closeNotifier(async, cfg, logger)
		stopObservability(obsServer, logger)
		return oops.Code("LISTEN_FAILED").With("addr", cfg.Server.Addr).Wrap(err)
	}
	httpServer := newHTTPServer(cfg.Server, api, logger)

	errCh := make(chan error, 1)
	go func() {
		if serveErr := httpServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	cmd.Println("credauth API listening on " + listener.Addr().String())
	logger.Info("credauth ready",
		"addr", listener.Addr().String(),
		"store", cfg.Store.Kind,
		"notifier", cfg.Notify.Kind,
		"google", google != nil,
	)

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case serveErr = <-errCh:
		logger.Error("api server error, shutting down", "error", serveErr)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
	closeNotifier(async, cfg, logger)
	stopObservability(obsServer, logger)
	logger.Info("shutdown complete")

	if serveErr != nil {
		return oops.Code("SERVE_FAILED").Wrap(serveErr)
	}
	return nil
}

func buildLifecycle(
	cfg *config.Config,
	deps *ServeDeps,
	accounts auth.AccountStore,
	notifier auth.NotificationGateway,
	metrics *observability.Metrics,
	logger *slog.Logger,
) (*auth.Lifecycle, httpapi.GoogleVerifier, error) {
	sessions, err := auth.NewJWTIssuer([]byte(cfg.Session.Secret),
		auth.WithIssuer(cfg.Session.Issuer),
		auth.WithSessionTTL(cfg.Session.TTL),
	)
	if err != nil {
		return nil, nil, err
	}
	protected, err := auth.NewProtectedPolicy(cfg.Auth.ProtectedAccounts)
	if err != nil {
		return nil, nil, err
	}

	var google httpapi.GoogleVerifier
	if cfg.Google.ClientID != "" {
		google, err = deps.GoogleVerifierFactory(cfg.Google.ClientID)
		if err != nil {
			return nil, nil, oops.With("operation", "configure google sign-in").Wrap(err)
		}
	}

	var observer auth.Observer
	if metrics != nil {
		observer = metrics
	}
	lifecycle, err := auth.NewLifecycle(auth.Deps{
		Store:     accounts,
		Hasher:    auth.NewArgon2idHasher(),
		Secrets:   auth.NewRandomSecrets(),
		Sessions:  sessions,
		Notifier:  notifier,
		Protected: protected,
		Observer:  observer,
		Logger:    logger,
	}, cfg.LifecycleConfig())
	if err != nil {
		return nil, nil, err
	}
	return lifecycle, google, nil
}

// openStore opens the in-memory store or a migrated PostgreSQL pool.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*StoreHandle, error) {
	switch cfg.Store.Kind {
	case config.StoreMemory:
		logger.Warn("using in-memory account store; accounts are lost on restart")
		return &StoreHandle{Store: memstore.New()}, nil
	case config.StorePostgres:
		if cfg.Store.AutoMigrate {
			if err := migrateUp(cfg.Store.DSN); err != nil {
				return nil, err
			}
			logger.Info("database migrations applied")
		}
		opts := store.DefaultConnectOptions()
		opts.MaxConns = cfg.Store.MaxConns
		pool, err := store.Connect(ctx, cfg.Store.DSN, opts)
		if err != nil {
			return nil, err
		}
		return &StoreHandle{
			Store: postgres.NewAccountStore(pool),
			Ping:  pool.Ping,
			Close: pool.Close,
		}, nil
	default:
		return nil, oops.Code("CONFIG_INVALID").With("key", "store.kind").Errorf("unknown store %q", cfg.Store.Kind)
	}
}

func migrateUp(dsn string) (err error) {
	m, err := store.NewMigrator(dsn)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return m.Up()
}

// newSender returns the configured email transport.
func newSender(cfg *config.Config, logger *slog.Logger) (notify.Sender, error) {
	switch cfg.Notify.Kind {
	case config.NotifierLog:
		return notify.NewLogSender(logger), nil
	case config.NotifierResend:
		var opts []notify.ResendOption
		if cfg.Notify.Resend.BaseURL != "" {
			opts = append(opts, notify.WithResendBaseURL(cfg.Notify.Resend.BaseURL))
		}
		return notify.NewResendSender(cfg.Notify.Resend.APIKey, cfg.Notify.Resend.From, opts...)
	default:
		return nil, oops.Code("CONFIG_INVALID").With("key", "notify.kind").Errorf("unknown notifier %q", cfg.Notify.Kind)
	}
}

// recorder avoids handing a typed nil *Metrics to an interface field.
func recorder(m *observability.Metrics) notify.Recorder {
	if m == nil {
		return nil
	}
	return m
}

func requestRecorder(m *observability.Metrics) httpapi.RequestRecorder {
	if m == nil {
		return nil
	}
	return m
}

// newHTTPServer bounds every phase of a connection so a slow client cannot
// hold it open.
func newHTTPServer(cfg config.ServerConfig, handler http.Handler, logger *slog.Logger) *http.Server {
	return &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: min(10*time.Second, cfg.ReadTimeout),
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
}

func closeNotifier(async *notify.AsyncSender, cfg *config.Config, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := async.Close(ctx); err != nil {
		logger.Warn("notifications still queued at shutdown", "error", err)
	}
}

func stopObservability(s ObservabilityServer, logger *slog.Logger) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		logger.Warn("error stopping observability server", "error", err)
	}
}

// monitorServerErrors cancels ctx when a server reports an error. It returns
// once the channel yields or ctx ends.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown", "server", serverName, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}

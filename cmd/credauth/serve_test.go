// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/credauth/internal/auth/memstore"
	"github.com/holomush/credauth/internal/config"
	"github.com/holomush/credauth/internal/httpapi"
	"github.com/holomush/credauth/internal/notify"
	"github.com/holomush/credauth/internal/observability"
	"github.com/holomush/credauth/pkg/errutil"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Server.MetricsAddr = ""
	cfg.Server.ShutdownTimeout = 2 * time.Second
	cfg.Session.Secret = strings.Repeat("x", 32)
	return &cfg
}

// capturedSender records what the notifier pipeline delivers.
type capturedSender struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (c *capturedSender) Send(_ context.Context, msg notify.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *capturedSender) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

type serveHarness struct {
	deps   *ServeDeps
	sender *capturedSender
	addr   chan string
	out    *bytes.Buffer
}

func newServeHarness(cfg *config.Config) *serveHarness {
	h := &serveHarness{sender: &capturedSender{}, addr: make(chan string, 1), out: new(bytes.Buffer)}
	h.deps = &ServeDeps{
		ConfigLoader: func(string, *pflag.FlagSet) (*config.Config, error) { return cfg, nil },
		StoreFactory: func(context.Context, *config.Config, *slog.Logger) (*StoreHandle, error) {
			return &StoreHandle{Store: memstore.New()}, nil
		},
		SenderFactory: func(*config.Config, *slog.Logger) (notify.Sender, error) { return h.sender, nil },
		ListenerFactory: func(network, address string) (net.Listener, error) {
			l, err := net.Listen(network, address)
			if err == nil {
				h.addr <- l.Addr().String()
			}
			return l, err
		},
	}
	return h
}

func (h *serveHarness) run(ctx context.Context) <-chan error {
	cmd := &cobra.Command{}
	cmd.SetOut(h.out)
	cmd.SetErr(new(bytes.Buffer))
	done := make(chan error, 1)
	go func() { done <- runServeWithDeps(ctx, cmd, h.deps) }()
	return done
}

func TestServe_SignupDeliversAndShutsDown(t *testing.T) {
	h := newServeHarness(testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := h.run(ctx)

	var addr string
	select {
	case addr = <-h.addr:
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not start")
	}

	body := `{"email":"ivy@example.com","password":"long-enough","confirmPassword":"long-enough"}`
	resp, err := http.Post("http://"+addr+"/api/v1/auth/signup", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not shut down")
	}
	assert.Equal(t, 1, h.sender.count(), "queued email is drained on shutdown")
	assert.Contains(t, h.out.String(), "credauth API listening on")
}

func TestServe_WithObservability(t *testing.T) {
	cfg := testConfig()
	cfg.Server.MetricsAddr = "127.0.0.1:0"
	h := newServeHarness(cfg)

	var obs *observability.Server
	h.deps.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
		obs = observability.NewServer(addr, ready, logger)
		return obs
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := h.run(ctx)
	addr := <-h.addr

	resp, err := http.Get("http://" + addr + "/api/v1/auth/check-auth")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get("http://" + obs.Addr() + "/metrics")
	require.NoError(t, err)
	var metrics bytes.Buffer
	_, err = metrics.ReadFrom(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Contains(t, metrics.String(), `credauth_http_requests_total{route="check-auth",status="401"} 1`)
	assert.Contains(t, metrics.String(), `credauth_auth_operations_total{operation="check_session",outcome="AUTH_UNAUTHENTICATED"} 1`)

	cancel()
	require.NoError(t, <-done)
}

func TestServe_FactoryFailures(t *testing.T) {
	boom := errors.New("boom")

	t.Run("config", func(t *testing.T) {
		h := newServeHarness(testConfig())
		h.deps.ConfigLoader = func(string, *pflag.FlagSet) (*config.Config, error) { return nil, boom }
		err := <-h.run(context.Background())
		require.ErrorIs(t, err, boom)
		errutil.AssertErrorContext(t, err, "operation", "load configuration")
	})

	t.Run("store", func(t *testing.T) {
		h := newServeHarness(testConfig())
		h.deps.StoreFactory = func(context.Context, *config.Config, *slog.Logger) (*StoreHandle, error) { return nil, boom }
		err := <-h.run(context.Background())
		require.ErrorIs(t, err, boom)
		errutil.AssertErrorContext(t, err, "store", config.StoreMemory)
	})

	t.Run("sender", func(t *testing.T) {
		h := newServeHarness(testConfig())
		h.deps.SenderFactory = func(*config.Config, *slog.Logger) (notify.Sender, error) { return nil, boom }
		err := <-h.run(context.Background())
		require.ErrorIs(t, err, boom)
	})

	t.Run("google", func(t *testing.T) {
		cfg := testConfig()
		cfg.Google.ClientID = "client.apps.googleusercontent.com"
		h := newServeHarness(cfg)
		h.deps.GoogleVerifierFactory = func(string) (httpapi.GoogleVerifier, error) { return nil, boom }
		err := <-h.run(context.Background())
		require.ErrorIs(t, err, boom)
	})

	t.Run("listener", func(t *testing.T) {
		h := newServeHarness(testConfig())
		h.deps.ListenerFactory = func(string, string) (net.Listener, error) { return nil, boom }
		err := <-h.run(context.Background())
		errutil.AssertErrorCode(t, err, "LISTEN_FAILED")
	})
}

func TestNewSender(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	cfg := testConfig()
	s, err := newSender(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &notify.LogSender{}, s)

	cfg.Notify.Kind = config.NotifierResend
	cfg.Notify.Resend.APIKey = "re_test"
	cfg.Notify.Resend.From = "auth@example.com"
	s, err = newSender(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &notify.ResendSender{}, s)

	cfg.Notify.Kind = "pigeon"
	_, err = newSender(cfg, logger)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}

func TestOpenStore_Memory(t *testing.T) {
	h, err := openStore(context.Background(), testConfig(), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	assert.IsType(t, &memstore.Store{}, h.Store)
	assert.Nil(t, h.Ping)
}

func TestNewHTTPServer_Timeouts(t *testing.T) {
	cfg := config.Default().Server
	srv := newHTTPServer(cfg, http.NotFoundHandler(), slog.New(slog.DiscardHandler))

	assert.Equal(t, cfg.ReadTimeout, srv.ReadTimeout)
	assert.Equal(t, cfg.WriteTimeout, srv.WriteTimeout)
	assert.Equal(t, cfg.IdleTimeout, srv.IdleTimeout)
	assert.Equal(t, 10*time.Second, srv.ReadHeaderTimeout)

	cfg.ReadTimeout = 2 * time.Second
	srv = newHTTPServer(cfg, http.NotFoundHandler(), slog.New(slog.DiscardHandler))
	assert.Equal(t, 2*time.Second, srv.ReadHeaderTimeout, "header timeout never exceeds the read timeout")
}

func TestNewHTTPServer_DropsSlowBody(t *testing.T) {
	cfg := config.Default().Server
	cfg.ReadTimeout = 200 * time.Millisecond

	srv := newHTTPServer(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body) //nolint:errcheck // read deadline ends the body
	}), slog.New(slog.DiscardHandler))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(ln) }() //nolint:errcheck // closed below
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("POST /api/v1/auth/signup HTTP/1.1\r\nHost: x\r\nContent-Length: 1024\r\n\r\n{"))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	start := time.Now()
	_, err = io.ReadAll(conn)
	require.NoError(t, err, "server closes the connection before the client deadline")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestMonitorServerErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	errCh <- errors.New("listener died")

	monitorServerErrors(ctx, cancel, errCh, "test", slog.New(slog.DiscardHandler))
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

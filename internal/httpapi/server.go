// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel/propagation"

	"github.com/holomush/credauth/internal/auth"
)

// SessionCookie is the name of the session cookie.
const SessionCookie = "token"

// Service is the account lifecycle the API drives. *auth.Lifecycle
// implements it.
type Service interface {
	Signup(ctx context.Context, in auth.SignupInput) (*auth.SignupResult, error)
	VerifyEmail(ctx context.Context, email, code string) (*auth.Authenticated, error)
	Login(ctx context.Context, email, password string) (*auth.Authenticated, error)
	LoginWithGoogle(ctx context.Context, email string) (*auth.Authenticated, error)
	SignupWithGoogle(ctx context.Context, profile auth.GoogleProfile) (*auth.Authenticated, error)
	RequestPasswordReset(ctx context.Context, email string) error
	CompletePasswordReset(ctx context.Context, in auth.CompleteResetInput) error
	CheckSession(ctx context.Context, token string) (*auth.AccountView, error)
	Logout(ctx context.Context) error
	DeleteAccount(ctx context.Context, accountID string) error
}

var _ Service = (*auth.Lifecycle)(nil)

// GoogleVerifier turns a Google ID token into a trusted profile.
type GoogleVerifier interface {
	Verify(ctx context.Context, credential string) (auth.GoogleProfile, error)
}

// RequestRecorder counts served requests.
type RequestRecorder interface {
	ObserveRequest(route string, status int)
}

// Options configures the API.
type Options struct {
	// Google may be nil; the Google routes then answer 503.
	Google       GoogleVerifier
	CookieSecure bool
	// SessionTTL sets the cookie Max-Age.
	SessionTTL  time.Duration
	CORSOrigins []string
	Recorder    RequestRecorder
	Logger      *slog.Logger
}

// Server serves the auth API.
type Server struct {
	svc     Service
	opts    Options
	logger  *slog.Logger
	handler http.Handler
}

// NewServer builds the router.
func NewServer(svc Service, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = auth.DefaultSessionTTL
	}
	s := &Server{svc: svc, opts: opts, logger: opts.Logger}

	r := mux.NewRouter()
	r.Use(s.observe)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, "Route not found.", nil)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, "Method not allowed.", nil)
	})

	api := r.PathPrefix("/api/v1/auth").Subrouter()
	api.HandleFunc("/login", s.handleLogin).Methods(http.MethodGet, http.MethodPost).Name("login")
	api.HandleFunc("/logout", s.handleLogout).Methods(http.MethodGet).Name("logout")
	api.Handle("/check-auth", s.requireSession(http.HandlerFunc(s.handleCheckAuth))).Methods(http.MethodGet).Name("check-auth")
	api.HandleFunc("/signup", s.handleSignup).Methods(http.MethodPost).Name("signup")
	api.HandleFunc("/login-with-google", s.handleLoginWithGoogle).Methods(http.MethodPost).Name("login-with-google")
	api.HandleFunc("/signup-with-google", s.handleSignupWithGoogle).Methods(http.MethodPost).Name("signup-with-google")
	api.HandleFunc("/send-reset-password-link", s.handleSendResetLink).Methods(http.MethodPost).Name("send-reset-password-link")
	api.HandleFunc("/verify-email", s.handleVerifyEmail).Methods(http.MethodPatch).Name("verify-email")
	api.HandleFunc("/reset-password", s.handleResetPassword).Methods(http.MethodPatch).Name("reset-password")
	api.Handle("/delete-user", s.requireSession(http.HandlerFunc(s.handleDeleteUser))).Methods(http.MethodDelete).Name("delete-user")

	s.handler = cors.New(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Traceparent", "Tracestate"},
		AllowCredentials: true,
	}).Handler(r)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

var propagator = propagation.TraceContext{}

// observe joins an incoming W3C trace and records status and latency per
// named route.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = r.WithContext(propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header)))
		m := httpsnoop.CaptureMetrics(next, w, r)
		route := routeName(r)
		if s.opts.Recorder != nil {
			s.opts.Recorder.ObserveRequest(route, m.Code)
		}
		s.logger.DebugContext(r.Context(), "http request",
			"method", r.Method, "route", route, "status", m.Code, "duration", m.Duration)
	})
}

func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if name := route.GetName(); name != "" {
			return name
		}
	}
	return "unmatched"
}

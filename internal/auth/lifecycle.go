// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/credauth/pkg/errutil"
)

// Lifecycle defaults.
const (
	DefaultVerificationCodeTTL = 30 * time.Minute
	DefaultResetTokenTTL       = 60 * time.Minute
	DefaultMinPasswordLength   = 8
)

var tracer = otel.Tracer("credauth/auth")

// Operation names used for logging, metrics and span names.
const (
	OpSignup                = "signup"
	OpVerifyEmail           = "verify_email"
	OpLogin                 = "login"
	OpLoginWithGoogle       = "login_with_google"
	OpSignupWithGoogle      = "signup_with_google"
	OpRequestPasswordReset  = "request_password_reset"
	OpCompletePasswordReset = "complete_password_reset"
	OpCheckSession          = "check_session"
	OpLogout                = "logout"
	OpDeleteAccount         = "delete_account"
)

// OutcomeOK is the outcome recorded for a successful operation.
const OutcomeOK = "ok"

// Observer records the outcome of each operation. outcome is OutcomeOK or
// the error code.
type Observer interface {
	ObserveOperation(operation, outcome string)
}

// Config tunes Lifecycle policy.
type Config struct {
	VerificationCodeTTL time.Duration
	ResetTokenTTL       time.Duration
	MinPasswordLength   int
	// ResetURL is the page that receives ?token=<reset token>.
	ResetURL string
	// RequireVerifiedLogin rejects password logins of unverified accounts.
	RequireVerifiedLogin bool
}

// DefaultConfig returns the as-built policy.
func DefaultConfig() Config {
	return Config{
		VerificationCodeTTL: DefaultVerificationCodeTTL,
		ResetTokenTTL:       DefaultResetTokenTTL,
		MinPasswordLength:   DefaultMinPasswordLength,
		ResetURL:            "http://localhost:5173/reset-password",
	}
}

// Deps are the collaborators of a Lifecycle. Store, Hasher, Secrets,
// Sessions and Notifier are required.
type Deps struct {
	Store     AccountStore
	Hasher    CredentialHasher
	Secrets   SecretGenerator
	Sessions  SessionIssuer
	Notifier  NotificationGateway
	Protected *ProtectedPolicy
	Observer  Observer
	Logger    *slog.Logger
	Clock     func() time.Time
}

// Authenticated is the result of every operation that signs a user in.
type Authenticated struct {
	Session Session
	Account AccountView
}

// Lifecycle orchestrates signup, verification, login, federated login,
// password reset, session checks and account deletion.
type Lifecycle struct {
	store     AccountStore
	hasher    CredentialHasher
	secrets   SecretGenerator
	sessions  SessionIssuer
	notifier  NotificationGateway
	protected *ProtectedPolicy
	observer  Observer
	logger    *slog.Logger
	now       func() time.Time
	cfg       Config
	resetURL  *url.URL
}

// NewLifecycle validates deps and cfg and creates a Lifecycle.
func NewLifecycle(deps Deps, cfg Config) (*Lifecycle, error) {
	if deps.Store == nil {
		return nil, oops.Code("LIFECYCLE_INVALID_DEPS").Errorf("account store is required")
	}
	if deps.Hasher == nil {
		return nil, oops.Code("LIFECYCLE_INVALID_DEPS").Errorf("credential hasher is required")
	}
	if deps.Secrets == nil {
		return nil, oops.Code("LIFECYCLE_INVALID_DEPS").Errorf("secret generator is required")
	}
	if deps.Sessions == nil {
		return nil, oops.Code("LIFECYCLE_INVALID_DEPS").Errorf("session issuer is required")
	}
	if deps.Notifier == nil {
		return nil, oops.Code("LIFECYCLE_INVALID_DEPS").Errorf("notification gateway is required")
	}
	if cfg.VerificationCodeTTL <= 0 || cfg.ResetTokenTTL <= 0 {
		return nil, oops.Code("LIFECYCLE_INVALID_CONFIG").
			With("verification_code_ttl", cfg.VerificationCodeTTL.String()).
			With("reset_token_ttl", cfg.ResetTokenTTL.String()).
			Errorf("secret ttls must be positive")
	}
	if cfg.MinPasswordLength < 1 {
		return nil, oops.Code("LIFECYCLE_INVALID_CONFIG").
			With("min_password_length", cfg.MinPasswordLength).
			Errorf("minimum password length must be positive")
	}
	resetURL, err := url.Parse(cfg.ResetURL)
	if err != nil || resetURL.Scheme == "" || resetURL.Host == "" {
		return nil, oops.Code("LIFECYCLE_INVALID_CONFIG").
			With("reset_url", cfg.ResetURL).
			Errorf("reset url must be absolute")
	}

	l := &Lifecycle{
		store:     deps.Store,
		hasher:    deps.Hasher,
		secrets:   deps.Secrets,
		sessions:  deps.Sessions,
		notifier:  deps.Notifier,
		protected: deps.Protected,
		observer:  deps.Observer,
		logger:    deps.Logger,
		now:       deps.Clock,
		cfg:       cfg,
		resetURL:  resetURL,
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l, nil
}

// Logout is stateless: the caller discards its credential. Sessions are not
// revocable server-side, so a copied token stays valid until it expires.
func (l *Lifecycle) Logout(ctx context.Context) error {
	_, span := l.begin(ctx, OpLogout)
	l.observe(span, OpLogout, nil)
	return nil
}

// DeleteAccount permanently removes an account. Protected accounts cannot
// be deleted.
func (l *Lifecycle) DeleteAccount(ctx context.Context, accountID string) (err error) {
	ctx, span := l.begin(ctx, OpDeleteAccount)
	defer func() { l.observe(span, OpDeleteAccount, err) }()

	id, parseErr := ulid.Parse(accountID)
	if parseErr != nil {
		return validationError("Invalid account id.")
	}

	account, err := l.store.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return errNoUser()
	}
	if err != nil {
		return l.internal(ctx, OpDeleteAccount, err)
	}

	if l.protected.IsProtected(account.Email) {
		return authError(CodeProtectedAccount, "This is a demo account; it cannot be deleted.").
			With("account_id", account.ID.String()).
			Errorf("protected account cannot be deleted")
	}

	deleted, err := l.store.Delete(ctx, id)
	if err != nil {
		return l.internal(ctx, OpDeleteAccount, err)
	}
	if !deleted {
		return errNoUser()
	}

	l.logger.InfoContext(ctx, "account deleted", "account_id", id.String())
	return nil
}

// issue signs a session for account and pairs it with the sanitized view.
func (l *Lifecycle) issue(ctx context.Context, op string, account *Account) (*Authenticated, error) {
	session, err := l.sessions.Issue(account.ID)
	if err != nil {
		return nil, l.internal(ctx, op, err)
	}
	return &Authenticated{Session: session, Account: account.View()}, nil
}

// internal logs the full failure and returns a generic error.
func (l *Lifecycle) internal(ctx context.Context, op string, err error) error {
	errutil.LogErrorContext(ctx, l.logger, "auth operation failed", oops.With("operation", op).Wrap(err))
	return authError(CodeInternal, InternalMessage).
		With("operation", op).
		Errorf("%s failed", op)
}

// deliver sends a notification and logs, but never returns, its failure.
func (l *Lifecycle) deliver(ctx context.Context, kind, email string, send func(context.Context) error) {
	if err := send(ctx); err != nil {
		errutil.LogErrorContext(ctx, l.logger, "notification delivery failed",
			oops.Code(CodeUpstreamDelivery).With("kind", kind).With("email", email).Wrap(err))
	}
}

// begin starts the span of op. observe ends it.
func (l *Lifecycle) begin(ctx context.Context, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "auth."+op,
		trace.WithAttributes(attribute.String("auth.operation", op)),
	)
}

func (l *Lifecycle) observe(span trace.Span, op string, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = ErrorCode(err)
		if outcome == "" {
			outcome = CodeInternal
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	span.SetAttributes(attribute.String("auth.outcome", outcome))
	span.End()

	if l.observer != nil {
		l.observer.ObserveOperation(op, outcome)
	}
}

func (l *Lifecycle) checkNewPassword(password, confirm string) error {
	if password != confirm {
		return validationError("Passwords do not match.")
	}
	if len([]rune(password)) < l.cfg.MinPasswordLength {
		msg := fmt.Sprintf("Password must be at least %d characters.", l.cfg.MinPasswordLength)
		return authError(CodeValidation, msg).
			With("min_length", l.cfg.MinPasswordLength).
			Errorf("%s", msg)
	}
	return nil
}

func errNoUser() error {
	return authError(CodeAccountNotFound, "No user found.").Errorf("account not found")
}

func errNoAccountForEmail() error {
	return authError(CodeAccountNotFound, "No account is associated with the provided email address.").
		Errorf("no account for email")
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads credauth settings from defaults, an optional YAML
// file, CREDAUTH_* environment variables and command-line flags, in that
// order of precedence.
package config

import (
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/credauth/internal/auth"
)

// EnvPrefix prefixes every environment override. A double underscore
// separates nested keys: CREDAUTH_SESSION__SECRET sets session.secret.
const EnvPrefix = "CREDAUTH_"

// Store kinds.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Notifier kinds.
const (
	NotifierLog    = "log"
	NotifierResend = "resend"
)

// Config is the full service configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server" json:"server"`
	Log     LogConfig     `koanf:"log" json:"log"`
	Store   StoreConfig   `koanf:"store" json:"store"`
	Session SessionConfig `koanf:"session" json:"session"`
	Auth    AuthConfig    `koanf:"auth" json:"auth"`
	Google  GoogleConfig  `koanf:"google" json:"google"`
	Notify  NotifyConfig  `koanf:"notify" json:"notify"`
}

// ServerConfig configures the HTTP listeners.
type ServerConfig struct {
	Addr string `koanf:"addr" json:"addr" jsonschema:"description=API listen address"`
	// MetricsAddr serves /metrics and health probes. Empty disables it.
	MetricsAddr     string        `koanf:"metrics_addr" json:"metrics_addr"`
	CORSOrigins     []string      `koanf:"cors_origins" json:"cors_origins,omitempty"`
	CookieSecure    bool          `koanf:"cookie_secure" json:"cookie_secure"`
	ReadTimeout     time.Duration `koanf:"read_timeout" json:"read_timeout" jsonschema:"type=string"`
	WriteTimeout    time.Duration `koanf:"write_timeout" json:"write_timeout" jsonschema:"type=string"`
	IdleTimeout     time.Duration `koanf:"idle_timeout" json:"idle_timeout" jsonschema:"type=string"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" json:"shutdown_timeout" jsonschema:"type=string"`
}

// LogConfig configures slog output.
type LogConfig struct {
	Format string `koanf:"format" json:"format" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" json:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// StoreConfig selects the account store.
type StoreConfig struct {
	Kind        string `koanf:"kind" json:"kind" jsonschema:"enum=memory,enum=postgres"`
	DSN         string `koanf:"dsn" json:"dsn,omitempty"`
	MaxConns    int32  `koanf:"max_conns" json:"max_conns,omitempty"`
	AutoMigrate bool   `koanf:"auto_migrate" json:"auto_migrate"`
}

// SessionConfig configures session credentials.
type SessionConfig struct {
	Secret string        `koanf:"secret" json:"secret"`
	TTL    time.Duration `koanf:"ttl" json:"ttl" jsonschema:"type=string"`
	Issuer string        `koanf:"issuer" json:"issuer"`
}

// AuthConfig tunes the account lifecycle.
type AuthConfig struct {
	VerificationCodeTTL  time.Duration `koanf:"verification_code_ttl" json:"verification_code_ttl" jsonschema:"type=string"`
	ResetTokenTTL        time.Duration `koanf:"reset_token_ttl" json:"reset_token_ttl" jsonschema:"type=string"`
	MinPasswordLength    int           `koanf:"min_password_length" json:"min_password_length"`
	ResetURL             string        `koanf:"reset_url" json:"reset_url"`
	RequireVerifiedLogin bool          `koanf:"require_verified_login" json:"require_verified_login"`
	// ProtectedAccounts are glob patterns of emails that cannot reset their
	// password or be deleted.
	ProtectedAccounts []string `koanf:"protected_accounts" json:"protected_accounts,omitempty"`
}

// GoogleConfig enables Google sign-in when ClientID is set.
type GoogleConfig struct {
	ClientID string `koanf:"client_id" json:"client_id,omitempty"`
}

// NotifyConfig configures outbound email.
type NotifyConfig struct {
	Kind       string       `koanf:"kind" json:"kind" jsonschema:"enum=log,enum=resend"`
	AppName    string       `koanf:"app_name" json:"app_name"`
	Workers    int          `koanf:"workers" json:"workers"`
	QueueSize  int          `koanf:"queue_size" json:"queue_size"`
	MaxRetries uint64       `koanf:"max_retries" json:"max_retries"`
	Resend     ResendConfig `koanf:"resend" json:"resend"`
}

// ResendConfig holds Resend API credentials.
type ResendConfig struct {
	APIKey  string `koanf:"api_key" json:"api_key,omitempty"`
	From    string `koanf:"from" json:"from,omitempty"`
	BaseURL string `koanf:"base_url" json:"base_url,omitempty"`
}

// Default returns the built-in configuration. It is not valid on its own:
// a session secret must be supplied.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			MetricsAddr:     "127.0.0.1:9100",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log:   LogConfig{Format: "json", Level: "info"},
		Store: StoreConfig{Kind: StoreMemory, MaxConns: 10},
		Session: SessionConfig{
			TTL:    auth.DefaultSessionTTL,
			Issuer: auth.DefaultSessionIssuer,
		},
		Auth: AuthConfig{
			VerificationCodeTTL: auth.DefaultVerificationCodeTTL,
			ResetTokenTTL:       auth.DefaultResetTokenTTL,
			MinPasswordLength:   auth.DefaultMinPasswordLength,
			ResetURL:            auth.DefaultConfig().ResetURL,
		},
		Notify: NotifyConfig{
			Kind:       NotifierLog,
			AppName:    "credauth",
			Workers:    4,
			QueueSize:  256,
			MaxRetries: 3,
		},
	}
}

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"addr":         "server.addr",
	"metrics-addr": "server.metrics_addr",
	"log-format":   "log.format",
	"log-level":    "log.level",
	"store":        "store.kind",
	"database-url": "store.dsn",
	"auto-migrate": "store.auto_migrate",
}

// listKeys are split on commas when set from the environment.
var listKeys = []string{"server.cors_origins", "auth.protected_accounts"}

// RegisterFlags adds the flags Load understands to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("addr", d.Server.Addr, "API listen address")
	fs.String("metrics-addr", d.Server.MetricsAddr, "metrics/health HTTP address (empty = disabled)")
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("store", d.Store.Kind, "account store (memory or postgres)")
	fs.String("database-url", "", "PostgreSQL connection string")
	fs.Bool("auto-migrate", false, "apply pending migrations on startup")
}

// Load reads the layered configuration and validates it.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	cfg, err := Read(path, fs)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read layers defaults, the YAML file at path (if non-empty), the
// environment and the changed flags of fs (if non-nil). It does not
// validate; commands that need only part of the config use it.
func Read(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaultMap(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "defaults").Wrap(err)
	}

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // operator-supplied config path
		if err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "file").With("path", path).Wrap(err)
		}
		if err := ValidateYAML(data); err != nil {
			return nil, oops.With("path", path).Wrap(err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "file").With("path", path).Wrap(err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "env").Wrap(err)
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "decode config").Wrap(err)
	}
	return &cfg, nil
}

// envKey turns CREDAUTH_AUTH__RESET_URL into auth.reset_url.
func envKey(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	key = strings.ReplaceAll(key, "__", ".")
	if slices.Contains(listKeys, key) {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return key, out
	}
	return key, value
}

func defaultMap() map[string]any {
	d := Default()
	return map[string]any{
		"server.addr":                 d.Server.Addr,
		"server.metrics_addr":         d.Server.MetricsAddr,
		"server.cookie_secure":        d.Server.CookieSecure,
		"server.read_timeout":         d.Server.ReadTimeout,
		"server.write_timeout":        d.Server.WriteTimeout,
		"server.idle_timeout":         d.Server.IdleTimeout,
		"server.shutdown_timeout":     d.Server.ShutdownTimeout,
		"log.format":                  d.Log.Format,
		"log.level":                   d.Log.Level,
		"store.kind":                  d.Store.Kind,
		"store.dsn":                   d.Store.DSN,
		"store.max_conns":             d.Store.MaxConns,
		"store.auto_migrate":          d.Store.AutoMigrate,
		"session.secret":              d.Session.Secret,
		"session.ttl":                 d.Session.TTL,
		"session.issuer":              d.Session.Issuer,
		"auth.verification_code_ttl":  d.Auth.VerificationCodeTTL,
		"auth.reset_token_ttl":        d.Auth.ResetTokenTTL,
		"auth.min_password_length":    d.Auth.MinPasswordLength,
		"auth.reset_url":              d.Auth.ResetURL,
		"auth.require_verified_login": d.Auth.RequireVerifiedLogin,
		"google.client_id":            d.Google.ClientID,
		"notify.kind":                 d.Notify.Kind,
		"notify.app_name":             d.Notify.AppName,
		"notify.workers":              d.Notify.Workers,
		"notify.queue_size":           d.Notify.QueueSize,
		"notify.max_retries":          d.Notify.MaxRetries,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	invalid := func(key, format string, args ...any) error {
		return oops.Code("CONFIG_INVALID").With("key", key).Errorf(format, args...)
	}

	if c.Server.Addr == "" {
		return invalid("server.addr", "listen address is required")
	}
	for _, t := range []struct {
		key string
		d   time.Duration
	}{
		{"server.read_timeout", c.Server.ReadTimeout},
		{"server.write_timeout", c.Server.WriteTimeout},
		{"server.idle_timeout", c.Server.IdleTimeout},
	} {
		if t.d <= 0 {
			return invalid(t.key, "%s must be positive", t.key)
		}
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return invalid("log.format", "log format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if len(c.Session.Secret) < auth.MinSessionSecretLen {
		return invalid("session.secret", "session secret must be at least %d bytes", auth.MinSessionSecretLen)
	}
	if c.Session.TTL <= 0 {
		return invalid("session.ttl", "session ttl must be positive")
	}

	switch c.Store.Kind {
	case StoreMemory:
	case StorePostgres:
		if c.Store.DSN == "" {
			return invalid("store.dsn", "a database url is required for the postgres store")
		}
	default:
		return invalid("store.kind", "unknown store %q", c.Store.Kind)
	}

	if c.Auth.VerificationCodeTTL <= 0 {
		return invalid("auth.verification_code_ttl", "verification code ttl must be positive")
	}
	if c.Auth.ResetTokenTTL <= 0 {
		return invalid("auth.reset_token_ttl", "reset token ttl must be positive")
	}
	if c.Auth.MinPasswordLength < auth.DefaultMinPasswordLength {
		return invalid("auth.min_password_length", "minimum password length must be at least %d", auth.DefaultMinPasswordLength)
	}
	if u, err := url.Parse(c.Auth.ResetURL); err != nil || u.Scheme == "" || u.Host == "" {
		return invalid("auth.reset_url", "reset url must be an absolute url, got %q", c.Auth.ResetURL)
	}

	switch c.Notify.Kind {
	case NotifierLog:
	case NotifierResend:
		if c.Notify.Resend.APIKey == "" || c.Notify.Resend.From == "" {
			return invalid("notify.resend", "resend notifier needs api_key and from")
		}
	default:
		return invalid("notify.kind", "unknown notifier %q", c.Notify.Kind)
	}
	if c.Notify.Workers < 1 || c.Notify.QueueSize < 1 {
		return invalid("notify.workers", "notifier workers and queue size must be positive")
	}
	return nil
}

// LifecycleConfig returns the auth policy part of c.
func (c *Config) LifecycleConfig() auth.Config {
	return auth.Config{
		VerificationCodeTTL:  c.Auth.VerificationCodeTTL,
		ResetTokenTTL:        c.Auth.ResetTokenTTL,
		MinPasswordLength:    c.Auth.MinPasswordLength,
		ResetURL:             c.Auth.ResetURL,
		RequireVerifiedLogin: c.Auth.RequireVerifiedLogin,
	}
}

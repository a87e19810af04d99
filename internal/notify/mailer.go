// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"bytes"
	"context"
	"embed"
	htmltemplate "html/template"
	"strconv"
	texttemplate "text/template"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/credauth/internal/auth"
)

//go:embed templates
var templatesFS embed.FS

var (
	htmlTemplates = htmltemplate.Must(htmltemplate.ParseFS(templatesFS, "templates/*.html"))
	textTemplates = texttemplate.Must(texttemplate.ParseFS(templatesFS, "templates/*.txt"))
)

// MailerConfig sets the wording of rendered emails.
type MailerConfig struct {
	AppName             string
	VerificationCodeTTL time.Duration
	ResetTokenTTL       time.Duration
}

// Mailer renders account emails and passes them to a Sender.
type Mailer struct {
	sender Sender
	cfg    MailerConfig
}

var _ auth.NotificationGateway = (*Mailer)(nil)

// NewMailer creates a Mailer. Zero config fields take the lifecycle defaults.
func NewMailer(sender Sender, cfg MailerConfig) *Mailer {
	if cfg.AppName == "" {
		cfg.AppName = "credauth"
	}
	if cfg.VerificationCodeTTL <= 0 {
		cfg.VerificationCodeTTL = auth.DefaultVerificationCodeTTL
	}
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = auth.DefaultResetTokenTTL
	}
	return &Mailer{sender: sender, cfg: cfg}
}

// SendVerificationCode emails a signup verification code.
func (m *Mailer) SendVerificationCode(ctx context.Context, email, code string) error {
	msg, err := m.render(KindVerificationCode, email, "Verify your email", map[string]any{
		"AppName": m.cfg.AppName,
		"Code":    code,
		"TTL":     humanize(m.cfg.VerificationCodeTTL),
	})
	if err != nil {
		return err
	}
	return m.sender.Send(ctx, msg)
}

// SendResetLink emails a password reset link.
func (m *Mailer) SendResetLink(ctx context.Context, email, link string) error {
	msg, err := m.render(KindResetLink, email, "Reset your password", map[string]any{
		"AppName": m.cfg.AppName,
		"Link":    link,
		"TTL":     humanize(m.cfg.ResetTokenTTL),
	})
	if err != nil {
		return err
	}
	return m.sender.Send(ctx, msg)
}

func (m *Mailer) render(kind, to, subject string, data map[string]any) (Message, error) {
	var htmlBuf, textBuf bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&htmlBuf, kind+".html", data); err != nil {
		return Message{}, oops.Code("NOTIFY_RENDER_FAILED").With("kind", kind).Wrap(err)
	}
	if err := textTemplates.ExecuteTemplate(&textBuf, kind+".txt", data); err != nil {
		return Message{}, oops.Code("NOTIFY_RENDER_FAILED").With("kind", kind).Wrap(err)
	}
	return Message{
		Kind:    kind,
		To:      to,
		Subject: m.cfg.AppName + ": " + subject,
		HTML:    htmlBuf.String(),
		Text:    textBuf.String(),
	}, nil
}

// humanize renders whole minutes and hours the way a person would write them.
func humanize(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}

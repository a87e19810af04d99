// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/samber/oops"
)

// DefaultResendBaseURL is the Resend REST endpoint.
const DefaultResendBaseURL = "https://api.resend.com"

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 4 << 10

// ResendSender delivers through the Resend email API.
type ResendSender struct {
	apiKey  string
	from    string
	baseURL string
	client  *http.Client
}

// ResendOption configures a ResendSender.
type ResendOption func(*ResendSender)

// WithResendBaseURL points the sender at another endpoint.
func WithResendBaseURL(u string) ResendOption {
	return func(s *ResendSender) { s.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) ResendOption {
	return func(s *ResendSender) { s.client = c }
}

// NewResendSender creates a sender authenticating with apiKey and sending
// from the given address, e.g. "Acme <noreply@acme.dev>".
func NewResendSender(apiKey, from string, opts ...ResendOption) (*ResendSender, error) {
	if apiKey == "" {
		return nil, oops.Code("NOTIFY_CONFIG_INVALID").Errorf("resend api key is required")
	}
	if from == "" {
		return nil, oops.Code("NOTIFY_CONFIG_INVALID").Errorf("sender address is required")
	}
	s := &ResendSender{
		apiKey:  apiKey,
		from:    from,
		baseURL: DefaultResendBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

// Send posts msg to /emails. 4xx responses other than 429 are permanent;
// 429, 5xx and transport errors may be retried.
func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(resendRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return oops.Code(CodeRejected).With("kind", msg.Kind).Wrap(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return oops.Code(CodeRejected).With("kind", msg.Kind).Wrap(err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return oops.Code(CodeUnavailable).With("kind", msg.Kind).Wrap(err)
	}
	defer resp.Body.Close() //nolint:errcheck // response already consumed

	if resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for keep-alive
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck // best-effort detail
	code := CodeRejected
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		code = CodeUnavailable
	}
	return oops.Code(code).
		With("kind", msg.Kind).
		With("status", resp.StatusCode).
		Errorf("resend responded %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/holomush/credauth/internal/auth"
)

type accountKey struct{}

// AccountFromContext returns the account stored by the session middleware.
func AccountFromContext(ctx context.Context) (*auth.AccountView, bool) {
	view, ok := ctx.Value(accountKey{}).(*auth.AccountView)
	return view, ok && view != nil
}

// WithAccount stores view on ctx.
func WithAccount(ctx context.Context, view *auth.AccountView) context.Context {
	return context.WithValue(ctx, accountKey{}, view)
}

// sessionToken reads the cookie first, then a bearer header.
func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

// requireSession resolves the presented credential to an account or answers
// with the lifecycle's error.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		view, err := s.svc.CheckSession(r.Context(), sessionToken(r))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), view)))
	})
}

func (s *Server) setSessionCookie(w http.ResponseWriter, session auth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    session.Token,
		Path:     "/",
		MaxAge:   int(s.opts.SessionTTL.Seconds()),
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

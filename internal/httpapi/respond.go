// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/holomush/credauth/internal/auth"
	"github.com/holomush/credauth/internal/federation"
)

type envelope struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

var statusByCode = map[string]int{
	auth.CodeValidation:             http.StatusUnprocessableEntity,
	auth.CodeDuplicateAccount:       http.StatusConflict,
	auth.CodeAccountNotFound:        http.StatusNotFound,
	auth.CodeInvalidCredentials:     http.StatusUnauthorized,
	auth.CodeInvalidCode:            http.StatusBadRequest,
	auth.CodeCodeExpired:            http.StatusGone,
	auth.CodeInvalidToken:           http.StatusUnauthorized,
	auth.CodeTokenExpired:           http.StatusGone,
	auth.CodeProtectedAccount:       http.StatusForbidden,
	auth.CodeUnauthenticated:        http.StatusUnauthorized,
	auth.CodeUnverifiedAccount:      http.StatusForbidden,
	auth.CodeInternal:               http.StatusInternalServerError,
	federation.CodeInvalidAssertion: http.StatusUnauthorized,
	codeBadRequest:                  http.StatusBadRequest,
	codeUnavailable:                 http.StatusServiceUnavailable,
}

// StatusFor returns the HTTP status for err. Unknown codes are 500.
func StatusFor(err error) int {
	if status, ok := statusByCode[auth.ErrorCode(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Message: message, Data: data}) //nolint:errcheck // client went away
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	message := auth.PublicMessage(err)
	if status == http.StatusInternalServerError {
		message = auth.InternalMessage
		if auth.ErrorCode(err) != auth.CodeInternal {
			s.logger.ErrorContext(r.Context(), "unclassified error at http boundary",
				"route", routeName(r), "error", err)
		}
	}
	writeJSON(w, status, message, nil)
}

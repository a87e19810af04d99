// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/samber/oops"

	"github.com/holomush/credauth/internal/auth"
)

const (
	codeBadRequest  = "HTTP_BAD_REQUEST"
	codeUnavailable = "HTTP_UNAVAILABLE"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 64 << 10

// Success messages.
const (
	msgUserFound     = "User found."
	msgEmailVerified = "Email verified successfully."
	msgLoggedIn      = "Login successful. Welcome back!"
	msgGoogleLogin   = "Login successful."
	msgGoogleSignup  = "Signup successful."
	msgResetSent     = "The link has been sent successfully. Kindly follow the provided link to reset your password."
	msgResetDone     = "Password reset successful."
	msgLoggedOut     = "Logout Successful."
	msgDeleted       = "Account Deleted Successfully."
)

type signupRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type googleRequest struct {
	Credential  string `json:"credential"`
	PhoneNumber string `json:"phoneNumber"`
}

type resetLinkRequest struct {
	Email string `json:"email"`
}

type resetRequest struct {
	Token              string `json:"token"`
	NewPassword        string `json:"newPassword"`
	ConfirmNewPassword string `json:"confirmNewPassword"`
}

// decode reads a JSON body into dst. An empty body leaves dst zero so the
// lifecycle reports the missing fields.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return oops.Code(codeBadRequest).Public("Request body must be valid JSON.").Wrap(err)
	}
	return nil
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.Signup(r.Context(), auth.SignupInput(req))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Message, res.Account)
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.VerifyEmail(r.Context(), req.Email, req.Code)
	s.signedIn(w, r, res, err, msgEmailVerified)
}

// handleLogin accepts query parameters on GET and a JSON body on POST.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if r.Method == http.MethodPost {
		if err := decode(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	} else {
		q := r.URL.Query()
		req = loginRequest{Email: q.Get("email"), Password: q.Get("password")}
	}
	res, err := s.svc.Login(r.Context(), req.Email, req.Password)
	s.signedIn(w, r, res, err, msgLoggedIn)
}

func (s *Server) handleLoginWithGoogle(w http.ResponseWriter, r *http.Request) {
	profile, ok := s.googleProfile(w, r)
	if !ok {
		return
	}
	res, err := s.svc.LoginWithGoogle(r.Context(), profile.Email)
	s.signedIn(w, r, res, err, msgGoogleLogin)
}

func (s *Server) handleSignupWithGoogle(w http.ResponseWriter, r *http.Request) {
	profile, ok := s.googleProfile(w, r)
	if !ok {
		return
	}
	res, err := s.svc.SignupWithGoogle(r.Context(), profile)
	s.signedIn(w, r, res, err, msgGoogleSignup)
}

// googleProfile verifies the posted credential. Only the verified email and
// profile claims are trusted; the phone number comes from the body.
func (s *Server) googleProfile(w http.ResponseWriter, r *http.Request) (auth.GoogleProfile, bool) {
	if s.opts.Google == nil {
		s.writeError(w, r, oops.Code(codeUnavailable).
			Public("Google sign-in is not configured.").
			Errorf("google client id not configured"))
		return auth.GoogleProfile{}, false
	}
	var req googleRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return auth.GoogleProfile{}, false
	}
	profile, err := s.opts.Google.Verify(r.Context(), req.Credential)
	if err != nil {
		s.logger.InfoContext(r.Context(), "google assertion rejected", "error", err)
		s.writeError(w, r, err)
		return auth.GoogleProfile{}, false
	}
	profile.PhoneNumber = req.PhoneNumber
	return profile, true
}

func (s *Server) handleSendResetLink(w http.ResponseWriter, r *http.Request) {
	var req resetLinkRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.RequestPasswordReset(r.Context(), req.Email); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgResetSent, nil)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.CompletePasswordReset(r.Context(), auth.CompleteResetInput(req)); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgResetDone, nil)
}

func (s *Server) handleCheckAuth(w http.ResponseWriter, r *http.Request) {
	view, _ := AccountFromContext(r.Context())
	writeJSON(w, http.StatusOK, msgUserFound, view)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Logout(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, msgLoggedOut, nil)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	view, ok := AccountFromContext(r.Context())
	if !ok {
		s.writeError(w, r, oops.Code(auth.CodeUnauthenticated).Public("Unauthorized - No token provided.").Errorf("no account in context"))
		return
	}
	if err := s.svc.DeleteAccount(r.Context(), view.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, msgDeleted, nil)
}

func (s *Server) signedIn(w http.ResponseWriter, r *http.Request, res *auth.Authenticated, err error, message string) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.setSessionCookie(w, res.Session)
	writeJSON(w, http.StatusOK, message, res.Account)
}

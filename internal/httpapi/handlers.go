// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/almclabs/doorman/internal/auth"
	"github.com/almclabs/doorman/pkg/errutil"
)

type ctxKey int

const requestIDKey ctxKey = 0

// credentialsRequest is the body of /verify and /register.
type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// sessionResponse is returned by /verify and /guest.
type sessionResponse struct {
	SessionID string `json:"session_id"`
	ExpiresAt string `json:"expires_at"`
}

// registerResponse is returned by /register.
type registerResponse struct {
	AccountID string `json:"account_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// withRequestID tags every request with a ULID and logs its completion.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ulid.Make().String()
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestID returns the request identifier from the context, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		s.countLogin("bad_request")
		return
	}

	session, err := s.service.VerifyCredentials(r.Context(), req.Username, req.Password, s.presentedSession(r))
	if err != nil {
		s.countLogin(statusLabel(err))
		s.writeAuthError(w, r, err)
		return
	}

	s.countLogin("ok")
	s.setSessionCookie(w, session)
	s.writeJSON(w, http.StatusOK, sessionResponse{
		SessionID: session.ID.String(),
		ExpiresAt: session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		s.countRegistration("bad_request")
		return
	}

	accountID, err := s.service.SaveCredentials(r.Context(), req.Username, req.Password)
	if err != nil {
		s.countRegistration(statusLabel(err))
		s.writeAuthError(w, r, err)
		return
	}

	s.countRegistration("ok")
	s.writeJSON(w, http.StatusCreated, registerResponse{AccountID: accountID.String()})
}

func (s *Server) handleGuest(w http.ResponseWriter, r *http.Request) {
	session, err := s.service.AdmitGuest(r.Context(), s.presentedSession(r))
	if err != nil {
		s.countGuest(statusLabel(err))
		s.writeAuthError(w, r, err)
		return
	}

	s.countGuest("ok")
	s.setSessionCookie(w, session)
	s.writeJSON(w, http.StatusOK, sessionResponse{
		SessionID: session.ID.String(),
		ExpiresAt: session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// presentedSession extracts the session reference from the request cookie.
// A missing or unparseable cookie means no reference was presented.
func (s *Server) presentedSession(r *http.Request) auth.SessionRef {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return auth.SessionRef{}
	}
	id, err := uuid.Parse(cookie.Value)
	if err != nil {
		return auth.SessionRef{}
	}
	return auth.PresentedSession(id)
}

func (s *Server) setSessionCookie(w http.ResponseWriter, session *auth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.ID.String(),
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// writeAuthError maps service errors to HTTP statuses. Client-caused
// failures carry their message through; everything else collapses to a
// generic 500 so internals never leak.
func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	if oopsErr, ok := oops.AsOops(err); ok {
		switch oopsErr.Code() {
		case "AUTH_CREDENTIAL_MISMATCH":
			status = http.StatusUnauthorized
			message = "invalid username or password"
		case "AUTH_SESSION_INTEGRITY":
			status = http.StatusUnauthorized
			message = "session rejected"
		case "AUTH_INVALID_PASSWORD":
			status = http.StatusBadRequest
			message = oopsErr.Error()
		}
	}

	if status == http.StatusInternalServerError {
		errutil.LogError(s.requestLogger(r), "request failed", err)
	}
	s.writeError(w, r, status, message)
}

func (s *Server) writeError(w http.ResponseWriter, _ *http.Request, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) requestLogger(r *http.Request) *slog.Logger {
	if id := RequestID(r.Context()); id != "" {
		return s.logger.With("request_id", id)
	}
	return s.logger
}

// statusLabel buckets an auth error for metrics.
func statusLabel(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return "error"
	}
	switch oopsErr.Code() {
	case "AUTH_CREDENTIAL_MISMATCH":
		return "mismatch"
	case "AUTH_INVALID_PASSWORD":
		return "rejected"
	case "AUTH_SESSION_INTEGRITY", "AUTH_INTEGRITY":
		return "integrity"
	default:
		return "error"
	}
}

func (s *Server) countLogin(status string) {
	if s.metrics != nil {
		s.metrics.LoginsTotal.WithLabelValues(status).Inc()
	}
}

func (s *Server) countRegistration(status string) {
	if s.metrics != nil {
		s.metrics.RegistrationsTotal.WithLabelValues(status).Inc()
	}
}

func (s *Server) countGuest(status string) {
	if s.metrics != nil {
		s.metrics.GuestAdmitsTotal.WithLabelValues(status).Inc()
	}
}

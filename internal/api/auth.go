package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	stateCookie    = "oauth_state"
	stateCookieAge = 600
)

// requireExtensionToken checks the bearer token sent by the browser extension.
// Preflight requests are answered by the CORS handler before reaching here.
func (s *Server) requireExtensionToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.ExtensionToken == "" {
			s.respondError(w, http.StatusUnauthorized, "extension ingestion is disabled")
			return
		}

		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.ExtensionToken)) != 1 {
			s.respondError(w, http.StatusUnauthorized, "invalid or missing extension token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleGoogleAuth redirects to the Google consent page
func (s *Server) handleGoogleAuth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Auth == nil {
		s.respondError(w, http.StatusServiceUnavailable, "google oauth is not configured")
		return
	}

	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth/google",
		MaxAge:   stateCookieAge,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, s.opts.Auth.AuthURL(state), http.StatusFound)
}

// handleGoogleCallback completes the consent flow and stores the token
func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if s.opts.Auth == nil {
		s.respondError(w, http.StatusServiceUnavailable, "google oauth is not configured")
		return
	}

	q := r.URL.Query()
	if errParam := q.Get("error"); errParam != "" {
		s.respondError(w, http.StatusBadRequest, "authorization denied: "+errParam)
		return
	}

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != q.Get("state") {
		s.respondError(w, http.StatusBadRequest, "invalid oauth state")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/auth/google", MaxAge: -1})

	if err := s.opts.Auth.Exchange(r.Context(), q.Get("code")); err != nil {
		slog.Error("OAuth exchange failed", "error", err)
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Google Drive authorized",
	})
}

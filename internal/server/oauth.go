package server

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/spotremote/internal/auth"
	"github.com/desertthunder/spotremote/internal/models"
	"github.com/desertthunder/spotremote/internal/shared"
)

// CallbackURL rebuilds the URL the provider redirected the browser to, without the query.
//
// With trustProxy the scheme and host come from X-Forwarded-Proto and X-Forwarded-Host when present.
func CallbackURL(r *http.Request, trustProxy bool) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	host := r.Host

	if trustProxy {
		if proto := firstForwarded(r.Header.Get("X-Forwarded-Proto")); proto != "" {
			scheme = proto
		}
		if fwdHost := firstForwarded(r.Header.Get("X-Forwarded-Host")); fwdHost != "" {
			host = fwdHost
		}
	}

	return scheme + "://" + host + r.URL.Path
}

func firstForwarded(v string) string {
	first, _, _ := strings.Cut(v, ",")
	return strings.TrimSpace(first)
}

func homeWithError(code string) string {
	return "/#" + url.Values{"error": {code}}.Encode()
}

// handleLogin stores a fresh state in the session and redirects to the provider.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	sess := SessionFrom(r.Context())
	target := s.flow.BeginLogin(sess)

	if err := s.sessions.Save(w, sess); err != nil {
		s.logger.Error("failed to save session before login", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to start login.")
		return
	}

	http.Redirect(w, r, target, http.StatusFound)
}

// handleCallback completes the login started by handleLogin.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	sess := SessionFrom(r.Context())
	q := r.URL.Query()

	var cbErr *auth.CallbackError
	if code := q.Get("error"); code != "" {
		cbErr = &auth.CallbackError{Code: code, Description: q.Get("error_description")}
	}

	redirectURI := CallbackURL(r, s.trustProxy)
	err := s.flow.HandleCallback(r.Context(), sess, q.Get("code"), q.Get("state"), redirectURI, cbErr)

	if sess.ID() != "" || err == nil {
		if saveErr := s.sessions.Save(w, sess); saveErr != nil {
			s.logger.Error("failed to save session after callback", "error", saveErr)
			if err == nil {
				err = saveErr
			}
		}
	}

	switch {
	case err == nil:
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	case errors.Is(err, shared.ErrStateMismatch):
		http.Redirect(w, r, homeWithError("state_mismatch"), http.StatusFound)
	default:
		http.Redirect(w, r, homeWithError("token_exchange_failed"), http.StatusFound)
	}
}

// requirePage sends unauthenticated browsers to /login.
func requirePage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := auth.RequireToken(SessionFrom(r.Context())); err != nil {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Destroy(w, SessionFrom(r.Context())); err != nil {
		s.logger.Error("failed to destroy session", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to log out.")
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleAccessToken hands the browser a currently valid access token.
func (s *Server) handleAccessToken(w http.ResponseWriter, r *http.Request) {
	token, ok := s.validToken(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": token})
}

// validToken returns a usable access token for the request's session, refreshing and saving it when needed.
//
// When no token can be produced the session is destroyed and a 401 has been written.
func (s *Server) validToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	sess := SessionFrom(r.Context())
	before, _ := sess.Tokens()

	token, err := s.refresher.EnsureValidToken(r.Context(), sess)
	if err != nil {
		msg := "Session expired or refresh failed. Please re-login."
		if errors.Is(err, shared.ErrNoRefreshToken) {
			msg = "No refresh token. Please re-login."
		}
		if derr := s.sessions.Destroy(w, sess); derr != nil {
			s.logger.Error("failed to destroy session", "error", derr)
		}
		writeError(w, http.StatusUnauthorized, msg)
		return "", false
	}

	if after, _ := sess.Tokens(); tokensChanged(before, after) {
		if err := s.sessions.Save(w, sess); err != nil {
			s.logger.Error("failed to save refreshed session", "error", err)
		}
	}
	return token, true
}

func tokensChanged(before, after models.TokenSet) bool {
	return before.AccessToken != after.AccessToken ||
		before.RefreshToken != after.RefreshToken ||
		!before.Expiry.Equal(after.Expiry)
}

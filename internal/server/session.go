package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotremote/internal/models"
	"github.com/desertthunder/spotremote/internal/repositories"
	"github.com/desertthunder/spotremote/internal/shared"
	"github.com/gorilla/securecookie"
)

type sessionKey struct{}

// SessionManager binds browser clients to stored sessions through a signed cookie holding the session ID.
//
// Sessions are created lazily: a client gets a stored record and a cookie on the first [SessionManager.Save].
type SessionManager struct {
	store  repositories.SessionStore
	codec  *securecookie.SecureCookie
	name   string
	secure bool
	maxAge time.Duration
	now    func() time.Time
	logger *log.Logger
}

// NewSessionManager creates a manager over store. cfg.Secret must already be set.
func NewSessionManager(store repositories.SessionStore, cfg shared.SessionConfig, logger *log.Logger, now func() time.Time) *SessionManager {
	if now == nil {
		now = time.Now
	}
	codec := securecookie.New([]byte(cfg.Secret), nil)
	codec.MaxAge(int(cfg.MaxAge / time.Second))

	return &SessionManager{
		store:  store,
		codec:  codec,
		name:   cfg.CookieName,
		secure: cfg.SecureCookie,
		maxAge: cfg.MaxAge,
		now:    now,
		logger: shared.WithLogger(logger, "component", "server.session"),
	}
}

// Load attaches the client's session to the request context, or a fresh unsaved one.
func (m *SessionManager) Load(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := m.lookup(r)
		if sess == nil {
			sess = models.NewSession(m.now())
		} else {
			m.touch(w, sess)
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}

func (m *SessionManager) lookup(r *http.Request) *models.Session {
	cookie, err := r.Cookie(m.name)
	if err != nil {
		return nil
	}

	var id string
	if err := m.codec.Decode(m.name, cookie.Value, &id); err != nil {
		m.logger.Debug("rejected session cookie", "error", err)
		return nil
	}

	sess, err := m.store.Get(id)
	if err != nil {
		if !errors.Is(err, shared.ErrSessionNotFound) {
			m.logger.Error("failed to load session", "session", id, "error", err)
		}
		return nil
	}

	if m.maxAge > 0 && m.now().Sub(sess.UpdatedAt()) > m.maxAge {
		if err := m.store.Delete(id); err != nil {
			m.logger.Error("failed to delete stale session", "session", id, "error", err)
		}
		return nil
	}
	return sess
}

// touch records activity on a stored session and re-issues its cookie so both expire max age after the last request.
func (m *SessionManager) touch(w http.ResponseWriter, sess *models.Session) {
	now := m.now()
	if err := m.store.Touch(sess.ID(), now); err != nil {
		m.logger.Error("failed to touch session", "session", sess.ID(), "error", err)
		return
	}
	sess.SetUpdatedAt(now)
	if err := m.setCookie(w, sess.ID()); err != nil {
		m.logger.Error("failed to refresh session cookie", "session", sess.ID(), "error", err)
	}
}

// SessionFrom returns the session attached by [SessionManager.Load], nil outside it.
func SessionFrom(ctx context.Context) *models.Session {
	sess, _ := ctx.Value(sessionKey{}).(*models.Session)
	return sess
}

// Save persists sess and (re)issues the session cookie.
func (m *SessionManager) Save(w http.ResponseWriter, sess *models.Session) error {
	sess.SetUpdatedAt(m.now())

	if sess.ID() != "" {
		err := m.store.Update(sess)
		if err == nil {
			return m.setCookie(w, sess.ID())
		}
		if !errors.Is(err, shared.ErrSessionNotFound) {
			return fmt.Errorf("failed to update session: %w", err)
		}
	}

	if err := m.store.Create(sess); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return m.setCookie(w, sess.ID())
}

// Destroy deletes the stored session and expires the cookie.
func (m *SessionManager) Destroy(w http.ResponseWriter, sess *models.Session) error {
	if sess.ID() != "" {
		if err := m.store.Delete(sess.ID()); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
	}
	sess.Clear()

	http.SetCookie(w, &http.Cookie{
		Name:     m.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (m *SessionManager) setCookie(w http.ResponseWriter, id string) error {
	value, err := m.codec.Encode(m.name, id)
	if err != nil {
		return fmt.Errorf("failed to sign session cookie: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(m.maxAge / time.Second),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// PurgeExpired removes sessions idle for longer than the configured max age.
func (m *SessionManager) PurgeExpired() (int, error) {
	if m.maxAge <= 0 {
		return 0, nil
	}
	return m.store.PurgeExpired(m.now().Add(-m.maxAge))
}

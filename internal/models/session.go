package models

import (
	"errors"
	"time"
)

// TokenSet is a snapshot of the tokens stored in a [Session].
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// Valid reports whether the access token may still be used at now.
func (t TokenSet) Valid(now time.Time) bool {
	return t.AccessToken != "" && now.Before(t.Expiry)
}

// Session is the server-side record for one browser client.
type Session struct {
	id                string
	pendingAuthState  string
	accessToken       string
	refreshToken      string
	accessTokenExpiry time.Time
	createdAt         time.Time
	updatedAt         time.Time
}

// NewSession creates an empty session stamped with now.
//
// The ID is assigned by the repository on Create.
func NewSession(now time.Time) *Session {
	return &Session{createdAt: now, updatedAt: now}
}

// RestoreSession rebuilds a session from stored fields.
func RestoreSession(id, pendingAuthState string, tokens TokenSet, createdAt, updatedAt time.Time) *Session {
	return &Session{
		id:                id,
		pendingAuthState:  pendingAuthState,
		accessToken:       tokens.AccessToken,
		refreshToken:      tokens.RefreshToken,
		accessTokenExpiry: tokens.Expiry,
		createdAt:         createdAt,
		updatedAt:         updatedAt,
	}
}

func (s *Session) ID() string           { return s.id }
func (s *Session) CreatedAt() time.Time { return s.createdAt }
func (s *Session) UpdatedAt() time.Time { return s.updatedAt }

func (s *Session) SetID(id string)              { s.id = id }
func (s *Session) SetUpdatedAt(now time.Time)   { s.updatedAt = now }
func (s *Session) PendingAuthState() string     { return s.pendingAuthState }
func (s *Session) SetPendingAuthState(v string) { s.pendingAuthState = v }

// TakePendingAuthState returns the pending state and clears it.
func (s *Session) TakePendingAuthState() string {
	state := s.pendingAuthState
	s.pendingAuthState = ""
	return state
}

// RefreshToken returns the stored refresh token, empty when absent.
func (s *Session) RefreshToken() string { return s.refreshToken }

// Tokens returns the stored token set; ok is false when no access token is stored.
func (s *Session) Tokens() (TokenSet, bool) {
	set := TokenSet{
		AccessToken:  s.accessToken,
		RefreshToken: s.refreshToken,
		Expiry:       s.accessTokenExpiry,
	}
	return set, s.accessToken != ""
}

// SetTokens stores a new access token expiring expiresIn seconds after now.
//
// An empty refresh keeps the current refresh token, since providers may omit it on refresh.
func (s *Session) SetTokens(access, refresh string, expiresIn int64, now time.Time) {
	s.accessToken = access
	s.accessTokenExpiry = now.Add(time.Duration(expiresIn) * time.Second)
	if refresh != "" {
		s.refreshToken = refresh
	}
}

// ClearTokens drops the access token, refresh token and expiry.
func (s *Session) ClearTokens() {
	s.accessToken = ""
	s.refreshToken = ""
	s.accessTokenExpiry = time.Time{}
}

// Clear resets every session-scoped field.
func (s *Session) Clear() {
	s.ClearTokens()
	s.pendingAuthState = ""
}

// Validate checks the record before it is written to storage.
func (s *Session) Validate() error {
	if s.id == "" {
		return errors.New("session id is required")
	}
	if s.accessToken != "" && s.accessTokenExpiry.IsZero() {
		return errors.New("access token stored without expiry")
	}
	return nil
}

package models

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestSession(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("SetTokens", func(t *testing.T) {
		s := NewSession(now)
		s.SetTokens("AT1", "RT1", 3600, now)

		got, ok := s.Tokens()
		if !ok {
			t.Fatal("expected tokens to be present")
		}

		want := TokenSet{AccessToken: "AT1", RefreshToken: "RT1", Expiry: now.Add(time.Hour)}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("tokens mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("SetTokens Keeps Refresh Token When Omitted", func(t *testing.T) {
		s := NewSession(now)
		s.SetTokens("AT1", "RT1", 3600, now)
		s.SetTokens("AT2", "", 1800, now.Add(time.Hour))

		got, _ := s.Tokens()
		want := TokenSet{AccessToken: "AT2", RefreshToken: "RT1", Expiry: now.Add(90 * time.Minute)}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("tokens mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("SetTokens Overwrites Refresh Token When Supplied", func(t *testing.T) {
		s := NewSession(now)
		s.SetTokens("AT1", "RT1", 3600, now)
		s.SetTokens("AT2", "RT2", 3600, now)

		if s.RefreshToken() != "RT2" {
			t.Errorf("expected RT2, got %s", s.RefreshToken())
		}
	})

	t.Run("Tokens Empty", func(t *testing.T) {
		s := NewSession(now)
		if _, ok := s.Tokens(); ok {
			t.Error("new session should not report tokens")
		}
	})

	t.Run("TokenSet Valid", func(t *testing.T) {
		tc := []struct {
			name string
			set  TokenSet
			at   time.Time
			want bool
		}{
			{name: "before expiry", set: TokenSet{AccessToken: "a", Expiry: now.Add(time.Second)}, at: now, want: true},
			{name: "at expiry", set: TokenSet{AccessToken: "a", Expiry: now}, at: now, want: false},
			{name: "after expiry", set: TokenSet{AccessToken: "a", Expiry: now}, at: now.Add(time.Second), want: false},
			{name: "no access token", set: TokenSet{Expiry: now.Add(time.Hour)}, at: now, want: false},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				if got := tt.set.Valid(tt.at); got != tt.want {
					t.Errorf("Valid() = %v, want %v", got, tt.want)
				}
			})
		}
	})

	t.Run("TakePendingAuthState", func(t *testing.T) {
		s := NewSession(now)
		s.SetPendingAuthState("xyz")

		if got := s.TakePendingAuthState(); got != "xyz" {
			t.Errorf("expected xyz, got %s", got)
		}
		if got := s.TakePendingAuthState(); got != "" {
			t.Errorf("pending state should be single-use, got %s", got)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		s := NewSession(now)
		s.SetPendingAuthState("xyz")
		s.SetTokens("AT1", "RT1", 3600, now)
		s.Clear()

		if s.PendingAuthState() != "" || s.RefreshToken() != "" {
			t.Error("expected all fields cleared")
		}
		if _, ok := s.Tokens(); ok {
			t.Error("expected no tokens after clear")
		}
	})

	t.Run("Validate", func(t *testing.T) {
		s := NewSession(now)
		if err := s.Validate(); err == nil {
			t.Error("expected error for missing id")
		}

		s.SetID("id-1")
		if err := s.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}

		broken := RestoreSession("id-2", "", TokenSet{AccessToken: "AT"}, now, now)
		if err := broken.Validate(); err == nil {
			t.Error("expected error for access token without expiry")
		}
	})

	t.Run("Model Interface", func(t *testing.T) {
		var _ Model = NewSession(now)
	})
}

package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/spotremote/internal/models"
	"github.com/desertthunder/spotremote/internal/shared"
	tu "github.com/desertthunder/spotremote/internal/testing"
	"golang.org/x/oauth2"
)

const testRedirect = "http://127.0.0.1:3000/callback"

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func newSession(id string) *models.Session {
	sess := models.NewSession(testNow)
	sess.SetID(id)
	return sess
}

func newTestFlow(t *testing.T, state string) (*Flow, *tu.FakeProvider) {
	t.Helper()
	p := tu.NewFakeProvider(t)
	f := NewFlow(p.Config(testRedirect), shared.NewLogger(&strings.Builder{}),
		WithStateGenerator(func(int) string { return state }),
		WithFlowClock(fixedClock))
	return f, p
}

func TestRandomState(t *testing.T) {
	hexPattern := regexp.MustCompile(`^[0-9a-f]+$`)

	t.Run("Length And Alphabet", func(t *testing.T) {
		for _, n := range []int{1, 15, 16, 32} {
			s := RandomState(n)
			if len(s) != n {
				t.Errorf("expected length %d, got %d (%q)", n, len(s), s)
			}
			if !hexPattern.MatchString(s) {
				t.Errorf("expected lowercase hex, got %q", s)
			}
		}
	})

	t.Run("Non Positive Length", func(t *testing.T) {
		if s := RandomState(0); s != "" {
			t.Errorf("expected empty state, got %q", s)
		}
	})

	t.Run("Unique", func(t *testing.T) {
		seen := make(map[string]bool)
		for range 1000 {
			s := RandomState(DefaultStateLength)
			if seen[s] {
				t.Fatalf("duplicate state %q", s)
			}
			seen[s] = true
		}
	})
}

func TestFlow(t *testing.T) {
	t.Run("BeginLogin", func(t *testing.T) {
		t.Run("Builds Authorization URL And Stores State", func(t *testing.T) {
			f, p := newTestFlow(t, "abc")
			sess := newSession("s1")

			raw := f.BeginLogin(sess)
			u, err := url.Parse(raw)
			if err != nil {
				t.Fatalf("unexpected error parsing url: %v", err)
			}

			if got := u.Scheme + "://" + u.Host + u.Path; got != p.Server.URL+"/authorize" {
				t.Errorf("expected authorize endpoint, got %s", got)
			}

			q := u.Query()
			want := map[string]string{
				"response_type": "code",
				"client_id":     tu.FakeClientID,
				"redirect_uri":  testRedirect,
				"state":         "abc",
				"scope":         "user-read-playback-state user-modify-playback-state",
			}
			for key, value := range want {
				if q.Get(key) != value {
					t.Errorf("expected %s=%q, got %q", key, value, q.Get(key))
				}
			}

			if sess.PendingAuthState() != "abc" {
				t.Errorf("expected pending state 'abc', got %q", sess.PendingAuthState())
			}
			if PhaseOf(sess) != PhaseAwaitingCallback {
				t.Errorf("expected awaiting_callback, got %s", PhaseOf(sess))
			}
		})

		t.Run("Replaces Previous State", func(t *testing.T) {
			p := tu.NewFakeProvider(t)
			f := NewFlow(p.Config(testRedirect), shared.NewLogger(&strings.Builder{}))
			sess := newSession("s1")

			f.BeginLogin(sess)
			first := sess.PendingAuthState()
			f.BeginLogin(sess)

			if len(first) != DefaultStateLength {
				t.Errorf("expected state length %d, got %d", DefaultStateLength, len(first))
			}
			if sess.PendingAuthState() == first {
				t.Error("expected second login to replace the pending state")
			}
		})
	})

	t.Run("HandleCallback", func(t *testing.T) {
		t.Run("Stores Tokens On Success", func(t *testing.T) {
			f, p := newTestFlow(t, "xyz")
			sess := newSession("s1")
			f.BeginLogin(sess)

			err := f.HandleCallback(context.Background(), sess, "abc", "xyz", testRedirect, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			tokens, ok := sess.Tokens()
			if !ok {
				t.Fatal("expected tokens to be stored")
			}
			if tokens.AccessToken != "AT1" || tokens.RefreshToken != "RT1" {
				t.Errorf("expected AT1/RT1, got %s/%s", tokens.AccessToken, tokens.RefreshToken)
			}
			if want := testNow.Add(time.Hour); !tokens.Expiry.Equal(want) {
				t.Errorf("expected expiry %v, got %v", want, tokens.Expiry)
			}
			if sess.PendingAuthState() != "" {
				t.Error("expected pending state to be cleared")
			}
			if PhaseOf(sess) != PhaseAuthenticated {
				t.Errorf("expected authenticated, got %s", PhaseOf(sess))
			}

			reqs := p.TokenRequests()
			if len(reqs) != 1 {
				t.Fatalf("expected 1 token request, got %d", len(reqs))
			}
			if reqs[0].Get("grant_type") != "authorization_code" || reqs[0].Get("code") != "abc" {
				t.Errorf("unexpected token request form: %v", reqs[0])
			}
		})

		t.Run("Sends Redirect URI Unchanged", func(t *testing.T) {
			f, p := newTestFlow(t, "xyz")
			sess := newSession("s1")
			f.BeginLogin(sess)

			inbound := "https://abcd.ngrok.app/callback"
			if err := f.HandleCallback(context.Background(), sess, "abc", "xyz", inbound, nil); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got := p.TokenRequests()[0].Get("redirect_uri"); got != inbound {
				t.Errorf("expected redirect_uri %q, got %q", inbound, got)
			}
		})

		t.Run("State Mismatch Never Exchanges", func(t *testing.T) {
			f, p := newTestFlow(t, "xyz")
			sess := newSession("s1")
			f.BeginLogin(sess)

			err := f.HandleCallback(context.Background(), sess, "abc", "other", testRedirect, nil)
			if !errors.Is(err, shared.ErrStateMismatch) {
				t.Fatalf("expected ErrStateMismatch, got %v", err)
			}
			if n := len(p.TokenRequests()); n != 0 {
				t.Errorf("expected no token requests, got %d", n)
			}
			if _, ok := sess.Tokens(); ok {
				t.Error("expected no tokens after mismatch")
			}
			if sess.PendingAuthState() != "" {
				t.Error("expected pending state to be consumed on mismatch")
			}
		})

		t.Run("Missing State Is Mismatch", func(t *testing.T) {
			f, p := newTestFlow(t, "xyz")

			t.Run("No Pending Login", func(t *testing.T) {
				sess := newSession("s1")
				err := f.HandleCallback(context.Background(), sess, "abc", "xyz", testRedirect, nil)
				if !errors.Is(err, shared.ErrStateMismatch) {
					t.Errorf("expected ErrStateMismatch, got %v", err)
				}
			})

			t.Run("No Returned State", func(t *testing.T) {
				sess := newSession("s2")
				f.BeginLogin(sess)
				err := f.HandleCallback(context.Background(), sess, "abc", "", testRedirect, nil)
				if !errors.Is(err, shared.ErrStateMismatch) {
					t.Errorf("expected ErrStateMismatch, got %v", err)
				}
			})

			if n := len(p.TokenRequests()); n != 0 {
				t.Errorf("expected no token requests, got %d", n)
			}
		})

		t.Run("Replay Is Rejected", func(t *testing.T) {
			f, p := newTestFlow(t, "xyz")
			sess := newSession("s1")
			f.BeginLogin(sess)

			if err := f.HandleCallback(context.Background(), sess, "abc", "xyz", testRedirect, nil); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			err := f.HandleCallback(context.Background(), sess, "abc", "xyz", testRedirect, nil)
			if !errors.Is(err, shared.ErrStateMismatch) {
				t.Errorf("expected ErrStateMismatch on replay, got %v", err)
			}
			if n := len(p.TokenRequests()); n != 1 {
				t.Errorf("expected exactly 1 token request, got %d", n)
			}
		})

		t.Run("Missing Code", func(t *testing.T) {
			f, p := newTestFlow(t, "xyz")
			sess := newSession("s1")
			f.BeginLogin(sess)

			cbErr := &CallbackError{Code: "access_denied"}
			err := f.HandleCallback(context.Background(), sess, "", "xyz", testRedirect, cbErr)
			if !errors.Is(err, shared.ErrTokenExchangeFailed) {
				t.Errorf("expected ErrTokenExchangeFailed, got %v", err)
			}
			if n := len(p.TokenRequests()); n != 0 {
				t.Errorf("expected no token requests, got %d", n)
			}
		})

		t.Run("Exchange Rejected", func(t *testing.T) {
			f, p := newTestFlow(t, "xyz")
			p.SetExchange(http.StatusBadRequest, map[string]any{"error": "invalid_grant"})
			sess := newSession("s1")
			f.BeginLogin(sess)

			err := f.HandleCallback(context.Background(), sess, "abc", "xyz", testRedirect, nil)
			if !errors.Is(err, shared.ErrTokenExchangeFailed) {
				t.Errorf("expected ErrTokenExchangeFailed, got %v", err)
			}
			if _, ok := sess.Tokens(); ok {
				t.Error("expected no tokens after failed exchange")
			}
			if PhaseOf(sess) != PhaseIdle {
				t.Errorf("expected idle, got %s", PhaseOf(sess))
			}
		})
	})
}

func TestRefresher(t *testing.T) {
	setup := func(t *testing.T) (*Refresher, *tu.FakeProvider) {
		t.Helper()
		p := tu.NewFakeProvider(t)
		r := NewRefresher(p.Config(testRedirect), shared.NewLogger(&strings.Builder{}), fixedClock)
		return r, p
	}

	stored := func(id, access, refresh string, expiry time.Time) *models.Session {
		tokens := models.TokenSet{AccessToken: access, RefreshToken: refresh, Expiry: expiry}
		return models.RestoreSession(id, "", tokens, testNow, testNow)
	}

	t.Run("Valid Token Is Returned Without Refresh", func(t *testing.T) {
		r, p := setup(t)
		sess := stored("s1", "AT1", "RT1", testNow.Add(10*time.Minute))

		token, err := r.EnsureValidToken(context.Background(), sess)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if token != "AT1" {
			t.Errorf("expected AT1, got %s", token)
		}
		if n := len(p.TokenRequests()); n != 0 {
			t.Errorf("expected no token requests, got %d", n)
		}
	})

	t.Run("Expired Token Is Refreshed Once", func(t *testing.T) {
		r, p := setup(t)
		sess := stored("s1", "AT1", "RT1", testNow)

		token, err := r.EnsureValidToken(context.Background(), sess)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if token != "AT2" {
			t.Errorf("expected AT2, got %s", token)
		}

		reqs := p.TokenRequests()
		if len(reqs) != 1 {
			t.Fatalf("expected 1 token request, got %d", len(reqs))
		}
		if reqs[0].Get("grant_type") != "refresh_token" || reqs[0].Get("refresh_token") != "RT1" {
			t.Errorf("unexpected refresh form: %v", reqs[0])
		}

		tokens, _ := sess.Tokens()
		if tokens.AccessToken != "AT2" {
			t.Errorf("expected stored AT2, got %s", tokens.AccessToken)
		}
		if tokens.RefreshToken != "RT1" {
			t.Errorf("expected refresh token to be kept, got %s", tokens.RefreshToken)
		}
		if want := testNow.Add(time.Hour); !tokens.Expiry.Equal(want) {
			t.Errorf("expected expiry %v, got %v", want, tokens.Expiry)
		}

		if _, err := r.EnsureValidToken(context.Background(), sess); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n := len(p.TokenRequests()); n != 1 {
			t.Errorf("expected refreshed token to be reused, got %d requests", n)
		}
	})

	t.Run("Rotated Refresh Token Is Stored", func(t *testing.T) {
		r, p := setup(t)
		p.SetRefresh(http.StatusOK, map[string]any{
			"access_token": "AT2", "token_type": "Bearer", "refresh_token": "RT2", "expires_in": 3600,
		})
		sess := stored("s1", "AT1", "RT1", testNow.Add(-time.Minute))

		if _, err := r.EnsureValidToken(context.Background(), sess); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sess.RefreshToken() != "RT2" {
			t.Errorf("expected RT2, got %s", sess.RefreshToken())
		}
	})

	t.Run("No Refresh Token", func(t *testing.T) {
		r, p := setup(t)
		sess := stored("s1", "AT1", "", testNow.Add(-time.Minute))

		_, err := r.EnsureValidToken(context.Background(), sess)
		if !errors.Is(err, shared.ErrNoRefreshToken) {
			t.Errorf("expected ErrNoRefreshToken, got %v", err)
		}
		if n := len(p.TokenRequests()); n != 0 {
			t.Errorf("expected no token requests, got %d", n)
		}
	})

	t.Run("Refresh Rejected", func(t *testing.T) {
		r, p := setup(t)
		p.SetRefresh(http.StatusBadRequest, map[string]any{"error": "invalid_grant"})
		sess := stored("s1", "AT1", "RT1", testNow.Add(-time.Minute))

		_, err := r.EnsureValidToken(context.Background(), sess)
		if !errors.Is(err, shared.ErrRefreshFailed) {
			t.Errorf("expected ErrRefreshFailed, got %v", err)
		}
		tokens, _ := sess.Tokens()
		if tokens.AccessToken != "AT1" {
			t.Errorf("expected session to be left untouched, got %s", tokens.AccessToken)
		}
	})

	t.Run("Concurrent Refreshes Are Coalesced", func(t *testing.T) {
		r, p := setup(t)
		release := make(chan struct{})
		p.OnTokenCall(func(string) { <-release })

		const callers = 8
		var wg sync.WaitGroup
		tokens := make([]string, callers)
		errs := make([]error, callers)
		for i := range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				sess := stored("shared", "AT1", "RT1", testNow.Add(-time.Minute))
				tokens[i], errs[i] = r.EnsureValidToken(context.Background(), sess)
			}()
		}

		time.Sleep(100 * time.Millisecond)
		close(release)
		wg.Wait()

		for i := range callers {
			if errs[i] != nil {
				t.Errorf("caller %d: unexpected error: %v", i, errs[i])
			}
			if tokens[i] != "AT2" {
				t.Errorf("caller %d: expected AT2, got %s", i, tokens[i])
			}
		}
		if n := p.TokenCalls("refresh_token"); n != 1 {
			t.Errorf("expected 1 refresh call, got %d", n)
		}
	})
}

func TestRequireToken(t *testing.T) {
	t.Run("Nil Session", func(t *testing.T) {
		if err := RequireToken(nil); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("Empty Session", func(t *testing.T) {
		if err := RequireToken(newSession("s1")); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("Expired Token Passes", func(t *testing.T) {
		tokens := models.TokenSet{AccessToken: "AT1", Expiry: testNow.Add(-time.Hour)}
		sess := models.RestoreSession("s1", "", tokens, testNow, testNow)
		if err := RequireToken(sess); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})
}

func TestExpiresIn(t *testing.T) {
	t.Run("Raw Field", func(t *testing.T) {
		if got := expiresIn(&oauth2.Token{ExpiresIn: 3600}, testNow); got != 3600 {
			t.Errorf("expected 3600, got %d", got)
		}
	})

	t.Run("Expiry Fallback", func(t *testing.T) {
		tok := &oauth2.Token{Expiry: testNow.Add(90 * time.Second)}
		if got := expiresIn(tok, testNow); got != 90 {
			t.Errorf("expected 90, got %d", got)
		}
	})

	t.Run("Missing", func(t *testing.T) {
		if got := expiresIn(&oauth2.Token{}, testNow); got != 0 {
			t.Errorf("expected 0, got %d", got)
		}
	})
}

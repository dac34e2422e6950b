package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotremote/internal/models"
	"github.com/desertthunder/spotremote/internal/shared"
	"golang.org/x/oauth2"
)

// Phase is the position of a session in the authorization flow.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingCallback
	PhaseAuthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingCallback:
		return "awaiting_callback"
	case PhaseAuthenticated:
		return "authenticated"
	default:
		return "idle"
	}
}

// PhaseOf derives the flow phase from the session record.
//
// A pending login takes precedence so a re-login from an authenticated session reports AwaitingCallback.
func PhaseOf(sess *models.Session) Phase {
	if sess.PendingAuthState() != "" {
		return PhaseAwaitingCallback
	}
	if _, ok := sess.Tokens(); ok {
		return PhaseAuthenticated
	}
	return PhaseIdle
}

// CallbackError carries the error parameters the provider put on the redirect instead of a code.
type CallbackError struct {
	Code        string
	Description string
}

// Flow drives the authorization code grant for one provider.
type Flow struct {
	endpoint    TokenEndpoint
	logger      *log.Logger
	stateLength int
	newState    func(int) string
	now         func() time.Time
}

// FlowOption customizes a [Flow].
type FlowOption func(*Flow)

// WithStateGenerator replaces [RandomState].
func WithStateGenerator(fn func(int) string) FlowOption {
	return func(f *Flow) { f.newState = fn }
}

// WithStateLength sets the login state length (default [DefaultStateLength]).
func WithStateLength(n int) FlowOption {
	return func(f *Flow) { f.stateLength = n }
}

// WithFlowClock replaces time.Now for expiry arithmetic.
func WithFlowClock(now func() time.Time) FlowOption {
	return func(f *Flow) { f.now = now }
}

// NewFlow creates a [Flow] over the given token endpoint.
func NewFlow(endpoint TokenEndpoint, logger *log.Logger, opts ...FlowOption) *Flow {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	f := &Flow{
		endpoint:    endpoint,
		logger:      shared.WithLogger(logger, "component", "auth.flow"),
		stateLength: DefaultStateLength,
		newState:    RandomState,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// BeginLogin stores a new pending state in the session and returns the provider authorization URL.
//
// The URL carries response_type=code, client_id, the configured redirect_uri, scope and state.
// Any earlier pending state is replaced.
func (f *Flow) BeginLogin(sess *models.Session) string {
	state := f.newState(f.stateLength)
	sess.SetPendingAuthState(state)

	f.logger.Debug("login redirect issued", "session", sess.ID())
	return f.endpoint.AuthCodeURL(state)
}

// HandleCallback validates the returned state and exchanges the authorization code for tokens.
//
// redirectURI must be the URI the provider redirected to (scheme, host and path of the inbound
// request); the provider rejects the exchange unless it matches the one used for the login redirect.
// cbErr is the provider's error parameters, if any.
func (f *Flow) HandleCallback(ctx context.Context, sess *models.Session, code, state, redirectURI string, cbErr *CallbackError) error {
	pending := sess.TakePendingAuthState()

	if state == "" || pending == "" || subtle.ConstantTimeCompare([]byte(state), []byte(pending)) != 1 {
		f.logger.Warn("state mismatch on callback",
			"session", sess.ID(), "state_present", state != "", "pending_present", pending != "")
		return shared.ErrStateMismatch
	}

	if code == "" {
		if cbErr != nil {
			f.logger.Error("provider returned no authorization code",
				"session", sess.ID(), "error", cbErr.Code, "description", cbErr.Description)
		}
		return fmt.Errorf("%w: missing authorization code", shared.ErrTokenExchangeFailed)
	}

	now := f.now()
	tok, err := f.endpoint.Exchange(ctx, code, oauth2.SetAuthURLParam("redirect_uri", redirectURI))
	if err != nil {
		status, body := providerDetail(err)
		f.logger.Error("token exchange failed",
			"session", sess.ID(), "redirect_uri", redirectURI, "status", status, "body", body, "error", err)
		return fmt.Errorf("%w: %v", shared.ErrTokenExchangeFailed, err)
	}

	if tok.AccessToken == "" {
		f.logger.Error("token exchange returned no access token", "session", sess.ID())
		return fmt.Errorf("%w: empty access token", shared.ErrTokenExchangeFailed)
	}

	ttl := expiresIn(tok, now)
	sess.SetTokens(tok.AccessToken, tok.RefreshToken, ttl, now)
	f.logger.Info("tokens received", "session", sess.ID(), "refresh_token", tok.RefreshToken != "", "expires_in", ttl)

	return nil
}

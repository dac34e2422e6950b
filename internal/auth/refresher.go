package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotremote/internal/models"
	"github.com/desertthunder/spotremote/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// Refresher keeps a session's access token usable.
type Refresher struct {
	endpoint TokenEndpoint
	logger   *log.Logger
	now      func() time.Time
	group    singleflight.Group
}

// refreshed is the shared result of one refresh call.
type refreshed struct {
	token *oauth2.Token
	at    time.Time
}

// NewRefresher creates a [Refresher]. A nil clock means time.Now.
func NewRefresher(endpoint TokenEndpoint, logger *log.Logger, now func() time.Time) *Refresher {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if now == nil {
		now = time.Now
	}
	return &Refresher{
		endpoint: endpoint,
		logger:   shared.WithLogger(logger, "component", "auth.refresher"),
		now:      now,
	}
}

// EnsureValidToken returns an access token that is valid now, refreshing it when needed.
//
// The session is updated in place on refresh; the caller persists it. Returns
// [shared.ErrNoRefreshToken] or [shared.ErrRefreshFailed] when the session cannot recover.
func (r *Refresher) EnsureValidToken(ctx context.Context, sess *models.Session) (string, error) {
	if tokens, ok := sess.Tokens(); ok && tokens.Valid(r.now()) {
		return tokens.AccessToken, nil
	}

	refreshToken := sess.RefreshToken()
	if refreshToken == "" {
		return "", shared.ErrNoRefreshToken
	}

	// Detached from the caller's cancellation: followers share this call.
	refreshCtx := context.WithoutCancel(ctx)
	v, err, coalesced := r.group.Do(sess.ID(), func() (any, error) {
		at := r.now()
		tok, err := r.endpoint.TokenSource(refreshCtx, &oauth2.Token{RefreshToken: refreshToken}).Token()
		if err != nil {
			return nil, err
		}
		return refreshed{token: tok, at: at}, nil
	})
	if err != nil {
		status, body := providerDetail(err)
		r.logger.Error("token refresh failed", "session", sess.ID(), "status", status, "body", body, "error", err)
		return "", fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	res := v.(refreshed)
	if res.token.AccessToken == "" {
		r.logger.Error("token refresh returned no access token", "session", sess.ID())
		return "", fmt.Errorf("%w: empty access token", shared.ErrRefreshFailed)
	}

	newRefresh := ""
	if res.token.RefreshToken != refreshToken {
		newRefresh = res.token.RefreshToken
	}
	sess.SetTokens(res.token.AccessToken, newRefresh, expiresIn(res.token, res.at), res.at)

	r.logger.Info("access token refreshed",
		"session", sess.ID(), "rotated_refresh_token", newRefresh != "", "coalesced", coalesced)

	return res.token.AccessToken, nil
}

package auth

import (
	"github.com/desertthunder/spotremote/internal/models"
	"github.com/desertthunder/spotremote/internal/shared"
)

// RequireToken returns [shared.ErrNotAuthenticated] unless the session holds an access token.
//
// Expiry is not checked here.
func RequireToken(sess *models.Session) error {
	if sess == nil {
		return shared.ErrNotAuthenticated
	}
	if _, ok := sess.Tokens(); !ok {
		return shared.ErrNotAuthenticated
	}
	return nil
}

// Package auth implements the session-bound OAuth2 authorization code flow against Spotify.
//
// # Flow
//
// [Flow] moves a [models.Session] through three phases:
//
//	Idle -> AwaitingCallback -> Authenticated
//
// [Flow.BeginLogin] stores a fresh anti-forgery state in the session and returns the provider
// authorization URL. [Flow.HandleCallback] consumes that state (single use, even on failure),
// rejects mismatches with [shared.ErrStateMismatch] before any network call, and exchanges the
// code for tokens. A failed exchange returns [shared.ErrTokenExchangeFailed] and leaves the
// session Idle.
//
// # Refresh
//
// [Refresher.EnsureValidToken] returns the stored access token while it is unexpired and otherwise
// performs exactly one refresh_token grant. Concurrent requests from the same session share a
// single provider call. [shared.ErrNoRefreshToken] and [shared.ErrRefreshFailed] mean the session
// cannot recover; callers destroy it.
//
// # Gate
//
// [RequireToken] is the authentication precondition for proxied API calls. It only checks that an
// access token is present; expiry is handled by the refresher right before forwarding.
//
// Token endpoint calls go through [TokenEndpoint], which [*oauth2.Config] satisfies. The Spotify
// config uses client-credentials Basic auth ([oauth2.AuthStyleInHeader]).
package auth

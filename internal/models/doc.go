// Package models defines the session entity and persistence interfaces for spotremote.
//
// A [Session] is the per-browser record owned by the HTTP session layer. It carries the
// pending OAuth state of an in-flight login and the Spotify token set obtained from a code
// exchange or refresh:
//   - pending auth state: written by a login redirect, consumed by the callback
//   - access token, refresh token and access token expiry: written by exchange/refresh
//
// The token methods on [Session] ([Session.Tokens], [Session.SetTokens], [Session.ClearTokens])
// form the session token store; expiry arithmetic lives here so every writer computes it the same way.
//
// All persistent entities implement the [Model] interface providing ID, timestamps and validation.
// The [Repository] interface defines standard CRUD operations for storage backends.
package models

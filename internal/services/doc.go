// Package services talks to the Spotify Web API on behalf of a signed-in user.
//
// # Forwarder
//
// [Forwarder] performs one authenticated call: it joins the endpoint to the API base URL,
// sets the bearer token, encodes the JSON body and query, and waits on an outbound rate limiter.
// A 2xx status produces an [APIResponse]; anything else produces an [UpstreamError] which
// matches [shared.ErrUpstreamAPI] with errors.Is. Transport failures are also reported as an
// [UpstreamError], with a zero StatusCode.
//
// # Player
//
// [SpotifyPlayer] implements [Player] on top of a Forwarder: device listing, pause, skip,
// search and the two-step start playback (transfer to a device, then play).
//
// Access tokens are passed in per call; this package never refreshes them.
package services

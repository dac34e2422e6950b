// Package server is the HTTP surface of the remote: routing, middleware, browser sessions,
// the login handlers and the JSON proxy routes.
//
// # Router Infrastructure
//
// [BasicRouter] implements [Router] on top of [http.ServeMux] with method filtering.
// Global [Middleware] wraps in reverse order (last added executes first) and only applies to routes
// registered after it; per-route middleware is passed to [BasicRouter.Handle].
//
// # Sessions
//
// [SessionManager] keeps one stored record per browser, keyed by an ID carried in a signed cookie.
// The record holds the pending login state and the token set. Handlers receive the loaded session
// through the request context ([SessionFrom]) and persist changes with [SessionManager.Save].
//
// # Routes
//
//	GET  /                  index page
//	GET  /login             302 to the provider authorization URL
//	GET  /callback          state check + code exchange, 302 to /dashboard or /#error=...
//	GET  /dashboard         player page, 302 to /login without a token
//	POST /logout            destroy the session, 303 to /
//	GET  /get_access_token  current (refreshed if needed) access token
//	GET  /api/devices       \
//	PUT  /api/play           |
//	PUT  /api/pause          | proxied to the Web API, 401 without a token
//	POST /api/next           |
//	POST /api/previous       |
//	GET  /api/search        /
//	GET  /healthz           liveness
package server

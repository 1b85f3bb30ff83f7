// Package server provides the eventory HTTP gateway and the loopback OAuth callback used by the CLI.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns, so "GET /api/users/{uid}" and
// "POST /api/users" may share a path prefix and path values are read with [http.Request.PathValue].
//
// # Gateway
//
// [NewGateway] assembles the gateway: request IDs, real client IPs, panic recovery, request logging,
// per-IP rate limiting, CORS for /api, and the [AuthGate] in front of every page. The API serves
//
//	POST|GET|DELETE /api/session          session cookie exchange
//	GET  /api/users, /api/users/{uid}     user records
//	POST /api/users                       signup
//	POST|GET /api/users/{uid}/youtube     channel link
//	GET  /health
//
// Every JSON answer is a [models.Envelope]. Pages that pass the gate are proxied to the configured
// upstream renderer, or described by a small route document when there is none.
//
// # Sessions
//
// Provider id tokens are checked by a [Verifier] and exchanged for an HS256 session token minted by
// [SessionTokens] and carried in the session_token cookie.
//
// # OAuth Callback Handler
//
// OAuthHandler implements the OAuth2 authorization code callback flow.
//
// The handler validates the state parameter (CSRF protection), exchanges the authorization code for tokens,
// and sends the result through a channel.
//
// It only processes one callback to prevent replay attacks.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server

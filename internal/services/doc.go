// Package services implements the collaborators the login flow invokes.
//
// # Sign-in
//
// [GoogleAuthenticator] runs the OAuth2 authorization code flow (with PKCE) against Google through a
// loopback callback served by [server.OAuthHandler]. The identity is read from the id_token claims
// returned with the access token.
//
// # YouTube Data API
//
// [YouTubeService] reads the signed-in user's own channel (channels?mine=true) with their access token.
// Outbound calls go through a [rate.Limiter].
//
// # Gateway API
//
// [APIService] is the HTTP client for the eventory gateway: user records, sessions, and channel links.
// Requests carrying a user identity send its id_token as a bearer token.
//
// # Login Capabilities
//
// [LoginCapabilities] composes the three into the capability set of [login.Machine] and stores the
// session token minted by the gateway in a [SessionFile].
//
// # Error Handling
//
// Services wrap errors from the shared package:
//   - [shared.ErrAuthFailed] : sign-in was refused or abandoned
//   - [shared.ErrAPIRequest] : an HTTP call returned an unexpected status
//   - [shared.ErrChannelNotFound] : the account has no YouTube channel
//   - [shared.ErrConflict] : the user record already exists
package services

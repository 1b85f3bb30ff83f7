package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/eventory/internal/models"
	"github.com/desertthunder/eventory/internal/server"
	"github.com/desertthunder/eventory/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const defaultSignInTimeout = 2 * time.Minute

var defaultGoogleScopes = []string{"openid", "email", "profile", "https://www.googleapis.com/auth/youtube.readonly"}

// GoogleAuthenticator signs users in with Google using the authorization code flow with PKCE.
//
// The callback is served by a short-lived loopback server on the host and port of the redirect URI.
// A redirect URI with port 0 listens on a free port and rewrites the URI accordingly.
type GoogleAuthenticator struct {
	config  *oauth2.Config
	logger  *log.Logger
	timeout time.Duration

	// Open presents the consent page to the user. Defaults to [shared.OpenBrowser].
	Open func(authURL string) error
}

// NewGoogleAuthenticator builds an authenticator from the Google credentials in config.
func NewGoogleAuthenticator(config shared.GoogleConfig, logger *log.Logger) *GoogleAuthenticator {
	scopes := config.Scopes
	if len(scopes) == 0 {
		scopes = defaultGoogleScopes
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &GoogleAuthenticator{
		config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURI,
			Scopes:       scopes,
			Endpoint:     endpoints.Google,
		},
		logger:  logger,
		timeout: defaultSignInTimeout,
		Open:    shared.OpenBrowser,
	}
}

// WithEndpoint replaces the provider endpoint.
func (g *GoogleAuthenticator) WithEndpoint(e oauth2.Endpoint) *GoogleAuthenticator {
	g.config.Endpoint = e
	return g
}

// WithTimeout bounds how long SignIn waits for the callback.
func (g *GoogleAuthenticator) WithTimeout(d time.Duration) *GoogleAuthenticator {
	g.timeout = d
	return g
}

// SignIn runs the browser consent flow and returns the signed-in identity.
func (g *GoogleAuthenticator) SignIn(ctx context.Context) (*models.Identity, error) {
	redirect, err := url.Parse(g.config.RedirectURL)
	if err != nil || redirect.Host == "" {
		return nil, fmt.Errorf("%w: redirect_uri %q", shared.ErrInvalidConfig, g.config.RedirectURL)
	}

	listener, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", redirect.Host, err)
	}

	config := *g.config
	redirect.Host = listener.Addr().String()
	config.RedirectURL = redirect.String()

	state := shared.GenerateState()
	verifier := oauth2.GenerateVerifier()

	oauthHandler := server.NewOAuthHandler(&config, state, oauth2.VerifierOption(verifier))
	router := server.NewBasicRouter()
	router.Handler(oauthHandler)

	httpServer := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}

	serverErrors := make(chan error, 1)
	go func() {
		g.logger.Infof("starting OAuth callback server at %v", listener.Addr())
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			g.logger.Warn("error shutting down callback server", "error", err)
		}
	}()

	authURL := config.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(verifier))
	if err := g.Open(authURL); err != nil {
		g.logger.Warnf("failed to open browser automatically %v", err)
		g.logger.Infof("open this URL in your browser: %s", authURL)
	}

	timeout := time.NewTimer(g.timeout)
	defer timeout.Stop()

	var result server.OAuthResult
	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: sign-in timed out after %v", shared.ErrTimeout, g.timeout)
	case <-ctx.Done():
		oauthHandler.Fail(ctx.Err())
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, result.Error())
	}
	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}

	return identityFromToken(result.Token)
}

// identityFromToken reads the OpenID claims carried next to the access token.
func identityFromToken(token *oauth2.Token) (*models.Identity, error) {
	raw, _ := token.Extra("id_token").(string)
	claims, err := shared.ParseIDToken(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	return &models.Identity{
		UID:         claims.Subject,
		DisplayName: claims.Name,
		Email:       claims.Email,
		PhotoURL:    claims.Picture,
		IDToken:     raw,
		AccessToken: token.AccessToken,
		Expiry:      token.Expiry,
	}, nil
}

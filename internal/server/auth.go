package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/desertthunder/eventory/internal/models"
	"github.com/desertthunder/eventory/internal/routes"
	"github.com/desertthunder/eventory/internal/shared"
)

// Verifier checks a provider id token presented by a client and returns the identity it names.
type Verifier interface {
	Verify(ctx context.Context, idToken string) (*models.Identity, error)
}

// OIDCConfig selects the id tokens an [OIDCVerifier] accepts.
type OIDCConfig struct {
	ClientID string
	CertsURL string   // defaults to [shared.GoogleCertsURL]
	Issuers  []string // defaults to [shared.GoogleIssuers]
	Client   *http.Client
	Now      func() time.Time
}

// OIDCVerifier accepts RS256 id tokens signed by a key from the provider's JWKS, issued for
// the configured client by a known issuer, and not yet expired.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
	issuers  []string
}

// NewOIDCVerifier builds a verifier whose key set is fetched lazily from c.CertsURL using ctx.
func NewOIDCVerifier(ctx context.Context, c OIDCConfig) (*OIDCVerifier, error) {
	if c.ClientID == "" {
		return nil, fmt.Errorf("%w: google client_id is required to verify id tokens", shared.ErrMissingCredentials)
	}
	if c.CertsURL == "" {
		c.CertsURL = shared.GoogleCertsURL
	}
	if len(c.Issuers) == 0 {
		c.Issuers = shared.GoogleIssuers
	}
	if c.Client != nil {
		ctx = oidc.ClientContext(ctx, c.Client)
	}

	keys := oidc.NewRemoteKeySet(ctx, c.CertsURL)
	verifier := oidc.NewVerifier("", keys, &oidc.Config{
		ClientID:             c.ClientID,
		SupportedSigningAlgs: []string{oidc.RS256},
		// Google uses two spellings of its issuer, checked in Verify.
		SkipIssuerCheck: true,
		Now:             c.Now,
	})
	return &OIDCVerifier{verifier: verifier, issuers: c.Issuers}, nil
}

func (v *OIDCVerifier) Verify(ctx context.Context, idToken string) (*models.Identity, error) {
	if idToken == "" {
		return nil, fmt.Errorf("%w: empty id token", shared.ErrInvalidToken)
	}

	token, err := v.verifier.Verify(ctx, idToken)
	if err != nil {
		var expired *oidc.TokenExpiredError
		if errors.As(err, &expired) {
			return nil, fmt.Errorf("%w: expired at %s", shared.ErrTokenExpired, expired.Expiry.Format(time.RFC3339))
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidToken, err)
	}
	if !slices.Contains(v.issuers, token.Issuer) {
		return nil, fmt.Errorf("%w: unexpected issuer %q", shared.ErrInvalidToken, token.Issuer)
	}
	if token.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", shared.ErrInvalidToken)
	}

	var claims shared.IDTokenClaims
	if err := token.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidToken, err)
	}

	return &models.Identity{
		UID:         token.Subject,
		DisplayName: claims.Name,
		Email:       claims.Email,
		PhotoURL:    claims.Picture,
		IDToken:     idToken,
		Expiry:      token.Expiry,
	}, nil
}

type identityKey struct{}

// IdentityFromContext returns the identity attached by [RequireBearer], or nil.
func IdentityFromContext(ctx context.Context) *models.Identity {
	identity, _ := ctx.Value(identityKey{}).(*models.Identity)
	return identity
}

// RequireBearer answers 401 unless the request carries "Authorization: Bearer <idToken>" accepted by v.
func RequireBearer(v Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				respondError(w, fmt.Errorf("%w: missing bearer token", shared.ErrNotAuthenticated))
				return
			}

			identity, err := v.Verify(r.Context(), token)
			if err != nil {
				respondError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey{}, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuthGate keeps pages behind a session.
//
// Without a session, non-public paths redirect to the login page with the original location as
// redirectTo. With a session, the login page redirects to its sanitized redirectTo. Requests must
// pass through [SessionTokens.Sessions] first.
func AuthGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signedIn := SessionFromContext(r.Context()) != nil
		path := r.URL.Path

		switch {
		case routes.IsLogin(path):
			if signedIn {
				http.Redirect(w, r, routes.SafeRedirect(r.URL.Query().Get("redirectTo")), http.StatusSeeOther)
				return
			}
		case path == "/health", routes.IsPublic(path):
		case !signedIn:
			http.Redirect(w, r, routes.LoginRedirectPath(r.URL.RequestURI()), http.StatusSeeOther)
			return
		}

		next.ServeHTTP(w, r)
	})
}

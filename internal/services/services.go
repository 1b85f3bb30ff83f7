// package services defines the sign-in, YouTube, and gateway clients used by the login flow
package services

import (
	"context"

	"github.com/desertthunder/eventory/internal/models"
)

// Authenticator signs a user in with the identity provider.
type Authenticator interface {
	SignIn(ctx context.Context) (*models.Identity, error)
}

// ChannelSource looks up the YouTube channel owned by an identity.
type ChannelSource interface {
	Channel(ctx context.Context, identity *models.Identity) (*models.Channel, error)
}

// Gateway is the subset of the eventory API used by the login flow.
type Gateway interface {
	LookupUser(ctx context.Context, identity *models.Identity, uid string) (*models.User, error)
	RegisterUser(ctx context.Context, identity *models.Identity, form models.SignupForm) (*models.User, error)
	CreateSession(ctx context.Context, idToken string) (string, error)
	LinkChannel(ctx context.Context, identity *models.Identity, channel *models.Channel) (*models.Channel, error)
}

package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/eventory/internal/login"
	"github.com/desertthunder/eventory/internal/models"
	"github.com/desertthunder/eventory/internal/shared"
)

var _ login.Capabilities = (*LoginCapabilities)(nil)

// LoginCapabilities backs the login flow with the identity provider, the YouTube Data API, and the gateway.
//
// It remembers the identity from the last successful sign-in so user lookups carry its id token,
// and the session token from the last session exchange.
type LoginCapabilities struct {
	auth     Authenticator
	channels ChannelSource
	gateway  Gateway
	logger   *log.Logger

	mu       sync.Mutex
	identity *models.Identity
	session  string
}

// NewLoginCapabilities wires the collaborators of the login flow.
func NewLoginCapabilities(auth Authenticator, channels ChannelSource, gateway Gateway, logger *log.Logger) *LoginCapabilities {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &LoginCapabilities{auth: auth, channels: channels, gateway: gateway, logger: logger}
}

// Identity returns the identity of the last successful sign-in, or nil.
func (c *LoginCapabilities) Identity() *models.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// SessionToken returns the gateway session token from the last session exchange.
func (c *LoginCapabilities) SessionToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *LoginCapabilities) SignIn(ctx context.Context) (*models.Identity, error) {
	identity, err := c.auth.SignIn(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.identity = identity
	c.mu.Unlock()

	c.logger.Info("signed in", "identity", identity)
	return identity, nil
}

func (c *LoginCapabilities) LookupUser(ctx context.Context, uid string) (*models.User, error) {
	return c.gateway.LookupUser(ctx, c.Identity(), uid)
}

func (c *LoginCapabilities) RegisterUser(ctx context.Context, identity *models.Identity, form models.SignupForm) (*models.User, error) {
	user, err := c.gateway.RegisterUser(ctx, identity, form)
	if err != nil {
		return nil, fmt.Errorf("failed to register user: %w", err)
	}
	c.logger.Info("registered user", "uid", user.UID, "role", user.Role)
	return user, nil
}

func (c *LoginCapabilities) CreateSession(ctx context.Context, idToken string) error {
	token, err := c.gateway.CreateSession(ctx, idToken)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	c.mu.Lock()
	c.session = token
	c.mu.Unlock()
	return nil
}

func (c *LoginCapabilities) FetchChannel(ctx context.Context, identity *models.Identity) (*models.Channel, error) {
	return c.channels.Channel(ctx, identity)
}

// UpdateChannel links channel to identity. Returning users arrive without a fetched channel, so a nil
// channel is fetched from YouTube first.
func (c *LoginCapabilities) UpdateChannel(ctx context.Context, identity *models.Identity, channel *models.Channel) (*models.Channel, error) {
	if channel == nil {
		fetched, err := c.channels.Channel(ctx, identity)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch channel: %w", err)
		}
		channel = fetched
	}

	linked, err := c.gateway.LinkChannel(ctx, identity, channel)
	if err != nil {
		return nil, fmt.Errorf("failed to link channel: %w", err)
	}
	return linked, nil
}

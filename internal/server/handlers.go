package server

import (
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/eventory/internal/models"
	"github.com/desertthunder/eventory/internal/repositories"
	"github.com/desertthunder/eventory/internal/shared"
)

// API serves the session, user record, and channel link endpoints.
type API struct {
	users    *repositories.UserRepository
	channels *repositories.ChannelRepository
	verifier Verifier
	sessions *SessionTokens
	secure   bool
	logger   *log.Logger
}

// NewAPI creates the API handlers. Secure marks session cookies as HTTPS-only.
func NewAPI(users *repositories.UserRepository, channels *repositories.ChannelRepository, verifier Verifier, sessions *SessionTokens, secure bool, logger *log.Logger) *API {
	return &API{
		users:    users,
		channels: channels,
		verifier: verifier,
		sessions: sessions,
		secure:   secure,
		logger:   logger.WithPrefix("api"),
	}
}

// Register adds the API routes to r. Routes that need a bearer id token are wrapped with [RequireBearer].
func (a *API) Register(r Router) {
	bearer := RequireBearer(a.verifier)

	r.Handle(http.MethodPost, "/api/session", http.HandlerFunc(a.CreateSession))
	r.Handle(http.MethodGet, "/api/session", http.HandlerFunc(a.GetSession))
	r.Handle(http.MethodDelete, "/api/session", http.HandlerFunc(a.DeleteSession))

	r.Handle(http.MethodGet, "/api/users", bearer(http.HandlerFunc(a.ListUsers)))
	r.Handle(http.MethodPost, "/api/users", bearer(http.HandlerFunc(a.CreateUser)))
	r.Handle(http.MethodGet, "/api/users/{uid}", bearer(http.HandlerFunc(a.GetUser)))
	r.Handle(http.MethodPost, "/api/users/{uid}/youtube", bearer(http.HandlerFunc(a.LinkChannel)))
	r.Handle(http.MethodGet, "/api/users/{uid}/youtube", bearer(http.HandlerFunc(a.GetChannel)))

	r.Handle("", "/api/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, fmt.Errorf("route %s %w", r.URL.Path, shared.ErrNotFound))
	}))
}

// CreateSession exchanges a provider id token for a session cookie.
func (a *API) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req models.SessionRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, err)
		return
	}

	identity, err := a.verifier.Verify(r.Context(), req.IDToken)
	if err != nil {
		a.logger.Warn("rejected id token", "error", err)
		respondError(w, err)
		return
	}

	token, expires, err := a.sessions.Mint(identity.UID, identity.Email)
	if err != nil {
		a.logger.Error("failed to mint session", "error", err)
		respondError(w, err)
		return
	}

	SetSessionCookie(w, token, a.sessions.maxAge, a.secure)
	respondOK(w, http.StatusOK, models.Session{UID: identity.UID, Email: identity.Email, ExpiresAt: expires})
}

// GetSession describes the current session.
func (a *API) GetSession(w http.ResponseWriter, r *http.Request) {
	claims := SessionFromContext(r.Context())
	if claims == nil {
		respondError(w, shared.ErrNotAuthenticated)
		return
	}
	respondOK(w, http.StatusOK, claims.Session())
}

// DeleteSession clears the session cookie.
func (a *API) DeleteSession(w http.ResponseWriter, r *http.Request) {
	ClearSessionCookie(w, a.secure)
	w.WriteHeader(http.StatusNoContent)
}

// ListUsers returns the users whose records the caller may view.
func (a *API) ListUsers(w http.ResponseWriter, r *http.Request) {
	caller := IdentityFromContext(r.Context())

	users, err := a.users.List(r.Context(), nil)
	if err != nil {
		a.logger.Error("failed to list users", "error", err)
		respondError(w, err)
		return
	}

	visible := make([]*models.User, 0, len(users))
	for _, u := range users {
		if canView(u, caller.UID) {
			visible = append(visible, u)
		}
	}
	respondOK(w, http.StatusOK, visible)
}

// GetUser returns the caller's own user record.
func (a *API) GetUser(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")
	if err := requireOwner(r, uid); err != nil {
		respondError(w, err)
		return
	}

	user, err := a.users.Get(r.Context(), uid)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, http.StatusOK, user)
}

// CreateUser signs the caller up with the submitted form.
func (a *API) CreateUser(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFromContext(r.Context())

	var form models.SignupForm
	if err := decodeBody(w, r, &form); err != nil {
		respondError(w, err)
		return
	}

	user := models.NewUser(identity, form)
	if err := user.Validate(); err != nil {
		respondError(w, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return
	}

	if err := a.users.Create(r.Context(), user); err != nil {
		if !errors.Is(err, shared.ErrConflict) {
			a.logger.Error("failed to create user", "uid", user.UID, "error", err)
		}
		respondError(w, err)
		return
	}

	a.logger.Info("user signed up", "uid", user.UID, "role", user.Role)
	respondOK(w, http.StatusCreated, user)
}

// LinkChannel stores the channel fetched by the caller's client.
func (a *API) LinkChannel(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")
	if err := requireOwner(r, uid); err != nil {
		respondError(w, err)
		return
	}

	var req models.ChannelLinkRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.UID != uid {
		respondError(w, fmt.Errorf("%w: uid %q does not match path", shared.ErrInvalidInput, req.UID))
		return
	}

	if _, err := a.users.Get(r.Context(), uid); err != nil {
		respondError(w, err)
		return
	}

	if err := a.channels.Upsert(r.Context(), req.DocData); err != nil {
		a.logger.Error("failed to link channel", "uid", uid, "error", err)
		respondError(w, err)
		return
	}
	respondOK(w, http.StatusOK, req.DocData)
}

// GetChannel returns the channel linked to the caller.
func (a *API) GetChannel(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")
	if err := requireOwner(r, uid); err != nil {
		respondError(w, err)
		return
	}

	channel, err := a.channels.Get(r.Context(), uid)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, http.StatusOK, channel)
}

func requireOwner(r *http.Request, uid string) error {
	identity := IdentityFromContext(r.Context())
	if identity == nil {
		return shared.ErrNotAuthenticated
	}
	if identity.UID != uid {
		return fmt.Errorf("%w: token subject does not match %s", shared.ErrForbidden, uid)
	}
	return nil
}

func canView(u *models.User, uid string) bool {
	return u.UID == uid || slices.Contains(u.CanViewList, uid)
}

// Health reports that the gateway and its database are reachable.
func Health(ping func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := ping(); err != nil {
			respondError(w, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err))
			return
		}
		respondOK(w, http.StatusOK, map[string]string{"status": "ok", "service": "eventory"})
	}
}

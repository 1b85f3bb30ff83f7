// API client for the eventory gateway
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/desertthunder/eventory/internal/models"
	"github.com/desertthunder/eventory/internal/shared"
)

const (
	defaultAPIBaseURL = "http://127.0.0.1:3000"

	// SessionCookie is the cookie carrying the gateway session token.
	SessionCookie = "session_token"
)

// APIService provides methods for making HTTP requests to the eventory gateway.
type APIService struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIService creates a new API service instance for the gateway at baseURL.
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &APIService{
		baseURL:    baseURL,
		httpClient: client,
	}
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Cookies    []*http.Cookie
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// OK reports whether the response has a 2xx status.
func (r *APIResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Cookie returns the named cookie set by the response, or nil.
func (r *APIResponse) Cookie(name string) *http.Cookie {
	for _, c := range r.Cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Do performs a request with an optional body and extra headers and returns the raw response.
func (a *APIService) Do(ctx context.Context, method, path string, body []byte, header http.Header) (*APIResponse, error) {
	fullURL := a.baseURL + path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Cookies:    resp.Cookies(),
		Body:       data,
	}

	var jsonData any
	if err := json.Unmarshal(data, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	return a.Do(ctx, http.MethodGet, path, nil, nil)
}

// Post performs a POST request with the given JSON data and returns the raw response.
func (a *APIService) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	if data == nil {
		data = []byte{}
	}
	return a.Do(ctx, http.MethodPost, path, data, nil)
}

// Health calls the gateway health endpoint.
func (a *APIService) Health(ctx context.Context) (*APIResponse, error) {
	return a.Get(ctx, "/health")
}

func bearer(idToken string) http.Header {
	h := http.Header{}
	if idToken != "" {
		h.Set("Authorization", "Bearer "+idToken)
	}
	return h
}

func idTokenOf(identity *models.Identity) string {
	if identity == nil {
		return ""
	}
	return identity.IDToken
}

// decode unwraps the envelope of resp into out, turning failures into errors.
func decode[T any](resp *APIResponse, out *T) error {
	var env models.Envelope[T]
	if len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, &env); err != nil && resp.OK() {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	if !resp.OK() || !env.Success {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("%w: %s", statusError(resp.StatusCode), msg)
	}

	*out = env.Data
	return nil
}

func statusError(code int) error {
	switch code {
	case http.StatusUnauthorized:
		return shared.ErrNotAuthenticated
	case http.StatusForbidden:
		return shared.ErrForbidden
	case http.StatusNotFound:
		return shared.ErrNotFound
	case http.StatusConflict:
		return shared.ErrConflict
	case http.StatusTooManyRequests:
		return shared.ErrRateLimited
	}
	return shared.ErrAPIRequest
}

// LookupUser fetches the user record for uid, returning nil without error when none exists.
func (a *APIService) LookupUser(ctx context.Context, identity *models.Identity, uid string) (*models.User, error) {
	resp, err := a.Do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(uid), nil, bearer(idTokenOf(identity)))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	var user *models.User
	if err := decode(resp, &user); err != nil {
		return nil, err
	}
	return user, nil
}

// ListUsers fetches every user record visible to identity.
func (a *APIService) ListUsers(ctx context.Context, identity *models.Identity) ([]*models.User, error) {
	resp, err := a.Do(ctx, http.MethodGet, "/api/users", nil, bearer(idTokenOf(identity)))
	if err != nil {
		return nil, err
	}

	var users []*models.User
	if err := decode(resp, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// RegisterUser creates the user record for identity with the submitted form.
func (a *APIService) RegisterUser(ctx context.Context, identity *models.Identity, form models.SignupForm) (*models.User, error) {
	body, err := json.Marshal(form)
	if err != nil {
		return nil, fmt.Errorf("failed to encode signup form: %w", err)
	}

	resp, err := a.Do(ctx, http.MethodPost, "/api/users", body, bearer(idTokenOf(identity)))
	if err != nil {
		return nil, err
	}

	var user *models.User
	if err := decode(resp, &user); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateSession exchanges idToken for a session and returns the session token set as a cookie.
func (a *APIService) CreateSession(ctx context.Context, idToken string) (string, error) {
	body, err := json.Marshal(models.SessionRequest{IDToken: idToken})
	if err != nil {
		return "", fmt.Errorf("failed to encode session request: %w", err)
	}

	resp, err := a.Do(ctx, http.MethodPost, "/api/session", body, nil)
	if err != nil {
		return "", err
	}

	var session models.Session
	if err := decode(resp, &session); err != nil {
		return "", err
	}

	cookie := resp.Cookie(SessionCookie)
	if cookie == nil || cookie.Value == "" {
		return "", fmt.Errorf("%w: no session cookie in response", shared.ErrAPIRequest)
	}
	return cookie.Value, nil
}

// Session returns the session described by token.
func (a *APIService) Session(ctx context.Context, token string) (*models.Session, error) {
	h := http.Header{}
	h.Set("Cookie", (&http.Cookie{Name: SessionCookie, Value: token}).String())

	resp, err := a.Do(ctx, http.MethodGet, "/api/session", nil, h)
	if err != nil {
		return nil, err
	}

	var session models.Session
	if err := decode(resp, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// DeleteSession ends the session described by token.
func (a *APIService) DeleteSession(ctx context.Context, token string) error {
	h := http.Header{}
	h.Set("Cookie", (&http.Cookie{Name: SessionCookie, Value: token}).String())

	resp, err := a.Do(ctx, http.MethodDelete, "/api/session", nil, h)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("%w: status %d", statusError(resp.StatusCode), resp.StatusCode)
	}
	return nil
}

// LinkChannel stores channel as the YouTube channel of identity.
func (a *APIService) LinkChannel(ctx context.Context, identity *models.Identity, channel *models.Channel) (*models.Channel, error) {
	if identity == nil {
		return nil, fmt.Errorf("%w: no identity", shared.ErrNotAuthenticated)
	}

	body, err := json.Marshal(models.ChannelLinkRequest{UID: identity.UID, DocData: channel})
	if err != nil {
		return nil, fmt.Errorf("failed to encode channel: %w", err)
	}

	resp, err := a.Do(ctx, http.MethodPost, "/api/users/"+url.PathEscape(identity.UID)+"/youtube", body, bearer(identity.IDToken))
	if err != nil {
		return nil, err
	}

	var linked *models.Channel
	if err := decode(resp, &linked); err != nil {
		return nil, err
	}
	return linked, nil
}

// LinkedChannel fetches the channel linked to uid.
func (a *APIService) LinkedChannel(ctx context.Context, identity *models.Identity, uid string) (*models.Channel, error) {
	resp, err := a.Do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(uid)+"/youtube", nil, bearer(idTokenOf(identity)))
	if err != nil {
		return nil, err
	}

	var channel *models.Channel
	if err := decode(resp, &channel); err != nil {
		return nil, err
	}
	return channel, nil
}

// YouTube Data API [ChannelSource] implementation
//
// Reads the channel owned by the signed-in user with the user's OAuth access token.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/desertthunder/eventory/internal/models"
	"github.com/desertthunder/eventory/internal/shared"
	"golang.org/x/time/rate"
)

const defaultYTBaseURL string = "https://www.googleapis.com/youtube/v3"

// YouTubeThumbnail is one size of a channel thumbnail.
type YouTubeThumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type youtubeSnippet struct {
	Title       string                      `json:"title"`
	Description string                      `json:"description"`
	CustomURL   string                      `json:"customUrl"`
	Thumbnails  map[string]YouTubeThumbnail `json:"thumbnails"`
}

// Counts are encoded as strings by the API.
type youtubeStatistics struct {
	SubscriberCount       string `json:"subscriberCount"`
	VideoCount            string `json:"videoCount"`
	HiddenSubscriberCount bool   `json:"hiddenSubscriberCount"`
}

// YouTubeChannel is a channel resource returned by the channels endpoint.
type YouTubeChannel struct {
	ID         string            `json:"id"`
	Snippet    youtubeSnippet    `json:"snippet"`
	Statistics youtubeStatistics `json:"statistics"`
}

type youtubeChannelList struct {
	Items []YouTubeChannel `json:"items"`
}

type youtubeError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// YouTubeService implements [ChannelSource] against the YouTube Data API.
type YouTubeService struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewYouTubeService creates a YouTube Data API client that issues at most rps requests per second.
// A non-positive rps disables throttling.
func NewYouTubeService(baseURL string, rps float64) *YouTubeService {
	if baseURL == "" {
		baseURL = defaultYTBaseURL
	}

	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}

	return &YouTubeService{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// WithClient replaces the HTTP client used for API calls.
func (y *YouTubeService) WithClient(client *http.Client) *YouTubeService {
	y.httpClient = client
	return y
}

// Channel fetches the channel owned by identity.
func (y *YouTubeService) Channel(ctx context.Context, identity *models.Identity) (*models.Channel, error) {
	if identity == nil || identity.AccessToken == "" {
		return nil, fmt.Errorf("%w: missing access token", shared.ErrNotAuthenticated)
	}

	params := url.Values{}
	params.Set("part", "snippet,statistics")
	params.Set("mine", "true")

	var list youtubeChannelList
	if err := y.get(ctx, identity.AccessToken, "/channels", params, &list); err != nil {
		return nil, err
	}
	if len(list.Items) == 0 {
		return nil, shared.ErrChannelNotFound
	}

	return list.Items[0].toModel(identity.UID)
}

func (y *YouTubeService) get(ctx context.Context, token, path string, params url.Values, out any) error {
	if err := y.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrRateLimited, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr youtubeError
		msg := string(body)
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}

		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", shared.ErrTokenExpired, msg)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %s", shared.ErrForbidden, msg)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s", shared.ErrRateLimited, msg)
		}
		return fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, resp.StatusCode, msg)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// toModel converts the API resource into the channel linked to uid.
func (c YouTubeChannel) toModel(uid string) (*models.Channel, error) {
	subs, err := parseCount(c.Statistics.SubscriberCount)
	if err != nil {
		return nil, fmt.Errorf("invalid subscriber count: %w", err)
	}
	videos, err := parseCount(c.Statistics.VideoCount)
	if err != nil {
		return nil, fmt.Errorf("invalid video count: %w", err)
	}

	return &models.Channel{
		UID:             uid,
		ChannelID:       c.ID,
		Title:           c.Snippet.Title,
		Description:     c.Snippet.Description,
		CustomURL:       c.Snippet.CustomURL,
		ThumbnailURL:    c.thumbnail(),
		SubscriberCount: subs,
		VideoCount:      videos,
	}, nil
}

func (c YouTubeChannel) thumbnail() string {
	for _, size := range []string{"high", "medium", "default"} {
		if t, ok := c.Snippet.Thumbnails[size]; ok && t.URL != "" {
			return t.URL
		}
	}
	return ""
}

func parseCount(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

// Package videosearch implements the video-search provider client used to
// find trailers and playable song videos. Quota rejections arrive as HTTP
// 403 responses whose body mentions an exceeded quota; the client surfaces
// those as rate-limit errors so the caller's circuit breaker opens.
package videosearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cinesync/internal/providers"
)

// Client provides access to the video-search API.
type Client struct {
	apiKey     string
	baseURL    string
	region     string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates a video-search client.
func New(apiKey, baseURL, region string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("video api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("video base url required")
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		region:     strings.TrimSpace(region),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type searchPayload struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			Description  string `json:"description"`
			ChannelTitle string `json:"channelTitle"`
		} `json:"snippet"`
	} `json:"items"`
}

// Search runs a video search with optional category/language/region filters.
func (c *Client) Search(ctx context.Context, query string, filters providers.VideoFilters) ([]providers.VideoCandidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query must not be empty")
	}
	endpoint, err := url.Parse(c.baseURL + "/search")
	if err != nil {
		return nil, fmt.Errorf("parse video url: %w", err)
	}
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("q", query)
	params.Set("key", c.apiKey)
	if filters.Category != "" {
		params.Set("videoCategoryId", filters.Category)
	}
	if filters.LanguageHint != "" {
		params.Set("relevanceLanguage", filters.LanguageHint)
	}
	region := filters.Region
	if region == "" {
		region = c.region
	}
	if region != "" {
		params.Set("regionCode", region)
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, providers.Wrap(providers.ErrTransient, providers.NameVideoSearch, "search",
			fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusForbidden:
		// The provider reports exhausted quota as 403 with a descriptive
		// body rather than 429.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		lowered := strings.ToLower(string(body))
		if strings.Contains(lowered, "quota") && strings.Contains(lowered, "exceeded") {
			return nil, providers.Wrap(providers.ErrRateLimited, providers.NameVideoSearch, "search", "quota exceeded", nil)
		}
		return nil, providers.Wrap(providers.ErrForbidden, providers.NameVideoSearch, "search", "status 403", nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, providers.Wrap(providers.ErrRateLimited, providers.NameVideoSearch, "search",
			fmt.Sprintf("status %d", resp.StatusCode), nil)
	default:
		return nil, providers.Wrap(providers.ErrTransient, providers.NameVideoSearch, "search",
			fmt.Sprintf("status %d (latency=%v)", resp.StatusCode, latency), nil)
	}

	var payload searchPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, providers.Wrap(providers.ErrMalformed, providers.NameVideoSearch, "search", "decode response", err)
	}

	candidates := make([]providers.VideoCandidate, 0, len(payload.Items))
	for _, item := range payload.Items {
		if item.ID.VideoID == "" || item.Snippet.Title == "" {
			continue
		}
		candidates = append(candidates, providers.VideoCandidate{
			ID:          item.ID.VideoID,
			Title:       item.Snippet.Title,
			Description: item.Snippet.Description,
			Channel:     item.Snippet.ChannelTitle,
			URL:         "https://www.youtube.com/watch?v=" + item.ID.VideoID,
		})
	}
	return candidates, nil
}

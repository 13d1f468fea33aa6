// Package ratings implements the aggregate ratings provider client.
package ratings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cinesync/internal/providers"
)

// Client provides access to the ratings API.
type Client struct {
	apiKey     string
	baseURL    string
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

// New creates a ratings client.
func New(apiKey, baseURL string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("ratings api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("ratings base url required")
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type ratingsPayload struct {
	Response string `json:"Response"`
	Error    string `json:"Error"`
	Ratings  []struct {
		Source string `json:"Source"`
		Value  string `json:"Value"`
	} `json:"Ratings"`
}

// Fetch looks up aggregate ratings for a movie by title and year. Unknown
// titles report ErrNotFound; individual unparseable scores are dropped.
func (c *Client) Fetch(ctx context.Context, title string, year int) ([]providers.Rating, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("title must not be empty")
	}

	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse ratings url: %w", err)
	}
	params := url.Values{}
	params.Set("apikey", c.apiKey)
	params.Set("t", title)
	params.Set("type", "movie")
	if year > 0 {
		params.Set("y", strconv.Itoa(year))
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
		return nil, providers.Wrap(providers.ErrTransient, providers.NameRatings, "fetch",
			fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, providers.Wrap(providers.ErrForbidden, providers.NameRatings, "fetch", "status 401", nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, providers.Wrap(providers.ErrRateLimited, providers.NameRatings, "fetch", "status 429", nil)
	default:
		return nil, providers.Wrap(providers.ErrTransient, providers.NameRatings, "fetch",
			fmt.Sprintf("status %d (latency=%v)", resp.StatusCode, latency), nil)
	}

	var payload ratingsPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, providers.Wrap(providers.ErrMalformed, providers.NameRatings, "fetch", "decode response", err)
	}
	if !strings.EqualFold(payload.Response, "True") {
		message := strings.ToLower(payload.Error)
		if strings.Contains(message, "limit") || strings.Contains(message, "quota") {
			return nil, providers.Wrap(providers.ErrRateLimited, providers.NameRatings, "fetch", payload.Error, nil)
		}
		return nil, providers.Wrap(providers.ErrNotFound, providers.NameRatings, "fetch", title, nil)
	}

	results := make([]providers.Rating, 0, len(payload.Ratings))
	for _, entry := range payload.Ratings {
		value, scale, ok := parseScore(entry.Value)
		if !ok || entry.Source == "" {
			continue
		}
		results = append(results, providers.Rating{
			Source: normalizeSource(entry.Source),
			Value:  value,
			Scale:  scale,
		})
	}
	return results, nil
}

// parseScore handles the three score shapes ratings sources use:
// "8.4/10", "87%", and "74/100".
func parseScore(raw string) (value, scale float64, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, 0, false
	}
	if strings.HasSuffix(raw, "%") {
		value, err := strconv.ParseFloat(strings.TrimSuffix(raw, "%"), 64)
		if err != nil {
			return 0, 0, false
		}
		return value, 100, true
	}
	numerator, denominator, found := strings.Cut(raw, "/")
	if !found {
		return 0, 0, false
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(numerator), 64)
	if err != nil {
		return 0, 0, false
	}
	scale, err = strconv.ParseFloat(strings.TrimSpace(denominator), 64)
	if err != nil || scale <= 0 {
		return 0, 0, false
	}
	return value, scale, true
}

func normalizeSource(source string) string {
	lowered := strings.ToLower(strings.TrimSpace(source))
	return strings.ReplaceAll(lowered, " ", "_")
}

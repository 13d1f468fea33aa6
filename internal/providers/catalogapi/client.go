// Package catalogapi implements the canonical movie catalog client
// (a TMDB-compatible API): details with credits, fuzzy search, windowed
// discovery for backfill, and streaming deep links.
package catalogapi

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

// Client provides access to the catalog API.
type Client struct {
	apiKey     string
	baseURL    string
	country    string
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

// New creates a catalog client.
func New(apiKey, baseURL, country string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("catalog api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("catalog base url required")
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		country:    strings.TrimSpace(country),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type detailsPayload struct {
	ID               int64  `json:"id"`
	Title            string `json:"title"`
	OriginalLanguage string `json:"original_language"`
	ReleaseDate      string `json:"release_date"`
	Overview         string `json:"overview"`
	PosterPath       string `json:"poster_path"`
	BackdropPath     string `json:"backdrop_path"`
	Genres           []struct {
		Name string `json:"name"`
	} `json:"genres"`
	Credits struct {
		Cast []struct {
			ID          int64  `json:"id"`
			Name        string `json:"name"`
			Character   string `json:"character"`
			ProfilePath string `json:"profile_path"`
			Order       int    `json:"order"`
		} `json:"cast"`
	} `json:"credits"`
}

type searchPayload struct {
	Results []struct {
		ID               int64   `json:"id"`
		Title            string  `json:"title"`
		OriginalLanguage string  `json:"original_language"`
		ReleaseDate      string  `json:"release_date"`
		Popularity       float64 `json:"popularity"`
	} `json:"results"`
	TotalPages int `json:"total_pages"`
}

type providersPayload struct {
	Results map[string]struct {
		Link     string `json:"link"`
		Flatrate []struct {
			ProviderName string `json:"provider_name"`
		} `json:"flatrate"`
	} `json:"results"`
}

// MovieDetails fetches the canonical details payload, credits included.
func (c *Client) MovieDetails(ctx context.Context, externalID int64) (*providers.MovieDetails, error) {
	if externalID <= 0 {
		return nil, errors.New("external id must be positive")
	}
	params := url.Values{}
	params.Set("append_to_response", "credits")
	var payload detailsPayload
	if err := c.get(ctx, fmt.Sprintf("/movie/%d", externalID), params, "details", &payload); err != nil {
		return nil, err
	}

	details := &providers.MovieDetails{
		ExternalID:  payload.ID,
		Title:       payload.Title,
		Language:    payload.OriginalLanguage,
		ReleaseDate: parseDate(payload.ReleaseDate),
		Synopsis:    payload.Overview,
		PosterURL:   imageURL(payload.PosterPath),
		BackdropURL: imageURL(payload.BackdropPath),
	}
	for _, genre := range payload.Genres {
		if genre.Name != "" {
			details.Genres = append(details.Genres, genre.Name)
		}
	}
	for _, member := range payload.Credits.Cast {
		if member.Name == "" {
			continue
		}
		details.Cast = append(details.Cast, providers.CastCredit{
			ExternalID: member.ID,
			Name:       member.Name,
			Character:  member.Character,
			ImageURL:   imageURL(member.ProfilePath),
			Ord:        member.Order,
		})
	}
	return details, nil
}

// Search performs a fuzzy title search against the catalog.
func (c *Client) Search(ctx context.Context, query string) ([]providers.CandidateHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query must not be empty")
	}
	params := url.Values{}
	params.Set("query", query)
	var payload searchPayload
	if err := c.get(ctx, "/search/movie", params, "search", &payload); err != nil {
		return nil, err
	}
	hits := make([]providers.CandidateHit, 0, len(payload.Results))
	for _, result := range payload.Results {
		if result.Title == "" {
			continue
		}
		hits = append(hits, providers.CandidateHit{
			ExternalID:  result.ID,
			Title:       result.Title,
			Language:    result.OriginalLanguage,
			ReleaseDate: parseDate(result.ReleaseDate),
			Popularity:  result.Popularity,
		})
	}
	return hits, nil
}

// Discover lists movies released inside the window, one page at a time.
// The second return value reports whether more pages exist.
func (c *Client) Discover(ctx context.Context, window providers.DiscoverWindow, sort string, page int) ([]providers.CandidateHit, bool, error) {
	if page <= 0 {
		page = 1
	}
	if sort == "" {
		sort = providers.SortPopularity
	}
	params := url.Values{}
	params.Set("sort_by", sort)
	params.Set("primary_release_date.gte", window.From.Format("2006-01-02"))
	params.Set("primary_release_date.lte", window.To.Format("2006-01-02"))
	params.Set("page", strconv.Itoa(page))
	if c.country != "" {
		params.Set("region", c.country)
	}
	var payload searchPayload
	if err := c.get(ctx, "/discover/movie", params, "discover", &payload); err != nil {
		return nil, false, err
	}
	hits := make([]providers.CandidateHit, 0, len(payload.Results))
	for _, result := range payload.Results {
		hits = append(hits, providers.CandidateHit{
			ExternalID:  result.ID,
			Title:       result.Title,
			Language:    result.OriginalLanguage,
			ReleaseDate: parseDate(result.ReleaseDate),
			Popularity:  result.Popularity,
		})
	}
	return hits, page < payload.TotalPages, nil
}

// DeepLinks fetches streaming availability links for a country.
func (c *Client) DeepLinks(ctx context.Context, externalID int64, country string) ([]providers.DeepLink, error) {
	if externalID <= 0 {
		return nil, errors.New("external id must be positive")
	}
	if country == "" {
		country = c.country
	}
	var payload providersPayload
	if err := c.get(ctx, fmt.Sprintf("/movie/%d/watch/providers", externalID), url.Values{}, "deep links", &payload); err != nil {
		return nil, err
	}
	entry, ok := payload.Results[strings.ToUpper(country)]
	if !ok || entry.Link == "" {
		return nil, nil
	}
	links := make([]providers.DeepLink, 0, len(entry.Flatrate))
	for _, offer := range entry.Flatrate {
		if offer.ProviderName == "" {
			continue
		}
		links = append(links, providers.DeepLink{
			Provider: offer.ProviderName,
			URL:      entry.Link,
			Country:  strings.ToUpper(country),
		})
	}
	return links, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, operation string, out any) error {
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("parse catalog url: %w", err)
	}
	params.Set("api_key", c.apiKey)
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return providers.Wrap(providers.ErrTransient, providers.NameCatalog, operation,
			fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return providers.Wrap(providers.ErrNotFound, providers.NameCatalog, operation, "", nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return providers.Wrap(providers.ErrRateLimited, providers.NameCatalog, operation,
			fmt.Sprintf("status %d", resp.StatusCode), nil)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return providers.Wrap(providers.ErrForbidden, providers.NameCatalog, operation,
			fmt.Sprintf("status %d", resp.StatusCode), nil)
	default:
		return providers.Wrap(providers.ErrTransient, providers.NameCatalog, operation,
			fmt.Sprintf("status %d (latency=%v)", resp.StatusCode, latency), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return providers.Wrap(providers.ErrMalformed, providers.NameCatalog, operation, "decode response", err)
	}
	return nil
}

func parseDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil
	}
	return &parsed
}

func imageURL(path string) string {
	if path == "" {
		return ""
	}
	return "https://image.tmdb.org/t/p/original" + path
}

// Package trackapi implements the music track catalog client. It searches
// soundtrack albums by movie title and returns the album's tracklist.
package trackapi

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
	"cinesync/internal/textutil"
)

// Client provides access to the track catalog API.
type Client struct {
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

// New creates a track catalog client.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("track catalog base url required")
	}
	client := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type searchPayload struct {
	Results []struct {
		WrapperType    string `json:"wrapperType"`
		CollectionID   int64  `json:"collectionId"`
		CollectionName string `json:"collectionName"`
		ReleaseDate    string `json:"releaseDate"`
	} `json:"results"`
}

type lookupPayload struct {
	Results []struct {
		WrapperType string `json:"wrapperType"`
		TrackName   string `json:"trackName"`
		ArtistName  string `json:"artistName"`
		TrackNumber int    `json:"trackNumber"`
	} `json:"results"`
}

// Tracklist locates the soundtrack album for a movie and returns its tracks
// in album order. Reports ErrNotFound when no album matches the title and
// year closely enough.
func (c *Client) Tracklist(ctx context.Context, title string, year int, language string) ([]providers.Track, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("title must not be empty")
	}

	params := url.Values{}
	params.Set("term", title)
	params.Set("media", "music")
	params.Set("entity", "album")
	params.Set("limit", "10")
	var search searchPayload
	if err := c.get(ctx, "/search", params, "album search", &search); err != nil {
		return nil, err
	}

	albumID := int64(0)
	bestScore := 0.0
	for _, result := range search.Results {
		if result.WrapperType != "collection" {
			continue
		}
		score := albumScore(title, year, result.CollectionName, result.ReleaseDate)
		if score > bestScore {
			bestScore = score
			albumID = result.CollectionID
		}
	}
	if albumID == 0 || bestScore < 0.5 {
		return nil, providers.Wrap(providers.ErrNotFound, providers.NameTrackCatalog, "album search", title, nil)
	}

	params = url.Values{}
	params.Set("id", strconv.FormatInt(albumID, 10))
	params.Set("entity", "song")
	var lookup lookupPayload
	if err := c.get(ctx, "/lookup", params, "album lookup", &lookup); err != nil {
		return nil, err
	}

	tracks := make([]providers.Track, 0, len(lookup.Results))
	for _, result := range lookup.Results {
		if result.WrapperType != "track" || result.TrackName == "" {
			continue
		}
		tracks = append(tracks, providers.Track{
			Title:   result.TrackName,
			Singers: splitArtists(result.ArtistName),
		})
	}
	if len(tracks) == 0 {
		return nil, providers.Wrap(providers.ErrNotFound, providers.NameTrackCatalog, "album lookup",
			fmt.Sprintf("album %d has no tracks", albumID), nil)
	}
	return tracks, nil
}

// albumScore rates how well an album matches the movie. The album name must
// resemble the movie title, and a release year near the film's helps break
// ties between re-releases.
func albumScore(title string, year int, albumName, releaseDate string) float64 {
	cleaned := albumName
	for _, suffix := range []string{
		"(original motion picture soundtrack)",
		"(original soundtrack)",
		"(music from the motion picture)",
		"(soundtrack)",
	} {
		idx := strings.Index(strings.ToLower(cleaned), suffix)
		if idx >= 0 {
			cleaned = cleaned[:idx]
		}
	}
	score := textutil.DiceSimilarity(textutil.Normalize(title), textutil.Normalize(cleaned))
	if score < 0.5 {
		return score
	}
	if year > 0 && len(releaseDate) >= 4 {
		if albumYear, err := strconv.Atoi(releaseDate[:4]); err == nil {
			diff := albumYear - year
			if diff >= -1 && diff <= 1 {
				score += 0.1
			}
		}
	}
	return score
}

func splitArtists(name string) []string {
	if strings.TrimSpace(name) == "" {
		return nil
	}
	separators := []string{", ", " & ", " feat. ", " Feat. "}
	parts := []string{name}
	for _, sep := range separators {
		var next []string
		for _, part := range parts {
			next = append(next, strings.Split(part, sep)...)
		}
		parts = next
	}
	artists := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			artists = append(artists, part)
		}
	}
	return artists
}

func (c *Client) get(ctx context.Context, path string, params url.Values, operation string, out any) error {
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("parse track catalog url: %w", err)
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return providers.Wrap(providers.ErrTransient, providers.NameTrackCatalog, operation,
			fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return providers.Wrap(providers.ErrNotFound, providers.NameTrackCatalog, operation, "status 404", nil)
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		return providers.Wrap(providers.ErrRateLimited, providers.NameTrackCatalog, operation,
			fmt.Sprintf("status %d", resp.StatusCode), nil)
	default:
		return providers.Wrap(providers.ErrTransient, providers.NameTrackCatalog, operation,
			fmt.Sprintf("status %d (latency=%v)", resp.StatusCode, latency), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return providers.Wrap(providers.ErrMalformed, providers.NameTrackCatalog, operation, "decode response", err)
	}
	return nil
}

// Package wikipedia implements the encyclopedia provider client against a
// MediaWiki-style API: full-text page search, lead extracts for
// verification, and raw section HTML for tracklist extraction.
package wikipedia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cinesync/internal/providers"
)

// sectionNames are the page sections that may carry a tracklist, in
// preference order.
var sectionNames = []string{"soundtrack", "music", "track listing", "tracklist", "songs"}

// Client provides access to the encyclopedia API.
type Client struct {
	baseURL    string
	userAgent  string
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

// New creates an encyclopedia client.
func New(baseURL, userAgent string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("encyclopedia base url required")
	}
	client := &Client{
		baseURL:    baseURL,
		userAgent:  strings.TrimSpace(userAgent),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type searchPayload struct {
	Query struct {
		Search []struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
		} `json:"search"`
	} `json:"query"`
}

type extractPayload struct {
	Query struct {
		Pages map[string]struct {
			Missing *string `json:"missing"`
			Extract string  `json:"extract"`
		} `json:"pages"`
	} `json:"query"`
}

type sectionsPayload struct {
	Parse struct {
		Sections []struct {
			Index string `json:"index"`
			Line  string `json:"line"`
		} `json:"sections"`
	} `json:"parse"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

type sectionTextPayload struct {
	Parse struct {
		Text map[string]string `json:"text"`
	} `json:"parse"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

// Search runs a full-text page search.
func (c *Client) Search(ctx context.Context, query string) ([]providers.PageHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query must not be empty")
	}
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("srlimit", "10")
	var payload searchPayload
	if err := c.get(ctx, params, "search", &payload); err != nil {
		return nil, err
	}
	hits := make([]providers.PageHit, 0, len(payload.Query.Search))
	for _, result := range payload.Query.Search {
		hits = append(hits, providers.PageHit{Title: result.Title, Snippet: stripTags(result.Snippet)})
	}
	return hits, nil
}

// PageLead fetches the plain-text lead section of a page. Missing pages
// report ErrNotFound.
func (c *Client) PageLead(ctx context.Context, title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", errors.New("title must not be empty")
	}
	params := url.Values{}
	params.Set("action", "query")
	params.Set("prop", "extracts")
	params.Set("exintro", "1")
	params.Set("explaintext", "1")
	params.Set("titles", title)
	var payload extractPayload
	if err := c.get(ctx, params, "lead", &payload); err != nil {
		return "", err
	}
	for _, page := range payload.Query.Pages {
		if page.Missing != nil {
			return "", providers.Wrap(providers.ErrNotFound, providers.NameEncyclopedia, "lead", title, nil)
		}
		if page.Extract != "" {
			return page.Extract, nil
		}
	}
	return "", providers.Wrap(providers.ErrNotFound, providers.NameEncyclopedia, "lead", title, nil)
}

// TracklistSectionHTML locates a soundtrack/music/tracklist section on the
// page and returns its rendered HTML. Pages without such a section return
// an empty string and no error; missing pages report ErrNotFound.
func (c *Client) TracklistSectionHTML(ctx context.Context, title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", errors.New("title must not be empty")
	}
	params := url.Values{}
	params.Set("action", "parse")
	params.Set("page", title)
	params.Set("prop", "sections")
	var sections sectionsPayload
	if err := c.get(ctx, params, "sections", &sections); err != nil {
		return "", err
	}
	if sections.Error != nil {
		return "", providers.Wrap(providers.ErrNotFound, providers.NameEncyclopedia, "sections", title, nil)
	}

	index := ""
	for _, wanted := range sectionNames {
		for _, section := range sections.Parse.Sections {
			if strings.EqualFold(strings.TrimSpace(section.Line), wanted) {
				index = section.Index
				break
			}
		}
		if index != "" {
			break
		}
	}
	if index == "" {
		return "", nil
	}

	params = url.Values{}
	params.Set("action", "parse")
	params.Set("page", title)
	params.Set("section", index)
	params.Set("prop", "text")
	var text sectionTextPayload
	if err := c.get(ctx, params, "section text", &text); err != nil {
		return "", err
	}
	if text.Error != nil {
		return "", providers.Wrap(providers.ErrNotFound, providers.NameEncyclopedia, "section text", title, nil)
	}
	return text.Parse.Text["*"], nil
}

func (c *Client) get(ctx context.Context, params url.Values, operation string, out any) error {
	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("parse encyclopedia url: %w", err)
	}
	params.Set("format", "json")
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return providers.Wrap(providers.ErrTransient, providers.NameEncyclopedia, operation,
			fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return providers.Wrap(providers.ErrRateLimited, providers.NameEncyclopedia, operation,
			fmt.Sprintf("status %d", resp.StatusCode), nil)
	default:
		return providers.Wrap(providers.ErrTransient, providers.NameEncyclopedia, operation,
			fmt.Sprintf("status %d (latency=%v)", resp.StatusCode, latency), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return providers.Wrap(providers.ErrMalformed, providers.NameEncyclopedia, operation, "decode response", err)
	}
	return nil
}

// stripTags removes the highlight markup search snippets carry.
func stripTags(snippet string) string {
	var b strings.Builder
	inTag := false
	for _, r := range snippet {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Package tracklist resolves a movie's canonical song list from an
// encyclopedia provider and links tracks to playable videos. Page discovery
// prefers direct title guesses over full-text search because search ranking
// is noisy for short titles, and every candidate page must pass a lead-text
// verification gate before its tracklist is trusted.
package tracklist

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"cinesync/internal/logging"
	"cinesync/internal/providers"
	"cinesync/internal/textutil"
)

// Encyclopedia is the provider surface page resolution needs.
type Encyclopedia interface {
	Search(ctx context.Context, query string) ([]providers.PageHit, error)
	PageLead(ctx context.Context, title string) (string, error)
	TracklistSectionHTML(ctx context.Context, title string) (string, error)
}

// PageQuery carries the movie facts used to locate and verify its page.
type PageQuery struct {
	Title     string
	Year      int
	Language  string
	CastHints []string

	// TitleOverride pins the page title, bypassing discovery and the
	// verification gate. Set by an operator when automation picks wrong.
	TitleOverride string
}

// Resolver locates tracklists on the encyclopedia provider.
type Resolver struct {
	wiki   Encyclopedia
	logger *slog.Logger
}

// NewResolver creates a tracklist resolver.
func NewResolver(wiki Encyclopedia, logger *slog.Logger) *Resolver {
	return &Resolver{
		wiki:   wiki,
		logger: logging.WithComponent(logger, "tracklist"),
	}
}

// Tracks resolves the movie's tracklist. A nil, nil return means no page
// passed the gate or no page carried a tracklist; callers fall back to
// other sources.
func (r *Resolver) Tracks(ctx context.Context, query PageQuery) ([]providers.Track, error) {
	if query.TitleOverride != "" {
		return r.tracksFromPage(ctx, query.TitleOverride)
	}

	for _, guess := range pageGuesses(query) {
		tracks, err := r.verifiedTracks(ctx, query, guess)
		if err != nil {
			return nil, err
		}
		if len(tracks) > 0 {
			r.logger.Debug("tracklist via page guess", logging.String("page", guess), logging.Int("tracks", len(tracks)))
			return tracks, nil
		}
	}

	searchQuery := query.Title + " film"
	if query.Year > 0 {
		searchQuery = fmt.Sprintf("%s %d film", query.Title, query.Year)
	}
	hits, err := r.wiki.Search(ctx, searchQuery)
	if err != nil {
		if providers.IsRateLimited(err) {
			return nil, err
		}
		r.logger.Warn("encyclopedia search failed", logging.Error(err))
		return nil, nil
	}
	for _, hit := range rankPages(query, hits) {
		tracks, err := r.verifiedTracks(ctx, query, hit.Title)
		if err != nil {
			return nil, err
		}
		if len(tracks) > 0 {
			r.logger.Debug("tracklist via search", logging.String("page", hit.Title), logging.Int("tracks", len(tracks)))
			return tracks, nil
		}
	}
	return nil, nil
}

// verifiedTracks gates the page through its lead text, then extracts.
// Missing pages and failed gates yield nil, nil; rate limits propagate.
func (r *Resolver) verifiedTracks(ctx context.Context, query PageQuery, pageTitle string) ([]providers.Track, error) {
	lead, err := r.wiki.PageLead(ctx, pageTitle)
	if err != nil {
		if providers.IsRateLimited(err) {
			return nil, err
		}
		return nil, nil
	}
	if !leadPassesGate(query, lead) {
		return nil, nil
	}
	return r.tracksFromPage(ctx, pageTitle)
}

func (r *Resolver) tracksFromPage(ctx context.Context, pageTitle string) ([]providers.Track, error) {
	sectionHTML, err := r.wiki.TracklistSectionHTML(ctx, pageTitle)
	if err != nil {
		if providers.IsRateLimited(err) {
			return nil, err
		}
		return nil, nil
	}
	if sectionHTML == "" {
		return nil, nil
	}
	return ExtractTracks(sectionHTML), nil
}

// pageGuesses builds direct page-title candidates in priority order.
func pageGuesses(query PageQuery) []string {
	var guesses []string
	if query.Year > 0 {
		guesses = append(guesses, fmt.Sprintf("%s (%d film)", query.Title, query.Year))
		if query.Language != "" {
			guesses = append(guesses,
				fmt.Sprintf("%s (%d %s film)", query.Title, query.Year, titleCase(query.Language)))
		}
		guesses = append(guesses, fmt.Sprintf("%s (%d Indian film)", query.Title, query.Year))
	}
	guesses = append(guesses, query.Title+" (film)", query.Title)
	return guesses
}

// leadPassesGate checks the page's lead text against the movie's known
// language, year, and, for ambiguous single-token titles, cast.
func leadPassesGate(query PageQuery, lead string) bool {
	normalized := textutil.Normalize(lead)
	if normalized == "" {
		return false
	}
	if query.Language != "" {
		lang := textutil.Normalize(query.Language)
		// Hyphens fold to spaces, so "<lang>-language film" and
		// "<lang> language film" both normalize to the same phrase.
		if !strings.Contains(normalized, lang+" language film") &&
			!strings.Contains(normalized, lang+" film") {
			return false
		}
	}
	if query.Year > 0 && !strings.Contains(normalized, strconv.Itoa(query.Year)) {
		return false
	}
	if len(textutil.Tokenize(query.Title)) == 1 {
		if !anyCastToken(query.CastHints, normalized) {
			return false
		}
	}
	return true
}

func anyCastToken(hints []string, normalizedLead string) bool {
	leadTokens := make(map[string]struct{})
	for _, token := range strings.Fields(normalizedLead) {
		leadTokens[token] = struct{}{}
	}
	for _, hint := range hints {
		for _, token := range textutil.Tokenize(hint) {
			if len(token) < 3 {
				continue
			}
			if _, found := leadTokens[token]; found {
				return true
			}
		}
	}
	return false
}

type rankedPage struct {
	providers.PageHit
	score float64
}

// rankPages orders search hits by how film-page-like they look for this
// movie, dropping clear mismatches. The top three survive.
func rankPages(query PageQuery, hits []providers.PageHit) []providers.PageHit {
	normalizedTitle := textutil.Normalize(query.Title)
	ranked := make([]rankedPage, 0, len(hits))
	for _, hit := range hits {
		hay := textutil.Normalize(hit.Title + " " + hit.Snippet)
		pageTitle := textutil.Normalize(hit.Title)
		score := 0.0
		if strings.Contains(pageTitle, normalizedTitle) {
			score += 2
		}
		hasFilm := strings.Contains(hay, "film")
		if hasFilm {
			score += 1
		}
		if query.Year > 0 && strings.Contains(hay, strconv.Itoa(query.Year)) {
			score += 1
		}
		if query.Language != "" && strings.Contains(hay, textutil.Normalize(query.Language)) {
			score += 1
		}
		if anyCastToken(query.CastHints, hay) {
			score += 0.5
		}
		// Song and album pages masquerade as film pages in search results.
		if !hasFilm && (strings.Contains(pageTitle, "song") || strings.Contains(pageTitle, "album") ||
			strings.Contains(pageTitle, "soundtrack")) {
			score -= 2
		}
		if score <= 0 {
			continue
		}
		ranked = append(ranked, rankedPage{PageHit: hit, score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > 3 {
		ranked = ranked[:3]
	}
	result := make([]providers.PageHit, len(ranked))
	for i, entry := range ranked {
		result[i] = entry.PageHit
	}
	return result
}

func titleCase(word string) string {
	if word == "" {
		return ""
	}
	return strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
}

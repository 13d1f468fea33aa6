// Package search implements the local fuzzy search resolver. Lookups run in
// two phases: a cheap case-insensitive substring pass, then a phonetic
// fallback ranked by bigram similarity when the substring pass finds nothing.
package search

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"cinesync/internal/catalog"
	"cinesync/internal/logging"
	"cinesync/internal/textutil"
)

// Store is the catalog surface the resolver queries.
type Store interface {
	SubstringMovies(ctx context.Context, query string, limit int) ([]*catalog.Movie, error)
	SubstringPersons(ctx context.Context, query string, limit int) ([]*catalog.Person, error)
	PhoneticMovies(ctx context.Context, codes []string) ([]*catalog.Movie, error)
	PhoneticPersons(ctx context.Context, codes []string) ([]*catalog.Person, error)
	MoviesByCast(ctx context.Context, personIDs []string, limit int) ([]*catalog.Movie, error)
}

// Result bundles movie and person hits for one query.
type Result struct {
	Movies  []*catalog.Movie
	Persons []*catalog.Person
}

// Resolver runs fuzzy lookups against the local catalog.
type Resolver struct {
	store  Store
	logger *slog.Logger
	limit  int
}

// minTokenLength excludes short tokens from phonetic candidate collection;
// their codes are mostly padding and match everything.
const minTokenLength = 4

// NewResolver creates a resolver capped at limit results per entity kind.
func NewResolver(store Store, logger *slog.Logger, limit int) *Resolver {
	if limit <= 0 {
		limit = 20
	}
	return &Resolver{
		store:  store,
		logger: logging.WithComponent(logger, "search"),
		limit:  limit,
	}
}

// Search resolves a free-text query. Substring hits, when present, are
// returned as-is newest first and the phonetic fallback is never attempted.
func (r *Resolver) Search(ctx context.Context, query string) (Result, error) {
	normalized := textutil.Normalize(query)
	if normalized == "" {
		return Result{}, errors.New("query must not be empty")
	}

	movies, err := r.store.SubstringMovies(ctx, normalized, r.limit)
	if err != nil {
		return Result{}, err
	}
	persons, err := r.store.SubstringPersons(ctx, normalized, r.limit)
	if err != nil {
		return Result{}, err
	}
	if len(movies) > 0 || len(persons) > 0 {
		return Result{Movies: movies, Persons: persons}, nil
	}

	return r.phoneticFallback(ctx, normalized)
}

// phoneticFallback collects entities sharing a phonetic code with the query
// or one of its tokens, ranks them by bigram similarity, and keeps those at
// or above the length-tiered threshold.
func (r *Resolver) phoneticFallback(ctx context.Context, normalized string) (Result, error) {
	codes := candidateCodes(normalized)
	if len(codes) == 0 {
		return Result{}, nil
	}
	floor := scoreThreshold(len(normalized))

	movies, err := r.store.PhoneticMovies(ctx, codes)
	if err != nil {
		return Result{}, err
	}
	rankedMovies := rankMovies(normalized, movies, floor, r.limit)

	persons, err := r.store.PhoneticPersons(ctx, codes)
	if err != nil {
		return Result{}, err
	}
	rankedPersons := rankPersons(normalized, persons, floor, r.limit)

	// Person matches widen the movie results through cast membership.
	if len(rankedPersons) > 0 {
		personIDs := make([]string, 0, len(rankedPersons))
		for _, person := range rankedPersons {
			personIDs = append(personIDs, person.ID)
		}
		castMovies, err := r.store.MoviesByCast(ctx, personIDs, r.limit)
		if err != nil {
			return Result{}, err
		}
		rankedMovies = mergeMovies(rankedMovies, castMovies, r.limit)
	}

	r.logger.Debug("phonetic fallback",
		logging.String("query", normalized),
		logging.Int("codes", len(codes)),
		logging.Int("movies", len(rankedMovies)),
		logging.Int("persons", len(rankedPersons)))
	return Result{Movies: rankedMovies, Persons: rankedPersons}, nil
}

// candidateCodes returns the phonetic codes of the whole query plus each
// token of at least minTokenLength characters, deduplicated.
func candidateCodes(normalized string) []string {
	seen := make(map[string]struct{})
	var codes []string
	add := func(text string) {
		code := textutil.PhoneticCode(text)
		if code == "" {
			return
		}
		if _, dup := seen[code]; dup {
			return
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	add(normalized)
	for _, token := range strings.Fields(normalized) {
		if len(token) >= minTokenLength {
			add(token)
		}
	}
	return codes
}

// scoreThreshold tiers the acceptance floor by query length. Short queries
// produce few bigrams, so a stricter floor keeps noise out.
func scoreThreshold(queryLength int) float64 {
	switch {
	case queryLength < 8:
		return 0.55
	case queryLength < 14:
		return 0.42
	default:
		return 0.32
	}
}

type scoredMovie struct {
	movie *catalog.Movie
	score float64
}

func rankMovies(normalized string, movies []*catalog.Movie, floor float64, limit int) []*catalog.Movie {
	scored := make([]scoredMovie, 0, len(movies))
	for _, movie := range movies {
		score := textutil.DiceSimilarity(normalized, movie.NormalizedTitle)
		if score >= floor {
			scored = append(scored, scoredMovie{movie: movie, score: score})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if len(scored) > limit {
		scored = scored[:limit]
	}
	result := make([]*catalog.Movie, len(scored))
	for i, entry := range scored {
		result[i] = entry.movie
	}
	return result
}

type scoredPerson struct {
	person *catalog.Person
	score  float64
}

func rankPersons(normalized string, persons []*catalog.Person, floor float64, limit int) []*catalog.Person {
	scored := make([]scoredPerson, 0, len(persons))
	for _, person := range persons {
		score := textutil.DiceSimilarity(normalized, textutil.Normalize(person.Name))
		if score >= floor {
			scored = append(scored, scoredPerson{person: person, score: score})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if len(scored) > limit {
		scored = scored[:limit]
	}
	result := make([]*catalog.Person, len(scored))
	for i, entry := range scored {
		result[i] = entry.person
	}
	return result
}

// mergeMovies appends cast-joined movies after direct title matches,
// deduplicating by id and capping at limit.
func mergeMovies(direct, viaCast []*catalog.Movie, limit int) []*catalog.Movie {
	seen := make(map[string]struct{}, len(direct))
	merged := make([]*catalog.Movie, 0, len(direct)+len(viaCast))
	for _, movie := range direct {
		seen[movie.ID] = struct{}{}
		merged = append(merged, movie)
	}
	for _, movie := range viaCast {
		if _, dup := seen[movie.ID]; dup {
			continue
		}
		seen[movie.ID] = struct{}{}
		merged = append(merged, movie)
	}
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

package catalog

import (
	"context"
	"fmt"
	"strings"
)

// SubstringMovies finds primary-market movies whose title, synopsis, or
// genre tags contain the query case-insensitively, newest release first.
// The normalized title is matched too, so a punctuation-free query still
// finds a punctuated title.
func (s *Store) SubstringMovies(ctx context.Context, query string, limit int) ([]*Movie, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+movieColumns+` FROM movies
         WHERE primary_market = 1
           AND (LOWER(title) LIKE ?1 OR normalized_title LIKE ?1
                OR LOWER(synopsis) LIKE ?1 OR LOWER(genres) LIKE ?1)
         ORDER BY release_date DESC, title
         LIMIT ?2`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("substring movie search: %w", err)
	}
	defer rows.Close()
	return collectMovies(rows)
}

// SubstringPersons finds persons whose name contains the query.
func (s *Store) SubstringPersons(ctx context.Context, query string, limit int) ([]*Person, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, external_id, name, phonetic_code, biography, image_url, filmography, created_at, updated_at
         FROM persons WHERE LOWER(name) LIKE ? ORDER BY name LIMIT ?`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("substring person search: %w", err)
	}
	defer rows.Close()
	return collectPersons(rows)
}

// PhoneticMovies returns primary-market movies whose phonetic code is in the
// candidate set.
func (s *Store) PhoneticMovies(ctx context.Context, codes []string) ([]*Movie, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	placeholders, args := inArgs(codes)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+movieColumns+` FROM movies
         WHERE primary_market = 1 AND phonetic_code IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("phonetic movie search: %w", err)
	}
	defer rows.Close()
	return collectMovies(rows)
}

// PhoneticPersons returns persons whose phonetic code is in the candidate set.
func (s *Store) PhoneticPersons(ctx context.Context, codes []string) ([]*Person, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	placeholders, args := inArgs(codes)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, external_id, name, phonetic_code, biography, image_url, filmography, created_at, updated_at
         FROM persons WHERE phonetic_code IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("phonetic person search: %w", err)
	}
	defer rows.Close()
	return collectPersons(rows)
}

// MoviesByCast returns primary-market movies featuring any of the persons,
// newest release first.
func (s *Store) MoviesByCast(ctx context.Context, personIDs []string, limit int) ([]*Movie, error) {
	if len(personIDs) == 0 {
		return nil, nil
	}
	placeholders, args := inArgs(personIDs)
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT `+movieColumns+` FROM movies
         JOIN cast_members c ON c.movie_id = movies.id
         WHERE movies.primary_market = 1 AND c.person_id IN (`+placeholders+`)
         ORDER BY release_date DESC LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("movies by cast: %w", err)
	}
	defer rows.Close()
	return collectMovies(rows)
}

func collectMovies(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]*Movie, error) {
	var movies []*Movie
	for rows.Next() {
		movie, err := scanMovie(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movie: %w", err)
		}
		movies = append(movies, movie)
	}
	return movies, rows.Err()
}

func inArgs(values []string) (string, []any) {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(values)), ","), args
}

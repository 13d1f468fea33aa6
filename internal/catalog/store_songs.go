package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// UpsertSongs writes automated song rows for a movie. Ids are derived from
// (movieID, source, normalized title) so repeated runs converge on the same
// rows. Rows whose deterministic id collides with an admin-curated song are
// skipped; admin rows are never silently overwritten.
func (s *Store) UpsertSongs(ctx context.Context, movieID string, songs []Song) (int, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	written := 0
	for _, song := range songs {
		if song.Title == "" {
			continue
		}
		source := normalizeSource(song.Source)
		id := song.ID
		if id == "" {
			id = SongID(movieID, source, song.Title)
		}

		var existingSource sql.NullString
		err := s.db.QueryRowContext(ctx, `SELECT source FROM songs WHERE id = ?`, id).Scan(&existingSource)
		if err != nil && err != sql.ErrNoRows {
			return written, fmt.Errorf("check song source: %w", err)
		}
		if existingSource.Valid && existingSource.String == SongSourceAdmin && source != SongSourceAdmin {
			continue
		}

		singers, err := json.Marshal(song.Singers)
		if err != nil {
			return written, fmt.Errorf("marshal singers: %w", err)
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO songs (id, movie_id, title, singers, link, source, platform, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
             ON CONFLICT(id) DO UPDATE SET
                 title = excluded.title, singers = excluded.singers,
                 link = excluded.link, source = excluded.source,
                 platform = excluded.platform, updated_at = excluded.updated_at`,
			id, movieID, song.Title, string(singers), nullableString(song.Link),
			source, nullableString(song.Platform), timestamp, timestamp,
		)
		if err != nil {
			return written, fmt.Errorf("upsert song: %w", err)
		}
		written++
	}
	return written, nil
}

// DeleteAutomatedSongs removes all non-admin songs for a movie. When
// includeAdmin is set, admin-curated rows go too (explicit override only).
func (s *Store) DeleteAutomatedSongs(ctx context.Context, movieID string, includeAdmin bool) error {
	var err error
	if includeAdmin {
		_, err = s.db.ExecContext(ctx, `DELETE FROM songs WHERE movie_id = ?`, movieID)
	} else {
		_, err = s.db.ExecContext(ctx, `DELETE FROM songs WHERE movie_id = ? AND source != ?`, movieID, SongSourceAdmin)
	}
	if err != nil {
		return fmt.Errorf("delete automated songs: %w", err)
	}
	return nil
}

// SongsForMovie returns all songs for a movie in insertion order.
func (s *Store) SongsForMovie(ctx context.Context, movieID string) ([]Song, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, movie_id, title, singers, link, source, platform, created_at, updated_at
         FROM songs WHERE movie_id = ? ORDER BY created_at, id`, movieID)
	if err != nil {
		return nil, fmt.Errorf("query songs: %w", err)
	}
	defer rows.Close()

	var songs []Song
	for rows.Next() {
		var (
			song      Song
			singers   sql.NullString
			link      sql.NullString
			platform  sql.NullString
			createdAt string
			updatedAt string
		)
		err := rows.Scan(&song.ID, &song.MovieID, &song.Title, &singers, &link,
			&song.Source, &platform, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan song: %w", err)
		}
		if singers.Valid && singers.String != "" {
			_ = json.Unmarshal([]byte(singers.String), &song.Singers)
		}
		song.Link = link.String
		song.Platform = platform.String
		song.CreatedAt = mustTime(createdAt)
		song.UpdatedAt = mustTime(updatedAt)
		songs = append(songs, song)
	}
	return songs, rows.Err()
}

// AddAttribution records provenance for a provider-sourced fact. Rows are
// append-only; a second write for the same (entityType, entityID, provider)
// is ignored.
func (s *Store) AddAttribution(ctx context.Context, attr Attribution) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO attributions (entity_type, entity_id, provider, provider_id, url, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		attr.EntityType, attr.EntityID, attr.Provider,
		nullableString(attr.ProviderID), nullableString(attr.URL),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("add attribution: %w", err)
	}
	return nil
}

// DeleteAttributions clears provenance rows for an entity before a forced
// re-fetch, so stale and fresh matches never mix. With providerFilter set,
// only rows from those providers go; other providers' provenance survives.
func (s *Store) DeleteAttributions(ctx context.Context, entityType, entityID string, providerFilter ...string) error {
	if len(providerFilter) == 0 {
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM attributions WHERE entity_type = ? AND entity_id = ?`, entityType, entityID)
		if err != nil {
			return fmt.Errorf("delete attributions: %w", err)
		}
		return nil
	}
	placeholders, args := inArgs(providerFilter)
	args = append([]any{entityType, entityID}, args...)
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM attributions WHERE entity_type = ? AND entity_id = ? AND provider IN (`+placeholders+`)`,
		args...)
	if err != nil {
		return fmt.Errorf("delete attributions: %w", err)
	}
	return nil
}

// AttributionsFor lists provenance rows for an entity.
func (s *Store) AttributionsFor(ctx context.Context, entityType, entityID string) ([]Attribution, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_type, entity_id, provider, provider_id, url, created_at
         FROM attributions WHERE entity_type = ? AND entity_id = ? ORDER BY provider`,
		entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("query attributions: %w", err)
	}
	defer rows.Close()

	var attrs []Attribution
	for rows.Next() {
		var (
			attr       Attribution
			providerID sql.NullString
			url        sql.NullString
			createdAt  string
		)
		if err := rows.Scan(&attr.EntityType, &attr.EntityID, &attr.Provider, &providerID, &url, &createdAt); err != nil {
			return nil, fmt.Errorf("scan attribution: %w", err)
		}
		attr.ProviderID = providerID.String
		attr.URL = url.String
		attr.CreatedAt = mustTime(createdAt)
		attrs = append(attrs, attr)
	}
	return attrs, rows.Err()
}

// UpsertRating writes one provider's rating; unique per (movie, source).
func (s *Store) UpsertRating(ctx context.Context, rating Rating) error {
	if rating.Scale <= 0 {
		rating.Scale = 10
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ratings (movie_id, source, value, scale, updated_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(movie_id, source) DO UPDATE SET
             value = excluded.value, scale = excluded.scale, updated_at = excluded.updated_at`,
		rating.MovieID, normalizeSource(rating.Source), rating.Value, rating.Scale,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert rating: %w", err)
	}
	return nil
}

// RatingsForMovie lists stored ratings.
func (s *Store) RatingsForMovie(ctx context.Context, movieID string) ([]Rating, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT movie_id, source, value, scale, updated_at FROM ratings WHERE movie_id = ? ORDER BY source`, movieID)
	if err != nil {
		return nil, fmt.Errorf("query ratings: %w", err)
	}
	defer rows.Close()

	var ratings []Rating
	for rows.Next() {
		var (
			rating    Rating
			updatedAt string
		)
		if err := rows.Scan(&rating.MovieID, &rating.Source, &rating.Value, &rating.Scale, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		rating.UpdatedAt = mustTime(updatedAt)
		ratings = append(ratings, rating)
	}
	return ratings, rows.Err()
}

// ReplaceReviews swaps the stored review snippets for a movie.
func (s *Store) ReplaceReviews(ctx context.Context, movieID string, reviews []Review) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin review tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM reviews WHERE movie_id = ?`, movieID); err != nil {
		return fmt.Errorf("clear reviews: %w", err)
	}
	for _, review := range reviews {
		if review.Content == "" {
			continue
		}
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO reviews (movie_id, source, author, content) VALUES (?, ?, ?, ?)`,
			movieID, normalizeSource(review.Source), review.Author, review.Content,
		)
		if err != nil {
			return fmt.Errorf("insert review: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reviews: %w", err)
	}
	return nil
}

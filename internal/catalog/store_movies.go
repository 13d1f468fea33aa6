package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cinesync/internal/textutil"
)

const movieColumns = `id, external_id, title, normalized_title, phonetic_code, language,
    release_date, synopsis, poster_url, backdrop_url, trailer_url, genres,
    primary_market, created_at, updated_at,
    EXISTS (SELECT 1 FROM deep_links dl WHERE dl.movie_id = movies.id) AS has_offer`

// UpsertMovie inserts or updates the canonical movie row. Matching prefers
// the internal id, then the external catalog id; rows are mutated in place so
// the internal id stays stable across refreshes. The returned movie carries
// the persisted id and derived status.
func (s *Store) UpsertMovie(ctx context.Context, movie *Movie) (*Movie, error) {
	if movie == nil {
		return nil, errors.New("movie is nil")
	}
	if movie.Title == "" {
		return nil, errors.New("movie title is empty")
	}
	movie.SyncTitleKeys()

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	existing, err := s.findExistingMovie(ctx, movie)
	if err != nil {
		return nil, err
	}

	genres, err := json.Marshal(movie.Genres)
	if err != nil {
		return nil, fmt.Errorf("marshal genres: %w", err)
	}

	if existing == "" {
		if movie.ID == "" {
			movie.ID = uuid.NewString()
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO movies (
                id, external_id, title, normalized_title, phonetic_code, language,
                release_date, synopsis, poster_url, backdrop_url, trailer_url,
                genres, primary_market, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			movie.ID, movie.ExternalID, movie.Title, movie.NormalizedTitle,
			movie.PhoneticCode, nullableString(movie.Language),
			nullableTime(movie.ReleaseDate), nullableString(movie.Synopsis),
			nullableString(movie.PosterURL), nullableString(movie.BackdropURL),
			nullableString(movie.TrailerURL), string(genres),
			boolToInt(movie.PrimaryMarket), timestamp, timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("insert movie: %w", err)
		}
		return s.GetMovie(ctx, movie.ID)
	}

	movie.ID = existing
	_, err = s.db.ExecContext(ctx,
		`UPDATE movies
         SET external_id = ?, title = ?, normalized_title = ?, phonetic_code = ?,
             language = ?, release_date = ?, synopsis = ?, poster_url = ?,
             backdrop_url = ?, trailer_url = ?, genres = ?, primary_market = ?,
             updated_at = ?
         WHERE id = ?`,
		movie.ExternalID, movie.Title, movie.NormalizedTitle, movie.PhoneticCode,
		nullableString(movie.Language), nullableTime(movie.ReleaseDate),
		nullableString(movie.Synopsis), nullableString(movie.PosterURL),
		nullableString(movie.BackdropURL), nullableString(movie.TrailerURL),
		string(genres), boolToInt(movie.PrimaryMarket), timestamp, existing,
	)
	if err != nil {
		return nil, fmt.Errorf("update movie: %w", err)
	}
	return s.GetMovie(ctx, existing)
}

func (s *Store) findExistingMovie(ctx context.Context, movie *Movie) (string, error) {
	if movie.ID != "" {
		var id string
		err := s.db.QueryRowContext(ctx, `SELECT id FROM movies WHERE id = ?`, movie.ID).Scan(&id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("lookup movie by id: %w", err)
		}
	}
	if movie.ExternalID > 0 {
		var id string
		err := s.db.QueryRowContext(ctx, `SELECT id FROM movies WHERE external_id = ?`, movie.ExternalID).Scan(&id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("lookup movie by external id: %w", err)
		}
	}
	return "", nil
}

// GetMovie fetches a movie by internal id. Returns nil when absent.
func (s *Store) GetMovie(ctx context.Context, id string) (*Movie, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+movieColumns+` FROM movies WHERE id = ?`, id)
	movie, err := scanMovie(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get movie: %w", err)
	}
	return movie, nil
}

// GetMovieByExternalID fetches a movie by the external catalog id.
func (s *Store) GetMovieByExternalID(ctx context.Context, externalID int64) (*Movie, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+movieColumns+` FROM movies WHERE external_id = ?`, externalID)
	movie, err := scanMovie(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get movie by external id: %w", err)
	}
	return movie, nil
}

// SetTrailer records the trailer link for a movie.
func (s *Store) SetTrailer(ctx context.Context, movieID, trailerURL string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE movies SET trailer_url = ?, updated_at = ? WHERE id = ?`,
		nullableString(trailerURL), time.Now().UTC().Format(time.RFC3339Nano), movieID,
	)
	if err != nil {
		return fmt.Errorf("set trailer: %w", err)
	}
	return nil
}

// UpsertPerson inserts or updates a canonical person, matching by internal
// id then external id.
func (s *Store) UpsertPerson(ctx context.Context, person *Person) (*Person, error) {
	if person == nil {
		return nil, errors.New("person is nil")
	}
	if person.Name == "" {
		return nil, errors.New("person name is empty")
	}
	person.PhoneticCode = textutil.PhoneticCode(person.Name)

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	filmography, err := json.Marshal(person.Filmography)
	if err != nil {
		return nil, fmt.Errorf("marshal filmography: %w", err)
	}

	var existing string
	if person.ExternalID > 0 {
		err := s.db.QueryRowContext(ctx, `SELECT id FROM persons WHERE external_id = ?`, person.ExternalID).Scan(&existing)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("lookup person: %w", err)
		}
	}

	if existing == "" {
		if person.ID == "" {
			person.ID = uuid.NewString()
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO persons (id, external_id, name, phonetic_code, biography, image_url, filmography, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			person.ID, person.ExternalID, person.Name, person.PhoneticCode,
			nullableString(person.Biography), nullableString(person.ImageURL),
			string(filmography), timestamp, timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("insert person: %w", err)
		}
		return person, nil
	}

	person.ID = existing
	_, err = s.db.ExecContext(ctx,
		`UPDATE persons
         SET name = ?, phonetic_code = ?, biography = ?, image_url = ?, filmography = ?, updated_at = ?
         WHERE id = ?`,
		person.Name, person.PhoneticCode, nullableString(person.Biography),
		nullableString(person.ImageURL), string(filmography), timestamp, existing,
	)
	if err != nil {
		return nil, fmt.Errorf("update person: %w", err)
	}
	return person, nil
}

// ReplaceCast swaps the billing list for a movie.
func (s *Store) ReplaceCast(ctx context.Context, movieID string, members []CastMember) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cast tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cast_members WHERE movie_id = ?`, movieID); err != nil {
		return fmt.Errorf("clear cast: %w", err)
	}
	for _, member := range members {
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO cast_members (movie_id, person_id, ord, character) VALUES (?, ?, ?, ?)`,
			movieID, member.PersonID, member.Ord, nullableString(member.Character),
		)
		if err != nil {
			return fmt.Errorf("insert cast member: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cast: %w", err)
	}
	return nil
}

// CastForMovie returns the billing-ordered cast persons.
func (s *Store) CastForMovie(ctx context.Context, movieID string) ([]*Person, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.id, p.external_id, p.name, p.phonetic_code, p.biography, p.image_url, p.filmography, p.created_at, p.updated_at
         FROM cast_members c JOIN persons p ON p.id = c.person_id
         WHERE c.movie_id = ? ORDER BY c.ord`, movieID)
	if err != nil {
		return nil, fmt.Errorf("query cast: %w", err)
	}
	defer rows.Close()
	return collectPersons(rows)
}

// ReplaceDeepLinks swaps the streaming deep links for a movie.
func (s *Store) ReplaceDeepLinks(ctx context.Context, movieID string, links []DeepLink) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin deep link tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM deep_links WHERE movie_id = ?`, movieID); err != nil {
		return fmt.Errorf("clear deep links: %w", err)
	}
	for _, link := range links {
		if link.URL == "" {
			continue
		}
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO deep_links (movie_id, provider, url, country) VALUES (?, ?, ?, ?)`,
			movieID, link.Provider, link.URL, link.Country,
		)
		if err != nil {
			return fmt.Errorf("insert deep link: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit deep links: %w", err)
	}
	return nil
}

// Facts gathers the counters the orchestrator uses for missing-field checks.
func (s *Store) Facts(ctx context.Context, movieID string) (Facts, error) {
	var facts Facts
	err := s.db.QueryRowContext(ctx, `
        SELECT
            (SELECT COUNT(1) FROM songs WHERE movie_id = ?1),
            (SELECT COUNT(1) FROM songs WHERE movie_id = ?1 AND link IS NOT NULL AND link != ''),
            (SELECT COUNT(1) FROM songs WHERE movie_id = ?1 AND source = ?2),
            (SELECT COUNT(1) FROM ratings WHERE movie_id = ?1),
            (SELECT COUNT(1) FROM reviews WHERE movie_id = ?1),
            (SELECT COUNT(1) FROM cast_members WHERE movie_id = ?1),
            (SELECT COUNT(1) FROM cast_members c JOIN persons p ON p.id = c.person_id
                WHERE c.movie_id = ?1 AND p.image_url IS NOT NULL AND p.image_url != ''),
            (SELECT COUNT(1) FROM deep_links WHERE movie_id = ?1)`,
		movieID, SongSourceAdmin,
	).Scan(
		&facts.SongCount, &facts.PlayableSongs, &facts.AdminSongs,
		&facts.RatingCount, &facts.ReviewCount, &facts.CastCount,
		&facts.CastImageCount, &facts.DeepLinkCount,
	)
	if err != nil {
		return Facts{}, fmt.Errorf("gather facts: %w", err)
	}
	return facts, nil
}

func scanMovie(row interface{ Scan(dest ...any) error }) (*Movie, error) {
	var (
		movie       Movie
		externalID  sql.NullInt64
		language    sql.NullString
		releaseDate sql.NullString
		synopsis    sql.NullString
		posterURL   sql.NullString
		backdropURL sql.NullString
		trailerURL  sql.NullString
		genres      sql.NullString
		primary     int
		createdAt   string
		updatedAt   string
		hasOffer    int
	)
	err := row.Scan(
		&movie.ID, &externalID, &movie.Title, &movie.NormalizedTitle,
		&movie.PhoneticCode, &language, &releaseDate, &synopsis,
		&posterURL, &backdropURL, &trailerURL, &genres,
		&primary, &createdAt, &updatedAt, &hasOffer,
	)
	if err != nil {
		return nil, err
	}
	movie.ExternalID = externalID.Int64
	movie.Language = language.String
	movie.ReleaseDate = parseTime(releaseDate)
	movie.Synopsis = synopsis.String
	movie.PosterURL = posterURL.String
	movie.BackdropURL = backdropURL.String
	movie.TrailerURL = trailerURL.String
	if genres.Valid && genres.String != "" {
		if err := json.Unmarshal([]byte(genres.String), &movie.Genres); err != nil {
			movie.Genres = nil
		}
	}
	movie.PrimaryMarket = primary != 0
	movie.CreatedAt = mustTime(createdAt)
	movie.UpdatedAt = mustTime(updatedAt)
	movie.HasStreamingOffer = hasOffer != 0
	movie.Status = DeriveLifecycle(movie.ReleaseDate, movie.HasStreamingOffer, time.Now().UTC())
	return &movie, nil
}

func collectPersons(rows *sql.Rows) ([]*Person, error) {
	var persons []*Person
	for rows.Next() {
		var (
			person      Person
			externalID  sql.NullInt64
			biography   sql.NullString
			imageURL    sql.NullString
			filmography sql.NullString
			createdAt   string
			updatedAt   string
		)
		err := rows.Scan(&person.ID, &externalID, &person.Name, &person.PhoneticCode,
			&biography, &imageURL, &filmography, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		person.ExternalID = externalID.Int64
		person.Biography = biography.String
		person.ImageURL = imageURL.String
		if filmography.Valid && filmography.String != "" {
			_ = json.Unmarshal([]byte(filmography.String), &person.Filmography)
		}
		person.CreatedAt = mustTime(createdAt)
		person.UpdatedAt = mustTime(updatedAt)
		persons = append(persons, &person)
	}
	return persons, rows.Err()
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

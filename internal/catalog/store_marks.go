package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// MarksFor returns the enrichment bookkeeping row for a movie. A missing row
// yields zero-value marks.
func (s *Store) MarksFor(ctx context.Context, movieID string) (Marks, error) {
	var (
		marks       = Marks{MovieID: movieID}
		lastAttempt sql.NullString
		lastSuccess sql.NullString
		songAttempt sql.NullString
		songSuccess sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT last_attempt_at, last_success_at, song_attempt_at, song_success_at
         FROM enrichment_marks WHERE movie_id = ?`, movieID,
	).Scan(&lastAttempt, &lastSuccess, &songAttempt, &songSuccess)
	if errors.Is(err, sql.ErrNoRows) {
		return marks, nil
	}
	if err != nil {
		return marks, fmt.Errorf("get marks: %w", err)
	}
	marks.LastAttempt = parseTime(lastAttempt)
	marks.LastSuccess = parseTime(lastSuccess)
	marks.SongAttemptAt = parseTime(songAttempt)
	marks.SongSuccessAt = parseTime(songSuccess)
	return marks, nil
}

type markColumn string

const (
	MarkAttempt     markColumn = "last_attempt_at"
	MarkSuccess     markColumn = "last_success_at"
	MarkSongAttempt markColumn = "song_attempt_at"
	MarkSongSuccess markColumn = "song_success_at"
)

// Touch stamps one bookkeeping column for a movie at the supplied instant.
func (s *Store) Touch(ctx context.Context, movieID string, column markColumn, at time.Time) error {
	stamp := at.UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO enrichment_marks (movie_id, `+string(column)+`) VALUES (?, ?)
         ON CONFLICT(movie_id) DO UPDATE SET `+string(column)+` = excluded.`+string(column),
		movieID, stamp,
	)
	if err != nil {
		return fmt.Errorf("touch %s: %w", column, err)
	}
	return nil
}

package enrich

import (
	"context"
	"fmt"

	"cinesync/internal/catalog"
	"cinesync/internal/logging"
	"cinesync/internal/match"
	"cinesync/internal/providers"
	"cinesync/internal/textutil"
	"cinesync/internal/tracklist"
)

// songPipeline resolves and commits the movie's soundtrack. Source priority:
// the music track catalog (commit when enough tracks link to playable
// videos), the encyclopedia tracklist at a lower link threshold, then
// heuristic video-only search. A forced run clears automated songs first so
// stale and fresh matches never mix.
func (o *Orchestrator) songPipeline(ctx context.Context, movie *catalog.Movie, marks catalog.Marks, opts Options) (int, string, error) {
	forced := opts.ForceSongs || opts.ForceFull
	now := o.now()
	if !forced {
		if marks.SongSuccessAt != nil && now.Sub(*marks.SongSuccessAt) < o.songSuccessTTL {
			return 0, "", nil
		}
		if marks.SongAttemptAt != nil && now.Sub(*marks.SongAttemptAt) < o.songAttemptTTL {
			return 0, "", nil
		}
	}
	if err := o.store.Touch(ctx, movie.ID, catalog.MarkSongAttempt, now); err != nil {
		return 0, "", err
	}
	if forced {
		if err := o.store.DeleteAutomatedSongs(ctx, movie.ID, opts.ReplaceAdminSongs); err != nil {
			return 0, "", err
		}
		// Song provenance goes with the songs; catalog and ratings rows stay.
		if err := o.store.DeleteAttributions(ctx, catalog.EntityMovie, movie.ID,
			providers.NameTrackCatalog, providers.NameEncyclopedia, providers.NameVideoSearch); err != nil {
			return 0, "", err
		}
	}

	target := o.linkTarget(ctx, movie)

	// Music catalog first: its tracklists are cleanest when they exist.
	year := target.Year
	catalogTracks, err := guardCall(ctx, o.quota, providers.NameTrackCatalog, func() ([]providers.Track, error) {
		return o.trackCat.Tracklist(ctx, movie.Title, year, movie.Language)
	})
	if err != nil && !providers.IsNotFound(err) {
		o.logger.Warn("track catalog unavailable", logging.String("movie_id", movie.ID), logging.Error(err))
	}
	if len(catalogTracks) > 0 {
		committed, done, err := o.linkAndCommit(ctx, movie, target, catalogTracks,
			catalog.SongSourceTrackCatalog, o.catalogThreshold)
		if err != nil || done {
			return committed, catalog.SongSourceTrackCatalog, err
		}
	}

	// Encyclopedia fallback at a lower link threshold.
	wikiTracks, err := o.pages.Tracks(ctx, tracklist.PageQuery{
		Title:         movie.Title,
		Year:          target.Year,
		Language:      movie.Language,
		CastHints:     target.CastHints,
		TitleOverride: opts.WikiTitleOverride,
	})
	if err != nil {
		o.logger.Warn("encyclopedia tracklist unavailable", logging.String("movie_id", movie.ID), logging.Error(err))
	}
	if len(wikiTracks) > 0 {
		committed, done, err := o.linkAndCommit(ctx, movie, target, wikiTracks,
			catalog.SongSourceEncyclopedia, o.wikiThreshold)
		if err != nil || done {
			return committed, catalog.SongSourceEncyclopedia, err
		}
	}

	// Last resort: mine the video search pool directly.
	committed, err := o.heuristicSongs(ctx, movie, target)
	if err != nil {
		return 0, "", err
	}
	return committed, catalog.SongSourceVideoSearch, nil
}

// linkAndCommit links a candidate tracklist and commits it when the linked
// ratio clears the threshold. A rate-limited linker means the video circuit
// is open: the tracklist is committed links-optional rather than discarded.
// done reports whether this source settled the pipeline.
func (o *Orchestrator) linkAndCommit(ctx context.Context, movie *catalog.Movie, target tracklist.LinkTarget, tracks []providers.Track, source string, threshold float64) (int, bool, error) {
	linked, err := o.linker.Link(ctx, target, tracks)
	if err != nil {
		if !providers.IsRateLimited(err) {
			o.logger.Warn("track linking failed", logging.String("movie_id", movie.ID), logging.Error(err))
			return 0, false, nil
		}
		unlinked := make([]tracklist.LinkedTrack, len(tracks))
		for i, track := range tracks {
			unlinked[i] = tracklist.LinkedTrack{Track: track}
		}
		committed, err := o.commitSongs(ctx, movie, unlinked, source)
		return committed, true, err
	}
	if tracklist.LinkedRatio(linked) < threshold {
		return 0, false, nil
	}
	committed, err := o.commitSongs(ctx, movie, linked, source)
	return committed, true, err
}

// heuristicSongs builds songs straight from scored video search results.
func (o *Orchestrator) heuristicSongs(ctx context.Context, movie *catalog.Movie, target tracklist.LinkTarget) (int, error) {
	filters := providers.VideoFilters{Category: "music", LanguageHint: movie.Language, Region: o.region}
	queries := []string{
		fmt.Sprintf("%s %s songs", movie.Title, movie.Language),
		fmt.Sprintf("%s %s jukebox", movie.Title, movie.Language),
	}
	scoreTarget := match.Target{
		TrackTitle: movie.Title,
		MovieTitle: movie.Title,
		Language:   movie.Language,
		Year:       target.Year,
		CastHints:  target.CastHints,
	}
	seen := make(map[string]struct{})
	var songs []tracklist.LinkedTrack
	for _, query := range queries {
		candidates, err := o.video.Search(ctx, query, filters)
		if err != nil {
			if providers.IsRateLimited(err) {
				return 0, nil
			}
			o.logger.Warn("heuristic song search failed", logging.String("movie_id", movie.ID), logging.Error(err))
			continue
		}
		for _, candidate := range candidates {
			if match.Score(scoreTarget, candidate.Title, candidate.Description, match.BestEffort) <= 0 {
				continue
			}
			key := textutil.Normalize(candidate.Title)
			if _, dup := seen[key]; dup || key == "" {
				continue
			}
			seen[key] = struct{}{}
			songs = append(songs, tracklist.LinkedTrack{
				Track:    providers.Track{Title: candidate.Title},
				Link:     candidate.URL,
				Platform: providers.NameVideoSearch,
			})
			if len(songs) >= 10 {
				break
			}
		}
		if len(songs) >= 10 {
			break
		}
	}
	if len(songs) == 0 {
		return 0, nil
	}
	return o.commitSongs(ctx, movie, songs, catalog.SongSourceVideoSearch)
}

func (o *Orchestrator) commitSongs(ctx context.Context, movie *catalog.Movie, tracks []tracklist.LinkedTrack, source string) (int, error) {
	songs := make([]catalog.Song, 0, len(tracks))
	for _, track := range tracks {
		songs = append(songs, catalog.Song{
			MovieID:  movie.ID,
			Title:    track.Title,
			Singers:  track.Singers,
			Link:     track.Link,
			Source:   source,
			Platform: track.Platform,
		})
	}
	committed, err := o.store.UpsertSongs(ctx, movie.ID, songs)
	if err != nil {
		return committed, err
	}
	if committed == 0 {
		return 0, nil
	}
	if err := o.store.AddAttribution(ctx, catalog.Attribution{
		EntityType: catalog.EntityMovie,
		EntityID:   movie.ID,
		Provider:   sourceProvider(source),
	}); err != nil {
		return committed, err
	}
	if err := o.store.Touch(ctx, movie.ID, catalog.MarkSongSuccess, o.now()); err != nil {
		return committed, err
	}
	o.logger.Info("songs committed",
		logging.String("movie_id", movie.ID),
		logging.String("source", source),
		logging.Int("count", committed))
	return committed, nil
}

// linkTarget assembles the scoring facts for a movie: year, language, and
// the top-billed cast names as disambiguation hints.
func (o *Orchestrator) linkTarget(ctx context.Context, movie *catalog.Movie) tracklist.LinkTarget {
	target := tracklist.LinkTarget{
		MovieTitle: movie.Title,
		Language:   movie.Language,
		Region:     o.region,
	}
	if movie.ReleaseDate != nil {
		target.Year = movie.ReleaseDate.Year()
	}
	cast, err := o.store.CastForMovie(ctx, movie.ID)
	if err != nil {
		o.logger.Warn("load cast failed", logging.String("movie_id", movie.ID), logging.Error(err))
		return target
	}
	for i, person := range cast {
		if i == 5 {
			break
		}
		target.CastHints = append(target.CastHints, person.Name)
	}
	return target
}

func sourceProvider(source string) string {
	switch source {
	case catalog.SongSourceTrackCatalog:
		return providers.NameTrackCatalog
	case catalog.SongSourceEncyclopedia:
		return providers.NameEncyclopedia
	default:
		return providers.NameVideoSearch
	}
}

package tracklist

import (
	"context"
	"fmt"
	"log/slog"

	"cinesync/internal/logging"
	"cinesync/internal/match"
	"cinesync/internal/providers"
)

// VideoSearcher is the provider surface track linking needs.
type VideoSearcher interface {
	Search(ctx context.Context, query string, filters providers.VideoFilters) ([]providers.VideoCandidate, error)
}

// LinkedTrack is a track with its playable link resolved, when one was.
type LinkedTrack struct {
	providers.Track
	Link     string
	Platform string
}

// LinkTarget carries the movie facts candidate scoring needs.
type LinkTarget struct {
	MovieTitle string
	Language   string
	Year       int
	CastHints  []string
	Region     string
}

// Linker matches canonical tracks to playable video links.
type Linker struct {
	video         VideoSearcher
	logger        *slog.Logger
	perTrackLimit int
}

// NewLinker creates a linker. perTrackLimit bounds how many individual
// lookups are spent on tracks the shared pool could not match.
func NewLinker(video VideoSearcher, logger *slog.Logger, perTrackLimit int) *Linker {
	if perTrackLimit < 0 {
		perTrackLimit = 0
	}
	return &Linker{
		video:         video,
		logger:        logging.WithComponent(logger, "tracklinker"),
		perTrackLimit: perTrackLimit,
	}
}

// Link resolves playable links for tracks. Two broad pool queries cover most
// tracks in one or two provider calls; leftovers get bounded individual
// lookups. Rate-limit errors propagate so the caller can open the circuit;
// other provider failures leave tracks unlinked.
func (l *Linker) Link(ctx context.Context, target LinkTarget, tracks []providers.Track) ([]LinkedTrack, error) {
	filters := providers.VideoFilters{
		Category:     "music",
		LanguageHint: target.Language,
		Region:       target.Region,
	}
	pool, err := l.candidatePool(ctx, target, filters)
	if err != nil {
		return nil, err
	}

	mode := match.ModeFor(target.MovieTitle)
	linked := make([]LinkedTrack, len(tracks))
	lookupsLeft := l.perTrackLimit
	for i, track := range tracks {
		linked[i] = LinkedTrack{Track: track}
		scoreTarget := match.Target{
			TrackTitle: track.Title,
			MovieTitle: target.MovieTitle,
			Language:   target.Language,
			Year:       target.Year,
			CastHints:  append(append([]string(nil), target.CastHints...), track.Singers...),
		}
		if best := bestCandidate(scoreTarget, pool, mode); best != nil {
			linked[i].Link = best.URL
			linked[i].Platform = providers.NameVideoSearch
			continue
		}
		if lookupsLeft == 0 {
			continue
		}
		lookupsLeft--
		query := fmt.Sprintf("%s %s song", track.Title, target.MovieTitle)
		candidates, err := l.video.Search(ctx, query, filters)
		if err != nil {
			if providers.IsRateLimited(err) {
				return nil, err
			}
			l.logger.Warn("per-track lookup failed", logging.String("track", track.Title), logging.Error(err))
			continue
		}
		if best := bestCandidate(scoreTarget, candidates, mode); best != nil {
			linked[i].Link = best.URL
			linked[i].Platform = providers.NameVideoSearch
		}
	}
	return linked, nil
}

// candidatePool runs the two broad queries and concatenates their results.
func (l *Linker) candidatePool(ctx context.Context, target LinkTarget, filters providers.VideoFilters) ([]providers.VideoCandidate, error) {
	queries := []string{
		fmt.Sprintf("%s %s songs", target.MovieTitle, target.Language),
		fmt.Sprintf("%s %s jukebox", target.MovieTitle, target.Language),
	}
	var pool []providers.VideoCandidate
	for _, query := range queries {
		candidates, err := l.video.Search(ctx, query, filters)
		if err != nil {
			if providers.IsRateLimited(err) {
				return nil, err
			}
			l.logger.Warn("pool query failed", logging.String("query", query), logging.Error(err))
			continue
		}
		pool = append(pool, candidates...)
	}
	return pool, nil
}

func bestCandidate(target match.Target, candidates []providers.VideoCandidate, mode match.Mode) *providers.VideoCandidate {
	bestScore := 0.0
	var best *providers.VideoCandidate
	for i := range candidates {
		score := match.Score(target, candidates[i].Title, candidates[i].Description, mode)
		if score > bestScore {
			bestScore = score
			best = &candidates[i]
		}
	}
	return best
}

// LinkedRatio is the fraction of tracks carrying a playable link.
func LinkedRatio(tracks []LinkedTrack) float64 {
	if len(tracks) == 0 {
		return 0
	}
	linked := 0
	for _, track := range tracks {
		if track.Link != "" {
			linked++
		}
	}
	return float64(linked) / float64(len(tracks))
}

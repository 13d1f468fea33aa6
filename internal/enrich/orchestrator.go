// Package enrich implements the per-movie enrichment orchestrator: the
// state machine that decides what a stored movie is missing, applies TTL
// gating, calls providers in priority order behind the quota registry, and
// commits merged results. Per-movie runs are serialized by the in-flight
// registry; provider failures are outcomes, not aborts.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"cinesync/internal/catalog"
	"cinesync/internal/config"
	"cinesync/internal/logging"
	"cinesync/internal/providers"
	"cinesync/internal/quota"
	"cinesync/internal/textutil"
	"cinesync/internal/tracklist"
)

// CatalogProvider is the canonical metadata source.
type CatalogProvider interface {
	MovieDetails(ctx context.Context, externalID int64) (*providers.MovieDetails, error)
	DeepLinks(ctx context.Context, externalID int64, country string) ([]providers.DeepLink, error)
}

// TrackCatalog is the music catalog tracklist source.
type TrackCatalog interface {
	Tracklist(ctx context.Context, title string, year int, language string) ([]providers.Track, error)
}

// PageResolver is the encyclopedia tracklist source.
type PageResolver interface {
	Tracks(ctx context.Context, query tracklist.PageQuery) ([]providers.Track, error)
}

// TrackLinker resolves playable links for a tracklist.
type TrackLinker interface {
	Link(ctx context.Context, target tracklist.LinkTarget, tracks []providers.Track) ([]tracklist.LinkedTrack, error)
}

// RatingsProvider fetches aggregate scores.
type RatingsProvider interface {
	Fetch(ctx context.Context, title string, year int) ([]providers.Rating, error)
}

// Options tunes one enrichment invocation.
type Options struct {
	// ForceFull re-fetches everything regardless of TTLs.
	ForceFull bool
	// ForceSongs re-runs the song pipeline regardless of song TTLs,
	// clearing previously automated songs first.
	ForceSongs bool
	// AutoSongs enables the automated song pipeline. When false, songs
	// stay admin-curated only.
	AutoSongs bool
	// ReplaceAdminSongs extends a forced song refresh to admin-curated
	// rows. Explicit override only.
	ReplaceAdminSongs bool
	// WikiTitleOverride pins the encyclopedia page title.
	WikiTitleOverride string
	// Country overrides the configured deep-link country.
	Country string
}

// State labels what an invocation decided to do.
type State string

const (
	StateFresh     State = "fresh"
	StateSongsOnly State = "songs_only"
	StateFull      State = "full"
	StateInFlight  State = "in_flight"
)

// Outcome summarizes one enrichment invocation.
type Outcome struct {
	MovieID        string
	State          State
	SongsCommitted int
	SongSource     string
}

// Orchestrator drives enrichment for single movies.
type Orchestrator struct {
	store    *catalog.Store
	quota    *quota.Registry
	catalog  CatalogProvider
	trackCat TrackCatalog
	pages    PageResolver
	linker   TrackLinker
	video    tracklist.VideoSearcher
	ratings  RatingsProvider
	inflight *Inflight
	logger   *slog.Logger

	country          string
	region           string
	upcomingTTL      time.Duration
	releasedTTL      time.Duration
	songAttemptTTL   time.Duration
	songSuccessTTL   time.Duration
	catalogThreshold float64
	wikiThreshold    float64

	now func() time.Time
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Store    *catalog.Store
	Quota    *quota.Registry
	Catalog  CatalogProvider
	TrackCat TrackCatalog
	Pages    PageResolver
	Linker   TrackLinker
	Video    tracklist.VideoSearcher
	Ratings  RatingsProvider
	Logger   *slog.Logger
}

// New creates an orchestrator from config and collaborators. The video
// searcher is wrapped with circuit-breaker bookkeeping; pass the raw client.
// When Deps.Linker is nil a track linker over the wrapped searcher is built.
func New(cfg *config.Config, deps Deps) *Orchestrator {
	video := deps.Video
	if video != nil && deps.Quota != nil {
		video = guardedVideo{inner: video, quota: deps.Quota}
	}
	if deps.Linker == nil && video != nil {
		deps.Linker = tracklist.NewLinker(video, deps.Logger, cfg.Enrichment.PerTrackLookupLimit)
	}
	return &Orchestrator{
		store:            deps.Store,
		quota:            deps.Quota,
		catalog:          deps.Catalog,
		trackCat:         deps.TrackCat,
		pages:            deps.Pages,
		linker:           deps.Linker,
		video:            video,
		ratings:          deps.Ratings,
		inflight:         NewInflight(),
		logger:           logging.WithComponent(deps.Logger, "enrich"),
		country:          cfg.Catalog.Country,
		region:           cfg.VideoSearch.Region,
		upcomingTTL:      time.Duration(cfg.Enrichment.UpcomingTTLHours) * time.Hour,
		releasedTTL:      time.Duration(cfg.Enrichment.ReleasedTTLDays) * 24 * time.Hour,
		songAttemptTTL:   time.Duration(cfg.Enrichment.SongAttemptTTLHours) * time.Hour,
		songSuccessTTL:   time.Duration(cfg.Enrichment.SongSuccessTTLDays) * 24 * time.Hour,
		catalogThreshold: cfg.Enrichment.CatalogLinkThreshold,
		wikiThreshold:    cfg.Enrichment.WikiLinkThreshold,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// GuardedVideo exposes the circuit-wrapped video searcher so the track
// linker can be constructed over the same guard.
func (o *Orchestrator) GuardedVideo() tracklist.VideoSearcher { return o.video }

// Await returns the done channel for a running enrichment of externalID.
func (o *Orchestrator) Await(externalID int64) (<-chan struct{}, bool) {
	return o.inflight.Running(strconv.FormatInt(externalID, 10))
}

// EnsureEnriched runs the enrichment state machine for one movie, keyed by
// its catalog external id. A concurrent invocation for the same id returns
// immediately with StateInFlight and starts no work.
func (o *Orchestrator) EnsureEnriched(ctx context.Context, externalID int64, opts Options) (Outcome, error) {
	key := strconv.FormatInt(externalID, 10)
	done, ok := o.inflight.Begin(key)
	if !ok {
		return Outcome{State: StateInFlight}, nil
	}
	defer done()
	return o.run(ctx, externalID, opts)
}

// needs captures the missing-field flags for one movie.
type needs struct {
	details bool
	trailer bool
	offers  bool
	ratings bool
	songs   bool
}

func (n needs) any() bool {
	return n.details || n.trailer || n.offers || n.ratings || n.songs
}

func (n needs) onlySongs() bool {
	return n.songs && !n.details && !n.trailer && !n.offers && !n.ratings
}

// computeNeeds derives missing-field flags from the stored movie and its
// fact counters.
func (o *Orchestrator) computeNeeds(movie *catalog.Movie, facts catalog.Facts) needs {
	n := needs{
		trailer: movie.TrailerURL == "",
		offers:  facts.DeepLinkCount == 0,
		ratings: facts.RatingCount == 0,
		songs:   facts.AdminSongs == 0 && (facts.SongCount == 0 || facts.PlayableSongs == 0),
	}
	if facts.CastCount == 0 || facts.CastImageCount < facts.CastCount {
		n.details = true
	}
	if movie.Status == catalog.StatusAnnounced || movie.Status == catalog.StatusUpcoming {
		// Upcoming titles churn synopsis and artwork until release.
		if movie.Synopsis == "" || movie.PosterURL == "" {
			n.details = true
		}
		// No streaming offers exist before release; do not chase them.
		n.offers = false
	}
	return n
}

func (o *Orchestrator) run(ctx context.Context, externalID int64, opts Options) (Outcome, error) {
	movie, err := o.store.GetMovieByExternalID(ctx, externalID)
	if err != nil {
		return Outcome{}, err
	}

	if movie == nil {
		return o.fullRefresh(ctx, externalID, nil, opts)
	}

	facts, err := o.store.Facts(ctx, movie.ID)
	if err != nil {
		return Outcome{}, err
	}
	marks, err := o.store.MarksFor(ctx, movie.ID)
	if err != nil {
		return Outcome{}, err
	}

	need := o.computeNeeds(movie, facts)
	switch {
	case opts.ForceFull:
		return o.fullRefresh(ctx, externalID, movie, opts)
	case opts.ForceSongs:
		return o.songsOnly(ctx, movie, marks, opts)
	case !need.any():
		return Outcome{MovieID: movie.ID, State: StateFresh}, nil
	case need.onlySongs():
		return o.songsOnly(ctx, movie, marks, opts)
	}

	// A stale full refresh is due, unless the last success is still inside
	// the lifecycle-tiered TTL; then only the song pipeline may run.
	ttl := o.releasedTTL
	if movie.Status == catalog.StatusAnnounced || movie.Status == catalog.StatusUpcoming {
		ttl = o.upcomingTTL
	}
	if marks.LastSuccess != nil && o.now().Sub(*marks.LastSuccess) < ttl {
		return o.songsOnly(ctx, movie, marks, opts)
	}
	return o.fullRefresh(ctx, externalID, movie, opts)
}

// songsOnly runs the song pipeline against stored movie facts, skipping the
// catalog re-fetch entirely.
func (o *Orchestrator) songsOnly(ctx context.Context, movie *catalog.Movie, marks catalog.Marks, opts Options) (Outcome, error) {
	outcome := Outcome{MovieID: movie.ID, State: StateSongsOnly}
	if !opts.AutoSongs {
		return outcome, nil
	}
	committed, source, err := o.songPipeline(ctx, movie, marks, opts)
	if err != nil {
		return outcome, err
	}
	outcome.SongsCommitted = committed
	outcome.SongSource = source
	return outcome, nil
}

// fullRefresh re-fetches canonical details and runs every sub-step. Each
// provider failure is logged and skipped; only store failures and a failed
// first-ever fetch abort the run.
func (o *Orchestrator) fullRefresh(ctx context.Context, externalID int64, movie *catalog.Movie, opts Options) (Outcome, error) {
	now := o.now()
	if movie != nil {
		if err := o.store.Touch(ctx, movie.ID, catalog.MarkAttempt, now); err != nil {
			return Outcome{}, err
		}
	}

	details, err := guardCall(ctx, o.quota, providers.NameCatalog, func() (*providers.MovieDetails, error) {
		return o.catalog.MovieDetails(ctx, externalID)
	})
	switch {
	case err == nil:
		movie, err = o.commitDetails(ctx, movie, details)
		if err != nil {
			return Outcome{}, err
		}
	case movie == nil:
		// Nothing stored to fall back on.
		return Outcome{}, fmt.Errorf("fetch movie %d: %w", externalID, err)
	default:
		o.logger.Warn("details fetch failed, using stored record",
			logging.Int64("external_id", externalID), logging.Error(err))
	}

	outcome := Outcome{MovieID: movie.ID, State: StateFull}

	if movie.Status != catalog.StatusAnnounced && movie.Status != catalog.StatusUpcoming {
		o.refreshDeepLinks(ctx, movie, opts)
	}
	if movie.TrailerURL == "" {
		o.backfillTrailer(ctx, movie)
	}

	if opts.AutoSongs {
		marks, err := o.store.MarksFor(ctx, movie.ID)
		if err != nil {
			return Outcome{}, err
		}
		committed, source, err := o.songPipeline(ctx, movie, marks, opts)
		if err != nil {
			return Outcome{}, err
		}
		outcome.SongsCommitted = committed
		outcome.SongSource = source
	}

	o.refreshRatings(ctx, movie)

	if err := o.store.Touch(ctx, movie.ID, catalog.MarkSuccess, o.now()); err != nil {
		return Outcome{}, err
	}
	return outcome, nil
}

// commitDetails merges fetched details into the store: movie row, cast,
// and provenance.
func (o *Orchestrator) commitDetails(ctx context.Context, existing *catalog.Movie, details *providers.MovieDetails) (*catalog.Movie, error) {
	movie := &catalog.Movie{
		ExternalID:    details.ExternalID,
		Title:         details.Title,
		Language:      details.Language,
		ReleaseDate:   details.ReleaseDate,
		Synopsis:      details.Synopsis,
		PosterURL:     details.PosterURL,
		BackdropURL:   details.BackdropURL,
		Genres:        details.Genres,
		PrimaryMarket: true,
	}
	if existing != nil {
		movie.ID = existing.ID
		movie.TrailerURL = existing.TrailerURL
		if movie.Synopsis == "" {
			movie.Synopsis = existing.Synopsis
		}
	}
	movie, err := o.store.UpsertMovie(ctx, movie)
	if err != nil {
		return nil, err
	}
	if err := o.store.AddAttribution(ctx, catalog.Attribution{
		EntityType: catalog.EntityMovie,
		EntityID:   movie.ID,
		Provider:   providers.NameCatalog,
		ProviderID: strconv.FormatInt(details.ExternalID, 10),
	}); err != nil {
		return nil, err
	}

	members := make([]catalog.CastMember, 0, len(details.Cast))
	for _, credit := range details.Cast {
		person, err := o.store.UpsertPerson(ctx, &catalog.Person{
			ExternalID: credit.ExternalID,
			Name:       credit.Name,
			ImageURL:   credit.ImageURL,
		})
		if err != nil {
			return nil, err
		}
		members = append(members, catalog.CastMember{
			MovieID:   movie.ID,
			PersonID:  person.ID,
			Ord:       credit.Ord,
			Character: credit.Character,
		})
	}
	if len(members) > 0 {
		if err := o.store.ReplaceCast(ctx, movie.ID, members); err != nil {
			return nil, err
		}
	}
	return movie, nil
}

func (o *Orchestrator) refreshDeepLinks(ctx context.Context, movie *catalog.Movie, opts Options) {
	country := o.country
	if opts.Country != "" {
		country = opts.Country
	}
	links, err := guardCall(ctx, o.quota, providers.NameCatalog, func() ([]providers.DeepLink, error) {
		return o.catalog.DeepLinks(ctx, movie.ExternalID, country)
	})
	if err != nil {
		o.logger.Warn("deep links fetch failed", logging.String("movie_id", movie.ID), logging.Error(err))
		return
	}
	stored := make([]catalog.DeepLink, 0, len(links))
	for _, link := range links {
		stored = append(stored, catalog.DeepLink{
			MovieID:  movie.ID,
			Provider: link.Provider,
			URL:      link.URL,
			Country:  link.Country,
		})
	}
	if err := o.store.ReplaceDeepLinks(ctx, movie.ID, stored); err != nil {
		o.logger.Warn("persist deep links failed", logging.String("movie_id", movie.ID), logging.Error(err))
		return
	}
	movie.HasStreamingOffer = len(stored) > 0
	movie.Status = catalog.DeriveLifecycle(movie.ReleaseDate, movie.HasStreamingOffer, o.now())
}

// backfillTrailer finds an official trailer through video search. The first
// candidate naming the movie and carrying a trailer keyword wins.
func (o *Orchestrator) backfillTrailer(ctx context.Context, movie *catalog.Movie) {
	query := movie.Title + " official trailer"
	if movie.ReleaseDate != nil {
		query = fmt.Sprintf("%s %d official trailer", movie.Title, movie.ReleaseDate.Year())
	}
	candidates, err := o.video.Search(ctx, query, providers.VideoFilters{Region: o.region})
	if err != nil {
		o.logger.Warn("trailer search failed", logging.String("movie_id", movie.ID), logging.Error(err))
		return
	}
	url := pickTrailer(movie.Title, candidates)
	if url == "" {
		return
	}
	if err := o.store.SetTrailer(ctx, movie.ID, url); err != nil {
		o.logger.Warn("persist trailer failed", logging.String("movie_id", movie.ID), logging.Error(err))
		return
	}
	movie.TrailerURL = url
}

// pickTrailer selects the first candidate that names the movie and calls
// itself a trailer or teaser.
func pickTrailer(movieTitle string, candidates []providers.VideoCandidate) string {
	titleTokens := textutil.Tokenize(movieTitle)
	for _, candidate := range candidates {
		hay := textutil.Normalize(candidate.Title)
		if !strings.Contains(hay, "trailer") && !strings.Contains(hay, "teaser") {
			continue
		}
		matched := 0
		for _, token := range titleTokens {
			if strings.Contains(hay, token) {
				matched++
			}
		}
		if len(titleTokens) > 0 && float64(matched)/float64(len(titleTokens)) >= 0.5 {
			return candidate.URL
		}
	}
	return ""
}

func (o *Orchestrator) refreshRatings(ctx context.Context, movie *catalog.Movie) {
	year := 0
	if movie.ReleaseDate != nil {
		year = movie.ReleaseDate.Year()
	}
	fetched, err := guardCall(ctx, o.quota, providers.NameRatings, func() ([]providers.Rating, error) {
		return o.ratings.Fetch(ctx, movie.Title, year)
	})
	if err != nil {
		if !providers.IsNotFound(err) {
			o.logger.Warn("ratings fetch failed", logging.String("movie_id", movie.ID), logging.Error(err))
		}
		return
	}
	for _, rating := range fetched {
		err := o.store.UpsertRating(ctx, catalog.Rating{
			MovieID: movie.ID,
			Source:  rating.Source,
			Value:   rating.Value,
			Scale:   rating.Scale,
		})
		if err != nil {
			o.logger.Warn("persist rating failed", logging.String("movie_id", movie.ID), logging.Error(err))
			return
		}
	}
	if len(fetched) > 0 {
		if err := o.store.AddAttribution(ctx, catalog.Attribution{
			EntityType: catalog.EntityMovie,
			EntityID:   movie.ID,
			Provider:   providers.NameRatings,
		}); err != nil {
			o.logger.Warn("persist attribution failed", logging.String("movie_id", movie.ID), logging.Error(err))
		}
	}
}

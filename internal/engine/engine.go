// Package engine assembles the store, provider clients, quota registry,
// and pipelines into the surface the CLI (and any outer web layer) uses.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"cinesync/internal/backfill"
	"cinesync/internal/catalog"
	"cinesync/internal/config"
	"cinesync/internal/enrich"
	"cinesync/internal/logging"
	"cinesync/internal/providers"
	"cinesync/internal/providers/catalogapi"
	"cinesync/internal/providers/ratings"
	"cinesync/internal/providers/trackapi"
	"cinesync/internal/providers/videosearch"
	"cinesync/internal/providers/wikipedia"
	"cinesync/internal/quota"
	"cinesync/internal/search"
	"cinesync/internal/tracklist"
)

// Engine is the assembled reconciliation engine.
type Engine struct {
	cfg           *config.Config
	logger        *slog.Logger
	store         *catalog.Store
	quota         *quota.Registry
	catalogClient *catalogapi.Client
	resolver      *search.Resolver
	orch          *enrich.Orchestrator
	scheduler     *backfill.Scheduler
}

// New opens the store and wires every component from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	store, err := catalog.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open catalog store: %w", err)
	}

	catalogClient, err := catalogapi.New(cfg.Catalog.APIKey, cfg.Catalog.BaseURL, cfg.Catalog.Country)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("catalog client: %w", err)
	}
	videoClient, err := videosearch.New(cfg.VideoSearch.APIKey, cfg.VideoSearch.BaseURL, cfg.VideoSearch.Region)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("video search client: %w", err)
	}
	wikiClient, err := wikipedia.New(cfg.Encyclopedia.BaseURL, cfg.Encyclopedia.UserAgent)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("encyclopedia client: %w", err)
	}
	trackClient, err := trackapi.New(cfg.TrackCatalog.BaseURL)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("track catalog client: %w", err)
	}

	var ratingsProvider enrich.RatingsProvider = noopRatings{}
	if cfg.Ratings.APIKey != "" {
		client, err := ratings.New(cfg.Ratings.APIKey, cfg.Ratings.BaseURL)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("ratings client: %w", err)
		}
		ratingsProvider = client
	}

	registry := quota.NewFromConfig(store, logger, cfg)
	orch := enrich.New(cfg, enrich.Deps{
		Store:    store,
		Quota:    registry,
		Catalog:  catalogClient,
		TrackCat: trackClient,
		Pages:    tracklist.NewResolver(wikiClient, logger),
		Video:    videoClient,
		Ratings:  ratingsProvider,
		Logger:   logger,
	})

	return &Engine{
		cfg:           cfg,
		logger:        logging.WithComponent(logger, "engine"),
		store:         store,
		quota:         registry,
		catalogClient: catalogClient,
		resolver:      search.NewResolver(store, logger, cfg.Enrichment.SearchResultLimit),
		orch:          orch,
		scheduler:     backfill.NewScheduler(cfg, store, catalogClient, orch, logger),
	}, nil
}

// Close releases the underlying store.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store exposes the catalog store for read-side commands.
func (e *Engine) Store() *catalog.Store { return e.store }

// EnsureEnriched runs the enrichment pipeline for one catalog external id.
func (e *Engine) EnsureEnriched(ctx context.Context, externalID int64, opts enrich.Options) (enrich.Outcome, error) {
	return e.orch.EnsureEnriched(ctx, externalID, opts)
}

// FuzzySearch resolves a free-text query against the local catalog.
func (e *Engine) FuzzySearch(ctx context.Context, query string) (search.Result, error) {
	return e.resolver.Search(ctx, query)
}

// RemoteSearch queries the catalog provider directly, subject to its quota
// and pacing. Use when the local catalog has no match for a query.
func (e *Engine) RemoteSearch(ctx context.Context, query string) ([]providers.CandidateHit, error) {
	return quota.Call(ctx, e.quota, providers.NameCatalog, func() ([]providers.CandidateHit, error) {
		return e.catalogClient.Search(ctx, query)
	})
}

// StartBackfill launches the singleton backfill job.
func (e *Engine) StartBackfill(ctx context.Context, params backfill.Params) (catalog.BackfillState, error) {
	return e.scheduler.Start(ctx, params)
}

// CancelBackfill requests cancellation of the running backfill job.
func (e *Engine) CancelBackfill() bool {
	return e.scheduler.Cancel()
}

// BackfillStatus returns the persisted backfill job state.
func (e *Engine) BackfillStatus(ctx context.Context) (catalog.BackfillState, error) {
	return e.scheduler.Status(ctx)
}

// WaitBackfill blocks until the current backfill run completes.
func (e *Engine) WaitBackfill() {
	e.scheduler.Wait()
}

// ProviderStatus reports quota state for every known provider.
func (e *Engine) ProviderStatus(ctx context.Context) []quota.ProviderSnapshot {
	names := []string{
		providers.NameCatalog,
		providers.NameVideoSearch,
		providers.NameEncyclopedia,
		providers.NameTrackCatalog,
		providers.NameRatings,
	}
	snapshots := make([]quota.ProviderSnapshot, 0, len(names))
	for _, name := range names {
		snapshots = append(snapshots, e.quota.Snapshot(ctx, name))
	}
	return snapshots
}

// noopRatings stands in when no ratings API key is configured.
type noopRatings struct{}

func (noopRatings) Fetch(context.Context, string, int) ([]providers.Rating, error) {
	return nil, providers.Wrap(providers.ErrNotFound, providers.NameRatings, "fetch", "no api key configured", nil)
}

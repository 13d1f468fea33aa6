// Package backfill implements the admin-triggered catalog backfill job. One
// run discovers titles inside a single fixed-size historical window and
// enriches them through a bounded worker pool; a persisted cursor rotates
// the window across runs so long histories are covered without re-scanning.
package backfill

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"cinesync/internal/catalog"
	"cinesync/internal/config"
	"cinesync/internal/enrich"
	"cinesync/internal/logging"
	"cinesync/internal/providers"
)

// Discoverer pages through the catalog provider's release-window listings.
type Discoverer interface {
	Discover(ctx context.Context, window providers.DiscoverWindow, sort string, page int) ([]providers.CandidateHit, bool, error)
}

// Enricher runs the per-movie enrichment pipeline.
type Enricher interface {
	EnsureEnriched(ctx context.Context, externalID int64, opts enrich.Options) (enrich.Outcome, error)
}

// Params tunes one backfill run. Zero values fall back to configuration.
type Params struct {
	Scope        string
	LookbackDays int
	ForwardDays  int
	MaxPages     int
	MaxIDs       int
	Workers      int
	// Strategy selects discovery sort orders: "popularity" (default) or
	// "mixed", which also walks release-date and revenue orderings.
	Strategy string
	// AutoSongs runs the song pipeline for each enriched movie. Off by
	// default to keep backfill within encyclopedia and track quota.
	AutoSongs bool
}

// Scheduler owns the singleton backfill job.
type Scheduler struct {
	store    *catalog.Store
	discover Discoverer
	enricher Enricher
	logger   *slog.Logger

	windowDays     int
	maxPages       int
	maxIDs         int
	workers        int
	discoverBudget int

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	done    chan struct{}

	now func() time.Time
}

// NewScheduler creates a scheduler with config defaults.
func NewScheduler(cfg *config.Config, store *catalog.Store, discover Discoverer, enricher Enricher, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:          store,
		discover:       discover,
		enricher:       enricher,
		logger:         logging.WithComponent(logger, "backfill"),
		windowDays:     cfg.Backfill.WindowDays,
		maxPages:       cfg.Backfill.MaxPages,
		maxIDs:         cfg.Backfill.MaxIDs,
		workers:        cfg.Backfill.Workers,
		discoverBudget: cfg.Backfill.DiscoverBudget,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Start launches a backfill run in the background. When a job is already
// running the persisted state of that job is returned unchanged and no new
// work starts.
func (s *Scheduler) Start(ctx context.Context, params Params) (catalog.BackfillState, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return s.store.BackfillStateSnapshot(ctx)
	}

	cursor, err := s.store.BackfillCursor(ctx)
	if err != nil {
		s.mu.Unlock()
		return catalog.BackfillState{}, err
	}

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	started := s.now()
	state := catalog.BackfillState{
		Status:    catalog.BackfillRunning,
		Scope:     params.Scope,
		Cursor:    cursor,
		StartedAt: &started,
	}
	if err := s.store.SaveBackfillState(ctx, state); err != nil {
		cancel()
		s.mu.Unlock()
		return catalog.BackfillState{}, err
	}

	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.run(jobCtx, params, state)
	return state, nil
}

// Cancel requests cooperative cancellation. Reports whether a job was
// running.
func (s *Scheduler) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}
	s.cancel()
	return true
}

// Status returns the persisted job state.
func (s *Scheduler) Status(ctx context.Context) (catalog.BackfillState, error) {
	return s.store.BackfillStateSnapshot(ctx)
}

// Wait blocks until the current run finishes. Used by tests and shutdown.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (s *Scheduler) run(ctx context.Context, params Params, state catalog.BackfillState) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.cancel = nil
		close(s.done)
		s.mu.Unlock()
	}()

	ids, err := s.discoverIDs(ctx, params, state.Cursor)
	state.Discovered = len(ids)

	// The cursor advances as soon as this run's window has been scanned,
	// so the next run resumes at the next window even after a restart.
	if err == nil || ctx.Err() != nil {
		if saveErr := s.store.SaveBackfillCursor(context.WithoutCancel(ctx), state.Cursor+1); saveErr != nil {
			s.logger.Warn("persist cursor failed", logging.Error(saveErr))
		}
	}

	if err != nil && ctx.Err() == nil {
		s.finish(ctx, state, catalog.BackfillError, err.Error())
		return
	}

	enriched, failed := s.enrichAll(ctx, params, ids)
	state.Enriched = enriched
	state.Failed = failed

	switch {
	case ctx.Err() != nil:
		s.finish(ctx, state, catalog.BackfillCancelled, "")
	default:
		s.finish(ctx, state, catalog.BackfillDone, "")
	}
}

func (s *Scheduler) finish(ctx context.Context, state catalog.BackfillState, status catalog.BackfillStatus, lastError string) {
	finished := s.now()
	state.Status = status
	state.FinishedAt = &finished
	state.LastError = lastError
	if err := s.store.SaveBackfillState(context.WithoutCancel(ctx), state); err != nil {
		s.logger.Warn("persist job state failed", logging.Error(err))
	}
	s.logger.Info("backfill finished",
		logging.String("status", string(status)),
		logging.Int("discovered", state.Discovered),
		logging.Int("enriched", state.Enriched),
		logging.Int("failed", state.Failed))
}

// discoverIDs scans this run's window across the configured sort orders,
// respecting the page cap, id cap, and discover-call budget. Cancellation
// is checked between provider calls.
func (s *Scheduler) discoverIDs(ctx context.Context, params Params, cursor int) ([]int64, error) {
	window := s.window(params, cursor)
	sorts := []string{providers.SortPopularity}
	if params.Strategy == "mixed" {
		sorts = append(sorts, providers.SortReleaseDate, providers.SortRevenue)
	}
	maxPages := orDefault(params.MaxPages, s.maxPages)
	maxIDs := orDefault(params.MaxIDs, s.maxIDs)

	budget := s.discoverBudget
	seen := make(map[int64]struct{})
	var ids []int64
	for _, sort := range sorts {
		for page := 1; page <= maxPages; page++ {
			if ctx.Err() != nil || budget == 0 || len(ids) >= maxIDs {
				return ids, nil
			}
			budget--
			hits, hasMore, err := s.discover.Discover(ctx, window, sort, page)
			if err != nil {
				return ids, err
			}
			for _, hit := range hits {
				if _, dup := seen[hit.ExternalID]; dup {
					continue
				}
				seen[hit.ExternalID] = struct{}{}
				ids = append(ids, hit.ExternalID)
				if len(ids) >= maxIDs {
					break
				}
			}
			if !hasMore {
				break
			}
		}
	}
	return ids, nil
}

// window computes the date range for this run. Window 0 also covers the
// forward range so upcoming titles are always discovered.
func (s *Scheduler) window(params Params, cursor int) providers.DiscoverWindow {
	now := s.now()
	windowDays := s.windowDays
	lookback := orDefault(params.LookbackDays, windowDays)

	numWindows := (lookback + windowDays - 1) / windowDays
	if numWindows < 1 {
		numWindows = 1
	}
	index := cursor % numWindows

	to := now.AddDate(0, 0, -index*windowDays)
	from := now.AddDate(0, 0, -(index+1)*windowDays)
	if index == 0 && params.ForwardDays > 0 {
		to = now.AddDate(0, 0, params.ForwardDays)
	}
	return providers.DiscoverWindow{From: from, To: to}
}

// enrichAll fans the discovered ids through the worker pool. Each failure
// counts without stopping the run; cancellation drains promptly.
func (s *Scheduler) enrichAll(ctx context.Context, params Params, ids []int64) (enriched, failed int) {
	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(orDefault(params.Workers, s.workers))

	for _, id := range ids {
		id := id
		if groupCtx.Err() != nil {
			break
		}
		group.Go(func() error {
			_, err := s.enricher.EnsureEnriched(groupCtx, id, enrich.Options{AutoSongs: params.AutoSongs})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				s.logger.Warn("enrich failed", logging.Int64("external_id", id), logging.Error(err))
			} else {
				enriched++
			}
			return nil
		})
	}
	_ = group.Wait()
	return enriched, failed
}

func orDefault(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}

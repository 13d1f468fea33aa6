package backfill

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"cinesync/internal/catalog"
	"cinesync/internal/config"
	"cinesync/internal/enrich"
	"cinesync/internal/providers"
)

type fakeDiscoverer struct {
	mu      sync.Mutex
	windows []providers.DiscoverWindow
	hits    []providers.CandidateHit
	seen    chan struct{}
}

func (f *fakeDiscoverer) Discover(_ context.Context, window providers.DiscoverWindow, _ string, _ int) ([]providers.CandidateHit, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windows = append(f.windows, window)
	if f.seen != nil {
		close(f.seen)
		f.seen = nil
	}
	return f.hits, false, nil
}

type fakeEnricher struct {
	mu      sync.Mutex
	ids     []int64
	opts    []enrich.Options
	block   chan struct{}
	failAll bool
}

func (f *fakeEnricher) EnsureEnriched(ctx context.Context, externalID int64, opts enrich.Options) (enrich.Outcome, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return enrich.Outcome{}, ctx.Err()
		}
	}
	f.mu.Lock()
	f.ids = append(f.ids, externalID)
	f.opts = append(f.opts, opts)
	f.mu.Unlock()
	if f.failAll {
		return enrich.Outcome{}, providers.Wrap(providers.ErrTransient, providers.NameCatalog, "details", "", nil)
	}
	return enrich.Outcome{State: enrich.StateFull}, nil
}

func newScheduler(t *testing.T, discover *fakeDiscoverer, enricher *fakeEnricher) (*Scheduler, *catalog.Store) {
	t.Helper()
	store, err := catalog.OpenPath(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	cfg := config.Default()
	cfg.Backfill.Workers = 2
	return NewScheduler(&cfg, store, discover, enricher, nil), store
}

func TestRunDiscoversAndEnriches(t *testing.T) {
	discover := &fakeDiscoverer{hits: []providers.CandidateHit{
		{ExternalID: 1}, {ExternalID: 2}, {ExternalID: 2}, {ExternalID: 3},
	}}
	enricher := &fakeEnricher{}
	scheduler, store := newScheduler(t, discover, enricher)

	state, err := scheduler.Start(context.Background(), Params{Scope: "primary"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if state.Status != catalog.BackfillRunning {
		t.Fatalf("status = %s, want running", state.Status)
	}
	scheduler.Wait()

	final, err := store.BackfillStateSnapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if final.Status != catalog.BackfillDone {
		t.Fatalf("status = %s, want done", final.Status)
	}
	if final.Discovered != 3 {
		t.Errorf("discovered = %d, want 3 after dedup", final.Discovered)
	}
	if final.Enriched != 3 || final.Failed != 0 {
		t.Errorf("enriched/failed = %d/%d, want 3/0", final.Enriched, final.Failed)
	}
}

func TestAutoSongsParamReachesEnricher(t *testing.T) {
	discover := &fakeDiscoverer{hits: []providers.CandidateHit{{ExternalID: 1}, {ExternalID: 2}}}
	enricher := &fakeEnricher{}
	scheduler, _ := newScheduler(t, discover, enricher)

	if _, err := scheduler.Start(context.Background(), Params{AutoSongs: true}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	scheduler.Wait()

	if len(enricher.opts) != 2 {
		t.Fatalf("expected 2 enrich calls, got %d", len(enricher.opts))
	}
	for _, opts := range enricher.opts {
		if !opts.AutoSongs {
			t.Fatal("AutoSongs param did not reach the enricher")
		}
	}
}

func TestDefaultRunSkipsSongPipeline(t *testing.T) {
	discover := &fakeDiscoverer{hits: []providers.CandidateHit{{ExternalID: 1}}}
	enricher := &fakeEnricher{}
	scheduler, _ := newScheduler(t, discover, enricher)

	if _, err := scheduler.Start(context.Background(), Params{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	scheduler.Wait()

	if len(enricher.opts) != 1 || enricher.opts[0].AutoSongs {
		t.Fatalf("default run opts = %+v, want songs off", enricher.opts)
	}
}

func TestCursorRotatesWindowsAcrossRuns(t *testing.T) {
	discover := &fakeDiscoverer{}
	enricher := &fakeEnricher{}
	scheduler, store := newScheduler(t, discover, enricher)
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	scheduler.now = func() time.Time { return now }
	params := Params{LookbackDays: 270} // three 90-day windows

	ctx := context.Background()
	if _, err := scheduler.Start(ctx, params); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	scheduler.Wait()

	cursor, err := store.BackfillCursor(ctx)
	if err != nil {
		t.Fatalf("cursor: %v", err)
	}
	if cursor != 1 {
		t.Fatalf("cursor = %d, want 1 after first run", cursor)
	}

	// Second run, as after a process restart: must scan the next window,
	// not window 0 again.
	if _, err := scheduler.Start(ctx, params); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	scheduler.Wait()

	if len(discover.windows) < 2 {
		t.Fatalf("expected two discovery windows, got %d", len(discover.windows))
	}
	first, second := discover.windows[0], discover.windows[len(discover.windows)-1]
	if !first.To.Equal(now) {
		t.Errorf("first window To = %v, want %v", first.To, now)
	}
	wantSecondTo := now.AddDate(0, 0, -90)
	if !second.To.Equal(wantSecondTo) {
		t.Errorf("second window To = %v, want %v (next window)", second.To, wantSecondTo)
	}
}

func TestSecondStartReturnsExistingState(t *testing.T) {
	discover := &fakeDiscoverer{hits: []providers.CandidateHit{{ExternalID: 1}}}
	enricher := &fakeEnricher{block: make(chan struct{})}
	scheduler, _ := newScheduler(t, discover, enricher)
	ctx := context.Background()

	if _, err := scheduler.Start(ctx, Params{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	state, err := scheduler.Start(ctx, Params{})
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if state.Status != catalog.BackfillRunning {
		t.Errorf("second Start status = %s, want existing running state", state.Status)
	}

	close(enricher.block)
	scheduler.Wait()
}

func TestCancelStopsRunAndPersistsPartialProgress(t *testing.T) {
	seen := make(chan struct{})
	discover := &fakeDiscoverer{
		hits: []providers.CandidateHit{{ExternalID: 1}, {ExternalID: 2}},
		seen: seen,
	}
	enricher := &fakeEnricher{block: make(chan struct{})}
	scheduler, store := newScheduler(t, discover, enricher)
	ctx := context.Background()

	if _, err := scheduler.Start(ctx, Params{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-seen // cancel only after the window has been scanned
	if !scheduler.Cancel() {
		t.Fatal("Cancel reported no running job")
	}
	scheduler.Wait()

	state, err := store.BackfillStateSnapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if state.Status != catalog.BackfillCancelled {
		t.Fatalf("status = %s, want cancelled", state.Status)
	}
	if state.Discovered != 2 {
		t.Errorf("partial discovery lost: discovered = %d", state.Discovered)
	}
	cursor, err := store.BackfillCursor(ctx)
	if err != nil {
		t.Fatalf("cursor: %v", err)
	}
	if cursor != 1 {
		t.Errorf("cursor = %d, cancelled run should still advance past its scanned window", cursor)
	}

	if scheduler.Cancel() {
		t.Error("Cancel after completion reported a running job")
	}
}

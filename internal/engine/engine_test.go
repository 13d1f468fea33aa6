package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"cinesync/internal/logging"
	"cinesync/internal/providers"
	"cinesync/internal/testsupport"
)

func TestNewWiresEveryComponent(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithProviderKeys())

	eng, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer eng.Close()

	if eng.Store() == nil {
		t.Fatal("expected store")
	}

	snapshots := eng.ProviderStatus(context.Background())
	if len(snapshots) != 5 {
		t.Fatalf("expected 5 provider snapshots, got %d", len(snapshots))
	}
	byName := map[string]bool{}
	for _, snap := range snapshots {
		byName[snap.Provider] = true
		if snap.Blocked {
			t.Fatalf("provider %s blocked on a fresh store", snap.Provider)
		}
	}
	for _, name := range []string{
		providers.NameCatalog,
		providers.NameVideoSearch,
		providers.NameEncyclopedia,
		providers.NameTrackCatalog,
		providers.NameRatings,
	} {
		if !byName[name] {
			t.Fatalf("missing snapshot for %s", name)
		}
	}
}

func TestNewRequiresCatalogKey(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	if _, err := New(cfg, logging.NewNop()); err == nil {
		t.Fatal("expected error without provider keys")
	}
}

func TestRemoteSearchGoesThroughQuota(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/movie" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{"results":[{"id":830784,"title":"Kalki 2898 AD","original_language":"te","release_date":"2024-06-27","popularity":10}],"total_pages":1}`))
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithProviderKeys())
	cfg.Catalog.BaseURL = server.URL

	eng, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer eng.Close()

	hits, err := eng.RemoteSearch(context.Background(), "kalki")
	if err != nil {
		t.Fatalf("RemoteSearch: %v", err)
	}
	if len(hits) != 1 || hits[0].ExternalID != 830784 {
		t.Fatalf("hits = %+v", hits)
	}

	for _, snap := range eng.ProviderStatus(context.Background()) {
		if snap.Provider != providers.NameCatalog {
			continue
		}
		if snap.Attempts != 1 || snap.Successes != 1 {
			t.Fatalf("catalog counters attempts=%d successes=%d", snap.Attempts, snap.Successes)
		}
	}
}

func TestFuzzySearchOnEmptyCatalog(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithProviderKeys())

	eng, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer eng.Close()

	result, err := eng.FuzzySearch(context.Background(), "kalki")
	if err != nil {
		t.Fatalf("FuzzySearch: %v", err)
	}
	if len(result.Movies) != 0 || len(result.Persons) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

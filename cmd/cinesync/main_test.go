package main

import (
	"context"
	"testing"
	"time"

	"cinesync/internal/catalog"
)

func seedMovie(t *testing.T, env *cliTestEnv) *catalog.Movie {
	t.Helper()
	ctx := context.Background()

	store, err := catalog.Open(env.cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	defer store.Close()

	release := time.Date(2024, time.June, 27, 0, 0, 0, 0, time.UTC)
	movie, err := store.UpsertMovie(ctx, &catalog.Movie{
		ExternalID:    830784,
		Title:         "Kalki 2898 AD",
		Language:      "telugu",
		ReleaseDate:   &release,
		PrimaryMarket: true,
	})
	if err != nil {
		t.Fatalf("UpsertMovie: %v", err)
	}
	if _, err := store.UpsertSongs(ctx, movie.ID, []catalog.Song{{
		Title:    "Bhairava Anthem",
		Singers:  []string{"Diljit Dosanjh"},
		Source:   catalog.SongSourceTrackCatalog,
		Link:     "https://video.example/watch?v=abc",
		Platform: "video",
	}}); err != nil {
		t.Fatalf("UpsertSongs: %v", err)
	}
	return movie
}

func TestCLISearchCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	seedMovie(t, env)

	out, _, err := runCLI(t, []string{"search", "kalki"}, env.configPath)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	requireContains(t, out, "Kalki 2898 AD")
	requireContains(t, out, "telugu")
	requireContains(t, out, "2024")

	out, _, err = runCLI(t, []string{"search", "zzzzqqq"}, env.configPath)
	if err != nil {
		t.Fatalf("search miss: %v", err)
	}
	requireContains(t, out, "No matches")
}

func TestCLIShowCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	seedMovie(t, env)

	out, _, err := runCLI(t, []string{"show", "830784"}, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "Kalki 2898 AD (2024)")
	requireContains(t, out, "Bhairava Anthem")
	requireContains(t, out, "track_catalog")

	_, _, err = runCLI(t, []string{"show", "999999"}, env.configPath)
	if err == nil {
		t.Fatal("expected error for unknown movie")
	}
}

func TestCLIStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "catalog")
	requireContains(t, out, "video_search")
	requireContains(t, out, "encyclopedia")
	requireContains(t, out, "track_catalog")
	requireContains(t, out, "ratings")
}

func TestCLIBackfillStatusIdle(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"backfill", "status"}, env.configPath)
	if err != nil {
		t.Fatalf("backfill status: %v", err)
	}
	requireContains(t, out, "Backfill idle")

	out, _, err = runCLI(t, []string{"backfill", "cancel"}, env.configPath)
	if err != nil {
		t.Fatalf("backfill cancel: %v", err)
	}
	requireContains(t, out, "No backfill job is running")
}

func TestCLIEnrichRejectsBadID(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"enrich", "not-a-number"}, env.configPath)
	if err == nil {
		t.Fatal("expected parse error for non-numeric external id")
	}
}

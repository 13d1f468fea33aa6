package tracklist

import (
	"context"
	"strings"
	"testing"

	"cinesync/internal/providers"
)

// fakeVideo returns canned candidates per query substring and counts calls.
type fakeVideo struct {
	byQuery     map[string][]providers.VideoCandidate
	calls       []string
	rateLimited bool
}

func (f *fakeVideo) Search(_ context.Context, query string, _ providers.VideoFilters) ([]providers.VideoCandidate, error) {
	f.calls = append(f.calls, query)
	if f.rateLimited {
		return nil, providers.Wrap(providers.ErrRateLimited, providers.NameVideoSearch, "search", query, nil)
	}
	for key, candidates := range f.byQuery {
		if strings.Contains(query, key) {
			return candidates, nil
		}
	}
	return nil, nil
}

func kalkiTarget() LinkTarget {
	return LinkTarget{
		MovieTitle: "Kalki 2898 AD",
		Language:   "telugu",
		Year:       2024,
		CastHints:  []string{"Prabhas"},
	}
}

func TestLinkResolvesFromSharedPool(t *testing.T) {
	video := &fakeVideo{byQuery: map[string][]providers.VideoCandidate{
		"songs": {
			{ID: "a", Title: "Theme of Kalki Lyrical Video Telugu", Description: "Kalki 2898 AD", URL: "https://video/a"},
			{ID: "b", Title: "Bhairava Anthem Telugu Song", Description: "Kalki 2898 AD", URL: "https://video/b"},
		},
	}}
	linker := NewLinker(video, nil, 2)
	tracks := []providers.Track{{Title: "Theme of Kalki"}, {Title: "Bhairava Anthem"}}

	linked, err := linker.Link(context.Background(), kalkiTarget(), tracks)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if linked[0].Link != "https://video/a" || linked[1].Link != "https://video/b" {
		t.Fatalf("pool matching failed: %+v", linked)
	}
	// Both tracks came out of the pool: only the two broad queries ran.
	if len(video.calls) != 2 {
		t.Errorf("expected 2 pool calls, got %v", video.calls)
	}
	if LinkedRatio(linked) != 1 {
		t.Errorf("LinkedRatio = %f, want 1", LinkedRatio(linked))
	}
}

func TestLinkBoundsPerTrackLookups(t *testing.T) {
	video := &fakeVideo{byQuery: map[string][]providers.VideoCandidate{}}
	linker := NewLinker(video, nil, 1)
	tracks := []providers.Track{{Title: "Alpha Song"}, {Title: "Beta Song"}, {Title: "Gamma Song"}}

	linked, err := linker.Link(context.Background(), kalkiTarget(), tracks)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	// Two pool queries plus exactly one per-track lookup.
	if len(video.calls) != 3 {
		t.Errorf("expected 3 calls, got %v", video.calls)
	}
	if LinkedRatio(linked) != 0 {
		t.Errorf("LinkedRatio = %f, want 0", LinkedRatio(linked))
	}
}

func TestLinkPropagatesRateLimit(t *testing.T) {
	video := &fakeVideo{rateLimited: true}
	linker := NewLinker(video, nil, 2)

	_, err := linker.Link(context.Background(), kalkiTarget(), []providers.Track{{Title: "Theme of Kalki"}})
	if !providers.IsRateLimited(err) {
		t.Fatalf("expected rate-limited, got %v", err)
	}
}

func TestLinkRejectsExcludedCandidates(t *testing.T) {
	video := &fakeVideo{byQuery: map[string][]providers.VideoCandidate{
		"songs": {
			{ID: "x", Title: "Theme of Kalki Telugu REACTION", Description: "Kalki 2898 AD", URL: "https://video/x"},
		},
	}}
	linker := NewLinker(video, nil, 0)

	linked, err := linker.Link(context.Background(), kalkiTarget(), []providers.Track{{Title: "Theme of Kalki"}})
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if linked[0].Link != "" {
		t.Fatalf("excluded candidate was linked: %+v", linked)
	}
}

package providers

import "time"

// Provider name tags used for quota accounting and attributions.
const (
	NameCatalog      = "catalog"
	NameVideoSearch  = "video_search"
	NameEncyclopedia = "encyclopedia"
	NameTrackCatalog = "track_catalog"
	NameRatings      = "ratings"
)

// MovieDetails is the canonical payload returned by the catalog provider.
type MovieDetails struct {
	ExternalID  int64
	Title       string
	Language    string
	ReleaseDate *time.Time
	Synopsis    string
	PosterURL   string
	BackdropURL string
	Genres      []string
	Cast        []CastCredit
}

// CastCredit is one billed cast member from the catalog provider.
type CastCredit struct {
	ExternalID int64
	Name       string
	Character  string
	ImageURL   string
	Ord        int
}

// CandidateHit is one fuzzy catalog search result.
type CandidateHit struct {
	ExternalID  int64
	Title       string
	Language    string
	ReleaseDate *time.Time
	Popularity  float64
}

// Track is one tracklist entry from a music catalog or encyclopedia page.
type Track struct {
	Title   string
	Singers []string
}

// PageHit is one encyclopedia search result.
type PageHit struct {
	Title   string
	Snippet string
}

// VideoCandidate is one video-search result considered for a trailer or a
// playable song link.
type VideoCandidate struct {
	ID          string
	Title       string
	Description string
	Channel     string
	URL         string
}

// VideoFilters restricts a video search.
type VideoFilters struct {
	Category     string
	LanguageHint string
	Region       string
}

// Rating is one provider-sourced score.
type Rating struct {
	Source string
	Value  float64
	Scale  float64
}

// DeepLink is one playable/watchable platform link.
type DeepLink struct {
	Provider string
	URL      string
	Country  string
}

// DiscoverWindow is a release-date range for backfill discovery.
type DiscoverWindow struct {
	From time.Time
	To   time.Time
}

// Discover sort orders.
const (
	SortPopularity  = "popularity.desc"
	SortReleaseDate = "primary_release_date.desc"
	SortRevenue     = "revenue.desc"
)

package catalog

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"cinesync/internal/textutil"
)

// Lifecycle describes where a movie sits between announcement and streaming
// availability. It is always recomputed from (ReleaseDate, HasStreamingOffer),
// never stored.
type Lifecycle string

const (
	StatusAnnounced  Lifecycle = "announced"
	StatusUpcoming   Lifecycle = "upcoming"
	StatusNowShowing Lifecycle = "now_showing"
	StatusStreaming  Lifecycle = "streaming"
)

// DeriveLifecycle computes the lifecycle status for a release date and
// streaming-offer presence at the supplied instant.
func DeriveLifecycle(releaseDate *time.Time, hasStreamingOffer bool, now time.Time) Lifecycle {
	if hasStreamingOffer {
		return StatusStreaming
	}
	if releaseDate == nil {
		return StatusAnnounced
	}
	if releaseDate.After(now) {
		return StatusUpcoming
	}
	return StatusNowShowing
}

// Movie is the canonical, provider-independent movie record.
type Movie struct {
	ID              string
	ExternalID      int64
	Title           string
	NormalizedTitle string
	PhoneticCode    string
	Language        string
	ReleaseDate     *time.Time
	Synopsis        string
	PosterURL       string
	BackdropURL     string
	TrailerURL      string
	Genres          []string
	PrimaryMarket   bool

	// Derived on load, never persisted.
	Status            Lifecycle
	HasStreamingOffer bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SyncTitleKeys refreshes the normalized and phonetic keys from Title. The
// store calls this on every write so title and code can never drift apart.
func (m *Movie) SyncTitleKeys() {
	m.NormalizedTitle = textutil.Normalize(m.Title)
	m.PhoneticCode = textutil.PhoneticCode(m.Title)
}

// Person is the canonical person record.
type Person struct {
	ID           string
	ExternalID   int64
	Name         string
	PhoneticCode string
	Biography    string
	ImageURL     string
	Filmography  []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CastMember links a person to a movie in billing order.
type CastMember struct {
	MovieID   string
	PersonID  string
	Ord       int
	Character string
}

// Song source tags. Admin-curated songs are never overwritten by automated
// refresh.
const (
	SongSourceAdmin        = "admin"
	SongSourceTrackCatalog = "track_catalog"
	SongSourceEncyclopedia = "encyclopedia"
	SongSourceVideoSearch  = "video_search"
)

// Song is a single soundtrack entry for a movie.
type Song struct {
	ID        string
	MovieID   string
	Title     string
	Singers   []string
	Link      string
	Source    string
	Platform  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// songNamespace seeds deterministic song ids so re-running an enrichment
// converges on the same rows instead of duplicating them.
var songNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// SongID derives the deterministic id for (movieID, source, title).
func SongID(movieID, source, title string) string {
	key := movieID + "|" + source + "|" + textutil.Normalize(title)
	return uuid.NewSHA1(songNamespace, []byte(key)).String()
}

// Entity types used in attribution rows.
const (
	EntityMovie  = "movie"
	EntityPerson = "person"
	EntitySong   = "song"
)

// Attribution records which provider contributed a fact about an entity.
// Rows are append-only; at most one per (entityType, entityID, provider).
type Attribution struct {
	EntityType string
	EntityID   string
	Provider   string
	ProviderID string
	URL        string
	CreatedAt  time.Time
}

// Rating is one provider's score for a movie. Value is expressed against
// Scale so 7.3/10 and 85/100 coexist without collision.
type Rating struct {
	MovieID   string
	Source    string
	Value     float64
	Scale     float64
	UpdatedAt time.Time
}

// Review is a provider-sourced review snippet.
type Review struct {
	MovieID string
	Source  string
	Author  string
	Content string
}

// DeepLink is a playable/watchable link on an external platform.
type DeepLink struct {
	MovieID  string
	Provider string
	URL      string
	Country  string
}

// Marks tracks per-movie enrichment bookkeeping used only for TTL and
// backoff gating, never for correctness.
type Marks struct {
	MovieID       string
	LastAttempt   *time.Time
	LastSuccess   *time.Time
	SongAttemptAt *time.Time
	SongSuccessAt *time.Time
}

// Facts aggregates the stored-state counters the orchestrator consults when
// deciding what is missing for a movie.
type Facts struct {
	SongCount      int
	PlayableSongs  int
	AdminSongs     int
	RatingCount    int
	ReviewCount    int
	CastCount      int
	CastImageCount int
	DeepLinkCount  int
}

// BackfillStatus enumerates backfill job states.
type BackfillStatus string

const (
	BackfillIdle      BackfillStatus = "idle"
	BackfillRunning   BackfillStatus = "running"
	BackfillCancelled BackfillStatus = "cancelled"
	BackfillDone      BackfillStatus = "done"
	BackfillError     BackfillStatus = "error"
)

// BackfillState is the singleton backfill job record.
type BackfillState struct {
	Status     BackfillStatus
	Scope      string
	Cursor     int
	Discovered int
	Enriched   int
	Failed     int
	StartedAt  *time.Time
	FinishedAt *time.Time
	LastError  string
}

func normalizeSource(source string) string {
	return strings.ToLower(strings.TrimSpace(source))
}

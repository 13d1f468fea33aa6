package config

const (
	defaultDataDir             = "~/.local/share/cinesync"
	defaultLogDir              = "~/.local/share/cinesync/logs"
	defaultCatalogBaseURL      = "https://api.themoviedb.org/3"
	defaultCatalogCountry      = "IN"
	defaultVideoBaseURL        = "https://www.googleapis.com/youtube/v3"
	defaultVideoRegion         = "IN"
	defaultEncyclopediaBaseURL = "https://en.wikipedia.org/w/api.php"
	defaultEncyclopediaUA      = "cinesync/dev"
	defaultTrackCatalogBaseURL = "https://itunes.apple.com"
	defaultRatingsBaseURL      = "https://www.omdbapi.com"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"

	defaultUpcomingTTLHours    = 24
	defaultReleasedTTLDays     = 30
	defaultSongAttemptTTLHours = 12
	defaultSongSuccessTTLDays  = 7
	defaultPerTrackLookups     = 5
	defaultSearchResultLimit   = 20

	defaultQuotaBackoffHours = 6
	defaultVideoBackoffHours = 12
	defaultDailyBudget       = 5000

	defaultBackfillWindowDays = 90
	defaultBackfillMaxPages   = 5
	defaultBackfillMaxIDs     = 200
	defaultBackfillWorkers    = 4
	defaultDiscoverBudget     = 40
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Catalog: Catalog{
			BaseURL: defaultCatalogBaseURL,
			Country: defaultCatalogCountry,
		},
		VideoSearch: VideoSearch{
			BaseURL: defaultVideoBaseURL,
			Region:  defaultVideoRegion,
		},
		Encyclopedia: Encyclopedia{
			BaseURL:   defaultEncyclopediaBaseURL,
			UserAgent: defaultEncyclopediaUA,
		},
		TrackCatalog: TrackCatalog{
			BaseURL: defaultTrackCatalogBaseURL,
		},
		Ratings: Ratings{
			BaseURL: defaultRatingsBaseURL,
		},
		Enrichment: Enrichment{
			UpcomingTTLHours:     defaultUpcomingTTLHours,
			ReleasedTTLDays:      defaultReleasedTTLDays,
			SongAttemptTTLHours:  defaultSongAttemptTTLHours,
			SongSuccessTTLDays:   defaultSongSuccessTTLDays,
			CatalogLinkThreshold: 0.70,
			WikiLinkThreshold:    0.50,
			PerTrackLookupLimit:  defaultPerTrackLookups,
			SearchResultLimit:    defaultSearchResultLimit,
		},
		Quota: Quota{
			DefaultBackoffHours: defaultQuotaBackoffHours,
			VideoBackoffHours:   defaultVideoBackoffHours,
			DailyBudget:         defaultDailyBudget,
		},
		Backfill: Backfill{
			WindowDays:     defaultBackfillWindowDays,
			MaxPages:       defaultBackfillMaxPages,
			MaxIDs:         defaultBackfillMaxIDs,
			Workers:        defaultBackfillWorkers,
			DiscoverBudget: defaultDiscoverBudget,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"cinesync/internal/engine"
	"cinesync/internal/enrich"
)

func newEnrichCommand(ctx *commandContext) *cobra.Command {
	var force bool
	var forceSongs bool
	var noSongs bool
	var replaceAdminSongs bool
	var wikiTitle string
	var country string

	cmd := &cobra.Command{
		Use:   "enrich <external-id>",
		Short: "Enrich one movie from the configured providers",
		Long: `Enrich fetches details, cast, trailer, streaming deep links, ratings, and
songs for a single movie identified by its catalog external id.

Fresh fields are skipped unless --force is given. Song discovery walks the
track catalog, then encyclopedia tracklist pages, then falls back to a
video-search heuristic.

Examples:
  cinesync enrich 447365
  cinesync enrich 447365 --force
  cinesync enrich 447365 --force-songs --wiki-title "Kalki 2898 AD"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			externalID, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil {
				return fmt.Errorf("parse external id %q: %w", args[0], err)
			}
			return ctx.withEngine(func(eng *engine.Engine) error {
				outcome, err := eng.EnsureEnriched(cmd.Context(), externalID, enrich.Options{
					ForceFull:         force,
					ForceSongs:        forceSongs,
					AutoSongs:         !noSongs,
					ReplaceAdminSongs: replaceAdminSongs,
					WikiTitleOverride: strings.TrimSpace(wikiTitle),
					Country:           strings.TrimSpace(country),
				})
				if err != nil {
					return fmt.Errorf("enrich %d: %w", externalID, err)
				}

				out := cmd.OutOrStdout()
				switch outcome.State {
				case enrich.StateInFlight:
					fmt.Fprintf(out, "Movie %d is already being enriched by another request\n", externalID)
				case enrich.StateFresh:
					fmt.Fprintf(out, "Movie %d is fresh; nothing to do\n", externalID)
				default:
					fmt.Fprintf(out, "Enriched movie %d (%s refresh)\n", externalID, outcome.State)
				}
				if outcome.SongsCommitted > 0 {
					fmt.Fprintf(out, "Committed %d songs from %s\n", outcome.SongsCommitted, outcome.SongSource)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Refresh every field regardless of freshness")
	cmd.Flags().BoolVar(&forceSongs, "force-songs", false, "Re-run song discovery, replacing automated songs")
	cmd.Flags().BoolVar(&noSongs, "no-songs", false, "Skip automated song discovery")
	cmd.Flags().BoolVar(&replaceAdminSongs, "replace-admin-songs", false, "Extend --force-songs to admin-curated songs")
	cmd.Flags().StringVar(&wikiTitle, "wiki-title", "", "Pin the encyclopedia page title for tracklist discovery")
	cmd.Flags().StringVar(&country, "country", "", "Country code for streaming deep links")
	return cmd
}

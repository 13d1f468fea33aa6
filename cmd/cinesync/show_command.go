package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"cinesync/internal/engine"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <external-id>",
		Short: "Show the stored record for a movie",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			externalID, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil {
				return fmt.Errorf("parse external id %q: %w", args[0], err)
			}
			return ctx.withEngine(func(eng *engine.Engine) error {
				cmdCtx := cmd.Context()
				store := eng.Store()
				movie, err := store.GetMovieByExternalID(cmdCtx, externalID)
				if err != nil {
					return fmt.Errorf("load movie %d: %w", externalID, err)
				}
				if movie == nil {
					return fmt.Errorf("movie %d is not in the catalog; run `cinesync enrich %d` first", externalID, externalID)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s (%s)\n", movie.Title, movieYear(movie))
				fmt.Fprintf(out, "  Language:  %s\n", movie.Language)
				fmt.Fprintf(out, "  Status:    %s\n", movie.Status)
				if movie.TrailerURL != "" {
					fmt.Fprintf(out, "  Trailer:   %s\n", movie.TrailerURL)
				}
				if movie.Synopsis != "" {
					fmt.Fprintf(out, "  Synopsis:  %s\n", truncate(movie.Synopsis, 160))
				}

				cast, err := store.CastForMovie(cmdCtx, movie.ID)
				if err != nil {
					return fmt.Errorf("load cast: %w", err)
				}
				if len(cast) > 0 {
					names := make([]string, 0, len(cast))
					for _, person := range cast {
						names = append(names, person.Name)
					}
					fmt.Fprintf(out, "  Cast:      %s\n", strings.Join(names, ", "))
				}

				ratings, err := store.RatingsForMovie(cmdCtx, movie.ID)
				if err != nil {
					return fmt.Errorf("load ratings: %w", err)
				}
				for _, rating := range ratings {
					fmt.Fprintf(out, "  Rating:    %s %.1f/%.0f\n", rating.Source, rating.Value, rating.Scale)
				}

				songs, err := store.SongsForMovie(cmdCtx, movie.ID)
				if err != nil {
					return fmt.Errorf("load songs: %w", err)
				}
				if len(songs) > 0 {
					rows := make([][]string, 0, len(songs))
					for _, song := range songs {
						link := song.Link
						if link == "" {
							link = "-"
						}
						rows = append(rows, []string{
							song.Title,
							strings.Join(song.Singers, ", "),
							song.Source,
							link,
						})
					}
					fmt.Fprintln(out, renderTable([]string{"Song", "Singers", "Source", "Link"}, rows))
				}
				return nil
			})
		},
	}
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit])) + "..."
}

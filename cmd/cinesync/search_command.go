package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"cinesync/internal/catalog"
	"cinesync/internal/engine"
	"cinesync/internal/providers"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Fuzzy-search the local catalog for movies and people",
		Long: `Search resolves a free-text query against the local catalog. Exact
substring matches win outright; otherwise phonetic candidates are ranked by
title similarity. Person matches pull in the movies they are billed in.

With --remote the query goes to the catalog provider instead, subject to its
daily quota and pacing.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			return ctx.withEngine(func(eng *engine.Engine) error {
				if remote {
					return runRemoteSearch(cmd, eng, query)
				}
				result, err := eng.FuzzySearch(cmd.Context(), query)
				if err != nil {
					return fmt.Errorf("search %q: %w", query, err)
				}

				out := cmd.OutOrStdout()
				if len(result.Movies) == 0 && len(result.Persons) == 0 {
					fmt.Fprintf(out, "No matches for %q\n", query)
					return nil
				}

				if len(result.Movies) > 0 {
					rows := make([][]string, 0, len(result.Movies))
					for _, movie := range result.Movies {
						rows = append(rows, []string{
							movie.Title,
							movie.Language,
							movieYear(movie),
							string(movie.Status),
						})
					}
					fmt.Fprintln(out, renderTable([]string{"Title", "Language", "Year", "Status"}, rows, 2))
				}
				if len(result.Persons) > 0 {
					rows := make([][]string, 0, len(result.Persons))
					for _, person := range result.Persons {
						rows = append(rows, []string{
							person.Name,
							strconv.Itoa(len(person.Filmography)),
						})
					}
					fmt.Fprintln(out, renderTable([]string{"Name", "Known For"}, rows, 1))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "query the catalog provider instead of the local catalog")
	return cmd
}

func runRemoteSearch(cmd *cobra.Command, eng *engine.Engine, query string) error {
	hits, err := eng.RemoteSearch(cmd.Context(), query)
	if err != nil {
		return fmt.Errorf("remote search %q: %w", query, err)
	}
	out := cmd.OutOrStdout()
	if len(hits) == 0 {
		fmt.Fprintf(out, "No remote matches for %q\n", query)
		return nil
	}
	rows := make([][]string, 0, len(hits))
	for _, hit := range hits {
		rows = append(rows, []string{
			hit.Title,
			hit.Language,
			hitYear(hit),
			strconv.FormatInt(hit.ExternalID, 10),
		})
	}
	fmt.Fprintln(out, renderTable([]string{"Title", "Language", "Year", "External ID"}, rows, 2, 3))
	return nil
}

func hitYear(hit providers.CandidateHit) string {
	if hit.ReleaseDate == nil {
		return "-"
	}
	return strconv.Itoa(hit.ReleaseDate.Year())
}

func movieYear(movie *catalog.Movie) string {
	if movie.ReleaseDate == nil {
		return "-"
	}
	return strconv.Itoa(movie.ReleaseDate.Year())
}

package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"cinesync/internal/engine"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show provider quota and circuit breaker state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(eng *engine.Engine) error {
				snapshots := eng.ProviderStatus(cmd.Context())

				rows := make([][]string, 0, len(snapshots))
				for _, snap := range snapshots {
					until := "-"
					if snap.Blocked {
						until = snap.BlockedUntil.Format(time.RFC3339)
					}
					budget := "-"
					if snap.DailyBudget > 0 {
						budget = strconv.Itoa(snap.DailyBudget)
					}
					rows = append(rows, []string{
						snap.Provider,
						yesNo(snap.Blocked),
						until,
						strconv.Itoa(snap.Attempts),
						strconv.Itoa(snap.Successes),
						budget,
					})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable(
					[]string{"Provider", "Blocked", "Blocked Until", "Attempts", "Successes", "Daily Budget"},
					rows, 3, 4, 5,
				))
				return nil
			})
		},
	}
}

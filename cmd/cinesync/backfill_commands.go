package main

import (
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"cinesync/internal/backfill"
	"cinesync/internal/catalog"
	"cinesync/internal/engine"
)

func newBackfillCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Windowed historical catalog backfill",
	}
	cmd.AddCommand(newBackfillStartCommand(ctx))
	cmd.AddCommand(newBackfillStatusCommand(ctx))
	cmd.AddCommand(newBackfillCancelCommand(ctx))
	return cmd
}

func newBackfillStartCommand(ctx *commandContext) *cobra.Command {
	var scope string
	var lookbackDays int
	var forwardDays int
	var maxPages int
	var maxIDs int
	var workers int
	var strategy string
	var autoSongs bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run one backfill pass over the next discovery window",
		Long: `Start discovers movies inside the next time window of the rotating backfill
cursor and enriches each one. The cursor advances once the window has been
scanned, so repeated runs walk the whole lookback period even across
interruptions. Interrupting with Ctrl-C cancels cooperatively.

Only one backfill pass may run per host; a file lock guards against
concurrent invocations.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			lock := flock.New(filepath.Join(cfg.LogDir(), "cinesync-backfill.lock"))
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire backfill lock: %w", err)
			}
			if !locked {
				return errors.New("another cinesync process is already running a backfill")
			}
			defer lock.Unlock()

			return ctx.withEngine(func(eng *engine.Engine) error {
				runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				state, err := eng.StartBackfill(runCtx, backfill.Params{
					Scope:        scope,
					LookbackDays: lookbackDays,
					ForwardDays:  forwardDays,
					MaxPages:     maxPages,
					MaxIDs:       maxIDs,
					Workers:      workers,
					Strategy:     strategy,
					AutoSongs:    autoSongs,
				})
				if err != nil {
					return fmt.Errorf("start backfill: %w", err)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Backfill started (scope %q, window cursor %d)\n", state.Scope, state.Cursor)

				done := make(chan struct{})
				go func() {
					eng.WaitBackfill()
					close(done)
				}()
				select {
				case <-runCtx.Done():
					fmt.Fprintln(out, "Interrupt received; cancelling backfill")
					eng.CancelBackfill()
					<-done
				case <-done:
				}

				final, err := eng.BackfillStatus(cmd.Context())
				if err != nil {
					return fmt.Errorf("read backfill state: %w", err)
				}
				printBackfillState(cmd, final)
				if final.Status == catalog.BackfillError {
					return fmt.Errorf("backfill failed: %s", final.LastError)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "primary", "Discovery scope label recorded with the job")
	cmd.Flags().IntVar(&lookbackDays, "lookback-days", 1825, "How far back the rotating windows reach")
	cmd.Flags().IntVar(&forwardDays, "forward-days", 90, "Extra forward reach of the newest window, for upcoming releases")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "Cap on discovery pages per sort order (0 uses config)")
	cmd.Flags().IntVar(&maxIDs, "max-ids", 0, "Cap on discovered movies per run (0 uses config)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent enrichment workers (0 uses config)")
	cmd.Flags().StringVar(&strategy, "strategy", "popularity", "Discovery strategy: popularity or mixed")
	cmd.Flags().BoolVar(&autoSongs, "songs", false, "Run the song pipeline for each enriched movie")
	return cmd
}

func newBackfillStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the persisted backfill job state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(eng *engine.Engine) error {
				state, err := eng.BackfillStatus(cmd.Context())
				if err != nil {
					return fmt.Errorf("read backfill state: %w", err)
				}
				printBackfillState(cmd, state)
				return nil
			})
		},
	}
}

func newBackfillCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the backfill job running in this process",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(eng *engine.Engine) error {
				out := cmd.OutOrStdout()
				if eng.CancelBackfill() {
					eng.WaitBackfill()
					fmt.Fprintln(out, "Backfill cancelled")
					return nil
				}
				fmt.Fprintln(out, "No backfill job is running in this process; interrupt `cinesync backfill start` with Ctrl-C instead")
				return nil
			})
		},
	}
}

func printBackfillState(cmd *cobra.Command, state catalog.BackfillState) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Backfill %s\n", state.Status)
	if state.Status == catalog.BackfillIdle {
		return
	}
	fmt.Fprintf(out, "  Scope:      %s\n", state.Scope)
	fmt.Fprintf(out, "  Cursor:     %d\n", state.Cursor)
	fmt.Fprintf(out, "  Discovered: %d\n", state.Discovered)
	fmt.Fprintf(out, "  Enriched:   %d\n", state.Enriched)
	fmt.Fprintf(out, "  Failed:     %d\n", state.Failed)
	if state.StartedAt != nil {
		fmt.Fprintf(out, "  Started:    %s\n", state.StartedAt.Format(time.RFC3339))
	}
	if state.FinishedAt != nil {
		fmt.Fprintf(out, "  Finished:   %s\n", state.FinishedAt.Format(time.RFC3339))
	}
	if state.LastError != "" {
		fmt.Fprintf(out, "  Last error: %s\n", state.LastError)
	}
}

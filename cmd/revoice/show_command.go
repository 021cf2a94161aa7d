package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"revoice/internal/manifest"
	"revoice/internal/runstore"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var failuresOnly bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show [run-id]",
		Short: "Display one run's segment results",
		Long:  "Display one run's segment results. Without a run id the most recent run is shown.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *runstore.Store) error {
				var run *runstore.Run
				var err error
				if len(args) == 1 {
					run, err = store.GetRun(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					if run == nil {
						return fmt.Errorf("run %s not found", args[0])
					}
				} else {
					run, err = store.LatestRun(cmd.Context())
					if err != nil {
						return err
					}
					if run == nil {
						fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
						return nil
					}
				}

				records, err := store.SegmentResults(cmd.Context(), run.RunID)
				if err != nil {
					return err
				}
				if failuresOnly {
					records = filterFailures(records)
				}

				if asJSON {
					return writeJSON(cmd, map[string]any{"run": run, "records": records})
				}

				printRunHeader(cmd, run)
				if len(records) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No segment results recorded")
					return nil
				}
				rows := make([][]string, 0, len(records))
				for _, rec := range records {
					rows = append(rows, recordRow(rec))
				}
				table := renderTable(
					[]string{"Ordinal", "Segment", "Speaker", "Outcome", "Elapsed", "Detail"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&failuresOnly, "failures", false, "Show only failed segments")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func printRunHeader(cmd *cobra.Command, run *runstore.Run) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:      %s\n", run.RunID)
	fmt.Fprintf(out, "Status:   %s\n", run.Status)
	fmt.Fprintf(out, "Segments: %d succeeded, %d failed of %d\n", run.Succeeded, run.Failed, run.TotalSegments)
	if run.ModelID != "" {
		fmt.Fprintf(out, "Model:    %s (%s)\n", run.ModelID, run.TargetLanguage)
	}
	fmt.Fprintf(out, "Started:  %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	if run.FinishedAt != nil {
		fmt.Fprintf(out, "Duration: %s\n", run.Duration().Round(time.Millisecond))
	}
	if run.ManifestPath != "" {
		fmt.Fprintf(out, "Manifest: %s\n", run.ManifestPath)
	}
	if run.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:    %s\n", run.ErrorMessage)
	}
	fmt.Fprintln(out)
}

func recordRow(rec manifest.Record) []string {
	outcome := "ok"
	detail := rec.AudioPath
	if !rec.Success {
		outcome = string(rec.FailureKind)
		detail = truncateReason(rec.Reason, 72)
	}
	elapsed := "-"
	if rec.Elapsed > 0 {
		elapsed = (time.Duration(rec.Elapsed) * time.Millisecond).String()
	}
	return []string{
		strconv.Itoa(rec.OrdinalIndex),
		rec.SegmentID,
		rec.SpeakerID,
		outcome,
		elapsed,
		detail,
	}
}

func filterFailures(records []manifest.Record) []manifest.Record {
	failed := make([]manifest.Record, 0, len(records))
	for _, rec := range records {
		if !rec.Success {
			failed = append(failed, rec)
		}
	}
	return failed
}

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"revoice/internal/logging"
	"revoice/internal/staging"
)

func newStagingCommand(ctx *commandContext) *cobra.Command {
	stagingCmd := &cobra.Command{
		Use:   "staging",
		Short: "Manage the worker staging directory",
	}

	stagingCmd.AddCommand(newStagingListCommand(ctx))
	stagingCmd.AddCommand(newStagingCleanCommand(ctx))

	return stagingCmd
}

func newStagingListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List staging entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			stagingDir := strings.TrimSpace(cfg.Paths.StagingDir)
			entries, err := staging.ListEntries(stagingDir)
			if err != nil {
				return fmt.Errorf("list staging entries: %w", err)
			}

			var totalSize int64
			for _, entry := range entries {
				totalSize += entry.Size
			}

			if asJSON {
				if entries == nil {
					entries = []staging.Entry{}
				}
				return writeJSON(cmd, map[string]any{
					"staging_dir":      stagingDir,
					"entries":          entries,
					"total_size_bytes": totalSize,
				})
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No staging entries found")
				return nil
			}

			fmt.Fprintf(out, "Staging directory: %s\n\n", stagingDir)

			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				kind := "file"
				if entry.Dir {
					kind = "dir"
				}
				age := time.Since(entry.ModTime).Truncate(time.Minute)
				rows = append(rows, []string{
					entry.Name,
					kind,
					formatAge(age),
					logging.FormatBytes(entry.Size),
				})
			}

			table := renderTable(
				[]string{"Name", "Type", "Age", "Size"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
			)
			fmt.Fprint(out, table)
			fmt.Fprintf(out, "\nTotal: %d entries, %s\n", len(entries), logging.FormatBytes(totalSize))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newStagingCleanCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove stale staging entries",
		Long: `Remove staging entries older than the given age.

Published artifacts leave staging as part of publication, so old entries are
leftovers from crashed or interrupted runs. Use --older-than 0 to remove
everything; never do that while a run is active.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			result := staging.CleanStale(cfg.Paths.StagingDir, olderThan, logging.NewNop())

			out := cmd.OutOrStdout()
			if len(result.Removed) == 0 && len(result.Errors) == 0 {
				fmt.Fprintln(out, "No stale entries to clean")
				return nil
			}
			if len(result.Errors) > 0 {
				fmt.Fprintf(out, "Removed %d entries, %d errors\n", len(result.Removed), len(result.Errors))
				for _, e := range result.Errors {
					fmt.Fprintf(out, "  Error: %s: %v\n", e.Path, e.Error)
				}
				return nil
			}
			fmt.Fprintf(out, "Removed %d entries\n", len(result.Removed))
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 24*time.Hour, "Minimum age before an entry is considered stale")
	return cmd
}

func formatAge(d time.Duration) string {
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%dd", int(d.Hours()/24))
}

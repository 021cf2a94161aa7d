package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"revoice/internal/deps"
	"revoice/internal/preflight"
	"revoice/internal/runstore"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show environment and run history status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("Environment", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, check := range preflight.RunAll(cfg) {
				kind := statusOK
				if !check.Passed {
					kind = statusError
				}
				fmt.Fprintln(stdout, renderStatusLine(check.Name, kind, check.Detail, colorize))
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Dependencies", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range dependencyLines(preflight.CheckSystemDeps(cfg), colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Run History", colorize) {
				fmt.Fprintln(stdout, line)
			}
			return ctx.withStore(func(store *runstore.Store) error {
				latest, err := store.LatestRun(cmd.Context())
				if err != nil {
					return err
				}
				if latest == nil {
					fmt.Fprintln(stdout, "No runs recorded")
					return nil
				}
				fmt.Fprintln(stdout, renderStatusLine("Latest run", latestRunKind(latest), latestRunDetail(latest), colorize))

				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				rows := buildRunStatsRows(stats)
				if len(rows) > 0 {
					table := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
					fmt.Fprintln(stdout, table)
				}
				return nil
			})
		},
	}
}

func dependencyLines(statuses []deps.Status, colorize bool) []string {
	lines := make([]string, 0, len(statuses)+1)
	missing := make([]string, 0)
	for _, dep := range statuses {
		if dep.Available {
			message := "Ready"
			if dep.Detail != "" {
				message = fmt.Sprintf("Ready (%s)", dep.Detail)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}

		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
		if !dep.Optional {
			missing = append(missing, dep.Name)
		}
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing dependencies", statusWarn, strings.Join(missing, ", "), colorize))
	}
	return lines
}

func latestRunKind(run *runstore.Run) statusKind {
	switch run.Status {
	case runstore.StatusCompleted:
		return statusOK
	case runstore.StatusRunning:
		return statusInfo
	case runstore.StatusCancelled:
		return statusWarn
	default:
		return statusError
	}
}

func latestRunDetail(run *runstore.Run) string {
	detail := fmt.Sprintf("%s %s, %d/%d succeeded", run.RunID, run.Status, run.Succeeded, run.TotalSegments)
	if run.ErrorMessage != "" {
		detail += " (" + truncateReason(run.ErrorMessage, 48) + ")"
	}
	return detail
}

func buildRunStatsRows(stats map[runstore.Status]int) [][]string {
	order := []runstore.Status{
		runstore.StatusRunning,
		runstore.StatusCompleted,
		runstore.StatusCancelled,
		runstore.StatusFailed,
	}
	rows := make([][]string, 0, len(order))
	for _, status := range order {
		count, ok := stats[status]
		if !ok || count == 0 {
			continue
		}
		rows = append(rows, []string{string(status), strconv.Itoa(count)})
	}
	return rows
}

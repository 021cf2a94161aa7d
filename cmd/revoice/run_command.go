package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"revoice/internal/audiocheck"
	"revoice/internal/config"
	"revoice/internal/dispatch"
	"revoice/internal/logging"
	"revoice/internal/manifest"
	"revoice/internal/notifications"
	"revoice/internal/preflight"
	"revoice/internal/publish"
	"revoice/internal/runstore"
	"revoice/internal/segment"
	"revoice/internal/services"
	"revoice/internal/staging"
)

const (
	failureTableLimit = 15

	// Staging entries older than this cannot belong to the current run; the
	// lock file keeps runs from overlapping.
	staleStagingAge = 24 * time.Hour
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var poolSize int
	var sequential bool

	cmd := &cobra.Command{
		Use:   "run <segments-file>",
		Short: "Re-synthesize every segment in the input file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSynthesis(cmd, ctx, args[0], poolSize, sequential)
		},
	}

	cmd.Flags().IntVar(&poolSize, "pool", 0, "Override the configured worker pool size")
	cmd.Flags().BoolVar(&sequential, "sequential", false, "Run jobs one at a time on a single persistent worker")
	return cmd
}

func runSynthesis(cmd *cobra.Command, cmdCtx *commandContext, segmentsPath string, poolSize int, sequential bool) error {
	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	base, err := cmdCtx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// Flag overrides apply to a copy so other subcommands on the same
	// invocation see the file-backed values.
	cfgVal := *base
	cfg := &cfgVal
	if poolSize > 0 {
		cfg.Synthesis.PoolSize = poolSize
	}
	if sequential {
		cfg.Synthesis.Sequential = true
	}

	out := cmd.OutOrStdout()
	if checks := preflight.RunAll(cfg); !preflight.AllPassed(checks) {
		colorize := shouldColorize(out)
		failed := preflight.FailedChecks(checks)
		for _, check := range failed {
			fmt.Fprintln(out, renderStatusLine(check.Name, statusError, check.Detail, colorize))
		}
		return fmt.Errorf("preflight failed: %d check(s) not passing", len(failed))
	}

	runID := uuid.NewString()
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("revoice-%s.log", runID))
	interactive := isatty.IsTerminal(os.Stderr.Fd())

	logger, err := newRunLogger(cfg, logPath, interactive)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warn: unable to update revoice.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "revoice-*.log", Exclude: []string{logPath}},
	)

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another revoice run already holds %s", cfg.LockPath())
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release run lock", logging.Error(err))
		}
	}()

	staging.CleanStale(cfg.Paths.StagingDir, staleStagingAge, logger)

	input, err := segment.LoadFile(segmentsPath)
	if err != nil {
		return fmt.Errorf("load segments: %w", err)
	}

	store, err := runstore.Open(cfg)
	if err != nil {
		return fmt.Errorf("open run store: %w", err)
	}
	defer store.Close()

	if _, err := store.BeginRun(signalCtx, runID, len(input.Segments), cfg.Synthesis.ModelID, cfg.Synthesis.TargetLanguage); err != nil {
		return fmt.Errorf("record run start: %w", err)
	}

	notifier := notifications.NewService(cfg)
	if err := notifier.NotifyRunStarted(signalCtx, runID, len(input.Segments), len(input.Speakers)); err != nil {
		logger.Warn("failed to send run started notification", logging.Error(err))
	}

	coord, err := dispatch.New(cfg, logger,
		dispatch.WithSink(store),
		dispatch.WithVerifier(audiocheck.Verifier(cfg)),
	)
	if err != nil {
		return fmt.Errorf("build coordinator: %w", err)
	}

	runStart := time.Now()
	stopProgress := startProgressFeed(signalCtx, coord, len(input.Segments), interactive, logger)
	m, runErr := coord.Run(signalCtx, runID, input)
	stopProgress()

	// Publishing and bookkeeping run on a fresh context: a cancelled run
	// still gets its completed artifacts moved and its history written.
	manifestPath, pubErr := publishRun(cfg, logger, store, runID, &m)

	status := runstore.StatusCompleted
	errorMessage := ""
	switch {
	case runErr == nil:
		if pubErr != nil {
			errorMessage = fmt.Sprintf("publish: %v", pubErr)
		}
	case errors.Is(runErr, services.ErrCancelled):
		status = runstore.StatusCancelled
		errorMessage = "run cancelled"
	default:
		status = runstore.StatusFailed
		errorMessage = runErr.Error()
	}
	if err := store.FinishRun(context.Background(), runID, status, manifestPath, errorMessage); err != nil {
		logger.Warn("failed to record run finish", logging.Error(err))
	}

	notifyRunOutcome(notifier, logger, runID, status, m, runErr, time.Since(runStart))

	printRunSummary(out, runID, status, m, manifestPath, logPath)

	if runErr != nil {
		return runErr
	}
	if pubErr != nil {
		return fmt.Errorf("publish run artifacts: %w", pubErr)
	}
	return nil
}

// newRunLogger tees run logs into a per-run file. Interactive terminals get
// the progress bar instead of console log lines; everything still lands in
// the file.
func newRunLogger(cfg *config.Config, logPath string, interactive bool) (*slog.Logger, error) {
	outputs := []string{logPath}
	errorOutputs := []string{logPath}
	if !interactive {
		outputs = append([]string{"stdout"}, outputs...)
		errorOutputs = append([]string{"stderr"}, errorOutputs...)
	}
	return logging.New(logging.Options{
		Level:            cfg.Logging.Level,
		Format:           cfg.Logging.Format,
		OutputPaths:      outputs,
		ErrorOutputPaths: errorOutputs,
	})
}

func publishRun(cfg *config.Config, logger *slog.Logger, store *runstore.Store, runID string, m *manifest.Manifest) (string, error) {
	pub := publish.New(cfg, logger)
	res, err := pub.Publish(context.Background(), *m)
	if err != nil {
		logger.Error("failed to publish run artifacts", logging.Error(err))
		return "", err
	}
	*m = res.Manifest
	if err := store.ReplaceResults(context.Background(), runID, m.Records); err != nil {
		logger.Warn("failed to update stored result paths", logging.Error(err))
	}
	return res.ManifestPath, nil
}

// notifyRunOutcome pushes the terminal run state to the configured topic.
// Cancelled runs stay silent; the cancel came from the operator.
func notifyRunOutcome(notifier notifications.Service, logger *slog.Logger, runID string, status runstore.Status, m manifest.Manifest, runErr error, elapsed time.Duration) {
	var err error
	switch status {
	case runstore.StatusCompleted:
		succeeded, failed := m.Counts()
		err = notifier.NotifyRunCompleted(context.Background(), runID, succeeded, failed, elapsed)
	case runstore.StatusFailed:
		err = notifier.NotifyRunFailed(context.Background(), runID, runErr)
	}
	if err != nil {
		logger.Warn("failed to send run notification", logging.Error(err))
	}
}

func printRunSummary(out io.Writer, runID string, status runstore.Status, m manifest.Manifest, manifestPath, logPath string) {
	succeeded, failed := m.Counts()
	fmt.Fprintf(out, "Run %s %s: %d/%d segments succeeded\n", runID, status, succeeded, len(m.Records))

	if failed > 0 {
		rows := make([][]string, 0, failed)
		for _, rec := range m.Records {
			if rec.Success {
				continue
			}
			if len(rows) == failureTableLimit {
				break
			}
			rows = append(rows, []string{
				rec.SegmentID,
				rec.SpeakerID,
				string(rec.FailureKind),
				truncateReason(rec.Reason, 72),
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Segment", "Speaker", "Kind", "Reason"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
		))
		if failed > failureTableLimit {
			fmt.Fprintf(out, "and %d more failures (revoice show %s --failures)\n", failed-failureTableLimit, runID)
		}
	}

	if manifestPath != "" {
		fmt.Fprintf(out, "Output:   %s\n", filepath.Dir(manifestPath))
		fmt.Fprintf(out, "Manifest: %s\n", manifestPath)
	}
	fmt.Fprintf(out, "Log:      %s\n", logPath)
}

// ensureCurrentLogPointer keeps revoice.log pointing at the newest run log.
func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "revoice.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err == nil {
		return nil
	}
	return fmt.Errorf("link log pointer for %s", target)
}

func truncateReason(reason string, limit int) string {
	reason = strings.TrimSpace(reason)
	if limit <= 3 || len(reason) <= limit {
		return reason
	}
	return reason[:limit-3] + "..."
}

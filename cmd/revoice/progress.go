package main

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"revoice/internal/dispatch"
	"revoice/internal/logging"
)

const progressPollInterval = 200 * time.Millisecond

// startProgressFeed polls the coordinator snapshot until stopped. Interactive
// terminals get a live bar on stderr; otherwise progress lands in the log at
// sampled percentage buckets. The returned stop function renders the final
// state and waits for the feed goroutine to exit.
func startProgressFeed(ctx context.Context, coord *dispatch.Coordinator, total int, interactive bool, logger *slog.Logger) func() {
	done := make(chan struct{})
	var wg sync.WaitGroup

	var bar *progressbar.ProgressBar
	if interactive {
		bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription("synthesizing"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionClearOnFinish(),
		)
	}
	sampler := logging.NewProgressSampler(5)

	emit := func(snap dispatch.Snapshot) {
		if bar != nil {
			_ = bar.Set(snap.Completed)
			return
		}
		phase := strings.Join(snap.ActiveSpeakers, ",")
		if !sampler.ShouldLog(snap.Percent(), phase) {
			return
		}
		logger.Info("synthesis progress",
			logging.Int("completed", snap.Completed),
			logging.Int("total", snap.Total),
			logging.Int("failures", len(snap.Failures)),
			logging.String("active_speakers", phase),
			logging.String(logging.FieldEventType, "run_progress"),
		)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(progressPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				emit(coord.Progress())
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
		// The coordinator logs final counts itself; only the bar needs a
		// last paint.
		if bar != nil {
			_ = bar.Set(coord.Progress().Completed)
			_ = bar.Finish()
		}
	}
}

package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"revoice/internal/config"
	"revoice/internal/logging"
	"revoice/internal/manifest"
	"revoice/internal/plan"
	"revoice/internal/segment"
	"revoice/internal/services"
	"revoice/internal/wire"
	"revoice/internal/worker"
)

// Sink receives every terminal record as it is produced, letting callers
// mirror run state into durable storage while the run is still going.
type Sink interface {
	RecordResult(ctx context.Context, runID string, rec manifest.Record) error
}

// VerifyFunc checks a synthesized artifact before its segment is recorded as
// a success. Returning an error converts the segment into a synthesis
// failure.
type VerifyFunc func(path string) error

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithSink mirrors terminal records into the given sink as they arrive.
func WithSink(sink Sink) Option {
	return func(c *Coordinator) {
		c.sink = sink
	}
}

// WithVerifier runs the given check on every reported artifact path.
func WithVerifier(verify VerifyFunc) Option {
	return func(c *Coordinator) {
		c.verify = verify
	}
}

// WithLauncher overrides the worker launcher built from the configuration.
func WithLauncher(launcher *worker.Launcher) Option {
	return func(c *Coordinator) {
		c.launcher = launcher
	}
}

// Coordinator drives one run: it plans per-speaker jobs, feeds them to a
// fixed pool of worker subprocesses, and collects a terminal record for every
// submitted segment. A Coordinator is built for a single Run call.
type Coordinator struct {
	cfg      *config.Config
	logger   *slog.Logger
	launcher *worker.Launcher
	sink     Sink
	verify   VerifyFunc

	runID string

	mu      sync.RWMutex
	tracker *tracker
}

// New prepares a coordinator. The worker launcher is resolved immediately so
// configuration problems surface before any run starts.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Coordinator, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Coordinator{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "dispatch"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.launcher == nil {
		launcher, err := worker.NewLauncher(cfg)
		if err != nil {
			return nil, err
		}
		c.launcher = launcher
	}
	return c, nil
}

// Progress returns the current run snapshot. Safe to call from any goroutine
// at any time, including before Run starts or after it returns.
func (c *Coordinator) Progress() Snapshot {
	c.mu.RLock()
	t := c.tracker
	c.mu.RUnlock()
	if t == nil {
		return Snapshot{}
	}
	return t.snapshot()
}

// Run synthesizes every segment of the input and returns the finalized
// manifest. The manifest always covers every submitted segment, even when
// workers fail or the context is cancelled mid-run. The returned error is
// non-nil only for run-level conditions: no worker could be started at all,
// or the run was cancelled.
func (c *Coordinator) Run(ctx context.Context, runID string, input *segment.Input) (manifest.Manifest, error) {
	started := time.Now()
	c.runID = runID
	log := c.logger.With(logging.String(logging.FieldRunID, runID))

	p := plan.Build(input, c.logger)
	c.mu.Lock()
	c.tracker = newTracker(p.TotalSegments())
	c.mu.Unlock()

	asm := manifest.NewAssembler(input.Segments, c.logger)
	for _, rec := range p.Rejected {
		c.record(asm, rec)
	}

	workers := c.cfg.WorkerCount()
	if len(p.Jobs) < workers {
		workers = len(p.Jobs)
	}
	log.Info("dispatch started",
		logging.Int("jobs", len(p.Jobs)),
		logging.Int("segments", p.TotalSegments()),
		logging.Int("workers", workers),
		logging.String(logging.FieldEventType, "dispatch_started"),
	)

	if len(p.Jobs) > 0 {
		if err := c.runPool(ctx, log, p, asm, workers); err != nil {
			m := asm.Finalize(runID)
			return m, err
		}
	}

	m := asm.Finalize(runID)
	succeeded, failed := m.Counts()
	log.Info("dispatch finished",
		logging.Int("succeeded", succeeded),
		logging.Int("failed", failed),
		logging.Duration("elapsed", time.Since(started)),
		logging.String(logging.FieldEventType, "dispatch_finished"),
	)
	if ctx.Err() != nil {
		return m, services.Wrap(services.ErrCancelled, "dispatch", "run", "Run cancelled", ctx.Err())
	}
	return m, nil
}

// runPool spawns the worker pool and blocks until every job has a terminal
// outcome. Worker processes deliberately do not inherit the run context: a
// cancelled run still grants draining workers their grace period, and the
// detached context cancels only as a last resort once Run returns.
func (c *Coordinator) runPool(ctx context.Context, log *slog.Logger, p plan.Plan, asm *manifest.Assembler, workers int) error {
	procCtx, procCancel := context.WithCancel(context.Background())
	defer procCancel()

	jobs := make(chan plan.Job, len(p.Jobs))
	for _, job := range p.Jobs {
		jobs <- job
	}
	close(jobs)

	var (
		wg       sync.WaitGroup
		started  int
		spawnErr error
	)
	for slot := 1; slot <= workers; slot++ {
		proc, err := worker.Start(procCtx, slot, c.launcher, c.logger)
		if err != nil {
			spawnErr = err
			log.Error("failed to start worker",
				logging.Int(logging.FieldWorkerID, slot),
				logging.Error(err),
			)
			continue
		}
		started++
		wg.Add(1)
		go func(proc *worker.Process) {
			defer wg.Done()
			c.workerLoop(ctx, procCtx, proc, jobs, asm)
		}(proc)
	}

	if started == 0 {
		c.drainQueue(jobs, asm, manifest.FailureCrash, "no worker could be started")
		return services.Wrap(services.ErrSpawn, "dispatch", "start pool", "No worker could be started", spawnErr)
	}
	wg.Wait()

	// Jobs still queued here mean every worker slot died without a usable
	// replacement, or the run was cancelled before they were picked up.
	kind, reason := manifest.FailureCrash, "worker pool exhausted"
	if ctx.Err() != nil {
		kind, reason = manifest.FailureCancelled, "run cancelled before dispatch"
	}
	c.drainQueue(jobs, asm, kind, reason)
	return nil
}

// workerLoop owns one pool slot. It pulls jobs until the queue closes or the
// run is cancelled, replacing its worker process after a crash or timeout so
// the pool keeps its size for the jobs that remain.
func (c *Coordinator) workerLoop(ctx, procCtx context.Context, proc *worker.Process, jobs <-chan plan.Job, asm *manifest.Assembler) {
	for {
		select {
		case <-ctx.Done():
			proc.Drain(c.cfg.DrainGrace())
			return
		case job, ok := <-jobs:
			if !ok {
				proc.Drain(c.cfg.DrainGrace())
				return
			}
			alive := c.runJob(ctx, proc, job, asm)
			if ctx.Err() != nil {
				if alive {
					proc.Drain(c.cfg.DrainGrace())
				}
				return
			}
			if alive {
				continue
			}
			next, err := worker.Start(procCtx, proc.ID(), c.launcher, c.logger)
			if err != nil {
				c.logger.Error("failed to replace worker, retiring pool slot",
					logging.Int(logging.FieldWorkerID, proc.ID()),
					logging.Error(err),
				)
				return
			}
			proc = next
		}
	}
}

// waitStatus is the outcome of awaiting one in-flight segment.
type waitStatus int

const (
	resultReceived waitStatus = iota
	workerGone
	watchdogFired
	runCancelled
)

// runJob feeds one job to a worker segment by segment, keeping exactly one
// task in flight. It reports whether the worker is still usable afterwards;
// when it is not, every segment without a result already carries a terminal
// failure record.
func (c *Coordinator) runJob(ctx context.Context, proc *worker.Process, job plan.Job, asm *manifest.Assembler) bool {
	log := c.logger.With(
		logging.String(logging.FieldRunID, c.runID),
		logging.String(logging.FieldJobID, job.JobID),
		logging.String(logging.FieldSpeakerID, job.SpeakerID),
		logging.Int(logging.FieldWorkerID, proc.ID()),
	)
	if ctx.Err() != nil {
		c.failRemaining(asm, job, 0, manifest.FailureCancelled, "run cancelled")
		return true
	}

	deadline := c.cfg.JobDeadline(job.SegmentCount())
	proc.MarkBusy()
	c.tracker.jobStarted(job.SpeakerID)
	defer c.tracker.jobFinished(job.SpeakerID)

	log.Info("job dispatched",
		logging.Int("segments", job.SegmentCount()),
		logging.Duration("deadline", deadline),
		logging.String(logging.FieldEventType, "job_dispatched"),
	)
	jobStart := time.Now()
	watchdog := time.NewTimer(deadline)
	defer watchdog.Stop()

	for idx, seg := range job.Segments {
		task := wire.Task{
			JobID:              job.JobID,
			SegmentID:          seg.SegmentID,
			SpeakerID:          seg.SpeakerID,
			ReferenceAudioPath: job.Reference,
			TargetText:         seg.TargetText,
		}
		if err := proc.Send(task); err != nil {
			proc.Shutdown()
			reason := crashReason(proc.WaitErr(), proc.StderrTail())
			c.failRemaining(asm, job, idx, manifest.FailureCrash, reason)
			log.Error("worker lost mid-job",
				logging.String(logging.FieldSegmentID, seg.SegmentID),
				logging.Error(err),
				logging.String(logging.FieldEventType, "worker_crashed"),
			)
			return false
		}

		res, status := c.awaitResult(ctx, proc, seg, watchdog, log)
		switch status {
		case resultReceived:
			c.recordResult(asm, seg, res, log)
		case workerGone:
			<-proc.Exited()
			reason := crashReason(proc.WaitErr(), proc.StderrTail())
			c.failRemaining(asm, job, idx, manifest.FailureCrash, reason)
			log.Error("worker crashed mid-job",
				logging.String(logging.FieldSegmentID, seg.SegmentID),
				logging.String("reason", reason),
				logging.String(logging.FieldEventType, "worker_crashed"),
			)
			return false
		case watchdogFired:
			proc.Shutdown()
			c.failRemaining(asm, job, idx, manifest.FailureTimeout,
				fmt.Sprintf("job watchdog expired after %s", deadline))
			log.Error("job watchdog expired",
				logging.String(logging.FieldSegmentID, seg.SegmentID),
				logging.Duration("deadline", deadline),
				logging.String(logging.FieldEventType, "job_timeout"),
			)
			return false
		case runCancelled:
			c.failRemaining(asm, job, idx, manifest.FailureCancelled, "run cancelled")
			log.Info("job abandoned by cancellation",
				logging.String(logging.FieldSegmentID, seg.SegmentID),
				logging.String(logging.FieldEventType, "job_cancelled"),
			)
			proc.Drain(c.cfg.DrainGrace())
			return false
		}
	}

	proc.MarkReady()
	log.Info("job completed",
		logging.Int("segments", job.SegmentCount()),
		logging.Duration("elapsed", time.Since(jobStart)),
		logging.String(logging.FieldEventType, "job_completed"),
	)
	return true
}

// awaitResult blocks until the worker reports on the in-flight segment, the
// worker dies, the job watchdog fires, or the run is cancelled. Results for
// any other segment are protocol violations: they are logged and discarded
// while the wait continues, with the watchdog as the backstop.
func (c *Coordinator) awaitResult(ctx context.Context, proc *worker.Process, seg segment.Segment, watchdog *time.Timer, log *slog.Logger) (wire.Result, waitStatus) {
	for {
		select {
		case res, ok := <-proc.Results():
			if !ok {
				return wire.Result{}, workerGone
			}
			if res.SegmentID != seg.SegmentID {
				log.Warn("discarding result for unexpected segment",
					logging.String("got", res.SegmentID),
					logging.String("want", seg.SegmentID),
					logging.String(logging.FieldEventType, "worker_protocol_error"),
				)
				continue
			}
			return res, resultReceived
		case <-watchdog.C:
			return wire.Result{}, watchdogFired
		case <-ctx.Done():
			return wire.Result{}, runCancelled
		}
	}
}

// recordResult turns one wire result into the segment's terminal record.
func (c *Coordinator) recordResult(asm *manifest.Assembler, seg segment.Segment, res wire.Result, log *slog.Logger) {
	if !res.OK() {
		reason := strings.TrimSpace(res.Reason)
		if reason == "" {
			reason = "worker reported failure without a reason"
		}
		c.record(asm, manifest.Failed(seg, manifest.FailureSynthesis, reason))
		log.Warn("segment synthesis failed",
			logging.String(logging.FieldSegmentID, seg.SegmentID),
			logging.String("reason", reason),
			logging.String(logging.FieldEventType, "segment_failed"),
		)
		return
	}
	if c.verify != nil {
		if err := c.verify(res.AudioPath); err != nil {
			c.record(asm, manifest.Failed(seg, manifest.FailureSynthesis,
				fmt.Sprintf("artifact verification failed: %v", err)))
			log.Warn("artifact verification failed",
				logging.String(logging.FieldSegmentID, seg.SegmentID),
				logging.String("audio_path", res.AudioPath),
				logging.Error(err),
				logging.String(logging.FieldEventType, "segment_failed"),
			)
			return
		}
	}
	c.record(asm, manifest.Succeeded(seg, res.AudioPath, time.Duration(res.ElapsedMS)*time.Millisecond))
	log.Debug("segment synthesized",
		logging.String(logging.FieldSegmentID, seg.SegmentID),
		logging.Int64("elapsed_ms", res.ElapsedMS),
	)
}

// failRemaining records a terminal failure for every job segment from index
// on, covering the in-flight segment and everything still queued behind it.
func (c *Coordinator) failRemaining(asm *manifest.Assembler, job plan.Job, from int, kind manifest.FailureKind, reason string) {
	for _, seg := range job.Segments[from:] {
		c.record(asm, manifest.Failed(seg, kind, reason))
	}
}

// drainQueue empties the job queue after the pool is gone, recording the
// given failure for every segment that never reached a worker.
func (c *Coordinator) drainQueue(jobs <-chan plan.Job, asm *manifest.Assembler, kind manifest.FailureKind, reason string) {
	for job := range jobs {
		c.logger.Warn("job never dispatched",
			logging.String(logging.FieldJobID, job.JobID),
			logging.String(logging.FieldSpeakerID, job.SpeakerID),
			logging.String("reason", reason),
			logging.String(logging.FieldEventType, "job_undispatched"),
		)
		for _, seg := range job.Segments {
			c.record(asm, manifest.Failed(seg, kind, reason))
		}
	}
}

// record is the single funnel for terminal records: assembler first, then
// progress, then the optional sink. Records the assembler rejects as
// duplicates or unknown never reach the tracker, so progress counts stay in
// step with the manifest. Sink writes use a detached context so a cancelled
// run still leaves a complete trail in storage.
func (c *Coordinator) record(asm *manifest.Assembler, rec manifest.Record) {
	if !asm.Add(rec) {
		return
	}
	c.tracker.record(rec)
	if c.sink == nil {
		return
	}
	if err := c.sink.RecordResult(context.Background(), c.runID, rec); err != nil {
		c.logger.Warn("failed to persist segment result",
			logging.String(logging.FieldSegmentID, rec.SegmentID),
			logging.Error(err),
		)
	}
}

// crashReason builds the failure reason recorded for segments lost to a
// worker death, folding in the last stderr line when one was captured.
func crashReason(waitErr error, tail []string) string {
	reason := "worker exited unexpectedly"
	if waitErr != nil {
		reason = fmt.Sprintf("worker crashed: %v", waitErr)
	}
	for i := len(tail) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(tail[i]); line != "" {
			return reason + "; stderr: " + line
		}
	}
	return reason
}

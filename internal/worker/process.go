package worker

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"revoice/internal/logging"
	"revoice/internal/services"
	"revoice/internal/wire"
)

// State is a worker's lifecycle state.
type State string

const (
	StateStarting State = "starting"
	StateReady    State = "ready"
	StateBusy     State = "busy"
	StateDraining State = "draining"
	StateDead     State = "dead"
)

// Process is one live worker subprocess. The owning goroutine writes tasks
// through Send and must keep reading Results until the channel closes; the
// channel closes only after the subprocess has fully exited.
type Process struct {
	id     int
	logger *slog.Logger
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *tailBuffer

	results chan wire.Result
	exited  chan struct{}

	mu      sync.Mutex
	state   State
	waitErr error
	killed  bool
}

// Start spawns one worker subprocess in its own process group. The returned
// process is Ready; model loading happens inside the worker during its first
// task and is covered by the job watchdog's base allowance.
func Start(ctx context.Context, id int, launcher *Launcher, logger *slog.Logger) (*Process, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	p := &Process{
		id:      id,
		state:   StateStarting,
		results: make(chan wire.Result, 4),
		exited:  make(chan struct{}),
	}
	p.logger = logging.NewComponentLogger(logger, "worker").With(
		logging.Int(logging.FieldWorkerID, id),
	)

	cmd := launcher.Command(ctx)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, services.Wrap(services.ErrSpawn, "worker", "start", "Failed to open worker stdin", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, services.Wrap(services.ErrSpawn, "worker", "start", "Failed to open worker stdout", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, services.Wrap(services.ErrSpawn, "worker", "start", "Failed to open worker stderr", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, services.Wrap(services.ErrSpawn, "worker", "start", "Failed to launch worker process", err)
	}

	p.cmd = cmd
	p.stdin = stdin
	p.stderr = newTailBuffer(launcher.cfg.Watchdog.StderrTailLines)
	p.setState(StateReady)
	go p.supervise(stdout, stderr)

	p.logger.Info("worker started",
		logging.Int("pid", cmd.Process.Pid),
		logging.String("binary", launcher.Binary()),
		logging.String(logging.FieldEventType, "worker_started"),
	)
	return p, nil
}

// supervise streams both output pipes until the subprocess exits, then
// publishes the exit result. Results close strictly before exited so readers
// draining the channel always observe the final state afterwards.
func (p *Process) supervise(stdout, stderr io.Reader) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.scanResults(stdout)
	}()
	go func() {
		defer wg.Done()
		p.scanStderr(stderr)
	}()
	wg.Wait()

	err := p.cmd.Wait()
	p.mu.Lock()
	p.waitErr = err
	p.state = StateDead
	p.mu.Unlock()
	close(p.results)
	close(p.exited)
}

// scanResults parses stdout lines into results. Unparseable lines are
// discarded and logged; they never terminate the worker.
func (p *Process) scanResults(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		result, err := wire.ParseResult(line)
		if err != nil {
			p.logger.Warn("discarding unparseable worker output",
				logging.Error(err),
				logging.String(logging.FieldEventType, "worker_protocol_error"),
			)
			continue
		}
		p.results <- result
	}
	if err := scanner.Err(); err != nil {
		p.logger.Warn("worker stdout read failed", logging.Error(err))
	}
}

func (p *Process) scanStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		p.stderr.Append(line)
		p.logger.Debug("worker stderr", logging.String("line", line))
	}
}

// ID returns the worker's pool slot.
func (p *Process) ID() int {
	return p.id
}

// State returns the worker's current lifecycle state.
func (p *Process) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Process) setState(state State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateDead {
		p.state = state
	}
}

// MarkBusy records that the worker holds a job.
func (p *Process) MarkBusy() {
	p.setState(StateBusy)
}

// MarkReady records that the worker finished its job and is idle again.
func (p *Process) MarkReady() {
	p.setState(StateReady)
}

// Send writes one task line to the worker. A write failure means the worker
// side of the pipe is gone, which the caller must treat as a crash.
func (p *Process) Send(task wire.Task) error {
	if err := wire.WriteTask(p.stdin, task); err != nil {
		return services.Wrap(services.ErrCrash, "worker", "send task", "Worker stdin closed", err)
	}
	return nil
}

// Results streams parsed result lines. The channel closes once the
// subprocess has exited and its stdout is fully consumed.
func (p *Process) Results() <-chan wire.Result {
	return p.results
}

// Exited is closed after the subprocess has been reaped.
func (p *Process) Exited() <-chan struct{} {
	return p.exited
}

// WaitErr returns the subprocess exit error. Valid after Exited is closed;
// nil means a clean exit 0.
func (p *Process) WaitErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitErr
}

// StderrTail returns the last captured diagnostic lines for failure reports.
func (p *Process) StderrTail() []string {
	return p.stderr.Lines()
}

// Kill force-terminates the worker's whole process group.
func (p *Process) Kill() {
	p.mu.Lock()
	if p.killed {
		p.mu.Unlock()
		return
	}
	p.killed = true
	p.mu.Unlock()

	if p.cmd.Process == nil {
		return
	}
	if err := unix.Kill(-p.cmd.Process.Pid, unix.SIGKILL); err != nil {
		_ = p.cmd.Process.Kill()
	}
}

// Shutdown kills the worker and reaps it, discarding any buffered results.
func (p *Process) Shutdown() {
	p.Kill()
	for range p.results {
	}
	<-p.exited
}

// Drain sends the end-of-work sentinel and waits up to grace for the worker
// to finish and exit on its own. Workers that do not drain in time are
// killed. Results arriving during the drain are discarded; every segment the
// caller still cares about already has a terminal record by this point.
func (p *Process) Drain(grace time.Duration) {
	p.setState(StateDraining)
	if err := wire.WriteSentinel(p.stdin); err != nil {
		p.Shutdown()
		return
	}
	_ = p.stdin.Close()

	timer := time.NewTimer(grace)
	defer timer.Stop()
	for {
		select {
		case _, ok := <-p.results:
			if !ok {
				<-p.exited
				if err := p.WaitErr(); err != nil {
					p.logger.Warn("worker exited uncleanly after drain", logging.Error(err))
				}
				return
			}
		case <-timer.C:
			p.logger.Warn("worker did not drain in time, killing",
				logging.Duration("grace", grace),
				logging.String(logging.FieldEventType, "worker_drain_timeout"),
			)
			p.Shutdown()
			return
		}
	}
}

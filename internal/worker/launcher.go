package worker

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mattn/go-shellwords"

	"revoice/internal/config"
	"revoice/internal/services"
)

var commandContext = exec.CommandContext

// Command names and package pins for the embedded worker environment.
const (
	UVXCommand   = "uvx"
	ttsPackage   = "coqui-tts"
	audioPackage = "soundfile"
	cudaIndexURL = "https://download.pytorch.org/whl/cu128"
	pypiIndexURL = "https://pypi.org/simple"
	embeddedFile = "revoice_worker.py"
)

// Launcher builds the command line and environment for worker processes.
// All workers of a run share one launcher; each Start call produces a fresh
// subprocess, so a crashed worker's replacement launches identically.
type Launcher struct {
	cfg     *config.Config
	command []string
}

// NewLauncher resolves the worker command. A configured
// synthesis.worker_command is split shell-style; when it is empty the
// embedded reference worker is materialized into the staging directory and
// run through uvx.
func NewLauncher(cfg *config.Config) (*Launcher, error) {
	launcher := &Launcher{cfg: cfg}

	if raw := strings.TrimSpace(cfg.Synthesis.WorkerCommand); raw != "" {
		parser := shellwords.NewParser()
		args, err := parser.Parse(raw)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "worker", "parse command", "Invalid synthesis.worker_command", err)
		}
		if len(args) == 0 {
			return nil, services.Wrap(services.ErrConfiguration, "worker", "parse command", "synthesis.worker_command parses to nothing", nil)
		}
		launcher.command = args
		return launcher, nil
	}

	scriptPath := filepath.Join(cfg.Paths.StagingDir, embeddedFile)
	if err := os.WriteFile(scriptPath, []byte(synthWorkerScript), 0o644); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "worker", "write script", "Failed to materialize embedded worker script", err)
	}
	launcher.command = embeddedCommand(cfg, scriptPath)
	return launcher, nil
}

func embeddedCommand(cfg *config.Config, scriptPath string) []string {
	args := []string{UVXCommand, "--quiet", "--with", ttsPackage, "--with", audioPackage}
	if cfg.Synthesis.Device == "cuda" {
		args = append(args,
			"--index-url", cudaIndexURL,
			"--extra-index-url", pypiIndexURL,
		)
	}
	return append(args, "python", scriptPath)
}

// Command returns the exec.Cmd for one new worker process bound to ctx.
func (l *Launcher) Command(ctx context.Context) *exec.Cmd {
	cmd := commandContext(ctx, l.command[0], l.command[1:]...) //nolint:gosec
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}
	cmd.Env = append(cmd.Env,
		"REVOICE_MODEL_ID="+l.cfg.Synthesis.ModelID,
		"REVOICE_TARGET_LANGUAGE="+l.cfg.Synthesis.TargetLanguage,
		"REVOICE_DEVICE="+l.cfg.Synthesis.Device,
		fmt.Sprintf("REVOICE_SAMPLE_RATE=%d", l.cfg.Synthesis.SampleRate),
		"REVOICE_STAGING_DIR="+l.cfg.Paths.StagingDir,
	)
	return cmd
}

// Binary returns the executable the launcher will invoke, for preflight
// checks and logging.
func (l *Launcher) Binary() string {
	return l.command[0]
}

package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and database location configuration.
type Paths struct {
	StagingDir   string `toml:"staging_dir"`
	OutputDir    string `toml:"output_dir"`
	LogDir       string `toml:"log_dir"`
	DatabasePath string `toml:"database_path"`
}

// Synthesis contains configuration for the worker pool and the synthesis
// runtime each worker hosts.
type Synthesis struct {
	// WorkerCommand is the command line used to launch one worker process.
	// When empty, the embedded reference worker is run through uv.
	WorkerCommand  string `toml:"worker_command"`
	PoolSize       int    `toml:"pool_size"`
	Sequential     bool   `toml:"sequential"`
	ModelID        string `toml:"model_id"`
	TargetLanguage string `toml:"target_language"`
	Device         string `toml:"device"`
	SampleRate     int    `toml:"sample_rate"`
}

// Watchdog contains job deadline and worker shutdown configuration.
type Watchdog struct {
	// JobBaseSeconds is the fixed part of a job deadline; it also absorbs
	// one-time model loading on a worker's first job.
	JobBaseSeconds    int `toml:"job_base_seconds"`
	SegmentSeconds    int `toml:"segment_seconds"`
	DrainGraceSeconds int `toml:"drain_grace_seconds"`
	StderrTailLines   int `toml:"stderr_tail_lines"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Validation contains configuration for post-synthesis artifact checks.
type Validation struct {
	VerifyArtifacts bool `toml:"verify_artifacts"`
}

// Notifications contains configuration for push notifications. Runs stay
// silent when no ntfy topic is configured.
type Notifications struct {
	// NtfyTopic is the full topic URL, for example https://ntfy.sh/revoice.
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Config encapsulates all configuration values for revoice.
//
// Configuration sections by subsystem:
//   - Paths: staging/output/log directories and the run database
//   - Synthesis: worker command, pool sizing, and synthesis runtime settings
//   - Watchdog: job deadlines, drain grace, stderr capture
//   - Logging: log format, level, and retention
//   - Validation: artifact verification toggles
//   - Notifications: optional ntfy push notifications
type Config struct {
	Paths         Paths         `toml:"paths"`
	Synthesis     Synthesis     `toml:"synthesis"`
	Watchdog      Watchdog      `toml:"watchdog"`
	Logging       Logging       `toml:"logging"`
	Validation    Validation    `toml:"validation"`
	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/revoice/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/revoice/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("revoice.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for coordinator operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.OutputDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if dir := filepath.Dir(c.Paths.DatabasePath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create database directory %q: %w", dir, err)
		}
	}
	return nil
}

// WorkerCount returns the effective worker pool size; sequential mode always
// runs a single persistent worker.
func (c *Config) WorkerCount() int {
	if c.Synthesis.Sequential {
		return 1
	}
	if c.Synthesis.PoolSize < 1 {
		return 1
	}
	return c.Synthesis.PoolSize
}

// JobDeadline returns the watchdog deadline for a job of the given segment
// count: a fixed base plus a per-segment allowance.
func (c *Config) JobDeadline(segments int) time.Duration {
	if segments < 1 {
		segments = 1
	}
	base := time.Duration(c.Watchdog.JobBaseSeconds) * time.Second
	per := time.Duration(c.Watchdog.SegmentSeconds) * time.Second
	return base + per*time.Duration(segments)
}

// DrainGrace returns how long a worker may keep running after the end-of-work
// sentinel before it is force-terminated.
func (c *Config) DrainGrace() time.Duration {
	return time.Duration(c.Watchdog.DrainGraceSeconds) * time.Second
}

// LockPath returns the lock file guarding single-run access to the database.
func (c *Config) LockPath() string {
	return c.Paths.DatabasePath + ".lock"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

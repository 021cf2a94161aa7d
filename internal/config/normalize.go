package config

import (
	"fmt"
	"os"
	"strings"

	"revoice/internal/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeSynthesis(); err != nil {
		return err
	}
	c.normalizeWatchdog()
	c.normalizeLogging()
	c.normalizeNotifications()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DatabasePath) == "" {
		c.Paths.DatabasePath = defaultDatabasePath
	}
	if c.Paths.DatabasePath, err = expandPath(c.Paths.DatabasePath); err != nil {
		return fmt.Errorf("paths.database_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeSynthesis() error {
	c.Synthesis.WorkerCommand = strings.TrimSpace(c.Synthesis.WorkerCommand)
	if c.Synthesis.WorkerCommand == "" {
		if value, ok := os.LookupEnv("REVOICE_WORKER_COMMAND"); ok {
			c.Synthesis.WorkerCommand = strings.TrimSpace(value)
		}
	}
	c.Synthesis.ModelID = strings.TrimSpace(c.Synthesis.ModelID)
	if c.Synthesis.ModelID == "" {
		c.Synthesis.ModelID = defaultModelID
	}
	normalized, err := language.Normalize(c.Synthesis.TargetLanguage)
	if err != nil {
		return fmt.Errorf("synthesis.target_language: %w", err)
	}
	c.Synthesis.TargetLanguage = normalized
	c.Synthesis.Device = strings.ToLower(strings.TrimSpace(c.Synthesis.Device))
	if c.Synthesis.Device == "" {
		c.Synthesis.Device = defaultDevice
	}
	if c.Synthesis.SampleRate <= 0 {
		c.Synthesis.SampleRate = defaultSampleRate
	}
	return nil
}

func (c *Config) normalizeWatchdog() {
	if c.Watchdog.JobBaseSeconds <= 0 {
		c.Watchdog.JobBaseSeconds = defaultJobBaseSeconds
	}
	if c.Watchdog.SegmentSeconds <= 0 {
		c.Watchdog.SegmentSeconds = defaultSegmentSeconds
	}
	if c.Watchdog.DrainGraceSeconds <= 0 {
		c.Watchdog.DrainGraceSeconds = defaultDrainGraceSeconds
	}
	if c.Watchdog.StderrTailLines < 0 {
		c.Watchdog.StderrTailLines = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNtfyTimeoutSecs
	}
}

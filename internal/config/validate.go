package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateSynthesis(); err != nil {
		return err
	}
	if err := c.validateWatchdog(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if c.Paths.StagingDir == c.Paths.OutputDir {
		return errors.New("paths.staging_dir and paths.output_dir must differ")
	}
	return nil
}

func (c *Config) validateSynthesis() error {
	if c.Synthesis.PoolSize < 1 {
		return errors.New("synthesis.pool_size must be at least 1")
	}
	if c.Synthesis.PoolSize > 16 {
		return errors.New("synthesis.pool_size above 16 is not supported; size the pool to available device memory")
	}
	switch c.Synthesis.Device {
	case "cpu", "cuda", "mps":
	default:
		return fmt.Errorf("synthesis.device must be one of cpu, cuda, mps; got %q", c.Synthesis.Device)
	}
	if c.Synthesis.SampleRate < 8000 || c.Synthesis.SampleRate > 192000 {
		return fmt.Errorf("synthesis.sample_rate %d outside supported range 8000-192000", c.Synthesis.SampleRate)
	}
	return nil
}

func (c *Config) validateWatchdog() error {
	if err := ensurePositiveMap(map[string]int{
		"watchdog.job_base_seconds":    c.Watchdog.JobBaseSeconds,
		"watchdog.segment_seconds":     c.Watchdog.SegmentSeconds,
		"watchdog.drain_grace_seconds": c.Watchdog.DrainGraceSeconds,
	}); err != nil {
		return err
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

// Package audiocheck verifies synthesized artifacts before they are
// accepted into the manifest.
package audiocheck

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-audio/wav"

	"revoice/internal/config"
)

// Report summarizes a decoded artifact.
type Report struct {
	SampleRate int
	Channels   int
	Frames     int
	Duration   time.Duration
}

// Probe decodes the artifact at path. An error means the file is missing,
// not a decodable WAV, or contains no audio frames.
func Probe(path string) (Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return Report{}, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return Report{}, errors.New("not a valid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Report{}, fmt.Errorf("decode artifact: %w", err)
	}
	frames := buf.NumFrames()
	if frames == 0 {
		return Report{}, errors.New("artifact contains no audio frames")
	}

	report := Report{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		Frames:     frames,
	}
	if report.SampleRate > 0 {
		report.Duration = time.Duration(frames) * time.Second / time.Duration(report.SampleRate)
	}
	return report, nil
}

// Verifier returns the artifact check the coordinator runs on every reported
// audio path, or nil when verification is disabled.
func Verifier(cfg *config.Config) func(path string) error {
	if !cfg.Validation.VerifyArtifacts {
		return nil
	}
	want := cfg.Synthesis.SampleRate
	return func(path string) error {
		report, err := Probe(path)
		if err != nil {
			return err
		}
		if want > 0 && report.SampleRate != want {
			return fmt.Errorf("artifact sample rate %d, expected %d", report.SampleRate, want)
		}
		return nil
	}
}

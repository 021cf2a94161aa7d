// Package publish moves synthesized artifacts out of staging into the run's
// output directory and writes the final manifest beside them.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"revoice/internal/config"
	"revoice/internal/fileutil"
	"revoice/internal/logging"
	"revoice/internal/manifest"
)

// Result describes where a published run landed.
type Result struct {
	OutputDir    string
	ManifestPath string
	Published    int
	Manifest     manifest.Manifest
}

// Publisher copies run artifacts into place with integrity checks.
type Publisher struct {
	cfg    *config.Config
	logger *slog.Logger
}

// New builds a publisher for the configured output root.
func New(cfg *config.Config, logger *slog.Logger) *Publisher {
	return &Publisher{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "publish"),
	}
}

// Publish copies every successful artifact into output/<run-id> under an
// ordinal-prefixed name, rewrites the manifest records to the published
// paths, and writes manifest.json. Staged source files are removed once
// their copies are verified; failed records pass through untouched.
func (p *Publisher) Publish(ctx context.Context, m manifest.Manifest) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	outDir := filepath.Join(p.cfg.Paths.OutputDir, m.RunID)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create output directory: %w", err)
	}
	log := p.logger.With(logging.String(logging.FieldRunID, m.RunID))

	published := 0
	var staged []string
	for i := range m.Records {
		rec := &m.Records[i]
		if !rec.Success {
			continue
		}
		dst := filepath.Join(outDir, fmt.Sprintf("%04d_%s.wav", rec.OrdinalIndex, rec.SegmentID))
		if err := fileutil.CopyVerified(rec.AudioPath, dst); err != nil {
			return Result{}, fmt.Errorf("publish %s: %w", rec.SegmentID, err)
		}
		staged = append(staged, rec.AudioPath)
		rec.AudioPath = dst
		published++
	}

	manifestPath := filepath.Join(outDir, "manifest.json")
	if err := m.WriteFile(manifestPath); err != nil {
		return Result{}, err
	}

	for _, src := range staged {
		if err := os.Remove(src); err != nil && !os.IsNotExist(err) {
			log.Warn("failed to remove staged artifact",
				logging.String("path", src),
				logging.Error(err),
			)
		}
	}

	log.Info("run published",
		logging.String("output_dir", outDir),
		logging.Int("artifacts", published),
		logging.String(logging.FieldEventType, "run_published"),
	)
	return Result{
		OutputDir:    outDir,
		ManifestPath: manifestPath,
		Published:    published,
		Manifest:     m,
	}, nil
}

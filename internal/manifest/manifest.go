package manifest

import (
	"encoding/json"
	"fmt"
	"time"

	"revoice/internal/fileutil"
)

// Manifest is the final ordinal-ordered record of every segment's synthesis
// outcome, consumed by the downstream muxing stage.
type Manifest struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Records     []Record  `json:"records"`
}

// New builds a manifest around already-ordered records.
func New(runID string, records []Record) Manifest {
	return Manifest{
		RunID:       runID,
		GeneratedAt: time.Now().UTC(),
		Records:     records,
	}
}

// Counts returns how many records succeeded and how many failed.
func (m Manifest) Counts() (succeeded, failed int) {
	for _, rec := range m.Records {
		if rec.Success {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}

// WriteFile persists the manifest as indented JSON via an atomic rename.
func (m Manifest) WriteFile(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	data = append(data, '\n')
	if err := fileutil.WriteAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

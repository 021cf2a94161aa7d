package segment

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"revoice/internal/services"
)

type inputFile struct {
	Speakers []SpeakerProfile `json:"speakers"`
	Segments []Segment        `json:"segments"`
}

// LoadFile reads a segments file produced by the upstream segmentation and
// translation pipeline. Segments are returned in ordinal order regardless of
// file order; segments without an explicit segment_id get a deterministic one
// derived from their ordinal.
func LoadFile(path string) (*Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "segment", "load", "read segments file", err)
	}
	return Parse(data)
}

// Parse decodes and validates raw segments file content.
func Parse(data []byte) (*Input, error) {
	var file inputFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, services.Wrap(services.ErrValidation, "segment", "parse", "decode segments file", err)
	}

	input := &Input{
		Segments: file.Segments,
		Speakers: make(map[string]SpeakerProfile, len(file.Speakers)),
	}
	for _, profile := range file.Speakers {
		if _, ok := input.Speakers[profile.SpeakerID]; ok {
			return nil, services.Wrap(services.ErrValidation, "segment", "parse",
				fmt.Sprintf("duplicate speaker profile %q", profile.SpeakerID), nil)
		}
		input.Speakers[profile.SpeakerID] = profile
	}

	for i := range input.Segments {
		if input.Segments[i].SegmentID == "" {
			input.Segments[i].SegmentID = DefaultSegmentID(input.Segments[i].OrdinalIndex)
		}
	}
	sort.SliceStable(input.Segments, func(a, b int) bool {
		return input.Segments[a].OrdinalIndex < input.Segments[b].OrdinalIndex
	})

	if err := input.validate(); err != nil {
		return nil, services.Wrap(services.ErrValidation, "segment", "parse", "invalid segments file", err)
	}
	return input, nil
}

// DefaultSegmentID derives a stable segment identifier from an ordinal index.
func DefaultSegmentID(ordinal int) string {
	return fmt.Sprintf("seg-%04d", ordinal)
}

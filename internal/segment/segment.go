package segment

import (
	"fmt"
	"strings"
)

// SpeakerProfile identifies one speaker and the reference audio their voice
// is cloned from. Encoded reference handles live inside worker processes and
// never appear here.
type SpeakerProfile struct {
	SpeakerID          string `json:"speaker_id"`
	ReferenceAudioPath string `json:"reference_audio_path"`
}

// Segment is one subtitle-aligned unit of speech targeted for re-synthesis.
// Immutable once built; OrdinalIndex is the segment's position in the
// original input and is globally unique.
type Segment struct {
	SegmentID    string `json:"segment_id"`
	OrdinalIndex int    `json:"ordinal_index"`
	SpeakerID    string `json:"speaker_id"`
	SourceText   string `json:"source_text"`
	TargetText   string `json:"target_text"`
}

// Input bundles the ordinal-ordered segments and known speaker profiles for
// one run.
type Input struct {
	Segments []Segment
	Speakers map[string]SpeakerProfile
}

// SpeakerFor returns the profile for the given speaker id.
func (in *Input) SpeakerFor(id string) (SpeakerProfile, bool) {
	profile, ok := in.Speakers[id]
	return profile, ok
}

func (in *Input) validate() error {
	seenOrdinals := make(map[int]string, len(in.Segments))
	seenIDs := make(map[string]int, len(in.Segments))
	for i := range in.Segments {
		seg := &in.Segments[i]
		if seg.OrdinalIndex < 0 {
			return fmt.Errorf("segment %q: ordinal_index must not be negative", seg.SegmentID)
		}
		if prior, ok := seenOrdinals[seg.OrdinalIndex]; ok {
			return fmt.Errorf("duplicate ordinal_index %d (segments %q and %q)", seg.OrdinalIndex, prior, seg.SegmentID)
		}
		seenOrdinals[seg.OrdinalIndex] = seg.SegmentID
		if seg.SegmentID == "" {
			return fmt.Errorf("segment at ordinal %d: missing segment_id", seg.OrdinalIndex)
		}
		if prior, ok := seenIDs[seg.SegmentID]; ok {
			return fmt.Errorf("duplicate segment_id %q (ordinals %d and %d)", seg.SegmentID, prior, seg.OrdinalIndex)
		}
		seenIDs[seg.SegmentID] = seg.OrdinalIndex
	}
	for id, profile := range in.Speakers {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("speaker profile with empty speaker_id")
		}
		if strings.TrimSpace(profile.ReferenceAudioPath) == "" {
			return fmt.Errorf("speaker %q: reference_audio_path must be set", id)
		}
	}
	return nil
}

package segment_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"revoice/internal/segment"
	"revoice/internal/services"
)

const sampleInput = `{
  "speakers": [
    {"speaker_id": "narrator", "reference_audio_path": "/refs/narrator.wav"},
    {"speaker_id": "guest", "reference_audio_path": "/refs/guest.wav"}
  ],
  "segments": [
    {"ordinal_index": 1, "speaker_id": "guest", "source_text": "hola", "target_text": "hello"},
    {"ordinal_index": 0, "segment_id": "intro", "speaker_id": "narrator", "source_text": "bienvenidos", "target_text": "welcome"}
  ]
}`

func TestLoadFileOrdersAndAssignsIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segments.json")
	if err := os.WriteFile(path, []byte(sampleInput), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	input, err := segment.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile returned error: %v", err)
	}
	if len(input.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(input.Segments))
	}
	if input.Segments[0].SegmentID != "intro" || input.Segments[0].OrdinalIndex != 0 {
		t.Fatalf("expected ordinal order, got %+v", input.Segments[0])
	}
	if input.Segments[1].SegmentID != "seg-0001" {
		t.Fatalf("expected derived segment id, got %q", input.Segments[1].SegmentID)
	}
	profile, ok := input.SpeakerFor("guest")
	if !ok || profile.ReferenceAudioPath != "/refs/guest.wav" {
		t.Fatalf("unexpected guest profile: %+v ok=%v", profile, ok)
	}
}

func TestLoadFileMissingFile(t *testing.T) {
	_, err := segment.LoadFile(filepath.Join(t.TempDir(), "absent.json"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
}

func TestParseRejectsDuplicateOrdinals(t *testing.T) {
	data := []byte(`{
  "speakers": [{"speaker_id": "a", "reference_audio_path": "/refs/a.wav"}],
  "segments": [
    {"ordinal_index": 0, "speaker_id": "a", "target_text": "x"},
    {"ordinal_index": 0, "speaker_id": "a", "target_text": "y"}
  ]
}`)
	if _, err := segment.Parse(data); err == nil {
		t.Fatal("expected error for duplicate ordinal")
	}
}

func TestParseRejectsDuplicateSegmentIDs(t *testing.T) {
	data := []byte(`{
  "speakers": [{"speaker_id": "a", "reference_audio_path": "/refs/a.wav"}],
  "segments": [
    {"ordinal_index": 0, "segment_id": "dup", "speaker_id": "a", "target_text": "x"},
    {"ordinal_index": 1, "segment_id": "dup", "speaker_id": "a", "target_text": "y"}
  ]
}`)
	if _, err := segment.Parse(data); err == nil {
		t.Fatal("expected error for duplicate segment id")
	}
}

func TestParseRejectsMalformedSpeaker(t *testing.T) {
	data := []byte(`{
  "speakers": [{"speaker_id": "a", "reference_audio_path": ""}],
  "segments": []
}`)
	if _, err := segment.Parse(data); err == nil {
		t.Fatal("expected error for speaker without reference audio")
	}
}

func TestParseKeepsContentIssuesForPlanning(t *testing.T) {
	// Empty target text and unknown speakers are manifest-level validation
	// failures, not load errors.
	data := []byte(`{
  "speakers": [{"speaker_id": "a", "reference_audio_path": "/refs/a.wav"}],
  "segments": [
    {"ordinal_index": 0, "speaker_id": "a", "target_text": ""},
    {"ordinal_index": 1, "speaker_id": "nobody", "target_text": "hi"}
  ]
}`)
	input, err := segment.Parse(data)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(input.Segments) != 2 {
		t.Fatalf("expected both segments retained, got %d", len(input.Segments))
	}
}

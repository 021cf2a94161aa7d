package testsupport

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"revoice/internal/segment"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size
	for remaining > 0 {
		toWrite := int64(chunkSize)
		if remaining < toWrite {
			toWrite = remaining
		}
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}

// WriteWAV writes a short mono 16-bit PCM sine tone that decodes cleanly.
func WriteWAV(t testing.TB, path string, frames int) {
	t.Helper()

	if frames <= 0 {
		frames = 2400
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const sampleRate = 24000
	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, frames),
	}
	for i := range buf.Data {
		buf.Data[i] = int(2000 * math.Sin(2*math.Pi*440*float64(i)/sampleRate))
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write wav %s: %v", path, err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav %s: %v", path, err)
	}
}

// NewInput builds a run input with one reference wav per speaker. counts
// lists how many segments each speaker gets; segments are interleaved
// round-robin so ordinals alternate across speakers the way dialogue does.
func NewInput(t testing.TB, dir string, counts ...int) *segment.Input {
	t.Helper()

	speakers := make(map[string]segment.SpeakerProfile, len(counts))
	for i := range counts {
		id := fmt.Sprintf("spk-%d", i+1)
		ref := filepath.Join(dir, id+".wav")
		WriteWAV(t, ref, 2400)
		speakers[id] = segment.SpeakerProfile{SpeakerID: id, ReferenceAudioPath: ref}
	}

	var segs []segment.Segment
	remaining := append([]int(nil), counts...)
	ordinal := 0
	for {
		progressed := false
		for i := range remaining {
			if remaining[i] == 0 {
				continue
			}
			remaining[i]--
			id := fmt.Sprintf("spk-%d", i+1)
			segs = append(segs, segment.Segment{
				SegmentID:    segment.DefaultSegmentID(ordinal),
				OrdinalIndex: ordinal,
				SpeakerID:    id,
				SourceText:   fmt.Sprintf("source line %d", ordinal),
				TargetText:   fmt.Sprintf("target line %d", ordinal),
			})
			ordinal++
			progressed = true
		}
		if !progressed {
			break
		}
	}

	return &segment.Input{Segments: segs, Speakers: speakers}
}

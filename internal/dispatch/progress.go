package dispatch

import (
	"sort"
	"sync"

	"revoice/internal/manifest"
)

// Failure summarizes one terminally failed segment for status displays.
type Failure struct {
	SegmentID string               `json:"segment_id"`
	SpeakerID string               `json:"speaker_id"`
	Kind      manifest.FailureKind `json:"kind"`
	Reason    string               `json:"reason"`
}

// Snapshot is a point-in-time view of a run. Completed counts terminal
// records of either outcome and never decreases across snapshots.
type Snapshot struct {
	Completed      int       `json:"completed"`
	Total          int       `json:"total"`
	ActiveSpeakers []string  `json:"active_speakers"`
	Failures       []Failure `json:"failures"`
}

// Percent returns completion as 0-100, or 0 for an empty run.
func (s Snapshot) Percent() float64 {
	if s.Total <= 0 {
		return 0
	}
	return float64(s.Completed) / float64(s.Total) * 100
}

// tracker accumulates run progress. It is created when a run starts and
// discarded with the coordinator; all methods are safe for concurrent use.
type tracker struct {
	mu        sync.RWMutex
	total     int
	completed int
	active    map[string]struct{}
	failures  []Failure
}

func newTracker(total int) *tracker {
	return &tracker{
		total:  total,
		active: make(map[string]struct{}),
	}
}

func (t *tracker) jobStarted(speakerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active[speakerID] = struct{}{}
}

func (t *tracker) jobFinished(speakerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.active, speakerID)
}

// record counts one terminal segment record. The caller guarantees each
// segment is recorded at most once.
func (t *tracker) record(rec manifest.Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completed++
	if !rec.Success {
		t.failures = append(t.failures, Failure{
			SegmentID: rec.SegmentID,
			SpeakerID: rec.SpeakerID,
			Kind:      rec.FailureKind,
			Reason:    rec.Reason,
		})
	}
}

func (t *tracker) snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	speakers := make([]string, 0, len(t.active))
	for id := range t.active {
		speakers = append(speakers, id)
	}
	sort.Strings(speakers)
	failures := make([]Failure, len(t.failures))
	copy(failures, t.failures)
	return Snapshot{
		Completed:      t.completed,
		Total:          t.total,
		ActiveSpeakers: speakers,
		Failures:       failures,
	}
}

package manifest

import (
	"log/slog"
	"sort"
	"sync"

	"revoice/internal/logging"
	"revoice/internal/segment"
)

// Assembler accumulates terminal records keyed by segment id. Multiple
// worker readers feed it concurrently; the first record for a segment wins
// and later arrivals are dropped with a log line so a misbehaving worker
// cannot break the one-record-per-segment guarantee.
type Assembler struct {
	mu       sync.Mutex
	logger   *slog.Logger
	expected map[string]segment.Segment
	order    []segment.Segment
	records  map[string]Record
}

// NewAssembler prepares an assembler for the given submitted segments.
func NewAssembler(segments []segment.Segment, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = logging.NewNop()
	}
	expected := make(map[string]segment.Segment, len(segments))
	order := make([]segment.Segment, len(segments))
	copy(order, segments)
	for _, seg := range segments {
		expected[seg.SegmentID] = seg
	}
	return &Assembler{
		logger:   logging.NewComponentLogger(logger, "assembler"),
		expected: expected,
		order:    order,
		records:  make(map[string]Record, len(segments)),
	}
}

// Add records a terminal outcome. It reports false when the record was
// dropped: either the segment id was never submitted or it already has an
// outcome.
func (a *Assembler) Add(rec Record) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.expected[rec.SegmentID]; !ok {
		a.logger.Warn("dropping record for unknown segment",
			logging.String(logging.FieldSegmentID, rec.SegmentID),
			logging.String(logging.FieldEventType, "record_unknown_segment"),
		)
		return false
	}
	if _, ok := a.records[rec.SegmentID]; ok {
		a.logger.Warn("dropping duplicate record",
			logging.String(logging.FieldSegmentID, rec.SegmentID),
			logging.String(logging.FieldEventType, "record_duplicate"),
		)
		return false
	}
	a.records[rec.SegmentID] = rec
	return true
}

// Has reports whether the segment already holds a terminal record.
func (a *Assembler) Has(segmentID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.records[segmentID]
	return ok
}

// Len returns the number of terminal records collected so far.
func (a *Assembler) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.records)
}

// Expected returns the number of submitted segments.
func (a *Assembler) Expected() int {
	return len(a.order)
}

// Complete reports whether every submitted segment has a terminal record.
func (a *Assembler) Complete() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.records) == len(a.order)
}

// Finalize projects the collected records into an ordinal-ordered manifest.
// Segments without a terminal record are filled in as unresolved failures so
// the manifest always accounts for every submitted segment exactly once.
func (a *Assembler) Finalize(runID string) Manifest {
	a.mu.Lock()
	defer a.mu.Unlock()

	records := make([]Record, 0, len(a.order))
	for _, seg := range a.order {
		rec, ok := a.records[seg.SegmentID]
		if !ok {
			rec = Failed(seg, FailureUnresolved, "no terminal result at finalize")
			a.records[seg.SegmentID] = rec
			a.logger.Warn("segment unresolved at finalize",
				logging.String(logging.FieldSegmentID, seg.SegmentID),
				logging.String(logging.FieldSpeakerID, seg.SpeakerID),
				logging.String(logging.FieldEventType, "record_unresolved"),
			)
		}
		records = append(records, rec)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].OrdinalIndex < records[j].OrdinalIndex
	})
	return New(runID, records)
}

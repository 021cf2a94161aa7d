package plan

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"revoice/internal/logging"
	"revoice/internal/manifest"
	"revoice/internal/segment"
)

// Job is the complete ordered set of segments for one speaker, dispatched as
// a unit to one worker. Segments keep their original ordinal order.
type Job struct {
	JobID     string
	SpeakerID string
	Reference string
	Segments  []segment.Segment
}

// SegmentCount returns how many segments the job carries.
func (j Job) SegmentCount() int {
	return len(j.Segments)
}

// Plan is the dispatchable shape of one run: per-speaker jobs in speaker
// first-appearance order plus the validation failures recorded for segments
// that never reach a worker.
type Plan struct {
	Jobs     []Job
	Rejected []manifest.Record
}

// TotalSegments counts every segment the plan accounts for, dispatched or
// rejected.
func (p Plan) TotalSegments() int {
	total := len(p.Rejected)
	for _, job := range p.Jobs {
		total += len(job.Segments)
	}
	return total
}

// Build groups the input segments into per-speaker jobs. Grouping is stable:
// jobs appear in the order their speaker first occurs, and segments keep
// their ordinal order within each job. Segments with an empty target text or
// an unknown speaker are excluded from their job and recorded as validation
// failures so the final manifest still accounts for them.
func Build(input *segment.Input, logger *slog.Logger) Plan {
	if logger == nil {
		logger = logging.NewNop()
	}
	log := logging.NewComponentLogger(logger, "plan")

	var (
		rejected []manifest.Record
		order    []string
		grouped  = make(map[string][]segment.Segment)
	)
	for _, seg := range input.Segments {
		if strings.TrimSpace(seg.TargetText) == "" {
			rejected = append(rejected, manifest.Failed(seg, manifest.FailureValidation, "empty target text"))
			log.Warn("segment rejected",
				logging.String(logging.FieldSegmentID, seg.SegmentID),
				logging.String("reason", "empty target text"),
				logging.String(logging.FieldEventType, "segment_rejected"),
			)
			continue
		}
		if _, ok := input.SpeakerFor(seg.SpeakerID); !ok {
			rejected = append(rejected, manifest.Failed(seg, manifest.FailureValidation,
				fmt.Sprintf("no speaker profile for %q", seg.SpeakerID)))
			log.Warn("segment rejected",
				logging.String(logging.FieldSegmentID, seg.SegmentID),
				logging.String(logging.FieldSpeakerID, seg.SpeakerID),
				logging.String("reason", "unknown speaker"),
				logging.String(logging.FieldEventType, "segment_rejected"),
			)
			continue
		}
		if _, seen := grouped[seg.SpeakerID]; !seen {
			order = append(order, seg.SpeakerID)
		}
		grouped[seg.SpeakerID] = append(grouped[seg.SpeakerID], seg)
	}

	jobs := make([]Job, 0, len(order))
	for _, speakerID := range order {
		profile, _ := input.SpeakerFor(speakerID)
		jobs = append(jobs, Job{
			JobID:     uuid.NewString(),
			SpeakerID: speakerID,
			Reference: profile.ReferenceAudioPath,
			Segments:  grouped[speakerID],
		})
	}
	log.Info("plan built",
		logging.Int("jobs", len(jobs)),
		logging.Int("segments", len(input.Segments)),
		logging.Int("rejected", len(rejected)),
	)
	return Plan{Jobs: jobs, Rejected: rejected}
}

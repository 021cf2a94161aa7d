package manifest

import (
	"errors"
	"time"

	"revoice/internal/segment"
	"revoice/internal/services"
)

// FailureKind classifies why a segment has no synthesized artifact.
type FailureKind string

const (
	// FailureValidation marks segments rejected before dispatch.
	FailureValidation FailureKind = "validation"
	// FailureSynthesis marks per-segment errors reported by a live worker.
	FailureSynthesis FailureKind = "synthesis"
	// FailureTimeout marks segments abandoned when a job watchdog expired.
	FailureTimeout FailureKind = "timeout"
	// FailureCrash marks segments lost to a worker process death.
	FailureCrash FailureKind = "crash"
	// FailureProtocol marks segments whose worker replies could not be used.
	FailureProtocol FailureKind = "protocol"
	// FailureCancelled marks segments abandoned by run cancellation.
	FailureCancelled FailureKind = "cancelled"
	// FailureUnresolved marks segments with no terminal outcome at finalize.
	FailureUnresolved FailureKind = "unresolved"
)

// ParseFailureKind validates a stored failure kind.
func ParseFailureKind(value string) (FailureKind, error) {
	switch FailureKind(value) {
	case FailureValidation, FailureSynthesis, FailureTimeout, FailureCrash, FailureProtocol, FailureCancelled, FailureUnresolved:
		return FailureKind(value), nil
	default:
		return "", errors.New("unknown failure kind: " + value)
	}
}

// KindFromError maps a classified coordinator error to the failure kind its
// affected segments carry in the manifest.
func KindFromError(err error) FailureKind {
	switch {
	case errors.Is(err, services.ErrValidation):
		return FailureValidation
	case errors.Is(err, services.ErrTimeout):
		return FailureTimeout
	case errors.Is(err, services.ErrCancelled):
		return FailureCancelled
	case errors.Is(err, services.ErrCrash), errors.Is(err, services.ErrSpawn):
		return FailureCrash
	case errors.Is(err, services.ErrSynthesis):
		return FailureSynthesis
	default:
		return FailureCrash
	}
}

// Record is the terminal outcome for one segment.
type Record struct {
	SegmentID    string      `json:"segment_id"`
	OrdinalIndex int         `json:"ordinal_index"`
	SpeakerID    string      `json:"speaker_id"`
	Success      bool        `json:"success"`
	AudioPath    string      `json:"audio_path,omitempty"`
	FailureKind  FailureKind `json:"failure_kind,omitempty"`
	Reason       string      `json:"reason,omitempty"`
	Elapsed      int64       `json:"elapsed_ms,omitempty"`
}

// Succeeded builds a success record for a synthesized segment.
func Succeeded(seg segment.Segment, audioPath string, elapsed time.Duration) Record {
	return Record{
		SegmentID:    seg.SegmentID,
		OrdinalIndex: seg.OrdinalIndex,
		SpeakerID:    seg.SpeakerID,
		Success:      true,
		AudioPath:    audioPath,
		Elapsed:      elapsed.Milliseconds(),
	}
}

// Failed builds a failure record for a segment that produced no artifact.
func Failed(seg segment.Segment, kind FailureKind, reason string) Record {
	return Record{
		SegmentID:    seg.SegmentID,
		OrdinalIndex: seg.OrdinalIndex,
		SpeakerID:    seg.SpeakerID,
		Success:      false,
		FailureKind:  kind,
		Reason:       reason,
	}
}

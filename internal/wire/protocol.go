package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Sentinel is the end-of-work line that closes a worker's task stream.
const Sentinel = "__end_of_work__"

// Result statuses a worker may report.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Task is one synthesis assignment, written to a worker's stdin as a single
// JSON line.
type Task struct {
	JobID              string `json:"job_id"`
	SegmentID          string `json:"segment_id"`
	SpeakerID          string `json:"speaker_id"`
	ReferenceAudioPath string `json:"reference_audio_path"`
	TargetText         string `json:"target_text"`
}

// Result is one synthesis outcome, read from a worker's stdout as a single
// JSON line.
type Result struct {
	SegmentID string `json:"segment_id"`
	Status    string `json:"status"`
	AudioPath string `json:"audio_path,omitempty"`
	Reason    string `json:"reason,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

// OK reports whether the worker produced an artifact for this segment.
func (r Result) OK() bool {
	return r.Status == StatusOK
}

// WriteTask emits one task line to the worker's input channel.
func WriteTask(w io.Writer, task Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", task.SegmentID, err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write task %s: %w", task.SegmentID, err)
	}
	return nil
}

// WriteSentinel emits the end-of-work line to the worker's input channel.
func WriteSentinel(w io.Writer) error {
	if _, err := io.WriteString(w, Sentinel+"\n"); err != nil {
		return fmt.Errorf("write sentinel: %w", err)
	}
	return nil
}

// IsSentinel reports whether a raw input line is the end-of-work marker.
func IsSentinel(line []byte) bool {
	return string(bytes.TrimSpace(line)) == Sentinel
}

// ParseResult decodes one worker stdout line. A non-nil error means the line
// violates the protocol and should be discarded after logging; the worker
// itself stays usable.
func ParseResult(line []byte) (Result, error) {
	var result Result
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return result, errors.New("empty result line")
	}
	if err := json.Unmarshal(trimmed, &result); err != nil {
		return result, fmt.Errorf("decode result line: %w", err)
	}
	if strings.TrimSpace(result.SegmentID) == "" {
		return result, errors.New("result missing segment_id")
	}
	switch result.Status {
	case StatusOK:
		if strings.TrimSpace(result.AudioPath) == "" {
			return result, fmt.Errorf("ok result for %s missing audio_path", result.SegmentID)
		}
	case StatusError:
	default:
		return result, fmt.Errorf("result for %s has unknown status %q", result.SegmentID, result.Status)
	}
	return result, nil
}

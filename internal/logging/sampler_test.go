package logging_test

import (
	"testing"

	"revoice/internal/logging"
)

func TestProgressSamplerEmitsOnBucketChange(t *testing.T) {
	sampler := logging.NewProgressSampler(10)

	if !sampler.ShouldLog(0, "synthesizing") {
		t.Fatal("first event should emit")
	}
	if sampler.ShouldLog(3, "synthesizing") {
		t.Fatal("same bucket should be suppressed")
	}
	if !sampler.ShouldLog(12, "synthesizing") {
		t.Fatal("bucket crossing should emit")
	}
	if sampler.ShouldLog(14, "synthesizing") {
		t.Fatal("same bucket should be suppressed after crossing")
	}
	if !sampler.ShouldLog(100, "synthesizing") {
		t.Fatal("completion should emit")
	}
}

func TestProgressSamplerEmitsOnPhaseChange(t *testing.T) {
	sampler := logging.NewProgressSampler(5)

	if !sampler.ShouldLog(50, "synthesizing") {
		t.Fatal("first event should emit")
	}
	if !sampler.ShouldLog(50, "publishing") {
		t.Fatal("phase change should emit even in the same bucket")
	}
}

func TestProgressSamplerReset(t *testing.T) {
	sampler := logging.NewProgressSampler(5)
	sampler.ShouldLog(50, "synthesizing")
	sampler.Reset()
	if !sampler.ShouldLog(50, "synthesizing") {
		t.Fatal("reset should clear suppression state")
	}
}

func TestProgressSamplerNilSafe(t *testing.T) {
	var sampler *logging.ProgressSampler
	if !sampler.ShouldLog(10, "anything") {
		t.Fatal("nil sampler should always emit")
	}
	sampler.Reset()
}

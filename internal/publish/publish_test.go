package publish_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"revoice/internal/logging"
	"revoice/internal/manifest"
	"revoice/internal/publish"
	"revoice/internal/segment"
	"revoice/internal/testsupport"
)

func stagedRecord(t *testing.T, stagingDir string, ordinal int, speakerID string) manifest.Record {
	t.Helper()
	seg := segment.Segment{
		SegmentID:    segment.DefaultSegmentID(ordinal),
		OrdinalIndex: ordinal,
		SpeakerID:    speakerID,
		TargetText:   "target",
	}
	path := filepath.Join(stagingDir, seg.SegmentID+".wav")
	testsupport.WriteWAV(t, path, 1200)
	return manifest.Succeeded(seg, path, 2*time.Second)
}

func TestPublishCopiesArtifactsAndWritesManifest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	records := []manifest.Record{
		stagedRecord(t, cfg.Paths.StagingDir, 0, "spk-1"),
		manifest.Failed(segment.Segment{
			SegmentID:    segment.DefaultSegmentID(1),
			OrdinalIndex: 1,
			SpeakerID:    "spk-2",
		}, manifest.FailureCrash, "worker crashed"),
		stagedRecord(t, cfg.Paths.StagingDir, 2, "spk-1"),
	}
	m := manifest.New("run-1", records)
	staged := []string{records[0].AudioPath, records[2].AudioPath}

	pub := publish.New(cfg, logging.NewNop())
	res, err := pub.Publish(context.Background(), m)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if res.Published != 2 {
		t.Fatalf("published = %d, want 2", res.Published)
	}

	wantDir := filepath.Join(cfg.Paths.OutputDir, "run-1")
	if res.OutputDir != wantDir {
		t.Fatalf("output dir = %q, want %q", res.OutputDir, wantDir)
	}
	for _, name := range []string{"0000_seg-0000.wav", "0002_seg-0002.wav"} {
		if _, err := os.Stat(filepath.Join(wantDir, name)); err != nil {
			t.Fatalf("published artifact missing: %v", err)
		}
	}

	data, err := os.ReadFile(res.ManifestPath)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var decoded manifest.Manifest
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if len(decoded.Records) != 3 {
		t.Fatalf("manifest has %d records, want 3", len(decoded.Records))
	}
	if decoded.Records[0].AudioPath != filepath.Join(wantDir, "0000_seg-0000.wav") {
		t.Fatalf("manifest kept staging path: %q", decoded.Records[0].AudioPath)
	}
	if decoded.Records[1].AudioPath != "" || decoded.Records[1].FailureKind != manifest.FailureCrash {
		t.Fatalf("failed record altered: %#v", decoded.Records[1])
	}

	for _, src := range staged {
		if _, err := os.Stat(src); !os.IsNotExist(err) {
			t.Fatalf("staged artifact %s should have been removed", src)
		}
	}
}

func TestPublishFailsOnMissingArtifact(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rec := manifest.Succeeded(segment.Segment{
		SegmentID:    segment.DefaultSegmentID(0),
		OrdinalIndex: 0,
		SpeakerID:    "spk-1",
	}, filepath.Join(cfg.Paths.StagingDir, "gone.wav"), time.Second)
	m := manifest.New("run-1", []manifest.Record{rec})

	pub := publish.New(cfg, logging.NewNop())
	if _, err := pub.Publish(context.Background(), m); err == nil {
		t.Fatal("expected error for missing staged artifact")
	}
}

func TestPublishEmptyRunStillWritesManifest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	m := manifest.New("run-empty", nil)

	pub := publish.New(cfg, logging.NewNop())
	res, err := pub.Publish(context.Background(), m)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if res.Published != 0 {
		t.Fatalf("published = %d, want 0", res.Published)
	}
	if _, err := os.Stat(res.ManifestPath); err != nil {
		t.Fatalf("manifest missing: %v", err)
	}
}

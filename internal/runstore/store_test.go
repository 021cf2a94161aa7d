package runstore_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"revoice/internal/manifest"
	"revoice/internal/runstore"
	"revoice/internal/segment"
	"revoice/internal/testsupport"
)

func seg(ordinal int, speakerID string) segment.Segment {
	return segment.Segment{
		SegmentID:    segment.DefaultSegmentID(ordinal),
		OrdinalIndex: ordinal,
		SpeakerID:    speakerID,
		SourceText:   "source",
		TargetText:   "target",
	}
}

func TestOpenInitializesSchemaAndRoundTripsRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	run, err := store.BeginRun(ctx, "run-1", 12, "xtts_v2", "de")
	if err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	if run.Status != runstore.StatusRunning {
		t.Fatalf("status = %s, want %s", run.Status, runstore.StatusRunning)
	}
	if run.TotalSegments != 12 || run.ModelID != "xtts_v2" || run.TargetLanguage != "de" {
		t.Fatalf("unexpected run fields: %#v", run)
	}
	if run.StartedAt.IsZero() || run.FinishedAt != nil {
		t.Fatalf("unexpected run timestamps: %#v", run)
	}
	if run.Terminal() {
		t.Fatal("running run should not be terminal")
	}

	missing, err := store.GetRun(ctx, "no-such-run")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown run, got %#v", missing)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	db, err := sql.Open("sqlite", cfg.Paths.DatabasePath)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump schema version: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close raw db: %v", err)
	}

	if _, err := runstore.Open(cfg); !errors.Is(err, runstore.ErrSchemaMismatch) {
		t.Fatalf("open error = %v, want schema mismatch", err)
	}
}

func TestRecordResultFirstWins(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := store.BeginRun(ctx, "run-1", 1, "xtts_v2", "de"); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	first := manifest.Succeeded(seg(0, "spk-1"), "/staging/seg-0000.wav", 1500*time.Millisecond)
	if err := store.RecordResult(ctx, "run-1", first); err != nil {
		t.Fatalf("RecordResult failed: %v", err)
	}
	late := manifest.Failed(seg(0, "spk-1"), manifest.FailureTimeout, "late duplicate")
	if err := store.RecordResult(ctx, "run-1", late); err != nil {
		t.Fatalf("duplicate RecordResult failed: %v", err)
	}

	records, err := store.SegmentResults(ctx, "run-1")
	if err != nil {
		t.Fatalf("SegmentResults failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	got := records[0]
	if !got.Success || got.AudioPath != "/staging/seg-0000.wav" || got.Elapsed != 1500 {
		t.Fatalf("first record lost: %#v", got)
	}
}

func TestFinishRunComputesCounts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := store.BeginRun(ctx, "run-1", 3, "xtts_v2", "de"); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	results := []manifest.Record{
		manifest.Succeeded(seg(0, "spk-1"), "/out/seg-0000.wav", time.Second),
		manifest.Failed(seg(1, "spk-2"), manifest.FailureCrash, "worker crashed"),
		manifest.Succeeded(seg(2, "spk-1"), "/out/seg-0002.wav", time.Second),
	}
	for _, rec := range results {
		if err := store.RecordResult(ctx, "run-1", rec); err != nil {
			t.Fatalf("RecordResult failed: %v", err)
		}
	}

	if err := store.FinishRun(ctx, "run-1", runstore.StatusCompleted, "/out/manifest.json", ""); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	run, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Status != runstore.StatusCompleted {
		t.Fatalf("status = %s, want completed", run.Status)
	}
	if run.Succeeded != 2 || run.Failed != 1 {
		t.Fatalf("counts = %d/%d, want 2/1", run.Succeeded, run.Failed)
	}
	if run.ManifestPath != "/out/manifest.json" {
		t.Fatalf("manifest path = %q", run.ManifestPath)
	}
	if run.FinishedAt == nil || !run.Terminal() {
		t.Fatalf("run should be terminal: %#v", run)
	}

	if err := store.FinishRun(ctx, "missing", runstore.StatusFailed, "", "boom"); err == nil {
		t.Fatal("FinishRun for unknown run should fail")
	}
}

func TestSegmentResultsKeepOrdinalOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := store.BeginRun(ctx, "run-1", 3, "xtts_v2", "de"); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	for _, ordinal := range []int{2, 0, 1} {
		rec := manifest.Succeeded(seg(ordinal, "spk-1"), "/out/a.wav", time.Second)
		if err := store.RecordResult(ctx, "run-1", rec); err != nil {
			t.Fatalf("RecordResult failed: %v", err)
		}
	}

	records, err := store.SegmentResults(ctx, "run-1")
	if err != nil {
		t.Fatalf("SegmentResults failed: %v", err)
	}
	for i, rec := range records {
		if rec.OrdinalIndex != i {
			t.Fatalf("record %d has ordinal %d", i, rec.OrdinalIndex)
		}
	}

	succeeded, failed, err := store.CountResults(ctx, "run-1")
	if err != nil {
		t.Fatalf("CountResults failed: %v", err)
	}
	if succeeded != 3 || failed != 0 {
		t.Fatalf("live counts = %d/%d, want 3/0", succeeded, failed)
	}
}

func TestReplaceResultsSwapsStoredPaths(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := store.BeginRun(ctx, "run-1", 1, "xtts_v2", "de"); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	staged := manifest.Succeeded(seg(0, "spk-1"), "/staging/seg-0000.wav", time.Second)
	if err := store.RecordResult(ctx, "run-1", staged); err != nil {
		t.Fatalf("RecordResult failed: %v", err)
	}

	published := staged
	published.AudioPath = "/output/run-1/0000_seg-0000.wav"
	if err := store.ReplaceResults(ctx, "run-1", []manifest.Record{published}); err != nil {
		t.Fatalf("ReplaceResults failed: %v", err)
	}

	records, err := store.SegmentResults(ctx, "run-1")
	if err != nil {
		t.Fatalf("SegmentResults failed: %v", err)
	}
	if len(records) != 1 || records[0].AudioPath != published.AudioPath {
		t.Fatalf("unexpected records after replace: %#v", records)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	for _, id := range []string{"run-old", "run-mid", "run-new"} {
		if _, err := store.BeginRun(ctx, id, 1, "xtts_v2", "de"); err != nil {
			t.Fatalf("BeginRun %s failed: %v", id, err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	runs, err := store.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 3 || runs[0].RunID != "run-new" || runs[2].RunID != "run-old" {
		t.Fatalf("unexpected run order: %#v", runs)
	}

	limited, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns with limit failed: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("got %d runs, want 2", len(limited))
	}

	latest, err := store.LatestRun(ctx)
	if err != nil {
		t.Fatalf("LatestRun failed: %v", err)
	}
	if latest == nil || latest.RunID != "run-new" {
		t.Fatalf("latest = %#v, want run-new", latest)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[runstore.StatusRunning] != 3 {
		t.Fatalf("stats = %#v, want 3 running", stats)
	}
}

func TestDeleteRunCascadesToResults(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := store.BeginRun(ctx, "run-1", 1, "xtts_v2", "de"); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	rec := manifest.Succeeded(seg(0, "spk-1"), "/out/a.wav", time.Second)
	if err := store.RecordResult(ctx, "run-1", rec); err != nil {
		t.Fatalf("RecordResult failed: %v", err)
	}

	deleted, err := store.DeleteRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}
	if !deleted {
		t.Fatal("expected run to be deleted")
	}
	records, err := store.SegmentResults(ctx, "run-1")
	if err != nil {
		t.Fatalf("SegmentResults failed: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("results survived delete: %#v", records)
	}

	again, err := store.DeleteRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("second DeleteRun failed: %v", err)
	}
	if again {
		t.Fatal("second delete should report nothing removed")
	}
}

func TestClearTerminalKeepsRunningRuns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	for _, id := range []string{"run-done", "run-live"} {
		if _, err := store.BeginRun(ctx, id, 1, "xtts_v2", "de"); err != nil {
			t.Fatalf("BeginRun %s failed: %v", id, err)
		}
	}
	if err := store.FinishRun(ctx, "run-done", runstore.StatusCompleted, "", ""); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	removed, err := store.ClearTerminal(ctx)
	if err != nil {
		t.Fatalf("ClearTerminal failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed %d runs, want 1", removed)
	}
	live, err := store.GetRun(ctx, "run-live")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if live == nil {
		t.Fatal("running run should have survived ClearTerminal")
	}

	removed, err = store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("Clear removed %d runs, want 1", removed)
	}
}

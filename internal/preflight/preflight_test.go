package preflight

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"revoice/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckWorkerLauncher_EmbeddedWithUVX(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("uvx"))

	result := CheckWorkerLauncher(cfg)
	if !result.Passed {
		t.Fatalf("expected pass with stubbed uvx, got: %s", result.Detail)
	}
}

func TestCheckWorkerLauncher_EmbeddedMissingUVX(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	t.Setenv("PATH", t.TempDir())

	result := CheckWorkerLauncher(cfg)
	if result.Passed {
		t.Fatal("expected failure without uvx on PATH")
	}
	if !strings.Contains(result.Detail, "install uv") {
		t.Fatalf("expected install hint in detail, got: %s", result.Detail)
	}
}

func TestCheckWorkerLauncher_CustomCommand(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithStubbedBinaries("my-worker"),
		testsupport.WithWorkerCommand("my-worker --device cpu"),
	)

	result := CheckWorkerLauncher(cfg)
	if !result.Passed {
		t.Fatalf("expected pass for stubbed custom worker, got: %s", result.Detail)
	}
}

func TestCheckWorkerLauncher_UnparseableCommand(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkerCommand(`broken "quote`))

	result := CheckWorkerLauncher(cfg)
	if result.Passed {
		t.Fatal("expected failure for unparseable command")
	}
	if !strings.Contains(result.Detail, "launch command invalid") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_HealthyConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("uvx"))

	results := RunAll(cfg)
	// staging + output + log + database dir + worker launcher
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
	if !AllPassed(results) {
		t.Fatal("expected AllPassed for healthy config")
	}
	if failed := FailedChecks(results); failed != nil {
		t.Fatalf("expected no failed checks, got %v", failed)
	}
}

func TestRunAll_ReportsMissingDirectory(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("uvx"))
	if err := os.RemoveAll(cfg.Paths.OutputDir); err != nil {
		t.Fatal(err)
	}

	results := RunAll(cfg)
	if AllPassed(results) {
		t.Fatal("expected a failing check after removing the output directory")
	}
	failed := FailedChecks(results)
	if len(failed) != 1 || failed[0].Name != "Output directory" {
		t.Fatalf("expected only the output directory to fail, got %v", failed)
	}
}

func TestCheckSystemDeps_EmbeddedWorker(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("uvx"))

	statuses := CheckSystemDeps(cfg)
	if len(statuses) != 1 {
		t.Fatalf("expected 1 status, got %d", len(statuses))
	}
	if statuses[0].Command != "uvx" || !statuses[0].Available {
		t.Fatalf("unexpected status: %#v", statuses[0])
	}
}

func TestCheckSystemDeps_CUDAIncludesDriverProbe(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("uvx"))
	cfg.Synthesis.Device = "cuda"

	statuses := CheckSystemDeps(cfg)
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[1].Name != "nvidia-smi" || !statuses[1].Optional {
		t.Fatalf("expected optional nvidia-smi probe, got %#v", statuses[1])
	}
}

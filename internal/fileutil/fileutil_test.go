package fileutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"revoice/internal/fileutil"
)

func TestCopyVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.wav")
	dst := filepath.Join(dir, "published", "dst.wav")

	payload := []byte("RIFF fake audio payload")
	if err := os.WriteFile(src, payload, 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	if err := fileutil.CopyVerified(src, dst); err != nil {
		t.Fatalf("CopyVerified returned error: %v", err)
	}

	copied, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read destination: %v", err)
	}
	if string(copied) != string(payload) {
		t.Fatalf("destination mismatch: %q", copied)
	}
}

func TestCopyVerifiedMissingSource(t *testing.T) {
	dir := t.TempDir()
	err := fileutil.CopyVerified(filepath.Join(dir, "absent.wav"), filepath.Join(dir, "out.wav"))
	if err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "manifest.json")

	if err := fileutil.WriteAtomic(path, []byte(`{"records":[]}`), 0o644); err != nil {
		t.Fatalf("WriteAtomic returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != `{"records":[]}` {
		t.Fatalf("unexpected content: %q", data)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected no leftover temp files, got %d entries", len(entries))
	}

	// Overwrite must also succeed.
	if err := fileutil.WriteAtomic(path, []byte(`{}`), 0o644); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
}

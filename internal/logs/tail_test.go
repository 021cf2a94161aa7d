package logs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func writeLines(t *testing.T, path string, lines string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(lines), 0o644); err != nil {
		t.Fatalf("write log file: %v", err)
	}
}

func TestTailLastMissingFile(t *testing.T) {
	lines, offset, err := TailLast(filepath.Join(t.TempDir(), "absent.log"), 10)
	if err != nil {
		t.Fatalf("TailLast: %v", err)
	}
	if lines != nil || offset != 0 {
		t.Fatalf("expected empty result, got %v offset %d", lines, offset)
	}
}

func TestTailLastReturnsFinalLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	writeLines(t, path, "one\ntwo\nthree\nfour\n")

	lines, offset, err := TailLast(path, 2)
	if err != nil {
		t.Fatalf("TailLast: %v", err)
	}
	if len(lines) != 2 || lines[0] != "three" || lines[1] != "four" {
		t.Fatalf("unexpected lines: %v", lines)
	}
	if offset != int64(len("one\ntwo\nthree\nfour\n")) {
		t.Fatalf("unexpected offset: %d", offset)
	}
}

func TestTailLastFewerLinesThanLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	writeLines(t, path, "only\n")

	lines, _, err := TailLast(path, 10)
	if err != nil {
		t.Fatalf("TailLast: %v", err)
	}
	if len(lines) != 1 || lines[0] != "only" {
		t.Fatalf("unexpected lines: %v", lines)
	}
}

func TestTailLastZeroLimitSeeksToEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	writeLines(t, path, "one\ntwo\n")

	lines, offset, err := TailLast(path, 0)
	if err != nil {
		t.Fatalf("TailLast: %v", err)
	}
	if lines != nil {
		t.Fatalf("expected no lines, got %v", lines)
	}
	if offset != int64(len("one\ntwo\n")) {
		t.Fatalf("unexpected offset: %d", offset)
	}
}

func TestReadFromPicksUpAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	writeLines(t, path, "first\n")

	_, offset, err := ReadFrom(path, 0)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	if _, err := file.WriteString("second\nthird\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	file.Close()

	lines, _, err := ReadFrom(path, offset)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if len(lines) != 2 || lines[0] != "second" || lines[1] != "third" {
		t.Fatalf("unexpected lines: %v", lines)
	}
}

func TestReadFromRestartsWhenFileReplaced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	writeLines(t, path, "a much longer original line\n")

	_, offset, err := ReadFrom(path, 0)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}

	writeLines(t, path, "new\n")

	lines, _, err := ReadFrom(path, offset)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if len(lines) != 1 || lines[0] != "new" {
		t.Fatalf("expected restart from beginning, got %v", lines)
	}
}

func TestFollowEmitsUntilCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	writeLines(t, path, "start\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []string
	done := make(chan error, 1)
	go func() {
		done <- Follow(ctx, path, 0, 10*time.Millisecond, func(line string) {
			mu.Lock()
			got = append(got, line)
			if line == "stop" {
				cancel()
			}
			mu.Unlock()
		})
	}()

	time.Sleep(30 * time.Millisecond)
	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	if _, err := file.WriteString("stop\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	file.Close()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not stop after cancellation")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) < 2 || got[0] != "start" || got[len(got)-1] != "stop" {
		t.Fatalf("unexpected lines: %v", got)
	}
}

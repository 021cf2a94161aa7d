package worker

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"revoice/internal/testsupport"
)

func TestNewLauncherParsesWorkerCommand(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithWorkerCommand(`python3 -u "/opt/voice worker/run.py" --fast`),
	)
	launcher, err := NewLauncher(cfg)
	if err != nil {
		t.Fatalf("NewLauncher: %v", err)
	}
	want := []string{"python3", "-u", "/opt/voice worker/run.py", "--fast"}
	if !reflect.DeepEqual(launcher.command, want) {
		t.Fatalf("command = %v, want %v", launcher.command, want)
	}
	if launcher.Binary() != "python3" {
		t.Fatalf("Binary() = %q", launcher.Binary())
	}
}

func TestNewLauncherRejectsUnparseableCommand(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkerCommand(`python3 "unterminated`))
	if _, err := NewLauncher(cfg); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestNewLauncherEmbeddedWorker(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	launcher, err := NewLauncher(cfg)
	if err != nil {
		t.Fatalf("NewLauncher: %v", err)
	}

	scriptPath := filepath.Join(cfg.Paths.StagingDir, "revoice_worker.py")
	data, err := os.ReadFile(scriptPath)
	if err != nil {
		t.Fatalf("embedded script not materialized: %v", err)
	}
	if !strings.Contains(string(data), "__end_of_work__") {
		t.Fatal("embedded script missing sentinel handling")
	}

	if launcher.Binary() != UVXCommand {
		t.Fatalf("Binary() = %q, want %q", launcher.Binary(), UVXCommand)
	}
	joined := strings.Join(launcher.command, " ")
	if !strings.Contains(joined, "--with coqui-tts") {
		t.Fatalf("embedded command missing tts package: %v", launcher.command)
	}
	if strings.Contains(joined, "--index-url") {
		t.Fatalf("cpu launch should not pin an index url: %v", launcher.command)
	}
}

func TestNewLauncherEmbeddedWorkerCUDA(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Synthesis.Device = "cuda"
	launcher, err := NewLauncher(cfg)
	if err != nil {
		t.Fatalf("NewLauncher: %v", err)
	}
	joined := strings.Join(launcher.command, " ")
	if !strings.Contains(joined, "--index-url") || !strings.Contains(joined, "--extra-index-url") {
		t.Fatalf("cuda launch missing torch index urls: %v", launcher.command)
	}
}

func TestLauncherCommandEnvironment(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Synthesis.ModelID = "tts_models/test/model"
	cfg.Synthesis.TargetLanguage = "de"
	launcher, err := NewLauncher(cfg)
	if err != nil {
		t.Fatalf("NewLauncher: %v", err)
	}

	cmd := launcher.Command(context.Background())
	env := strings.Join(cmd.Env, "\n")
	for _, want := range []string{
		"REVOICE_MODEL_ID=tts_models/test/model",
		"REVOICE_TARGET_LANGUAGE=de",
		"REVOICE_DEVICE=cpu",
		"REVOICE_SAMPLE_RATE=24000",
		"REVOICE_STAGING_DIR=" + cfg.Paths.StagingDir,
	} {
		if !strings.Contains(env, want) {
			t.Fatalf("command env missing %q", want)
		}
	}
}

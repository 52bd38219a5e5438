package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/YoungRaeKimm/CS492-project/pkg/launcher"

	"github.com/sirupsen/logrus"
)

func writeTrainerScript(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "trainer.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestOrchestrator(t *testing.T, scriptBody string) (*Orchestrator, string) {
	t.Helper()
	workDir := t.TempDir()
	script := writeTrainerScript(t, workDir, scriptBody)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := fmt.Sprintf(`
trainer:
  python_bin: /bin/sh
  script: %s
  work_dir: %s
  clean_cache: true
`, script, workDir)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	orch, err := NewOrchestrator(configPath)
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}
	return orch, workDir
}

func TestRunExperimentSuccess(t *testing.T) {
	orch, _ := newTestOrchestrator(t, "exit 0")

	result, err := orch.RunExperiment(RunOptions{Config: launcher.DefaultConfiguration()})
	if err != nil {
		t.Fatalf("RunExperiment() error = %v", err)
	}

	if !result.Success {
		t.Error("result.Success = false, want true")
	}
	if result.ExitCode != 0 {
		t.Errorf("result.ExitCode = %d, want 0", result.ExitCode)
	}
	if result.Duration <= 0 {
		t.Errorf("result.Duration = %v, want > 0", result.Duration)
	}
	if len(result.Args) != 20 {
		t.Errorf("len(result.Args) = %d, want 20", len(result.Args))
	}
}

func TestRunExperimentPropagatesFailure(t *testing.T) {
	orch, _ := newTestOrchestrator(t, "exit 1")

	result, err := orch.RunExperiment(RunOptions{Config: launcher.DefaultConfiguration()})
	if err != nil {
		t.Fatalf("RunExperiment() error = %v", err)
	}

	if result.Success {
		t.Error("result.Success = true, want false")
	}
	if result.ExitCode != 1 {
		t.Errorf("result.ExitCode = %d, want 1", result.ExitCode)
	}
	if len(result.Errors) == 0 {
		t.Error("result.Errors should record the trainer failure")
	}
}

func TestRunExperimentCleansWorkspace(t *testing.T) {
	orch, workDir := newTestOrchestrator(t, "exit 0")

	stale := filepath.Join(workDir, "stale.pyc")
	if err := os.WriteFile(stale, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := orch.RunExperiment(RunOptions{Config: launcher.DefaultConfiguration()}); err != nil {
		t.Fatalf("RunExperiment() error = %v", err)
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale cache file should have been removed before launch")
	}
}

func TestRunExperimentCleanupFailureIsNonFatal(t *testing.T) {
	orch, workDir := newTestOrchestrator(t, "touch launched.txt")

	orig := cleanWorkspace
	cleanWorkspace = func(dir string, verbose bool) (int, error) {
		return 0, fmt.Errorf("simulated cleanup failure")
	}
	t.Cleanup(func() { cleanWorkspace = orig })

	result, err := orch.RunExperiment(RunOptions{Config: launcher.DefaultConfiguration()})
	if err != nil {
		t.Fatalf("RunExperiment() error = %v", err)
	}
	if !result.Success {
		t.Error("run should succeed despite cleanup failure")
	}

	if _, err := os.Stat(filepath.Join(workDir, "launched.txt")); err != nil {
		t.Errorf("trainer was not launched after cleanup failure: %v", err)
	}
}

func TestRunExperimentSkipClean(t *testing.T) {
	orch, workDir := newTestOrchestrator(t, "exit 0")

	stale := filepath.Join(workDir, "stale.pyc")
	if err := os.WriteFile(stale, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := orch.RunExperiment(RunOptions{Config: launcher.DefaultConfiguration(), SkipClean: true}); err != nil {
		t.Fatalf("RunExperiment() error = %v", err)
	}

	if _, err := os.Stat(stale); err != nil {
		t.Error("cache file should survive when cleanup is skipped")
	}
}

func TestRunExperimentDryRun(t *testing.T) {
	orch, workDir := newTestOrchestrator(t, "touch launched.txt")

	result, err := orch.RunExperiment(RunOptions{Config: launcher.DefaultConfiguration(), DryRun: true})
	if err != nil {
		t.Fatalf("RunExperiment() error = %v", err)
	}
	if len(result.Args) != 20 {
		t.Errorf("len(result.Args) = %d, want 20", len(result.Args))
	}

	if _, err := os.Stat(filepath.Join(workDir, "launched.txt")); !os.IsNotExist(err) {
		t.Error("dry run must not launch the trainer")
	}
}

func TestRunExperimentRejectsInvalidConfiguration(t *testing.T) {
	orch, _ := newTestOrchestrator(t, "exit 0")

	cfg := launcher.DefaultConfiguration()
	cfg.ILType = "bogus"

	if _, err := orch.RunExperiment(RunOptions{Config: cfg}); err == nil {
		t.Error("RunExperiment() expected validation error")
	}
}

func TestCustomFormatter(t *testing.T) {
	f := &customFormatter{}

	tests := []struct {
		level logrus.Level
		want  string
	}{
		{logrus.InfoLevel, "[INF] hello\n"},
		{logrus.WarnLevel, "[WARN] hello\n"},
		{logrus.ErrorLevel, "[ERR] hello\n"},
		{logrus.DebugLevel, "[DBG] hello\n"},
	}

	for _, tt := range tests {
		entry := &logrus.Entry{Level: tt.level, Message: "hello"}
		out, err := f.Format(entry)
		if err != nil {
			t.Fatalf("Format() error = %v", err)
		}
		if string(out) != tt.want {
			t.Errorf("Format(%v) = %q, want %q", tt.level, string(out), tt.want)
		}
	}
}

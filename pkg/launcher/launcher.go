package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
)

// Launcher starts the external trainer as a child process. It holds everything
// needed to reproduce one invocation: which interpreter, which script, and
// where to run it.
type Launcher struct {
	Python  string
	Script  string
	WorkDir string
	Verbose bool
}

func getPythonPath(preferred string) (string, error) {
	if preferred != "" {
		if path, err := exec.LookPath(preferred); err == nil {
			return path, nil
		}
		if _, err := os.Stat(preferred); err == nil {
			return preferred, nil
		}
		return "", fmt.Errorf("python interpreter %s not found", preferred)
	}

	for _, name := range []string{"python3", "python"} {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}

	fallbackPaths := []string{}

	if conda := os.Getenv("CONDA_PREFIX"); conda != "" {
		fallbackPaths = append(fallbackPaths, filepath.Join(conda, "bin", "python"))
	}

	fallbackPaths = append(fallbackPaths, "/usr/bin/python3")

	for _, path := range fallbackPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("python not found")
}

// New resolves the interpreter and script for a launcher. script defaults to
// run.py inside workDir when empty.
func New(pythonBin, script, workDir string, verbose bool) (*Launcher, error) {
	pythonPath, err := getPythonPath(pythonBin)
	if err != nil {
		return nil, fmt.Errorf("python interpreter not found: %w", err)
	}

	if script == "" {
		script = "run.py"
	}
	if !filepath.IsAbs(script) && workDir != "" {
		script = filepath.Join(workDir, script)
	}

	if _, err := os.Stat(script); err != nil {
		return nil, fmt.Errorf("trainer script not found at %s: %w", script, err)
	}

	return &Launcher{
		Python:  pythonPath,
		Script:  script,
		WorkDir: workDir,
		Verbose: verbose,
	}, nil
}

// Launch serializes the configuration, starts the trainer, and blocks until it
// terminates. The returned status is the child's exit status unchanged; a
// signal death surfaces as 128+signal, matching shell convention. The launcher
// takes no locks, so invocations pinned to different devices can run in
// parallel as independent processes.
func (l *Launcher) Launch(ctx context.Context, cfg RunConfiguration) (int, error) {
	if err := cfg.Validate(); err != nil {
		return 1, fmt.Errorf("invalid run configuration: %w", err)
	}

	args := append([]string{l.Script}, cfg.Args()...)

	if l.Verbose {
		fmt.Printf("[DBG] executing: CUDA_VISIBLE_DEVICES=%d %s %s\n", cfg.Device, l.Python, strings.Join(args, " "))
	}

	cmd := exec.CommandContext(ctx, l.Python, args...)
	cmd.Dir = l.WorkDir
	cmd.Env = append(os.Environ(), cfg.DeviceEnv())
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitStatus(exitErr), fmt.Errorf("trainer failed: %w", err)
		}
		return 1, fmt.Errorf("failed to start trainer: %w", err)
	}

	return 0, nil
}

func exitStatus(err *exec.ExitError) int {
	if ws, ok := err.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return err.ExitCode()
}

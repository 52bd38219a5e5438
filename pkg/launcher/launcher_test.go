package launcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

// shLauncher points the launcher at /bin/sh so tests stand in for the trainer.
func shLauncher(t *testing.T, dir, body string) *Launcher {
	t.Helper()
	return &Launcher{
		Python:  "/bin/sh",
		Script:  writeScript(t, dir, "trainer.sh", body),
		WorkDir: dir,
	}
}

func TestLaunchExitZero(t *testing.T) {
	dir := t.TempDir()
	l := shLauncher(t, dir, "exit 0")

	status, err := l.Launch(context.Background(), DefaultConfiguration())
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	if status != 0 {
		t.Errorf("Launch() status = %d, want 0", status)
	}
}

func TestLaunchPropagatesExitOne(t *testing.T) {
	dir := t.TempDir()
	l := shLauncher(t, dir, "exit 1")

	status, err := l.Launch(context.Background(), DefaultConfiguration())
	if err == nil {
		t.Fatal("Launch() expected error for non-zero exit")
	}
	if status != 1 {
		t.Errorf("Launch() status = %d, want 1", status)
	}
}

func TestLaunchPropagatesSignalDeath(t *testing.T) {
	dir := t.TempDir()
	l := shLauncher(t, dir, "kill -KILL $$")

	status, err := l.Launch(context.Background(), DefaultConfiguration())
	if err == nil {
		t.Fatal("Launch() expected error for signaled process")
	}
	if status != 137 {
		t.Errorf("Launch() status = %d, want 137", status)
	}
}

func TestLaunchSetsDeviceEnv(t *testing.T) {
	dir := t.TempDir()
	l := shLauncher(t, dir, `echo "$CUDA_VISIBLE_DEVICES" > device.txt`)

	cfg := DefaultConfiguration()
	cfg.Device = 3

	if status, err := l.Launch(context.Background(), cfg); err != nil || status != 0 {
		t.Fatalf("Launch() = %d, %v", status, err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "device.txt"))
	if err != nil {
		t.Fatalf("read device.txt: %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != "3" {
		t.Errorf("child saw CUDA_VISIBLE_DEVICES=%q, want %q", got, "3")
	}
}

func TestLaunchForwardsArgumentsVerbatim(t *testing.T) {
	dir := t.TempDir()
	l := shLauncher(t, dir, `echo "$@" > args.txt`)

	cfg := DefaultConfiguration()
	if status, err := l.Launch(context.Background(), cfg); err != nil || status != 0 {
		t.Fatalf("Launch() = %d, %v", status, err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "args.txt"))
	if err != nil {
		t.Fatalf("read args.txt: %v", err)
	}
	want := strings.Join(cfg.Args(), " ")
	if got := strings.TrimSpace(string(data)); got != want {
		t.Errorf("child received args %q, want %q", got, want)
	}
}

func TestLaunchRejectsInvalidConfiguration(t *testing.T) {
	dir := t.TempDir()
	l := shLauncher(t, dir, "exit 0")

	cfg := DefaultConfiguration()
	cfg.Split = 0

	if _, err := l.Launch(context.Background(), cfg); err == nil {
		t.Error("Launch() expected validation error")
	}
}

// Two launches pinned to different devices must not serialize on any shared
// lock. Each child waits for the other's marker file, so both only exit
// cleanly when they run at the same time.
func TestLaunchesDoNotBlockEachOther(t *testing.T) {
	dir := t.TempDir()

	handshake := func(mine, theirs string) string {
		return `touch ` + mine + `
i=0
while [ ! -f ` + theirs + ` ]; do
  i=$((i+1))
  if [ $i -gt 200 ]; then exit 1; fi
  sleep 0.05
done
exit 0`
	}

	la := &Launcher{Python: "/bin/sh", Script: writeScript(t, dir, "a.sh", handshake("a.ready", "b.ready")), WorkDir: dir}
	lb := &Launcher{Python: "/bin/sh", Script: writeScript(t, dir, "b.sh", handshake("b.ready", "a.ready")), WorkDir: dir}

	cfgA := DefaultConfiguration()
	cfgB := DefaultConfiguration()
	cfgB.Device = 1

	var wg sync.WaitGroup
	var statusA, statusB int
	var errA, errB error

	wg.Add(2)
	go func() {
		defer wg.Done()
		statusA, errA = la.Launch(context.Background(), cfgA)
	}()
	go func() {
		defer wg.Done()
		statusB, errB = lb.Launch(context.Background(), cfgB)
	}()
	wg.Wait()

	if errA != nil || statusA != 0 {
		t.Errorf("launch A = %d, %v, want concurrent success", statusA, errA)
	}
	if errB != nil || statusB != 0 {
		t.Errorf("launch B = %d, %v, want concurrent success", statusB, errB)
	}
}

func TestNewResolvesScriptInWorkDir(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "run.py", "exit 0")

	l, err := New("/bin/sh", "", dir, false)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if l.Script != filepath.Join(dir, "run.py") {
		t.Errorf("Script = %q, want %q", l.Script, filepath.Join(dir, "run.py"))
	}
}

func TestNewFailsWhenScriptMissing(t *testing.T) {
	dir := t.TempDir()

	if _, err := New("/bin/sh", "", dir, false); err == nil {
		t.Error("New() expected error for missing trainer script")
	}
}

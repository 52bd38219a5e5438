package launcher

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCleanWorkspaceRemovesStaleCaches(t *testing.T) {
	dir := t.TempDir()

	pycache := filepath.Join(dir, "models", "__pycache__")
	if err := os.MkdirAll(pycache, 0o755); err != nil {
		t.Fatal(err)
	}

	files := map[string]bool{ // path -> should survive
		filepath.Join(pycache, "lvt.cpython-39.pyc"): false,
		filepath.Join(dir, "stale.pyc"):              false,
		filepath.Join(dir, "stale.pyo"):              false,
		filepath.Join(dir, "run.py"):                 true,
		filepath.Join(dir, "models", "lvt.py"):       true,
	}

	for path := range files {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := CleanWorkspace(dir, false)
	if err != nil {
		t.Fatalf("CleanWorkspace() error = %v", err)
	}

	// __pycache__ counts as one entry, its contents go with it
	if removed != 3 {
		t.Errorf("CleanWorkspace() removed = %d, want 3", removed)
	}

	for path, survive := range files {
		_, err := os.Stat(path)
		if survive && err != nil {
			t.Errorf("%s should have survived cleanup: %v", path, err)
		}
		if !survive && !os.IsNotExist(err) {
			t.Errorf("%s should have been removed", path)
		}
	}

	if _, err := os.Stat(pycache); !os.IsNotExist(err) {
		t.Errorf("__pycache__ directory should have been removed")
	}
}

func TestCleanWorkspaceEmptyDir(t *testing.T) {
	removed, err := CleanWorkspace(t.TempDir(), false)
	if err != nil {
		t.Fatalf("CleanWorkspace() error = %v", err)
	}
	if removed != 0 {
		t.Errorf("CleanWorkspace() removed = %d, want 0", removed)
	}
}

func TestCleanWorkspaceMissingDir(t *testing.T) {
	if _, err := CleanWorkspace(filepath.Join(t.TempDir(), "missing"), false); err == nil {
		t.Error("CleanWorkspace() expected error for missing directory")
	}
}

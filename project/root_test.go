package project

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestFindFileFrom(t *testing.T) {
	t.Run("nearest file wins", func(t *testing.T) {
		tmpDir := t.TempDir()
		writeFile(t, filepath.Join(tmpDir, ConfigFile), "title: outer\n")
		inner := filepath.Join(tmpDir, "pkg", ConfigFile)
		writeFile(t, inner, "title: inner\n")

		got, err := FindFileFrom(filepath.Join(tmpDir, "pkg"), ConfigFile)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != inner {
			t.Errorf("got %q, want %q", got, inner)
		}
	})

	t.Run("directories are skipped", func(t *testing.T) {
		tmpDir := t.TempDir()
		if err := os.MkdirAll(filepath.Join(tmpDir, "a", ConfigFile), 0755); err != nil {
			t.Fatal(err)
		}
		writeFile(t, filepath.Join(tmpDir, ConfigFile), "")

		got, err := FindFileFrom(filepath.Join(tmpDir, "a"), ConfigFile)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != filepath.Join(tmpDir, ConfigFile) {
			t.Errorf("got %q", got)
		}
	})

	t.Run("missing file wraps ErrNotExist", func(t *testing.T) {
		_, err := FindFileFrom(t.TempDir(), "does-not-exist.json")
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("got %v, want os.ErrNotExist", err)
		}
	})
}

func TestHasConfig(t *testing.T) {
	tmpDir := t.TempDir()
	if HasConfig(tmpDir) {
		t.Error("expected no config")
	}
	writeFile(t, filepath.Join(tmpDir, ConfigFile), "")
	if !HasConfig(tmpDir) {
		t.Error("expected config")
	}
}

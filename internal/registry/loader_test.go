package registry

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, f := range names {
		if err := os.WriteFile(filepath.Join(dir, f), []byte(""), 0o644); err != nil {
			t.Fatalf("write temp file: %v", err)
		}
	}
}

func TestLoadDirFiltersGGUF(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a.gguf", "b.GGUF", "not-model.txt", "model.bin")
	if err := os.Mkdir(filepath.Join(dir, "sub.gguf"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	models, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(models))
	}
	ids := []string{models[0].ID, models[1].ID}
	sort.Strings(ids)
	if ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("ids should drop the extension: %v", ids)
	}
	for _, m := range models {
		if !filepath.IsAbs(m.Path) || m.Object != "model" {
			t.Fatalf("unexpected model: %+v", m)
		}
	}
}

func TestLoadDirExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	if err := os.Mkdir(filepath.Join(home, "models"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	touch(t, filepath.Join(home, "models"), "x.gguf")
	models, err := LoadDir("~/models")
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if len(models) != 1 || models[0].ID != "x" {
		t.Fatalf("unexpected models: %+v", models)
	}
}

func TestLoadDirMissing(t *testing.T) {
	if _, err := LoadDir(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}

func TestLookup(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "mistral-7b-instruct-v0.1.Q5_0.gguf")

	for _, id := range []string{"mistral-7b-instruct-v0.1.Q5_0", "mistral-7b-instruct-v0.1.Q5_0.gguf"} {
		m, err := Lookup(dir, id)
		if err != nil {
			t.Fatalf("lookup %q: %v", id, err)
		}
		if m.ID != "mistral-7b-instruct-v0.1.Q5_0" || m.Family != "mistral" {
			t.Fatalf("unexpected model: %+v", m)
		}
		if m.Path != filepath.Join(dir, "mistral-7b-instruct-v0.1.Q5_0.gguf") {
			t.Fatalf("unexpected path %q", m.Path)
		}
	}

	full := filepath.Join(dir, "mistral-7b-instruct-v0.1.Q5_0.gguf")
	if m, err := Lookup("", full); err != nil || m.Path != full {
		t.Fatalf("lookup by path: %+v %v", m, err)
	}
}

func TestLookupNotFound(t *testing.T) {
	_, err := Lookup(t.TempDir(), "llama-2-7b")
	if !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
	if _, err := Lookup(t.TempDir(), " "); err == nil {
		t.Fatalf("expected error for empty id")
	}
}

package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"modelserve/internal/common/fsutil"
	"modelserve/pkg/types"
)

const ggufExt = ".gguf"

// ErrModelNotFound is returned when no weights file matches a model id.
var ErrModelNotFound = errors.New("model weights not found")

// LoadDir scans a directory for *.gguf files. ID is the filename without the
// extension (matching MODEL_ID); Path is the absolute file path.
func LoadDir(dir string) ([]types.Model, error) {
	abs, err := fsutil.ResolveDir(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ggufExt) {
			continue
		}
		models = append(models, newModel(name[:len(name)-len(ggufExt)], filepath.Join(abs, name)))
	}
	return models, nil
}

// Lookup resolves a model id to its GGUF file. The id may be a bare name
// ("mistral-7b-instruct-v0.1.Q5_0"), a filename with extension, or a path to
// an existing file.
func Lookup(dir, id string) (types.Model, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return types.Model{}, errors.New("empty model id")
	}
	if p, err := fsutil.ExpandHome(id); err == nil && fsutil.IsFile(p) {
		abs, err := filepath.Abs(p)
		if err != nil {
			return types.Model{}, fmt.Errorf("abs path: %w", err)
		}
		return newModel(trimExt(filepath.Base(abs)), abs), nil
	}
	abs, err := fsutil.ResolveDir(dir)
	if err != nil {
		return types.Model{}, err
	}
	name := filepath.Base(id)
	if !strings.HasSuffix(strings.ToLower(name), ggufExt) {
		name += ggufExt
	}
	p := filepath.Join(abs, name)
	if !fsutil.IsFile(p) {
		return types.Model{}, fmt.Errorf("%w: %s", ErrModelNotFound, p)
	}
	return newModel(trimExt(name), p), nil
}

func trimExt(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ggufExt) {
		return name[:len(name)-len(ggufExt)]
	}
	return name
}

func newModel(id, path string) types.Model {
	return types.Model{ID: id, Object: "model", OwnedBy: "modelserve", Path: path, Family: guessFamily(id)}
}

// guessFamily derives a coarse family label from the model id.
func guessFamily(id string) string {
	l := strings.ToLower(id)
	for _, f := range []string{"llama", "mistral", "mpt", "falcon", "gpt"} {
		if strings.Contains(l, f) {
			return f
		}
	}
	return ""
}

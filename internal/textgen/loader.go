package textgen

import (
	"context"
	"fmt"
	"strings"

	"modelserve/internal/manager"
	"modelserve/internal/registry"
)

const (
	defaultMaxTokens   = 128
	defaultContextSize = 2048
	// offloadAllLayers asks llama.cpp to place every layer on the GPU.
	offloadAllLayers = 999
)

// LlamaOptions configure the in-process llama.cpp backend.
type LlamaOptions struct {
	ContextSize int
	Threads     int
	GPULayers   int
}

// LoadConfig selects and configures the text backend.
type LoadConfig struct {
	Backend       Backend
	ModelID       string
	Device        string
	ModelsDir     string
	Llama         LlamaOptions
	RuntimeURL    string
	RuntimeAPIKey string
}

// NewLoader returns the manager load function for cfg. The returned handle
// is a Model.
func NewLoader(cfg LoadConfig) manager.LoadFunc {
	return func(ctx context.Context) (manager.Handle, error) {
		switch cfg.Backend {
		case BackendRemote:
			m, err := newRemoteModel(cfg.RuntimeURL, cfg.RuntimeAPIKey, cfg.ModelID)
			if err != nil {
				return nil, err
			}
			if err := m.ping(ctx); err != nil {
				return nil, err
			}
			return m, nil
		case BackendLlamaCPP, "":
			if !llamaBuilt {
				return nil, manager.ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
			}
			mdl, err := registry.Lookup(cfg.ModelsDir, cfg.ModelID)
			if err != nil {
				return nil, err
			}
			return newLlamaModel(mdl.Path, llamaOptionsFor(cfg))
		default:
			return nil, fmt.Errorf("unknown text backend %q", cfg.Backend)
		}
	}
}

// llamaOptionsFor applies defaults and maps the device to GPU offload.
func llamaOptionsFor(cfg LoadConfig) LlamaOptions {
	o := cfg.Llama
	if o.ContextSize <= 0 {
		o.ContextSize = defaultContextSize
	}
	if o.Threads <= 0 {
		o.Threads = 4
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Device)) {
	case "", "cpu":
		o.GPULayers = 0
	default:
		if o.GPULayers <= 0 {
			o.GPULayers = offloadAllLayers
		}
	}
	return o
}

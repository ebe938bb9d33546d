//go:build !llama

package textgen

import "modelserve/internal/manager"

// This file provides a no-CGO stub for the llama backend. It is compiled when
// the 'llama' build tag is NOT set, keeping default builds and CI CGO-free.
// The real backend lives in llama.go (tagged 'llama').

const llamaBuilt = false

// newLlamaModel fails fast: the llama runtime is not available in this build,
// so the model load fails and the process reports it on /readyz.
func newLlamaModel(modelPath string, opts LlamaOptions) (Model, error) {
	return nil, manager.ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}

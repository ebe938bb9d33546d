package textgen

import (
	"context"
	"fmt"
	"strings"
)

// Backend selects the runtime that serves a text model. It is resolved once
// at load time.
type Backend string

const (
	// BackendLlamaCPP runs a GGUF model in-process through go-llama.cpp.
	BackendLlamaCPP Backend = "llamacpp"
	// BackendRemote forwards to an OpenAI-compatible runtime (vLLM, TGI,
	// petals gateway) that owns the weights.
	BackendRemote Backend = "remote"
)

// ParseBackend maps a configured backend name to a Backend.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "llamacpp", "llama.cpp", "llama":
		return BackendLlamaCPP, nil
	case "remote", "openai":
		return BackendRemote, nil
	default:
		return "", fmt.Errorf("unknown text backend %q", s)
	}
}

// Model is a loaded text model. Implementations must be safe to call from
// the goroutine holding an admission slot.
type Model interface {
	// Complete generates a continuation of prompt. When onToken is non-nil
	// tokens are forwarded as they are produced; returning an error from
	// onToken stops generation. Implementations must return when ctx is
	// canceled.
	Complete(ctx context.Context, prompt string, params Params, onToken func(string) error) (Result, error)
	// Chat generates the next assistant turn.
	Chat(ctx context.Context, msgs []Message, params Params, onToken func(string) error) (Result, error)
	// Close releases any resources associated with the model.
	Close() error
}

// Params captures generation parameters passed to the runtime unchanged.
type Params struct {
	Temperature   float32
	TopP          float32
	TopK          int
	MaxTokens     int
	Stop          []string
	Seed          int
	RepeatPenalty float32
}

// Message is one chat turn.
type Message struct {
	Role    string
	Content string
}

// Result summarizes one generation.
type Result struct {
	Text         string
	Usage        Usage
	FinishReason string
}

// Usage contains token accounting.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

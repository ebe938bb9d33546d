package fetch

import (
	"errors"
	"strings"
)

// TokenizerFamily selects where the tokenizer for a model is fetched from.
type TokenizerFamily string

const (
	// TokenizerAuto reads the tokenizer from the model repository.
	TokenizerAuto TokenizerFamily = "auto"
	// TokenizerLlama reads a llama tokenizer from the model repository.
	TokenizerLlama TokenizerFamily = "llama"
	// TokenizerGPTNeoX uses the shared gpt-neox-20b tokenizer (MPT models).
	TokenizerGPTNeoX TokenizerFamily = "gpt-neox"
)

// GPTNeoXTokenizerRepo hosts the tokenizer MPT models are trained with.
const GPTNeoXTokenizerRepo = "EleutherAI/gpt-neox-20b"

// Job describes one weight download.
type Job struct {
	ModelID string
	// TokenizerRepo is the repository holding the tokenizer. It equals
	// ModelID unless the family ships its tokenizer elsewhere.
	TokenizerRepo string
	Tokenizer     TokenizerFamily
	// Device is informational; weights are device independent on disk.
	Device string
}

// NewJob resolves the tokenizer family for modelID. A non-empty
// tokenizerRepo overrides the resolved repository.
func NewJob(modelID, tokenizerRepo, device string) (Job, error) {
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		return Job{}, errors.New("model id is required")
	}
	j := Job{ModelID: modelID, Device: device}
	l := strings.ToLower(modelID)
	switch {
	case strings.Contains(l, "llama"):
		j.Tokenizer, j.TokenizerRepo = TokenizerLlama, modelID
	case strings.Contains(l, "mpt"):
		j.Tokenizer, j.TokenizerRepo = TokenizerGPTNeoX, GPTNeoXTokenizerRepo
	default:
		j.Tokenizer, j.TokenizerRepo = TokenizerAuto, modelID
	}
	if r := strings.TrimSpace(tokenizerRepo); r != "" {
		j.TokenizerRepo = r
	}
	return j, nil
}

// repos lists the repositories to download in order, tokenizer first.
func (j Job) repos() []string {
	if j.TokenizerRepo == "" || j.TokenizerRepo == j.ModelID {
		return []string{j.ModelID}
	}
	return []string{j.TokenizerRepo, j.ModelID}
}

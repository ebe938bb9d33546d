package types

// Model describes the model a service exposes.
type Model struct {
	// Stable identifier for the model.
	// example: stabilityai/stable-diffusion-2-1
	ID string `json:"id" example:"stabilityai/stable-diffusion-2-1"`
	// Object type, always "model".
	// example: model
	Object string `json:"object" example:"model"`
	// Owning service or runtime.
	// example: modelserve
	OwnedBy string `json:"owned_by" example:"modelserve"`
	// Absolute path to a local weights file, when one is known.
	// example: /srv/ml/models/mistral-7b-instruct-v0.1.Q5_0.gguf
	Path string `json:"path,omitempty" example:"/srv/ml/models/mistral-7b-instruct-v0.1.Q5_0.gguf"`
	// Optional family (e.g., llama, diffusion, latent-upscaler).
	// example: llama
	Family string `json:"family,omitempty" example:"llama"`
}

package types

// SamplingParams are the generation knobs shared by completion endpoints.
type SamplingParams struct {
	// Number of completions to generate for the prompt.
	// example: 1
	N int `json:"n,omitempty" example:"1"`
	// Maximum number of new tokens to generate.
	// example: 128
	MaxTokens int `json:"max_tokens,omitempty" example:"128"`
	// Sampling temperature (higher = more random).
	// example: 0.7
	Temperature float64 `json:"temperature,omitempty" example:"0.7"`
	// Nucleus sampling probability.
	// example: 0.9
	TopP float64 `json:"top_p,omitempty" example:"0.9"`
	// Top-K sampling: limit candidates to top K tokens.
	// example: 40
	TopK int `json:"top_k,omitempty" example:"40"`
	// Optional stop sequences. Generation stops when any sequence is matched.
	// example: ["\n\n","END"]
	Stop []string `json:"stop,omitempty" example:"[\"\\n\\n\",\"END\"]"`
	// Random seed for reproducibility; 0 or omitted lets the runtime choose.
	// example: 42
	Seed int64 `json:"seed,omitempty" example:"42"`
	// Repeat penalty applied by llama runtimes.
	// example: 1.1
	RepeatPenalty float64 `json:"repeat_penalty,omitempty" example:"1.1"`
	// Stream results as server-sent events.
	// example: false
	Stream bool `json:"stream,omitempty" example:"false"`
}

// CompletionRequest is the body of POST /completions.
type CompletionRequest struct {
	// Optional model identifier. Informational: each process serves one model.
	// example: mistral-7b-instruct-v0.1.Q5_0
	Model string `json:"model,omitempty" example:"mistral-7b-instruct-v0.1.Q5_0"`
	// Required prompt text to generate a completion for.
	// example: Write a haiku about the ocean.
	Prompt string `json:"prompt" example:"Write a haiku about the ocean."`
	SamplingParams
}

// ChatMessage is one turn of a chat conversation.
type ChatMessage struct {
	// example: user
	Role string `json:"role" example:"user"`
	// example: Hello!
	Content string `json:"content" example:"Hello!"`
}

// ChatCompletionRequest is the body of POST /chat/completions.
type ChatCompletionRequest struct {
	Model    string        `json:"model,omitempty" example:"mistral-7b-instruct-v0.1.Q5_0"`
	Messages []ChatMessage `json:"messages"`
	SamplingParams
}

// Usage contains token accounting when the runtime reports it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionChoice is one generated text.
type CompletionChoice struct {
	Index        int    `json:"index"`
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// CompletionResponse is returned by POST /completions. Choices has one entry
// per requested completion.
type CompletionResponse struct {
	ID      string             `json:"id" example:"cmpl-3f2a"`
	Object  string             `json:"object" example:"text_completion"`
	Created int64              `json:"created" example:"1700000000"`
	Model   string             `json:"model"`
	Choices []CompletionChoice `json:"choices"`
	Usage   Usage              `json:"usage"`
}

// ChatChoice is one generated assistant message.
type ChatChoice struct {
	Index        int          `json:"index"`
	Message      *ChatMessage `json:"message,omitempty"`
	Delta        *ChatMessage `json:"delta,omitempty"`
	FinishReason string       `json:"finish_reason,omitempty"`
}

// ChatCompletionResponse is returned by POST /chat/completions. Streaming
// chunks reuse it with Object "chat.completion.chunk" and Delta set.
type ChatCompletionResponse struct {
	ID      string       `json:"id" example:"chatcmpl-3f2a"`
	Object  string       `json:"object" example:"chat.completion"`
	Created int64        `json:"created" example:"1700000000"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   *Usage       `json:"usage,omitempty"`
}

// ImageRequest carries the fields of POST /images/generations and
// POST /images/upscale. Image holds the raw upload (multipart file or
// base64 JSON field) and is never serialized back.
type ImageRequest struct {
	// example: a cat
	Prompt string `json:"prompt" example:"a cat"`
	// Number of images to generate.
	// example: 1
	N int `json:"n,omitempty" example:"1"`
	// Output size as WxH. Empty keeps the native pipeline size.
	// example: 512x512
	Size string `json:"size,omitempty" example:"512x512"`
	// Key under which every encoded image is returned.
	// example: b64_json
	ResponseFormat string `json:"response_format,omitempty" example:"b64_json"`
	// example: blurry, low quality
	NegativePrompt string `json:"negative_prompt,omitempty" example:"blurry, low quality"`
	// Seed makes generation deterministic when present.
	// example: 42
	Seed *int64 `json:"seed,omitempty" example:"42"`
	// example: 7.5
	GuidanceScale float64 `json:"guidance_scale,omitempty" example:"7.5"`
	// example: 25
	StepCount int `json:"step_count,omitempty" example:"25"`
	// Base64 image for JSON bodies; multipart bodies use a file part named "image".
	ImageB64 string `json:"image,omitempty"`
	Image    []byte `json:"-"`
}

// ImageData is one encoded output: {response_format: base64 PNG}.
type ImageData map[string]string

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	Object string  `json:"object" example:"list"`
	Data   []Model `json:"data"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Model served by this process.
	// example: stabilityai/stable-diffusion-2-1
	ModelID string `json:"model_id" example:"stabilityai/stable-diffusion-2-1"`
	// Target compute device.
	// example: cpu
	Device string `json:"device" example:"cpu"`
	// Lifecycle state: uninitialized, loading, ready or failed.
	// example: ready
	State string `json:"state" example:"ready"`
	// Load error when State is failed.
	LastError string `json:"last_error,omitempty"`
	// Total number of model loads attempted (0 or 1).
	// example: 1
	LoadsTotal uint64 `json:"loads_total" example:"1"`
	// Requests waiting for or holding an inference slot.
	// example: 0
	QueueLen int `json:"queue_len" example:"0"`
	// Requests currently running inference.
	// example: 1
	Inflight int `json:"inflight" example:"1"`
	// Maximum queued requests allowed before backpressure triggers.
	// example: 32
	MaxQueueDepth int `json:"max_queue_depth" example:"32"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}

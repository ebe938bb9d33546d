package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for a service.
// Zero values mean "unspecified" and are replaced by Defaults.
type Config struct {
	Addr        string `json:"addr" yaml:"addr" toml:"addr"`
	RoutePrefix string `json:"route_prefix" yaml:"route_prefix" toml:"route_prefix"`

	ModelID   string `json:"model_id" yaml:"model_id" toml:"model_id"`
	Device    string `json:"device" yaml:"device" toml:"device"`
	ModelsDir string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`

	// Text backend: llamacpp (in-process) or remote (OpenAI-compatible runtime).
	Backend       string `json:"backend" yaml:"backend" toml:"backend"`
	RuntimeURL    string `json:"runtime_url" yaml:"runtime_url" toml:"runtime_url"`
	RuntimeAPIKey string `json:"runtime_api_key" yaml:"runtime_api_key" toml:"runtime_api_key"`
	LlamaContext  int    `json:"llama_ctx" yaml:"llama_ctx" toml:"llama_ctx"`
	LlamaThreads  int    `json:"llama_threads" yaml:"llama_threads" toml:"llama_threads"`
	GPULayers     int    `json:"gpu_layers" yaml:"gpu_layers" toml:"gpu_layers"`

	// Diffusion worker base URL.
	WorkerURL     string `json:"worker_url" yaml:"worker_url" toml:"worker_url"`
	EncodeWorkers int    `json:"encode_workers" yaml:"encode_workers" toml:"encode_workers"`
	// Largest accepted image width or height.
	MaxImageSide int `json:"max_image_side" yaml:"max_image_side" toml:"max_image_side"`

	MaxBodyBytes        int64 `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	InferTimeoutSeconds int   `json:"infer_timeout_seconds" yaml:"infer_timeout_seconds" toml:"infer_timeout_seconds"`
	MaxQueueDepth       int   `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	MaxInflight         int   `json:"max_inflight" yaml:"max_inflight" toml:"max_inflight"`
	MaxWaitSeconds      int   `json:"max_wait_seconds" yaml:"max_wait_seconds" toml:"max_wait_seconds"`

	CORSAllowedOrigins []string `json:"cors_allowed_origins" yaml:"cors_allowed_origins" toml:"cors_allowed_origins"`
	CORSAllowedMethods []string `json:"cors_allowed_methods" yaml:"cors_allowed_methods" toml:"cors_allowed_methods"`
	CORSAllowedHeaders []string `json:"cors_allowed_headers" yaml:"cors_allowed_headers" toml:"cors_allowed_headers"`

	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

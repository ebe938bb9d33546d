package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envKeys maps viper keys to the environment variables the services read.
var envKeys = map[string]string{
	"config":                "CONFIG_FILE",
	"addr":                  "ADDR",
	"route_prefix":          "ROUTE_PREFIX",
	"model_id":              "MODEL_ID",
	"device":                "DEVICE",
	"models_dir":            "MODELS_DIR",
	"backend":               "TEXT_BACKEND",
	"runtime_url":           "RUNTIME_URL",
	"runtime_api_key":       "RUNTIME_API_KEY",
	"llama_ctx":             "LLAMA_CTX",
	"llama_threads":         "LLAMA_THREADS",
	"gpu_layers":            "GPU_LAYERS",
	"worker_url":            "WORKER_URL",
	"encode_workers":        "ENCODE_WORKERS",
	"max_image_side":        "MAX_IMAGE_SIDE",
	"max_body_bytes":        "MAX_BODY_BYTES",
	"infer_timeout_seconds": "INFER_TIMEOUT_SECONDS",
	"max_queue_depth":       "MAX_QUEUE_DEPTH",
	"max_inflight":          "MAX_INFLIGHT",
	"max_wait_seconds":      "MAX_WAIT_SECONDS",
	"cors_allowed_origins":  "CORS_ALLOWED_ORIGINS",
	"log_level":             "LOG_LEVEL",
	"log_format":            "LOG_FORMAT",
}

// BindEnv binds every configuration key to its environment variable.
func BindEnv(v *viper.Viper) error {
	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s: %w", env, err)
		}
	}
	return nil
}

// LoadDotEnv loads variables from path without overriding the existing
// environment. A missing default ".env" is not an error.
func LoadDotEnv(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Resolve builds the effective configuration for svc: defaults, then the
// config file named by the "config" key, then every key set through flags or
// the environment.
func Resolve(svc Service, v *viper.Viper) (Config, error) {
	cfg := Defaults(svc)
	if path := v.GetString("config"); path != "" {
		fileCfg, err := Load(path)
		if err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
		cfg = Merge(cfg, fileCfg)
	}
	cfg = overlay(cfg, v)
	cfg.RoutePrefix = NormalizePrefix(cfg.RoutePrefix)
	return cfg, nil
}

// overlay applies keys explicitly set in v (changed flags, env vars).
func overlay(cfg Config, v *viper.Viper) Config {
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	num := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	str("addr", &cfg.Addr)
	str("route_prefix", &cfg.RoutePrefix)
	str("model_id", &cfg.ModelID)
	str("device", &cfg.Device)
	str("models_dir", &cfg.ModelsDir)
	str("backend", &cfg.Backend)
	str("runtime_url", &cfg.RuntimeURL)
	str("runtime_api_key", &cfg.RuntimeAPIKey)
	num("llama_ctx", &cfg.LlamaContext)
	num("llama_threads", &cfg.LlamaThreads)
	num("gpu_layers", &cfg.GPULayers)
	str("worker_url", &cfg.WorkerURL)
	num("encode_workers", &cfg.EncodeWorkers)
	num("max_image_side", &cfg.MaxImageSide)
	if v.IsSet("max_body_bytes") {
		cfg.MaxBodyBytes = v.GetInt64("max_body_bytes")
	}
	num("infer_timeout_seconds", &cfg.InferTimeoutSeconds)
	num("max_queue_depth", &cfg.MaxQueueDepth)
	num("max_inflight", &cfg.MaxInflight)
	num("max_wait_seconds", &cfg.MaxWaitSeconds)
	if v.IsSet("cors_allowed_origins") {
		cfg.CORSAllowedOrigins = SplitCSV(v.GetString("cors_allowed_origins"))
	}
	str("log_level", &cfg.LogLevel)
	str("log_format", &cfg.LogFormat)
	return cfg
}

// Getenv returns the environment value for key or def when unset.
func Getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// SplitCSV splits a comma separated list, trimming blanks and dropping empty
// items.
func SplitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

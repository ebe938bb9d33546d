package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"modelserve/internal/config"
	"modelserve/internal/logging"
)

// Builder constructs the application for a resolved configuration.
type Builder func(cfg config.Config, log zerolog.Logger) (*App, error)

// flag name -> configuration key
var commonFlags = map[string]string{
	"config":                "config",
	"addr":                  "addr",
	"prefix":                "route_prefix",
	"model-id":              "model_id",
	"device":                "device",
	"log-level":             "log_level",
	"log-format":            "log_format",
	"max-body-bytes":        "max_body_bytes",
	"infer-timeout-seconds": "infer_timeout_seconds",
	"max-queue-depth":       "max_queue_depth",
	"max-inflight":          "max_inflight",
	"max-wait-seconds":      "max_wait_seconds",
	"cors-allowed-origins":  "cors_allowed_origins",
}

var textFlags = map[string]string{
	"models-dir":      "models_dir",
	"backend":         "backend",
	"runtime-url":     "runtime_url",
	"runtime-api-key": "runtime_api_key",
	"llama-ctx":       "llama_ctx",
	"llama-threads":   "llama_threads",
	"gpu-layers":      "gpu_layers",
}

var imageFlags = map[string]string{
	"worker-url":     "worker_url",
	"encode-workers": "encode_workers",
	"max-image-side": "max_image_side",
}

// Command returns the root command of a service binary. Settings resolve as
// defaults < config file < environment < flags.
func Command(svc config.Service, use, short string, build Builder) *cobra.Command {
	v := viper.New()
	var envFile string
	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			if err := config.BindEnv(v); err != nil {
				return err
			}
			cfg, err := config.Resolve(svc, v)
			if err != nil {
				return err
			}
			log := logging.Setup(use, cfg.LogLevel, cfg.LogFormat)
			a, err := build(cfg, log)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.Serve(ctx)
		},
	}

	def := config.Defaults(svc)
	f := cmd.Flags()
	f.StringVar(&envFile, "env-file", "", "Env file to load (default .env when present)")
	f.String("config", "", "Config file (.yaml, .json or .toml)")
	f.String("addr", def.Addr, "HTTP listen address")
	f.String("prefix", def.RoutePrefix, "Route prefix, e.g. /v1 or /api/v1")
	f.String("model-id", def.ModelID, "Model identifier")
	f.String("device", def.Device, "Target device (cpu, cuda, mps)")
	f.String("log-level", def.LogLevel, "Log level: debug|info|warn|error")
	f.String("log-format", def.LogFormat, "Log format: console|json")
	f.Int64("max-body-bytes", def.MaxBodyBytes, "Maximum request body size in bytes")
	f.Int("infer-timeout-seconds", def.InferTimeoutSeconds, "Per-request inference timeout (0 disables)")
	f.Int("max-queue-depth", def.MaxQueueDepth, "Requests allowed to wait for an inference slot")
	f.Int("max-inflight", def.MaxInflight, "Concurrent inference slots")
	f.Int("max-wait-seconds", def.MaxWaitSeconds, "Maximum wait for an inference slot before 429")
	f.String("cors-allowed-origins", "*", "Comma separated CORS origins (empty disables CORS)")

	extra := imageFlags
	switch svc {
	case config.ServiceText:
		extra = textFlags
		f.String("models-dir", def.ModelsDir, "Directory holding <model-id>.gguf files")
		f.String("backend", def.Backend, "Text backend: llamacpp|remote")
		f.String("runtime-url", "", "Base URL of an OpenAI-compatible runtime (remote backend)")
		f.String("runtime-api-key", "", "API key for the remote runtime")
		f.Int("llama-ctx", def.LlamaContext, "llama.cpp context size")
		f.Int("llama-threads", def.LlamaThreads, "llama.cpp threads")
		f.Int("gpu-layers", def.GPULayers, "Layers offloaded to the GPU (0 = all on non-cpu devices)")
	case config.ServiceImage:
		f.String("worker-url", def.WorkerURL, "Base URL of the diffusion worker")
		f.Int("encode-workers", def.EncodeWorkers, "Concurrent PNG encoders")
		f.Int("max-image-side", def.MaxImageSide, "Largest accepted image width or height")
	}
	mustBind(v, f, commonFlags)
	mustBind(v, f, extra)
	return cmd
}

func mustBind(v *viper.Viper, f *pflag.FlagSet, flags map[string]string) {
	for name, key := range flags {
		if err := v.BindPFlag(key, f.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

// Execute runs cmd and exits non-zero on error.
func Execute(cmd *cobra.Command) {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// Command fetchweights downloads the tokenizer and weights of a model into the
// local hub cache so the services start without network access. Each download
// is attempted at most 3 times with a fixed 5 s delay.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"modelserve/internal/config"
	"modelserve/internal/fetch"
	"modelserve/internal/logging"
)

type downloaderFunc func(cacheDir string) fetch.Downloader

func hubDownloader(cacheDir string) fetch.Downloader { return fetch.NewHubDownloader(cacheDir) }

func newRootCmd(newDownloader downloaderFunc, logOut io.Writer, opts ...fetch.Option) *cobra.Command {
	var (
		envFile                              string
		modelID, tokenizer, cacheDir, device string
		logLevel, logFormat                  string
	)
	cmd := &cobra.Command{
		Use:           "fetchweights",
		Short:         "Download model tokenizer and weights into the hub cache",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			// values from the env file apply to flags left unset
			for flag, key := range map[string]string{"model": "MODEL_ID", "device": "DEVICE"} {
				if v, ok := os.LookupEnv(key); ok && !cmd.Flags().Changed(flag) && v != "" {
					_ = cmd.Flags().Set(flag, v)
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New(logOut, logLevel, logFormat).With().Str("service", "fetchweights").Logger()
			job, err := fetch.NewJob(modelID, tokenizer, device)
			if err != nil {
				return fmt.Errorf("%w (set --model or MODEL_ID)", err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			f := fetch.New(newDownloader(cacheDir), append([]fetch.Option{fetch.WithLogger(log)}, opts...)...)
			err = f.Fetch(ctx, job)
			var de *fetch.DownloadError
			if errors.As(err, &de) {
				log.Error().Str("model_id", de.ModelID).Int("attempts", de.Attempts).Err(de.Err).Msg("giving up on download")
			}
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&envFile, "env-file", "", "Env file to load (default .env when present)")
	f.StringVar(&modelID, "model", config.Getenv("MODEL_ID", ""), "Model repository id (default $MODEL_ID)")
	f.StringVar(&tokenizer, "tokenizer", "", "Tokenizer repository, overrides the one derived from the model id")
	f.StringVar(&cacheDir, "cache-dir", config.Getenv("HF_HUB_CACHE", ""), "Hub cache directory")
	f.StringVar(&device, "device", config.Getenv("DEVICE", "auto"), "Target device (informational)")
	f.StringVar(&logLevel, "log-level", config.Getenv("LOG_LEVEL", "info"), "Log level: debug|info|warn|error")
	f.StringVar(&logFormat, "log-format", config.Getenv("LOG_FORMAT", "console"), "Log format: console|json")
	return cmd
}

func main() {
	if err := newRootCmd(hubDownloader, os.Stderr).Execute(); err != nil {
		if !fetch.IsDownloadFailed(err) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

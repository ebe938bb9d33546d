package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// Retry policy for a download job.
const (
	MaxAttempts = 3
	RetryDelay  = 5 * time.Second
)

// DownloadError is returned after every attempt failed.
type DownloadError struct {
	ModelID  string
	Attempts int
	Err      error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s failed after %d attempts: %v", e.ModelID, e.Attempts, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// IsDownloadFailed reports whether err is a DownloadError.
func IsDownloadFailed(err error) bool {
	var e *DownloadError
	return errors.As(err, &e)
}

// Fetcher runs download jobs with a fixed retry policy.
type Fetcher struct {
	dl    Downloader
	log   zerolog.Logger
	timer backoff.Timer
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimer replaces the wall clock timer used between attempts.
func WithTimer(t backoff.Timer) Option { return func(f *Fetcher) { f.timer = t } }

// WithLogger sets the logger for attempt reporting.
func WithLogger(l zerolog.Logger) Option { return func(f *Fetcher) { f.log = l } }

// New returns a Fetcher downloading through dl.
func New(dl Downloader, opts ...Option) *Fetcher {
	f := &Fetcher{dl: dl, log: zerolog.Nop()}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch downloads the tokenizer and weights of job. Each attempt fetches
// every repository of the job; failures of any kind are retried alike.
func (f *Fetcher) Fetch(ctx context.Context, job Job) error {
	log := f.log.With().Str("model_id", job.ModelID).Str("tokenizer", job.TokenizerRepo).Logger()
	attempts := 0
	op := func() error {
		attempts++
		start := time.Now()
		for _, repo := range job.repos() {
			if err := f.dl.Download(ctx, repo); err != nil {
				return fmt.Errorf("%s: %w", repo, err)
			}
		}
		log.Info().Int("attempt", attempts).Dur("elapsed", time.Since(start)).Msg("download complete")
		return nil
	}
	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Int("attempt", attempts).Dur("retry_in", wait).Msg("download attempt failed")
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(RetryDelay), MaxAttempts-1), ctx)
	log.Info().Str("device", job.Device).Msg("downloading model")
	if err := backoff.RetryNotifyWithTimer(op, policy, notify, f.timer); err != nil {
		return &DownloadError{ModelID: job.ModelID, Attempts: attempts, Err: err}
	}
	return nil
}

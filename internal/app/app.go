// Package app wires configuration, logging, the model holder and a service
// into one object built at startup and owned by main.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"modelserve/internal/config"
	"modelserve/internal/diffusion"
	"modelserve/internal/httpapi"
	"modelserve/internal/manager"
	"modelserve/internal/textgen"
)

// ShutdownTimeout bounds graceful shutdown of the HTTP server.
const ShutdownTimeout = 5 * time.Second

// App is the application context of one service process.
type App struct {
	Config  config.Config
	Log     zerolog.Logger
	Manager *manager.Manager

	handler func(base context.Context) http.Handler
	closers []func() error
}

// NewText builds the text completion service for cfg.
func NewText(cfg config.Config, log zerolog.Logger) (*App, error) {
	backend, err := textgen.ParseBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}
	if backend == textgen.BackendRemote && cfg.RuntimeURL == "" {
		return nil, errors.New("runtime_url is required for the remote text backend")
	}
	a := &App{Config: cfg, Log: log}
	a.Manager = a.newManager(textgen.NewLoader(textgen.LoadConfig{
		Backend:   backend,
		ModelID:   cfg.ModelID,
		Device:    cfg.Device,
		ModelsDir: cfg.ModelsDir,
		Llama: textgen.LlamaOptions{
			ContextSize: cfg.LlamaContext,
			Threads:     cfg.LlamaThreads,
			GPULayers:   cfg.GPULayers,
		},
		RuntimeURL:    cfg.RuntimeURL,
		RuntimeAPIKey: cfg.RuntimeAPIKey,
	}))
	svc := textgen.NewService(textgen.ServiceConfig{
		Manager:   a.Manager,
		Backend:   backend,
		ModelsDir: cfg.ModelsDir,
		Logger:    log,
	})
	a.handler = func(base context.Context) http.Handler {
		return httpapi.NewTextMux(svc, a.httpOptions(base))
	}
	a.closers = append(a.closers, a.Manager.Close)
	return a, nil
}

// NewImage builds the diffusion image service for cfg.
func NewImage(cfg config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}
	a.Manager = a.newManager(diffusion.NewWorkerLoader(diffusion.WorkerLoadConfig{
		WorkerURL: cfg.WorkerURL,
		ModelID:   cfg.ModelID,
		Device:    cfg.Device,
	}))
	svc := diffusion.NewService(diffusion.ServiceConfig{
		Manager:       a.Manager,
		EncodeWorkers: cfg.EncodeWorkers,
		MaxImageSide:  cfg.MaxImageSide,
		Logger:        log,
	})
	a.handler = func(base context.Context) http.Handler {
		return httpapi.NewImageMux(svc, a.httpOptions(base))
	}
	// the pool drains before the pipelines are released
	a.closers = append(a.closers, func() error { svc.Close(); return nil }, a.Manager.Close)
	return a, nil
}

func (a *App) newManager(load manager.LoadFunc) *manager.Manager {
	return manager.New(manager.Config{
		ModelID:       a.Config.ModelID,
		Device:        a.Config.Device,
		Load:          load,
		MaxQueueDepth: a.Config.MaxQueueDepth,
		MaxInflight:   a.Config.MaxInflight,
		MaxWait:       time.Duration(a.Config.MaxWaitSeconds) * time.Second,
		Publisher:     manager.PublisherFunc(a.logEvent),
		Logger:        &a.Log,
	})
}

func (a *App) httpOptions(base context.Context) httpapi.Options {
	c := a.Config
	return httpapi.Options{
		RoutePrefix:  c.RoutePrefix,
		MaxBodyBytes: c.MaxBodyBytes,
		InferTimeout: time.Duration(c.InferTimeoutSeconds) * time.Second,
		CORS: httpapi.CORSOptions{
			AllowedOrigins:   c.CORSAllowedOrigins,
			AllowedMethods:   c.CORSAllowedMethods,
			AllowedHeaders:   c.CORSAllowedHeaders,
			AllowCredentials: true,
		},
		BaseContext: base,
		Logger:      &a.Log,
	}
}

// Handler returns the HTTP handler; base is canceled on shutdown.
func (a *App) Handler(base context.Context) http.Handler { return a.handler(base) }

// Serve starts loading the model, serves HTTP on the configured address until
// ctx is done, then shuts the server down gracefully and releases the model.
func (a *App) Serve(ctx context.Context) error {
	base, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := &http.Server{
		Addr:              a.Config.Addr,
		Handler:           a.Handler(base),
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.Manager.Warm()

	errCh := make(chan error, 1)
	go func() {
		a.Log.Info().Str("addr", a.Config.Addr).Str("prefix", a.Config.RoutePrefix).
			Str("model", a.Config.ModelID).Str("device", a.Config.Device).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok {
			serveErr = fmt.Errorf("server error: %w", err)
		}
	}

	a.Log.Info().Msg("shutting down")
	sctx, scancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer scancel()
	if err := srv.Shutdown(sctx); err != nil {
		a.Log.Warn().Err(err).Msg("graceful shutdown error")
	}
	// cancel whatever inference is still running
	cancel()
	if err := a.Close(); err != nil {
		a.Log.Warn().Err(err).Msg("close error")
	}
	return serveErr
}

// Close releases the service and the loaded model.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// logEvent writes a manager lifecycle event to the process log.
func (a *App) logEvent(e manager.Event) {
	ev := a.Log.Info()
	if e.Name == manager.EventLoadFailed {
		ev = a.Log.Error()
	}
	ev = ev.Str("event", e.Name).Str("model", e.ModelID)
	if len(e.Fields) > 0 {
		ev = ev.Fields(e.Fields)
	}
	ev.Msg("model event")
}

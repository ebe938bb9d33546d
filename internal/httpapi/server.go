package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"modelserve/pkg/types"
)

// Lifecycle is implemented by every service: readiness and status come from
// its model holder.
type Lifecycle interface {
	Ready() bool
	Status() types.StatusResponse
	ListModels() []types.Model
}

// TextService defines the methods required by the text routes.
type TextService interface {
	Lifecycle
	Complete(ctx context.Context, req types.CompletionRequest) (types.CompletionResponse, error)
	StreamCompletion(ctx context.Context, req types.CompletionRequest, emit func(types.CompletionResponse) error) error
	Chat(ctx context.Context, req types.ChatCompletionRequest) (types.ChatCompletionResponse, error)
	StreamChat(ctx context.Context, req types.ChatCompletionRequest, emit func(types.ChatCompletionResponse) error) error
}

// ImageService defines the methods required by the image routes.
type ImageService interface {
	Lifecycle
	Generate(ctx context.Context, req types.ImageRequest) ([]types.ImageData, error)
	Upscale(ctx context.Context, req types.ImageRequest) ([]types.ImageData, error)
}

// NewTextMux serves /completions, /chat/completions and /models under the
// route prefix.
func NewTextMux(svc TextService, opts Options) http.Handler {
	opts = opts.withDefaults()
	h := &textHandlers{svc: svc, opts: opts}
	return newRouter(svc, opts, func(r chi.Router) {
		r.Post("/completions", h.completions)
		r.Post("/chat/completions", h.chatCompletions)
	})
}

// NewImageMux serves /images/generations, /images/upscale and /models under
// the route prefix.
func NewImageMux(svc ImageService, opts Options) http.Handler {
	opts = opts.withDefaults()
	h := &imageHandlers{svc: svc, opts: opts}
	return newRouter(svc, opts, func(r chi.Router) {
		r.Post("/images/generations", h.generations)
		r.Post("/images/upscale", h.upscale)
	})
}

func newRouter(svc Lifecycle, opts Options, routes func(chi.Router)) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if c := opts.CORS; len(c.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   c.AllowedOrigins,
			AllowedMethods:   c.AllowedMethods,
			AllowedHeaders:   c.AllowedHeaders,
			AllowCredentials: c.AllowCredentials,
			MaxAge:           300,
		}))
	}
	r.Use(middleware.Compress(5, "application/json"))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	api := func(r chi.Router) {
		r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
			models := svc.ListModels()
			if models == nil {
				models = []types.Model{}
			}
			writeJSON(w, types.ModelsResponse{Object: "list", Data: models})
		})
		routes(r)
	}
	if opts.RoutePrefix == "" {
		api(r)
	} else {
		r.Route(opts.RoutePrefix, api)
	}

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Status())
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)
	return r
}

// fail writes err as a JSON error unless the client is gone, and returns the
// status used for logging.
func fail(w http.ResponseWriter, r *http.Request, base context.Context, err error) int {
	if r.Context().Err() != nil || base.Err() != nil {
		// client disconnected or server shutting down
		return 499
	}
	status := statusFor(err)
	if status == http.StatusTooManyRequests {
		IncrementBackpressure("queue")
	}
	writeJSONError(w, status, err.Error())
	return status
}

package diffusion

import (
	"context"
	"fmt"
	"image"
	"strings"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"modelserve/internal/manager"
	"modelserve/pkg/types"
)

var tracer = otel.Tracer("modelserve/diffusion")

// DefaultResponseFormat is the key used for encoded images when the request
// does not name one.
const DefaultResponseFormat = "b64_json"

// Service adapts image requests onto the loaded pipelines.
type Service struct {
	mgr     *manager.Manager
	pool    *workerpool.WorkerPool
	log     zerolog.Logger
	maxSide int

	// closeMu orders pool submissions before Close stops the pool.
	closeMu sync.RWMutex
	closed  bool
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Manager *manager.Manager
	// EncodeWorkers bounds concurrent PNG encodes across requests.
	EncodeWorkers int
	// MaxImageSide bounds requested sizes and uploads; 0 means
	// DefaultMaxImageSide.
	MaxImageSide int
	Logger       zerolog.Logger
}

// NewService returns a Service bound to the given manager.
func NewService(cfg ServiceConfig) *Service {
	workers := cfg.EncodeWorkers
	if workers <= 0 {
		workers = 4
	}
	return &Service{
		mgr:     cfg.Manager,
		pool:    workerpool.New(workers),
		log:     cfg.Logger.With().Str("component", "diffusion").Logger(),
		maxSide: maxSideOr(cfg.MaxImageSide),
	}
}

// Manager exposes the underlying model holder for status and readiness.
func (s *Service) Manager() *manager.Manager { return s.mgr }

func (s *Service) Ready() bool { return s.mgr.Ready() }

func (s *Service) Status() types.StatusResponse { return s.mgr.Status() }

// Close stops the encoding pool after queued encodes finish. Requests that
// reach encoding afterwards fail with a dependency unavailable error.
func (s *Service) Close() {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return
	}
	s.closed = true
	s.closeMu.Unlock()
	s.pool.StopWait()
}

// ListModels reports the served model with its variant as family.
func (s *Service) ListModels() []types.Model {
	id := s.mgr.ModelID()
	return []types.Model{{ID: id, Object: "model", OwnedBy: "modelserve", Family: string(VariantFor(id))}}
}

// Generate runs text-to-image, or image-to-image when req carries an image.
func (s *Service) Generate(ctx context.Context, req types.ImageRequest) ([]types.ImageData, error) {
	return s.run(ctx, "generate", req, func(p *Pipelines, hasImage bool) (Pipeline, string, error) {
		return p.pipelineFor(hasImage)
	})
}

// Upscale runs the upscaler on the uploaded image.
func (s *Service) Upscale(ctx context.Context, req types.ImageRequest) ([]types.ImageData, error) {
	if len(req.Image) == 0 {
		return nil, invalidf("image is required for upscale")
	}
	return s.run(ctx, "upscale", req, func(p *Pipelines, _ bool) (Pipeline, string, error) {
		if p.Upscaler == nil {
			return nil, "upscale", pipelineUnavailableError{pipeline: "upscale", variant: p.Variant}
		}
		return p.Upscaler, "upscale", nil
	})
}

type pickFunc func(p *Pipelines, hasImage bool) (Pipeline, string, error)

func (s *Service) run(ctx context.Context, op string, req types.ImageRequest, pick pickFunc) (out []types.ImageData, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "diffusion."+op, trace.WithAttributes(
		attribute.String("model.id", s.mgr.ModelID()),
		attribute.Int("images.n", count(req.N)),
		attribute.String("images.size", req.Size),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		manager.ObserveInference(op, start, err)
	}()

	if req.N < 0 {
		return nil, invalidf("n must not be negative, got %d", req.N)
	}
	w, h, resize, err := ParseSize(req.Size, s.maxSide)
	if err != nil {
		return nil, err
	}
	var input image.Image
	if len(req.Image) > 0 {
		input, err = DecodeUpload(req.Image, s.maxSide)
		if err != nil {
			return nil, err
		}
		if resize && op == "generate" {
			input = Resize(input, w, h)
		}
	}

	hnd, err := s.mgr.Ensure(ctx)
	if err != nil {
		return nil, err
	}
	pipes, err := manager.As[*Pipelines](hnd)
	if err != nil {
		return nil, err
	}
	pl, name, err := pick(pipes, input != nil)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("diffusion.pipeline", name))

	release, err := s.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	n := count(req.N)
	imgs, err := pl.Run(ctx, callFrom(req, input, n))
	release()
	if err != nil {
		s.log.Warn().Err(err).Str("pipeline", name).Msg("pipeline failed")
		return nil, err
	}
	if len(imgs) == 0 {
		return nil, errNoImages
	}
	if len(imgs) != n {
		return nil, fmt.Errorf("%s pipeline returned %d images, want %d", name, len(imgs), n)
	}

	out, err = s.encode(ctx, imgs, resize, w, h, responseFormat(req.ResponseFormat))
	if err != nil {
		return nil, err
	}
	s.log.Debug().Str("pipeline", name).Int("n", n).Dur("elapsed", time.Since(start)).Msg("images generated")
	return out, nil
}

// encode resizes (when requested) and base64-PNG encodes images on the pool,
// preserving order.
func (s *Service) encode(ctx context.Context, imgs []image.Image, resize bool, w, h int, key string) ([]types.ImageData, error) {
	out := make([]types.ImageData, len(imgs))
	errs := make([]error, len(imgs))
	var wg sync.WaitGroup
	s.closeMu.RLock()
	if s.closed {
		s.closeMu.RUnlock()
		return nil, errServiceClosed
	}
	for i, img := range imgs {
		wg.Add(1)
		s.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				errs[i] = ctx.Err()
				return
			}
			if resize {
				img = Resize(img, w, h)
			}
			b64, err := encodeB64PNG(img)
			if err != nil {
				errs[i] = fmt.Errorf("encode image %d: %w", i, err)
				return
			}
			out[i] = types.ImageData{key: b64}
		})
	}
	s.closeMu.RUnlock()
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func callFrom(req types.ImageRequest, input image.Image, n int) Call {
	c := Call{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Image:          input,
		Steps:          req.StepCount,
		Guidance:       req.GuidanceScale,
		Seed:           req.Seed,
		NumImages:      n,
	}
	if c.Steps == 0 {
		c.Steps = DefaultSteps
	}
	if c.Guidance == 0 {
		c.Guidance = DefaultGuidance
	}
	return c
}

func count(n int) int {
	if n == 0 {
		return 1
	}
	return n
}

func responseFormat(f string) string {
	if f = strings.TrimSpace(f); f == "" {
		return DefaultResponseFormat
	}
	return f
}

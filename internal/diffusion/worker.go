package diffusion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"modelserve/internal/manager"
)

const msgpackContentType = "application/msgpack"

// Pipeline names understood by the worker.
const (
	workerTextToImage  = "text2img"
	workerImageToImage = "img2img"
	workerUpscale      = "upscale"
)

// loadRequest asks the worker to construct the pipelines for a model.
type loadRequest struct {
	ModelID          string `msgpack:"model_id"`
	Device           string `msgpack:"device"`
	Variant          string `msgpack:"variant"`
	DType            string `msgpack:"dtype"`
	AttentionSlicing bool   `msgpack:"attention_slicing"`
}

// loadResponse lists the pipelines the worker constructed.
type loadResponse struct {
	Pipelines []string `msgpack:"pipelines"`
}

// runRequest is one pipeline invocation. Image holds PNG bytes.
type runRequest struct {
	Prompt         string  `msgpack:"prompt"`
	NegativePrompt string  `msgpack:"negative_prompt,omitempty"`
	Image          []byte  `msgpack:"image,omitempty"`
	Steps          int     `msgpack:"num_inference_steps"`
	Guidance       float64 `msgpack:"guidance_scale"`
	Seed           int64   `msgpack:"seed"`
	HasSeed        bool    `msgpack:"has_seed"`
	NumImages      int     `msgpack:"num_images_per_prompt"`
}

// runResponse carries encoded output images.
type runResponse struct {
	Images [][]byte `msgpack:"images"`
}

// workerError is the body of a non-2xx worker reply.
type workerError struct {
	Error string `msgpack:"error"`
}

// WorkerClient talks to the diffusion worker process that owns the
// diffusers pipelines.
type WorkerClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewWorkerClient builds a client for baseURL. Requests carry their own
// deadlines through ctx.
func NewWorkerClient(baseURL string) *WorkerClient {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        16,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &WorkerClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Transport: tr},
	}
}

func (c *WorkerClient) call(ctx context.Context, path string, in, out any) error {
	body, err := msgpack.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", msgpackContentType)
	req.Header.Set("Accept", msgpackContentType)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return manager.ErrDependencyUnavailable("diffusion worker unreachable: " + err.Error())
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var we workerError
		if msgpack.Unmarshal(raw, &we) == nil && we.Error != "" {
			return fmt.Errorf("diffusion worker %s: %s", path, we.Error)
		}
		return fmt.Errorf("diffusion worker %s: %s", path, resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := msgpack.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// Load constructs the pipelines for modelID on device.
func (c *WorkerClient) Load(ctx context.Context, modelID, device string, v Variant) ([]string, error) {
	var resp loadResponse
	err := c.call(ctx, "/load", loadRequest{
		ModelID:          modelID,
		Device:           device,
		Variant:          string(v),
		DType:            "float16",
		AttentionSlicing: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Pipelines, nil
}

// Unload releases the worker's pipelines.
func (c *WorkerClient) Unload(ctx context.Context) error {
	return c.call(ctx, "/unload", struct{}{}, nil)
}

// workerPipeline runs one named pipeline on the worker.
type workerPipeline struct {
	client *WorkerClient
	name   string
}

func (p workerPipeline) Run(ctx context.Context, call Call) ([]image.Image, error) {
	req := runRequest{
		Prompt:         call.Prompt,
		NegativePrompt: call.NegativePrompt,
		Steps:          call.Steps,
		Guidance:       call.Guidance,
		NumImages:      call.NumImages,
	}
	if call.Seed != nil {
		req.Seed, req.HasSeed = *call.Seed, true
	}
	if call.Image != nil {
		b, err := encodePNG(call.Image)
		if err != nil {
			return nil, fmt.Errorf("encode conditioning image: %w", err)
		}
		req.Image = b
	}
	var resp runResponse
	if err := p.client.call(ctx, "/run/"+p.name, req, &resp); err != nil {
		return nil, err
	}
	out := make([]image.Image, 0, len(resp.Images))
	for _, b := range resp.Images {
		img, err := decodeOutput(b)
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, nil
}

// WorkerLoadConfig configures NewWorkerLoader.
type WorkerLoadConfig struct {
	WorkerURL string
	ModelID   string
	Device    string
}

// NewWorkerLoader returns the manager load function that constructs the
// pipelines on the worker. The handle is a *Pipelines.
func NewWorkerLoader(cfg WorkerLoadConfig) manager.LoadFunc {
	return func(ctx context.Context) (manager.Handle, error) {
		if strings.TrimSpace(cfg.WorkerURL) == "" {
			return nil, manager.ErrDependencyUnavailable("diffusion worker url is not configured")
		}
		variant := VariantFor(cfg.ModelID)
		client := NewWorkerClient(cfg.WorkerURL)
		names, err := client.Load(ctx, cfg.ModelID, cfg.Device, variant)
		if err != nil {
			return nil, err
		}
		p := &Pipelines{
			Variant: variant,
			closer: func() error {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return client.Unload(ctx)
			},
		}
		for _, n := range names {
			switch n {
			case workerTextToImage:
				p.TextToImage = workerPipeline{client: client, name: n}
			case workerImageToImage:
				p.ImageToImage = workerPipeline{client: client, name: n}
			case workerUpscale:
				p.Upscaler = workerPipeline{client: client, name: n}
			}
		}
		// the latent upscaler never exposes generation pipelines
		if variant == VariantLatentUpscaler {
			p.TextToImage, p.ImageToImage = nil, nil
		}
		if p.TextToImage == nil && p.ImageToImage == nil && p.Upscaler == nil {
			return nil, errors.New("diffusion worker constructed no pipelines")
		}
		return p, nil
	}
}

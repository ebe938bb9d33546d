package diffusion

import (
	"context"
	"errors"
	"image"
	"strings"
)

// Variant is the model family resolved once from the model id at load time.
type Variant string

const (
	// VariantStandard provides text-to-image, image-to-image and an upscaler
	// sharing the base model components.
	VariantStandard Variant = "standard"
	// VariantLatentUpscaler provides only the upscaler pipeline.
	VariantLatentUpscaler Variant = "latent-upscaler"
)

// VariantFor resolves the family of a diffusion model id.
func VariantFor(modelID string) Variant {
	if strings.Contains(strings.ToLower(modelID), "latent") {
		return VariantLatentUpscaler
	}
	return VariantStandard
}

// Default sampling parameters applied when a request leaves them unset.
const (
	DefaultSteps    = 25
	DefaultGuidance = 7.5
)

// Call holds the arguments of one pipeline invocation.
type Call struct {
	Prompt         string
	NegativePrompt string
	// Image conditions image-to-image and upscale calls.
	Image     image.Image
	Steps     int
	Guidance  float64
	Seed      *int64
	NumImages int
}

// Pipeline runs a diffusion pipeline and returns NumImages outputs.
type Pipeline interface {
	Run(ctx context.Context, call Call) ([]image.Image, error)
}

// Pipelines is the loaded model handle. Pipelines the variant does not
// construct are nil.
type Pipelines struct {
	Variant      Variant
	TextToImage  Pipeline
	ImageToImage Pipeline
	Upscaler     Pipeline

	closer func() error
}

// Close releases the pipelines.
func (p *Pipelines) Close() error {
	if p.closer == nil {
		return nil
	}
	err := p.closer()
	p.closer = nil
	return err
}

// pipelineFor picks the generation pipeline by image presence.
func (p *Pipelines) pipelineFor(hasImage bool) (Pipeline, string, error) {
	name, pl := "text-to-image", p.TextToImage
	if hasImage {
		name, pl = "image-to-image", p.ImageToImage
	}
	if pl == nil {
		return nil, name, pipelineUnavailableError{pipeline: name, variant: p.Variant}
	}
	return pl, name, nil
}

var errNoImages = errors.New("pipeline returned no images")

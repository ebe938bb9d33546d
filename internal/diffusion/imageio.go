package diffusion

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strconv"
	"strings"

	"github.com/anthonynsimon/bild/transform"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// DefaultMaxImageSide bounds the width and height of requested sizes and
// uploaded images.
const DefaultMaxImageSide = 4096

func maxSideOr(maxSide int) int {
	if maxSide <= 0 {
		return DefaultMaxImageSide
	}
	return maxSide
}

// uploadTypes are the image formats accepted as conditioning input.
var uploadTypes = []string{"image/png", "image/jpeg", "image/gif", "image/webp", "image/bmp"}

// ParseSize parses a "WxH" size string with both sides at most maxSide
// (DefaultMaxImageSide when maxSide <= 0). ok is false when s is empty,
// meaning the native pipeline size is kept.
func ParseSize(s string, maxSide int) (w, h int, ok bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, false, nil
	}
	ws, hs, found := strings.Cut(strings.ToLower(s), "x")
	if !found {
		return 0, 0, false, invalidf("invalid size %q: expected WxH", s)
	}
	w, errW := strconv.Atoi(strings.TrimSpace(ws))
	h, errH := strconv.Atoi(strings.TrimSpace(hs))
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0, 0, false, invalidf("invalid size %q: expected positive WxH", s)
	}
	if limit := maxSideOr(maxSide); w > limit || h > limit {
		return 0, 0, false, invalidf("size %q exceeds the maximum side of %d", s, limit)
	}
	return w, h, true, nil
}

// DecodeUpload sniffs and decodes an uploaded image and flattens it to
// opaque RGB. The header is checked first: images with a side above maxSide
// are rejected before any pixel buffer is allocated.
func DecodeUpload(b []byte, maxSide int) (image.Image, error) {
	if len(b) == 0 {
		return nil, invalidf("image is empty")
	}
	mt := mimetype.Detect(b)
	if !mimetype.EqualsAny(mt.String(), uploadTypes...) {
		return nil, invalidf("unsupported image type %s", mt.String())
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return nil, invalidf("decode %s: %v", mt.String(), err)
	}
	limit := maxSideOr(maxSide)
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > limit || cfg.Height > limit {
		return nil, invalidf("image is %dx%d, sides must be between 1 and %d", cfg.Width, cfg.Height, limit)
	}
	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, invalidf("decode %s: %v", mt.String(), err)
	}
	return toRGB(img), nil
}

// decodeOutput decodes an image produced by the worker (png or bmp).
func decodeOutput(b []byte) (image.Image, error) {
	mt := mimetype.Detect(b)
	if !mt.Is("image/png") && !mt.Is("image/bmp") {
		return nil, fmt.Errorf("unexpected worker output type %s", mt.String())
	}
	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("decode worker output: %w", err)
	}
	return img, nil
}

// toRGB composites img over black and drops the alpha channel.
func toRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

// Resize scales img to exactly w×h, ignoring aspect ratio.
func Resize(img image.Image, w, h int) image.Image {
	if b := img.Bounds(); b.Dx() == w && b.Dy() == h {
		return img
	}
	return transform.Resize(img, w, h, transform.CatmullRom)
}

// encodePNG returns the PNG encoding of img.
func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeB64PNG returns img as base64 PNG text.
func encodeB64PNG(img image.Image) (string, error) {
	b, err := encodePNG(img)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

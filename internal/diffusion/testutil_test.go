package diffusion

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"modelserve/internal/manager"
)

// fakePipeline produces native×native noise images seeded from the call.
type fakePipeline struct {
	mu     sync.Mutex
	calls  []Call
	native int
	short  bool // return one image fewer than asked
}

func (f *fakePipeline) Run(ctx context.Context, c Call) ([]image.Image, error) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
	seed := time.Now().UnixNano()
	if c.Seed != nil {
		seed = *c.Seed
	}
	r := rand.New(rand.NewSource(seed))
	n := c.NumImages
	if f.short {
		n--
	}
	out := make([]image.Image, 0, n)
	for i := 0; i < n; i++ {
		img := image.NewRGBA(image.Rect(0, 0, f.native, f.native))
		for p := 0; p < len(img.Pix); p += 4 {
			img.Pix[p], img.Pix[p+1], img.Pix[p+2], img.Pix[p+3] = uint8(r.Intn(256)), uint8(r.Intn(256)), uint8(r.Intn(256)), 255
		}
		out = append(out, img)
	}
	return out, nil
}

func (f *fakePipeline) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

func standardPipelines() (*Pipelines, *fakePipeline, *fakePipeline, *fakePipeline) {
	t2i, i2i, up := &fakePipeline{native: 64}, &fakePipeline{native: 64}, &fakePipeline{native: 128}
	return &Pipelines{Variant: VariantStandard, TextToImage: t2i, ImageToImage: i2i, Upscaler: up}, t2i, i2i, up
}

func newTestService(t *testing.T, p *Pipelines) *Service {
	t.Helper()
	mgr := manager.New(manager.Config{
		ModelID: "stabilityai/stable-diffusion-2-1",
		Load:    func(context.Context) (manager.Handle, error) { return p, nil },
	})
	svc := NewService(ServiceConfig{Manager: mgr, Logger: zerolog.Nop()})
	t.Cleanup(svc.Close)
	return svc
}

// pngBytes returns a w×h PNG with a translucent pixel at the origin.
func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	img.Set(0, 0, color.NRGBA{R: 255, A: 0})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

// decodeB64PNG decodes one response entry back into an image.
func decodeB64PNG(t *testing.T, s string) image.Image {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		t.Fatalf("base64: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("png: %v", err)
	}
	return img
}

// pngWithHeaderSize returns a 1x1 PNG whose IHDR claims w×h.
func pngWithHeaderSize(t *testing.T, w, h uint32) []byte {
	t.Helper()
	b := append([]byte(nil), pngBytes(t, 1, 1)...)
	// signature(8) length(4) "IHDR"(4) then width and height
	binary.BigEndian.PutUint32(b[16:20], w)
	binary.BigEndian.PutUint32(b[20:24], h)
	binary.BigEndian.PutUint32(b[29:33], crc32.ChecksumIEEE(b[12:29]))
	return b
}

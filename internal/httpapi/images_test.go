package httpapi

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"modelserve/pkg/types"
)

func multipartRequest(t *testing.T, path string, fields map[string]string, image []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if image != nil {
		fw, err := mw.CreateFormFile("image", "input.png")
		if err != nil {
			t.Fatalf("create file: %v", err)
		}
		_, _ = fw.Write(image)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeImages(t *testing.T, w *httptest.ResponseRecorder) []types.ImageData {
	t.Helper()
	var out []types.ImageData
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not a JSON array: %v (%q)", err, w.Body.String())
	}
	return out
}

func TestGenerationsJSON(t *testing.T) {
	svc := &fakeImages{}
	h := NewImageMux(svc, Options{RoutePrefix: "/v1"})
	w := postJSON(h, "/v1/images/generations",
		`{"prompt":"a cat","n":2,"size":"256x256","response_format":"b64_json","seed":0,"guidance_scale":5,"step_count":10,"negative_prompt":"dog"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	out := decodeImages(t, w)
	if len(out) != 2 {
		t.Fatalf("expected 2 images, got %d", len(out))
	}
	for _, d := range out {
		if len(d) != 1 || d["b64_json"] == "" {
			t.Fatalf("each image must carry exactly the b64_json key: %v", d)
		}
	}
	op, req, _ := svc.seen()
	if op != "generate" || req.Prompt != "a cat" || req.Size != "256x256" || req.StepCount != 10 ||
		req.GuidanceScale != 5 || req.NegativePrompt != "dog" || len(req.Image) != 0 {
		t.Fatalf("unexpected forwarded request: op=%s req=%+v", op, req)
	}
	if req.Seed == nil || *req.Seed != 0 {
		t.Fatalf("explicit seed 0 must be forwarded, got %v", req.Seed)
	}
}

func TestGenerationsJSONBase64Image(t *testing.T) {
	svc := &fakeImages{}
	h := NewImageMux(svc, Options{})
	// "\x89PNG" base64 encoded, once raw and once as a data URL
	for _, img := range []string{"iVBORw==", "data:image/png;base64,iVBORw=="} {
		w := postJSON(h, "/images/generations", `{"prompt":"p","image":"`+img+`"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
		}
		_, req, _ := svc.seen()
		if !bytes.Equal(req.Image, []byte("\x89PNG")) {
			t.Fatalf("image bytes=%q", req.Image)
		}
		if req.ImageB64 != "" {
			t.Fatalf("base64 field should be cleared after decoding")
		}
	}
}

func TestGenerationsBadBase64(t *testing.T) {
	svc := &fakeImages{}
	h := NewImageMux(svc, Options{})
	w := postJSON(h, "/images/generations", `{"prompt":"p","image":"%%%"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
	if _, _, n := svc.seen(); n != 0 {
		t.Fatalf("service must not be called for invalid input")
	}
}

func TestGenerationsMultipart(t *testing.T) {
	svc := &fakeImages{}
	h := NewImageMux(svc, Options{RoutePrefix: "/v1", MaxBodyBytes: 1 << 20})
	req := multipartRequest(t, "/v1/images/generations", map[string]string{
		"prompt":          "a cat",
		"n":               "3",
		"size":            "512x512",
		"response_format": "url_safe",
		"seed":            "42",
		"guidance_scale":  "8.5",
		"step_count":      "30",
	}, []byte("\x89PNG fake"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	out := decodeImages(t, w)
	if len(out) != 3 || out[0]["url_safe"] == "" {
		t.Fatalf("unexpected output: %v", out)
	}
	_, got, _ := svc.seen()
	if got.N != 3 || got.Size != "512x512" || got.StepCount != 30 || got.GuidanceScale != 8.5 {
		t.Fatalf("fields not parsed: %+v", got)
	}
	if got.Seed == nil || *got.Seed != 42 {
		t.Fatalf("seed=%v", got.Seed)
	}
	if string(got.Image) != "\x89PNG fake" {
		t.Fatalf("image=%q", got.Image)
	}
}

func TestGenerationsMultipartWithoutImage(t *testing.T) {
	svc := &fakeImages{}
	h := NewImageMux(svc, Options{})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, multipartRequest(t, "/images/generations", map[string]string{"prompt": "a cat"}, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if _, got, _ := svc.seen(); got.Image != nil || got.Seed != nil {
		t.Fatalf("expected no image and no seed: %+v", got)
	}
}

func TestGenerationsMultipartBadNumber(t *testing.T) {
	for _, field := range []string{"n", "seed", "guidance_scale", "step_count"} {
		svc := &fakeImages{}
		h := NewImageMux(svc, Options{})
		w := httptest.NewRecorder()
		h.ServeHTTP(w, multipartRequest(t, "/images/generations", map[string]string{"prompt": "p", field: "many"}, nil))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status=%d", field, w.Code)
		}
	}
}

func TestGenerationsUnsupportedMediaType(t *testing.T) {
	h := NewImageMux(&fakeImages{}, Options{})
	req := httptest.NewRequest(http.MethodPost, "/images/generations", bytes.NewBufferString("prompt=a"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestUpscaleRoute(t *testing.T) {
	svc := &fakeImages{}
	h := NewImageMux(svc, Options{RoutePrefix: "/v1"})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, multipartRequest(t, "/v1/images/upscale", map[string]string{"prompt": "sharp", "size": "1024x1024"}, []byte("img")))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if op, req, _ := svc.seen(); op != "upscale" || req.Size != "1024x1024" {
		t.Fatalf("op=%s req=%+v", op, req)
	}
}

func TestImageErrorStatus(t *testing.T) {
	svc := &fakeImages{err: statusErr{msg: "text-to-image pipeline is not available", code: http.StatusNotImplemented}}
	h := NewImageMux(svc, Options{})
	w := postJSON(h, "/images/generations", `{"prompt":"p"}`)
	if w.Code != http.StatusNotImplemented {
		t.Fatalf("status=%d", w.Code)
	}
	if e := decodeError(t, w); e.Error == "" || e.Code != http.StatusNotImplemented {
		t.Fatalf("unexpected error body: %+v", e)
	}
}

func TestImageBodyTooLarge(t *testing.T) {
	h := NewImageMux(&fakeImages{}, Options{MaxBodyBytes: 128})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, multipartRequest(t, "/images/generations", map[string]string{"prompt": "p"}, bytes.Repeat([]byte{1}, 4096)))
	if w.Code != http.StatusRequestEntityTooLarge && w.Code != http.StatusBadRequest {
		t.Fatalf("expected the oversized upload to be rejected, got %d", w.Code)
	}
}

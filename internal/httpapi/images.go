package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"modelserve/pkg/types"
)

// maxMultipartMemory is the part of a multipart body kept in memory; the rest
// spills to temporary files.
const maxMultipartMemory = 8 << 20

type imageHandlers struct {
	svc  ImageService
	opts Options
}

// generations godoc
// @Summary      Generate images
// @Description  Text-to-image, or image-to-image when an image is uploaded. Each output is returned as {response_format: base64 PNG}.
// @Tags         images
// @Accept       json
// @Accept       mpfd
// @Produce      json
// @Param        request  body      types.ImageRequest  true  "Generation request"
// @Success      200      {array}   types.ImageData
// @Failure      400      {object}  types.ErrorResponse
// @Failure      415      {object}  types.ErrorResponse
// @Failure      429      {object}  types.ErrorResponse
// @Failure      501      {object}  types.ErrorResponse
// @Failure      503      {object}  types.ErrorResponse
// @Router       /images/generations [post]
func (h *imageHandlers) generations(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "generate", h.svc.Generate)
}

// upscale godoc
// @Summary      Upscale an image
// @Description  Runs the upscaler on the uploaded image. Outputs are resized to size when given.
// @Tags         images
// @Accept       mpfd
// @Accept       json
// @Produce      json
// @Param        request  body      types.ImageRequest  true  "Upscale request"
// @Success      200      {array}   types.ImageData
// @Failure      400      {object}  types.ErrorResponse
// @Failure      501      {object}  types.ErrorResponse
// @Router       /images/upscale [post]
func (h *imageHandlers) upscale(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "upscale", h.svc.Upscale)
}

type imageOp func(context.Context, types.ImageRequest) ([]types.ImageData, error)

func (h *imageHandlers) serve(w http.ResponseWriter, r *http.Request, op string, run imageOp) {
	rl := beginRequest(h.opts.Logger, r, op)
	req, err := parseImageRequest(w, r, h.opts.MaxBodyBytes)
	if err != nil {
		rl.end(writeRequestError(w, err), err)
		return
	}

	ctx, cancel := inferContext(h.opts.BaseContext, r.Context(), h.opts.InferTimeout)
	defer cancel()

	data, err := run(ctx, req)
	if err != nil {
		rl.end(fail(w, r, h.opts.BaseContext, err), err)
		return
	}
	writeJSON(w, data)
	rl.end(http.StatusOK, nil)
}

// parseImageRequest reads a JSON or multipart/form-data image request. JSON
// bodies may carry the input image base64 encoded in "image"; multipart
// bodies carry it as a file part of the same name.
func parseImageRequest(w http.ResponseWriter, r *http.Request, limit int64) (types.ImageRequest, error) {
	var req types.ImageRequest
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	switch mediaType(r) {
	case "application/json":
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, bodyError(err)
		}
		if req.ImageB64 != "" {
			img, err := decodeImageB64(req.ImageB64)
			if err != nil {
				return req, err
			}
			req.Image = img
			req.ImageB64 = ""
		}
		return req, nil
	case "multipart/form-data":
		return parseMultipart(r)
	default:
		return req, requestError{status: http.StatusUnsupportedMediaType, msg: "Content-Type must be application/json or multipart/form-data"}
	}
}

func parseMultipart(r *http.Request) (types.ImageRequest, error) {
	var req types.ImageRequest
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return req, requestError{status: http.StatusRequestEntityTooLarge, msg: "request body too large"}
		}
		return req, badRequest("invalid multipart body")
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var err error
	req.Prompt = r.FormValue("prompt")
	req.Size = strings.TrimSpace(r.FormValue("size"))
	req.ResponseFormat = strings.TrimSpace(r.FormValue("response_format"))
	req.NegativePrompt = r.FormValue("negative_prompt")
	if req.N, err = formInt(r, "n"); err != nil {
		return req, err
	}
	if req.StepCount, err = formInt(r, "step_count"); err != nil {
		return req, err
	}
	if v := strings.TrimSpace(r.FormValue("guidance_scale")); v != "" {
		if req.GuidanceScale, err = strconv.ParseFloat(v, 64); err != nil {
			return req, badRequest("guidance_scale must be a number")
		}
	}
	if v := strings.TrimSpace(r.FormValue("seed")); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return req, badRequest("seed must be an integer")
		}
		req.Seed = &seed
	}

	f, _, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		if v := r.FormValue("image"); v != "" {
			if req.Image, err = decodeImageB64(v); err != nil {
				return req, err
			}
		}
	case err != nil:
		return req, badRequest("invalid image upload")
	default:
		defer f.Close()
		if req.Image, err = io.ReadAll(f); err != nil {
			return req, badRequest("invalid image upload")
		}
	}
	return req, nil
}

func formInt(r *http.Request, key string) (int, error) {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequest(key + " must be an integer")
	}
	return n, nil
}

// decodeImageB64 accepts raw base64 or a data URL.
func decodeImageB64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.IndexByte(s, ','); i >= 0 {
			s = s[i+1:]
		}
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, badRequest("image must be base64 encoded")
	}
	return b, nil
}

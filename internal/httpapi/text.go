package httpapi

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"modelserve/pkg/types"
)

type textHandlers struct {
	svc  TextService
	opts Options
}

// completions godoc
// @Summary      Text completion
// @Description  Generates n completions for the prompt. With stream=true the single completion is sent as server-sent events terminated by [DONE].
// @Tags         text
// @Accept       json
// @Produce      json
// @Produce      text/event-stream
// @Param        request  body      types.CompletionRequest  true  "Completion request"
// @Success      200      {object}  types.CompletionResponse
// @Failure      400      {object}  types.ErrorResponse
// @Failure      415      {object}  types.ErrorResponse
// @Failure      429      {object}  types.ErrorResponse
// @Failure      503      {object}  types.ErrorResponse
// @Router       /completions [post]
func (h *textHandlers) completions(w http.ResponseWriter, r *http.Request) {
	rl := beginRequest(h.opts.Logger, r, "completion")
	var req types.CompletionRequest
	if err := decodeJSON(w, r, h.opts.MaxBodyBytes, &req); err != nil {
		rl.end(writeRequestError(w, err), err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		err := badRequest("prompt is required")
		rl.end(writeRequestError(w, err), err)
		return
	}
	if req.N < 0 {
		err := badRequest("n must not be negative")
		rl.end(writeRequestError(w, err), err)
		return
	}
	if req.Stream && req.N > 1 {
		err := badRequest("n must be 1 when streaming")
		rl.end(writeRequestError(w, err), err)
		return
	}

	ctx, cancel := inferContext(h.opts.BaseContext, r.Context(), h.opts.InferTimeout)
	defer cancel()

	if req.Stream {
		sse := newSSEWriter(w, rl.streamTap())
		err := h.svc.StreamCompletion(ctx, req, func(c types.CompletionResponse) error {
			streamEventsTotal.WithLabelValues("completion").Inc()
			return sse.send(c)
		})
		rl.end(finishStream(w, r, h.opts, sse, err), err)
		return
	}

	resp, err := h.svc.Complete(ctx, req)
	if err != nil {
		rl.end(fail(w, r, h.opts.BaseContext, err), err)
		return
	}
	writeJSON(w, resp)
	rl.end(http.StatusOK, nil)
}

// chatCompletions godoc
// @Summary      Chat completion
// @Description  Generates the next assistant message for the conversation. With stream=true deltas are sent as server-sent events.
// @Tags         text
// @Accept       json
// @Produce      json
// @Produce      text/event-stream
// @Param        request  body      types.ChatCompletionRequest  true  "Chat request"
// @Success      200      {object}  types.ChatCompletionResponse
// @Failure      400      {object}  types.ErrorResponse
// @Failure      415      {object}  types.ErrorResponse
// @Failure      429      {object}  types.ErrorResponse
// @Failure      503      {object}  types.ErrorResponse
// @Router       /chat/completions [post]
func (h *textHandlers) chatCompletions(w http.ResponseWriter, r *http.Request) {
	rl := beginRequest(h.opts.Logger, r, "chat")
	var req types.ChatCompletionRequest
	if err := decodeJSON(w, r, h.opts.MaxBodyBytes, &req); err != nil {
		rl.end(writeRequestError(w, err), err)
		return
	}
	if len(req.Messages) == 0 {
		err := badRequest("messages must not be empty")
		rl.end(writeRequestError(w, err), err)
		return
	}
	if req.N < 0 {
		err := badRequest("n must not be negative")
		rl.end(writeRequestError(w, err), err)
		return
	}
	if req.Stream && req.N > 1 {
		err := badRequest("n must be 1 when streaming")
		rl.end(writeRequestError(w, err), err)
		return
	}

	ctx, cancel := inferContext(h.opts.BaseContext, r.Context(), h.opts.InferTimeout)
	defer cancel()

	if req.Stream {
		sse := newSSEWriter(w, rl.streamTap())
		err := h.svc.StreamChat(ctx, req, func(c types.ChatCompletionResponse) error {
			streamEventsTotal.WithLabelValues("chat").Inc()
			return sse.send(c)
		})
		rl.end(finishStream(w, r, h.opts, sse, err), err)
		return
	}

	resp, err := h.svc.Chat(ctx, req)
	if err != nil {
		rl.end(fail(w, r, h.opts.BaseContext, err), err)
		return
	}
	writeJSON(w, resp)
	rl.end(http.StatusOK, nil)
}

// finishStream terminates an event stream. Errors before the first event
// become a regular JSON error; later errors are sent as a final error event.
func finishStream(w http.ResponseWriter, r *http.Request, opts Options, sse *sseWriter, err error) int {
	if err == nil {
		_ = sse.done()
		return http.StatusOK
	}
	if !sse.started {
		return fail(w, r, opts.BaseContext, err)
	}
	if r.Context().Err() == nil {
		status := statusFor(err)
		_ = sse.send(types.ErrorResponse{Error: err.Error(), Code: status})
	}
	return http.StatusOK
}

// decodeJSON enforces the content type and body limit and decodes one JSON
// value into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	if mediaType(r) != "application/json" {
		return requestError{status: http.StatusUnsupportedMediaType, msg: "Content-Type must be application/json"}
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return bodyError(err)
	}
	return nil
}

func bodyError(err error) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return requestError{status: http.StatusRequestEntityTooLarge, msg: "request body too large"}
	}
	return badRequest("invalid JSON body")
}

// mediaType returns the media type of the request body, lower-cased.
func mediaType(r *http.Request) string {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	return mt
}

// writeRequestError writes a validation failure and returns its status.
func writeRequestError(w http.ResponseWriter, err error) int {
	status := statusFor(err)
	writeJSONError(w, status, err.Error())
	return status
}

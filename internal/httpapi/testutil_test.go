package httpapi

import (
	"context"
	"errors"
	"sync"
	"time"

	"modelserve/internal/manager"
	"modelserve/pkg/types"
)

type fakeLifecycle struct {
	ready  bool
	status types.StatusResponse
	models []types.Model
}

func (f *fakeLifecycle) Ready() bool                  { return f.ready }
func (f *fakeLifecycle) Status() types.StatusResponse { return f.status }
func (f *fakeLifecycle) ListModels() []types.Model    { return append([]types.Model(nil), f.models...) }

type fakeText struct {
	fakeLifecycle
	mu       sync.Mutex
	err      error
	tokens   []string
	failAt   int // stream fails after this many tokens when > 0
	block    bool
	lastComp types.CompletionRequest
	lastChat types.ChatCompletionRequest
}

func (f *fakeText) Complete(ctx context.Context, req types.CompletionRequest) (types.CompletionResponse, error) {
	f.mu.Lock()
	f.lastComp = req
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return types.CompletionResponse{}, ctx.Err()
	}
	if f.err != nil {
		return types.CompletionResponse{}, f.err
	}
	n := max(1, req.N)
	resp := types.CompletionResponse{ID: "cmpl-1", Object: "text_completion", Model: "m"}
	for i := 0; i < n; i++ {
		resp.Choices = append(resp.Choices, types.CompletionChoice{Index: i, Text: "hello", FinishReason: "stop"})
	}
	return resp, nil
}

func (f *fakeText) StreamCompletion(ctx context.Context, req types.CompletionRequest, emit func(types.CompletionResponse) error) error {
	f.mu.Lock()
	f.lastComp = req
	f.mu.Unlock()
	if f.err != nil && f.failAt == 0 {
		return f.err
	}
	for i, tok := range f.tokens {
		if f.failAt > 0 && i == f.failAt {
			return f.err
		}
		if err := emit(types.CompletionResponse{ID: "cmpl-1", Object: "text_completion",
			Choices: []types.CompletionChoice{{Text: tok}}}); err != nil {
			return err
		}
	}
	return emit(types.CompletionResponse{ID: "cmpl-1", Object: "text_completion",
		Choices: []types.CompletionChoice{{FinishReason: "stop"}}})
}

func (f *fakeText) Chat(ctx context.Context, req types.ChatCompletionRequest) (types.ChatCompletionResponse, error) {
	f.mu.Lock()
	f.lastChat = req
	f.mu.Unlock()
	if f.err != nil {
		return types.ChatCompletionResponse{}, f.err
	}
	return types.ChatCompletionResponse{
		ID: "chatcmpl-1", Object: "chat.completion", Model: "m",
		Choices: []types.ChatChoice{{Message: &types.ChatMessage{Role: "assistant", Content: "hi there"}, FinishReason: "stop"}},
	}, nil
}

func (f *fakeText) StreamChat(ctx context.Context, req types.ChatCompletionRequest, emit func(types.ChatCompletionResponse) error) error {
	f.mu.Lock()
	f.lastChat = req
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if err := emit(types.ChatCompletionResponse{Object: "chat.completion.chunk",
		Choices: []types.ChatChoice{{Delta: &types.ChatMessage{Role: "assistant"}}}}); err != nil {
		return err
	}
	for _, tok := range f.tokens {
		if err := emit(types.ChatCompletionResponse{Object: "chat.completion.chunk",
			Choices: []types.ChatChoice{{Delta: &types.ChatMessage{Content: tok}}}}); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeText) completionReq() types.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastComp
}

func (f *fakeText) chatReq() types.ChatCompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastChat
}

type fakeImages struct {
	fakeLifecycle
	mu       sync.Mutex
	err      error
	lastOp   string
	last     types.ImageRequest
	requests int
}

func (f *fakeImages) record(op string, req types.ImageRequest) ([]types.ImageData, error) {
	f.mu.Lock()
	f.lastOp, f.last = op, req
	f.requests++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	key := req.ResponseFormat
	if key == "" {
		key = "b64_json"
	}
	out := make([]types.ImageData, max(1, req.N))
	for i := range out {
		out[i] = types.ImageData{key: "iVBORw0KGgo="}
	}
	return out, nil
}

func (f *fakeImages) Generate(_ context.Context, req types.ImageRequest) ([]types.ImageData, error) {
	return f.record("generate", req)
}

func (f *fakeImages) Upscale(_ context.Context, req types.ImageRequest) ([]types.ImageData, error) {
	return f.record("upscale", req)
}

func (f *fakeImages) seen() (string, types.ImageRequest, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastOp, f.last, f.requests
}

type statusErr struct {
	msg  string
	code int
}

func (e statusErr) Error() string   { return e.msg }
func (e statusErr) StatusCode() int { return e.code }

// tooBusy returns the manager's backpressure error.
func tooBusy() error {
	m := manager.New(manager.Config{ModelID: "m", MaxQueueDepth: 1, MaxWait: time.Millisecond})
	release, err := m.Acquire(context.Background())
	if err != nil {
		panic(err)
	}
	defer release()
	_, err = m.Acquire(context.Background())
	if !manager.IsTooBusy(err) {
		panic(errors.New("expected too busy"))
	}
	return err
}

package textgen

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"modelserve/internal/manager"
	"modelserve/internal/registry"
	"modelserve/pkg/types"
)

var tracer = otel.Tracer("modelserve/textgen")

// requestError is a malformed request; it maps to 400.
type requestError string

func (e requestError) Error() string { return string(e) }

func (e requestError) StatusCode() int { return http.StatusBadRequest }

var (
	// ErrEmptyMessages is returned for a chat request without messages.
	ErrEmptyMessages error = requestError("messages must not be empty")
	// ErrNegativeCount is returned when n is below zero.
	ErrNegativeCount error = requestError("n must not be negative")
)

// Service adapts HTTP completion requests onto the loaded text model.
type Service struct {
	mgr       *manager.Manager
	backend   Backend
	modelsDir string
	now       func() time.Time
	log       zerolog.Logger
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Manager   *manager.Manager
	Backend   Backend
	ModelsDir string
	Logger    zerolog.Logger
}

// NewService returns a Service bound to the given manager.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		mgr:       cfg.Manager,
		backend:   cfg.Backend,
		modelsDir: cfg.ModelsDir,
		now:       time.Now,
		log:       cfg.Logger.With().Str("component", "textgen").Logger(),
	}
}

// Manager exposes the underlying model holder for status and readiness.
func (s *Service) Manager() *manager.Manager { return s.mgr }

// Ready reports whether the model finished loading.
func (s *Service) Ready() bool { return s.mgr.Ready() }

// Status reports the model lifecycle and admission queue.
func (s *Service) Status() types.StatusResponse { return s.mgr.Status() }

// CompletionChunk is one streamed fragment of a completion.
type CompletionChunk = types.CompletionResponse

// ChatChunk is one streamed fragment of a chat completion.
type ChatChunk = types.ChatCompletionResponse

// Complete runs req.N generations for the prompt and returns them in order.
func (s *Service) Complete(ctx context.Context, req types.CompletionRequest) (types.CompletionResponse, error) {
	if req.N < 0 {
		return types.CompletionResponse{}, ErrNegativeCount
	}
	resp := types.CompletionResponse{
		ID:      "cmpl-" + uuid.NewString(),
		Object:  "text_completion",
		Created: s.now().Unix(),
		Model:   s.mgr.ModelID(),
	}
	params := paramsFrom(req.SamplingParams)
	err := s.run(ctx, "completion", func(ctx context.Context, m Model) error {
		for i := 0; i < count(req.N); i++ {
			res, err := m.Complete(ctx, req.Prompt, params, nil)
			if err != nil {
				return err
			}
			resp.Choices = append(resp.Choices, types.CompletionChoice{Index: i, Text: res.Text, FinishReason: res.FinishReason})
			addUsage(&resp.Usage, res.Usage)
		}
		return nil
	})
	if err != nil {
		return types.CompletionResponse{}, err
	}
	return resp, nil
}

// StreamCompletion generates a single completion and passes each token to
// emit as a chunk. A final chunk carries the finish reason.
func (s *Service) StreamCompletion(ctx context.Context, req types.CompletionRequest, emit func(CompletionChunk) error) error {
	if req.N < 0 {
		return ErrNegativeCount
	}
	id := "cmpl-" + uuid.NewString()
	created := s.now().Unix()
	model := s.mgr.ModelID()
	chunk := func(text, finish string) CompletionChunk {
		return CompletionChunk{
			ID: id, Object: "text_completion", Created: created, Model: model,
			Choices: []types.CompletionChoice{{Index: 0, Text: text, FinishReason: finish}},
		}
	}
	params := paramsFrom(req.SamplingParams)
	return s.run(ctx, "completion_stream", func(ctx context.Context, m Model) error {
		res, err := m.Complete(ctx, req.Prompt, params, func(tok string) error {
			return emit(chunk(tok, ""))
		})
		if err != nil {
			return err
		}
		return emit(chunk("", finishOr(res.FinishReason)))
	})
}

// Chat runs req.N assistant generations for the conversation.
func (s *Service) Chat(ctx context.Context, req types.ChatCompletionRequest) (types.ChatCompletionResponse, error) {
	if len(req.Messages) == 0 {
		return types.ChatCompletionResponse{}, ErrEmptyMessages
	}
	if req.N < 0 {
		return types.ChatCompletionResponse{}, ErrNegativeCount
	}
	resp := types.ChatCompletionResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: s.now().Unix(),
		Model:   s.mgr.ModelID(),
		Usage:   &types.Usage{},
	}
	msgs := toMessages(req.Messages)
	params := paramsFrom(req.SamplingParams)
	err := s.run(ctx, "chat", func(ctx context.Context, m Model) error {
		for i := 0; i < count(req.N); i++ {
			res, err := m.Chat(ctx, msgs, params, nil)
			if err != nil {
				return err
			}
			resp.Choices = append(resp.Choices, types.ChatChoice{
				Index:        i,
				Message:      &types.ChatMessage{Role: "assistant", Content: res.Text},
				FinishReason: res.FinishReason,
			})
			addUsage(resp.Usage, res.Usage)
		}
		return nil
	})
	if err != nil {
		return types.ChatCompletionResponse{}, err
	}
	return resp, nil
}

// StreamChat streams one assistant turn as chat.completion.chunk objects.
func (s *Service) StreamChat(ctx context.Context, req types.ChatCompletionRequest, emit func(ChatChunk) error) error {
	if len(req.Messages) == 0 {
		return ErrEmptyMessages
	}
	if req.N < 0 {
		return ErrNegativeCount
	}
	id := "chatcmpl-" + uuid.NewString()
	created := s.now().Unix()
	model := s.mgr.ModelID()
	chunk := func(delta *types.ChatMessage, finish string) ChatChunk {
		return ChatChunk{
			ID: id, Object: "chat.completion.chunk", Created: created, Model: model,
			Choices: []types.ChatChoice{{Index: 0, Delta: delta, FinishReason: finish}},
		}
	}
	msgs := toMessages(req.Messages)
	params := paramsFrom(req.SamplingParams)
	return s.run(ctx, "chat_stream", func(ctx context.Context, m Model) error {
		if err := emit(chunk(&types.ChatMessage{Role: "assistant"}, "")); err != nil {
			return err
		}
		res, err := m.Chat(ctx, msgs, params, func(tok string) error {
			return emit(chunk(&types.ChatMessage{Content: tok}, ""))
		})
		if err != nil {
			return err
		}
		return emit(chunk(&types.ChatMessage{}, finishOr(res.FinishReason)))
	})
}

// ListModels reports the served model. For the llamacpp backend other GGUF
// files found in the models directory are listed after it.
func (s *Service) ListModels() []types.Model {
	id := s.mgr.ModelID()
	out := []types.Model{{ID: id, Object: "model", OwnedBy: "modelserve"}}
	if s.backend != BackendLlamaCPP || s.modelsDir == "" {
		return out
	}
	found, err := registry.LoadDir(s.modelsDir)
	if err != nil {
		s.log.Debug().Err(err).Str("dir", s.modelsDir).Msg("models dir scan failed")
		return out
	}
	for _, m := range found {
		if m.ID == id {
			out[0] = m
			continue
		}
		out = append(out, m)
	}
	return out
}

// run resolves the model, takes an admission slot and calls fn inside a span.
func (s *Service) run(ctx context.Context, op string, fn func(context.Context, Model) error) (err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "textgen."+op, trace.WithAttributes(
		attribute.String("model.id", s.mgr.ModelID()),
		attribute.String("text.backend", string(s.backend)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		manager.ObserveInference(op, start, err)
	}()

	h, err := s.mgr.Ensure(ctx)
	if err != nil {
		return err
	}
	m, err := manager.As[Model](h)
	if err != nil {
		return err
	}
	release, err := s.mgr.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	err = fn(ctx, m)
	if err != nil {
		s.log.Warn().Err(err).Str("op", op).Dur("elapsed", time.Since(start)).Msg("generation failed")
		return err
	}
	s.log.Debug().Str("op", op).Dur("elapsed", time.Since(start)).Msg("generation done")
	return nil
}

func paramsFrom(p types.SamplingParams) Params {
	return Params{
		Temperature:   float32(p.Temperature),
		TopP:          float32(p.TopP),
		TopK:          p.TopK,
		MaxTokens:     p.MaxTokens,
		Stop:          p.Stop,
		Seed:          int(p.Seed),
		RepeatPenalty: float32(p.RepeatPenalty),
	}
}

func toMessages(in []types.ChatMessage) []Message {
	out := make([]Message, 0, len(in))
	for _, m := range in {
		out = append(out, Message{Role: strings.TrimSpace(m.Role), Content: m.Content})
	}
	return out
}

func count(n int) int {
	if n == 0 {
		return 1
	}
	return n
}

func finishOr(reason string) string {
	if reason == "" {
		return "stop"
	}
	return reason
}

func addUsage(dst *types.Usage, u Usage) {
	dst.PromptTokens += u.PromptTokens
	dst.CompletionTokens += u.CompletionTokens
	dst.TotalTokens += u.TotalTokens
}

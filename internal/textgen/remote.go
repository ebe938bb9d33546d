package textgen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// remoteModel forwards generation to an OpenAI-compatible runtime. The
// runtime owns the weights; this process only holds the client.
type remoteModel struct {
	client *openai.Client
	model  string
}

// newRemoteModel builds a client for baseURL. A baseURL without a version
// path gets "/v1" appended.
func newRemoteModel(baseURL, apiKey, model string) (*remoteModel, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil, errors.New("runtime url is empty")
	}
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = base
	return &remoteModel{client: openai.NewClientWithConfig(cfg), model: model}, nil
}

// ping checks that the runtime answers and serves the configured model.
func (r *remoteModel) ping(ctx context.Context) error {
	list, err := r.client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("runtime unreachable: %w", err)
	}
	for _, m := range list.Models {
		if m.ID == r.model {
			return nil
		}
	}
	return fmt.Errorf("runtime does not serve model %q", r.model)
}

func (r *remoteModel) Complete(ctx context.Context, prompt string, params Params, onToken func(string) error) (Result, error) {
	req := openai.CompletionRequest{
		Model:       r.model,
		Prompt:      prompt,
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
		TopP:        params.TopP,
		Stop:        params.Stop,
		Seed:        seedPtr(params.Seed),
	}
	if onToken == nil {
		resp, err := r.client.CreateCompletion(ctx, req)
		if err != nil {
			return Result{}, err
		}
		if len(resp.Choices) == 0 {
			return Result{}, errors.New("runtime returned no choices")
		}
		return Result{
			Text:         resp.Choices[0].Text,
			FinishReason: resp.Choices[0].FinishReason,
			Usage:        fromOpenAIUsage(resp.Usage),
		}, nil
	}

	req.Stream = true
	stream, err := r.client.CreateCompletionStream(ctx, req)
	if err != nil {
		return Result{}, err
	}
	defer stream.Close()
	var (
		b   strings.Builder
		res Result
	)
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, err
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		c := chunk.Choices[0]
		if c.Text != "" {
			b.WriteString(c.Text)
			if err := onToken(c.Text); err != nil {
				return res, err
			}
		}
		if c.FinishReason != "" {
			res.FinishReason = c.FinishReason
		}
	}
	res.Text = b.String()
	return res, nil
}

func (r *remoteModel) Chat(ctx context.Context, msgs []Message, params Params, onToken func(string) error) (Result, error) {
	req := openai.ChatCompletionRequest{
		Model:       r.model,
		Messages:    toOpenAIMessages(msgs),
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
		TopP:        params.TopP,
		Stop:        params.Stop,
		Seed:        seedPtr(params.Seed),
	}
	if onToken == nil {
		resp, err := r.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return Result{}, err
		}
		if len(resp.Choices) == 0 {
			return Result{}, errors.New("runtime returned no choices")
		}
		return Result{
			Text:         resp.Choices[0].Message.Content,
			FinishReason: string(resp.Choices[0].FinishReason),
			Usage:        fromOpenAIUsage(resp.Usage),
		}, nil
	}

	req.Stream = true
	stream, err := r.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return Result{}, err
	}
	defer stream.Close()
	var (
		b   strings.Builder
		res Result
	)
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, err
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		c := chunk.Choices[0]
		if c.Delta.Content != "" {
			b.WriteString(c.Delta.Content)
			if err := onToken(c.Delta.Content); err != nil {
				return res, err
			}
		}
		if c.FinishReason != "" {
			res.FinishReason = string(c.FinishReason)
		}
	}
	res.Text = b.String()
	return res, nil
}

// Close is a no-op; the runtime process owns the weights.
func (r *remoteModel) Close() error { return nil }

func seedPtr(seed int) *int {
	if seed == 0 {
		return nil
	}
	return &seed
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

func fromOpenAIUsage(u openai.Usage) Usage {
	return Usage{PromptTokens: u.PromptTokens, CompletionTokens: u.CompletionTokens, TotalTokens: u.TotalTokens}
}

package backend

import (
	"context"
	"fmt"

	"github.com/caseline/caseline/internal/common/config"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

// OpenAIAdapter implements Adapter for any OpenAI-compatible chat completion
// API. Groq exposes one at https://api.groq.com/openai/v1, so a Groq backend
// is this adapter with the base URL pointed there.
type OpenAIAdapter struct {
	logger *zap.Logger
	client openai.Client
	info   Backend
}

var _ Adapter = (*OpenAIAdapter)(nil)

// NewOpenAIAdapter creates an adapter for an OpenAI-compatible provider.
func NewOpenAIAdapter(logger *zap.Logger, cfg config.BackendConfig) *OpenAIAdapter {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIAdapter{
		logger: logger.Named("backend." + cfg.Name),
		client: openai.NewClient(opts...),
		info: Backend{
			Name:          cfg.Name,
			Provider:      cfg.Provider,
			Model:         cfg.Model,
			Capabilities:  Capabilities{Streaming: true, Vision: cfg.Vision},
			APIKeyPresent: cfg.APIKey != "",
		},
	}
}

// Info implements Adapter.Info
func (a *OpenAIAdapter) Info() Backend {
	return a.info
}

// CompleteSync implements Adapter.CompleteSync
func (a *OpenAIAdapter) CompleteSync(ctx context.Context, req *Request) (*Completion, error) {
	completion, err := a.client.Chat.Completions.New(ctx, a.buildParams(req))
	if err != nil {
		return nil, err
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("%s returned no choices", a.info.Name)
	}

	choice := completion.Choices[0]
	confidence := 0.4
	switch choice.FinishReason {
	case "stop":
		confidence = 0.9
	case "length":
		confidence = 0.6
	}
	return &Completion{
		Text:       choice.Message.Content,
		Model:      completion.Model,
		Confidence: confidence,
	}, nil
}

// CompleteStreaming implements Adapter.CompleteStreaming
func (a *OpenAIAdapter) CompleteStreaming(ctx context.Context, req *Request) (<-chan Chunk, error) {
	stream := a.client.Chat.Completions.NewStreaming(ctx, a.buildParams(req))
	if err := stream.Err(); err != nil {
		return nil, err
	}

	out := make(chan Chunk, 16)
	go func() {
		defer close(out)
		defer stream.Close()
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			if delta := chunk.Choices[0].Delta.Content; delta != "" {
				out <- Chunk{Text: delta}
			}
		}
		if err := stream.Err(); err != nil {
			out <- Chunk{Err: err}
		}
	}()

	return out, nil
}

// buildParams maps the provider-independent request onto chat completion params.
func (a *OpenAIAdapter) buildParams(req *Request) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+1)
	for _, m := range req.History {
		switch m.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(m.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    openai.ChatModel(a.info.Model),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	return params
}

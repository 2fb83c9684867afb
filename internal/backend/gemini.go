package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/caseline/caseline/internal/common/config"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GeminiAdapter implements Adapter on top of the Google GenAI SDK.
type GeminiAdapter struct {
	logger *zap.Logger
	client *genai.Client
	info   Backend
}

var _ Adapter = (*GeminiAdapter)(nil)

// NewGeminiAdapter creates a Gemini-backed adapter from configuration.
func NewGeminiAdapter(ctx context.Context, logger *zap.Logger, cfg config.BackendConfig) (*GeminiAdapter, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiAdapter{
		logger: logger.Named("backend.gemini"),
		client: client,
		info: Backend{
			Name:          cfg.Name,
			Provider:      cfg.Provider,
			Model:         cfg.Model,
			Capabilities:  Capabilities{Streaming: true, Vision: cfg.Vision},
			APIKeyPresent: cfg.APIKey != "",
		},
	}, nil
}

// Info implements Adapter.Info
func (a *GeminiAdapter) Info() Backend {
	return a.info
}

// CompleteSync implements Adapter.CompleteSync
func (a *GeminiAdapter) CompleteSync(ctx context.Context, req *Request) (*Completion, error) {
	contents, cfg := a.buildRequest(req)
	resp, err := a.client.Models.GenerateContent(ctx, a.info.Model, contents, cfg)
	if err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini returned no candidates (check safety filters)")
	}

	candidate := resp.Candidates[0]
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		text.WriteString(part.Text)
	}
	return &Completion{
		Text:       text.String(),
		Model:      a.info.Model,
		Confidence: geminiConfidence(candidate.FinishReason),
	}, nil
}

// CompleteStreaming implements Adapter.CompleteStreaming
func (a *GeminiAdapter) CompleteStreaming(ctx context.Context, req *Request) (<-chan Chunk, error) {
	contents, cfg := a.buildRequest(req)
	out := make(chan Chunk, 16)

	go func() {
		defer close(out)
		for resp, err := range a.client.Models.GenerateContentStream(ctx, a.info.Model, contents, cfg) {
			if err != nil {
				out <- Chunk{Err: err}
				return
			}
			if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
				continue
			}
			for _, part := range resp.Candidates[0].Content.Parts {
				if part.Text != "" {
					out <- Chunk{Text: part.Text}
				}
			}
		}
	}()

	return out, nil
}

// buildRequest maps the provider-independent request onto genai contents.
// System turns become the system instruction, assistant turns the model role.
func (a *GeminiAdapter) buildRequest(req *Request) ([]*genai.Content, *genai.GenerateContentConfig) {
	var system []string
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, m := range req.History {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
		case "assistant":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	contents = append(contents, genai.NewContentFromText(req.Prompt, genai.RoleUser))

	cfg := &genai.GenerateContentConfig{}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n"), genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}
	return contents, cfg
}

// geminiConfidence maps the finish reason onto the confidence scale used for
// consensus ranking. A clean stop ranks above truncated or filtered output.
func geminiConfidence(reason genai.FinishReason) float64 {
	switch reason {
	case genai.FinishReasonStop:
		return 0.9
	case genai.FinishReasonMaxTokens:
		return 0.6
	default:
		return 0.4
	}
}

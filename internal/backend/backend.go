package backend

import (
	"context"
)

// Capabilities are the static capability flags of a configured backend.
type Capabilities struct {
	Streaming bool `json:"streaming"`
	Vision    bool `json:"vision"`
}

// Backend describes one configured AI completion provider. It is built at
// startup from configuration and immutable thereafter; rolling statistics
// live in StatsTracker, not here, so descriptors are safe to share.
type Backend struct {
	Name          string       `json:"name"`
	Provider      string       `json:"provider"`
	Model         string       `json:"model"`
	Capabilities  Capabilities `json:"capabilities"`
	APIKeyPresent bool         `json:"api_key_present"`
}

// Message is one turn of conversation context passed to a backend.
type Message struct {
	Role    string `json:"role"` // "user", "assistant" or "system"
	Content string `json:"content"`
}

// Request is a provider-independent completion request.
type Request struct {
	Prompt      string
	History     []Message
	MaxTokens   int
	Temperature float64
}

// Completion is the settled result of a sync completion.
type Completion struct {
	Text       string
	Model      string
	Confidence float64
}

// Chunk is one increment of a streamed completion. A chunk with Err set
// terminates the stream; the channel is closed after the final chunk either
// way. Streams are finite, single-pass and never restart.
type Chunk struct {
	Text string
	Err  error
}

// Adapter is the capability every concrete backend implements. Adapters are
// interchangeable from the coordinator's point of view.
type Adapter interface {
	Info() Backend
	CompleteSync(ctx context.Context, req *Request) (*Completion, error)
	CompleteStreaming(ctx context.Context, req *Request) (<-chan Chunk, error)
}

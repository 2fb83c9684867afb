package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/caseline/caseline/internal/backend"
	"github.com/caseline/caseline/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type nopTransport struct{}

func (nopTransport) SendText([]byte) error { return nil }
func (nopTransport) Close(int, string) error { return nil }

type fixedAdapter struct {
	info backend.Backend
}

func (a *fixedAdapter) Info() backend.Backend { return a.info }

func (a *fixedAdapter) CompleteSync(context.Context, *backend.Request) (*backend.Completion, error) {
	return &backend.Completion{Text: "ok", Model: a.info.Model, Confidence: 1}, nil
}

func (a *fixedAdapter) CompleteStreaming(context.Context, *backend.Request) (<-chan backend.Chunk, error) {
	ch := make(chan backend.Chunk)
	close(ch)
	return ch, nil
}

func TestHandleHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	registry := realtime.NewRegistry(zap.NewNop())
	registry.Connect(nopTransport{}, "room-1", "alice")
	registry.Connect(nopTransport{}, "room-1", "bob")

	backends := backend.NewRegistry()
	backends.Register("gemini", &fixedAdapter{info: backend.Backend{
		Name:         "gemini",
		Model:        "gemini-2.0-flash",
		Capabilities: backend.Capabilities{Streaming: true},
	}})

	stats := backend.NewStatsTracker()
	stats.RecordSuccess("gemini", 100*time.Millisecond)
	stats.RecordFailure("gemini", 100*time.Millisecond, assert.AnError)

	engine := gin.New()
	engine.GET("/health", NewHealth(registry, backends, stats).HandleHealth)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status     string `json:"status"`
		Components struct {
			Connections struct {
				Total   int            `json:"total"`
				PerRoom map[string]int `json:"per_room"`
			} `json:"connections"`
			Backends map[string]struct {
				Model     string  `json:"model"`
				Requests  int64   `json:"requests"`
				Successes int64   `json:"successes"`
				Failures  int64   `json:"failures"`
				Latency   float64 `json:"avg_latency_seconds"`
			} `json:"backends"`
		} `json:"components"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 2, body.Components.Connections.Total)
	assert.Equal(t, 2, body.Components.Connections.PerRoom["room-1"])

	gemini, ok := body.Components.Backends["gemini"]
	require.True(t, ok)
	assert.Equal(t, "gemini-2.0-flash", gemini.Model)
	assert.Equal(t, int64(2), gemini.Requests)
	assert.Equal(t, int64(1), gemini.Successes)
	assert.Equal(t, int64(1), gemini.Failures)
	assert.InDelta(t, 0.1, gemini.Latency, 0.001)
}

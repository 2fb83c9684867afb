package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/caseline/caseline/internal/apiserver/database"
	"github.com/caseline/caseline/internal/backend"
	"github.com/caseline/caseline/internal/coordinator"
	"github.com/caseline/caseline/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// historyWindow bounds how much persisted context a completion carries.
const historyWindow = 20

// CompletionService is the slice of the coordinator the HTTP surface needs.
type CompletionService interface {
	GetResponse(ctx context.Context, conversationID string, req *backend.Request, preferred string) (*coordinator.Result, error)
	GetConsensus(ctx context.Context, conversationID string, req *backend.Request, names []string) (*coordinator.ConsensusResult, error)
	StreamResponse(ctx context.Context, conversationID string, req *backend.Request, preferred string) <-chan coordinator.StreamEvent
	ClearAffinity(ctx context.Context, conversationID string) error
}

// Completions serves synchronous completion requests against a room.
type Completions struct {
	logger      *zap.Logger
	svc         CompletionService
	db          database.Database
	broadcaster *realtime.Broadcaster
}

// NewCompletions creates the completions handler.
func NewCompletions(logger *zap.Logger, svc CompletionService, db database.Database, broadcaster *realtime.Broadcaster) *Completions {
	return &Completions{
		logger:      logger.Named("handler.completions"),
		svc:         svc,
		db:          db,
		broadcaster: broadcaster,
	}
}

type completionRequest struct {
	Prompt           string   `json:"prompt" binding:"required"`
	Sender           string   `json:"sender"`
	PreferredBackend string   `json:"preferred_backend"`
	Mode             string   `json:"mode"`     // "single" (default) or "consensus"
	Backends         []string `json:"backends"` // consensus participants; empty means all
	MaxTokens        int      `json:"max_tokens"`
	Temperature      float64  `json:"temperature"`
}

// HandleCreateCompletion runs a completion for a room and broadcasts the
// outcome to its live connections. The response body carries the same result.
func (h *Completions) HandleCreateCompletion(c *gin.Context) {
	roomID := c.Param("id")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room id is required"})
		return
	}

	var req completionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Sender == "" {
		req.Sender = "api"
	}

	ctx := c.Request.Context()
	if err := h.db.CreateRoom(ctx, roomID, ""); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to prepare room"})
		return
	}

	history, err := h.loadHistory(ctx, roomID)
	if err != nil {
		h.logger.Warn("failed to load history, continuing without it",
			zap.String("room", roomID), zap.Error(err))
	}

	if err := h.db.SaveMessage(ctx, &database.Message{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		Sender:    req.Sender,
		Role:      "user",
		Content:   req.Prompt,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save message"})
		return
	}
	h.broadcaster.BroadcastMessage(roomID, realtime.Event{
		Type:   realtime.EventMessage,
		Room:   roomID,
		Sender: req.Sender,
		Text:   req.Prompt,
	}, "")

	llmReq := &backend.Request{
		Prompt:      req.Prompt,
		History:     history,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	if req.Mode == "consensus" {
		h.runConsensus(c, roomID, req, llmReq)
		return
	}

	result, err := h.svc.GetResponse(ctx, roomID, llmReq, req.PreferredBackend)
	if err != nil {
		h.respondError(c, roomID, err)
		return
	}
	h.finish(c, roomID, result)
}

func (h *Completions) runConsensus(c *gin.Context, roomID string, req completionRequest, llmReq *backend.Request) {
	consensus, err := h.svc.GetConsensus(c.Request.Context(), roomID, llmReq, req.Backends)
	if err != nil {
		h.respondError(c, roomID, err)
		return
	}

	h.persistAndBroadcast(c.Request.Context(), roomID, consensus.Best)
	c.JSON(http.StatusOK, gin.H{
		"best":      resultBody(consensus.Best),
		"responses": resultBodies(consensus.Responses),
		"failures":  consensus.Failures,
	})
}

func (h *Completions) finish(c *gin.Context, roomID string, result *coordinator.Result) {
	h.persistAndBroadcast(c.Request.Context(), roomID, result)
	c.JSON(http.StatusOK, resultBody(result))
}

func (h *Completions) persistAndBroadcast(ctx context.Context, roomID string, result *coordinator.Result) {
	if err := h.db.SaveMessage(ctx, &database.Message{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		Sender:    result.Backend,
		Role:      "assistant",
		Content:   result.Text,
		Backend:   result.Backend,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		h.logger.Error("failed to persist assistant message",
			zap.String("room", roomID), zap.Error(err))
	}
	h.broadcaster.BroadcastMessage(roomID, realtime.Event{
		Type:       realtime.EventComplete,
		Room:       roomID,
		Text:       result.Text,
		Backend:    result.Backend,
		Model:      result.Model,
		Confidence: result.Confidence,
		Latency:    result.Latency.Seconds(),
		Attempted:  result.Attempted,
	}, "")
}

func (h *Completions) respondError(c *gin.Context, roomID string, err error) {
	h.broadcaster.BroadcastError(roomID)

	var exhausted *coordinator.ExhaustedError
	if errors.As(err, &exhausted) {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":     "all backends failed",
			"attempted": exhausted.Attempted,
		})
		return
	}
	var backendErr *coordinator.BackendError
	if errors.As(err, &backendErr) {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "backend failed",
			"backend": backendErr.Name,
		})
		return
	}
	if errors.Is(err, backend.ErrNotConfigured) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "completion failed"})
}

// HandleClearAffinity drops the room's sticky backend, letting the next
// completion walk from the configured default again. Used when a
// conversation ends or an operator wants to reset routing.
func (h *Completions) HandleClearAffinity(c *gin.Context) {
	roomID := c.Param("id")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room id is required"})
		return
	}
	if err := h.svc.ClearAffinity(c.Request.Context(), roomID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear affinity"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": roomID, "affinity": "cleared"})
}

// loadHistory converts the tail of the room's persisted transcript into
// provider-neutral messages, oldest first.
func (h *Completions) loadHistory(ctx context.Context, roomID string) ([]backend.Message, error) {
	messages, err := h.db.GetRecentMessages(ctx, roomID, historyWindow)
	if err != nil {
		return nil, err
	}
	history := make([]backend.Message, 0, len(messages))
	for _, m := range messages {
		history = append(history, backend.Message{Role: m.Role, Content: m.Content})
	}
	return history, nil
}

func resultBody(r *coordinator.Result) gin.H {
	return gin.H{
		"text":            r.Text,
		"backend":         r.Backend,
		"model":           r.Model,
		"confidence":      r.Confidence,
		"latency_seconds": r.Latency.Seconds(),
		"attempted":       r.Attempted,
	}
}

func resultBodies(results []*coordinator.Result) []gin.H {
	bodies := make([]gin.H, 0, len(results))
	for _, r := range results {
		bodies = append(bodies, resultBody(r))
	}
	return bodies
}

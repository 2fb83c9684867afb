package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/caseline/caseline/internal/apiserver/database"
	"github.com/caseline/caseline/internal/backend"
	"github.com/caseline/caseline/internal/realtime"
	"github.com/caseline/caseline/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// completionTimeout bounds a socket-initiated completion, including fallback.
const completionTimeout = 5 * time.Minute

// frameCompletion is the one inbound frame type with no broadcast
// counterpart in the realtime event tags.
const frameCompletion = "completion"

// WS upgrades HTTP requests to websocket connections and pumps inbound frames
// into the registry, the store and the coordinator.
type WS struct {
	logger      *zap.Logger
	upgrader    websocket.Upgrader
	registry    *realtime.Registry
	broadcaster *realtime.Broadcaster
	svc         CompletionService
	db          database.Database
	metrics     *metrics.Metrics
}

// NewWS creates the websocket handler.
func NewWS(logger *zap.Logger, registry *realtime.Registry, broadcaster *realtime.Broadcaster, svc CompletionService, db database.Database, m *metrics.Metrics) *WS {
	return &WS{
		logger: logger.Named("handler.ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		registry:    registry,
		broadcaster: broadcaster,
		svc:         svc,
		db:          db,
		metrics:     m,
	}
}

// wsFrame is an inbound client frame. Type selects which fields matter.
type wsFrame struct {
	Type             string   `json:"type"` // message, typing, heartbeat, completion
	Text             string   `json:"text,omitempty"`
	PreferredBackend string   `json:"preferred_backend,omitempty"`
	MaxTokens        int      `json:"max_tokens,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
}

// HandleWS joins the caller to a room and serves its frames until the socket
// closes or the connection goes stale.
func (h *WS) HandleWS(c *gin.Context) {
	roomID := c.Query("room")
	userID := c.Query("user")
	if roomID == "" || userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room and user query parameters are required"})
		return
	}

	if err := h.db.CreateRoom(c.Request.Context(), roomID, ""); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to prepare room"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			zap.String("room", roomID), zap.Error(err))
		return
	}

	connection := h.registry.Connect(realtime.NewWSTransport(conn), roomID, userID)
	if h.metrics != nil {
		h.metrics.WSConnected()
	}
	h.logger.Info("websocket connected",
		zap.String("connection", connection.ID),
		zap.String("room", roomID),
		zap.String("user", userID))

	defer func() {
		h.registry.Disconnect(connection.ID)
		if h.metrics != nil {
			h.metrics.WSDisconnected()
		}
		h.logger.Info("websocket disconnected",
			zap.String("connection", connection.ID),
			zap.String("room", roomID))
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("websocket read failed",
					zap.String("connection", connection.ID), zap.Error(err))
			}
			return
		}

		var frame wsFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			h.logger.Debug("dropping malformed frame",
				zap.String("connection", connection.ID), zap.Error(err))
			continue
		}

		// Any inbound traffic proves liveness.
		h.registry.RecordHeartbeat(connection.ID)

		switch frame.Type {
		case realtime.EventHeartbeat:
			// Already recorded above.
		case realtime.EventTyping:
			h.broadcaster.BroadcastMessage(roomID, realtime.Event{
				Type:   realtime.EventTyping,
				Room:   roomID,
				Sender: userID,
			}, connection.ID)
		case realtime.EventMessage:
			h.handleMessage(roomID, userID, frame)
		case frameCompletion:
			h.handleMessage(roomID, userID, frame)
			go h.runCompletion(roomID, userID, frame)
		default:
			h.logger.Debug("ignoring unknown frame type",
				zap.String("type", frame.Type))
		}
	}
}

func (h *WS) handleMessage(roomID, userID string, frame wsFrame) {
	if frame.Text == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.db.SaveMessage(ctx, &database.Message{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		Sender:    userID,
		Role:      "user",
		Content:   frame.Text,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		h.logger.Error("failed to persist message",
			zap.String("room", roomID), zap.Error(err))
	}
	h.broadcaster.BroadcastMessage(roomID, realtime.Event{
		Type:   realtime.EventMessage,
		Room:   roomID,
		Sender: userID,
		Text:   frame.Text,
	}, "")
}

// runCompletion streams a response into the room. It runs detached from the
// requesting socket so the answer still reaches the room if the requester
// drops mid-stream.
func (h *WS) runCompletion(roomID, userID string, frame wsFrame) {
	ctx, cancel := context.WithTimeout(context.Background(), completionTimeout)
	defer cancel()

	history, err := h.loadHistory(ctx, roomID)
	if err != nil {
		h.logger.Warn("failed to load history, continuing without it",
			zap.String("room", roomID), zap.Error(err))
	}

	req := &backend.Request{
		Prompt:    frame.Text,
		History:   history,
		MaxTokens: frame.MaxTokens,
	}
	if frame.Temperature != nil {
		req.Temperature = *frame.Temperature
	}

	events := h.svc.StreamResponse(ctx, roomID, req, frame.PreferredBackend)
	result, err := h.broadcaster.StreamChunks(roomID, events)
	if err != nil {
		h.logger.Error("streamed completion failed",
			zap.String("room", roomID),
			zap.String("user", userID),
			zap.Error(err))
		return
	}

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
}

func (h *WS) loadHistory(ctx context.Context, roomID string) ([]backend.Message, error) {
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

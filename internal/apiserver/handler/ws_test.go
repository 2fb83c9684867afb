package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/caseline/caseline/internal/apiserver/database"
	"github.com/caseline/caseline/internal/common/config"
	"github.com/caseline/caseline/internal/coordinator"
	"github.com/caseline/caseline/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newWSServer(t *testing.T, svc CompletionService) (*httptest.Server, database.Database) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewDatabase(&config.DatabaseConfig{Type: "sqlite", DBName: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	registry := realtime.NewRegistry(zap.NewNop())
	broadcaster := realtime.NewBroadcaster(zap.NewNop(), registry, nil)
	registry.SetEventSink(broadcaster)

	engine := gin.New()
	engine.GET("/api/ws", NewWS(zap.NewNop(), registry, broadcaster, svc, db, nil).HandleWS)
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	return srv, db
}

func dialRoom(t *testing.T, srv *httptest.Server, room, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws?room=" + room + "&user=" + user
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, frame map[string]any) {
	t.Helper()
	payload, err := json.Marshal(frame)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))
}

// readUntil discards events (join announcements and the like) until one of
// the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, eventType string) realtime.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, payload, err := conn.ReadMessage()
		require.NoError(t, err)
		var ev realtime.Event
		require.NoError(t, json.Unmarshal(payload, &ev))
		if ev.Type == eventType {
			return ev
		}
	}
}

func TestHandleWSRejectsMissingParams(t *testing.T) {
	srv, _ := newWSServer(t, &fakeCompletionService{})

	resp, err := http.Get(srv.URL + "/api/ws?room=room-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleWSMessageFrameReachesRoom(t *testing.T) {
	srv, db := newWSServer(t, &fakeCompletionService{})

	alice := dialRoom(t, srv, "room-1", "alice")
	bob := dialRoom(t, srv, "room-1", "bob")

	sendFrame(t, alice, map[string]any{"type": realtime.EventMessage, "text": "hello"})

	ev := readUntil(t, bob, realtime.EventMessage)
	assert.Equal(t, "hello", ev.Text)
	assert.Equal(t, "alice", ev.Sender)

	// Delivery happens after the save, so the row is already there.
	messages, err := db.GetMessages(context.Background(), "room-1")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "hello", messages[0].Content)
}

func TestHandleWSTypingFrameExcludesSender(t *testing.T) {
	srv, _ := newWSServer(t, &fakeCompletionService{})

	alice := dialRoom(t, srv, "room-1", "alice")
	bob := dialRoom(t, srv, "room-1", "bob")

	sendFrame(t, alice, map[string]any{"type": realtime.EventTyping})

	ev := readUntil(t, bob, realtime.EventTyping)
	assert.Equal(t, "alice", ev.Sender)
}

func TestHandleWSCompletionFrameStreamsToRoom(t *testing.T) {
	svc := &fakeCompletionService{result: &coordinator.Result{
		Text:    "the answer",
		Backend: "gemini",
		Model:   "gemini-2.0-flash",
	}}
	srv, db := newWSServer(t, svc)

	alice := dialRoom(t, srv, "room-1", "alice")
	bob := dialRoom(t, srv, "room-1", "bob")

	sendFrame(t, alice, map[string]any{"type": frameCompletion, "text": "what happened?"})

	// The prompt is echoed to the room first, then the streamed answer.
	prompt := readUntil(t, bob, realtime.EventMessage)
	assert.Equal(t, "what happened?", prompt.Text)

	chunk := readUntil(t, bob, realtime.EventChunk)
	assert.Equal(t, "the answer", chunk.Text)

	done := readUntil(t, bob, realtime.EventComplete)
	assert.Equal(t, "gemini", done.Backend)

	// The assistant turn is persisted once the stream settles.
	require.Eventually(t, func() bool {
		messages, err := db.GetMessages(context.Background(), "room-1")
		if err != nil {
			return false
		}
		for _, m := range messages {
			if m.Role == "assistant" && m.Backend == "gemini" {
				return true
			}
		}
		return false
	}, 3*time.Second, 20*time.Millisecond)
}

func TestHandleWSIgnoresUnknownFrames(t *testing.T) {
	srv, _ := newWSServer(t, &fakeCompletionService{})

	alice := dialRoom(t, srv, "room-1", "alice")
	bob := dialRoom(t, srv, "room-1", "bob")

	sendFrame(t, alice, map[string]any{"type": "bogus", "text": "ignored"})
	sendFrame(t, alice, map[string]any{"type": realtime.EventMessage, "text": "after"})

	// The bogus frame produced nothing; the next delivery is the real message.
	ev := readUntil(t, bob, realtime.EventMessage)
	assert.Equal(t, "after", ev.Text)
}

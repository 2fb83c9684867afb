package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/caseline/caseline/internal/common/config"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) Database {
	t.Helper()
	db, err := NewDatabase(&config.DatabaseConfig{Type: "sqlite", DBName: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func saveMessageAt(t *testing.T, db Database, roomID, content string, at time.Time) {
	t.Helper()
	require.NoError(t, db.SaveMessage(context.Background(), &Message{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		Sender:    "alice",
		Role:      "user",
		Content:   content,
		Timestamp: at,
	}))
}

func TestCreateRoomIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.CreateRoom(ctx, "room-1", "Case One"))
	require.NoError(t, db.CreateRoom(ctx, "room-1", "Renamed"))

	exists, err := db.RoomExists(ctx, "room-1")
	require.NoError(t, err)
	assert.True(t, exists)

	rooms, err := db.GetRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	// The second create is a no-op, not an update.
	assert.Equal(t, "Case One", rooms[0].Name)
}

func TestRoomExistsUnknown(t *testing.T) {
	db := newTestDB(t)
	exists, err := db.RoomExists(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMessagesChronologicalOrder(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.CreateRoom(ctx, "room-1", ""))

	base := time.Now().UTC().Truncate(time.Second)
	saveMessageAt(t, db, "room-1", "second", base.Add(time.Second))
	saveMessageAt(t, db, "room-1", "first", base)
	saveMessageAt(t, db, "room-1", "third", base.Add(2*time.Second))

	messages, err := db.GetMessages(ctx, "room-1")
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "first", messages[0].Content)
	assert.Equal(t, "second", messages[1].Content)
	assert.Equal(t, "third", messages[2].Content)
}

func TestMessagesPagination(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.CreateRoom(ctx, "room-1", ""))

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		saveMessageAt(t, db, "room-1", fmt.Sprintf("msg-%d", i), base.Add(time.Duration(i)*time.Second))
	}

	page1, err := db.GetMessagesWithPagination(ctx, "room-1", 1, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, "msg-0", page1[0].Content)

	page3, err := db.GetMessagesWithPagination(ctx, "room-1", 3, 2)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Equal(t, "msg-4", page3[0].Content)
}

func TestRecentMessagesReturnsLatestWindow(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.CreateRoom(ctx, "room-1", ""))

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 25; i++ {
		saveMessageAt(t, db, "room-1", fmt.Sprintf("msg-%d", i), base.Add(time.Duration(i)*time.Second))
	}

	messages, err := db.GetRecentMessages(ctx, "room-1", 20)
	require.NoError(t, err)
	require.Len(t, messages, 20)

	// The window is the newest 20 turns, still in chronological order.
	assert.Equal(t, "msg-5", messages[0].Content)
	assert.Equal(t, "msg-24", messages[len(messages)-1].Content)
	for i := 1; i < len(messages); i++ {
		assert.False(t, messages[i].Timestamp.Before(messages[i-1].Timestamp))
	}
}

func TestRecentMessagesFewerThanLimit(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	base := time.Now().UTC()
	saveMessageAt(t, db, "room-1", "only", base)

	messages, err := db.GetRecentMessages(ctx, "room-1", 20)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "only", messages[0].Content)
}

func TestMessagesScopedToRoom(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	saveMessageAt(t, db, "room-1", "mine", now)
	saveMessageAt(t, db, "room-2", "theirs", now)

	messages, err := db.GetMessages(ctx, "room-1")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "mine", messages[0].Content)
}

func TestArchiveRoom(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.CreateRoom(ctx, "room-1", ""))

	require.NoError(t, db.ArchiveRoom(ctx, "room-1"))

	rooms, err := db.GetRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.True(t, rooms[0].Archived)
}

func TestAssistantMessageKeepsBackend(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.SaveMessage(ctx, &Message{
		ID:        uuid.NewString(),
		RoomID:    "room-1",
		Sender:    "gemini",
		Role:      "assistant",
		Content:   "answer",
		Backend:   "gemini",
		Timestamp: time.Now().UTC(),
	}))

	messages, err := db.GetMessages(ctx, "room-1")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "assistant", messages[0].Role)
	assert.Equal(t, "gemini", messages[0].Backend)
}

func TestUnsupportedDatabaseType(t *testing.T) {
	_, err := NewDatabase(&config.DatabaseConfig{Type: "oracle"})
	require.Error(t, err)
}

package database

import (
	"context"
)

// Database is the persistence boundary for rooms and messages. The core
// treats it as an opaque store; nothing above this interface depends on the
// concrete engine.
type Database interface {
	// Close closes the database connection.
	Close() error

	// SaveMessage saves a message to the database.
	SaveMessage(ctx context.Context, message *Message) error

	// GetMessages gets all messages for a room in chronological order.
	GetMessages(ctx context.Context, roomID string) ([]*Message, error)

	// GetMessagesWithPagination gets messages for a room with pagination.
	GetMessagesWithPagination(ctx context.Context, roomID string, page, pageSize int) ([]*Message, error)

	// GetRecentMessages gets the most recent limit messages for a room,
	// returned oldest first.
	GetRecentMessages(ctx context.Context, roomID string, limit int) ([]*Message, error)

	// CreateRoom creates a new room. Creating an existing room is a no-op.
	CreateRoom(ctx context.Context, roomID, name string) error

	// RoomExists checks whether a room exists.
	RoomExists(ctx context.Context, roomID string) (bool, error)

	// GetRooms lists all rooms, newest first.
	GetRooms(ctx context.Context) ([]*Room, error)

	// ArchiveRoom marks a room as archived.
	ArchiveRoom(ctx context.Context, roomID string) error
}

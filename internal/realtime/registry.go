package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// SendResult is the outcome of a single delivery attempt. A missing or
// already-disconnected target is a valid outcome, not an error.
type SendResult int

const (
	SendDelivered SendResult = iota
	SendNotFound
	SendFailed
)

// EventSink receives participant lifecycle notifications. It is invoked
// outside the registry lock, so implementations may broadcast freely.
type EventSink interface {
	NotifyJoined(roomID string, conn *Connection)
	NotifyLeft(roomID string, conn *Connection)
}

// Snapshot is a consistent read of the registry for health endpoints.
type Snapshot struct {
	Total   int            `json:"total"`
	PerRoom map[string]int `json:"per_room"`
}

// Registry is the single source of truth for which sockets are alive, in
// which room, for which user. All index mutation goes through its methods.
type Registry struct {
	logger *zap.Logger

	mu    sync.RWMutex
	conns map[string]*Connection
	rooms map[string]map[string]*Connection // roomID -> connID -> conn
	users map[string]map[string]*Connection // userID -> connID -> conn

	sink EventSink
}

// NewRegistry creates an empty connection registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger: logger.Named("realtime.registry"),
		conns:  make(map[string]*Connection),
		rooms:  make(map[string]map[string]*Connection),
		users:  make(map[string]map[string]*Connection),
	}
}

// SetEventSink wires the broadcaster that announces joins and leaves.
// Must be called during startup, before any connection arrives.
func (r *Registry) SetEventSink(sink EventSink) {
	r.sink = sink
}

// Connect registers a new connection for the given room and user and
// announces it to the rest of the room.
func (r *Registry) Connect(transport Transport, roomID, userID string) *Connection {
	now := time.Now()
	conn := &Connection{
		ID:            uuid.NewString(),
		RoomID:        roomID,
		UserID:        userID,
		ConnectedAt:   now,
		transport:     transport,
		state:         StateConnecting,
		lastHeartbeat: now,
	}

	r.mu.Lock()
	r.conns[conn.ID] = conn
	if r.rooms[roomID] == nil {
		r.rooms[roomID] = make(map[string]*Connection)
	}
	r.rooms[roomID][conn.ID] = conn
	if r.users[userID] == nil {
		r.users[userID] = make(map[string]*Connection)
	}
	r.users[userID][conn.ID] = conn
	conn.state = StateConnected
	r.mu.Unlock()

	r.logger.Info("connection registered",
		zap.String("id", conn.ID),
		zap.String("room", roomID),
		zap.String("user", userID))

	if r.sink != nil {
		r.sink.NotifyJoined(roomID, conn)
	}
	return conn
}

// Disconnect removes a connection from all indexes and closes its transport.
// It is idempotent: disconnecting an unknown or already-removed id is a
// no-op and reports false.
func (r *Registry) Disconnect(id string) bool {
	r.mu.Lock()
	conn, ok := r.conns[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.conns, id)
	if room := r.rooms[conn.RoomID]; room != nil {
		delete(room, id)
		if len(room) == 0 {
			delete(r.rooms, conn.RoomID)
		}
	}
	if user := r.users[conn.UserID]; user != nil {
		delete(user, id)
		if len(user) == 0 {
			delete(r.users, conn.UserID)
		}
	}
	conn.state = StateDisconnecting
	r.mu.Unlock()

	if err := conn.transport.Close(websocket.CloseNormalClosure, "disconnect"); err != nil {
		r.logger.Debug("transport close failed", zap.String("id", id), zap.Error(err))
	}
	conn.setState(StateDisconnected)

	r.logger.Info("connection removed",
		zap.String("id", id),
		zap.String("room", conn.RoomID),
		zap.String("user", conn.UserID))

	if r.sink != nil {
		r.sink.NotifyLeft(conn.RoomID, conn)
	}
	return true
}

// SendToConnection delivers a payload to one connection. A transport failure
// disconnects that connection rather than propagating the error upward.
func (r *Registry) SendToConnection(id string, payload []byte) SendResult {
	r.mu.RLock()
	conn, ok := r.conns[id]
	r.mu.RUnlock()
	if !ok || conn.State() == StateDisconnected {
		return SendNotFound
	}

	if err := conn.send(payload); err != nil {
		r.logger.Warn("send failed, disconnecting",
			zap.String("id", id),
			zap.Error(err))
		r.Disconnect(id)
		return SendFailed
	}
	return SendDelivered
}

// BroadcastToRoom delivers a payload to every connection in a room except
// excludeID. It iterates a snapshot of the room membership so that a
// failure-triggered disconnect cannot invalidate the iteration, and one bad
// socket never aborts delivery to the rest. Returns the delivered count.
func (r *Registry) BroadcastToRoom(roomID string, payload []byte, excludeID string) int {
	r.mu.RLock()
	room := r.rooms[roomID]
	targets := make([]*Connection, 0, len(room))
	for id, conn := range room {
		if id == excludeID {
			continue
		}
		targets = append(targets, conn)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, conn := range targets {
		if err := conn.send(payload); err != nil {
			r.logger.Warn("broadcast send failed, disconnecting",
				zap.String("id", conn.ID),
				zap.String("room", roomID),
				zap.Error(err))
			r.Disconnect(conn.ID)
			continue
		}
		delivered++
	}
	return delivered
}

// RecordHeartbeat updates the connection's heartbeat clock.
func (r *Registry) RecordHeartbeat(id string) bool {
	r.mu.RLock()
	conn, ok := r.conns[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	conn.touch(time.Now())
	return true
}

// EvictStale disconnects every connection whose last heartbeat is older than
// timeout, closing the underlying transport so sockets are not leaked.
// Returns the evicted connection ids.
func (r *Registry) EvictStale(timeout time.Duration) []string {
	r.mu.RLock()
	candidates := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		candidates = append(candidates, conn)
	}
	r.mu.RUnlock()

	cutoff := time.Now().Add(-timeout)
	var evicted []string
	for _, conn := range candidates {
		if conn.LastHeartbeat().Before(cutoff) {
			if r.Disconnect(conn.ID) {
				r.logger.Info("evicted stale connection",
					zap.String("id", conn.ID),
					zap.String("room", conn.RoomID))
				evicted = append(evicted, conn.ID)
			}
		}
	}
	return evicted
}

// CountInRoom returns the number of live connections in a room.
func (r *Registry) CountInRoom(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID])
}

// RoomsWithConnections returns the rooms that currently have at least one
// live connection.
func (r *Registry) RoomsWithConnections() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rooms := make([]string, 0, len(r.rooms))
	for roomID := range r.rooms {
		rooms = append(rooms, roomID)
	}
	return rooms
}

// ConnectionsOfUser returns the connection ids for a user across all rooms.
func (r *Registry) ConnectionsOfUser(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.users[userID]))
	for id := range r.users[userID] {
		ids = append(ids, id)
	}
	return ids
}

// Stats returns a consistent snapshot for the health endpoint.
func (r *Registry) Stats() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	perRoom := make(map[string]int, len(r.rooms))
	for roomID, room := range r.rooms {
		perRoom[roomID] = len(room)
	}
	return Snapshot{Total: len(r.conns), PerRoom: perRoom}
}

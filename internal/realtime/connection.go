package realtime

import (
	"sync"
	"time"
)

// State is the lifecycle state of a realtime connection.
type State int32

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnecting
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Connection represents one live realtime socket. It is created and removed
// exclusively by the Registry; other components reference it by ID only.
type Connection struct {
	ID          string
	RoomID      string
	UserID      string
	ConnectedAt time.Time

	transport Transport

	mu            sync.Mutex
	state         State
	lastHeartbeat time.Time
	metadata      map[string]string
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Connection) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// LastHeartbeat returns the time of the last inbound heartbeat or message.
func (c *Connection) LastHeartbeat() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastHeartbeat
}

func (c *Connection) touch(now time.Time) {
	c.mu.Lock()
	c.lastHeartbeat = now
	c.mu.Unlock()
}

// SetMetadata stores an open key/value pair on the connection.
func (c *Connection) SetMetadata(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.metadata == nil {
		c.metadata = make(map[string]string)
	}
	c.metadata[key] = value
}

// Metadata returns the value stored under key, if any.
func (c *Connection) Metadata(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.metadata[key]
	return v, ok
}

// send writes a payload through the underlying transport. The transport
// serializes concurrent writers itself.
func (c *Connection) send(payload []byte) error {
	return c.transport.SendText(payload)
}

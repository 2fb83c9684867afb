package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport abstracts the realtime socket so the registry never touches the
// WebSocket framework directly. Implementations must tolerate Close being
// called more than once.
type Transport interface {
	SendText(payload []byte) error
	Close(code int, reason string) error
}

const writeTimeout = 10 * time.Second

// WSTransport adapts a gorilla WebSocket connection to the Transport
// interface. gorilla permits only one concurrent writer, so all writes are
// serialized through a mutex.
type WSTransport struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

var _ Transport = (*WSTransport)(nil)

// NewWSTransport wraps an upgraded WebSocket connection.
func NewWSTransport(conn *websocket.Conn) *WSTransport {
	return &WSTransport{conn: conn}
}

// SendText implements Transport.SendText
func (t *WSTransport) SendText(payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, payload)
}

// Close implements Transport.Close
func (t *WSTransport) Close(code int, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	msg := websocket.FormatCloseMessage(code, reason)
	_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return t.conn.Close()
}

package realtime

import (
	"encoding/json"
	"time"
)

// Event type tags carried in the "type" field of every broadcast payload.
const (
	EventJoined        = "joined"
	EventLeft          = "left"
	EventMessage       = "message"
	EventTyping        = "typing"
	EventChunk         = "chunk"
	EventComplete      = "complete"
	EventError         = "error"
	EventHeartbeat     = "heartbeat"
	EventBackendSwitch = "backend_switch"
)

// Event is the wire format for everything fanned out to a room. Fields not
// relevant to a given event type are omitted from the JSON.
type Event struct {
	Type         string    `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	Room         string    `json:"room,omitempty"`
	Sender       string    `json:"sender,omitempty"`
	User         string    `json:"user,omitempty"`
	Text         string    `json:"text,omitempty"`
	Backend      string    `json:"backend,omitempty"`
	FromBackend  string    `json:"from_backend,omitempty"`
	Model        string    `json:"model,omitempty"`
	Confidence   float64   `json:"confidence,omitempty"`
	Latency      float64   `json:"latency_seconds,omitempty"`
	Attempted    []string  `json:"attempted,omitempty"`
	Participants int       `json:"participants,omitempty"`
}

// Encode serializes the event, stamping the timestamp if the caller left it zero.
func (e Event) Encode() []byte {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		// Event contains only plain fields; marshalling cannot fail in practice.
		return []byte(`{"type":"error"}`)
	}
	return data
}

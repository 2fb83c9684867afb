package realtime

import (
	"fmt"

	"github.com/caseline/caseline/internal/coordinator"
	"github.com/caseline/caseline/pkg/metrics"

	"go.uber.org/zap"
)

// Generic user-facing text for terminal failures. Details stay in the log.
const serviceUnavailableText = "The assistant is unavailable right now. Please try again."

// Broadcaster turns domain events into wire messages and relies on the
// Registry for delivery. It owns no connection state itself.
type Broadcaster struct {
	logger   *zap.Logger
	registry *Registry
	metrics  *metrics.Metrics // optional
}

var _ EventSink = (*Broadcaster)(nil)

// NewBroadcaster creates a broadcaster bound to a registry. metrics may be nil.
func NewBroadcaster(logger *zap.Logger, registry *Registry, m *metrics.Metrics) *Broadcaster {
	return &Broadcaster{
		logger:   logger.Named("realtime.broadcaster"),
		registry: registry,
		metrics:  m,
	}
}

// NotifyJoined implements EventSink: announces a new participant to the rest
// of the room, excluding the connection that just joined.
func (b *Broadcaster) NotifyJoined(roomID string, conn *Connection) {
	ev := Event{
		Type:         EventJoined,
		Room:         roomID,
		User:         conn.UserID,
		Participants: b.registry.CountInRoom(roomID),
	}
	b.deliver(roomID, ev, conn.ID)
}

// NotifyLeft implements EventSink: announces a departure to the remaining
// room members.
func (b *Broadcaster) NotifyLeft(roomID string, conn *Connection) {
	ev := Event{
		Type:         EventLeft,
		Room:         roomID,
		User:         conn.UserID,
		Participants: b.registry.CountInRoom(roomID),
	}
	b.deliver(roomID, ev, "")
}

// BroadcastMessage serializes a domain event and fans it out to the room.
// Returns the number of connections that received it.
func (b *Broadcaster) BroadcastMessage(roomID string, ev Event, excludeID string) int {
	ev.Room = roomID
	return b.deliver(roomID, ev, excludeID)
}

// BroadcastError sends a generic terminal error to the room. Internal detail
// never reaches the wire.
func (b *Broadcaster) BroadcastError(roomID string) int {
	return b.deliver(roomID, Event{Type: EventError, Room: roomID, Text: serviceUnavailableText}, "")
}

func (b *Broadcaster) deliver(roomID string, ev Event, excludeID string) int {
	delivered := b.registry.BroadcastToRoom(roomID, ev.Encode(), excludeID)
	if b.metrics != nil && delivered > 0 {
		b.metrics.BroadcastDelivered(ev.Type, delivered)
	}
	return delivered
}

// StreamChunks consumes a coordinator stream and broadcasts each increment
// as a "chunk" event, ending with one terminal "complete" or "error" event.
// Broadcasting to a room that emptied mid-stream is a harmless no-op; the
// producer is still consumed to completion so the result can be persisted.
// On failure the partial text is discarded and the settled result is nil.
func (b *Broadcaster) StreamChunks(roomID string, events <-chan coordinator.StreamEvent) (*coordinator.Result, error) {
	for ev := range events {
		switch ev.Kind {
		case coordinator.StreamChunk:
			b.BroadcastMessage(roomID, Event{Type: EventChunk, Text: ev.Text, Backend: ev.Backend}, "")
		case coordinator.StreamSwitch:
			b.logger.Info("switching backend mid-stream",
				zap.String("room", roomID),
				zap.String("from", ev.FromBackend),
				zap.String("to", ev.Backend))
			b.BroadcastMessage(roomID, Event{Type: EventBackendSwitch, FromBackend: ev.FromBackend, Backend: ev.Backend}, "")
		case coordinator.StreamComplete:
			result := ev.Result
			b.BroadcastMessage(roomID, Event{
				Type:       EventComplete,
				Text:       result.Text,
				Backend:    result.Backend,
				Model:      result.Model,
				Confidence: result.Confidence,
				Latency:    result.Latency.Seconds(),
				Attempted:  result.Attempted,
			}, "")
			return result, nil
		case coordinator.StreamFailed:
			b.logger.Error("stream failed",
				zap.String("room", roomID),
				zap.Error(ev.Err))
			b.BroadcastError(roomID)
			return nil, ev.Err
		}
	}
	return nil, fmt.Errorf("stream ended without a terminal event")
}

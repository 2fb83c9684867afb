package realtime

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/caseline/caseline/internal/coordinator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestBroadcaster() (*Broadcaster, *Registry) {
	r := NewRegistry(zap.NewNop())
	b := NewBroadcaster(zap.NewNop(), r, nil)
	r.SetEventSink(b)
	return b, r
}

func streamOf(events ...coordinator.StreamEvent) <-chan coordinator.StreamEvent {
	ch := make(chan coordinator.StreamEvent, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch
}

func decodeAll(t *testing.T, transport *fakeTransport) []Event {
	t.Helper()
	transport.mu.Lock()
	defer transport.mu.Unlock()
	events := make([]Event, 0, len(transport.sent))
	for _, payload := range transport.sent {
		var ev Event
		require.NoError(t, json.Unmarshal(payload, &ev))
		events = append(events, ev)
	}
	return events
}

func TestBroadcastMessageStampsRoom(t *testing.T) {
	b, r := newTestBroadcaster()
	transport := &fakeTransport{}
	r.Connect(transport, "room-1", "alice")

	delivered := b.BroadcastMessage("room-1", Event{Type: EventMessage, Sender: "bob", Text: "hi"}, "")
	require.Equal(t, 1, delivered)

	events := decodeAll(t, transport)
	require.Len(t, events, 1)
	assert.Equal(t, "room-1", events[0].Room)
	assert.Equal(t, "hi", events[0].Text)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestBroadcastErrorHidesDetail(t *testing.T) {
	b, r := newTestBroadcaster()
	transport := &fakeTransport{}
	r.Connect(transport, "room-1", "alice")

	b.BroadcastError("room-1")

	events := decodeAll(t, transport)
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Type)
	assert.Equal(t, serviceUnavailableText, events[0].Text)
}

func TestStreamChunksHappyPath(t *testing.T) {
	b, r := newTestBroadcaster()
	transport := &fakeTransport{}
	r.Connect(transport, "room-1", "alice")

	result := &coordinator.Result{Text: "Hello", Backend: "primary", Model: "m1", Latency: 200 * time.Millisecond}
	settled, err := b.StreamChunks("room-1", streamOf(
		coordinator.StreamEvent{Kind: coordinator.StreamChunk, Text: "Hel", Backend: "primary"},
		coordinator.StreamEvent{Kind: coordinator.StreamChunk, Text: "lo", Backend: "primary"},
		coordinator.StreamEvent{Kind: coordinator.StreamComplete, Backend: "primary", Result: result},
	))
	require.NoError(t, err)
	assert.Equal(t, result, settled)

	events := decodeAll(t, transport)
	require.Len(t, events, 3)
	assert.Equal(t, EventChunk, events[0].Type)
	assert.Equal(t, "Hel", events[0].Text)
	assert.Equal(t, EventComplete, events[2].Type)
	assert.Equal(t, "Hello", events[2].Text)
	assert.Equal(t, "primary", events[2].Backend)
}

func TestStreamChunksBackendSwitch(t *testing.T) {
	b, r := newTestBroadcaster()
	transport := &fakeTransport{}
	r.Connect(transport, "room-1", "alice")

	result := &coordinator.Result{Text: "answer", Backend: "secondary", Attempted: []string{"primary"}}
	settled, err := b.StreamChunks("room-1", streamOf(
		coordinator.StreamEvent{Kind: coordinator.StreamChunk, Text: "par", Backend: "primary"},
		coordinator.StreamEvent{Kind: coordinator.StreamSwitch, FromBackend: "primary", Backend: "secondary"},
		coordinator.StreamEvent{Kind: coordinator.StreamChunk, Text: "answer", Backend: "secondary"},
		coordinator.StreamEvent{Kind: coordinator.StreamComplete, Backend: "secondary", Result: result},
	))
	require.NoError(t, err)
	assert.Equal(t, "secondary", settled.Backend)

	events := decodeAll(t, transport)
	require.Len(t, events, 4)
	assert.Equal(t, EventBackendSwitch, events[1].Type)
	assert.Equal(t, "primary", events[1].FromBackend)
	assert.Equal(t, "secondary", events[1].Backend)
	assert.Equal(t, []string{"primary"}, events[3].Attempted)
}

func TestStreamChunksFailure(t *testing.T) {
	b, r := newTestBroadcaster()
	transport := &fakeTransport{}
	r.Connect(transport, "room-1", "alice")

	cause := errors.New("every backend is down")
	settled, err := b.StreamChunks("room-1", streamOf(
		coordinator.StreamEvent{Kind: coordinator.StreamFailed, Err: cause},
	))
	require.ErrorIs(t, err, cause)
	assert.Nil(t, settled)

	events := decodeAll(t, transport)
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Type)
	assert.Equal(t, serviceUnavailableText, events[0].Text)
	assert.NotContains(t, events[0].Text, "down")
}

func TestStreamChunksNoTerminalEvent(t *testing.T) {
	b, _ := newTestBroadcaster()

	settled, err := b.StreamChunks("room-1", streamOf(
		coordinator.StreamEvent{Kind: coordinator.StreamChunk, Text: "orphan"},
	))
	require.Error(t, err)
	assert.Nil(t, settled)
}

func TestStreamChunksEmptyRoom(t *testing.T) {
	b, _ := newTestBroadcaster()

	result := &coordinator.Result{Text: "Hello", Backend: "primary"}
	settled, err := b.StreamChunks("empty-room", streamOf(
		coordinator.StreamEvent{Kind: coordinator.StreamChunk, Text: "Hello", Backend: "primary"},
		coordinator.StreamEvent{Kind: coordinator.StreamComplete, Backend: "primary", Result: result},
	))
	require.NoError(t, err)
	assert.Equal(t, "Hello", settled.Text)
}

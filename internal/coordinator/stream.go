package coordinator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/caseline/caseline/internal/backend"

	"go.uber.org/zap"
)

// StreamEventKind tags the events emitted by StreamResponse.
type StreamEventKind int

const (
	// StreamChunk carries one text increment from the current backend.
	StreamChunk StreamEventKind = iota
	// StreamSwitch announces a mid-stream fallback to another backend.
	// The chunk sequence restarts from empty after a switch.
	StreamSwitch
	// StreamComplete is terminal and carries the settled Result.
	StreamComplete
	// StreamFailed is terminal and carries the error.
	StreamFailed
)

// StreamEvent is one item of a streamed completion. The sequence is finite,
// single-pass, and ends with exactly one terminal event unless the
// consumer's context is cancelled first.
type StreamEvent struct {
	Kind        StreamEventKind
	Text        string
	Backend     string
	FromBackend string
	Result      *Result
	Err         error
}

// StreamResponse is GetResponse with incremental delivery: identical backend
// selection and fallback, but chunks are yielded as they arrive. A
// mid-stream failure discards the partial text, emits a StreamSwitch and
// restarts the chunk sequence from empty on the next candidate. The
// in-flight backend call is not force-cancelled when the consumer goes
// away, but the producer is always drained so adapter goroutines never leak.
func (c *Coordinator) StreamResponse(ctx context.Context, conversationID string, req *backend.Request, preferred string) <-chan StreamEvent {
	out := make(chan StreamEvent, 16)

	go func() {
		defer close(out)

		var attempted []string
		attemptedSet := make(map[string]bool)
		name := c.startCandidate(ctx, conversationID, preferred)
		var lastErr error

		for {
			if name == "" || attemptedSet[name] {
				var ok bool
				if name, ok = c.nextCandidate(attemptedSet); !ok {
					c.emit(ctx, out, StreamEvent{
						Kind: StreamFailed,
						Err:  &ExhaustedError{Attempted: attempted, LastCause: lastErr},
					})
					return
				}
			}

			terminal, err := c.streamAttempt(ctx, out, name, conversationID, req, attempted)
			if terminal {
				return
			}

			c.logger.Warn("streaming attempt failed",
				zap.String("backend", name),
				zap.String("conversation", conversationID),
				zap.Error(err))
			lastErr = err
			attempted = append(attempted, name)
			attemptedSet[name] = true

			if !c.cfg.Enabled {
				c.emit(ctx, out, StreamEvent{
					Kind: StreamFailed,
					Err:  &BackendError{Name: name, Cause: err},
				})
				return
			}
			candidate, ok := c.nextCandidate(attemptedSet)
			if !ok {
				c.emit(ctx, out, StreamEvent{
					Kind: StreamFailed,
					Err:  &ExhaustedError{Attempted: attempted, LastCause: err},
				})
				return
			}
			if !c.emit(ctx, out, StreamEvent{Kind: StreamSwitch, FromBackend: name, Backend: candidate}) {
				return
			}
			name = candidate
		}
	}()

	return out
}

// streamAttempt runs one streaming attempt against a single backend. It
// reports terminal=true when a terminal event was emitted (success) or the
// consumer abandoned the stream; otherwise it returns the attempt error so
// the caller can fall back.
func (c *Coordinator) streamAttempt(ctx context.Context, out chan<- StreamEvent, name, conversationID string, req *backend.Request, attempted []string) (bool, error) {
	adapter, err := c.backends.Get(name)
	if err != nil {
		return false, err
	}

	attemptCtx := ctx
	cancel := func() {}
	if c.cfg.PerBackendTimeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, c.cfg.PerBackendTimeout)
	}
	defer cancel()

	start := time.Now()
	chunks, err := adapter.CompleteStreaming(attemptCtx, req)
	if err != nil {
		c.settleFailure(name, start, time.Since(start), err)
		return false, err
	}

	var full strings.Builder
	var streamErr error
	delivering := true
	for chunk := range chunks {
		if chunk.Err != nil {
			streamErr = fmt.Errorf("%w: %v", ErrStreamInterrupted, chunk.Err)
			continue // drain to the close
		}
		if streamErr != nil {
			continue
		}
		full.WriteString(chunk.Text)
		if delivering && !c.emit(ctx, out, StreamEvent{Kind: StreamChunk, Text: chunk.Text, Backend: name}) {
			// Consumer is gone; keep draining but stop delivering.
			delivering = false
		}
	}
	latency := time.Since(start)

	if streamErr != nil {
		c.settleFailure(name, start, latency, streamErr)
		return !delivering, streamErr
	}

	c.settleSuccess(name, start, latency)
	if aerr := c.affinity.Set(ctx, conversationID, name); aerr != nil {
		c.logger.Warn("failed to record affinity",
			zap.String("conversation", conversationID),
			zap.Error(aerr))
	}
	result := &Result{
		Text:      full.String(),
		Backend:   name,
		Model:     adapter.Info().Model,
		Latency:   latency,
		Attempted: append([]string(nil), attempted...),
	}
	c.emit(ctx, out, StreamEvent{Kind: StreamComplete, Backend: name, Result: result})
	return true, nil
}

// emit delivers an event unless the consumer's context is already done.
func (c *Coordinator) emit(ctx context.Context, out chan<- StreamEvent, ev StreamEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

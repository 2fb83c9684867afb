package coordinator

import (
	"errors"
	"fmt"
	"strings"
)

// ErrStreamInterrupted marks a mid-stream backend failure. It is wrapped
// into the attempt error so callers can distinguish a stream that died
// partway from one that never started.
var ErrStreamInterrupted = errors.New("stream interrupted")

// BackendError reports a single backend failure surfaced without fallback.
type BackendError struct {
	Name  string
	Cause error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s failed: %v", e.Name, e.Cause)
}

func (e *BackendError) Unwrap() error {
	return e.Cause
}

// ExhaustedError reports that every candidate backend was attempted and
// failed. It is terminal for a single request, never for the process.
type ExhaustedError struct {
	Attempted []string
	LastCause error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all backends failed (attempted: %s): %v",
		strings.Join(e.Attempted, ", "), e.LastCause)
}

func (e *ExhaustedError) Unwrap() error {
	return e.LastCause
}

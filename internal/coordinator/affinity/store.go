// Package affinity tracks which backend last succeeded for a conversation so
// follow-up requests keep hitting the same provider absent failures. Entries
// are advisory: the coordinator falls through the fallback order whenever the
// affine backend is unavailable.
package affinity

import (
	"context"
)

// Store maps conversation ids to the name of the last successful backend.
// Writes happen only after a confirmed success, never speculatively; callers
// owning conversation lifecycle call Clear when a conversation ends.
type Store interface {
	// Get returns the affine backend name, or "" when none is recorded.
	Get(ctx context.Context, conversationID string) (string, error)

	// Set records the backend that just succeeded for the conversation.
	Set(ctx context.Context, conversationID, backendName string) error

	// Clear removes the entry for a conversation. Clearing an unknown
	// conversation is a no-op.
	Clear(ctx context.Context, conversationID string) error

	// Close releases any underlying resources.
	Close() error
}

package rooms

import "context"

type (
	// DocumentEngine materializes the sync state for a room. It is the seam
	// to the component that actually merges concurrent edits; this package
	// never interprets frame contents.
	DocumentEngine interface {
		// Load returns the room's document state, materialized from prior
		// persisted state or default-initialized for an unseen id. A load
		// either yields a usable state or fails outright.
		Load(ctx context.Context, roomID string) (DocumentState, error)
	}

	// DocumentState is one room's live merge state.
	DocumentState interface {
		// Apply ingests one frame from a participant and returns the payload
		// to broadcast to the other participants. Must be safe for
		// concurrent use.
		Apply(sessionID string, frame []byte) ([]byte, error)

		// Snapshot returns the current serialized document, or nil if the
		// document is still default-initialized.
		Snapshot() []byte

		// Release flushes persisted state. Called once, when the room is
		// dropped.
		Release(ctx context.Context) error
	}
)

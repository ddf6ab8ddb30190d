// Package save implements JSON serialization of session snapshots and the
// versioned codec used for nested fields in durable storage.
package save

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nathoo/qicore/engine/state"
	"github.com/nathoo/qicore/types"
)

// SnapshotVersion is the current snapshot format version.
const SnapshotVersion = 1

// Snapshot is the JSON-serializable export of one session.
type Snapshot struct {
	Version  int                `json:"version"`
	World    string             `json:"world"`
	Content  string             `json:"content_version"`
	SavedAt  time.Time          `json:"saved_at"`
	Session  types.SessionState `json:"session"`
	Commands []string           `json:"command_log,omitempty"`
}

// Export serializes a session to JSON bytes. defs may be nil.
func Export(s types.SessionState, defs *state.Defs, log []string, now time.Time) ([]byte, error) {
	snap := Snapshot{
		Version:  SnapshotVersion,
		SavedAt:  now.UTC(),
		Session:  s,
		Commands: log,
	}
	if defs != nil {
		snap.World = defs.World.Title
		snap.Content = defs.World.Version
	}
	return json.MarshalIndent(snap, "", "  ")
}

// Import deserializes a snapshot.
func Import(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	if snap.Version > SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d is newer than supported %d", snap.Version, SnapshotVersion)
	}
	if snap.Session.SessionID == "" {
		return nil, fmt.Errorf("snapshot has no session id")
	}
	// Ensure slices are never nil after load.
	if snap.Session.Inventory == nil {
		snap.Session.Inventory = []types.InventoryItem{}
	}
	if snap.Session.Techniques == nil {
		snap.Session.Techniques = []types.LearnedTechnique{}
	}
	return &snap, nil
}

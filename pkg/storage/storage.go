package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jwebster45206/narration-engine/pkg/chat"
	"github.com/jwebster45206/narration-engine/pkg/state"
)

// SnapshotVersion is bumped whenever the saved shape changes. Snapshots
// with any other version are discarded on load.
const SnapshotVersion = 1

// ErrCorruptSnapshot wraps every reason a stored snapshot is rejected.
var ErrCorruptSnapshot = errors.New("corrupt snapshot")

// Gateway persists one save slot: the turn log plus the live status.
type Gateway interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// Save writes the whole session. It is a no-op until the log holds
	// more than the opening turn.
	Save(ctx context.Context, turns []chat.Turn, status state.GameStatus) error

	// Load returns nil, nil when nothing usable is stored. Only transport
	// failures are returned as errors.
	Load(ctx context.Context) (*Snapshot, error)
}

// Snapshot is the persisted form of a session.
type Snapshot struct {
	Version int              `json:"version"`
	SavedAt time.Time        `json:"saved_at"`
	Turns   []chat.Turn      `json:"turns"`
	Status  state.GameStatus `json:"status"`
}

// ShouldSave reports whether a log is past the bootstrap guard.
func ShouldSave(turns []chat.Turn) bool {
	return len(turns) > 1
}

// NewSnapshot stamps a snapshot with the current version and time.
func NewSnapshot(turns []chat.Turn, status state.GameStatus) Snapshot {
	return Snapshot{
		Version: SnapshotVersion,
		SavedAt: time.Now().UTC(),
		Turns:   turns,
		Status:  status,
	}
}

// DecodeSnapshot parses and validates stored bytes. Every rejection
// wraps ErrCorruptSnapshot.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var wire struct {
		Version int              `json:"version"`
		SavedAt time.Time        `json:"saved_at"`
		Turns   []chat.Turn      `json:"turns"`
		Status  *json.RawMessage `json:"status"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if wire.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: version %d, want %d", ErrCorruptSnapshot, wire.Version, SnapshotVersion)
	}
	if wire.Status == nil || string(*wire.Status) == "null" {
		return nil, fmt.Errorf("%w: missing status", ErrCorruptSnapshot)
	}
	if len(wire.Turns) == 0 {
		return nil, fmt.Errorf("%w: no turns", ErrCorruptSnapshot)
	}

	var status state.GameStatus
	if err := json.Unmarshal(*wire.Status, &status); err != nil {
		return nil, fmt.Errorf("%w: status: %v", ErrCorruptSnapshot, err)
	}

	return &Snapshot{
		Version: wire.Version,
		SavedAt: wire.SavedAt,
		Turns:   wire.Turns,
		Status:  status,
	}, nil
}

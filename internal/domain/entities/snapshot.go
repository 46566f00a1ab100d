package entities

import "time"

// SnapshotType records why a snapshot was taken.
type SnapshotType string

const (
	SnapshotAuto    SnapshotType = "auto"
	SnapshotManual  SnapshotType = "manual"
	SnapshotTurnEnd SnapshotType = "turn_end"
	SnapshotCrash   SnapshotType = "crash"
)

// SessionSnapshot is a write-once materialization of full session state
// (entities, relationships, active facts, open conflicts, turn cursor).
// Snapshots are caches for recovery; the ledger stays authoritative.
type SessionSnapshot struct {
	ID         string       `json:"id"`
	SessionID  string       `json:"session_id"`
	TurnNumber uint64       `json:"turn_number"`
	State      []byte       `json:"state"`
	Checksum   string       `json:"checksum"`
	Type       SnapshotType `json:"type"`
	CreatedAt  time.Time    `json:"created_at"`
}

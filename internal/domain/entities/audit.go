package entities

import "time"

// AuditEntry records an engine decision (accept, supersede, resolve,
// timeout, forced resolution) so outcomes stay queryable, not log-only.
type AuditEntry struct {
	ID        int64          `json:"id"`
	SessionID string         `json:"session_id"`
	Action    string         `json:"action"`
	RefID     string         `json:"ref_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

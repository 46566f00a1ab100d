package entities

import "time"

// TurnStatus is the lifecycle state of an admitted turn. Completed, skipped
// and timeout are terminal.
type TurnStatus string

const (
	TurnPending   TurnStatus = "pending"
	TurnActive    TurnStatus = "active"
	TurnCompleted TurnStatus = "completed"
	TurnSkipped   TurnStatus = "skipped"
	TurnTimeout   TurnStatus = "timeout"
)

// Turn is one admitted opportunity for a participant to act. Numbers are
// strictly monotonic per session and assigned at admission, not submission.
type Turn struct {
	ID            string     `json:"id"`
	SessionID     string     `json:"session_id"`
	Number        uint64     `json:"number"`
	ParticipantID string     `json:"participant_id"`
	Action        *Action    `json:"action,omitempty"`
	Status        TurnStatus `json:"status"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       time.Time  `json:"ended_at,omitzero"`
}

// Terminal reports whether the turn has ended.
func (t *Turn) Terminal() bool {
	switch t.Status {
	case TurnCompleted, TurnSkipped, TurnTimeout:
		return true
	}
	return false
}

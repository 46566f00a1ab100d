package entities

// Role is a participant's capability class within a session. Identity and
// membership come from external session management; the engine only checks
// capabilities at its boundary.
type Role string

const (
	RolePlayer   Role = "player"
	RoleGM       Role = "gm"
	RoleNarrator Role = "narrator"
	RoleObserver Role = "observer"
)

// Participant is a session member as supplied by the session service.
type Participant struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
	Role      Role   `json:"role"`
}

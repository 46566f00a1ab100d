package handlers

import (
	"fmt"
	"sync"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
)

// Capability is a boundary-level permission checked before an operation
// reaches the engine. Identity itself comes from the session service; the
// engine only maps roles to capabilities.
type Capability string

const (
	CapSubmitAction    Capability = "submit_action"
	CapAssertFact      Capability = "assert_fact"
	CapIngestNarration Capability = "ingest_narration"
	CapResolveConflict Capability = "resolve_conflict"
	CapManageSession   Capability = "manage_session"
	CapQuery           Capability = "query"
)

// roleCaps maps each role to its capability set.
var roleCaps = map[entities.Role]map[Capability]struct{}{
	entities.RolePlayer: {
		CapSubmitAction: {},
		CapQuery:        {},
	},
	entities.RoleNarrator: {
		CapAssertFact:      {},
		CapIngestNarration: {},
		CapQuery:           {},
	},
	entities.RoleGM: {
		CapSubmitAction:    {},
		CapAssertFact:      {},
		CapIngestNarration: {},
		CapResolveConflict: {},
		CapManageSession:   {},
		CapQuery:           {},
	},
	entities.RoleObserver: {
		CapQuery: {},
	},
}

// PermissionError reports an actor attempting an operation their role does
// not allow.
type PermissionError struct {
	ParticipantID string
	Capability    Capability
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("participant %s lacks capability %s", e.ParticipantID, e.Capability)
}

// Authorizer checks participant capabilities per session. Participants are
// registered by the session handler before the session starts.
type Authorizer struct {
	mu    sync.RWMutex
	roles map[string]map[string]entities.Role
}

// NewAuthorizer creates an empty authorizer.
func NewAuthorizer() *Authorizer {
	return &Authorizer{roles: make(map[string]map[string]entities.Role)}
}

// Register records a participant's role in a session.
func (a *Authorizer) Register(participant entities.Participant) {
	a.mu.Lock()
	defer a.mu.Unlock()
	session, ok := a.roles[participant.SessionID]
	if !ok {
		session = make(map[string]entities.Role)
		a.roles[participant.SessionID] = session
	}
	session[participant.ID] = participant.Role
}

// Role returns a participant's role, or empty if unregistered.
func (a *Authorizer) Role(sessionID, participantID string) entities.Role {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.roles[sessionID][participantID]
}

// Require fails with a PermissionError unless the participant's role grants
// the capability.
func (a *Authorizer) Require(sessionID, participantID string, cap Capability) error {
	role := a.Role(sessionID, participantID)
	if _, ok := roleCaps[role][cap]; !ok {
		return &PermissionError{ParticipantID: participantID, Capability: cap}
	}
	return nil
}

package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
)

func testAuthorizer() *Authorizer {
	auth := NewAuthorizer()
	auth.Register(entities.Participant{ID: "aldric", SessionID: "session-1", Name: "Aldric", Role: entities.RolePlayer})
	auth.Register(entities.Participant{ID: "gm-sarah", SessionID: "session-1", Name: "Sarah", Role: entities.RoleGM})
	auth.Register(entities.Participant{ID: "bard", SessionID: "session-1", Name: "The Bard", Role: entities.RoleNarrator})
	auth.Register(entities.Participant{ID: "lurker", SessionID: "session-1", Name: "Lurker", Role: entities.RoleObserver})
	return auth
}

func TestAuthorizer_Capabilities(t *testing.T) {
	auth := testAuthorizer()

	tests := []struct {
		participant string
		capability  Capability
		allowed     bool
	}{
		{"aldric", CapSubmitAction, true},
		{"aldric", CapQuery, true},
		{"aldric", CapAssertFact, false},
		{"aldric", CapResolveConflict, false},
		{"aldric", CapManageSession, false},

		{"bard", CapAssertFact, true},
		{"bard", CapIngestNarration, true},
		{"bard", CapQuery, true},
		{"bard", CapSubmitAction, false},
		{"bard", CapResolveConflict, false},

		{"gm-sarah", CapSubmitAction, true},
		{"gm-sarah", CapAssertFact, true},
		{"gm-sarah", CapIngestNarration, true},
		{"gm-sarah", CapResolveConflict, true},
		{"gm-sarah", CapManageSession, true},
		{"gm-sarah", CapQuery, true},

		{"lurker", CapQuery, true},
		{"lurker", CapSubmitAction, false},
		{"lurker", CapAssertFact, false},
	}

	for _, tt := range tests {
		t.Run(tt.participant+"/"+string(tt.capability), func(t *testing.T) {
			err := auth.Require("session-1", tt.participant, tt.capability)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				var pErr *PermissionError
				require.ErrorAs(t, err, &pErr)
				assert.Equal(t, tt.participant, pErr.ParticipantID)
				assert.Equal(t, tt.capability, pErr.Capability)
			}
		})
	}
}

func TestAuthorizer_UnknownParticipant(t *testing.T) {
	auth := testAuthorizer()

	err := auth.Require("session-1", "stranger", CapQuery)
	var pErr *PermissionError
	assert.ErrorAs(t, err, &pErr)
}

func TestAuthorizer_RolesAreSessionScoped(t *testing.T) {
	auth := testAuthorizer()

	// GM in session-1, nobody in session-2.
	assert.Equal(t, entities.RoleGM, auth.Role("session-1", "gm-sarah"))
	assert.Empty(t, auth.Role("session-2", "gm-sarah"))
	assert.Error(t, auth.Require("session-2", "gm-sarah", CapQuery))
}

func TestAuthorizer_ReRegisterChangesRole(t *testing.T) {
	auth := testAuthorizer()
	auth.Register(entities.Participant{ID: "aldric", SessionID: "session-1", Role: entities.RoleGM})
	assert.NoError(t, auth.Require("session-1", "aldric", CapManageSession))
}

package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/services"
)

// escalateConflict pushes two confident, contradicting assertions through the
// ledger so a critical conflict ends up awaiting an arbiter.
func escalateConflict(t *testing.T, fx *handlerFixture) (activeID, stagedID, conflictID string) {
	t.Helper()

	first := &entities.Fact{
		SessionID:  "session-1",
		SubjectID:  "aldric",
		Property:   "alive",
		Value:      entities.BoolValue(true),
		Confidence: 0.95,
	}
	result, err := fx.ledger.Propose(context.Background(), first)
	require.NoError(t, err)
	require.Equal(t, entities.FactAccepted, result.Status)
	activeID = result.FactID

	second := &entities.Fact{
		SessionID:  "session-1",
		SubjectID:  "aldric",
		Property:   "alive",
		Value:      entities.BoolValue(false),
		Confidence: 0.95,
	}
	result, err = fx.ledger.Propose(context.Background(), second)
	require.NoError(t, err)
	require.Equal(t, entities.FactPending, result.Status)
	require.NotEmpty(t, result.ConflictID)
	return activeID, result.FactID, result.ConflictID
}

func TestConflictHandler_List(t *testing.T) {
	fx := newHandlerFixture(t, nil)
	handler := NewConflictHandler(fx.store, fx.resolver, fx.auth)
	_, _, conflictID := escalateConflict(t, fx)

	// Observers may inspect the queue.
	conflicts, err := handler.HandleList(context.Background(), "lurker", "session-1")
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, conflictID, conflicts[0].ID)
	assert.Equal(t, entities.SeverityCritical, conflicts[0].Severity)

	_, err = handler.HandleList(context.Background(), "stranger", "session-1")
	var pErr *PermissionError
	assert.ErrorAs(t, err, &pErr)
}

func TestConflictHandler_Resolve(t *testing.T) {
	fx := newHandlerFixture(t, nil)
	handler := NewConflictHandler(fx.store, fx.resolver, fx.auth)
	activeID, stagedID, conflictID := escalateConflict(t, fx)

	resolved, err := handler.HandleResolve(context.Background(), "gm-sarah", "session-1", conflictID,
		services.Decision{WinnerID: stagedID})
	require.NoError(t, err)
	assert.Equal(t, entities.ConflictResolved, resolved.Status)
	assert.Equal(t, entities.ResolutionDMOverride, resolved.Resolution)
	assert.Equal(t, "gm-sarah", resolved.ResolvedBy)

	fact, err := fx.ledger.Query(context.Background(), "session-1", "aldric", "alive", "", time.Time{})
	require.NoError(t, err)
	require.NotNil(t, fact)
	assert.Equal(t, stagedID, fact.ID)
	assert.Equal(t, entities.FactSuperseded, fx.store.Facts[activeID].Status)
}

func TestConflictHandler_Resolve_RequiresCapability(t *testing.T) {
	fx := newHandlerFixture(t, nil)
	handler := NewConflictHandler(fx.store, fx.resolver, fx.auth)
	_, stagedID, conflictID := escalateConflict(t, fx)

	// Narrators assert facts but never arbitrate them.
	_, err := handler.HandleResolve(context.Background(), "bard", "session-1", conflictID,
		services.Decision{WinnerID: stagedID})
	var pErr *PermissionError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, CapResolveConflict, pErr.Capability)
	assert.Equal(t, entities.ConflictOpen, fx.store.Conflicts[conflictID].Status)
}

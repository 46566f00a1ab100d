package handlers

import (
	"context"
	"fmt"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/services"
)

// EntityHandler handles entity setup: seeding identity facts and
// registering participants.
type EntityHandler struct {
	ledger *services.LedgerService
	auth   *Authorizer
}

// NewEntityHandler creates a new entity handler.
func NewEntityHandler(ledger *services.LedgerService, auth *Authorizer) *EntityHandler {
	return &EntityHandler{ledger: ledger, auth: auth}
}

// HandleEnsure seeds an entity's identity facts (name and type) so later
// assertions reference a described entity rather than a bare placeholder.
// Re-running with the same values is idempotent via re-assertion.
func (h *EntityHandler) HandleEnsure(ctx context.Context, actorID, sessionID, entityID, name string, entityType entities.EntityType) (*entities.Entity, error) {
	if err := h.auth.Require(sessionID, actorID, CapAssertFact); err != nil {
		return nil, err
	}

	provenance := entities.Provenance{Kind: entities.ProvenanceSystem, SourceID: actorID}
	seed := []entities.Fact{
		{
			SessionID:    sessionID,
			SubjectID:    entityID,
			Property:     services.PropName,
			Value:        entities.TextValue(name),
			Confidence:   1.0,
			Verification: entities.VerificationDirect,
			Provenance:   provenance,
		},
		{
			SessionID:    sessionID,
			SubjectID:    entityID,
			Property:     services.PropEntityType,
			Value:        entities.TextValue(string(entityType)),
			Confidence:   1.0,
			Verification: entities.VerificationDirect,
			Provenance:   provenance,
		},
	}
	for i := range seed {
		if _, err := h.ledger.Propose(ctx, &seed[i]); err != nil {
			return nil, fmt.Errorf("seeding entity: %w", err)
		}
	}

	entity := h.ledger.Projection(sessionID).EntityByID(entityID)
	if entity == nil {
		return nil, fmt.Errorf("entity %s not materialized", entityID)
	}
	return entity, nil
}

// HandleRegisterParticipant records a participant's role for capability
// checks at the engine boundary.
func (h *EntityHandler) HandleRegisterParticipant(ctx context.Context, participant entities.Participant) error {
	if participant.ID == "" || participant.SessionID == "" {
		return &entities.ValidationError{Field: "participant", Reason: "id and session_id required"}
	}
	switch participant.Role {
	case entities.RolePlayer, entities.RoleGM, entities.RoleNarrator, entities.RoleObserver:
	default:
		return &entities.ValidationError{Field: "participant.role", Reason: "unknown role"}
	}
	h.auth.Register(participant)
	return nil
}

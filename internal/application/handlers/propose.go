package handlers

import (
	"context"
	"fmt"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/services"
)

// ProposeHandler handles direct fact assertions from narrators and GMs.
type ProposeHandler struct {
	ledger *services.LedgerService
	auth   *Authorizer
}

// NewProposeHandler creates a new propose handler.
func NewProposeHandler(ledger *services.LedgerService, auth *Authorizer) *ProposeHandler {
	return &ProposeHandler{ledger: ledger, auth: auth}
}

// Handle proposes a fact on behalf of a participant. The fact's provenance
// is stamped from the actor, not trusted from the payload.
func (h *ProposeHandler) Handle(ctx context.Context, actorID string, fact *entities.Fact) (*services.ProposeResult, error) {
	if err := h.auth.Require(fact.SessionID, actorID, CapAssertFact); err != nil {
		return nil, err
	}

	kind := entities.ProvenanceNarrator
	if h.auth.Role(fact.SessionID, actorID) == entities.RoleGM {
		kind = entities.ProvenanceArbiter
	}
	fact.Provenance = entities.Provenance{Kind: kind, SourceID: actorID}

	result, err := h.ledger.Propose(ctx, fact)
	if err != nil {
		if result != nil {
			// Rule cycle: the fact itself is in; report alongside the error.
			return result, err
		}
		return nil, fmt.Errorf("proposing fact: %w", err)
	}
	return result, nil
}

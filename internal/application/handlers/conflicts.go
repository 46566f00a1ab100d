package handlers

import (
	"context"
	"fmt"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/ports"
	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/services"
)

// ConflictHandler handles listing and arbiter resolution of conflicts.
type ConflictHandler struct {
	store    ports.LedgerStore
	resolver *services.Resolver
	auth     *Authorizer
}

// NewConflictHandler creates a new conflict handler.
func NewConflictHandler(store ports.LedgerStore, resolver *services.Resolver, auth *Authorizer) *ConflictHandler {
	return &ConflictHandler{store: store, resolver: resolver, auth: auth}
}

// HandleList returns a session's unresolved conflicts, oldest first.
func (h *ConflictHandler) HandleList(ctx context.Context, actorID, sessionID string) ([]entities.Conflict, error) {
	if err := h.auth.Require(sessionID, actorID, CapQuery); err != nil {
		return nil, err
	}
	conflicts, err := h.store.ListOpenConflicts(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing conflicts: %w", err)
	}
	return conflicts, nil
}

// HandleResolve applies an arbiter's ruling on an escalated conflict.
func (h *ConflictHandler) HandleResolve(ctx context.Context, actorID, sessionID, conflictID string, decision services.Decision) (*entities.Conflict, error) {
	if err := h.auth.Require(sessionID, actorID, CapResolveConflict); err != nil {
		return nil, err
	}
	return h.resolver.Resolve(ctx, conflictID, decision, actorID)
}

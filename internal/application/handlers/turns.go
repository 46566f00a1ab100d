package handlers

import (
	"context"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/services"
)

// TurnHandler handles turn-taking: session start, action submission, and
// skips.
type TurnHandler struct {
	coordinator *services.TurnCoordinator
	auth        *Authorizer
}

// NewTurnHandler creates a new turn handler.
func NewTurnHandler(coordinator *services.TurnCoordinator, auth *Authorizer) *TurnHandler {
	return &TurnHandler{coordinator: coordinator, auth: auth}
}

// HandleStart begins turn-taking with the given roster.
func (h *TurnHandler) HandleStart(ctx context.Context, actorID, sessionID string, roster []string) (*entities.Turn, error) {
	if err := h.auth.Require(sessionID, actorID, CapManageSession); err != nil {
		return nil, err
	}
	return h.coordinator.StartSession(ctx, sessionID, roster)
}

// HandleSubmit submits the actor's action for their admitted turn.
func (h *TurnHandler) HandleSubmit(ctx context.Context, actorID, sessionID string, action entities.Action) (*services.TurnResult, error) {
	if err := h.auth.Require(sessionID, actorID, CapSubmitAction); err != nil {
		return nil, err
	}
	return h.coordinator.SubmitAction(ctx, sessionID, actorID, action)
}

// HandleSkip moves past the current turn without an action.
func (h *TurnHandler) HandleSkip(ctx context.Context, actorID, sessionID string) (*entities.Turn, error) {
	if err := h.auth.Require(sessionID, actorID, CapManageSession); err != nil {
		return nil, err
	}
	return h.coordinator.Skip(ctx, sessionID)
}

// HandleCurrent reports the currently admitted turn, or nil.
func (h *TurnHandler) HandleCurrent(ctx context.Context, actorID, sessionID string) (*entities.Turn, error) {
	if err := h.auth.Require(sessionID, actorID, CapQuery); err != nil {
		return nil, err
	}
	return h.coordinator.Current(sessionID), nil
}

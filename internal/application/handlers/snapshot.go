package handlers

import (
	"context"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/services"
)

// SnapshotHandler handles manual snapshots and recovery.
type SnapshotHandler struct {
	snapshots *services.SnapshotManager
	auth      *Authorizer
}

// NewSnapshotHandler creates a new snapshot handler.
func NewSnapshotHandler(snapshots *services.SnapshotManager, auth *Authorizer) *SnapshotHandler {
	return &SnapshotHandler{snapshots: snapshots, auth: auth}
}

// HandleTake captures a manual snapshot of the session.
func (h *SnapshotHandler) HandleTake(ctx context.Context, actorID, sessionID string) (*entities.SessionSnapshot, error) {
	if err := h.auth.Require(sessionID, actorID, CapManageSession); err != nil {
		return nil, err
	}
	return h.snapshots.Snapshot(ctx, sessionID, entities.SnapshotManual)
}

// HandleRestore rebuilds the session from a snapshot plus the ledger tail.
// An empty snapshotID restores from the latest snapshot.
func (h *SnapshotHandler) HandleRestore(ctx context.Context, actorID, sessionID, snapshotID string) (*services.Projection, error) {
	if err := h.auth.Require(sessionID, actorID, CapManageSession); err != nil {
		return nil, err
	}
	return h.snapshots.Restore(ctx, sessionID, snapshotID)
}

// HandleRecover brings a session back after a restart, falling back to a
// full ledger replay when no usable snapshot exists.
func (h *SnapshotHandler) HandleRecover(ctx context.Context, actorID, sessionID string) (*services.Projection, error) {
	if err := h.auth.Require(sessionID, actorID, CapManageSession); err != nil {
		return nil, err
	}
	return h.snapshots.Recover(ctx, sessionID)
}

// HandleReplay rebuilds the session from the full ledger, ignoring snapshots.
func (h *SnapshotHandler) HandleReplay(ctx context.Context, actorID, sessionID string) (*services.Projection, error) {
	if err := h.auth.Require(sessionID, actorID, CapManageSession); err != nil {
		return nil, err
	}
	return h.snapshots.Replay(ctx, sessionID)
}

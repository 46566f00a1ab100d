package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/ports"
)

const (
	snapshotSaveAttempts = 3
	replayPageSize       = 200
)

// projectionState is the serialized form of a projection. The fact list is
// enough to rebuild everything else; LastSeq marks where tail replay starts.
type projectionState struct {
	SessionID  string          `json:"session_id"`
	TurnNumber uint64          `json:"turn_number"`
	LastSeq    uint64          `json:"last_seq"`
	Facts      []entities.Fact `json:"facts"`
}

// SnapshotManager captures and restores session state. Snapshots are an
// optimization: the ledger is the source of truth, and a full replay always
// produces the same projection a snapshot restore does.
type SnapshotManager struct {
	store    ports.LedgerStore
	registry *SessionRegistry
	logger   *slog.Logger

	interval    uint64
	lockTimeout time.Duration
	now         func() time.Time
	newID       func() string
	sleep       func(time.Duration)
}

// NewSnapshotManager wires the manager. interval is the auto-snapshot
// cadence in turns; zero disables auto snapshots.
func NewSnapshotManager(store ports.LedgerStore, registry *SessionRegistry, logger *slog.Logger, interval uint64, lockTimeout time.Duration) *SnapshotManager {
	return &SnapshotManager{
		store:       store,
		registry:    registry,
		logger:      logger,
		interval:    interval,
		lockTimeout: lockTimeout,
		now:         time.Now,
		newID:       func() string { return uuid.New().String() },
		sleep:       time.Sleep,
	}
}

// Snapshot captures the session's published projection. Serialization and
// persistence happen on the immutable published pointer, so in-flight
// proposals are never blocked and never half-captured.
func (s *SnapshotManager) Snapshot(ctx context.Context, sessionID string, snapType entities.SnapshotType) (*entities.SessionSnapshot, error) {
	proj := s.registry.Get(sessionID).View()

	state := projectionState{
		SessionID:  sessionID,
		TurnNumber: proj.TurnNumber,
		Facts:      proj.AcceptedFacts(),
	}
	for _, f := range state.Facts {
		if f.Seq > state.LastSeq {
			state.LastSeq = f.Seq
		}
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("serializing snapshot: %w", err)
	}

	snap := &entities.SessionSnapshot{
		ID:         s.newID(),
		SessionID:  sessionID,
		TurnNumber: proj.TurnNumber,
		State:      payload,
		Checksum:   checksum(payload),
		Type:       snapType,
		CreatedAt:  s.now(),
	}
	if err := s.saveWithRetry(ctx, snap); err != nil {
		return nil, err
	}

	if err := s.store.LogAction(ctx, sessionID, "snapshot.created", snap.ID, map[string]any{
		"type": string(snapType),
		"turn": snap.TurnNumber,
	}); err != nil {
		s.logger.Warn("audit log write failed", "action", "snapshot.created", "error", err)
	}
	return snap, nil
}

// MaybeAutoSnapshot takes a turn_end snapshot when the completed turn
// number hits the configured interval.
func (s *SnapshotManager) MaybeAutoSnapshot(ctx context.Context, sessionID string, turnNumber uint64) error {
	if s.interval == 0 || turnNumber == 0 || turnNumber%s.interval != 0 {
		return nil
	}
	_, err := s.Snapshot(ctx, sessionID, entities.SnapshotTurnEnd)
	return err
}

// Restore loads a snapshot, verifies its checksum, rebuilds the projection
// from its facts plus any ledger facts accepted after it, and publishes the
// result. An empty snapshotID restores from the latest snapshot.
func (s *SnapshotManager) Restore(ctx context.Context, sessionID, snapshotID string) (*Projection, error) {
	snap, err := s.load(ctx, sessionID, snapshotID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, fmt.Errorf("no snapshot found for session %s", sessionID)
	}

	if got := checksum(snap.State); got != snap.Checksum {
		return nil, &entities.SnapshotChecksumError{SnapshotID: snap.ID, Want: snap.Checksum, Got: got}
	}

	var state projectionState
	if err := json.Unmarshal(snap.State, &state); err != nil {
		return nil, fmt.Errorf("decoding snapshot %s: %w", snap.ID, err)
	}

	proj := NewProjection(sessionID)
	for i := range state.Facts {
		if err := proj.ApplyFact(&state.Facts[i]); err != nil {
			return nil, fmt.Errorf("replaying snapshot %s: %w", snap.ID, err)
		}
	}
	proj.SetTurn(state.TurnNumber)

	if _, err := s.replayTail(ctx, proj, sessionID, state.LastSeq); err != nil {
		return nil, err
	}

	if err := s.publish(ctx, sessionID, proj); err != nil {
		return nil, err
	}
	s.logger.Info("session restored from snapshot", "session_id", sessionID, "snapshot_id", snap.ID, "turn", proj.TurnNumber)
	return proj, nil
}

// Recover brings a session back after a restart: latest snapshot plus tail
// replay, falling back to a full ledger replay when the snapshot is missing
// or fails its checksum.
func (s *SnapshotManager) Recover(ctx context.Context, sessionID string) (*Projection, error) {
	proj, err := s.Restore(ctx, sessionID, "")
	if err == nil {
		return proj, nil
	}
	var badSum *entities.SnapshotChecksumError
	if errors.As(err, &badSum) {
		s.logger.Warn("snapshot failed checksum, replaying ledger", "session_id", sessionID, "snapshot_id", badSum.SnapshotID)
		return s.Replay(ctx, sessionID)
	}
	s.logger.Info("no usable snapshot, replaying ledger", "session_id", sessionID, "error", err)
	return s.Replay(ctx, sessionID)
}

// Replay rebuilds the projection from the full accepted-fact history in
// application order and publishes it.
func (s *SnapshotManager) Replay(ctx context.Context, sessionID string) (*Projection, error) {
	proj := NewProjection(sessionID)
	lastSeq, err := s.replayTail(ctx, proj, sessionID, 0)
	if err != nil {
		return nil, err
	}

	latest, err := s.store.LatestTurn(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading latest turn: %w", err)
	}
	if latest != nil {
		proj.SetTurn(latest.Number)
	}

	if err := s.publish(ctx, sessionID, proj); err != nil {
		return nil, err
	}
	s.logger.Info("session replayed from ledger", "session_id", sessionID, "facts", len(proj.AcceptedFacts()), "last_seq", lastSeq)
	return proj, nil
}

// replayTail applies accepted facts with Seq > afterSeq, paging through the
// ledger in application order.
func (s *SnapshotManager) replayTail(ctx context.Context, proj *Projection, sessionID string, afterSeq uint64) (uint64, error) {
	for {
		page, err := s.store.ListAcceptedFacts(ctx, sessionID, afterSeq, replayPageSize)
		if err != nil {
			return afterSeq, fmt.Errorf("paging ledger: %w", err)
		}
		if len(page) == 0 {
			return afterSeq, nil
		}
		for i := range page {
			if err := proj.ApplyFact(&page[i]); err != nil {
				return afterSeq, fmt.Errorf("replaying fact %s: %w", page[i].ID, err)
			}
			afterSeq = page[i].Seq
		}
		if len(page) < replayPageSize {
			return afterSeq, nil
		}
	}
}

func (s *SnapshotManager) publish(ctx context.Context, sessionID string, proj *Projection) error {
	session := s.registry.Get(sessionID)
	if err := session.Acquire(ctx, s.lockTimeout); err != nil {
		return err
	}
	defer session.Release()
	session.Publish(proj)
	return nil
}

func (s *SnapshotManager) load(ctx context.Context, sessionID, snapshotID string) (*entities.SessionSnapshot, error) {
	if snapshotID == "" {
		snap, err := s.store.LatestSnapshot(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("loading latest snapshot: %w", err)
		}
		return snap, nil
	}
	snap, err := s.store.FindSnapshotByID(ctx, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot %s: %w", snapshotID, err)
	}
	return snap, nil
}

// saveWithRetry persists a snapshot, retrying transient store failures with
// a short backoff before giving up.
func (s *SnapshotManager) saveWithRetry(ctx context.Context, snap *entities.SessionSnapshot) error {
	var err error
	for attempt := 1; attempt <= snapshotSaveAttempts; attempt++ {
		if err = s.store.SaveSnapshot(ctx, snap); err == nil {
			return nil
		}
		if attempt < snapshotSaveAttempts {
			s.logger.Warn("snapshot save failed, retrying", "snapshot_id", snap.ID, "attempt", attempt, "error", err)
			s.sleep(time.Duration(attempt) * 100 * time.Millisecond)
		}
	}
	return fmt.Errorf("saving snapshot after %d attempts: %w", snapshotSaveAttempts, err)
}

func checksum(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/ports"
)

// ActionApplier turns a submitted action into ledger proposals. The
// coordinator does not hold the session lock while this runs; the ledger
// takes it per proposal.
type ActionApplier func(ctx context.Context, sessionID string, turn *entities.Turn) ([]ProposeResult, error)

// TurnResult reports a completed submission: the finished turn and the
// outcome of every fact the action produced.
type TurnResult struct {
	Turn    entities.Turn   `json:"turn"`
	Results []ProposeResult `json:"results"`
}

// TurnCoordinator serializes world-mutating actions per session. Turn
// numbers are assigned at admission under the coordinator lock, so they are
// strictly monotonic regardless of submission timing, and a participant can
// only act on the turn currently admitted to them.
type TurnCoordinator struct {
	store     ports.LedgerStore
	registry  *SessionRegistry
	apply     ActionApplier
	snapshots *SnapshotManager
	logger    *slog.Logger

	timeLimit   time.Duration
	lockTimeout time.Duration
	now         func() time.Time
	newID       func() string
	afterFunc   func(time.Duration, func()) *time.Timer

	mu       sync.Mutex
	sessions map[string]*turnState
}

type turnState struct {
	roster    []string
	cursor    int
	current   *entities.Turn
	timer     *time.Timer
	resolving bool
}

// NewTurnCoordinator wires the coordinator. snapshots may be nil.
func NewTurnCoordinator(store ports.LedgerStore, registry *SessionRegistry, apply ActionApplier, snapshots *SnapshotManager, logger *slog.Logger, timeLimit, lockTimeout time.Duration) *TurnCoordinator {
	return &TurnCoordinator{
		store:       store,
		registry:    registry,
		apply:       apply,
		snapshots:   snapshots,
		logger:      logger,
		timeLimit:   timeLimit,
		lockTimeout: lockTimeout,
		now:         time.Now,
		newID:       func() string { return uuid.New().String() },
		afterFunc:   time.AfterFunc,
		sessions:    make(map[string]*turnState),
	}
}

// StartSession begins turn-taking for a session with the given participant
// order and admits the first turn. Numbering continues from the session's
// persisted turns, so a restarted session never reuses a number.
func (t *TurnCoordinator) StartSession(ctx context.Context, sessionID string, roster []string) (*entities.Turn, error) {
	if len(roster) == 0 {
		return nil, &entities.ValidationError{Field: "roster", Reason: "must not be empty"}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.sessions[sessionID]; ok {
		return nil, fmt.Errorf("session %s already has an active turn order", sessionID)
	}

	var next uint64 = 1
	if latest, err := t.store.LatestTurn(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("loading latest turn: %w", err)
	} else if latest != nil {
		next = latest.Number + 1
	}

	state := &turnState{roster: append([]string(nil), roster...), cursor: -1}
	t.sessions[sessionID] = state
	turn, err := t.admitLocked(ctx, sessionID, state, next)
	if err != nil {
		delete(t.sessions, sessionID)
		return nil, err
	}
	return turn, nil
}

// EndSession stops turn-taking and forgets the in-memory order. The turn
// history stays in the store.
func (t *TurnCoordinator) EndSession(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if state, ok := t.sessions[sessionID]; ok {
		if state.timer != nil {
			state.timer.Stop()
		}
		delete(t.sessions, sessionID)
	}
}

// Current returns a copy of the currently admitted turn, or nil.
func (t *TurnCoordinator) Current(sessionID string) *entities.Turn {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.sessions[sessionID]
	if !ok || state.current == nil {
		return nil
	}
	turn := *state.current
	return &turn
}

// SubmitAction accepts an action for the participant's admitted turn,
// applies its facts through the ledger, completes the turn, and admits the
// next participant. Submissions out of turn, late after a timeout, or
// concurrent with an in-flight submission fail with ErrNotYourTurn. A
// failed application leaves the turn open for a retry.
func (t *TurnCoordinator) SubmitAction(ctx context.Context, sessionID, participantID string, action entities.Action) (*TurnResult, error) {
	if err := action.Validate(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	state, ok := t.sessions[sessionID]
	if !ok || state.current == nil || state.current.Terminal() || state.resolving || state.current.ParticipantID != participantID {
		t.mu.Unlock()
		return nil, entities.ErrNotYourTurn
	}
	state.resolving = true
	turn := *state.current
	turn.Action = &action
	turnID := turn.ID
	t.mu.Unlock()

	// Fact application runs without the coordinator lock; each proposal
	// acquires the session lock on its own.
	results, err := t.apply(ctx, sessionID, &turn)
	if err != nil {
		t.mu.Lock()
		if state.current != nil && state.current.ID == turnID {
			state.resolving = false
		}
		t.mu.Unlock()
		return nil, err
	}

	t.mu.Lock()
	if state.current == nil || state.current.ID != turnID {
		// The watchdog timed the turn out while facts were being applied.
		// The facts stand; the turn credit is gone.
		t.mu.Unlock()
		return nil, entities.ErrNotYourTurn
	}
	state.resolving = false
	if state.timer != nil {
		state.timer.Stop()
	}
	state.current.Action = &action
	state.current.Status = entities.TurnCompleted
	state.current.EndedAt = t.now()
	if err := t.store.SaveTurn(ctx, state.current); err != nil {
		t.mu.Unlock()
		return nil, fmt.Errorf("saving turn: %w", err)
	}
	completed := *state.current
	t.logAudit(ctx, sessionID, "turn.completed", completed.ID, map[string]any{
		"number":      completed.Number,
		"participant": completed.ParticipantID,
		"action":      string(action.Kind),
	})
	_, admitErr := t.admitLocked(ctx, sessionID, state, completed.Number+1)
	t.mu.Unlock()
	if admitErr != nil {
		return nil, admitErr
	}

	// Snapshot serialization and I/O run outside the coordinator mutex so a
	// slow write never stalls turn-taking, here or in other sessions.
	if t.snapshots != nil {
		if err := t.snapshots.MaybeAutoSnapshot(ctx, sessionID, completed.Number); err != nil {
			t.logger.Warn("auto snapshot failed", "session_id", sessionID, "error", err)
		}
	}
	return &TurnResult{Turn: completed, Results: results}, nil
}

// Skip ends the current turn without an action and admits the next
// participant. Used by the table to move past an absent player.
func (t *TurnCoordinator) Skip(ctx context.Context, sessionID string) (*entities.Turn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.sessions[sessionID]
	if !ok || state.current == nil || state.current.Terminal() {
		return nil, entities.ErrNotYourTurn
	}
	if state.timer != nil {
		state.timer.Stop()
	}
	state.resolving = false
	state.current.Status = entities.TurnSkipped
	state.current.EndedAt = t.now()
	if err := t.store.SaveTurn(ctx, state.current); err != nil {
		return nil, fmt.Errorf("saving turn: %w", err)
	}
	skipped := *state.current
	t.logAudit(ctx, sessionID, "turn.skipped", skipped.ID, map[string]any{"number": skipped.Number})
	return t.admitLocked(ctx, sessionID, state, skipped.Number+1)
}

// admitLocked opens the next turn in roster order. Caller holds t.mu.
func (t *TurnCoordinator) admitLocked(ctx context.Context, sessionID string, state *turnState, number uint64) (*entities.Turn, error) {
	state.cursor = (state.cursor + 1) % len(state.roster)
	turn := &entities.Turn{
		ID:            t.newID(),
		SessionID:     sessionID,
		Number:        number,
		ParticipantID: state.roster[state.cursor],
		Status:        entities.TurnActive,
		StartedAt:     t.now(),
	}
	if err := t.store.SaveTurn(ctx, turn); err != nil {
		return nil, fmt.Errorf("saving turn: %w", err)
	}
	state.current = turn
	state.resolving = false

	turnID := turn.ID
	if t.timeLimit > 0 {
		state.timer = t.afterFunc(t.timeLimit, func() { t.timeOut(sessionID, turnID) })
	}

	if err := t.publishTurn(ctx, sessionID, number); err != nil {
		return nil, err
	}
	admitted := *turn
	return &admitted, nil
}

// timeOut is the watchdog callback. It only acts if the admitted turn is
// still the one the timer was armed for.
func (t *TurnCoordinator) timeOut(sessionID, turnID string) {
	ctx := context.Background()

	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.sessions[sessionID]
	if !ok || state.current == nil || state.current.ID != turnID || state.current.Terminal() {
		return
	}
	state.current.Status = entities.TurnTimeout
	state.current.EndedAt = t.now()
	state.resolving = false
	if err := t.store.SaveTurn(ctx, state.current); err != nil {
		t.logger.Error("saving timed-out turn", "session_id", sessionID, "turn_id", turnID, "error", err)
		return
	}
	expired := *state.current
	t.logAudit(ctx, sessionID, "turn.timeout", expired.ID, map[string]any{
		"number":      expired.Number,
		"participant": expired.ParticipantID,
	})
	t.logger.Info("turn timed out", "session_id", sessionID, "number", expired.Number, "participant", expired.ParticipantID)

	if _, err := t.admitLocked(ctx, sessionID, state, expired.Number+1); err != nil {
		t.logger.Error("admitting turn after timeout", "session_id", sessionID, "error", err)
	}
}

// publishTurn stamps the admitted turn number onto the session projection
// so facts accepted during the turn carry it.
func (t *TurnCoordinator) publishTurn(ctx context.Context, sessionID string, number uint64) error {
	session := t.registry.Get(sessionID)
	if err := session.Acquire(ctx, t.lockTimeout); err != nil {
		return err
	}
	defer session.Release()
	proj := session.View().Clone()
	proj.SetTurn(number)
	session.Publish(proj)
	return nil
}

func (t *TurnCoordinator) logAudit(ctx context.Context, sessionID, action, refID string, details map[string]any) {
	if err := t.store.LogAction(ctx, sessionID, action, refID, details); err != nil {
		t.logger.Warn("audit log write failed", "action", action, "error", err)
	}
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/ports"
)

// Decision is an arbiter's ruling on an escalated conflict.
type Decision struct {
	// WinnerID selects the surviving fact. Must be the conflict's FactA or FactB.
	WinnerID string
	// Ignore closes the conflict without activating the staged fact.
	Ignore bool
}

// Resolver applies deterministic policies to pick a winning fact and retire
// the loser. Policies are tried in order: derived-fact preference (for
// auto-resolve rules), confidence margin, then most-recent-wins. Conflicts
// neither policy disambiguates, and all critical ones, are escalated to an
// arbiter with a deadline; the deadline callback forces most-recent-wins.
type Resolver struct {
	store    ports.LedgerStore
	registry *SessionRegistry
	llm      ports.LLMClient
	logger   *slog.Logger

	margin      float64
	deadline    time.Duration
	lockTimeout time.Duration

	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	timers map[string]*time.Timer

	now       func() time.Time
	afterFunc func(time.Duration, func()) *time.Timer
}

// NewResolver creates a resolver. llm may be nil; it only supplies advisory
// annotations on escalated conflicts, never decisions.
func NewResolver(store ports.LedgerStore, registry *SessionRegistry, llm ports.LLMClient, logger *slog.Logger, margin float64, deadline, lockTimeout time.Duration) *Resolver {
	return &Resolver{
		store:       store,
		registry:    registry,
		llm:         llm,
		logger:      logger,
		margin:      margin,
		deadline:    deadline,
		lockTimeout: lockTimeout,
		locks:       make(map[string]*sync.Mutex),
		timers:      make(map[string]*time.Timer),
		now:         time.Now,
		afterFunc:   time.AfterFunc,
	}
}

// stagedOutcome reports how a freshly detected conflict was handled.
type stagedOutcome struct {
	Resolved  bool
	Escalated bool
	// CandidateWon is set when the staged fact is the winner.
	CandidateWon bool
}

// resolveStagedLocked handles a conflict detected during propose. The caller
// holds the session lock and owns proj; the candidate is still pending and
// not yet part of the projection. On a candidate win the caller accepts and
// applies it; on a loss this method marks it superseded.
func (r *Resolver) resolveStagedLocked(ctx context.Context, proj *Projection, conflict *entities.Conflict, existing, candidate *entities.Fact) (stagedOutcome, error) {
	if conflict.Severity == entities.SeverityCritical {
		return stagedOutcome{Escalated: true}, r.escalateLocked(ctx, conflict, existing, candidate)
	}

	winner, method, ok := r.decide(existing, candidate, conflict.PreferDerived)
	if !ok {
		return stagedOutcome{Escalated: true}, r.escalateLocked(ctx, conflict, existing, candidate)
	}

	now := r.now()
	conflict.Status = entities.ConflictResolved
	conflict.Resolution = method
	conflict.WinnerID = winner.ID
	conflict.ResolvedAt = now

	if winner.ID == candidate.ID {
		retired := retireFact(existing, candidate.ID, now)
		proj.RemoveFact(existing.ID)
		if err := r.store.SaveFact(ctx, retired); err != nil {
			return stagedOutcome{}, fmt.Errorf("retiring losing fact: %w", err)
		}
		linkWinner(candidate, existing.ID)
	} else {
		superseded := retireFact(candidate, existing.ID, now)
		*candidate = *superseded
		winnerCopy := *existing
		linkWinner(&winnerCopy, candidate.ID)
		winnerCopy.UpdatedAt = now
		proj.RemoveFact(existing.ID)
		if err := proj.ApplyFact(&winnerCopy); err != nil {
			return stagedOutcome{}, err
		}
		if err := r.store.SaveFact(ctx, &winnerCopy); err != nil {
			return stagedOutcome{}, fmt.Errorf("saving winning fact: %w", err)
		}
	}

	if err := r.store.SaveConflict(ctx, conflict); err != nil {
		return stagedOutcome{}, fmt.Errorf("saving conflict: %w", err)
	}
	r.audit(ctx, conflict.SessionID, "conflict.resolved", conflict.ID, map[string]any{
		"winner": conflict.WinnerID,
		"method": string(conflict.Resolution),
	})
	return stagedOutcome{Resolved: true, CandidateWon: winner.ID == candidate.ID}, nil
}

// decide applies the automatic policies. Returns ok=false when neither
// disambiguates.
func (r *Resolver) decide(a, b *entities.Fact, preferDerived bool) (*entities.Fact, entities.ResolutionMethod, bool) {
	if preferDerived {
		aDerived := a.Provenance.Kind == entities.ProvenanceRule
		bDerived := b.Provenance.Kind == entities.ProvenanceRule
		if aDerived != bDerived {
			if aDerived {
				return a, entities.ResolutionDerived, true
			}
			return b, entities.ResolutionDerived, true
		}
	}

	gap := a.Confidence - b.Confidence
	if gap >= r.margin {
		return a, entities.ResolutionConfidence, true
	}
	if -gap >= r.margin {
		return b, entities.ResolutionConfidence, true
	}

	// Within the margin the world changed rather than someone being wrong:
	// the later observation wins.
	if a.ObservedAt.After(b.ObservedAt) {
		return a, entities.ResolutionRecency, true
	}
	if b.ObservedAt.After(a.ObservedAt) {
		return b, entities.ResolutionRecency, true
	}
	return nil, "", false
}

// escalateLocked leaves the conflict open with a deadline and schedules the
// forced-resolution callback. An optional advisory annotation is fetched
// outside the session lock.
func (r *Resolver) escalateLocked(ctx context.Context, conflict *entities.Conflict, existing, candidate *entities.Fact) error {
	conflict.Status = entities.ConflictOpen
	conflict.Deadline = r.now().Add(r.deadline)
	if err := r.store.SaveConflict(ctx, conflict); err != nil {
		return fmt.Errorf("saving escalated conflict: %w", err)
	}
	r.audit(ctx, conflict.SessionID, "conflict.escalated", conflict.ID, map[string]any{
		"severity": string(conflict.Severity),
		"deadline": conflict.Deadline,
	})

	id := conflict.ID
	r.mu.Lock()
	r.timers[id] = r.afterFunc(r.deadline, func() { r.forceResolve(id) })
	r.mu.Unlock()

	if r.llm != nil {
		go r.annotate(id, *existing, *candidate)
	}
	return nil
}

// Resolve records an arbiter decision. Re-resolving an already-resolved
// conflict is a no-op that returns the prior outcome.
func (r *Resolver) Resolve(ctx context.Context, conflictID string, decision Decision, resolvedBy string) (*entities.Conflict, error) {
	lock := r.conflictLock(conflictID)
	lock.Lock()
	defer lock.Unlock()

	conflict, err := r.store.FindConflictByID(ctx, conflictID)
	if err != nil {
		return nil, fmt.Errorf("loading conflict: %w", err)
	}
	if conflict == nil {
		return nil, fmt.Errorf("conflict not found: %s", conflictID)
	}
	if conflict.Terminal() {
		return conflict, nil
	}

	if decision.Ignore {
		return r.ignore(ctx, conflict, resolvedBy)
	}
	if decision.WinnerID != conflict.FactA && decision.WinnerID != conflict.FactB {
		return nil, &entities.ValidationError{Field: "winner_id", Reason: "must reference one of the conflicting facts"}
	}

	if err := r.finalize(ctx, conflict, decision.WinnerID, entities.ResolutionDMOverride, resolvedBy, false); err != nil {
		return nil, err
	}
	return conflict, nil
}

// forceResolve is the escalation-deadline callback. It is idempotent against
// a human resolution arriving concurrently: first to acquire the conflict's
// lock wins, the other becomes a no-op.
func (r *Resolver) forceResolve(conflictID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	lock := r.conflictLock(conflictID)
	lock.Lock()
	defer lock.Unlock()

	conflict, err := r.store.FindConflictByID(ctx, conflictID)
	if err != nil {
		r.logger.Error("loading conflict for forced resolution", "conflict_id", conflictID, "error", err)
		return
	}
	if conflict == nil || conflict.Terminal() {
		return
	}

	factA, factB, err := r.loadPair(ctx, conflict)
	if err != nil {
		r.logger.Error("loading facts for forced resolution", "conflict_id", conflictID, "error", err)
		return
	}

	winner := mostRecent(factA, factB)
	if err := r.finalize(ctx, conflict, winner.ID, entities.ResolutionAutomatic, "", true); err != nil {
		r.logger.Error("forced resolution failed", "conflict_id", conflictID, "error", err)
		return
	}
	r.logger.Warn("conflict resolved by deadline fallback",
		"conflict_id", conflictID, "session_id", conflict.SessionID, "winner", winner.ID)
}

// finalize applies a resolution: winner becomes (or stays) accepted, loser is
// superseded, the projection is republished, and both facts cross-reference
// each other. The caller holds the conflict lock.
func (r *Resolver) finalize(ctx context.Context, conflict *entities.Conflict, winnerID string, method entities.ResolutionMethod, resolvedBy string, forced bool) error {
	factA, factB, err := r.loadPair(ctx, conflict)
	if err != nil {
		return err
	}
	winner, loser := factA, factB
	if winnerID == factB.ID {
		winner, loser = factB, factA
	}

	session := r.registry.Get(conflict.SessionID)
	if err := session.Acquire(ctx, r.lockTimeout); err != nil {
		return err
	}
	defer session.Release()

	now := r.now()
	proj := session.View().Clone()

	if loser.Status == entities.FactAccepted {
		proj.RemoveFact(loser.ID)
	}
	retired := retireFact(loser, winner.ID, now)
	if err := r.store.SaveFact(ctx, retired); err != nil {
		return fmt.Errorf("retiring losing fact: %w", err)
	}

	accepted := *winner
	linkWinner(&accepted, loser.ID)
	accepted.UpdatedAt = now
	if accepted.Status != entities.FactAccepted {
		accepted.Status = entities.FactAccepted
		accepted.RecordConfidence(now, accepted.Confidence, "conflict resolution: "+string(method))
		if err := r.store.AppendConfidence(ctx, accepted.ID, lastConfidence(&accepted)); err != nil {
			return fmt.Errorf("recording confidence: %w", err)
		}
	}
	if err := r.store.SaveFact(ctx, &accepted); err != nil {
		return fmt.Errorf("saving winning fact: %w", err)
	}
	proj.RemoveFact(accepted.ID)
	if err := proj.ApplyFact(&accepted); err != nil {
		return err
	}
	session.Publish(proj)

	conflict.Status = entities.ConflictResolved
	conflict.Resolution = method
	conflict.WinnerID = accepted.ID
	conflict.ResolvedBy = resolvedBy
	conflict.DeadlineForced = forced
	conflict.ResolvedAt = now
	if err := r.store.SaveConflict(ctx, conflict); err != nil {
		return fmt.Errorf("saving conflict: %w", err)
	}
	r.stopTimer(conflict.ID)

	action := "conflict.resolved"
	if forced {
		action = "conflict.deadline_forced"
	}
	r.audit(ctx, conflict.SessionID, action, conflict.ID, map[string]any{
		"winner": accepted.ID,
		"method": string(method),
	})
	return nil
}

// ignore closes a conflict without activating the staged fact: the active
// fact stays active and the staged one stays pending forever.
func (r *Resolver) ignore(ctx context.Context, conflict *entities.Conflict, resolvedBy string) (*entities.Conflict, error) {
	conflict.Status = entities.ConflictIgnored
	conflict.ResolvedBy = resolvedBy
	conflict.ResolvedAt = r.now()
	if err := r.store.SaveConflict(ctx, conflict); err != nil {
		return nil, fmt.Errorf("saving ignored conflict: %w", err)
	}
	r.stopTimer(conflict.ID)
	r.audit(ctx, conflict.SessionID, "conflict.ignored", conflict.ID, nil)
	return conflict, nil
}

// annotate attaches an advisory description to an escalated conflict. Runs
// off the session lock; silently skipped if the conflict closed meanwhile.
func (r *Resolver) annotate(conflictID string, factA, factB entities.Fact) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	assessment, err := r.llm.AssessConflict(ctx, factA, factB)
	if err != nil {
		r.logger.Warn("conflict assessment failed", "conflict_id", conflictID, "error", err)
		return
	}

	lock := r.conflictLock(conflictID)
	lock.Lock()
	defer lock.Unlock()

	conflict, err := r.store.FindConflictByID(ctx, conflictID)
	if err != nil || conflict == nil || conflict.Terminal() {
		return
	}
	conflict.Advisory = assessment.Description
	if err := r.store.SaveConflict(ctx, conflict); err != nil {
		r.logger.Warn("saving conflict advisory", "conflict_id", conflictID, "error", err)
	}
}

func (r *Resolver) loadPair(ctx context.Context, conflict *entities.Conflict) (*entities.Fact, *entities.Fact, error) {
	factA, err := r.store.FindFactByID(ctx, conflict.FactA)
	if err != nil {
		return nil, nil, fmt.Errorf("loading fact %s: %w", conflict.FactA, err)
	}
	factB, err := r.store.FindFactByID(ctx, conflict.FactB)
	if err != nil {
		return nil, nil, fmt.Errorf("loading fact %s: %w", conflict.FactB, err)
	}
	if factA == nil || factB == nil {
		return nil, nil, fmt.Errorf("conflict %s references missing facts", conflict.ID)
	}
	return factA, factB, nil
}

func (r *Resolver) conflictLock(id string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[id] = lock
	}
	return lock
}

func (r *Resolver) stopTimer(conflictID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if timer, ok := r.timers[conflictID]; ok {
		timer.Stop()
		delete(r.timers, conflictID)
	}
}

func (r *Resolver) audit(ctx context.Context, sessionID, action, refID string, details map[string]any) {
	if err := r.store.LogAction(ctx, sessionID, action, refID, details); err != nil {
		r.logger.Warn("audit log write failed", "action", action, "error", err)
	}
}

// retireFact returns a superseded copy of a fact cross-linked to its winner.
func retireFact(fact *entities.Fact, winnerID string, now time.Time) *entities.Fact {
	retired := *fact
	retired.Status = entities.FactSuperseded
	linkLoser(&retired, winnerID)
	retired.UpdatedAt = now
	return &retired
}

// linkWinner records a displaced fact on the winner: in Contradictions as
// the fact it contradicted and in SupportingFacts as the resolution trail.
func linkWinner(fact *entities.Fact, loserID string) {
	fact.Contradictions = appendFactID(fact.Contradictions, loserID)
	fact.SupportingFacts = appendFactID(fact.SupportingFacts, loserID)
}

// linkLoser records the fact a superseded fact lost to.
func linkLoser(fact *entities.Fact, winnerID string) {
	fact.Contradictions = appendFactID(fact.Contradictions, winnerID)
}

func appendFactID(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(append([]string(nil), ids...), id)
}

// mostRecent picks the later observation, with deterministic tie-breaks on
// confidence then id so forced resolutions are repeatable.
func mostRecent(a, b *entities.Fact) *entities.Fact {
	if a.ObservedAt.After(b.ObservedAt) {
		return a
	}
	if b.ObservedAt.After(a.ObservedAt) {
		return b
	}
	if a.Confidence != b.Confidence {
		if a.Confidence > b.Confidence {
			return a
		}
		return b
	}
	if a.ID > b.ID {
		return a
	}
	return b
}

func lastConfidence(fact *entities.Fact) entities.ConfidenceChange {
	return fact.ConfidenceHistory[len(fact.ConfidenceHistory)-1]
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/ports"
)

// ProposeResult reports the outcome of a fact proposal.
type ProposeResult struct {
	FactID string `json:"fact_id"`
	// Status is accepted, pending (staged behind a conflict), or superseded
	// (staged and immediately lost the conflict).
	Status entities.FactStatus `json:"status"`
	// ConflictID references the conflict the proposal raised, open or
	// already auto-resolved. Empty when detection found nothing.
	ConflictID string `json:"conflict_id,omitempty"`
}

// LedgerService is the append-only, temporally-scoped fact ledger. Every
// mutation in the engine flows through Propose: conflict detection, the
// resolver, and the rule cascade all run inside the session's
// mutual-exclusion region, and the projection is republished atomically.
type LedgerService struct {
	store    ports.LedgerStore
	registry *SessionRegistry
	detector *ConflictDetector
	resolver *Resolver
	rules    *RuleEngine
	index    *SemanticIndex
	logger   *slog.Logger

	lockTimeout time.Duration
	now         func() time.Time
	newID       func() string
}

// NewLedgerService wires the ledger. rules and index may be nil.
func NewLedgerService(store ports.LedgerStore, registry *SessionRegistry, detector *ConflictDetector, resolver *Resolver, rules *RuleEngine, index *SemanticIndex, logger *slog.Logger, lockTimeout time.Duration) *LedgerService {
	return &LedgerService{
		store:       store,
		registry:    registry,
		detector:    detector,
		resolver:    resolver,
		rules:       rules,
		index:       index,
		logger:      logger,
		lockTimeout: lockTimeout,
		now:         time.Now,
		newID:       func() string { return uuid.New().String() },
	}
}

// cascade carries derivation bookkeeping through recursive proposals.
type cascade struct {
	depth       int
	chain       []string
	autoResolve bool
	accepted    *[]entities.Fact
}

// Propose stages a candidate fact, runs conflict detection, resolution, and
// the rule cascade, and publishes the updated projection. A RuleCycleError
// is returned alongside a valid result: the fact (and any derivations
// accepted before the cycle tripped) stays accepted.
func (l *LedgerService) Propose(ctx context.Context, fact *entities.Fact) (*ProposeResult, error) {
	if err := fact.Validate(); err != nil {
		return nil, err
	}

	session := l.registry.Get(fact.SessionID)
	if err := session.Acquire(ctx, l.lockTimeout); err != nil {
		return nil, err
	}

	proj := session.View().Clone()
	var accepted []entities.Fact
	result, err := l.proposeLocked(ctx, proj, fact, cascade{accepted: &accepted})
	if result != nil {
		session.Publish(proj)
	}
	session.Release()

	if err != nil && !isRuleCycle(err) {
		return result, err
	}

	// Semantic indexing happens outside the lock; index failures are logged
	// and audited but never fail the proposal.
	if l.index != nil {
		for _, f := range accepted {
			if indexErr := l.index.IndexFact(ctx, proj, f); indexErr != nil {
				l.logger.Warn("semantic index write failed", "fact_id", f.ID, "error", indexErr)
			}
		}
	}
	return result, err
}

// proposeLocked runs the ingestion pipeline for one candidate under the
// session lock. Derived facts recurse through it with increasing depth.
func (l *LedgerService) proposeLocked(ctx context.Context, proj *Projection, fact *entities.Fact, c cascade) (*ProposeResult, error) {
	now := l.now()
	l.fillDefaults(fact, proj, now)
	if err := fact.Validate(); err != nil {
		return nil, err
	}

	// Re-asserting an identical value refreshes confidence on the existing
	// fact instead of staging a duplicate. This also keeps idempotent rule
	// effects from deriving the same fact over and over.
	if existing := proj.ActiveFact(fact.SubjectID, fact.Property, fact.ObjectID, now); existing != nil && existing.Value.Equal(fact.Value) {
		return l.reassert(ctx, proj, existing, fact, now)
	}

	detections := l.detector.Detect(proj, fact, now)
	if len(detections) == 0 {
		return l.accept(ctx, proj, fact, c, now)
	}

	fact.Status = entities.FactPending
	fact.RecordConfidence(now, fact.Confidence, "asserted")
	if err := l.store.SaveFact(ctx, fact); err != nil {
		return nil, fmt.Errorf("staging fact: %w", err)
	}
	if err := l.store.AppendConfidence(ctx, fact.ID, lastConfidence(fact)); err != nil {
		return nil, fmt.Errorf("recording confidence: %w", err)
	}

	var lastConflictID string
	for _, detection := range detections {
		conflict := &entities.Conflict{
			ID:            l.newID(),
			SessionID:     fact.SessionID,
			FactA:         detection.Existing.ID,
			FactB:         fact.ID,
			Type:          detection.Type,
			Severity:      detection.Severity,
			Status:        entities.ConflictOpen,
			PreferDerived: c.autoResolve,
			DetectedAt:    now,
		}

		outcome, err := l.resolver.resolveStagedLocked(ctx, proj, conflict, detection.Existing, fact)
		if err != nil {
			return nil, err
		}
		if outcome.Escalated {
			l.audit(ctx, fact.SessionID, "fact.staged", fact.ID, map[string]any{"conflict_id": conflict.ID})
			return &ProposeResult{FactID: fact.ID, Status: entities.FactPending, ConflictID: conflict.ID}, nil
		}
		if !outcome.CandidateWon {
			if err := l.store.SaveFact(ctx, fact); err != nil {
				return nil, fmt.Errorf("saving superseded fact: %w", err)
			}
			return &ProposeResult{FactID: fact.ID, Status: entities.FactSuperseded, ConflictID: conflict.ID}, nil
		}
		lastConflictID = conflict.ID
	}

	// The candidate won every conflict it raised; report the last one so
	// callers can trace the resolution record.
	result, err := l.accept(ctx, proj, fact, c, now)
	if result != nil {
		result.ConflictID = lastConflictID
	}
	return result, err
}

// accept activates a fact, applies it to the projection, and runs the rule
// cascade.
func (l *LedgerService) accept(ctx context.Context, proj *Projection, fact *entities.Fact, c cascade, now time.Time) (*ProposeResult, error) {
	fact.Status = entities.FactAccepted
	if len(fact.ConfidenceHistory) == 0 {
		fact.RecordConfidence(now, fact.Confidence, "asserted")
	}
	if err := l.store.SaveFact(ctx, fact); err != nil {
		return nil, fmt.Errorf("saving fact: %w", err)
	}
	if err := l.store.AppendConfidence(ctx, fact.ID, lastConfidence(fact)); err != nil {
		return nil, fmt.Errorf("recording confidence: %w", err)
	}
	if err := proj.ApplyFact(fact); err != nil {
		return nil, err
	}
	l.audit(ctx, fact.SessionID, "fact.accepted", fact.ID, map[string]any{
		"subject":  fact.SubjectID,
		"property": fact.Property,
		"value":    fact.Value.String(),
	})
	if c.accepted != nil {
		*c.accepted = append(*c.accepted, *fact)
	}

	result := &ProposeResult{FactID: fact.ID, Status: entities.FactAccepted}
	if err := l.runRules(ctx, proj, c); err != nil {
		if isRuleCycle(err) {
			l.logger.Error("rule derivation aborted", "session_id", fact.SessionID, "error", err)
			l.audit(ctx, fact.SessionID, "rule.cycle", fact.ID, map[string]any{"chain": err.Error()})
			return result, err
		}
		return nil, err
	}
	return result, nil
}

// reassert refreshes an existing fact's confidence without staging a
// duplicate. Confidence only changes through explicit re-assertion like
// this, or through resolver action.
func (l *LedgerService) reassert(ctx context.Context, proj *Projection, existing, candidate *entities.Fact, now time.Time) (*ProposeResult, error) {
	updated := *existing
	updated.RecordConfidence(now, candidate.Confidence, "re-asserted by "+string(candidate.Provenance.Kind))
	updated.UpdatedAt = now
	if err := l.store.AppendConfidence(ctx, existing.ID, lastConfidence(&updated)); err != nil {
		return nil, fmt.Errorf("recording confidence: %w", err)
	}
	if err := l.store.SaveFact(ctx, &updated); err != nil {
		return nil, fmt.Errorf("saving re-asserted fact: %w", err)
	}
	proj.RemoveFact(existing.ID)
	if err := proj.ApplyFact(&updated); err != nil {
		return nil, err
	}
	return &ProposeResult{FactID: existing.ID, Status: entities.FactAccepted}, nil
}

// runRules evaluates enabled rules against the updated projection and feeds
// their candidate facts back through the pipeline. Exceeding the depth limit
// aborts the chain with RuleCycleError; earlier acceptances stand.
func (l *LedgerService) runRules(ctx context.Context, proj *Projection, c cascade) error {
	if l.rules == nil {
		return nil
	}
	depth := c.depth + 1
	now := l.now()
	for _, rule := range l.rules.Enabled() {
		if !rule.Condition(proj, now) {
			continue
		}
		for _, candidate := range rule.Effect(proj, now) {
			// A finite chain may reach the limit exactly; only a rule still
			// producing candidates past it is treated as a cycle.
			if depth > l.rules.MaxDepth() {
				chain := append(append([]string(nil), c.chain...), rule.ID)
				return &entities.RuleCycleError{Depth: l.rules.MaxDepth(), Chain: chain}
			}
			derived := candidate
			derived.SessionID = proj.SessionID
			derived.Verification = entities.VerificationDerived
			derived.Provenance = entities.Provenance{Kind: entities.ProvenanceRule, SourceID: rule.ID}
			chain := append(append([]string(nil), c.chain...), rule.ID)
			if _, err := l.proposeLocked(ctx, proj, &derived, cascade{
				depth:       depth,
				chain:       chain,
				autoResolve: rule.AutoResolve,
				accepted:    c.accepted,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// Query is the temporal point query: the single active fact for a state
// slot at asOf. It reads the published projection without taking the
// session lock and is side-effect free.
func (l *LedgerService) Query(ctx context.Context, sessionID, subjectID, property, objectID string, asOf time.Time) (*entities.Fact, error) {
	if asOf.IsZero() {
		asOf = l.now()
	}
	proj := l.registry.Get(sessionID).View()
	fact := proj.ActiveFact(subjectID, property, objectID, asOf)
	if fact == nil {
		return nil, nil
	}
	view := *fact
	return &view, nil
}

// History returns a restartable, time-ordered cursor over every fact ever
// asserted for a state slot, including superseded ones.
func (l *LedgerService) History(sessionID string, key entities.Key) *HistoryCursor {
	return &HistoryCursor{
		store:     l.store,
		sessionID: sessionID,
		key:       key,
		pageSize:  historyPageSize,
	}
}

// Projection returns the published projection for a session.
func (l *LedgerService) Projection(sessionID string) *Projection {
	return l.registry.Get(sessionID).View()
}

func (l *LedgerService) fillDefaults(fact *entities.Fact, proj *Projection, now time.Time) {
	if fact.ID == "" {
		fact.ID = l.newID()
	}
	if fact.SessionID == "" {
		fact.SessionID = proj.SessionID
	}
	if fact.ObservedAt.IsZero() {
		fact.ObservedAt = now
	}
	if fact.Validity.From.IsZero() {
		fact.Validity.From = fact.ObservedAt
	}
	if fact.Verification == "" {
		fact.Verification = entities.VerificationStated
	}
	if fact.CreatedAt.IsZero() {
		fact.CreatedAt = now
	}
	fact.UpdatedAt = now
	if fact.TurnNumber == 0 {
		fact.TurnNumber = proj.TurnNumber
	}
}

func (l *LedgerService) audit(ctx context.Context, sessionID, action, refID string, details map[string]any) {
	if err := l.store.LogAction(ctx, sessionID, action, refID, details); err != nil {
		l.logger.Warn("audit log write failed", "action", action, "error", err)
	}
}

func isRuleCycle(err error) bool {
	var cycle *entities.RuleCycleError
	return errors.As(err, &cycle)
}

const historyPageSize = 100

// HistoryCursor lazily pages through a state slot's full assertion history
// in observation order. Restart rewinds to the beginning.
type HistoryCursor struct {
	store     ports.LedgerStore
	sessionID string
	key       entities.Key
	pageSize  int

	buf    []entities.Fact
	pos    int
	offset int
	done   bool
}

// Next returns the next fact, or nil when the history is exhausted.
func (c *HistoryCursor) Next(ctx context.Context) (*entities.Fact, error) {
	if c.pos >= len(c.buf) {
		if c.done {
			return nil, nil
		}
		page, err := c.store.FindFactsByKey(ctx, c.sessionID, c.key, c.pageSize, c.offset)
		if err != nil {
			return nil, fmt.Errorf("paging history: %w", err)
		}
		if len(page) == 0 {
			c.done = true
			return nil, nil
		}
		c.offset += len(page)
		if len(page) < c.pageSize {
			c.done = true
		}
		c.buf = page
		c.pos = 0
	}
	fact := c.buf[c.pos]
	c.pos++
	return &fact, nil
}

// Restart rewinds the cursor to the beginning of the history.
func (c *HistoryCursor) Restart() {
	c.buf = nil
	c.pos = 0
	c.offset = 0
	c.done = false
}

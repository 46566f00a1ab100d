package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/mocks"
)

// engineFixture wires a ledger against the in-memory store with a fixed
// clock, counting ids, and captured escalation timers.
type engineFixture struct {
	store     *mocks.LedgerStore
	registry  *SessionRegistry
	detector  *ConflictDetector
	resolver  *Resolver
	rules     *RuleEngine
	ledger    *LedgerService
	clock     time.Time
	deadlines []func()
}

func newEngine(t *testing.T, multiValued ...string) *engineFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	fx := &engineFixture{
		store:    mocks.NewLedgerStore(),
		registry: NewSessionRegistry(),
		clock:    time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC),
	}
	fx.detector = NewConflictDetector(multiValued, 0.2)
	fx.resolver = NewResolver(fx.store, fx.registry, nil, logger, 0.2, time.Hour, time.Second)
	fx.resolver.now = func() time.Time { return fx.clock }
	fx.resolver.afterFunc = func(d time.Duration, f func()) *time.Timer {
		fx.deadlines = append(fx.deadlines, f)
		return time.NewTimer(time.Hour)
	}
	fx.rules = NewRuleEngine(3)
	fx.ledger = NewLedgerService(fx.store, fx.registry, fx.detector, fx.resolver, fx.rules, nil, logger, time.Second)
	fx.ledger.now = func() time.Time { return fx.clock }

	ids := 0
	fx.ledger.newID = func() string {
		ids++
		return fmt.Sprintf("id-%d", ids)
	}
	return fx
}

func (fx *engineFixture) advance(d time.Duration) {
	fx.clock = fx.clock.Add(d)
}

func (fx *engineFixture) propose(t *testing.T, subject, property string, value entities.Value, confidence float64) *ProposeResult {
	t.Helper()
	result, err := fx.ledger.Propose(context.Background(), &entities.Fact{
		SessionID:  "session-1",
		SubjectID:  subject,
		Property:   property,
		Value:      value,
		Confidence: confidence,
	})
	require.NoError(t, err)
	return result
}

func TestLedger_ProposeAccept(t *testing.T) {
	fx := newEngine(t)

	result := fx.propose(t, "aldric", "located_in", entities.TextValue("rivermoor"), 0.8)

	assert.Equal(t, entities.FactAccepted, result.Status)
	assert.Empty(t, result.ConflictID)

	stored := fx.store.Facts[result.FactID]
	require.NotNil(t, stored)
	assert.Equal(t, entities.FactAccepted, stored.Status)
	assert.Equal(t, uint64(1), stored.Seq, "seq assigned on accept")
	assert.Equal(t, entities.VerificationStated, stored.Verification, "defaulted")
	assert.Contains(t, fx.store.AuditActions(), "fact.accepted")

	got, err := fx.ledger.Query(context.Background(), "session-1", "aldric", "located_in", "", time.Time{})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "rivermoor", got.Value.Text)
}

func TestLedger_ProposeRejectsInvalid(t *testing.T) {
	fx := newEngine(t)

	_, err := fx.ledger.Propose(context.Background(), &entities.Fact{
		SessionID: "session-1",
		Property:  "located_in",
		Value:     entities.TextValue("rivermoor"),
	})
	var vErr *entities.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "subject_id", vErr.Field)
	assert.Empty(t, fx.store.Facts, "nothing stored")
}

func TestLedger_Reassert(t *testing.T) {
	fx := newEngine(t)

	first := fx.propose(t, "aldric", "located_in", entities.TextValue("rivermoor"), 0.6)
	fx.advance(time.Minute)
	second := fx.propose(t, "aldric", "located_in", entities.TextValue("rivermoor"), 0.9)

	assert.Equal(t, first.FactID, second.FactID, "no duplicate staged")
	assert.Equal(t, entities.FactAccepted, second.Status)

	stored := fx.store.Facts[first.FactID]
	require.NotNil(t, stored)
	assert.Equal(t, 0.9, stored.Confidence)
	require.Len(t, stored.ConfidenceHistory, 2)
	assert.Contains(t, stored.ConfidenceHistory[1].Reason, "re-asserted")
	assert.Empty(t, fx.store.Conflicts, "re-assertion is not a conflict")
}

func TestLedger_ConflictConfidenceGap(t *testing.T) {
	t.Run("existing wins", func(t *testing.T) {
		fx := newEngine(t)
		existing := fx.propose(t, "aldric", "located_in", entities.TextValue("rivermoor"), 0.85)
		fx.advance(time.Minute)
		candidate := fx.propose(t, "aldric", "located_in", entities.TextValue("thornhold"), 0.5)

		assert.Equal(t, entities.FactSuperseded, candidate.Status)
		require.NotEmpty(t, candidate.ConflictID)

		conflict := fx.store.Conflicts[candidate.ConflictID]
		require.NotNil(t, conflict)
		assert.Equal(t, entities.ConflictResolved, conflict.Status)
		assert.Equal(t, entities.ResolutionConfidence, conflict.Resolution)
		assert.Equal(t, existing.FactID, conflict.WinnerID)

		// The projection still serves the winner.
		got, err := fx.ledger.Query(context.Background(), "session-1", "aldric", "located_in", "", time.Time{})
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "rivermoor", got.Value.Text)

		loser := fx.store.Facts[candidate.FactID]
		require.NotNil(t, loser)
		assert.Equal(t, entities.FactSuperseded, loser.Status)
		assert.Contains(t, loser.Contradictions, existing.FactID)

		winner := fx.store.Facts[existing.FactID]
		require.NotNil(t, winner)
		assert.Contains(t, winner.Contradictions, candidate.FactID)
		assert.Contains(t, winner.SupportingFacts, candidate.FactID)
	})

	t.Run("candidate wins", func(t *testing.T) {
		fx := newEngine(t)
		existing := fx.propose(t, "aldric", "located_in", entities.TextValue("rivermoor"), 0.5)
		fx.advance(time.Minute)
		candidate := fx.propose(t, "aldric", "located_in", entities.TextValue("thornhold"), 0.85)

		assert.Equal(t, entities.FactAccepted, candidate.Status)

		// Even an auto-resolved win reports its conflict for traceability.
		require.NotEmpty(t, candidate.ConflictID)
		conflict := fx.store.Conflicts[candidate.ConflictID]
		require.NotNil(t, conflict)
		assert.Equal(t, entities.ConflictResolved, conflict.Status)
		assert.Equal(t, candidate.FactID, conflict.WinnerID)

		got, err := fx.ledger.Query(context.Background(), "session-1", "aldric", "located_in", "", time.Time{})
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "thornhold", got.Value.Text)

		retired := fx.store.Facts[existing.FactID]
		require.NotNil(t, retired)
		assert.Equal(t, entities.FactSuperseded, retired.Status)
		assert.Contains(t, retired.Contradictions, candidate.FactID)

		winner := fx.store.Facts[candidate.FactID]
		require.NotNil(t, winner)
		assert.Contains(t, winner.SupportingFacts, existing.FactID)
	})
}

func TestLedger_ConflictRecency(t *testing.T) {
	fx := newEngine(t)

	fx.propose(t, "aldric", "located_in", entities.TextValue("rivermoor"), 0.7)
	fx.advance(time.Hour)
	candidate := fx.propose(t, "aldric", "located_in", entities.TextValue("thornhold"), 0.7)

	assert.Equal(t, entities.FactAccepted, candidate.Status, "within margin the later observation wins")

	// A won conflict is cleared from the result; find it in the store.
	require.Len(t, fx.store.Conflicts, 1)
	var conflict *entities.Conflict
	for _, c := range fx.store.Conflicts {
		conflict = c
	}
	assert.Equal(t, entities.ResolutionRecency, conflict.Resolution)
}

func TestLedger_CriticalEscalates(t *testing.T) {
	fx := newEngine(t)

	existing := fx.propose(t, "aldric", "alive", entities.BoolValue(true), 0.95)
	fx.advance(time.Minute)

	result, err := fx.ledger.Propose(context.Background(), &entities.Fact{
		SessionID:  "session-1",
		SubjectID:  "aldric",
		Property:   "alive",
		Value:      entities.BoolValue(false),
		Confidence: 0.95,
	})
	require.NoError(t, err)

	assert.Equal(t, entities.FactPending, result.Status)
	require.NotEmpty(t, result.ConflictID)

	conflict := fx.store.Conflicts[result.ConflictID]
	require.NotNil(t, conflict)
	assert.Equal(t, entities.ConflictOpen, conflict.Status)
	assert.Equal(t, entities.SeverityCritical, conflict.Severity)
	assert.Equal(t, fx.clock.Add(time.Hour), conflict.Deadline)
	assert.Len(t, fx.deadlines, 1, "forced-resolution timer armed")

	// The existing fact keeps serving reads while the conflict is open.
	got, err := fx.ledger.Query(context.Background(), "session-1", "aldric", "alive", "", time.Time{})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, existing.FactID, got.ID)

	staged := fx.store.Facts[result.FactID]
	require.NotNil(t, staged)
	assert.Equal(t, entities.FactPending, staged.Status)
	assert.Contains(t, fx.store.AuditActions(), "conflict.escalated")
}

func TestLedger_TieEscalates(t *testing.T) {
	fx := newEngine(t)

	fx.propose(t, "aldric", "mood", entities.TextValue("wary"), 0.7)
	// Same clock instant and equal confidence: nothing disambiguates.
	result, err := fx.ledger.Propose(context.Background(), &entities.Fact{
		SessionID:  "session-1",
		SubjectID:  "aldric",
		Property:   "mood",
		Value:      entities.TextValue("furious"),
		Confidence: 0.7,
	})
	require.NoError(t, err)
	assert.Equal(t, entities.FactPending, result.Status)
	assert.NotEmpty(t, result.ConflictID)
}

func TestLedger_RuleDerivation(t *testing.T) {
	fx := newEngine(t)

	fx.rules.Register(entities.Rule{
		ID:       "rule-ward",
		Name:     "wards fail when the beacon is dark",
		Priority: 10,
		Enabled:  true,
		Condition: func(view entities.StateView, asOf time.Time) bool {
			f := view.ActiveFact("beacon", "lit", "", asOf)
			return f != nil && !f.Value.Bool
		},
		Effect: func(view entities.StateView, asOf time.Time) []entities.Fact {
			return []entities.Fact{{
				SubjectID:  "city-wards",
				Property:   "active",
				Value:      entities.BoolValue(false),
				Validity:   entities.Interval{From: asOf},
				Confidence: 1.0,
			}}
		},
	})

	result := fx.propose(t, "beacon", "lit", entities.BoolValue(false), 1.0)
	assert.Equal(t, entities.FactAccepted, result.Status)

	derived, err := fx.ledger.Query(context.Background(), "session-1", "city-wards", "active", "", time.Time{})
	require.NoError(t, err)
	require.NotNil(t, derived)
	assert.Equal(t, entities.VerificationDerived, derived.Verification)
	assert.Equal(t, entities.ProvenanceRule, derived.Provenance.Kind)
	assert.Equal(t, "rule-ward", derived.Provenance.SourceID)
}

func TestLedger_RuleDerivationIsIdempotent(t *testing.T) {
	fx := newEngine(t)

	fx.rules.Register(entities.Rule{
		ID:      "rule-ward",
		Enabled: true,
		Condition: func(view entities.StateView, asOf time.Time) bool {
			return view.ActiveFact("beacon", "lit", "", asOf) != nil
		},
		Effect: func(view entities.StateView, asOf time.Time) []entities.Fact {
			return []entities.Fact{{
				SubjectID:  "city-wards",
				Property:   "active",
				Value:      entities.BoolValue(false),
				Validity:   entities.Interval{From: asOf},
				Confidence: 1.0,
			}}
		},
	})

	// The rule fires on every acceptance, but re-derivation of an identical
	// value collapses into a confidence refresh rather than a new fact.
	fx.propose(t, "beacon", "lit", entities.BoolValue(true), 1.0)
	fx.advance(time.Minute)
	fx.propose(t, "mira", "mood", entities.TextValue("calm"), 0.8)

	count := 0
	for _, f := range fx.store.Facts {
		if f.SubjectID == "city-wards" && f.Status == entities.FactAccepted {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestLedger_RuleCycleAborts(t *testing.T) {
	fx := newEngine(t)

	// Two rules that flip a flag back and forth derive forever; the depth
	// bound trips and the originally proposed fact stays accepted.
	flip := func(id string, fromValue bool) entities.Rule {
		return entities.Rule{
			ID:      id,
			Enabled: true,
			Condition: func(view entities.StateView, asOf time.Time) bool {
				f := view.ActiveFact("gate", "open", "", asOf)
				return f != nil && f.Value.Bool == fromValue
			},
			Effect: func(view entities.StateView, asOf time.Time) []entities.Fact {
				return []entities.Fact{{
					SubjectID:  "gate",
					Property:   "open",
					Value:      entities.BoolValue(!fromValue),
					ObservedAt: asOf,
					Validity:   entities.Interval{From: asOf},
					Confidence: 0.7,
				}}
			},
		}
	}
	fx.rules.Register(flip("rule-close", true))
	fx.rules.Register(flip("rule-open", false))

	// Each derivation needs a later observation to win its conflict.
	fx.ledger.now = func() time.Time {
		fx.clock = fx.clock.Add(time.Second)
		return fx.clock
	}
	fx.resolver.now = fx.ledger.now

	result, err := fx.ledger.Propose(context.Background(), &entities.Fact{
		SessionID:  "session-1",
		SubjectID:  "gate",
		Property:   "open",
		Value:      entities.BoolValue(true),
		Confidence: 0.7,
	})

	var cycle *entities.RuleCycleError
	require.ErrorAs(t, err, &cycle)
	require.NotNil(t, result, "the proposed fact is in despite the cycle")
	assert.Equal(t, entities.FactAccepted, result.Status)
	assert.Contains(t, fx.store.AuditActions(), "rule.cycle")

	stored := fx.store.Facts[result.FactID]
	require.NotNil(t, stored)
}

func TestLedger_FiniteChainAtDepthLimitDerivesCleanly(t *testing.T) {
	fx := newEngine(t)

	// Three links, each firing once: as deep as the engine allows (the
	// fixture's limit is 3), but never past it.
	link := func(id, fromSubj, fromProp, toSubj, toProp string) entities.Rule {
		return entities.Rule{
			ID:      id,
			Enabled: true,
			Condition: func(view entities.StateView, asOf time.Time) bool {
				return view.ActiveFact(fromSubj, fromProp, "", asOf) != nil &&
					view.ActiveFact(toSubj, toProp, "", asOf) == nil
			},
			Effect: func(view entities.StateView, asOf time.Time) []entities.Fact {
				return []entities.Fact{{
					SubjectID:  toSubj,
					Property:   toProp,
					Value:      entities.BoolValue(true),
					Validity:   entities.Interval{From: asOf},
					Confidence: 1.0,
				}}
			},
		}
	}
	fx.rules.Register(link("rule-alert", "beacon", "lit", "watch", "alerted"))
	fx.rules.Register(link("rule-muster", "watch", "alerted", "garrison", "mustered"))
	fx.rules.Register(link("rule-march", "garrison", "mustered", "reinforcements", "marching"))

	result, err := fx.ledger.Propose(context.Background(), &entities.Fact{
		SessionID:  "session-1",
		SubjectID:  "beacon",
		Property:   "lit",
		Value:      entities.BoolValue(true),
		Confidence: 1.0,
	})
	require.NoError(t, err, "a chain of exactly the depth limit is not a cycle")
	assert.Equal(t, entities.FactAccepted, result.Status)
	assert.NotContains(t, fx.store.AuditActions(), "rule.cycle")

	for _, slot := range [][2]string{{"watch", "alerted"}, {"garrison", "mustered"}, {"reinforcements", "marching"}} {
		derived, err := fx.ledger.Query(context.Background(), "session-1", slot[0], slot[1], "", time.Time{})
		require.NoError(t, err)
		require.NotNil(t, derived, "%s/%s should be derived", slot[0], slot[1])
		assert.Equal(t, entities.VerificationDerived, derived.Verification)
	}
}

func TestLedger_History(t *testing.T) {
	fx := newEngine(t)

	values := []string{"rivermoor", "thornhold", "emberfall"}
	for _, v := range values {
		fx.propose(t, "aldric", "located_in", entities.TextValue(v), 0.7)
		fx.advance(time.Hour)
	}

	cursor := fx.ledger.History("session-1", entities.Key{SubjectID: "aldric", Property: "located_in"})
	var got []string
	for {
		fact, err := cursor.Next(context.Background())
		require.NoError(t, err)
		if fact == nil {
			break
		}
		got = append(got, fact.Value.Text)
	}
	assert.Equal(t, values, got, "full history in observation order, superseded included")
}

func TestLedger_SemanticIndexing(t *testing.T) {
	fx := newEngine(t)
	vectorDB := &mocks.VectorDB{}
	emb := &mocks.Embedder{EmbeddingResult: []float32{0.1, 0.2}}
	fx.ledger.index = NewSemanticIndex(vectorDB, emb)

	fx.propose(t, "aldric", "located_in", entities.TextValue("rivermoor"), 0.8)

	assert.Equal(t, 1, vectorDB.SaveCallCount)
	assert.Equal(t, 1, emb.EmbedCallCount)
	assert.Contains(t, emb.LastText, "rivermoor")
}

func TestLedger_IndexFailureDoesNotFailPropose(t *testing.T) {
	fx := newEngine(t)
	vectorDB := &mocks.VectorDB{Err: fmt.Errorf("qdrant down")}
	emb := &mocks.Embedder{EmbeddingResult: []float32{0.1}}
	fx.ledger.index = NewSemanticIndex(vectorDB, emb)

	result := fx.propose(t, "aldric", "located_in", entities.TextValue("rivermoor"), 0.8)
	assert.Equal(t, entities.FactAccepted, result.Status)
}

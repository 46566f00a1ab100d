package handlers

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/mocks"
	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/services"
)

// handlerFixture wires a real ledger pipeline over mock stores so handler
// tests exercise the same path production requests take.
type handlerFixture struct {
	store    *mocks.LedgerStore
	llm      *mocks.LLMClient
	registry *services.SessionRegistry
	resolver *services.Resolver
	ledger   *services.LedgerService
	auth     *Authorizer
	logger   *slog.Logger
}

func newHandlerFixture(t *testing.T, rules *services.RuleEngine) *handlerFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := mocks.NewLedgerStore()
	registry := services.NewSessionRegistry()
	detector := services.NewConflictDetector(nil, 0.2)
	llm := &mocks.LLMClient{}
	resolver := services.NewResolver(store, registry, llm, logger, 0.2, time.Hour, time.Second)
	ledger := services.NewLedgerService(store, registry, detector, resolver, rules, nil, logger, time.Second)

	return &handlerFixture{
		store:    store,
		llm:      llm,
		registry: registry,
		resolver: resolver,
		ledger:   ledger,
		auth:     testAuthorizer(),
		logger:   logger,
	}
}

func TestDeriveFacts(t *testing.T) {
	turn := func(action entities.Action) *entities.Turn {
		return &entities.Turn{
			ID:            "turn-1",
			SessionID:     "session-1",
			Number:        4,
			ParticipantID: "aldric",
			Action:        &action,
		}
	}

	t.Run("attack", func(t *testing.T) {
		facts := deriveFacts("session-1", turn(entities.Action{
			Kind:   entities.ActionAttack,
			Attack: &entities.AttackPayload{TargetID: "goblin-3", Weapon: "sword"},
		}))
		require.Len(t, facts, 1)
		assert.Equal(t, "goblin-3", facts[0].SubjectID)
		assert.Equal(t, "last_attacked_by", facts[0].Property)
		assert.Equal(t, entities.TextValue("aldric"), facts[0].Value)
		assert.Equal(t, 1.0, facts[0].Confidence)
		assert.Equal(t, entities.VerificationObserved, facts[0].Verification)
		assert.Equal(t, entities.ProvenancePlayer, facts[0].Provenance.Kind)
		assert.Equal(t, "aldric", facts[0].Provenance.SourceID)
		assert.Equal(t, uint64(4), facts[0].TurnNumber)
	})

	t.Run("attack with damage wounds the target", func(t *testing.T) {
		facts := deriveFacts("session-1", turn(entities.Action{
			Kind:   entities.ActionAttack,
			Attack: &entities.AttackPayload{TargetID: "goblin-3", Damage: 7},
		}))
		require.Len(t, facts, 2)
		assert.Equal(t, "condition", facts[1].Property)
		assert.Equal(t, entities.TextValue("wounded"), facts[1].Value)
		assert.Equal(t, "goblin-3", facts[1].SubjectID)
	})

	t.Run("move", func(t *testing.T) {
		facts := deriveFacts("session-1", turn(entities.Action{
			Kind: entities.ActionMove,
			Move: &entities.MovePayload{ToLocationID: "rivermoor"},
		}))
		require.Len(t, facts, 1)
		assert.Equal(t, "aldric", facts[0].SubjectID)
		assert.Equal(t, "located_in", facts[0].Property)
		assert.Equal(t, entities.TextValue("rivermoor"), facts[0].Value)
	})

	t.Run("dialogue", func(t *testing.T) {
		facts := deriveFacts("session-1", turn(entities.Action{
			Kind:     entities.ActionDialogue,
			Dialogue: &entities.DialoguePayload{TargetID: "mira", Text: "we ride at dawn"},
		}))
		require.Len(t, facts, 1)
		assert.Equal(t, "last_statement", facts[0].Property)
		assert.Equal(t, entities.TextValue("we ride at dawn"), facts[0].Value)
	})

	t.Run("use item", func(t *testing.T) {
		facts := deriveFacts("session-1", turn(entities.Action{
			Kind:    entities.ActionUseItem,
			UseItem: &entities.UseItemPayload{ItemID: "healing-draught"},
		}))
		require.Len(t, facts, 1)
		assert.Equal(t, "healing-draught", facts[0].SubjectID)
		assert.Equal(t, "last_used_by", facts[0].Property)
		assert.Equal(t, entities.TextValue("aldric"), facts[0].Value)
	})

	t.Run("opaque asserts nothing", func(t *testing.T) {
		facts := deriveFacts("session-1", turn(entities.Action{
			Kind:   entities.ActionOpaque,
			Opaque: []byte(`{"note":"dramatic pause"}`),
		}))
		assert.Empty(t, facts)
	})
}

func TestActionApplier_Apply(t *testing.T) {
	fx := newHandlerFixture(t, nil)
	applier := NewActionApplier(fx.ledger, fx.logger)

	turn := &entities.Turn{
		ID:            "turn-1",
		SessionID:     "session-1",
		Number:        2,
		ParticipantID: "aldric",
		Action: &entities.Action{
			Kind: entities.ActionMove,
			Move: &entities.MovePayload{ToLocationID: "thornhold"},
		},
	}

	results, err := applier.Apply(context.Background(), "session-1", turn)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, entities.FactAccepted, results[0].Status)

	fact, err := fx.ledger.Query(context.Background(), "session-1", "aldric", "located_in", "", time.Time{})
	require.NoError(t, err)
	require.NotNil(t, fact)
	assert.Equal(t, entities.TextValue("thornhold"), fact.Value)
	assert.Equal(t, "aldric", fact.Provenance.SourceID)
}

func TestActionApplier_Apply_OpaqueIsNoop(t *testing.T) {
	fx := newHandlerFixture(t, nil)
	applier := NewActionApplier(fx.ledger, fx.logger)

	results, err := applier.Apply(context.Background(), "session-1", &entities.Turn{
		ID:            "turn-1",
		SessionID:     "session-1",
		Number:        1,
		ParticipantID: "aldric",
		Action:        &entities.Action{Kind: entities.ActionOpaque, Opaque: []byte(`{}`)},
	})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, fx.store.SaveFactCallCount)
}

func TestActionApplier_Apply_TruncatedDerivationSurvives(t *testing.T) {
	// A zero depth limit trips the cycle guard on the very first cascade
	// step. The action's own fact must still land.
	fx := newHandlerFixture(t, services.NewRuleEngine(0))
	applier := NewActionApplier(fx.ledger, fx.logger)

	results, err := applier.Apply(context.Background(), "session-1", &entities.Turn{
		ID:            "turn-1",
		SessionID:     "session-1",
		Number:        1,
		ParticipantID: "aldric",
		Action: &entities.Action{
			Kind: entities.ActionMove,
			Move: &entities.MovePayload{ToLocationID: "rivermoor"},
		},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, entities.FactAccepted, results[0].Status)
}

func TestActionApplier_Apply_StoreError(t *testing.T) {
	fx := newHandlerFixture(t, nil)
	fx.store.SaveFactErr = assert.AnError
	applier := NewActionApplier(fx.ledger, fx.logger)

	_, err := applier.Apply(context.Background(), "session-1", &entities.Turn{
		ID:            "turn-1",
		SessionID:     "session-1",
		Number:        1,
		ParticipantID: "aldric",
		Action: &entities.Action{
			Kind: entities.ActionMove,
			Move: &entities.MovePayload{ToLocationID: "rivermoor"},
		},
	})
	assert.ErrorIs(t, err, assert.AnError)
}

package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/services"
)

// ActionApplier translates submitted turn actions into ledger facts. It is
// wired into the turn coordinator, which invokes it once per accepted
// submission.
type ActionApplier struct {
	ledger *services.LedgerService
	logger *slog.Logger
}

// NewActionApplier creates an action applier.
func NewActionApplier(ledger *services.LedgerService, logger *slog.Logger) *ActionApplier {
	return &ActionApplier{ledger: ledger, logger: logger}
}

// Apply derives facts from the turn's action and proposes each through the
// ledger pipeline. A derivation chain hitting its depth limit does not fail
// the turn; everything accepted up to that point stands.
func (a *ActionApplier) Apply(ctx context.Context, sessionID string, turn *entities.Turn) ([]services.ProposeResult, error) {
	facts := deriveFacts(sessionID, turn)
	results := make([]services.ProposeResult, 0, len(facts))
	for i := range facts {
		result, err := a.ledger.Propose(ctx, &facts[i])
		if err != nil {
			var cycle *entities.RuleCycleError
			if errors.As(err, &cycle) {
				a.logger.Warn("rule derivation truncated during turn",
					"session_id", sessionID, "turn", turn.Number, "error", err)
			} else {
				return nil, fmt.Errorf("applying action fact: %w", err)
			}
		}
		if result != nil {
			results = append(results, *result)
		}
	}
	return results, nil
}

// deriveFacts maps an action to the world-state assertions it implies. All
// derived facts carry player provenance and are observed mechanically, so
// they enter at full confidence.
func deriveFacts(sessionID string, turn *entities.Turn) []entities.Fact {
	base := entities.Fact{
		SessionID:    sessionID,
		TurnNumber:   turn.Number,
		Confidence:   1.0,
		Verification: entities.VerificationObserved,
		Provenance:   entities.Provenance{Kind: entities.ProvenancePlayer, SourceID: turn.ParticipantID},
	}

	action := turn.Action
	switch action.Kind {
	case entities.ActionAttack:
		attacked := base
		attacked.SubjectID = action.Attack.TargetID
		attacked.Property = "last_attacked_by"
		attacked.Value = entities.TextValue(turn.ParticipantID)

		facts := []entities.Fact{attacked}
		if action.Attack.Damage > 0 {
			wounded := base
			wounded.SubjectID = action.Attack.TargetID
			wounded.Property = "condition"
			wounded.Value = entities.TextValue("wounded")
			facts = append(facts, wounded)
		}
		return facts

	case entities.ActionMove:
		moved := base
		moved.SubjectID = turn.ParticipantID
		moved.Property = "located_in"
		moved.Value = entities.TextValue(action.Move.ToLocationID)
		return []entities.Fact{moved}

	case entities.ActionDialogue:
		spoke := base
		spoke.SubjectID = turn.ParticipantID
		spoke.Property = "last_statement"
		spoke.Value = entities.TextValue(action.Dialogue.Text)
		return []entities.Fact{spoke}

	case entities.ActionUseItem:
		used := base
		used.SubjectID = action.UseItem.ItemID
		used.Property = "last_used_by"
		used.Value = entities.TextValue(turn.ParticipantID)
		return []entities.Fact{used}
	}

	// Opaque actions are recorded on the turn but assert nothing by
	// themselves; narration ingestion covers their consequences.
	return nil
}

package entities

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAction_Validate(t *testing.T) {
	tests := []struct {
		name    string
		action  Action
		wantErr bool
	}{
		{
			name:   "valid attack",
			action: Action{Kind: ActionAttack, Attack: &AttackPayload{TargetID: "goblin", Damage: 4}},
		},
		{
			name:    "attack without target",
			action:  Action{Kind: ActionAttack, Attack: &AttackPayload{}},
			wantErr: true,
		},
		{
			name:    "attack without payload",
			action:  Action{Kind: ActionAttack},
			wantErr: true,
		},
		{
			name:   "valid move",
			action: Action{Kind: ActionMove, Move: &MovePayload{ToLocationID: "tavern"}},
		},
		{
			name:    "move without destination",
			action:  Action{Kind: ActionMove, Move: &MovePayload{}},
			wantErr: true,
		},
		{
			name:   "valid dialogue",
			action: Action{Kind: ActionDialogue, Dialogue: &DialoguePayload{Text: "well met"}},
		},
		{
			name:    "dialogue without text",
			action:  Action{Kind: ActionDialogue, Dialogue: &DialoguePayload{TargetID: "mira"}},
			wantErr: true,
		},
		{
			name:   "valid use item",
			action: Action{Kind: ActionUseItem, UseItem: &UseItemPayload{ItemID: "healing-draught"}},
		},
		{
			name:    "use item without item",
			action:  Action{Kind: ActionUseItem, UseItem: &UseItemPayload{TargetID: "mira"}},
			wantErr: true,
		},
		{
			name:   "valid opaque",
			action: Action{Kind: ActionOpaque, Opaque: json.RawMessage(`{"custom":"ritual"}`)},
		},
		{
			name:    "opaque without payload",
			action:  Action{Kind: ActionOpaque},
			wantErr: true,
		},
		{
			name:    "unknown kind",
			action:  Action{Kind: "teleport"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.action.Validate()
			if tt.wantErr {
				require.Error(t, err)
				var vErr *ValidationError
				assert.ErrorAs(t, err, &vErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

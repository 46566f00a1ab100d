package entities

import (
	"encoding/json"
	"fmt"
)

// ActionKind discriminates action payload variants.
type ActionKind string

const (
	ActionAttack   ActionKind = "attack"
	ActionMove     ActionKind = "move"
	ActionDialogue ActionKind = "dialogue"
	ActionUseItem  ActionKind = "use_item"
	// ActionOpaque carries payloads the engine does not interpret, such as
	// narrator output.
	ActionOpaque ActionKind = "opaque"
)

// AttackPayload describes an attack against a target entity.
type AttackPayload struct {
	TargetID string `json:"target_id"`
	Weapon   string `json:"weapon,omitempty"`
	Damage   int    `json:"damage,omitempty"`
}

// MovePayload moves the acting character to a location entity.
type MovePayload struct {
	ToLocationID string `json:"to_location_id"`
}

// DialoguePayload addresses another entity with in-world speech.
type DialoguePayload struct {
	TargetID string `json:"target_id,omitempty"`
	Text     string `json:"text"`
}

// UseItemPayload applies an item, optionally on a target.
type UseItemPayload struct {
	ItemID   string `json:"item_id"`
	TargetID string `json:"target_id,omitempty"`
}

// Action is a tagged participant action. Exactly one payload field is set,
// selected by Kind.
type Action struct {
	Kind     ActionKind       `json:"kind"`
	Attack   *AttackPayload   `json:"attack,omitempty"`
	Move     *MovePayload     `json:"move,omitempty"`
	Dialogue *DialoguePayload `json:"dialogue,omitempty"`
	UseItem  *UseItemPayload  `json:"use_item,omitempty"`
	Opaque   json.RawMessage  `json:"opaque,omitempty"`
}

// Validate checks the discriminator matches the populated payload.
func (a *Action) Validate() error {
	switch a.Kind {
	case ActionAttack:
		if a.Attack == nil || a.Attack.TargetID == "" {
			return &ValidationError{Field: "action.attack", Reason: "target_id required"}
		}
	case ActionMove:
		if a.Move == nil || a.Move.ToLocationID == "" {
			return &ValidationError{Field: "action.move", Reason: "to_location_id required"}
		}
	case ActionDialogue:
		if a.Dialogue == nil || a.Dialogue.Text == "" {
			return &ValidationError{Field: "action.dialogue", Reason: "text required"}
		}
	case ActionUseItem:
		if a.UseItem == nil || a.UseItem.ItemID == "" {
			return &ValidationError{Field: "action.use_item", Reason: "item_id required"}
		}
	case ActionOpaque:
		if len(a.Opaque) == 0 {
			return &ValidationError{Field: "action.opaque", Reason: "payload required"}
		}
	case "":
		return &ValidationError{Field: "action.kind", Reason: "required"}
	default:
		return &ValidationError{Field: "action.kind", Reason: fmt.Sprintf("unknown kind %q", a.Kind)}
	}
	return nil
}

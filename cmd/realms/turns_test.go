package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
)

func TestParseAction(t *testing.T) {
	t.Run("move", func(t *testing.T) {
		action, err := parseAction("move rivermoor")
		require.NoError(t, err)
		assert.Equal(t, entities.ActionMove, action.Kind)
		assert.Equal(t, "rivermoor", action.Move.ToLocationID)
	})

	t.Run("attack", func(t *testing.T) {
		action, err := parseAction("attack goblin-3")
		require.NoError(t, err)
		assert.Equal(t, entities.ActionAttack, action.Kind)
		assert.Equal(t, "goblin-3", action.Attack.TargetID)
		assert.Zero(t, action.Attack.Damage)
	})

	t.Run("attack with damage", func(t *testing.T) {
		action, err := parseAction("attack goblin-3 7")
		require.NoError(t, err)
		assert.Equal(t, 7, action.Attack.Damage)
	})

	t.Run("say joins words", func(t *testing.T) {
		action, err := parseAction("say we ride at dawn")
		require.NoError(t, err)
		assert.Equal(t, entities.ActionDialogue, action.Kind)
		assert.Equal(t, "we ride at dawn", action.Dialogue.Text)
	})

	t.Run("use with target", func(t *testing.T) {
		action, err := parseAction("use healing-draught aldric")
		require.NoError(t, err)
		assert.Equal(t, entities.ActionUseItem, action.Kind)
		assert.Equal(t, "healing-draught", action.UseItem.ItemID)
		assert.Equal(t, "aldric", action.UseItem.TargetID)
	})

	t.Run("errors", func(t *testing.T) {
		for _, line := range []string{
			"move",
			"move here and there",
			"attack",
			"attack goblin-3 lots",
			"say",
			"use",
			"dance wildly",
		} {
			_, err := parseAction(line)
			assert.Error(t, err, "line %q", line)
		}
	})
}

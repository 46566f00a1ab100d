package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
	"github.com/Garblesnarff/infinite-realms-consistency/internal/infrastructure/parsers"
)

func TestFactFromRaw(t *testing.T) {
	confidence := 0.75
	rf := parsers.RawFact{
		Subject:    "aldric",
		Property:   "located_in",
		Object:     "rivermoor",
		Kind:       "text",
		Value:      "rivermoor",
		Confidence: &confidence,
		ValidFrom:  "2026-04-01T12:00:00Z",
	}

	fact, err := factFromRaw(rf)
	require.NoError(t, err)
	assert.Equal(t, "aldric", fact.SubjectID)
	assert.Equal(t, "located_in", fact.Property)
	assert.Equal(t, "rivermoor", fact.ObjectID)
	assert.Equal(t, entities.TextValue("rivermoor"), fact.Value)
	assert.Equal(t, 0.75, fact.Confidence)
	assert.Equal(t, time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC), fact.Validity.From)
}

func TestFactFromRaw_Defaults(t *testing.T) {
	fact, err := factFromRaw(parsers.RawFact{Subject: "aldric", Property: "mood", Value: "wary"})
	require.NoError(t, err)
	// Imported records without a kind are text, without a confidence fully trusted.
	assert.Equal(t, entities.TextValue("wary"), fact.Value)
	assert.Equal(t, 1.0, fact.Confidence)
	assert.True(t, fact.Validity.From.IsZero())
}

func TestFactFromRaw_Errors(t *testing.T) {
	_, err := factFromRaw(parsers.RawFact{Subject: "aldric", Property: "age", Kind: "number", Value: "old"})
	assert.Error(t, err)

	_, err = factFromRaw(parsers.RawFact{Subject: "aldric", Property: "mood", Value: "wary", ValidFrom: "yesterday"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "valid_from")
}

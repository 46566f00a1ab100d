package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/mocks"
	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/services"
)

func (fx *handlerFixture) mustPropose(t *testing.T, subject, property, value string, confidence float64) services.ProposeResult {
	t.Helper()
	result, err := fx.ledger.Propose(context.Background(), &entities.Fact{
		SessionID:  "session-1",
		SubjectID:  subject,
		Property:   property,
		Value:      entities.TextValue(value),
		Confidence: confidence,
	})
	require.NoError(t, err)
	return *result
}

func TestQueryHandler_Point(t *testing.T) {
	fx := newHandlerFixture(t, nil)
	handler := NewQueryHandler(fx.ledger, nil, fx.auth)
	fx.mustPropose(t, "aldric", "mood", "wary", 0.8)

	fact, err := handler.HandlePoint(context.Background(), "lurker", "session-1", "aldric", "mood", "", time.Time{})
	require.NoError(t, err)
	require.NotNil(t, fact)
	assert.Equal(t, entities.TextValue("wary"), fact.Value)

	fact, err = handler.HandlePoint(context.Background(), "lurker", "session-1", "aldric", "age", "", time.Time{})
	require.NoError(t, err)
	assert.Nil(t, fact)

	_, err = handler.HandlePoint(context.Background(), "stranger", "session-1", "aldric", "mood", "", time.Time{})
	var pErr *PermissionError
	assert.ErrorAs(t, err, &pErr)
}

func TestQueryHandler_History(t *testing.T) {
	fx := newHandlerFixture(t, nil)
	handler := NewQueryHandler(fx.ledger, nil, fx.auth)

	fx.mustPropose(t, "aldric", "mood", "wary", 0.5)
	// Higher confidence supersedes; history keeps both.
	fx.mustPropose(t, "aldric", "mood", "resolute", 0.8)

	key := entities.Key{SubjectID: "aldric", Property: "mood"}
	result, err := handler.HandleHistory(context.Background(), "lurker", "session-1", key, 0)
	require.NoError(t, err)
	require.Len(t, result.Facts, 2)

	values := []string{result.Facts[0].Value.Text, result.Facts[1].Value.Text}
	assert.ElementsMatch(t, []string{"wary", "resolute"}, values)

	limited, err := handler.HandleHistory(context.Background(), "lurker", "session-1", key, 1)
	require.NoError(t, err)
	assert.Len(t, limited.Facts, 1)
}

func TestQueryHandler_Semantic(t *testing.T) {
	indexed := entities.Fact{ID: "f-1", SubjectID: "aldric", Property: "mood", Value: entities.TextValue("wary")}
	index := services.NewSemanticIndex(
		&mocks.VectorDB{Facts: []entities.Fact{indexed}},
		&mocks.Embedder{EmbeddingResult: []float32{0.1, 0.2}},
	)

	fx := newHandlerFixture(t, nil)
	handler := NewQueryHandler(fx.ledger, index, fx.auth)

	facts, err := handler.HandleSemantic(context.Background(), "lurker", "session-1", "how does aldric feel", 5)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "f-1", facts[0].ID)
}

func TestQueryHandler_SemanticUnconfigured(t *testing.T) {
	fx := newHandlerFixture(t, nil)
	handler := NewQueryHandler(fx.ledger, nil, fx.auth)

	_, err := handler.HandleSemantic(context.Background(), "lurker", "session-1", "anything", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestQueryHandler_Relationships(t *testing.T) {
	fx := newHandlerFixture(t, nil)
	handler := NewQueryHandler(fx.ledger, nil, fx.auth)

	result, err := fx.ledger.Propose(context.Background(), &entities.Fact{
		SessionID:  "session-1",
		SubjectID:  "aldric",
		Property:   "allied_with",
		ObjectID:   "mira",
		Value:      entities.BoolValue(true),
		Confidence: 0.9,
	})
	require.NoError(t, err)
	require.Equal(t, entities.FactAccepted, result.Status)

	edges, err := handler.HandleRelationships(context.Background(), "lurker", "session-1", entities.RelationAlliedW, time.Time{})
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "aldric", edges[0].SubjectID)
	assert.Equal(t, "mira", edges[0].ObjectID)
}

package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/services"
)

// QueryHandler handles state queries: temporal point lookups, slot history,
// and semantic search.
type QueryHandler struct {
	ledger *services.LedgerService
	index  *services.SemanticIndex
	auth   *Authorizer
}

// NewQueryHandler creates a new query handler. index may be nil; semantic
// queries then fail cleanly.
func NewQueryHandler(ledger *services.LedgerService, index *services.SemanticIndex, auth *Authorizer) *QueryHandler {
	return &QueryHandler{ledger: ledger, index: index, auth: auth}
}

// HandlePoint answers "what is true about this slot at time T".
func (h *QueryHandler) HandlePoint(ctx context.Context, actorID, sessionID, subjectID, property, objectID string, asOf time.Time) (*entities.Fact, error) {
	if err := h.auth.Require(sessionID, actorID, CapQuery); err != nil {
		return nil, err
	}
	return h.ledger.Query(ctx, sessionID, subjectID, property, objectID, asOf)
}

// HistoryResult is one page drained from a history cursor.
type HistoryResult struct {
	Key   entities.Key
	Facts []entities.Fact
}

// HandleHistory returns up to limit entries of a slot's full assertion
// history, including superseded facts.
func (h *QueryHandler) HandleHistory(ctx context.Context, actorID, sessionID string, key entities.Key, limit int) (*HistoryResult, error) {
	if err := h.auth.Require(sessionID, actorID, CapQuery); err != nil {
		return nil, err
	}

	cursor := h.ledger.History(sessionID, key)
	result := &HistoryResult{Key: key}
	for limit <= 0 || len(result.Facts) < limit {
		fact, err := cursor.Next(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading history: %w", err)
		}
		if fact == nil {
			break
		}
		result.Facts = append(result.Facts, *fact)
	}
	return result, nil
}

// HandleSemantic searches indexed facts by meaning.
func (h *QueryHandler) HandleSemantic(ctx context.Context, actorID, sessionID, query string, limit int) ([]entities.Fact, error) {
	if err := h.auth.Require(sessionID, actorID, CapQuery); err != nil {
		return nil, err
	}
	if h.index == nil {
		return nil, fmt.Errorf("semantic search is not configured")
	}
	return h.index.Search(ctx, query, limit)
}

// HandleEntities lists the session's materialized entities.
func (h *QueryHandler) HandleEntities(ctx context.Context, actorID, sessionID string) ([]entities.Entity, error) {
	if err := h.auth.Require(sessionID, actorID, CapQuery); err != nil {
		return nil, err
	}
	return h.ledger.Projection(sessionID).Entities(), nil
}

// HandleRelationships lists active edges of a type at asOf.
func (h *QueryHandler) HandleRelationships(ctx context.Context, actorID, sessionID string, rt entities.RelationType, asOf time.Time) ([]entities.Relationship, error) {
	if err := h.auth.Require(sessionID, actorID, CapQuery); err != nil {
		return nil, err
	}
	if asOf.IsZero() {
		asOf = time.Now()
	}
	return h.ledger.Projection(sessionID).RelationshipsOfType(rt, asOf), nil
}

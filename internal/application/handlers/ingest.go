package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/ports"
	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/services"
)

// IngestHandler turns narrator prose into structured candidate facts at the
// engine's boundary and feeds them through the normal propose pipeline.
type IngestHandler struct {
	llm    ports.LLMClient
	ledger *services.LedgerService
	auth   *Authorizer
	logger *slog.Logger
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(llm ports.LLMClient, ledger *services.LedgerService, auth *Authorizer, logger *slog.Logger) *IngestHandler {
	return &IngestHandler{llm: llm, ledger: ledger, auth: auth, logger: logger}
}

// IngestResult reports the outcome of one narration ingestion.
type IngestResult struct {
	Extracted int                      `json:"extracted"`
	Results   []services.ProposeResult `json:"results"`
	Rejected  []string                 `json:"rejected,omitempty"`
}

// Handle extracts facts from narration and proposes each. Individually
// malformed extractions are dropped and reported; a conflict staging one
// fact does not stop the rest.
func (h *IngestHandler) Handle(ctx context.Context, actorID, sessionID, narration string) (*IngestResult, error) {
	if err := h.auth.Require(sessionID, actorID, CapIngestNarration); err != nil {
		return nil, err
	}

	extracted, err := h.llm.ExtractFacts(ctx, narration)
	if err != nil {
		return nil, fmt.Errorf("extracting facts: %w", err)
	}

	result := &IngestResult{Extracted: len(extracted)}
	for i := range extracted {
		fact := extracted[i]
		fact.SessionID = sessionID
		fact.Provenance.SourceID = actorID

		proposed, err := h.ledger.Propose(ctx, &fact)
		if err != nil {
			var invalid *entities.ValidationError
			var cycle *entities.RuleCycleError
			switch {
			case errors.As(err, &invalid):
				h.logger.Warn("dropping malformed extraction", "session_id", sessionID, "error", err)
				result.Rejected = append(result.Rejected, invalid.Error())
				continue
			case errors.As(err, &cycle):
				h.logger.Warn("rule derivation truncated during ingest", "session_id", sessionID, "error", err)
			default:
				return nil, fmt.Errorf("proposing extracted fact: %w", err)
			}
		}
		if proposed != nil {
			result.Results = append(result.Results, *proposed)
		}
	}
	return result, nil
}

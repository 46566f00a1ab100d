package ports

import (
	"context"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
)

// ConflictAssessment is an advisory annotation for an escalated conflict.
// It never decides the outcome; an arbiter or the deadline fallback does.
type ConflictAssessment struct {
	Description string                    `json:"description"`
	Severity    entities.ConflictSeverity `json:"severity"`
}

// LLMClient defines the interface for narrator-facing LLM operations. The
// engine itself never interprets natural language; this adapter turns opaque
// narration payloads into structured candidate facts at the boundary.
type LLMClient interface {
	// ExtractFacts extracts candidate facts from a narration payload.
	ExtractFacts(ctx context.Context, narration string) ([]entities.Fact, error)

	// AssessConflict describes the contradiction between two facts.
	AssessConflict(ctx context.Context, factA, factB entities.Fact) (*ConflictAssessment, error)
}

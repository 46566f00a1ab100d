package mocks

import (
	"context"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/ports"
)

// LLMClient is a mock implementation of ports.LLMClient.
type LLMClient struct {
	ExtractedFacts []entities.Fact
	Assessment     *ports.ConflictAssessment
	Err            error

	ExtractFactsCallCount   int
	LastNarration           string
	AssessConflictCallCount int
}

// ExtractFacts returns the configured facts or error.
func (m *LLMClient) ExtractFacts(ctx context.Context, narration string) ([]entities.Fact, error) {
	m.ExtractFactsCallCount++
	m.LastNarration = narration
	if m.Err != nil {
		return nil, m.Err
	}
	return m.ExtractedFacts, nil
}

// AssessConflict returns the configured assessment or error.
func (m *LLMClient) AssessConflict(ctx context.Context, factA, factB entities.Fact) (*ports.ConflictAssessment, error) {
	m.AssessConflictCallCount++
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Assessment != nil {
		return m.Assessment, nil
	}
	return &ports.ConflictAssessment{Description: "facts disagree", Severity: entities.SeverityMajor}, nil
}

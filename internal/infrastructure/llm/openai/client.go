// Package openai provides an LLMClient implementation using OpenAI.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/ports"
	"github.com/Garblesnarff/infinite-realms-consistency/internal/infrastructure/config"
)

const extractionPrompt = `You are a fact extractor for a tabletop RPG world state engine. Extract discrete world-state assertions from the narration.

For each assertion, identify:
- subject: The name of the entity the assertion is about
- property: A snake_case property name (e.g. located_in, owns, condition, allied_with)
- object: The name of a second entity for relationship properties, empty otherwise
- value: The asserted value. Use {"kind":"text","text":...} for text, {"kind":"number","number":...} for numbers, {"kind":"bool","bool":...} for booleans, {"kind":"tags","tags":[...]} for lists
- confidence: How certain the narration is about this (0.0-1.0); hedged or implied statements score lower

Return ONLY a valid JSON array, no other text.

Example:
Input: "The merchant Aldric now owns the silver dagger. He seems nervous."
Output: [
  {"subject": "Aldric", "property": "owns", "object": "silver dagger", "value": {"kind":"bool","bool":true}, "confidence": 0.95},
  {"subject": "Aldric", "property": "condition", "value": {"kind":"text","text":"nervous"}, "confidence": 0.6}
]`

const assessmentPrompt = `Two recorded world-state facts contradict each other. Describe the contradiction for the game master who must pick one.

Fact A:
%s

Fact B:
%s

Return ONLY a valid JSON object, no other text:
{"description": "one or two sentences explaining what disagrees and what resolving either way would imply", "severity": "minor" | "major" | "critical"}`

// Client implements the LLMClient interface using OpenAI.
type Client struct {
	client *openai.Client
	model  string
}

// NewClient creates a new OpenAI LLM client.
func NewClient(cfg config.LLMConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	client := openai.NewClient(cfg.APIKey)

	model := "gpt-4o-mini"
	if cfg.Model != "" {
		model = cfg.Model
	}

	return &Client{
		client: client,
		model:  model,
	}, nil
}

// ExtractFacts extracts candidate facts from a narration payload. Extracted
// facts carry narrator provenance and no IDs; the ledger fills the rest.
func (c *Client) ExtractFacts(ctx context.Context, narration string) ([]entities.Fact, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: extractionPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: narration,
			},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("calling OpenAI: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New("no response from OpenAI")
	}

	content := resp.Choices[0].Message.Content
	content = cleanJSONResponse(content)

	var rawFacts []rawFact
	if err := json.Unmarshal([]byte(content), &rawFacts); err != nil {
		return nil, fmt.Errorf("parsing facts JSON: %w (response: %s)", err, content)
	}

	facts := make([]entities.Fact, 0, len(rawFacts))
	for _, rf := range rawFacts {
		fact := entities.Fact{
			SubjectID:    rf.Subject,
			ObjectID:     rf.Object,
			Property:     rf.Property,
			Value:        rf.Value,
			Confidence:   rf.Confidence,
			Verification: entities.VerificationStated,
			Provenance:   entities.Provenance{Kind: entities.ProvenanceNarrator},
		}
		facts = append(facts, fact)
	}

	return facts, nil
}

// AssessConflict describes the contradiction between two facts. The result
// is advisory only.
func (c *Client) AssessConflict(ctx context.Context, factA, factB entities.Fact) (*ports.ConflictAssessment, error) {
	a, err := json.Marshal(factSummary(factA))
	if err != nil {
		return nil, fmt.Errorf("marshaling fact A: %w", err)
	}
	b, err := json.Marshal(factSummary(factB))
	if err != nil {
		return nil, fmt.Errorf("marshaling fact B: %w", err)
	}

	prompt := fmt.Sprintf(assessmentPrompt, string(a), string(b))

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("calling OpenAI: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New("no response from OpenAI")
	}

	content := resp.Choices[0].Message.Content
	content = cleanJSONResponse(content)

	var raw rawAssessment
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("parsing assessment JSON: %w (response: %s)", err, content)
	}

	severity := entities.ConflictSeverity(raw.Severity)
	switch severity {
	case entities.SeverityMinor, entities.SeverityMajor, entities.SeverityCritical:
	default:
		severity = entities.SeverityMajor
	}

	return &ports.ConflictAssessment{
		Description: raw.Description,
		Severity:    severity,
	}, nil
}

// rawFact is the JSON structure for extracted facts.
type rawFact struct {
	Subject    string         `json:"subject"`
	Property   string         `json:"property"`
	Object     string         `json:"object,omitempty"`
	Value      entities.Value `json:"value"`
	Confidence float64        `json:"confidence"`
}

// rawAssessment is the JSON structure for conflict assessments.
type rawAssessment struct {
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

// factSummary strips a fact down to what the assessment needs.
func factSummary(fact entities.Fact) map[string]any {
	return map[string]any{
		"subject":     fact.SubjectID,
		"property":    fact.Property,
		"object":      fact.ObjectID,
		"value":       fact.Value.String(),
		"confidence":  fact.Confidence,
		"observed_at": fact.ObservedAt,
		"provenance":  string(fact.Provenance.Kind),
	}
}

// cleanJSONResponse removes markdown code blocks if present.
func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimSuffix(content, "```")
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
	}

	return strings.TrimSpace(content)
}

package services

import (
	"sort"
	"sync"
	"time"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
)

// RuleEngine holds the declarative rule set. Rules are evaluated in
// descending priority order against the projection after every accepted
// fact; their effects are candidate facts fed back through the normal
// conflict pipeline, so derived facts get no privileged bypass.
type RuleEngine struct {
	mu       sync.RWMutex
	rules    []entities.Rule
	maxDepth int
}

// NewRuleEngine creates an engine with the given derivation depth limit.
func NewRuleEngine(maxDepth int) *RuleEngine {
	return &RuleEngine{maxDepth: maxDepth}
}

// Register adds a rule. Rules with equal priority evaluate in registration
// order.
func (e *RuleEngine) Register(rule entities.Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, rule)
	sort.SliceStable(e.rules, func(i, j int) bool {
		return e.rules[i].Priority > e.rules[j].Priority
	})
}

// MaxDepth returns the configured derivation depth limit.
func (e *RuleEngine) MaxDepth() int {
	return e.maxDepth
}

// Enabled returns the enabled rules in evaluation order.
func (e *RuleEngine) Enabled() []entities.Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]entities.Rule, 0, len(e.rules))
	for _, r := range e.rules {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out
}

// RelationshipThresholdRule builds a rule asserting a world fact when two
// entities hold a relationship of the given type with strength above the
// threshold, e.g. seasons failing while two gods remain at war.
func RelationshipThresholdRule(id, name string, relType entities.RelationType, threshold float64, subjectID, property string, value entities.Value, autoResolve bool) entities.Rule {
	return entities.Rule{
		ID:          id,
		Name:        name,
		Priority:    50,
		Enabled:     true,
		AutoResolve: autoResolve,
		Condition: func(view entities.StateView, asOf time.Time) bool {
			return len(strongEdges(view, relType, threshold, asOf)) > 0
		},
		Effect: func(view entities.StateView, asOf time.Time) []entities.Fact {
			edges := strongEdges(view, relType, threshold, asOf)
			if len(edges) == 0 {
				return nil
			}
			supporting := make([]string, 0, len(edges))
			for _, edge := range edges {
				supporting = append(supporting, edge.FactID)
			}
			return []entities.Fact{{
				SubjectID:       subjectID,
				Property:        property,
				Value:           value,
				Validity:        entities.Interval{From: asOf},
				Confidence:      1.0,
				SupportingFacts: supporting,
			}}
		},
	}
}

func strongEdges(view entities.StateView, relType entities.RelationType, threshold float64, asOf time.Time) []entities.Relationship {
	var out []entities.Relationship
	for _, edge := range view.RelationshipsOfType(relType, asOf) {
		if edge.Strength > threshold {
			out = append(out, edge)
		}
	}
	return out
}

package entities

import "time"

// StateView is a read-only view of the current projection that rule
// predicates evaluate against. Implementations must be side-effect free.
type StateView interface {
	// ActiveFact returns the single active fact for a state slot at asOf,
	// or nil if none.
	ActiveFact(subjectID, property, objectID string, asOf time.Time) *Fact

	// RelationshipsOfType returns edges of the given type valid at asOf.
	RelationshipsOfType(rt RelationType, asOf time.Time) []Relationship

	// EntityByName looks an entity up by type and logical name or alias.
	EntityByName(et EntityType, name string) *Entity
}

// Rule is a declarative condition -> effect pair evaluated against ledger
// state. Condition is a pure predicate; Effect yields zero or more candidate
// facts which go through the normal conflict pipeline. Rules never mutate
// state directly.
type Rule struct {
	ID       string
	Name     string
	Priority int
	Enabled  bool
	// AutoResolve instructs the resolver to prefer this rule's derived facts
	// over conflicting manually-asserted ones.
	AutoResolve bool

	Condition func(view StateView, asOf time.Time) bool
	Effect    func(view StateView, asOf time.Time) []Fact
}

package entities

import "time"

// RelationType defines the kind of relationship between entities.
type RelationType string

const (
	RelationOwns      RelationType = "owns"
	RelationLocatedIn RelationType = "located_in"
	RelationAlliedW   RelationType = "allied_with"
	RelationAtWar     RelationType = "at_war"
	RelationMemberOf  RelationType = "member_of"
	RelationEnemyOf   RelationType = "enemy_of"
	RelationParentOf  RelationType = "parent_of"
	RelationCreated   RelationType = "created"
)

// knownRelations is the set of relation types materialized from facts.
var knownRelations = map[RelationType]struct{}{
	RelationOwns:      {},
	RelationLocatedIn: {},
	RelationAlliedW:   {},
	RelationAtWar:     {},
	RelationMemberOf:  {},
	RelationEnemyOf:   {},
	RelationParentOf:  {},
	RelationCreated:   {},
}

// IsRelationProperty reports whether a fact property names a relationship
// type. Facts with such properties and a non-empty object materialize edges
// in the relationship graph.
func IsRelationProperty(property string) bool {
	_, ok := knownRelations[RelationType(property)]
	return ok
}

// Relationship is a directed, typed, time-bounded edge between two entities.
// Multiple relationships of the same type between the same pair may coexist
// only if their validity intervals do not overlap.
type Relationship struct {
	ID        string       `json:"id"`
	SessionID string       `json:"session_id"`
	SubjectID string       `json:"subject_id"`
	ObjectID  string       `json:"object_id"`
	Type      RelationType `json:"type"`
	// Strength ranges -1..1; sign encodes opposition vs alignment.
	Strength   float64    `json:"strength"`
	Validity   Interval   `json:"validity"`
	Confidence float64    `json:"confidence"`
	Provenance Provenance `json:"provenance"`
	// FactID is the accepted fact this edge was materialized from.
	FactID    string    `json:"fact_id"`
	CreatedAt time.Time `json:"created_at"`
}

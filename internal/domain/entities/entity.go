package entities

import (
	"strings"
	"time"
)

// EntityType categorizes world objects.
type EntityType string

const (
	EntityPerson       EntityType = "person"
	EntityPlace        EntityType = "place"
	EntityItem         EntityType = "item"
	EntityOrganization EntityType = "organization"
	EntityEvent        EntityType = "event"
	EntityConcept      EntityType = "concept"
	EntityCreature     EntityType = "creature"
)

// EntityStatus is the soft lifecycle state of an entity. Entities are never
// physically deleted, only status-transitioned, so history stays queryable.
type EntityStatus string

const (
	EntityActive    EntityStatus = "active"
	EntityInactive  EntityStatus = "inactive"
	EntityDestroyed EntityStatus = "destroyed"
	EntityUnknown   EntityStatus = "unknown"
)

// Entity is a canonical world object (person, place, item, ...) keyed by
// session and logical name. Entities are created on first reference and
// mutated only by accepted facts.
type Entity struct {
	ID             string       `json:"id"`
	SessionID      string       `json:"session_id"`
	Type           EntityType   `json:"type"`
	Name           string       `json:"name"`
	NormalizedName string       `json:"normalized_name"`
	Aliases        []string     `json:"aliases,omitempty"`
	Status         EntityStatus `json:"status"`
	Confidence     float64      `json:"confidence"`
	Provenance     Provenance   `json:"provenance"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// NormalizeName converts a name to lowercase for case-insensitive matching.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// HasAlias reports whether the entity is known under the given name.
func (e *Entity) HasAlias(name string) bool {
	normalized := NormalizeName(name)
	if e.NormalizedName == normalized {
		return true
	}
	for _, alias := range e.Aliases {
		if NormalizeName(alias) == normalized {
			return true
		}
	}
	return false
}

// Package services implements the world consistency engine's domain logic.
package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
)

// Projection is the materialized current-state view of one session: entity
// store, relationship graph, and active-fact index, derived entirely from
// accepted ledger facts. Published projections are immutable; mutation goes
// through Clone, so readers never observe a partially-applied fact.
type Projection struct {
	SessionID  string
	TurnNumber uint64

	entities      map[string]*entities.Entity
	byName        map[string]string
	relationships map[string]*entities.Relationship
	facts         map[string]*entities.Fact
	active        map[entities.Key][]*entities.Fact
}

// Reserved fact properties the projection interprets when materializing the
// entity store.
const (
	PropName       = "name"
	PropEntityType = "entity_type"
	PropStatus     = "status"
	PropAlias      = "alias"
)

// NewProjection creates an empty projection for a session.
func NewProjection(sessionID string) *Projection {
	return &Projection{
		SessionID:     sessionID,
		entities:      make(map[string]*entities.Entity),
		byName:        make(map[string]string),
		relationships: make(map[string]*entities.Relationship),
		facts:         make(map[string]*entities.Fact),
		active:        make(map[entities.Key][]*entities.Fact),
	}
}

// Clone returns a mutable copy sharing entry pointers with the original.
// Mutators replace entries instead of editing them in place, so the original
// stays safe for lock-free readers.
func (p *Projection) Clone() *Projection {
	next := &Projection{
		SessionID:     p.SessionID,
		TurnNumber:    p.TurnNumber,
		entities:      make(map[string]*entities.Entity, len(p.entities)),
		byName:        make(map[string]string, len(p.byName)),
		relationships: make(map[string]*entities.Relationship, len(p.relationships)),
		facts:         make(map[string]*entities.Fact, len(p.facts)),
		active:        make(map[entities.Key][]*entities.Fact, len(p.active)),
	}
	for id, e := range p.entities {
		next.entities[id] = e
	}
	for name, id := range p.byName {
		next.byName[name] = id
	}
	for id, r := range p.relationships {
		next.relationships[id] = r
	}
	for id, f := range p.facts {
		next.facts[id] = f
	}
	for key, facts := range p.active {
		next.active[key] = facts
	}
	return next
}

// ApplyFact materializes an accepted fact into the projection. Must only be
// called on a clone that has not been published yet.
func (p *Projection) ApplyFact(fact *entities.Fact) error {
	if fact.Status != entities.FactAccepted {
		return fmt.Errorf("applying fact %s: status is %s, not accepted", fact.ID, fact.Status)
	}
	if fact.SessionID != p.SessionID {
		return fmt.Errorf("applying fact %s: session mismatch", fact.ID)
	}

	p.ensureEntity(fact.SubjectID, fact)
	if fact.ObjectID != "" {
		p.ensureEntity(fact.ObjectID, fact)
	}

	p.facts[fact.ID] = fact
	key := fact.Key()
	p.active[key] = appendFact(p.active[key], fact)

	p.materialize(fact)
	return nil
}

// RemoveFact withdraws a fact from the active set, typically because it was
// superseded. The fact stays in the ledger; only the projection forgets it.
func (p *Projection) RemoveFact(id string) {
	fact, ok := p.facts[id]
	if !ok {
		return
	}
	delete(p.facts, id)
	key := fact.Key()
	p.active[key] = dropFact(p.active[key], id)
	if len(p.active[key]) == 0 {
		delete(p.active, key)
	}
	delete(p.relationships, id)
}

// SetTurn records the turn cursor. Must only be called on an unpublished clone.
func (p *Projection) SetTurn(number uint64) {
	p.TurnNumber = number
}

// ActiveFact returns the single active fact for a state slot at asOf, or nil.
// For multi-valued properties it returns the most recently observed match.
func (p *Projection) ActiveFact(subjectID, property, objectID string, asOf time.Time) *entities.Fact {
	var found *entities.Fact
	for _, f := range p.active[entities.Key{SubjectID: subjectID, Property: property, ObjectID: objectID}] {
		if !f.ActiveAt(asOf) {
			continue
		}
		if found == nil || f.ObservedAt.After(found.ObservedAt) {
			found = f
		}
	}
	return found
}

// ActiveFactsForKey returns all active facts competing for a state slot at asOf.
func (p *Projection) ActiveFactsForKey(key entities.Key, asOf time.Time) []*entities.Fact {
	var out []*entities.Fact
	for _, f := range p.active[key] {
		if f.ActiveAt(asOf) {
			out = append(out, f)
		}
	}
	return out
}

// RelationshipsOfType returns edges of the given type valid at asOf.
func (p *Projection) RelationshipsOfType(rt entities.RelationType, asOf time.Time) []entities.Relationship {
	var out []entities.Relationship
	for _, rel := range p.relationships {
		if rel.Type != rt || !rel.Validity.Contains(asOf) {
			continue
		}
		out = append(out, *rel)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// EntityByID returns an entity by id, or nil.
func (p *Projection) EntityByID(id string) *entities.Entity {
	return p.entities[id]
}

// EntityByName looks an entity up by type and logical name or alias.
func (p *Projection) EntityByName(et entities.EntityType, name string) *entities.Entity {
	if id, ok := p.byName[nameKey(et, name)]; ok {
		return p.entities[id]
	}
	for _, e := range p.entities {
		if e.Type == et && e.HasAlias(name) {
			return e
		}
	}
	return nil
}

// Entities returns all entities sorted by name.
func (p *Projection) Entities() []entities.Entity {
	out := make([]entities.Entity, 0, len(p.entities))
	for _, e := range p.entities {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AcceptedFacts returns the projection's facts in application order.
func (p *Projection) AcceptedFacts() []entities.Fact {
	out := make([]entities.Fact, 0, len(p.facts))
	for _, f := range p.facts {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// ensureEntity creates a placeholder entity on first reference. Identity
// facts (name, entity_type) refine it afterwards.
func (p *Projection) ensureEntity(id string, fact *entities.Fact) {
	if _, ok := p.entities[id]; ok {
		return
	}
	p.entities[id] = &entities.Entity{
		ID:         id,
		SessionID:  p.SessionID,
		Type:       entities.EntityConcept,
		Name:       id,
		Status:     entities.EntityUnknown,
		Confidence: fact.Confidence,
		Provenance: fact.Provenance,
		CreatedAt:  fact.ObservedAt,
		UpdatedAt:  fact.ObservedAt,
	}
}

// materialize interprets reserved properties and relationship-typed facts.
func (p *Projection) materialize(fact *entities.Fact) {
	if entities.IsRelationProperty(fact.Property) && fact.ObjectID != "" {
		strength := 1.0
		if fact.Value.Kind == entities.ValueNumber {
			strength = fact.Value.Number
		}
		p.relationships[fact.ID] = &entities.Relationship{
			ID:         fact.ID,
			SessionID:  fact.SessionID,
			SubjectID:  fact.SubjectID,
			ObjectID:   fact.ObjectID,
			Type:       entities.RelationType(fact.Property),
			Strength:   strength,
			Validity:   fact.Validity,
			Confidence: fact.Confidence,
			Provenance: fact.Provenance,
			FactID:     fact.ID,
			CreatedAt:  fact.ObservedAt,
		}
		return
	}

	subject := p.entities[fact.SubjectID]
	switch fact.Property {
	case PropName:
		updated := *subject
		updated.Name = fact.Value.Text
		updated.NormalizedName = entities.NormalizeName(fact.Value.Text)
		updated.Confidence = fact.Confidence
		updated.UpdatedAt = fact.ObservedAt
		p.entities[subject.ID] = &updated
		p.byName[nameKey(updated.Type, updated.Name)] = subject.ID
	case PropEntityType:
		updated := *subject
		updated.Type = entities.EntityType(fact.Value.Text)
		updated.UpdatedAt = fact.ObservedAt
		p.entities[subject.ID] = &updated
		if updated.NormalizedName != "" {
			p.byName[nameKey(updated.Type, updated.Name)] = subject.ID
		}
	case PropStatus:
		if status := entities.EntityStatus(fact.Value.Text); validEntityStatus(status) {
			updated := *subject
			updated.Status = status
			updated.UpdatedAt = fact.ObservedAt
			p.entities[subject.ID] = &updated
		}
	case PropAlias:
		updated := *subject
		updated.Aliases = append(append([]string(nil), subject.Aliases...), fact.Value.Tags...)
		updated.UpdatedAt = fact.ObservedAt
		p.entities[subject.ID] = &updated
	}
}

func validEntityStatus(s entities.EntityStatus) bool {
	switch s {
	case entities.EntityActive, entities.EntityInactive, entities.EntityDestroyed, entities.EntityUnknown:
		return true
	}
	return false
}

func nameKey(et entities.EntityType, name string) string {
	return string(et) + "\x00" + entities.NormalizeName(name)
}

func appendFact(facts []*entities.Fact, fact *entities.Fact) []*entities.Fact {
	out := make([]*entities.Fact, 0, len(facts)+1)
	out = append(out, facts...)
	return append(out, fact)
}

func dropFact(facts []*entities.Fact, id string) []*entities.Fact {
	out := make([]*entities.Fact, 0, len(facts))
	for _, f := range facts {
		if f.ID != id {
			out = append(out, f)
		}
	}
	return out
}

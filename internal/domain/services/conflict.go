package services

import (
	"time"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
)

// Detection pairs a staged candidate fact with an active fact it contradicts.
type Detection struct {
	Existing *entities.Fact
	Type     entities.ConflictType
	Severity entities.ConflictSeverity
}

// ConflictDetector identifies facts that cannot both be true for overlapping
// time windows. It runs synchronously inside the session lock on every
// successful propose, before the candidate becomes active.
type ConflictDetector struct {
	multiValued map[string]struct{}
	margin      float64
}

// NewConflictDetector creates a detector. multiValued lists property keys
// that may legitimately hold several active facts at once; margin is the
// confidence gap used for severity grading.
func NewConflictDetector(multiValued []string, margin float64) *ConflictDetector {
	mv := make(map[string]struct{}, len(multiValued))
	for _, p := range multiValued {
		mv[p] = struct{}{}
	}
	return &ConflictDetector{multiValued: mv, margin: margin}
}

// MultiValued reports whether a property may hold several active facts.
func (d *ConflictDetector) MultiValued(property string) bool {
	_, ok := d.multiValued[property]
	return ok
}

// Detect returns every active fact the candidate contradicts: same state
// slot, overlapping validity, and a differing value under the property's
// equality rule.
func (d *ConflictDetector) Detect(proj *Projection, candidate *entities.Fact, asOf time.Time) []Detection {
	if d.MultiValued(candidate.Property) {
		return nil
	}

	// A relation-named property only forms an edge when it targets an
	// object; without one it is an ordinary property slot.
	conflictType := entities.ConflictProperty
	if entities.IsRelationProperty(candidate.Property) && candidate.ObjectID != "" {
		conflictType = entities.ConflictRelationship
	}

	var out []Detection
	for _, existing := range proj.ActiveFactsForKey(candidate.Key(), asOf) {
		if existing.ID == candidate.ID {
			continue
		}
		if !existing.Validity.Overlaps(candidate.Validity) {
			continue
		}
		// Same-type relationship edges between the same pair may not have
		// overlapping intervals at all; property facts only conflict when
		// the values differ.
		if conflictType == entities.ConflictProperty && existing.Value.Equal(candidate.Value) {
			continue
		}
		out = append(out, Detection{
			Existing: existing,
			Type:     conflictType,
			Severity: d.severity(existing, candidate),
		})
	}
	return out
}

// severity grades a contradiction: two high-confidence assertions clashing
// is critical; a clear confidence gap is minor; everything else is major.
func (d *ConflictDetector) severity(a, b *entities.Fact) entities.ConflictSeverity {
	const highConfidence = 0.9
	if a.Confidence >= highConfidence && b.Confidence >= highConfidence {
		return entities.SeverityCritical
	}
	gap := a.Confidence - b.Confidence
	if gap < 0 {
		gap = -gap
	}
	if gap >= d.margin {
		return entities.SeverityMinor
	}
	return entities.SeverityMajor
}

// Package entities contains core domain data structures.
package entities

import (
	"time"
)

// FactStatus represents the lifecycle state of a fact in the ledger.
type FactStatus string

const (
	// FactPending means the fact is staged behind an unresolved conflict.
	FactPending FactStatus = "pending"
	// FactAccepted means the fact passed conflict detection (or won resolution).
	FactAccepted FactStatus = "accepted"
	// FactSuperseded means the fact lost a conflict to another fact.
	FactSuperseded FactStatus = "superseded"
	// FactRejected means the fact failed validation and was never stored.
	FactRejected FactStatus = "rejected"
)

// VerificationMethod records how a fact came to be known.
type VerificationMethod string

const (
	VerificationDirect   VerificationMethod = "direct"
	VerificationInferred VerificationMethod = "inferred"
	VerificationStated   VerificationMethod = "stated"
	VerificationObserved VerificationMethod = "observed"
	VerificationDerived  VerificationMethod = "derived"
)

// ConfidenceChange is one entry in a fact's append-only confidence history.
type ConfidenceChange struct {
	At     time.Time `json:"at"`
	Score  float64   `json:"score"`
	Reason string    `json:"reason"`
}

// Fact is the atomic unit of truth: a timestamped, confidence-scored
// assertion about an entity or relationship property.
type Fact struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	SubjectID string `json:"subject_id"`
	// ObjectID is set for relationship-typed facts, empty otherwise.
	ObjectID string `json:"object_id,omitempty"`
	Property string `json:"property"`

	Value         Value  `json:"value"`
	PreviousValue *Value `json:"previous_value,omitempty"`

	ObservedAt time.Time `json:"observed_at"`
	Validity   Interval  `json:"validity"`

	Confidence        float64            `json:"confidence"`
	ConfidenceHistory []ConfidenceChange `json:"confidence_history,omitempty"`
	Verification      VerificationMethod `json:"verification"`
	Provenance        Provenance         `json:"provenance"`

	Status FactStatus `json:"status"`
	// Seq is the application order assigned by storage on accept (starts at 1).
	Seq uint64 `json:"seq,omitempty"`
	// TurnNumber is the turn during which the fact was accepted, 0 for setup facts.
	TurnNumber uint64 `json:"turn_number,omitempty"`

	// Contradictions and SupportingFacts hold ids of facts this one lost to,
	// won against, or was derived from, for traceability.
	Contradictions  []string `json:"contradictions,omitempty"`
	SupportingFacts []string `json:"supporting_facts,omitempty"`

	Embedding []float32 `json:"embedding,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Key identifies the slot of world state a fact asserts.
// Facts with equal keys compete for the single-active-fact invariant.
type Key struct {
	SubjectID string
	Property  string
	ObjectID  string
}

// Key returns the fact's state slot.
func (f *Fact) Key() Key {
	return Key{SubjectID: f.SubjectID, Property: f.Property, ObjectID: f.ObjectID}
}

// ActiveAt reports whether the fact is accepted and its validity covers t.
func (f *Fact) ActiveAt(t time.Time) bool {
	return f.Status == FactAccepted && f.Validity.Contains(t)
}

// RecordConfidence appends an entry to the confidence history and updates
// the current score. Confidence only changes through explicit re-assertion
// or resolver action.
func (f *Fact) RecordConfidence(at time.Time, score float64, reason string) {
	f.Confidence = score
	f.ConfidenceHistory = append(f.ConfidenceHistory, ConfidenceChange{
		At:     at,
		Score:  score,
		Reason: reason,
	})
}

// Validate checks hard schema constraints. A fact failing validation is
// rejected outright and never stored.
func (f *Fact) Validate() error {
	if f.SessionID == "" {
		return &ValidationError{Field: "session_id", Reason: "required"}
	}
	if f.SubjectID == "" {
		return &ValidationError{Field: "subject_id", Reason: "required"}
	}
	if f.Property == "" {
		return &ValidationError{Field: "property", Reason: "required"}
	}
	if f.Confidence < 0 || f.Confidence > 1 {
		return &ValidationError{Field: "confidence", Reason: "must be in [0,1]"}
	}
	if err := f.Value.Validate(); err != nil {
		return err
	}
	if !f.Validity.Until.IsZero() && !f.Validity.Until.After(f.Validity.From) {
		return &ValidationError{Field: "validity", Reason: "valid_until must be after valid_from"}
	}
	return nil
}

// Interval is a half-open time window [From, Until). A zero Until means
// the interval is open-ended.
type Interval struct {
	From  time.Time `json:"from"`
	Until time.Time `json:"until,omitzero"`
}

// Contains reports whether t falls inside the interval.
func (i Interval) Contains(t time.Time) bool {
	if t.Before(i.From) {
		return false
	}
	return i.Until.IsZero() || t.Before(i.Until)
}

// Overlaps reports whether two intervals share any instant.
func (i Interval) Overlaps(other Interval) bool {
	if !i.Until.IsZero() && !i.Until.After(other.From) {
		return false
	}
	if !other.Until.IsZero() && !other.Until.After(i.From) {
		return false
	}
	return true
}

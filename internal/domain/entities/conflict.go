package entities

import "time"

// ConflictType classifies what kind of contradiction was detected.
type ConflictType string

const (
	// ConflictProperty means two facts assert different values for the same
	// subject and property over overlapping validity.
	ConflictProperty ConflictType = "property_contradiction"
	// ConflictRelationship means two same-type edges between the same pair
	// have overlapping validity intervals.
	ConflictRelationship ConflictType = "relationship_overlap"
)

// ConflictSeverity grades how disruptive a contradiction is.
type ConflictSeverity string

const (
	SeverityMinor    ConflictSeverity = "minor"
	SeverityMajor    ConflictSeverity = "major"
	SeverityCritical ConflictSeverity = "critical"
)

// ConflictStatus is the resolution state machine position.
type ConflictStatus string

const (
	ConflictOpen     ConflictStatus = "open"
	ConflictInReview ConflictStatus = "in_review"
	ConflictResolved ConflictStatus = "resolved"
	ConflictIgnored  ConflictStatus = "ignored"
)

// ResolutionMethod records which policy decided a conflict.
type ResolutionMethod string

const (
	// ResolutionConfidence means one fact's confidence exceeded the other's
	// by the configured margin.
	ResolutionConfidence ResolutionMethod = "confidence"
	// ResolutionRecency means the fact with the later observation won.
	ResolutionRecency ResolutionMethod = "recency"
	// ResolutionDerived means an auto-resolve rule preferred its derived fact.
	ResolutionDerived ResolutionMethod = "derived_preferred"
	// ResolutionDMOverride means a human arbiter decided.
	ResolutionDMOverride ResolutionMethod = "dm_override"
	// ResolutionAutomatic marks a deadline-forced fallback resolution.
	ResolutionAutomatic ResolutionMethod = "automatic"
)

// Conflict pairs two facts that cannot both be active for overlapping time
// windows. A conflict exists only while both facts are simultaneously live;
// resolving it deactivates exactly one.
type Conflict struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	FactA     string `json:"fact_a"`
	FactB     string `json:"fact_b"`

	Type     ConflictType     `json:"type"`
	Severity ConflictSeverity `json:"severity"`
	Status   ConflictStatus   `json:"status"`

	// PreferDerived is set when the staged fact came from an auto-resolve
	// rule, instructing the resolver to prefer it over the manual assertion.
	PreferDerived bool `json:"prefer_derived,omitempty"`

	Resolution ResolutionMethod `json:"resolution,omitempty"`
	ResolvedBy string           `json:"resolved_by,omitempty"`
	WinnerID   string           `json:"winner_id,omitempty"`
	// DeadlineForced notes that an escalated conflict was resolved by the
	// deadline fallback, not by an arbiter.
	DeadlineForced bool `json:"deadline_forced,omitempty"`
	// Advisory is an optional machine-generated description of the
	// contradiction attached when the conflict is escalated.
	Advisory string `json:"advisory,omitempty"`

	DetectedAt time.Time `json:"detected_at"`
	Deadline   time.Time `json:"deadline,omitzero"`
	ResolvedAt time.Time `json:"resolved_at,omitzero"`
}

// Terminal reports whether the conflict has reached a final state.
func (c *Conflict) Terminal() bool {
	return c.Status == ConflictResolved || c.Status == ConflictIgnored
}

package entities

// ProvenanceKind identifies the class of source that produced a fact or
// resolution.
type ProvenanceKind string

const (
	// ProvenancePlayer marks facts derived from a participant action.
	ProvenancePlayer ProvenanceKind = "player"
	// ProvenanceNarrator marks facts submitted by the AI narrator process.
	ProvenanceNarrator ProvenanceKind = "narrator"
	// ProvenanceRule marks facts derived by the rule engine.
	ProvenanceRule ProvenanceKind = "rule"
	// ProvenanceArbiter marks arbiter (DM) overrides.
	ProvenanceArbiter ProvenanceKind = "arbiter"
	// ProvenanceSystem marks engine-internal assertions.
	ProvenanceSystem ProvenanceKind = "system"
)

// Provenance records who or what asserted a fact and why.
type Provenance struct {
	Kind ProvenanceKind `json:"kind"`
	// SourceID is the participant, rule, or process identity behind the assertion.
	SourceID string `json:"source_id,omitempty"`
	Note     string `json:"note,omitempty"`
}

package entities

import "encoding/json"

// ValueKind discriminates property value variants.
type ValueKind string

const (
	ValueText   ValueKind = "text"
	ValueNumber ValueKind = "number"
	ValueBool   ValueKind = "bool"
	ValueTags   ValueKind = "tags"
	// ValueOpaque carries genuinely unstructured extension data.
	ValueOpaque ValueKind = "opaque"
)

// Value is a tagged property value. Exactly one variant field is meaningful,
// selected by Kind.
type Value struct {
	Kind   ValueKind       `json:"kind"`
	Text   string          `json:"text,omitempty"`
	Number float64         `json:"number,omitempty"`
	Bool   bool            `json:"bool,omitempty"`
	Tags   []string        `json:"tags,omitempty"`
	Opaque json.RawMessage `json:"opaque,omitempty"`
}

// TextValue builds a text value.
func TextValue(s string) Value { return Value{Kind: ValueText, Text: s} }

// NumberValue builds a numeric value.
func NumberValue(n float64) Value { return Value{Kind: ValueNumber, Number: n} }

// BoolValue builds a boolean value.
func BoolValue(b bool) Value { return Value{Kind: ValueBool, Bool: b} }

// TagsValue builds a tag-set value.
func TagsValue(tags ...string) Value { return Value{Kind: ValueTags, Tags: tags} }

// Validate checks that the kind is known.
func (v Value) Validate() error {
	switch v.Kind {
	case ValueText, ValueNumber, ValueBool, ValueTags, ValueOpaque:
		return nil
	case "":
		return &ValidationError{Field: "value.kind", Reason: "required"}
	default:
		return &ValidationError{Field: "value.kind", Reason: "unknown kind " + string(v.Kind)}
	}
}

// Equal reports whether two values are the same under the property equality
// rule: exact match for scalars, set overlap for tags. Opaque values compare
// byte-equal.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case ValueText:
		return v.Text == other.Text
	case ValueNumber:
		return v.Number == other.Number
	case ValueBool:
		return v.Bool == other.Bool
	case ValueTags:
		return tagsOverlap(v.Tags, other.Tags)
	case ValueOpaque:
		return string(v.Opaque) == string(other.Opaque)
	}
	return false
}

// String renders the value for display and embedding text.
func (v Value) String() string {
	switch v.Kind {
	case ValueText:
		return v.Text
	case ValueNumber:
		return formatNumber(v.Number)
	case ValueBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case ValueTags:
		out := ""
		for i, t := range v.Tags {
			if i > 0 {
				out += ", "
			}
			out += t
		}
		return out
	case ValueOpaque:
		return string(v.Opaque)
	}
	return ""
}

func tagsOverlap(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func formatNumber(n float64) string {
	data, _ := json.Marshal(n)
	return string(data)
}

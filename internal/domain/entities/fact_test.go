package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validFact() Fact {
	return Fact{
		ID:         "fact-1",
		SessionID:  "session-1",
		SubjectID:  "aldric",
		Property:   "located_in",
		Value:      TextValue("rivermoor"),
		Confidence: 0.9,
		Validity:   Interval{From: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		Status:     FactAccepted,
	}
}

func TestFact_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Fact)
		wantErr string
	}{
		{
			name:   "valid fact",
			mutate: func(f *Fact) {},
		},
		{
			name:    "missing session",
			mutate:  func(f *Fact) { f.SessionID = "" },
			wantErr: "session_id",
		},
		{
			name:    "missing subject",
			mutate:  func(f *Fact) { f.SubjectID = "" },
			wantErr: "subject_id",
		},
		{
			name:    "missing property",
			mutate:  func(f *Fact) { f.Property = "" },
			wantErr: "property",
		},
		{
			name:    "confidence above one",
			mutate:  func(f *Fact) { f.Confidence = 1.5 },
			wantErr: "confidence",
		},
		{
			name:    "negative confidence",
			mutate:  func(f *Fact) { f.Confidence = -0.1 },
			wantErr: "confidence",
		},
		{
			name:    "missing value kind",
			mutate:  func(f *Fact) { f.Value = Value{} },
			wantErr: "value.kind",
		},
		{
			name: "until before from",
			mutate: func(f *Fact) {
				f.Validity.Until = f.Validity.From.Add(-time.Hour)
			},
			wantErr: "validity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fact := validFact()
			tt.mutate(&fact)
			err := fact.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.wantErr, vErr.Field)
		})
	}
}

func TestFact_ActiveAt(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	until := from.Add(48 * time.Hour)

	fact := validFact()
	fact.Validity = Interval{From: from, Until: until}

	assert.True(t, fact.ActiveAt(from))
	assert.True(t, fact.ActiveAt(from.Add(time.Hour)))
	assert.False(t, fact.ActiveAt(from.Add(-time.Second)), "before validity start")
	assert.False(t, fact.ActiveAt(until), "interval is half-open")

	fact.Status = FactSuperseded
	assert.False(t, fact.ActiveAt(from.Add(time.Hour)), "superseded facts are never active")
}

func TestFact_RecordConfidence(t *testing.T) {
	fact := validFact()
	at := time.Now()

	fact.RecordConfidence(at, 0.7, "asserted")
	fact.RecordConfidence(at.Add(time.Minute), 0.95, "re-asserted by narrator")

	assert.Equal(t, 0.95, fact.Confidence)
	require.Len(t, fact.ConfidenceHistory, 2)
	assert.Equal(t, 0.7, fact.ConfidenceHistory[0].Score)
	assert.Equal(t, "re-asserted by narrator", fact.ConfidenceHistory[1].Reason)
}

func TestInterval_Contains(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	openEnded := Interval{From: from}
	assert.True(t, openEnded.Contains(from))
	assert.True(t, openEnded.Contains(from.Add(1000*time.Hour)))
	assert.False(t, openEnded.Contains(from.Add(-time.Nanosecond)))

	bounded := Interval{From: from, Until: from.Add(time.Hour)}
	assert.True(t, bounded.Contains(from.Add(59*time.Minute)))
	assert.False(t, bounded.Contains(from.Add(time.Hour)))
}

func TestInterval_Overlaps(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		a, b Interval
		want bool
	}{
		{
			name: "both open ended",
			a:    Interval{From: base},
			b:    Interval{From: base.Add(time.Hour)},
			want: true,
		},
		{
			name: "disjoint bounded",
			a:    Interval{From: base, Until: base.Add(time.Hour)},
			b:    Interval{From: base.Add(2 * time.Hour), Until: base.Add(3 * time.Hour)},
			want: false,
		},
		{
			name: "touching endpoints do not overlap",
			a:    Interval{From: base, Until: base.Add(time.Hour)},
			b:    Interval{From: base.Add(time.Hour)},
			want: false,
		},
		{
			name: "nested",
			a:    Interval{From: base, Until: base.Add(4 * time.Hour)},
			b:    Interval{From: base.Add(time.Hour), Until: base.Add(2 * time.Hour)},
			want: true,
		},
		{
			name: "open ended starts before bounded ends",
			a:    Interval{From: base.Add(30 * time.Minute)},
			b:    Interval{From: base, Until: base.Add(time.Hour)},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.want, tt.b.Overlaps(tt.a), "overlap is symmetric")
		})
	}
}

func TestKey_Identity(t *testing.T) {
	a := validFact()
	b := validFact()
	b.ID = "fact-2"
	b.Value = TextValue("thornhold")

	assert.Equal(t, a.Key(), b.Key(), "same slot regardless of value")

	b.ObjectID = "rivermoor"
	assert.NotEqual(t, a.Key(), b.Key(), "object is part of the slot")
}

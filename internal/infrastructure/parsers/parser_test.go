package parsers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForFormat(t *testing.T) {
	assert.IsType(t, &JSONParser{}, ForFormat("json"))
	assert.IsType(t, &JSONParser{}, ForFormat("JSON"))
	assert.IsType(t, &CSVParser{}, ForFormat("csv"))
	assert.Nil(t, ForFormat("xml"))
	assert.Nil(t, ForFormat(""))
}

func TestForFile(t *testing.T) {
	assert.IsType(t, &JSONParser{}, ForFile("seed.json"))
	assert.IsType(t, &CSVParser{}, ForFile("/data/World.CSV"))
	assert.Nil(t, ForFile("facts.yaml"))
	assert.Nil(t, ForFile("noextension"))
}

func TestJSONParser(t *testing.T) {
	input := `[
		{"subject": "aldric", "property": "located_in", "value": "rivermoor"},
		{"subject": "aldric", "property": "at_war", "object": "thornhold", "kind": "number", "value": "0.9", "confidence": 0.8, "valid_from": "2026-04-01T12:00:00Z"}
	]`

	facts, err := (&JSONParser{}).Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, facts, 2)

	assert.Equal(t, "aldric", facts[0].Subject)
	assert.Equal(t, "located_in", facts[0].Property)
	assert.Equal(t, "rivermoor", facts[0].Value)
	assert.Nil(t, facts[0].Confidence)
	assert.Equal(t, 1, facts[0].LineNum)

	assert.Equal(t, "thornhold", facts[1].Object)
	assert.Equal(t, "number", facts[1].Kind)
	require.NotNil(t, facts[1].Confidence)
	assert.Equal(t, 0.8, *facts[1].Confidence)
	assert.Equal(t, "2026-04-01T12:00:00Z", facts[1].ValidFrom)
	assert.Equal(t, 2, facts[1].LineNum)
}

func TestJSONParser_Invalid(t *testing.T) {
	_, err := (&JSONParser{}).Parse(strings.NewReader(`{"not": "an array"}`))
	assert.Error(t, err)
}

func TestCSVParser(t *testing.T) {
	input := "subject,property,value,object,kind,confidence,valid_from\n" +
		"aldric,located_in,rivermoor,,,,\n" +
		"aldric,at_war,0.9,thornhold,number,0.8,2026-04-01T12:00:00Z\n"

	facts, err := (&CSVParser{}).Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, facts, 2)

	assert.Equal(t, "aldric", facts[0].Subject)
	assert.Equal(t, "located_in", facts[0].Property)
	assert.Equal(t, "rivermoor", facts[0].Value)
	assert.Empty(t, facts[0].Object)
	assert.Nil(t, facts[0].Confidence)
	assert.Equal(t, 2, facts[0].LineNum, "header is line 1")

	assert.Equal(t, "thornhold", facts[1].Object)
	assert.Equal(t, "number", facts[1].Kind)
	require.NotNil(t, facts[1].Confidence)
	assert.Equal(t, 0.8, *facts[1].Confidence)
	assert.Equal(t, 3, facts[1].LineNum)
}

func TestCSVParser_MinimalColumns(t *testing.T) {
	input := "subject,property,value\nmira,mood,wary\n"

	facts, err := (&CSVParser{}).Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "mira", facts[0].Subject)
	assert.Empty(t, facts[0].Kind)
}

func TestCSVParser_Errors(t *testing.T) {
	t.Run("missing required column", func(t *testing.T) {
		_, err := (&CSVParser{}).Parse(strings.NewReader("subject,value\na,b\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing required column: property")
	})

	t.Run("bad confidence", func(t *testing.T) {
		input := "subject,property,value,confidence\naldric,mood,wary,high\n"
		_, err := (&CSVParser{}).Parse(strings.NewReader(input))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 2")
	})
}

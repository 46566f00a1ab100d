package parsers

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// CSVParser parses facts from CSV format.
type CSVParser struct{}

// Parse reads CSV from the reader and returns parsed facts.
// Expected columns: subject, property, value, and optionally object, kind,
// confidence, valid_from.
func (p *CSVParser) Parse(r io.Reader) ([]RawFact, error) {
	reader := csv.NewReader(r)

	colIndex, err := p.readHeader(reader)
	if err != nil {
		return nil, err
	}

	return p.readRecords(reader, colIndex)
}

// readHeader reads and validates the CSV header row.
func (p *CSVParser) readHeader(reader *csv.Reader) (map[string]int, error) {
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[col] = i
	}

	requiredCols := []string{"subject", "property", "value"}
	for _, col := range requiredCols {
		if _, ok := colIndex[col]; !ok {
			return nil, fmt.Errorf("missing required column: %s", col)
		}
	}

	return colIndex, nil
}

// readRecords reads all data rows and converts them to RawFacts.
func (p *CSVParser) readRecords(reader *csv.Reader, colIndex map[string]int) ([]RawFact, error) {
	var facts []RawFact
	lineNum := 1 // Header is line 1

	for {
		lineNum++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		fact := RawFact{
			Subject:   field(record, colIndex, "subject"),
			Property:  field(record, colIndex, "property"),
			Object:    field(record, colIndex, "object"),
			Kind:      field(record, colIndex, "kind"),
			Value:     field(record, colIndex, "value"),
			ValidFrom: field(record, colIndex, "valid_from"),
			LineNum:   lineNum,
		}

		if raw := field(record, colIndex, "confidence"); raw != "" {
			confidence, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: parsing confidence %q: %w", lineNum, raw, err)
			}
			fact.Confidence = &confidence
		}

		facts = append(facts, fact)
	}

	return facts, nil
}

// field safely extracts a column value, returning "" for missing columns.
func field(record []string, colIndex map[string]int, col string) string {
	idx, ok := colIndex[col]
	if !ok || idx >= len(record) {
		return ""
	}
	return record[idx]
}

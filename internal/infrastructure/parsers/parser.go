// Package parsers provides parsers for importing seed facts from various formats.
package parsers

import (
	"io"
	"path/filepath"
	"strings"
)

// RawFact represents a fact parsed from an external source before validation.
type RawFact struct {
	Subject    string   `json:"subject"`
	Property   string   `json:"property"`
	Object     string   `json:"object,omitempty"`
	Kind       string   `json:"kind,omitempty"`
	Value      string   `json:"value"`
	Confidence *float64 `json:"confidence,omitempty"` // Pointer to distinguish 0 from unset
	ValidFrom  string   `json:"valid_from,omitempty"`
	LineNum    int      `json:"-"` // Line number in source file (set by parser)
}

// Parser defines the interface for parsing facts from various formats.
type Parser interface {
	Parse(r io.Reader) ([]RawFact, error)
}

// ForFormat returns the appropriate parser for the given format.
// Supported formats: "json", "csv".
func ForFormat(format string) Parser {
	switch strings.ToLower(format) {
	case "json":
		return &JSONParser{}
	case "csv":
		return &CSVParser{}
	default:
		return nil
	}
}

// ForFile returns the appropriate parser based on file extension.
func ForFile(filename string) Parser {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".json":
		return &JSONParser{}
	case ".csv":
		return &CSVParser{}
	default:
		return nil
	}
}

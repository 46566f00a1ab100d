package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
	"github.com/Garblesnarff/infinite-realms-consistency/internal/infrastructure/parsers"
)

func newImportCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import seed facts from a JSON or CSV file",
		Long:  "Proposes every fact in the file through the normal ingestion pipeline, so conflicts are detected and resolved as if each fact were asserted by hand.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args[0], format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "F", "", "File format (json, csv), inferred from the extension by default")

	return cmd
}

func runImport(cmd *cobra.Command, filename, format string) error {
	ctx := cmd.Context()

	parser := parsers.ForFile(filename)
	if format != "" {
		parser = parsers.ForFormat(format)
	}
	if parser == nil {
		return fmt.Errorf("unsupported format for %q (json, csv)", filename)
	}

	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("opening %s: %w", filename, err)
	}
	defer f.Close()

	raw, err := parser.Parse(f)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", filename, err)
	}
	if len(raw) == 0 {
		fmt.Println("No facts to import.")
		return nil
	}

	return withDeps(func(d *Deps) error {
		accepted, staged, failed := 0, 0, 0
		for _, rf := range raw {
			fact, err := factFromRaw(rf)
			if err != nil {
				fmt.Printf("line %d: %v\n", rf.LineNum, err)
				failed++
				continue
			}

			result, err := d.Propose.Handle(ctx, globalActor, fact)
			if err != nil && result == nil {
				fmt.Printf("line %d: %v\n", rf.LineNum, err)
				failed++
				continue
			}
			if result.Status == entities.FactAccepted {
				accepted++
			} else {
				staged++
			}
		}

		fmt.Printf("Imported %d facts: %d accepted, %d staged or superseded, %d failed\n", len(raw), accepted, staged, failed)
		return nil
	})
}

func factFromRaw(rf parsers.RawFact) (*entities.Fact, error) {
	kind := rf.Kind
	if kind == "" {
		kind = "text"
	}
	value, err := parseValue(kind, rf.Value)
	if err != nil {
		return nil, err
	}

	fact := &entities.Fact{
		SessionID:  globalSession,
		SubjectID:  rf.Subject,
		ObjectID:   rf.Object,
		Property:   rf.Property,
		Value:      value,
		Confidence: 1.0,
	}
	if rf.Confidence != nil {
		fact.Confidence = *rf.Confidence
	}
	if rf.ValidFrom != "" {
		start, err := time.Parse(time.RFC3339, rf.ValidFrom)
		if err != nil {
			return nil, fmt.Errorf("parsing valid_from: %w", err)
		}
		fact.Validity.From = start
	}
	return fact, nil
}

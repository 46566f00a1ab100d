package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
)

func newProposeCmd() *cobra.Command {
	var (
		object     string
		kind       string
		confidence float64
		from       string
	)

	cmd := &cobra.Command{
		Use:   "propose SUBJECT PROPERTY VALUE",
		Short: "Assert a fact about the world",
		Long:  "Proposes a fact into the ledger. The fact goes through conflict detection and may be accepted, staged behind a conflict, or superseded immediately.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPropose(cmd, args[0], args[1], args[2], object, kind, confidence, from)
		},
	}

	cmd.Flags().StringVarP(&object, "object", "o", "", "Object entity ID for relationship facts")
	cmd.Flags().StringVarP(&kind, "kind", "k", "text", "Value kind (text, number, bool, tags)")
	cmd.Flags().StringVar(&from, "from", "", "Validity start (RFC3339), defaults to now")
	cmd.Flags().Float64VarP(&confidence, "confidence", "c", 1.0, "Confidence score (0..1)")

	return cmd
}

func runPropose(cmd *cobra.Command, subject, property, rawValue, object, kind string, confidence float64, from string) error {
	ctx := cmd.Context()

	value, err := parseValue(kind, rawValue)
	if err != nil {
		return err
	}

	fact := &entities.Fact{
		SessionID:  globalSession,
		SubjectID:  subject,
		ObjectID:   object,
		Property:   property,
		Value:      value,
		Confidence: confidence,
	}
	if from != "" {
		start, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return fmt.Errorf("parsing --from: %w", err)
		}
		fact.Validity.From = start
	}

	return withDeps(func(d *Deps) error {
		result, err := d.Propose.Handle(ctx, globalActor, fact)
		if err != nil {
			if result == nil {
				return err
			}
			// A rule cycle tripped mid-cascade; the fact itself is in.
			fmt.Printf("Warning: %v\n", err)
		}

		switch result.Status {
		case entities.FactAccepted:
			fmt.Printf("Accepted fact %s\n", result.FactID)
		case entities.FactPending:
			fmt.Printf("Fact %s staged behind conflict %s\n", result.FactID, result.ConflictID)
			fmt.Println("Use 'realms conflicts' to inspect and 'realms conflicts resolve' to settle it.")
		case entities.FactSuperseded:
			fmt.Printf("Fact %s superseded by the existing assertion (conflict %s)\n", result.FactID, result.ConflictID)
		default:
			fmt.Printf("Fact %s: %s\n", result.FactID, result.Status)
		}
		return nil
	})
}

func parseValue(kind, raw string) (entities.Value, error) {
	switch entities.ValueKind(kind) {
	case entities.ValueText:
		return entities.TextValue(raw), nil
	case entities.ValueNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return entities.Value{}, fmt.Errorf("parsing number value %q: %w", raw, err)
		}
		return entities.NumberValue(n), nil
	case entities.ValueBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return entities.Value{}, fmt.Errorf("parsing bool value %q: %w", raw, err)
		}
		return entities.BoolValue(b), nil
	case entities.ValueTags:
		return entities.TagsValue(strings.Split(raw, ",")...), nil
	default:
		return entities.Value{}, fmt.Errorf("unknown value kind %q (text, number, bool, tags)", kind)
	}
}

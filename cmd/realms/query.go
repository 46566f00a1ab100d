package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
)

func newQueryCmd() *cobra.Command {
	var (
		object   string
		at       string
		semantic bool
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "query SUBJECT PROPERTY | query --semantic QUESTION",
		Short: "Query the current world state",
		Long:  "Point-reads the active fact for a state slot, or with --semantic searches facts by meaning.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if semantic {
				return runSemanticQuery(cmd, args[0], limit)
			}
			if len(args) != 2 {
				return fmt.Errorf("point queries take SUBJECT and PROPERTY arguments")
			}
			return runPointQuery(cmd, args[0], args[1], object, at)
		},
	}

	cmd.Flags().StringVarP(&object, "object", "o", "", "Object entity ID for relationship facts")
	cmd.Flags().StringVar(&at, "at", "", "Query as of this time (RFC3339), defaults to now")
	cmd.Flags().BoolVar(&semantic, "semantic", false, "Search facts by meaning instead of exact key")
	cmd.Flags().IntVarP(&limit, "limit", "l", DefaultQueryLimit, "Maximum number of semantic results")

	return cmd
}

func runPointQuery(cmd *cobra.Command, subject, property, object, at string) error {
	ctx := cmd.Context()

	asOf := time.Now()
	if at != "" {
		parsed, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return fmt.Errorf("parsing --at: %w", err)
		}
		asOf = parsed
	}

	return withDeps(func(d *Deps) error {
		fact, err := d.Query.HandlePoint(ctx, globalActor, globalSession, subject, property, object, asOf)
		if err != nil {
			return fmt.Errorf("querying fact: %w", err)
		}
		if fact == nil {
			fmt.Println("No active fact for that slot.")
			return nil
		}
		printFact(fact)
		return nil
	})
}

func runSemanticQuery(cmd *cobra.Command, question string, limit int) error {
	ctx := cmd.Context()

	return withDeps(func(d *Deps) error {
		facts, err := d.Query.HandleSemantic(ctx, globalActor, globalSession, question, limit)
		if err != nil {
			return fmt.Errorf("searching facts: %w", err)
		}
		if len(facts) == 0 {
			fmt.Println("No facts found.")
			return nil
		}

		fmt.Printf("Found %d facts:\n\n", len(facts))
		for i, fact := range facts {
			fmt.Printf("%d. %s %s", i+1, fact.SubjectID, fact.Property)
			if fact.ObjectID != "" {
				fmt.Printf(" %s", fact.ObjectID)
			}
			fmt.Printf(" = %s\n", fact.Value)
			fmt.Printf("   Confidence: %.2f  Status: %s\n\n", fact.Confidence, fact.Status)
		}
		return nil
	})
}

func printFact(fact *entities.Fact) {
	fmt.Printf("%s %s", fact.SubjectID, fact.Property)
	if fact.ObjectID != "" {
		fmt.Printf(" %s", fact.ObjectID)
	}
	fmt.Printf(" = %s\n", fact.Value)
	fmt.Printf("  Confidence:   %.2f (%s)\n", fact.Confidence, fact.Verification)
	fmt.Printf("  Observed:     %s\n", fact.ObservedAt.Format(time.RFC3339))
	fmt.Printf("  Valid from:   %s\n", fact.Validity.From.Format(time.RFC3339))
	if !fact.Validity.Until.IsZero() {
		fmt.Printf("  Valid until:  %s\n", fact.Validity.Until.Format(time.RFC3339))
	}
	fmt.Printf("  Provenance:   %s", fact.Provenance.Kind)
	if fact.Provenance.SourceID != "" {
		fmt.Printf(" (%s)", fact.Provenance.SourceID)
	}
	fmt.Println()
	if fact.TurnNumber > 0 {
		fmt.Printf("  Turn:         %d\n", fact.TurnNumber)
	}
}

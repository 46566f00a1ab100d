package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
)

func newHistoryCmd() *cobra.Command {
	var (
		object string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "history SUBJECT PROPERTY",
		Short: "Show the full assertion history for a state slot",
		Long:  "Lists every fact ever asserted for the slot in observation order, including superseded and rejected assertions.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, args[0], args[1], object, limit)
		},
	}

	cmd.Flags().StringVarP(&object, "object", "o", "", "Object entity ID for relationship facts")
	cmd.Flags().IntVarP(&limit, "limit", "l", DefaultHistoryLimit, "Maximum number of entries")

	return cmd
}

func runHistory(cmd *cobra.Command, subject, property, object string, limit int) error {
	ctx := cmd.Context()

	key := entities.Key{SubjectID: subject, Property: property, ObjectID: object}

	return withDeps(func(d *Deps) error {
		result, err := d.Query.HandleHistory(ctx, globalActor, globalSession, key, limit)
		if err != nil {
			return fmt.Errorf("reading history: %w", err)
		}
		if len(result.Facts) == 0 {
			fmt.Println("No history for that slot.")
			return nil
		}

		fmt.Printf("History for %s %s", subject, property)
		if object != "" {
			fmt.Printf(" %s", object)
		}
		fmt.Printf(" (%d entries):\n\n", len(result.Facts))

		for i, fact := range result.Facts {
			fmt.Printf("%d. [%s] %s = %s (confidence %.2f)\n", i+1, fact.Status, fact.ObservedAt.Format(time.RFC3339), fact.Value, fact.Confidence)
			if !fact.Validity.Until.IsZero() {
				fmt.Printf("   Valid until %s\n", fact.Validity.Until.Format(time.RFC3339))
			}
			for _, change := range fact.ConfidenceHistory {
				fmt.Printf("   %s confidence %.2f: %s\n", change.At.Format(time.RFC3339), change.Score, change.Reason)
			}
		}
		return nil
	})
}

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
)

var validRelationTypes = []string{"owns", "located_in", "allied_with", "at_war", "member_of", "enemy_of", "parent_of", "created"}

func newRelationsCmd() *cobra.Command {
	var (
		relType string
		at      string
	)

	cmd := &cobra.Command{
		Use:   "relations",
		Short: "List active relationships between entities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelations(cmd, relType, at)
		},
	}

	cmd.Flags().StringVarP(&relType, "type", "t", "", "Filter by relation type")
	cmd.Flags().StringVar(&at, "at", "", "Query as of this time (RFC3339), defaults to now")

	return cmd
}

func runRelations(cmd *cobra.Command, relType, at string) error {
	ctx := cmd.Context()

	if relType != "" && !isValidRelationType(relType) {
		return fmt.Errorf("invalid type %q, valid types: %v", relType, validRelationTypes)
	}

	asOf := time.Now()
	if at != "" {
		parsed, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return fmt.Errorf("parsing --at: %w", err)
		}
		asOf = parsed
	}

	types := validRelationTypes
	if relType != "" {
		types = []string{relType}
	}

	return withDeps(func(d *Deps) error {
		total := 0
		for _, rt := range types {
			edges, err := d.Query.HandleRelationships(ctx, globalActor, globalSession, entities.RelationType(rt), asOf)
			if err != nil {
				return fmt.Errorf("listing relationships: %w", err)
			}
			for _, edge := range edges {
				fmt.Printf("%s -[%s %.2f]-> %s\n", edge.SubjectID, edge.Type, edge.Strength, edge.ObjectID)
				total++
			}
		}
		if total == 0 {
			fmt.Println("No active relationships.")
		}
		return nil
	})
}

func isValidRelationType(t string) bool {
	for _, valid := range validRelationTypes {
		if t == valid {
			return true
		}
	}
	return false
}

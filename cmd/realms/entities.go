package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
)

var validEntityTypes = []string{"person", "place", "item", "organization", "event", "concept", "creature"}

func newEntitiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entities",
		Short: "List entities materialized from the ledger",
		RunE:  runEntitiesList,
	}

	cmd.AddCommand(newEntitiesEnsureCmd())

	return cmd
}

func runEntitiesList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	return withDeps(func(d *Deps) error {
		list, err := d.Query.HandleEntities(ctx, globalActor, globalSession)
		if err != nil {
			return fmt.Errorf("listing entities: %w", err)
		}
		if len(list) == 0 {
			fmt.Println("No entities yet.")
			return nil
		}

		fmt.Printf("%-20s %-14s %-10s %s\n", "ID", "TYPE", "STATUS", "NAME")
		fmt.Printf("%-20s %-14s %-10s %s\n", "--", "----", "------", "----")
		for _, e := range list {
			fmt.Printf("%-20s %-14s %-10s %s\n", e.ID, e.Type, e.Status, e.Name)
		}
		return nil
	})
}

func newEntitiesEnsureCmd() *cobra.Command {
	var entityType string

	cmd := &cobra.Command{
		Use:   "ensure ID NAME",
		Short: "Seed an entity with identity facts",
		Long:  "Proposes name and type facts for the entity so later assertions can reference it.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEntitiesEnsure(cmd, args[0], args[1], entityType)
		},
	}

	cmd.Flags().StringVarP(&entityType, "type", "t", "person", "Entity type (person, place, item, organization, event, concept, creature)")

	return cmd
}

func runEntitiesEnsure(cmd *cobra.Command, id, name, entityType string) error {
	ctx := cmd.Context()

	if !isValidEntityType(entityType) {
		return fmt.Errorf("invalid type %q, valid types: %v", entityType, validEntityTypes)
	}

	return withDeps(func(d *Deps) error {
		entity, err := d.Entities.HandleEnsure(ctx, globalActor, globalSession, id, name, entities.EntityType(entityType))
		if err != nil {
			return fmt.Errorf("ensuring entity: %w", err)
		}
		fmt.Printf("Entity %s (%s) ready as %s\n", entity.Name, entity.ID, entity.Type)
		return nil
	})
}

func isValidEntityType(t string) bool {
	for _, valid := range validEntityTypes {
		if t == valid {
			return true
		}
	}
	return false
}

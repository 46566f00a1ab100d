package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/services"
)

func newConflictsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "Manage open conflicts",
		RunE:  runConflictsList,
	}

	cmd.AddCommand(
		newConflictsListCmd(),
		newConflictsResolveCmd(),
	)

	return cmd
}

func newConflictsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List open conflicts",
		RunE:  runConflictsList,
	}
}

func runConflictsList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	return withDeps(func(d *Deps) error {
		conflicts, err := d.Conflicts.HandleList(ctx, globalActor, globalSession)
		if err != nil {
			return fmt.Errorf("listing conflicts: %w", err)
		}
		if len(conflicts) == 0 {
			fmt.Println("No open conflicts.")
			return nil
		}

		fmt.Printf("Found %d open conflicts:\n\n", len(conflicts))
		for i, c := range conflicts {
			fmt.Printf("%d. %s [%s/%s]\n", i+1, c.ID, c.Type, c.Severity)
			fmt.Printf("   Fact A: %s\n", c.FactA)
			fmt.Printf("   Fact B: %s\n", c.FactB)
			if c.Advisory != "" {
				fmt.Printf("   Advisory: %s\n", c.Advisory)
			}
			if !c.Deadline.IsZero() {
				fmt.Printf("   Deadline: %s\n", c.Deadline.Format(time.RFC3339))
			}
			fmt.Println()
		}
		return nil
	})
}

func newConflictsResolveCmd() *cobra.Command {
	var (
		winner string
		ignore bool
	)

	cmd := &cobra.Command{
		Use:   "resolve CONFLICT_ID",
		Short: "Resolve an escalated conflict",
		Long:  "Picks the winning fact (--winner) or closes the conflict without activating the staged fact (--ignore).",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConflictsResolve(cmd, args[0], winner, ignore)
		},
	}

	cmd.Flags().StringVarP(&winner, "winner", "w", "", "ID of the fact that should survive")
	cmd.Flags().BoolVar(&ignore, "ignore", false, "Close the conflict, keeping the existing fact")

	return cmd
}

func runConflictsResolve(cmd *cobra.Command, conflictID, winner string, ignore bool) error {
	ctx := cmd.Context()

	if winner == "" && !ignore {
		return fmt.Errorf("either --winner or --ignore is required")
	}
	if winner != "" && ignore {
		return fmt.Errorf("--winner and --ignore are mutually exclusive")
	}

	return withDeps(func(d *Deps) error {
		conflict, err := d.Conflicts.HandleResolve(ctx, globalActor, globalSession, conflictID, services.Decision{
			WinnerID: winner,
			Ignore:   ignore,
		})
		if err != nil {
			return fmt.Errorf("resolving conflict: %w", err)
		}

		if ignore {
			fmt.Printf("Conflict %s closed, existing fact kept.\n", conflict.ID)
			return nil
		}
		fmt.Printf("Conflict %s resolved: fact %s wins (%s)\n", conflict.ID, conflict.WinnerID, conflict.Resolution)
		return nil
	})
}

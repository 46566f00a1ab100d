// Package main provides the entry point for the realms CLI application.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version       = "0.1.0-dev"
	globalSession string
	globalActor   string
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	rootCmd := &cobra.Command{
		Use:     "realms",
		Short:   "A world consistency engine for multiplayer narrative sessions",
		Version: version,
	}

	rootCmd.PersistentFlags().StringVarP(&globalSession, "session", "s", "", "Session to operate on (required for most commands)")
	rootCmd.PersistentFlags().StringVarP(&globalActor, "as", "a", "", "Participant ID to act as (required for most commands)")

	rootCmd.AddCommand(
		newInitCmd(),
		newSessionsCmd(),
		newProposeCmd(),
		newQueryCmd(),
		newHistoryCmd(),
		newEntitiesCmd(),
		newRelationsCmd(),
		newConflictsCmd(),
		newTurnsCmd(),
		newSnapshotCmd(),
		newNarrateCmd(),
		newImportCmd(),
	)

	return rootCmd.ExecuteContext(ctx)
}

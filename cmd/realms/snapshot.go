package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage session snapshots",
	}

	cmd.AddCommand(
		newSnapshotTakeCmd(),
		newSnapshotRestoreCmd(),
		newSnapshotReplayCmd(),
	)

	return cmd
}

func newSnapshotTakeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "take",
		Short: "Capture a snapshot of the current world state",
		RunE:  runSnapshotTake,
	}
}

func runSnapshotTake(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	return withDeps(func(d *Deps) error {
		snap, err := d.Snapshots.HandleTake(ctx, globalActor, globalSession)
		if err != nil {
			return fmt.Errorf("taking snapshot: %w", err)
		}
		fmt.Printf("Snapshot %s at turn %d (%d bytes, checksum %s)\n", snap.ID, snap.TurnNumber, len(snap.State), snap.Checksum[:12])
		return nil
	})
}

func newSnapshotRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore [SNAPSHOT_ID]",
		Short: "Restore world state from a snapshot plus ledger tail",
		Long:  "Without an ID the latest snapshot is used. A snapshot failing its checksum falls back to a full ledger replay.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshotID := ""
			if len(args) == 1 {
				snapshotID = args[0]
			}
			return runSnapshotRestore(cmd, snapshotID)
		},
	}
}

func runSnapshotRestore(cmd *cobra.Command, snapshotID string) error {
	ctx := cmd.Context()

	return withDeps(func(d *Deps) error {
		var err error
		if snapshotID == "" {
			_, err = d.Snapshots.HandleRecover(ctx, globalActor, globalSession)
		} else {
			_, err = d.Snapshots.HandleRestore(ctx, globalActor, globalSession, snapshotID)
		}
		if err != nil {
			return fmt.Errorf("restoring snapshot: %w", err)
		}
		fmt.Printf("Restored session %q at %s\n", globalSession, time.Now().Format(time.RFC3339))
		return nil
	})
}

func newSnapshotReplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Rebuild world state from the full ledger history",
		RunE:  runSnapshotReplay,
	}
}

func runSnapshotReplay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	return withDeps(func(d *Deps) error {
		proj, err := d.Snapshots.HandleReplay(ctx, globalActor, globalSession)
		if err != nil {
			return fmt.Errorf("replaying ledger: %w", err)
		}
		fmt.Printf("Replayed %d accepted facts for session %q\n", len(proj.AcceptedFacts()), globalSession)
		return nil
	})
}

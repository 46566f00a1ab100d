package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newNarrateCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "narrate [TEXT]",
		Short: "Ingest narration and extract facts from it",
		Long:  "Runs LLM extraction over the narration text and proposes each extracted fact into the ledger.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := ""
			if len(args) == 1 {
				text = args[0]
			}
			return runNarrate(cmd, text, file)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read narration from a file instead of the argument")

	return cmd
}

func runNarrate(cmd *cobra.Command, text, file string) error {
	ctx := cmd.Context()

	if text == "" && file == "" {
		return fmt.Errorf("narration text or --file is required")
	}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("reading narration file: %w", err)
		}
		text = string(data)
	}

	return withDeps(func(d *Deps) error {
		result, err := d.Ingest.Handle(ctx, globalActor, globalSession, text)
		if err != nil {
			return fmt.Errorf("ingesting narration: %w", err)
		}

		fmt.Printf("Extracted %d facts\n", result.Extracted)
		for _, r := range result.Results {
			if r.ConflictID != "" {
				fmt.Printf("  %s: %s (conflict %s)\n", r.FactID, r.Status, r.ConflictID)
			} else {
				fmt.Printf("  %s: %s\n", r.FactID, r.Status)
			}
		}
		for _, rej := range result.Rejected {
			fmt.Printf("  rejected: %s\n", rej)
		}
		return nil
	})
}

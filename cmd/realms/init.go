package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/infrastructure/config"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a new consistency engine workspace",
		Long:  "Creates a .realms directory with default configuration. Sessions are created separately with 'realms sessions create'.",
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	if config.Exists(cwd) {
		return fmt.Errorf("realms already initialized in %s", cwd)
	}

	if err := config.WriteDefault(cwd); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}

	fmt.Printf("Created %s\n", config.ConfigFilePath(cwd))
	fmt.Println("Realms initialized. Use 'realms sessions create NAME' to create a session.")

	return nil
}

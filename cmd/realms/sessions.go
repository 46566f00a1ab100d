package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/infrastructure/config"
	embedder "github.com/Garblesnarff/infinite-realms-consistency/internal/infrastructure/embedder/openai"
	"github.com/Garblesnarff/infinite-realms-consistency/internal/infrastructure/vectordb/qdrant"
)

// sessionManager handles qdrant collection operations for sessions.
type sessionManager struct {
	cfg *config.Config
}

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage sessions",
		RunE:  runSessionsList,
	}

	cmd.AddCommand(
		newSessionsListCmd(),
		newSessionsCreateCmd(),
		newSessionsDeleteCmd(),
		newSessionsJoinCmd(),
	)

	return cmd
}

func newSessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all sessions",
		RunE:  runSessionsList,
	}
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	sessions, err := config.LoadSessions(cwd)
	if err != nil {
		return fmt.Errorf("loading sessions: %w", err)
	}

	if len(sessions.Sessions) == 0 {
		fmt.Println("No sessions configured.")
		fmt.Println("Use 'realms sessions create NAME' to create a session.")
		return nil
	}

	fmt.Printf("%-20s %-25s %-12s %s\n", "NAME", "COLLECTION", "PARTICIPANTS", "DESCRIPTION")
	fmt.Printf("%-20s %-25s %-12s %s\n", "----", "----------", "------------", "-----------")

	for name, session := range sessions.Sessions {
		fmt.Printf("%-20s %-25s %-12d %s\n", name, session.Collection, len(session.Participants), session.Description)
	}

	return nil
}

func newSessionsCreateCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a new session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsCreate(cmd, args[0], description)
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Session description")

	return cmd
}

func runSessionsCreate(cmd *cobra.Command, name string, description string) error {
	ctx := cmd.Context()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	if !config.Exists(cwd) {
		if err := config.WriteDefault(cwd); err != nil {
			return fmt.Errorf("initializing config: %w", err)
		}
		fmt.Printf("Initialized realms in %s\n", config.ConfigDir(cwd))
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	sessions, err := config.LoadSessions(cwd)
	if err != nil {
		return fmt.Errorf("loading sessions: %w", err)
	}

	if sessions.Exists(name) {
		return fmt.Errorf("session %q already exists", name)
	}

	collection := config.CollectionForSession(name)
	sessions.Add(name, config.SessionEntry{
		Collection:  collection,
		Description: description,
	})
	if err := sessions.Save(cwd); err != nil {
		return fmt.Errorf("saving sessions: %w", err)
	}

	mgr := &sessionManager{cfg: cfg}
	if err := mgr.createCollection(ctx, collection); err != nil {
		return fmt.Errorf("creating qdrant collection: %w", err)
	}

	fmt.Printf("Created session %q with collection %q\n", name, collection)
	fmt.Println("Use 'realms sessions join' to register participants.")

	return nil
}

func newSessionsDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsDelete(cmd, args[0], force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Delete even if the session contains facts")

	return cmd
}

func runSessionsDelete(cmd *cobra.Command, name string, force bool) error {
	ctx := cmd.Context()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	sessions, err := config.LoadSessions(cwd)
	if err != nil {
		return fmt.Errorf("loading sessions: %w", err)
	}

	entry, err := sessions.Get(name)
	if err != nil {
		return err
	}

	mgr := &sessionManager{cfg: cfg}

	if !force {
		count, err := mgr.getCollectionCount(ctx, entry.Collection)
		if err == nil && count > 0 {
			return fmt.Errorf("session %q contains %d indexed facts, use --force to delete", name, count)
		}
	}

	if err := mgr.deleteCollection(ctx, entry.Collection); err != nil {
		fmt.Printf("Warning: could not delete collection %q: %v\n", entry.Collection, err)
	}

	sessions.Remove(name)
	if err := sessions.Save(cwd); err != nil {
		return fmt.Errorf("saving sessions: %w", err)
	}

	fmt.Printf("Deleted session %q\n", name)
	fmt.Printf("The ledger database under %s is kept; remove it manually if unwanted.\n", config.SessionDir(cwd, name))

	return nil
}

func newSessionsJoinCmd() *cobra.Command {
	var (
		id          string
		displayName string
		role        string
	)

	cmd := &cobra.Command{
		Use:   "join SESSION",
		Short: "Register a participant in a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsJoin(args[0], id, displayName, role)
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Participant ID (required)")
	cmd.Flags().StringVar(&displayName, "name", "", "Display name")
	cmd.Flags().StringVarP(&role, "role", "r", "player", "Role (player, gm, narrator, observer)")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func runSessionsJoin(session, id, displayName, role string) error {
	if !isValidRole(role) {
		return fmt.Errorf("invalid role %q, valid roles: %v", role, validRoles)
	}
	if displayName == "" {
		displayName = id
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	sessions, err := config.LoadSessions(cwd)
	if err != nil {
		return fmt.Errorf("loading sessions: %w", err)
	}

	if err := sessions.AddParticipant(session, config.ParticipantEntry{
		ID:   id,
		Name: displayName,
		Role: role,
	}); err != nil {
		return err
	}
	if err := sessions.Save(cwd); err != nil {
		return fmt.Errorf("saving sessions: %w", err)
	}

	fmt.Printf("Registered %s (%s) in session %q as %s\n", displayName, id, session, role)

	return nil
}

func isValidRole(r string) bool {
	for _, valid := range validRoles {
		if r == valid {
			return true
		}
	}
	return false
}

func (m *sessionManager) createCollection(ctx context.Context, collection string) error {
	repo, err := qdrant.NewRepository(m.cfg.Qdrant, collection)
	if err != nil {
		return err
	}
	defer repo.Close()

	return repo.EnsureCollection(ctx, embedder.VectorSize)
}

func (m *sessionManager) getCollectionCount(ctx context.Context, collection string) (uint64, error) {
	repo, err := qdrant.NewRepository(m.cfg.Qdrant, collection)
	if err != nil {
		return 0, err
	}
	defer repo.Close()

	return repo.Count(ctx)
}

func (m *sessionManager) deleteCollection(ctx context.Context, collection string) error {
	repo, err := qdrant.NewRepository(m.cfg.Qdrant, collection)
	if err != nil {
		return err
	}
	defer repo.Close()

	return repo.DeleteCollection(ctx)
}

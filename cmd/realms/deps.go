package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/application/handlers"
	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/services"
	"github.com/Garblesnarff/infinite-realms-consistency/internal/infrastructure/config"
	embedder "github.com/Garblesnarff/infinite-realms-consistency/internal/infrastructure/embedder/openai"
	sqlite "github.com/Garblesnarff/infinite-realms-consistency/internal/infrastructure/ledgerdb/sqlite"
	llm "github.com/Garblesnarff/infinite-realms-consistency/internal/infrastructure/llm/openai"
	"github.com/Garblesnarff/infinite-realms-consistency/internal/infrastructure/vectordb/qdrant"
)

// Deps holds high-level dependencies for commands.
// Only handlers are exposed - services and repositories are internal.
type Deps struct {
	Config   *config.Config
	Sessions *config.SessionsConfig

	Propose   *handlers.ProposeHandler
	Query     *handlers.QueryHandler
	Conflicts *handlers.ConflictHandler
	Turns     *handlers.TurnHandler
	Snapshots *handlers.SnapshotHandler
	Ingest    *handlers.IngestHandler
	Entities  *handlers.EntityHandler
}

// internalDeps holds all dependencies including low-level components.
// Used internally by helper functions.
type internalDeps struct {
	Deps
	ledgerDB  *sqlite.Repository
	vectorDB  *qdrant.Repository
	registry  *services.SessionRegistry
	ledger    *services.LedgerService
	snapshots *services.SnapshotManager
	auth      *handlers.Authorizer
}

// withDeps loads config and builds dependencies, then calls the provided
// function. It handles cleanup automatically.
func withDeps(fn func(*Deps) error) error {
	return withInternalDeps(func(d *internalDeps) error {
		return fn(&d.Deps)
	})
}

// withInternalDeps provides access to all dependencies including low-level
// components. The session's projection is recovered from storage before fn
// runs, so reads and proposals see the persisted world state.
func withInternalDeps(fn func(*internalDeps) error) error {
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

	if globalSession == "" {
		return errors.New("session is required (use --session flag)")
	}
	if globalActor == "" {
		return errors.New("participant is required (use --as flag)")
	}

	entry, err := sessions.Get(globalSession)
	if err != nil {
		return err
	}

	sqliteCfg := cfg.SQLite
	if sqliteCfg.Path == "" {
		sqliteCfg.Path = config.SQLitePathForSession(cwd, globalSession)
	}
	ledgerDB, err := sqlite.NewRepository(sqliteCfg)
	if err != nil {
		return fmt.Errorf("creating sqlite repository: %w", err)
	}
	defer ledgerDB.Close()

	ctx := context.Background()
	if err := ledgerDB.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring sqlite schema: %w", err)
	}

	vectorDB, err := qdrant.NewRepository(cfg.Qdrant, entry.Collection)
	if err != nil {
		return fmt.Errorf("creating qdrant repository: %w", err)
	}
	defer vectorDB.Close()

	emb, err := embedder.NewEmbedder(cfg.Embedder)
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}

	llmClient, err := llm.NewClient(cfg.LLM)
	if err != nil {
		return fmt.Errorf("creating llm client: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	registry := services.NewSessionRegistry()
	detector := services.NewConflictDetector(multiValuedProperties, cfg.Engine.ConfidenceMargin)
	resolver := services.NewResolver(ledgerDB, registry, llmClient, logger, cfg.Engine.ConfidenceMargin, cfg.Engine.EscalationDeadline.Std(), cfg.Engine.LockTimeout.Std())
	rules := services.NewRuleEngine(cfg.Engine.RuleMaxDepth)
	index := services.NewSemanticIndex(vectorDB, emb)
	ledger := services.NewLedgerService(ledgerDB, registry, detector, resolver, rules, index, logger, cfg.Engine.LockTimeout.Std())
	snapshots := services.NewSnapshotManager(ledgerDB, registry, logger, cfg.Engine.SnapshotInterval, cfg.Engine.LockTimeout.Std())
	applier := handlers.NewActionApplier(ledger, logger)
	coordinator := services.NewTurnCoordinator(ledgerDB, registry, applier.Apply, snapshots, logger, cfg.Engine.TurnTimeLimit.Std(), cfg.Engine.LockTimeout.Std())

	auth := handlers.NewAuthorizer()
	for _, p := range entry.Participants {
		auth.Register(entities.Participant{
			ID:        p.ID,
			SessionID: globalSession,
			Name:      p.Name,
			Role:      entities.Role(p.Role),
		})
	}

	if _, err := snapshots.Recover(ctx, globalSession); err != nil {
		return fmt.Errorf("recovering session state: %w", err)
	}

	deps := &internalDeps{
		Deps: Deps{
			Config:    cfg,
			Sessions:  sessions,
			Propose:   handlers.NewProposeHandler(ledger, auth),
			Query:     handlers.NewQueryHandler(ledger, index, auth),
			Conflicts: handlers.NewConflictHandler(ledgerDB, resolver, auth),
			Turns:     handlers.NewTurnHandler(coordinator, auth),
			Snapshots: handlers.NewSnapshotHandler(snapshots, auth),
			Ingest:    handlers.NewIngestHandler(llmClient, ledger, auth, logger),
			Entities:  handlers.NewEntityHandler(ledger, auth),
		},
		ledgerDB:  ledgerDB,
		vectorDB:  vectorDB,
		registry:  registry,
		ledger:    ledger,
		snapshots: snapshots,
		auth:      auth,
	}

	return fn(deps)
}

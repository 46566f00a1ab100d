// Package ports defines interfaces for external service communication.
package ports

import (
	"context"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
)

// LedgerStore is the durable store behind the fact ledger. It owns the
// authoritative history; projections are rebuilt by replaying it. The
// engine defines this schema but not the storage technology.
type LedgerStore interface {
	// EnsureSchema creates the storage schema if it doesn't exist.
	EnsureSchema(ctx context.Context) error

	// Close closes the underlying connection.
	Close() error

	// Fact operations

	// SaveFact inserts or updates a fact. On first insert of an accepted
	// fact the store assigns Seq, the application order used by replay.
	SaveFact(ctx context.Context, fact *entities.Fact) error

	// FindFactByID retrieves a fact by id. Returns nil if not found.
	FindFactByID(ctx context.Context, id string) (*entities.Fact, error)

	// FindFactsByKey returns every fact ever asserted for a state slot,
	// ordered by observation time ascending.
	FindFactsByKey(ctx context.Context, sessionID string, key entities.Key, limit, offset int) ([]entities.Fact, error)

	// ListAcceptedFacts pages accepted facts for a session in application
	// order, returning facts with Seq > afterSeq. Used by replay.
	ListAcceptedFacts(ctx context.Context, sessionID string, afterSeq uint64, limit int) ([]entities.Fact, error)

	// AppendConfidence appends one entry to a fact's confidence history.
	AppendConfidence(ctx context.Context, factID string, change entities.ConfidenceChange) error

	// Conflict operations

	// SaveConflict inserts or updates a conflict record.
	SaveConflict(ctx context.Context, conflict *entities.Conflict) error

	// FindConflictByID retrieves a conflict by id. Returns nil if not found.
	FindConflictByID(ctx context.Context, id string) (*entities.Conflict, error)

	// ListOpenConflicts returns conflicts in open or in_review state.
	ListOpenConflicts(ctx context.Context, sessionID string) ([]entities.Conflict, error)

	// Turn operations

	// SaveTurn inserts or updates a turn.
	SaveTurn(ctx context.Context, turn *entities.Turn) error

	// LatestTurn returns the highest-numbered turn for a session, or nil.
	LatestTurn(ctx context.Context, sessionID string) (*entities.Turn, error)

	// ListTurns returns turns for a session ordered by number descending.
	ListTurns(ctx context.Context, sessionID string, limit int) ([]entities.Turn, error)

	// Snapshot operations

	// SaveSnapshot persists a snapshot. Snapshots are write-once.
	SaveSnapshot(ctx context.Context, snap *entities.SessionSnapshot) error

	// FindSnapshotByID retrieves a snapshot by id. Returns nil if not found.
	FindSnapshotByID(ctx context.Context, id string) (*entities.SessionSnapshot, error)

	// LatestSnapshot returns the most recent snapshot for a session, or nil.
	LatestSnapshot(ctx context.Context, sessionID string) (*entities.SessionSnapshot, error)

	// Audit operations

	// LogAction records an engine decision in the audit log.
	LogAction(ctx context.Context, sessionID, action, refID string, details map[string]any) error

	// FindAuditLog returns audit entries referencing the given id.
	FindAuditLog(ctx context.Context, refID string) ([]entities.AuditEntry, error)
}

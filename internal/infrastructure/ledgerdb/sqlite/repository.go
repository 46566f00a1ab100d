// Package sqlite provides a SQLite implementation of the LedgerStore interface.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
	"github.com/Garblesnarff/infinite-realms-consistency/internal/infrastructure/config"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// timeNow returns the current time (can be mocked in tests).
var timeNow = time.Now

// Repository implements ports.LedgerStore using SQLite.
type Repository struct {
	db   *sql.DB
	path string
}

// NewRepository creates a new SQLite repository.
func NewRepository(cfg config.SQLiteConfig) (*Repository, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// Enable foreign keys for referential integrity
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	// Enable WAL mode for better concurrent read/write performance
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Set busy timeout to avoid "database is locked" errors
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	return &Repository{
		db:   db,
		path: cfg.Path,
	}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Path returns the database file path.
func (r *Repository) Path() string {
	return r.path
}

// EnsureSchema creates the database schema if it doesn't exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	schema := `
	-- Facts (append-only assertion ledger; superseded rows are kept)
	CREATE TABLE IF NOT EXISTS facts (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		object_id TEXT NOT NULL DEFAULT '',
		property TEXT NOT NULL,
		value TEXT NOT NULL,
		previous_value TEXT,
		observed_at TIMESTAMP NOT NULL,
		valid_from TIMESTAMP NOT NULL,
		valid_until TIMESTAMP,
		confidence REAL NOT NULL,
		verification TEXT NOT NULL,
		provenance TEXT NOT NULL,
		status TEXT NOT NULL,
		seq INTEGER,
		turn_number INTEGER NOT NULL DEFAULT 0,
		contradictions TEXT,
		supporting_facts TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE(session_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_facts_key ON facts(session_id, subject_id, property, object_id);
	CREATE INDEX IF NOT EXISTS idx_facts_status ON facts(session_id, status);
	CREATE INDEX IF NOT EXISTS idx_facts_seq ON facts(session_id, seq);

	-- Confidence history (append-only, one row per re-assertion or resolution)
	CREATE TABLE IF NOT EXISTS confidence_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		fact_id TEXT NOT NULL,
		at TIMESTAMP NOT NULL,
		score REAL NOT NULL,
		reason TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_confidence_fact ON confidence_history(fact_id);

	-- Conflicts (contradiction records and their resolution outcomes)
	CREATE TABLE IF NOT EXISTS conflicts (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		fact_a TEXT NOT NULL,
		fact_b TEXT NOT NULL,
		type TEXT NOT NULL,
		severity TEXT NOT NULL,
		status TEXT NOT NULL,
		prefer_derived INTEGER NOT NULL DEFAULT 0,
		resolution TEXT,
		resolved_by TEXT,
		winner_id TEXT,
		deadline_forced INTEGER NOT NULL DEFAULT 0,
		advisory TEXT,
		detected_at TIMESTAMP NOT NULL,
		deadline TIMESTAMP,
		resolved_at TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_conflicts_session ON conflicts(session_id, status);

	-- Turns (admission log; numbers are unique per session)
	CREATE TABLE IF NOT EXISTS turns (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		number INTEGER NOT NULL,
		participant_id TEXT NOT NULL,
		action TEXT,
		status TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		ended_at TIMESTAMP,
		UNIQUE(session_id, number)
	);
	CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, number);

	-- Snapshots (write-once state captures)
	CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		turn_number INTEGER NOT NULL,
		state BLOB NOT NULL,
		checksum TEXT NOT NULL,
		type TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_session ON snapshots(session_id, created_at);

	-- Audit log (tracks all engine decisions)
	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		action TEXT NOT NULL,
		ref_id TEXT,
		details TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_audit_log_ref ON audit_log(ref_id);
	CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action);
	`

	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// SaveFact inserts or updates a fact. The first time an accepted fact is
// saved it is assigned the next per-session Seq inside the same transaction,
// so application order is exactly replay order.
func (r *Repository) SaveFact(ctx context.Context, fact *entities.Fact) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if fact.Status == entities.FactAccepted && fact.Seq == 0 {
		row := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(seq), 0) + 1 FROM facts WHERE session_id = ?`, fact.SessionID)
		if err := row.Scan(&fact.Seq); err != nil {
			return fmt.Errorf("assigning seq: %w", err)
		}
	}

	value, err := json.Marshal(fact.Value)
	if err != nil {
		return fmt.Errorf("marshaling value: %w", err)
	}
	var previousValue sql.NullString
	if fact.PreviousValue != nil {
		data, err := json.Marshal(fact.PreviousValue)
		if err != nil {
			return fmt.Errorf("marshaling previous value: %w", err)
		}
		previousValue = sql.NullString{String: string(data), Valid: true}
	}
	provenance, err := json.Marshal(fact.Provenance)
	if err != nil {
		return fmt.Errorf("marshaling provenance: %w", err)
	}
	contradictions, err := marshalStrings(fact.Contradictions)
	if err != nil {
		return fmt.Errorf("marshaling contradictions: %w", err)
	}
	supporting, err := marshalStrings(fact.SupportingFacts)
	if err != nil {
		return fmt.Errorf("marshaling supporting facts: %w", err)
	}

	query := `
		INSERT INTO facts (
			id, session_id, subject_id, object_id, property,
			value, previous_value, observed_at, valid_from, valid_until,
			confidence, verification, provenance, status, seq,
			turn_number, contradictions, supporting_facts, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			value = excluded.value,
			previous_value = excluded.previous_value,
			valid_until = excluded.valid_until,
			confidence = excluded.confidence,
			status = excluded.status,
			seq = excluded.seq,
			contradictions = excluded.contradictions,
			supporting_facts = excluded.supporting_facts,
			updated_at = excluded.updated_at
	`
	_, err = tx.ExecContext(ctx, query,
		fact.ID,
		fact.SessionID,
		fact.SubjectID,
		fact.ObjectID,
		fact.Property,
		string(value),
		previousValue,
		fact.ObservedAt,
		fact.Validity.From,
		nullTime(fact.Validity.Until),
		fact.Confidence,
		string(fact.Verification),
		string(provenance),
		string(fact.Status),
		nullSeq(fact.Seq),
		fact.TurnNumber,
		contradictions,
		supporting,
		fact.CreatedAt,
		fact.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving fact: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing fact: %w", err)
	}
	return nil
}

// FindFactByID retrieves a fact by its ID with its confidence history.
// Returns nil if not found.
func (r *Repository) FindFactByID(ctx context.Context, id string) (*entities.Fact, error) {
	query := factSelect + ` WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)

	fact, err := scanFact(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := r.loadConfidenceHistory(ctx, fact); err != nil {
		return nil, err
	}
	return fact, nil
}

// FindFactsByKey returns every fact ever asserted for a state slot, ordered
// by observation time ascending.
func (r *Repository) FindFactsByKey(ctx context.Context, sessionID string, key entities.Key, limit, offset int) ([]entities.Fact, error) {
	query := factSelect + `
		WHERE session_id = ? AND subject_id = ? AND property = ? AND object_id = ?
		ORDER BY observed_at ASC, id ASC
		LIMIT ? OFFSET ?
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID, key.SubjectID, key.Property, key.ObjectID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying facts: %w", err)
	}
	defer rows.Close()

	facts, err := collectFacts(rows)
	if err != nil {
		return nil, err
	}
	for i := range facts {
		if err := r.loadConfidenceHistory(ctx, &facts[i]); err != nil {
			return nil, err
		}
	}
	return facts, nil
}

// ListAcceptedFacts pages accepted facts in application order with
// Seq > afterSeq. Used by replay.
func (r *Repository) ListAcceptedFacts(ctx context.Context, sessionID string, afterSeq uint64, limit int) ([]entities.Fact, error) {
	query := factSelect + `
		WHERE session_id = ? AND status = ? AND seq > ?
		ORDER BY seq ASC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID, string(entities.FactAccepted), afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("querying accepted facts: %w", err)
	}
	defer rows.Close()

	return collectFacts(rows)
}

// AppendConfidence appends one entry to a fact's confidence history and
// keeps the fact's current score in step.
func (r *Repository) AppendConfidence(ctx context.Context, factID string, change entities.ConfidenceChange) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO confidence_history (fact_id, at, score, reason) VALUES (?, ?, ?, ?)`,
		factID, change.At, change.Score, change.Reason,
	); err != nil {
		return fmt.Errorf("appending confidence: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE facts SET confidence = ?, updated_at = ? WHERE id = ?`,
		change.Score, timeNow(), factID,
	); err != nil {
		return fmt.Errorf("updating confidence: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing confidence: %w", err)
	}
	return nil
}

// SaveConflict inserts or updates a conflict record.
func (r *Repository) SaveConflict(ctx context.Context, conflict *entities.Conflict) error {
	query := `
		INSERT INTO conflicts (
			id, session_id, fact_a, fact_b, type, severity, status,
			prefer_derived, resolution, resolved_by, winner_id,
			deadline_forced, advisory, detected_at, deadline, resolved_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			resolution = excluded.resolution,
			resolved_by = excluded.resolved_by,
			winner_id = excluded.winner_id,
			deadline_forced = excluded.deadline_forced,
			advisory = excluded.advisory,
			deadline = excluded.deadline,
			resolved_at = excluded.resolved_at
	`
	_, err := r.db.ExecContext(ctx, query,
		conflict.ID,
		conflict.SessionID,
		conflict.FactA,
		conflict.FactB,
		string(conflict.Type),
		string(conflict.Severity),
		string(conflict.Status),
		conflict.PreferDerived,
		nullString(string(conflict.Resolution)),
		nullString(conflict.ResolvedBy),
		nullString(conflict.WinnerID),
		conflict.DeadlineForced,
		nullString(conflict.Advisory),
		conflict.DetectedAt,
		nullTime(conflict.Deadline),
		nullTime(conflict.ResolvedAt),
	)
	if err != nil {
		return fmt.Errorf("saving conflict: %w", err)
	}
	return nil
}

// FindConflictByID retrieves a conflict by its ID. Returns nil if not found.
func (r *Repository) FindConflictByID(ctx context.Context, id string) (*entities.Conflict, error) {
	query := conflictSelect + ` WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)

	conflict, err := scanConflict(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return conflict, nil
}

// ListOpenConflicts returns a session's conflicts still awaiting resolution,
// oldest first.
func (r *Repository) ListOpenConflicts(ctx context.Context, sessionID string) ([]entities.Conflict, error) {
	query := conflictSelect + `
		WHERE session_id = ? AND status IN (?, ?)
		ORDER BY detected_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID,
		string(entities.ConflictOpen), string(entities.ConflictInReview))
	if err != nil {
		return nil, fmt.Errorf("querying conflicts: %w", err)
	}
	defer rows.Close()

	conflicts := make([]entities.Conflict, 0, 16)
	for rows.Next() {
		conflict, err := scanConflict(rows)
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, *conflict)
	}
	return conflicts, rows.Err()
}

// SaveTurn inserts or updates a turn.
func (r *Repository) SaveTurn(ctx context.Context, turn *entities.Turn) error {
	var action sql.NullString
	if turn.Action != nil {
		data, err := json.Marshal(turn.Action)
		if err != nil {
			return fmt.Errorf("marshaling action: %w", err)
		}
		action = sql.NullString{String: string(data), Valid: true}
	}

	query := `
		INSERT INTO turns (id, session_id, number, participant_id, action, status, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			action = excluded.action,
			status = excluded.status,
			ended_at = excluded.ended_at
	`
	_, err := r.db.ExecContext(ctx, query,
		turn.ID,
		turn.SessionID,
		turn.Number,
		turn.ParticipantID,
		action,
		string(turn.Status),
		turn.StartedAt,
		nullTime(turn.EndedAt),
	)
	if err != nil {
		return fmt.Errorf("saving turn: %w", err)
	}
	return nil
}

// LatestTurn returns the highest-numbered turn for a session, or nil.
func (r *Repository) LatestTurn(ctx context.Context, sessionID string) (*entities.Turn, error) {
	query := turnSelect + `
		WHERE session_id = ?
		ORDER BY number DESC
		LIMIT 1
	`
	row := r.db.QueryRowContext(ctx, query, sessionID)

	turn, err := scanTurn(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return turn, nil
}

// ListTurns returns a session's turns ordered by number descending.
func (r *Repository) ListTurns(ctx context.Context, sessionID string, limit int) ([]entities.Turn, error) {
	query := turnSelect + `
		WHERE session_id = ?
		ORDER BY number DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer rows.Close()

	turns := make([]entities.Turn, 0, limit)
	for rows.Next() {
		turn, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		turns = append(turns, *turn)
	}
	return turns, rows.Err()
}

// SaveSnapshot persists a snapshot. Snapshots are write-once; saving an
// existing ID fails.
func (r *Repository) SaveSnapshot(ctx context.Context, snap *entities.SessionSnapshot) error {
	query := `
		INSERT INTO snapshots (id, session_id, turn_number, state, checksum, type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		snap.ID,
		snap.SessionID,
		snap.TurnNumber,
		snap.State,
		snap.Checksum,
		string(snap.Type),
		snap.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	return nil
}

// FindSnapshotByID retrieves a snapshot by its ID. Returns nil if not found.
func (r *Repository) FindSnapshotByID(ctx context.Context, id string) (*entities.SessionSnapshot, error) {
	query := `
		SELECT id, session_id, turn_number, state, checksum, type, created_at
		FROM snapshots
		WHERE id = ?
	`
	row := r.db.QueryRowContext(ctx, query, id)

	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// LatestSnapshot returns the most recent snapshot for a session, or nil.
func (r *Repository) LatestSnapshot(ctx context.Context, sessionID string) (*entities.SessionSnapshot, error) {
	query := `
		SELECT id, session_id, turn_number, state, checksum, type, created_at
		FROM snapshots
		WHERE session_id = ?
		ORDER BY created_at DESC, turn_number DESC
		LIMIT 1
	`
	row := r.db.QueryRowContext(ctx, query, sessionID)

	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// LogAction logs an engine decision to the audit log.
func (r *Repository) LogAction(ctx context.Context, sessionID, action, refID string, details map[string]any) error {
	var detailsJSON sql.NullString
	if details != nil {
		data, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("marshaling details: %w", err)
		}
		detailsJSON = sql.NullString{String: string(data), Valid: true}
	}

	query := `INSERT INTO audit_log (session_id, action, ref_id, details) VALUES (?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, sessionID, action, nullString(refID), detailsJSON)
	if err != nil {
		return fmt.Errorf("logging action: %w", err)
	}
	return nil
}

// FindAuditLog finds audit log entries referencing a specific record.
func (r *Repository) FindAuditLog(ctx context.Context, refID string) ([]entities.AuditEntry, error) {
	query := `
		SELECT id, session_id, action, ref_id, details, created_at
		FROM audit_log
		WHERE ref_id = ?
		ORDER BY created_at DESC, id DESC
	`
	rows, err := r.db.QueryContext(ctx, query, refID)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	var entries []entities.AuditEntry
	for rows.Next() {
		var entry entities.AuditEntry
		var ref, details sql.NullString

		if err := rows.Scan(
			&entry.ID,
			&entry.SessionID,
			&entry.Action,
			&ref,
			&details,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}

		entry.RefID = ref.String

		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &entry.Details); err != nil {
				return nil, fmt.Errorf("unmarshaling details: %w", err)
			}
		}

		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// loadConfidenceHistory fills a fact's confidence history in chronological order.
func (r *Repository) loadConfidenceHistory(ctx context.Context, fact *entities.Fact) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT at, score, reason FROM confidence_history WHERE fact_id = ? ORDER BY id ASC`,
		fact.ID)
	if err != nil {
		return fmt.Errorf("querying confidence history: %w", err)
	}
	defer rows.Close()

	var history []entities.ConfidenceChange
	for rows.Next() {
		var change entities.ConfidenceChange
		if err := rows.Scan(&change.At, &change.Score, &change.Reason); err != nil {
			return fmt.Errorf("scanning confidence change: %w", err)
		}
		history = append(history, change)
	}
	fact.ConfidenceHistory = history
	return rows.Err()
}

const factSelect = `
	SELECT id, session_id, subject_id, object_id, property,
		value, previous_value, observed_at, valid_from, valid_until,
		confidence, verification, provenance, status, seq,
		turn_number, contradictions, supporting_facts, created_at, updated_at
	FROM facts
`

const conflictSelect = `
	SELECT id, session_id, fact_a, fact_b, type, severity, status,
		prefer_derived, resolution, resolved_by, winner_id,
		deadline_forced, advisory, detected_at, deadline, resolved_at
	FROM conflicts
`

const turnSelect = `
	SELECT id, session_id, number, participant_id, action, status, started_at, ended_at
	FROM turns
`

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanFact scans one fact row.
func scanFact(row scanner) (*entities.Fact, error) {
	var fact entities.Fact
	var value string
	var previousValue, contradictions, supporting sql.NullString
	var verification, provenance, status string
	var validUntil sql.NullTime
	var seq sql.NullInt64

	err := row.Scan(
		&fact.ID,
		&fact.SessionID,
		&fact.SubjectID,
		&fact.ObjectID,
		&fact.Property,
		&value,
		&previousValue,
		&fact.ObservedAt,
		&fact.Validity.From,
		&validUntil,
		&fact.Confidence,
		&verification,
		&provenance,
		&status,
		&seq,
		&fact.TurnNumber,
		&contradictions,
		&supporting,
		&fact.CreatedAt,
		&fact.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning fact: %w", err)
	}

	if err := json.Unmarshal([]byte(value), &fact.Value); err != nil {
		return nil, fmt.Errorf("unmarshaling value: %w", err)
	}
	if previousValue.Valid {
		var pv entities.Value
		if err := json.Unmarshal([]byte(previousValue.String), &pv); err != nil {
			return nil, fmt.Errorf("unmarshaling previous value: %w", err)
		}
		fact.PreviousValue = &pv
	}
	if err := json.Unmarshal([]byte(provenance), &fact.Provenance); err != nil {
		return nil, fmt.Errorf("unmarshaling provenance: %w", err)
	}
	if fact.Contradictions, err = unmarshalStrings(contradictions); err != nil {
		return nil, fmt.Errorf("unmarshaling contradictions: %w", err)
	}
	if fact.SupportingFacts, err = unmarshalStrings(supporting); err != nil {
		return nil, fmt.Errorf("unmarshaling supporting facts: %w", err)
	}

	fact.Verification = entities.VerificationMethod(verification)
	fact.Status = entities.FactStatus(status)
	if validUntil.Valid {
		fact.Validity.Until = validUntil.Time
	}
	if seq.Valid {
		fact.Seq = uint64(seq.Int64)
	}
	return &fact, nil
}

// collectFacts drains fact rows.
func collectFacts(rows *sql.Rows) ([]entities.Fact, error) {
	facts := make([]entities.Fact, 0, 16)
	for rows.Next() {
		fact, err := scanFact(rows)
		if err != nil {
			return nil, err
		}
		facts = append(facts, *fact)
	}
	return facts, rows.Err()
}

// scanConflict scans one conflict row.
func scanConflict(row scanner) (*entities.Conflict, error) {
	var conflict entities.Conflict
	var conflictType, severity, status string
	var resolution, resolvedBy, winnerID, advisory sql.NullString
	var deadline, resolvedAt sql.NullTime

	err := row.Scan(
		&conflict.ID,
		&conflict.SessionID,
		&conflict.FactA,
		&conflict.FactB,
		&conflictType,
		&severity,
		&status,
		&conflict.PreferDerived,
		&resolution,
		&resolvedBy,
		&winnerID,
		&conflict.DeadlineForced,
		&advisory,
		&conflict.DetectedAt,
		&deadline,
		&resolvedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning conflict: %w", err)
	}

	conflict.Type = entities.ConflictType(conflictType)
	conflict.Severity = entities.ConflictSeverity(severity)
	conflict.Status = entities.ConflictStatus(status)
	conflict.Resolution = entities.ResolutionMethod(resolution.String)
	conflict.ResolvedBy = resolvedBy.String
	conflict.WinnerID = winnerID.String
	conflict.Advisory = advisory.String
	if deadline.Valid {
		conflict.Deadline = deadline.Time
	}
	if resolvedAt.Valid {
		conflict.ResolvedAt = resolvedAt.Time
	}
	return &conflict, nil
}

// scanTurn scans one turn row.
func scanTurn(row scanner) (*entities.Turn, error) {
	var turn entities.Turn
	var action sql.NullString
	var status string
	var endedAt sql.NullTime

	err := row.Scan(
		&turn.ID,
		&turn.SessionID,
		&turn.Number,
		&turn.ParticipantID,
		&action,
		&status,
		&turn.StartedAt,
		&endedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning turn: %w", err)
	}

	if action.Valid && action.String != "" {
		var a entities.Action
		if err := json.Unmarshal([]byte(action.String), &a); err != nil {
			return nil, fmt.Errorf("unmarshaling action: %w", err)
		}
		turn.Action = &a
	}
	turn.Status = entities.TurnStatus(status)
	if endedAt.Valid {
		turn.EndedAt = endedAt.Time
	}
	return &turn, nil
}

// scanSnapshot scans one snapshot row.
func scanSnapshot(row scanner) (*entities.SessionSnapshot, error) {
	var snap entities.SessionSnapshot
	var snapType string

	err := row.Scan(
		&snap.ID,
		&snap.SessionID,
		&snap.TurnNumber,
		&snap.State,
		&snap.Checksum,
		&snapType,
		&snap.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning snapshot: %w", err)
	}

	snap.Type = entities.SnapshotType(snapType)
	return &snap, nil
}

func marshalStrings(s []string) (sql.NullString, error) {
	if len(s) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalStrings(ns sql.NullString) ([]string, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(ns.String), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func nullSeq(seq uint64) sql.NullInt64 {
	if seq == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(seq), Valid: true}
}

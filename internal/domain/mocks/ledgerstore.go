// Package mocks provides mock implementations for testing.
package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
)

// LedgerStore is an in-memory mock implementation of ports.LedgerStore. It
// assigns Seq on first accepted save the way the real store does, so replay
// tests exercise real application order.
type LedgerStore struct {
	mu sync.Mutex

	Facts      map[string]*entities.Fact
	Confidence map[string][]entities.ConfidenceChange
	Conflicts  map[string]*entities.Conflict
	Turns      map[string]*entities.Turn
	Snapshots  map[string]*entities.SessionSnapshot
	Audit      []entities.AuditEntry

	Err             error
	SaveFactErr     error
	SaveConflictErr error
	SaveTurnErr     error
	SaveSnapshotErr error
	// SaveSnapshotFailures fails that many SaveSnapshot calls (with
	// SaveSnapshotErr, or Err) before succeeding, for retry tests.
	SaveSnapshotFailures int

	// Call tracking
	SaveFactCallCount     int
	SaveConflictCallCount int
	SaveTurnCallCount     int
	SaveSnapshotCallCount int
	LogActionCallCount    int

	nextSeq uint64
}

// NewLedgerStore creates an empty mock store.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		Facts:      make(map[string]*entities.Fact),
		Confidence: make(map[string][]entities.ConfidenceChange),
		Conflicts:  make(map[string]*entities.Conflict),
		Turns:      make(map[string]*entities.Turn),
		Snapshots:  make(map[string]*entities.SessionSnapshot),
	}
}

// EnsureSchema is a no-op.
func (m *LedgerStore) EnsureSchema(ctx context.Context) error { return m.Err }

// Close is a no-op.
func (m *LedgerStore) Close() error { return nil }

// SaveFact stores a copy of the fact, assigning Seq on the first accepted save.
func (m *LedgerStore) SaveFact(ctx context.Context, fact *entities.Fact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveFactCallCount++
	if m.SaveFactErr != nil {
		return m.SaveFactErr
	}
	if m.Err != nil {
		return m.Err
	}
	if fact.Status == entities.FactAccepted && fact.Seq == 0 {
		m.nextSeq++
		fact.Seq = m.nextSeq
	}
	stored := *fact
	m.Facts[fact.ID] = &stored
	return nil
}

// FindFactByID retrieves a fact copy by id, nil if absent.
func (m *LedgerStore) FindFactByID(ctx context.Context, id string) (*entities.Fact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	fact, ok := m.Facts[id]
	if !ok {
		return nil, nil
	}
	found := *fact
	return &found, nil
}

// FindFactsByKey returns every fact for a state slot ordered by observation time.
func (m *LedgerStore) FindFactsByKey(ctx context.Context, sessionID string, key entities.Key, limit, offset int) ([]entities.Fact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var all []entities.Fact
	for _, fact := range m.Facts {
		if fact.SessionID == sessionID && fact.Key() == key {
			all = append(all, *fact)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].ObservedAt.Equal(all[j].ObservedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].ObservedAt.Before(all[j].ObservedAt)
	})
	return page(all, limit, offset), nil
}

// ListAcceptedFacts pages accepted facts in Seq order.
func (m *LedgerStore) ListAcceptedFacts(ctx context.Context, sessionID string, afterSeq uint64, limit int) ([]entities.Fact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var all []entities.Fact
	for _, fact := range m.Facts {
		if fact.SessionID == sessionID && fact.Status == entities.FactAccepted && fact.Seq > afterSeq {
			all = append(all, *fact)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Seq < all[j].Seq })
	return page(all, limit, 0), nil
}

// AppendConfidence records a confidence history entry.
func (m *LedgerStore) AppendConfidence(ctx context.Context, factID string, change entities.ConfidenceChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Confidence[factID] = append(m.Confidence[factID], change)
	return nil
}

// SaveConflict stores a copy of the conflict.
func (m *LedgerStore) SaveConflict(ctx context.Context, conflict *entities.Conflict) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveConflictCallCount++
	if m.SaveConflictErr != nil {
		return m.SaveConflictErr
	}
	if m.Err != nil {
		return m.Err
	}
	stored := *conflict
	m.Conflicts[conflict.ID] = &stored
	return nil
}

// FindConflictByID retrieves a conflict copy by id, nil if absent.
func (m *LedgerStore) FindConflictByID(ctx context.Context, id string) (*entities.Conflict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	conflict, ok := m.Conflicts[id]
	if !ok {
		return nil, nil
	}
	found := *conflict
	return &found, nil
}

// ListOpenConflicts returns conflicts in open or in_review state.
func (m *LedgerStore) ListOpenConflicts(ctx context.Context, sessionID string) ([]entities.Conflict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []entities.Conflict
	for _, conflict := range m.Conflicts {
		if conflict.SessionID == sessionID && !conflict.Terminal() {
			out = append(out, *conflict)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DetectedAt.Before(out[j].DetectedAt) })
	return out, nil
}

// SaveTurn stores a copy of the turn.
func (m *LedgerStore) SaveTurn(ctx context.Context, turn *entities.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveTurnCallCount++
	if m.SaveTurnErr != nil {
		return m.SaveTurnErr
	}
	if m.Err != nil {
		return m.Err
	}
	stored := *turn
	m.Turns[turn.ID] = &stored
	return nil
}

// LatestTurn returns the highest-numbered turn for a session, or nil.
func (m *LedgerStore) LatestTurn(ctx context.Context, sessionID string) (*entities.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var latest *entities.Turn
	for _, turn := range m.Turns {
		if turn.SessionID != sessionID {
			continue
		}
		if latest == nil || turn.Number > latest.Number {
			latest = turn
		}
	}
	if latest == nil {
		return nil, nil
	}
	found := *latest
	return &found, nil
}

// ListTurns returns a session's turns ordered by number descending.
func (m *LedgerStore) ListTurns(ctx context.Context, sessionID string, limit int) ([]entities.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []entities.Turn
	for _, turn := range m.Turns {
		if turn.SessionID == sessionID {
			out = append(out, *turn)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	return page(out, limit, 0), nil
}

// SaveSnapshot stores a copy of the snapshot, honoring SaveSnapshotFailures.
func (m *LedgerStore) SaveSnapshot(ctx context.Context, snap *entities.SessionSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveSnapshotCallCount++
	if m.SaveSnapshotFailures > 0 {
		m.SaveSnapshotFailures--
		if m.SaveSnapshotErr != nil {
			return m.SaveSnapshotErr
		}
		return m.Err
	}
	if m.Err != nil {
		return m.Err
	}
	stored := *snap
	m.Snapshots[snap.ID] = &stored
	return nil
}

// FindSnapshotByID retrieves a snapshot copy by id, nil if absent.
func (m *LedgerStore) FindSnapshotByID(ctx context.Context, id string) (*entities.SessionSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	snap, ok := m.Snapshots[id]
	if !ok {
		return nil, nil
	}
	found := *snap
	return &found, nil
}

// LatestSnapshot returns the most recent snapshot for a session, or nil.
func (m *LedgerStore) LatestSnapshot(ctx context.Context, sessionID string) (*entities.SessionSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var latest *entities.SessionSnapshot
	for _, snap := range m.Snapshots {
		if snap.SessionID != sessionID {
			continue
		}
		if latest == nil || snap.CreatedAt.After(latest.CreatedAt) {
			latest = snap
		}
	}
	if latest == nil {
		return nil, nil
	}
	found := *latest
	return &found, nil
}

// LogAction records an audit entry.
func (m *LedgerStore) LogAction(ctx context.Context, sessionID, action, refID string, details map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LogActionCallCount++
	if m.Err != nil {
		return m.Err
	}
	m.Audit = append(m.Audit, entities.AuditEntry{
		SessionID: sessionID,
		Action:    action,
		RefID:     refID,
		Details:   details,
	})
	return nil
}

// FindAuditLog returns audit entries referencing the given id.
func (m *LedgerStore) FindAuditLog(ctx context.Context, refID string) ([]entities.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []entities.AuditEntry
	for _, entry := range m.Audit {
		if entry.RefID == refID {
			out = append(out, entry)
		}
	}
	return out, nil
}

// AuditActions returns the recorded audit action names in order, for
// asserting on decision trails.
func (m *LedgerStore) AuditActions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Audit))
	for i, entry := range m.Audit {
		out[i] = entry.Action
	}
	return out
}

func page[T any](all []T, limit, offset int) []T {
	if offset >= len(all) {
		return nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}

package mocks

import (
	"context"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
)

// VectorDB is a mock implementation of ports.VectorDB.
type VectorDB struct {
	Facts []entities.Fact
	Err   error

	// Collection errors (separate from Err for fine-grained control)
	EnsureCollectionErr error
	DeleteCollectionErr error

	// Call tracking
	SaveCallCount             int
	SaveBatchCallCount        int
	SaveBatchLastFacts        []entities.Fact
	DeleteCallCount           int
	DeletedIDs                []string
	EnsureCollectionCallCount int
	DeleteCollectionCallCount int
}

// EnsureCollection creates the collection if it doesn't exist.
func (m *VectorDB) EnsureCollection(ctx context.Context, vectorSize uint64) error {
	m.EnsureCollectionCallCount++
	return m.EnsureCollectionErr
}

// DeleteCollection removes the collection and all its data.
func (m *VectorDB) DeleteCollection(ctx context.Context) error {
	m.DeleteCollectionCallCount++
	return m.DeleteCollectionErr
}

// Save stores a single fact.
func (m *VectorDB) Save(ctx context.Context, fact entities.Fact) error {
	m.SaveCallCount++
	if m.Err != nil {
		return m.Err
	}
	m.Facts = append(m.Facts, fact)
	return nil
}

// SaveBatch stores multiple facts.
func (m *VectorDB) SaveBatch(ctx context.Context, facts []entities.Fact) error {
	m.SaveBatchCallCount++
	m.SaveBatchLastFacts = facts
	if m.Err != nil {
		return m.Err
	}
	m.Facts = append(m.Facts, facts...)
	return nil
}

// Search returns the stored facts up to limit, ignoring the embedding.
func (m *VectorDB) Search(ctx context.Context, embedding []float32, limit int) ([]entities.Fact, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if limit > len(m.Facts) {
		return m.Facts, nil
	}
	return m.Facts[:limit], nil
}

// Delete removes a fact by id.
func (m *VectorDB) Delete(ctx context.Context, id string) error {
	m.DeleteCallCount++
	m.DeletedIDs = append(m.DeletedIDs, id)
	if m.Err != nil {
		return m.Err
	}
	for i := range m.Facts {
		if m.Facts[i].ID == id {
			m.Facts = append(m.Facts[:i], m.Facts[i+1:]...)
			break
		}
	}
	return nil
}

package ports

import (
	"context"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
)

// VectorDB indexes fact assertions for semantic similarity search. One
// collection holds one session's facts.
type VectorDB interface {
	// Save stores a fact with its embedding.
	Save(ctx context.Context, fact entities.Fact) error

	// SaveBatch stores multiple facts.
	SaveBatch(ctx context.Context, facts []entities.Fact) error

	// Search returns the facts most similar to the embedding.
	Search(ctx context.Context, embedding []float32, limit int) ([]entities.Fact, error)

	// Delete removes a fact from the index.
	Delete(ctx context.Context, id string) error
}

// CollectionManager handles vector collection lifecycle, kept separate from
// VectorDB so the data interface stays focused on CRUD.
type CollectionManager interface {
	// EnsureCollection creates the collection if it doesn't exist.
	EnsureCollection(ctx context.Context, vectorSize uint64) error

	// DeleteCollection removes the collection and all its data.
	DeleteCollection(ctx context.Context) error
}

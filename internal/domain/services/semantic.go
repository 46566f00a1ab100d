package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/ports"
)

// SemanticIndex embeds accepted facts and stores them in the vector
// database so world state can be queried by meaning, not just by key.
type SemanticIndex struct {
	vectorDB ports.VectorDB
	embedder ports.Embedder
}

func NewSemanticIndex(vectorDB ports.VectorDB, embedder ports.Embedder) *SemanticIndex {
	return &SemanticIndex{vectorDB: vectorDB, embedder: embedder}
}

// IndexFact embeds and stores a single accepted fact. Entity names from the
// projection make the embedded text readable prose instead of bare IDs.
func (s *SemanticIndex) IndexFact(ctx context.Context, proj *Projection, fact entities.Fact) error {
	text := s.factText(proj, fact)
	embedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embedding fact: %w", err)
	}
	fact.Embedding = embedding
	if err := s.vectorDB.Save(ctx, fact); err != nil {
		return fmt.Errorf("indexing fact: %w", err)
	}
	return nil
}

// IndexBatch embeds and stores multiple facts in one round trip.
func (s *SemanticIndex) IndexBatch(ctx context.Context, proj *Projection, facts []entities.Fact) error {
	if len(facts) == 0 {
		return nil
	}
	texts := make([]string, len(facts))
	for i, fact := range facts {
		texts[i] = s.factText(proj, fact)
	}
	embeddings, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding facts: %w", err)
	}
	if len(embeddings) != len(facts) {
		return fmt.Errorf("embedding facts: got %d embeddings for %d facts", len(embeddings), len(facts))
	}
	for i := range facts {
		facts[i].Embedding = embeddings[i]
	}
	if err := s.vectorDB.SaveBatch(ctx, facts); err != nil {
		return fmt.Errorf("indexing facts: %w", err)
	}
	return nil
}

// Search returns the facts most semantically similar to the query text.
func (s *SemanticIndex) Search(ctx context.Context, query string, limit int) ([]entities.Fact, error) {
	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	facts, err := s.vectorDB.Search(ctx, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("searching facts: %w", err)
	}
	return facts, nil
}

// Remove drops a fact from the index, used when a fact is retired.
func (s *SemanticIndex) Remove(ctx context.Context, id string) error {
	return s.vectorDB.Delete(ctx, id)
}

func (s *SemanticIndex) factText(proj *Projection, fact entities.Fact) string {
	var b strings.Builder
	b.WriteString(s.entityName(proj, fact.SubjectID))
	b.WriteString(" ")
	b.WriteString(strings.ReplaceAll(fact.Property, "_", " "))
	if fact.ObjectID != "" {
		b.WriteString(" ")
		b.WriteString(s.entityName(proj, fact.ObjectID))
	}
	if v := fact.Value.String(); v != "" {
		b.WriteString(": ")
		b.WriteString(v)
	}
	return b.String()
}

func (s *SemanticIndex) entityName(proj *Projection, id string) string {
	if proj != nil {
		if entity := proj.EntityByID(id); entity != nil && entity.Name != "" {
			return entity.Name
		}
	}
	return id
}

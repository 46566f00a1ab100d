// Package qdrant provides a VectorDB implementation using Qdrant.
package qdrant

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
	"github.com/Garblesnarff/infinite-realms-consistency/internal/infrastructure/config"
)

// Repository implements the VectorDB interface using Qdrant. One collection
// holds one session's indexed facts.
type Repository struct {
	client     pb.CollectionsClient
	points     pb.PointsClient
	collection string
	conn       *grpc.ClientConn
}

// NewRepository creates a new Qdrant repository bound to a collection.
func NewRepository(cfg config.QdrantConfig, collection string) (*Repository, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}

	return &Repository{
		client:     pb.NewCollectionsClient(conn),
		points:     pb.NewPointsClient(conn),
		collection: collection,
		conn:       conn,
	}, nil
}

// Close closes the gRPC connection.
func (r *Repository) Close() error {
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// EnsureCollection creates the collection if it doesn't exist.
func (r *Repository) EnsureCollection(ctx context.Context, vectorSize uint64) error {
	_, err := r.client.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collection,
	})
	if err == nil {
		return nil
	}

	_, err = r.client.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     vectorSize,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}

	return nil
}

// DeleteCollection removes the collection and all its data.
func (r *Repository) DeleteCollection(ctx context.Context) error {
	_, err := r.client.Delete(ctx, &pb.DeleteCollection{
		CollectionName: r.collection,
	})
	if err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	return nil
}

// Save stores a fact with its embedding.
func (r *Repository) Save(ctx context.Context, fact entities.Fact) error {
	return r.SaveBatch(ctx, []entities.Fact{fact})
}

// SaveBatch stores multiple facts.
func (r *Repository) SaveBatch(ctx context.Context, facts []entities.Fact) error {
	points := make([]*pb.PointStruct, 0, len(facts))

	for _, fact := range facts {
		pointID := fact.ID
		if pointID == "" {
			pointID = uuid.New().String()
		}

		value, err := json.Marshal(fact.Value)
		if err != nil {
			return fmt.Errorf("marshaling value: %w", err)
		}

		point := &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{
					Uuid: pointID,
				},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{
						Data: fact.Embedding,
					},
				},
			},
			Payload: map[string]*pb.Value{
				"session_id":  {Kind: &pb.Value_StringValue{StringValue: fact.SessionID}},
				"subject_id":  {Kind: &pb.Value_StringValue{StringValue: fact.SubjectID}},
				"object_id":   {Kind: &pb.Value_StringValue{StringValue: fact.ObjectID}},
				"property":    {Kind: &pb.Value_StringValue{StringValue: fact.Property}},
				"value":       {Kind: &pb.Value_StringValue{StringValue: string(value)}},
				"status":      {Kind: &pb.Value_StringValue{StringValue: string(fact.Status)}},
				"confidence":  {Kind: &pb.Value_DoubleValue{DoubleValue: fact.Confidence}},
				"turn_number": {Kind: &pb.Value_IntegerValue{IntegerValue: int64(fact.TurnNumber)}},
				"observed_at": {Kind: &pb.Value_StringValue{StringValue: fact.ObservedAt.Format(time.RFC3339)}},
			},
		}
		points = append(points, point)
	}

	_, err := r.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	return nil
}

// Search performs a semantic search and returns similar facts.
func (r *Repository) Search(ctx context.Context, embedding []float32, limit int) ([]entities.Fact, error) {
	resp, err := r.points.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collection,
		Vector:         embedding,
		Limit:          uint64(limit),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
		WithVectors: &pb.WithVectorsSelector{
			SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("searching points: %w", err)
	}

	facts := make([]entities.Fact, 0, len(resp.Result))
	for _, point := range resp.Result {
		id := ""
		if u := point.Id.GetUuid(); u != "" {
			id = u
		}
		var embedding []float32
		if vec := point.Vectors.GetVector(); vec != nil {
			embedding = vec.Data
		}
		fact, err := payloadToFact(id, point.Payload, embedding)
		if err != nil {
			return nil, err
		}
		facts = append(facts, fact)
	}
	return facts, nil
}

// Delete removes a fact by its ID.
func (r *Repository) Delete(ctx context.Context, id string) error {
	_, err := r.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{
					Ids: []*pb.PointId{
						{PointIdOptions: &pb.PointId_Uuid{Uuid: id}},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("deleting point: %w", err)
	}

	return nil
}

// Count returns the total number of indexed facts.
func (r *Repository) Count(ctx context.Context) (uint64, error) {
	resp, err := r.client.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collection,
	})
	if err != nil {
		return 0, fmt.Errorf("getting collection info: %w", err)
	}

	if resp.Result.PointsCount == nil {
		return 0, nil
	}

	return *resp.Result.PointsCount, nil
}

// payloadToFact converts a Qdrant payload back into a Fact entity.
func payloadToFact(id string, payload map[string]*pb.Value, embedding []float32) (entities.Fact, error) {
	fact := entities.Fact{
		ID:         id,
		SessionID:  getStringValue(payload, "session_id"),
		SubjectID:  getStringValue(payload, "subject_id"),
		ObjectID:   getStringValue(payload, "object_id"),
		Property:   getStringValue(payload, "property"),
		Status:     entities.FactStatus(getStringValue(payload, "status")),
		Confidence: getDoubleValue(payload, "confidence"),
		TurnNumber: uint64(getIntValue(payload, "turn_number")),
		Embedding:  embedding,
	}

	if raw := getStringValue(payload, "value"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &fact.Value); err != nil {
			return entities.Fact{}, fmt.Errorf("unmarshaling value: %w", err)
		}
	}
	if raw := getStringValue(payload, "observed_at"); raw != "" {
		observed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return entities.Fact{}, fmt.Errorf("parsing observed_at: %w", err)
		}
		fact.ObservedAt = observed
	}
	return fact, nil
}

// Helper functions for payload extraction.
func getStringValue(payload map[string]*pb.Value, key string) string {
	if v, ok := payload[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

func getIntValue(payload map[string]*pb.Value, key string) int64 {
	if v, ok := payload[key]; ok {
		return v.GetIntegerValue()
	}
	return 0
}

func getDoubleValue(payload map[string]*pb.Value, key string) float64 {
	if v, ok := payload[key]; ok {
		return v.GetDoubleValue()
	}
	return 0
}

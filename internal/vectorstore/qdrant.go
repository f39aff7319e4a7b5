package vectorstore

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/qdrant/go-client/qdrant"
)

// Payload field names are fixed by convention; ingestion writes them and
// search reads them back.
const (
	fieldDocumentID = "document_id"
	fieldTitle      = "title"
	fieldSourceType = "source_type"
	fieldChunkIndex = "chunk_index"
	fieldContent    = "content"
)

// Write-path timeouts. Search calls inherit the caller's deadline.
const (
	insertTimeout = 10 * time.Second
	deleteTimeout = 3 * time.Second
)

// QdrantIndex implements VectorIndex using Qdrant.
type QdrantIndex struct {
	client *qdrant.Client
}

// NewQdrantIndex creates a new Qdrant-backed vector index client.
// url should be in format "host:port" (e.g., "localhost:6334")
func NewQdrantIndex(ctx context.Context, url string) (*QdrantIndex, error) {
	host, portStr, err := net.SplitHostPort(url)
	if err != nil {
		// If no port specified, assume default
		host = url
		portStr = "6334"
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant url: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &QdrantIndex{client: client}, nil
}

// Close closes the Qdrant client connection.
func (s *QdrantIndex) Close() error {
	return s.client.Close()
}

// EnsureCollection creates the collection if it does not exist yet.
func (s *QdrantIndex) EnsureCollection(ctx context.Context, collection string, dimension int) error {
	exists, err := s.CollectionExists(ctx, collection)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return nil
}

// CollectionExists checks if a collection exists.
func (s *QdrantIndex) CollectionExists(ctx context.Context, collection string) (bool, error) {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return false, fmt.Errorf("failed to check collection existence: %w", err)
	}
	return exists, nil
}

// Upsert inserts or updates points in the collection.
func (s *QdrantIndex) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, insertTimeout)
	defer cancel()

	qdrantPoints := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		qdrantPoints[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: map[string]*qdrant.Value{
				fieldDocumentID: qdrant.NewValueString(p.DocumentID),
				fieldTitle:      qdrant.NewValueString(p.Title),
				fieldSourceType: qdrant.NewValueString(p.SourceType),
				fieldChunkIndex: qdrant.NewValueInt(int64(p.ChunkPosition)),
				fieldContent:    qdrant.NewValueString(p.Content),
			},
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         qdrantPoints,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	return nil
}

// Search performs nearest-neighbor search with a score floor.
func (s *QdrantIndex) Search(ctx context.Context, collection string, vector []float32, limit int, minScore float64) ([]Match, error) {
	query := &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if minScore > 0 {
		query.ScoreThreshold = qdrant.PtrOf(float32(minScore))
	}

	response, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	matches := make([]Match, 0, len(response))
	for _, point := range response {
		match := Match{Score: float64(point.Score)}

		if payload := point.Payload; payload != nil {
			if v, ok := payload[fieldDocumentID]; ok {
				match.DocumentID = v.GetStringValue()
			}
			if v, ok := payload[fieldTitle]; ok {
				match.Title = v.GetStringValue()
			}
			if v, ok := payload[fieldSourceType]; ok {
				match.SourceType = v.GetStringValue()
			}
			if v, ok := payload[fieldChunkIndex]; ok {
				match.ChunkPosition = int(v.GetIntegerValue())
			}
			if v, ok := payload[fieldContent]; ok {
				match.Content = v.GetStringValue()
			}
		}

		matches = append(matches, match)
	}

	return matches, nil
}

// DeleteDocument removes all points belonging to a document.
func (s *QdrantIndex) DeleteDocument(ctx context.Context, collection string, documentID string) error {
	ctx, cancel := context.WithTimeout(ctx, deleteTimeout)
	defer cancel()

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{
					Must: []*qdrant.Condition{
						qdrant.NewMatch(fieldDocumentID, documentID),
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete by document ID: %w", err)
	}

	return nil
}

// DeleteCollection removes a user's collection entirely.
func (s *QdrantIndex) DeleteCollection(ctx context.Context, collection string) error {
	ctx, cancel := context.WithTimeout(ctx, deleteTimeout)
	defer cancel()

	if err := s.client.DeleteCollection(ctx, collection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return nil
}

// Ensure QdrantIndex implements VectorIndex
var _ VectorIndex = (*QdrantIndex)(nil)

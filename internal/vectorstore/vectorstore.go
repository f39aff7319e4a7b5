// Package vectorstore provides the vector index abstraction used by the
// search engine. Each user owns one logical collection, named from the
// username and user ID.
package vectorstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

const (
	// CollectionNameSeparator joins username and user ID in collection names.
	CollectionNameSeparator = "_"

	// MaxCollectionNameLength caps generated collection names.
	MaxCollectionNameLength = 255
)

// Point is a single indexed chunk with its embedding and metadata.
type Point struct {
	ID            string
	DocumentID    string
	Title         string
	SourceType    string
	ChunkPosition int
	Content       string
	Vector        []float32
}

// Match is a single nearest-neighbor hit returned by the index.
type Match struct {
	DocumentID    string
	Title         string
	Content       string
	SourceType    string
	ChunkPosition int
	Score         float64
}

// VectorIndex defines the operations the search engine needs from an
// external vector index.
type VectorIndex interface {
	// EnsureCollection creates the collection if it does not exist yet.
	EnsureCollection(ctx context.Context, collection string, dimension int) error

	// CollectionExists checks whether a collection exists.
	CollectionExists(ctx context.Context, collection string) (bool, error)

	// Upsert inserts or updates points in the collection.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search performs nearest-neighbor search. minScore is a similarity
	// floor enforced by the index; results come back sorted by score
	// descending and are capped at limit.
	Search(ctx context.Context, collection string, vector []float32, limit int, minScore float64) ([]Match, error)

	// DeleteDocument removes all points belonging to a document.
	DeleteDocument(ctx context.Context, collection string, documentID string) error

	// DeleteCollection removes a user's collection entirely.
	DeleteCollection(ctx context.Context, collection string) error
}

// CollectionName builds the per-user collection name. Names longer than
// MaxCollectionNameLength are truncated so the index never rejects them.
func CollectionName(username string, userID uuid.UUID) string {
	name := fmt.Sprintf("%s%s%s", username, CollectionNameSeparator, userID)
	if len(name) > MaxCollectionNameLength {
		name = name[:MaxCollectionNameLength]
	}
	return name
}

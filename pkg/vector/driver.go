// Package vector provides vector storage for semantic search over
// recorded prompt pieces.
package vector

import "context"

// Document is one indexed prompt piece: its id, owning conversation,
// and embedding.
type Document struct {
	// ID is the piece id the embedding belongs to.
	ID string

	// ConversationID is the conversation the piece was recorded under.
	ConversationID string

	// Embedding is the vector representation of the piece's converted
	// value.
	Embedding []float32
}

// QueryResult is a stored document with its similarity to the query.
type QueryResult struct {
	Document

	// Score is the similarity score (higher = more similar).
	Score float32
}

// Driver handles storage and retrieval of piece embeddings.
type Driver interface {
	// Add stores documents with their embeddings. A document whose ID
	// already exists is updated in place.
	Add(ctx context.Context, docs []Document) error

	// Query finds the topK most similar documents to the given embedding.
	Query(ctx context.Context, embedding []float32, topK int) ([]QueryResult, error)

	// Get retrieves documents by their IDs, skipping unknown ids.
	Get(ctx context.Context, ids []string) ([]Document, error)

	// Delete removes documents by their IDs.
	Delete(ctx context.Context, ids []string) error

	// Close releases any resources held by the driver.
	Close() error
}

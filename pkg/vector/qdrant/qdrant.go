// Package qdrant provides a Qdrant-backed vector driver over the gRPC
// client.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"

	qdrantgo "github.com/qdrant/go-client/qdrant"

	"github.com/probeworks/gauntlet/pkg/logger"
	"github.com/probeworks/gauntlet/pkg/vector"
)

const (
	// DefaultCollection is the collection piece embeddings are stored in.
	DefaultCollection = "gauntlet"

	// DefaultHost is the default Qdrant host.
	DefaultHost = "localhost"

	// DefaultPort is the default Qdrant gRPC port.
	DefaultPort = 6334
)

// payloadConversationID keys the owning conversation in point payloads.
const payloadConversationID = "conversation_id"

// Driver implements vector.Driver on a Qdrant collection.
type Driver struct {
	client     *qdrantgo.Client
	collection string
	log        *slog.Logger
}

var _ vector.Driver = (*Driver)(nil)

// Config holds connection settings for the Qdrant driver.
type Config struct {
	// Host is the Qdrant host. Defaults to DefaultHost.
	Host string

	// Port is the Qdrant gRPC port. Defaults to DefaultPort.
	Port int

	// APIKey authenticates against a secured instance. Optional.
	APIKey string

	// UseTLS enables TLS on the gRPC connection.
	UseTLS bool

	// Collection is the collection name. Defaults to DefaultCollection.
	Collection string

	// Dimensions is the width of the embedding vectors. Must match the
	// embedder that produces them.
	Dimensions uint
}

// NewDriver connects to Qdrant and creates the collection when it does
// not exist yet.
func NewDriver(ctx context.Context, c Config, log *slog.Logger) (*Driver, error) {
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("qdrant embedding dimensions cannot be 0, must be configured")
	}
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Collection == "" {
		c.Collection = DefaultCollection
	}
	if log == nil {
		log = logger.Nop()
	}

	client, err := qdrantgo.NewClient(&qdrantgo.Config{
		Host:   c.Host,
		Port:   c.Port,
		APIKey: c.APIKey,
		UseTLS: c.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to qdrant: %v", vector.ErrConnection, err)
	}

	exists, err := client.CollectionExists(ctx, c.Collection)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: checking collection: %v", vector.ErrConnection, err)
	}
	if !exists {
		err := client.CreateCollection(ctx, &qdrantgo.CreateCollection{
			CollectionName: c.Collection,
			VectorsConfig: qdrantgo.NewVectorsConfig(&qdrantgo.VectorParams{
				Size:     uint64(c.Dimensions),
				Distance: qdrantgo.Distance_Cosine,
			}),
		})
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("creating collection %s: %w", c.Collection, err)
		}
	}

	log.Info("qdrant vector driver initialized",
		"host", c.Host,
		"port", c.Port,
		"collection", c.Collection,
		"dimensions", c.Dimensions,
	)

	return &Driver{
		client:     client,
		collection: c.Collection,
		log:        log,
	}, nil
}

// Add upserts documents with their embeddings. Qdrant point upserts
// replace existing points with the same id.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qdrantgo.PointStruct, 0, len(docs))
	for _, doc := range docs {
		points = append(points, &qdrantgo.PointStruct{
			Id:      qdrantgo.NewID(doc.ID),
			Vectors: qdrantgo.NewVectors(doc.Embedding...),
			Payload: qdrantgo.NewValueMap(map[string]any{
				payloadConversationID: doc.ConversationID,
			}),
		})
	}

	_, err := d.client.Upsert(ctx, &qdrantgo.UpsertPoints{
		CollectionName: d.collection,
		Wait:           qdrantgo.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	d.log.Debug("added documents to qdrant", "count", len(docs))

	return nil
}

// Query finds the topK most similar documents to the given embedding.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	points, err := d.client.Query(ctx, &qdrantgo.QueryPoints{
		CollectionName: d.collection,
		Query:          qdrantgo.NewQuery(embedding...),
		Limit:          qdrantgo.PtrOf(uint64(topK)),
		WithPayload:    qdrantgo.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying points: %w", err)
	}

	results := make([]vector.QueryResult, 0, len(points))
	for _, point := range points {
		results = append(results, vector.QueryResult{
			Document: vector.Document{
				ID:             point.GetId().GetUuid(),
				ConversationID: point.GetPayload()[payloadConversationID].GetStringValue(),
			},
			Score: point.GetScore(),
		})
	}

	d.log.Debug("queried qdrant", "results", len(results))

	return results, nil
}

// Get retrieves documents by their IDs, skipping unknown ids.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	pointIDs := make([]*qdrantgo.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrantgo.NewID(id))
	}

	points, err := d.client.Get(ctx, &qdrantgo.GetPoints{
		CollectionName: d.collection,
		Ids:            pointIDs,
		WithPayload:    qdrantgo.NewWithPayload(true),
		WithVectors:    qdrantgo.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("retrieving points: %w", err)
	}

	docs := make([]vector.Document, 0, len(points))
	for _, point := range points {
		docs = append(docs, vector.Document{
			ID:             point.GetId().GetUuid(),
			ConversationID: point.GetPayload()[payloadConversationID].GetStringValue(),
			Embedding:      point.GetVectors().GetVector().GetData(),
		})
	}

	return docs, nil
}

// Delete removes documents by their IDs.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qdrantgo.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrantgo.NewID(id))
	}

	_, err := d.client.Delete(ctx, &qdrantgo.DeletePoints{
		CollectionName: d.collection,
		Wait:           qdrantgo.PtrOf(true),
		Points:         qdrantgo.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("deleting points: %w", err)
	}

	d.log.Debug("deleted documents from qdrant", "count", len(ids))

	return nil
}

// Close releases the underlying gRPC connection.
func (d *Driver) Close() error {
	return d.client.Close()
}

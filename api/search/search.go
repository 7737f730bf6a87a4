// Package search provides shared types and logic for semantic search
// over recorded attack conversations. It is used by both the REST API
// endpoint and the MCP server tool.
package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/probeworks/gauntlet/pkg/embeddings"
	"github.com/probeworks/gauntlet/pkg/logger"
	"github.com/probeworks/gauntlet/pkg/memory"
	"github.com/probeworks/gauntlet/pkg/prompt"
	"github.com/probeworks/gauntlet/pkg/vector"
)

// SearchInput represents the input arguments for a search request.
type SearchInput struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// SearchResult represents a single search result.
type SearchResult struct {
	PieceID        string  `json:"piece_id"`
	ConversationID string  `json:"conversation_id"`
	Score          float32 `json:"score"`
	Role           string  `json:"role"`
	Preview        string  `json:"preview"`
	Turns          int     `json:"turns"`
	Conversation   []Turn  `json:"conversation"`
}

// Turn represents a single piece in a conversation.
type Turn struct {
	PieceID string `json:"piece_id"`
	Role    string `json:"role"`
	Text    string `json:"text"`
	Matched bool   `json:"matched,omitempty"`
}

// SearchOutput represents the output of a search operation.
type SearchOutput struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
	Count   int            `json:"count"`
}

// Searcher embeds queries, finds similar recorded pieces, and loads
// their conversations from memory. It also owns the indexing side:
// turning persisted pieces into vector store documents.
type Searcher struct {
	embedder embeddings.Embedder
	vec      vector.Driver
	mem      memory.Driver
	log      *slog.Logger
}

// NewSearcher creates a Searcher. A nil logger falls back to the nop
// logger.
func NewSearcher(embedder embeddings.Embedder, vec vector.Driver, mem memory.Driver, log *slog.Logger) *Searcher {
	if log == nil {
		log = logger.Nop()
	}
	return &Searcher{
		embedder: embedder,
		vec:      vec,
		mem:      mem,
		log:      log,
	}
}

// Search embeds the query text, queries the vector store for similar
// pieces, then loads the full conversation from memory for each hit.
// Hits whose conversation cannot be loaded are skipped.
func (s *Searcher) Search(ctx context.Context, query string, topK int) (*SearchOutput, error) {
	if topK <= 0 {
		topK = 5
	}

	s.log.Debug("search request", "query", query, "top_k", topK)

	queryEmbedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := s.vec.Query(ctx, queryEmbedding, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query vector store: %w", err)
	}

	searchResults := make([]SearchResult, 0, len(results))
	for _, result := range results {
		pieces, err := s.mem.PiecesByConversation(ctx, result.ConversationID)
		if err != nil || len(pieces) == 0 {
			s.log.Warn("failed to load conversation for result",
				"piece_id", result.ID,
				"conversation_id", result.ConversationID,
				"error", err,
			)
			continue
		}

		searchResults = append(searchResults, s.BuildResult(result, pieces))
	}

	return &SearchOutput{
		Query:   query,
		Results: searchResults,
		Count:   len(searchResults),
	}, nil
}

// BuildResult converts a vector query result and its conversation
// pieces into a SearchResult.
func (s *Searcher) BuildResult(result vector.QueryResult, pieces []*prompt.Piece) SearchResult {
	turns := make([]Turn, 0, len(pieces))
	preview := ""
	role := ""

	for _, piece := range pieces {
		matched := piece.ID.String() == result.ID
		turns = append(turns, Turn{
			PieceID: piece.ID.String(),
			Role:    string(piece.Role),
			Text:    piece.ConvertedValue,
			Matched: matched,
		})

		if matched {
			preview = piece.ConvertedValue
			role = string(piece.Role)
		}
	}

	return SearchResult{
		PieceID:        result.ID,
		ConversationID: result.ConversationID,
		Score:          result.Score,
		Role:           role,
		Preview:        preview,
		Turns:          len(turns),
		Conversation:   turns,
	}
}

// Index embeds the given pieces and stores them in the vector store.
// System pieces and pieces with no text are skipped; per-piece failures
// are logged and skipped so one bad piece never sinks the batch.
// Returns the number of pieces indexed.
func (s *Searcher) Index(ctx context.Context, pieces []*prompt.Piece) int {
	indexed := 0
	for _, piece := range pieces {
		if piece.Role == prompt.RoleSystem || piece.ConvertedValue == "" {
			continue
		}

		embedding, err := s.embedder.Embed(ctx, piece.ConvertedValue)
		if err != nil {
			s.log.Warn("failed to generate embedding",
				"piece_id", piece.ID,
				"error", err,
			)
			continue
		}

		doc := vector.Document{
			ID:             piece.ID.String(),
			ConversationID: piece.ConversationID,
			Embedding:      embedding,
		}

		if err := s.vec.Add(ctx, []vector.Document{doc}); err != nil {
			s.log.Warn("failed to store embedding",
				"piece_id", piece.ID,
				"error", err,
			)
			continue
		}

		indexed++
	}

	return indexed
}

// Reindex walks every recorded conversation and indexes its pieces.
// Returns the number of pieces indexed.
func (s *Searcher) Reindex(ctx context.Context) (int, error) {
	conversations, err := s.mem.Conversations(ctx)
	if err != nil {
		return 0, fmt.Errorf("list conversations: %w", err)
	}

	total := 0
	for _, conversation := range conversations {
		pieces, err := s.mem.PiecesByConversation(ctx, conversation.ConversationID)
		if err != nil {
			return total, fmt.Errorf("load conversation %s: %w", conversation.ConversationID, err)
		}
		total += s.Index(ctx, pieces)
	}

	return total, nil
}

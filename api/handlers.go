package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/probeworks/gauntlet/pkg/prompt"
)

// ErrorResponse is the JSON envelope for handler errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ConversationResponse contains one conversation's pieces and their scores.
type ConversationResponse struct {
	ConversationID string          `json:"conversation_id"`
	Pieces         []*prompt.Piece `json:"pieces"`
	Scores         []*prompt.Score `json:"scores"`
}

// PieceScoresResponse contains the scores attached to a single piece.
type PieceScoresResponse struct {
	PieceID string          `json:"piece_id"`
	Scores  []*prompt.Score `json:"scores"`
	Count   int             `json:"count"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleStats returns row counts for the memory backend.
func (s *Server) handleStats(c *fiber.Ctx) error {
	stats, err := s.mem.Stats(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to load stats"})
	}

	return c.JSON(stats)
}

// handleListConversations returns summaries of all recorded conversations.
func (s *Server) handleListConversations(c *fiber.Ctx) error {
	conversations, err := s.mem.Conversations(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list conversations"})
	}

	return c.JSON(map[string]any{
		"count":         len(conversations),
		"conversations": conversations,
	})
}

// handleGetConversation returns a conversation's pieces and scores.
func (s *Server) handleGetConversation(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "id parameter required"})
	}

	ctx := c.Context()

	pieces, err := s.mem.PiecesByConversation(ctx, id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to load conversation"})
	}
	if len(pieces) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "conversation not found"})
	}

	pieceIDs := make([]uuid.UUID, len(pieces))
	for i, piece := range pieces {
		pieceIDs[i] = piece.ID
	}

	scores, err := s.mem.ScoresByPieceIDs(ctx, pieceIDs)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to load scores"})
	}
	if scores == nil {
		scores = []*prompt.Score{}
	}

	return c.JSON(ConversationResponse{
		ConversationID: id,
		Pieces:         pieces,
		Scores:         scores,
	})
}

// handlePieceScores returns the scores attached to a single piece.
func (s *Server) handlePieceScores(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid piece id"})
	}

	scores, err := s.mem.ScoresByPieceIDs(c.Context(), []uuid.UUID{id})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to load scores"})
	}
	if scores == nil {
		scores = []*prompt.Score{}
	}

	return c.JSON(PieceScoresResponse{
		PieceID: id.String(),
		Scores:  scores,
		Count:   len(scores),
	})
}

// handleSearch handles GET /search requests.
// Query parameters:
//   - q (required): the search query text
//   - top_k (optional, default 5): number of results to return
func (s *Server) handleSearch(c *fiber.Ctx) error {
	if s.config.Searcher == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error: "search is not configured: vector driver and embedder are required",
		})
	}

	query := c.Query("q")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "q parameter is required",
		})
	}

	topK := 5
	if topKStr := c.Query("top_k"); topKStr != "" {
		parsed, err := strconv.Atoi(topKStr)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error: "top_k must be a positive integer",
			})
		}
		topK = parsed
	}

	output, err := s.config.Searcher.Search(c.Context(), query, topK)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error: err.Error(),
		})
	}

	return c.JSON(output)
}

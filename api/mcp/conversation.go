package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/probeworks/gauntlet/pkg/prompt"
)

var (
	conversationToolName    = "conversation"
	conversationDescription = "Fetch a recorded conversation from memory. Given a conversation id, returns every prompt piece in order together with the scores attached to them. Use this to inspect the full transcript behind a search result."
)

// ConversationInput represents the input arguments for the MCP conversation tool.
type ConversationInput struct {
	ConversationID string `json:"conversation_id" jsonschema:"the id of the recorded conversation to fetch"`
}

// ConversationOutput represents the structured output of a conversation fetch.
type ConversationOutput struct {
	ConversationID string          `json:"conversation_id"`
	Pieces         []*prompt.Piece `json:"pieces"`
	Scores         []*prompt.Score `json:"scores"`
}

// handleConversation processes a conversation fetch via MCP.
func (s *Server) handleConversation(ctx context.Context, _ *mcp.CallToolRequest, input ConversationInput) (*mcp.CallToolResult, ConversationOutput, error) {
	if input.ConversationID == "" {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: "conversation_id is required"},
			},
		}, ConversationOutput{}, nil
	}

	pieces, err := s.config.Memory.PiecesByConversation(ctx, input.ConversationID)
	if err != nil {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Conversation lookup failed: %v", err)},
			},
		}, ConversationOutput{}, nil
	}

	if pieces == nil {
		pieces = []*prompt.Piece{}
	}

	pieceIDs := make([]uuid.UUID, len(pieces))
	for i, piece := range pieces {
		pieceIDs[i] = piece.ID
	}

	scores, err := s.config.Memory.ScoresByPieceIDs(ctx, pieceIDs)
	if err != nil {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Score lookup failed: %v", err)},
			},
		}, ConversationOutput{}, nil
	}

	if scores == nil {
		scores = []*prompt.Score{}
	}

	output := ConversationOutput{
		ConversationID: input.ConversationID,
		Pieces:         pieces,
		Scores:         scores,
	}

	jsonBytes, err := json.Marshal(output)
	if err != nil {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Failed to serialize results: %v", err)},
			},
		}, ConversationOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}

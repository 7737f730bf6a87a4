// Package memory provides append-only persistence for conversation pieces
// and the scores attached to them.
//
// Memory is the system of record for every red-team run: each prompt sent
// and each response received lands here as an immutable piece, and judge
// verdicts land as scores referencing those pieces. Reads are filtered
// through [QueryOption] values so callers never build backend SQL.
//
// Drivers are pluggable via configuration:
//
//	[memory]
//	provider = "sqlite"   # or "postgres", "inmemory"
package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/probeworks/gauntlet/pkg/prompt"
)

// ConversationSummary describes one recorded conversation.
type ConversationSummary struct {
	ConversationID string    `json:"conversation_id"`
	Pieces         int       `json:"pieces"`
	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// Stats reports row counts for a memory backend.
type Stats struct {
	Pieces        int `json:"pieces"`
	Conversations int `json:"conversations"`
	Scores        int `json:"scores"`
}

// Driver is the capability interface conversation memory backends implement.
// Implementations must be safe for concurrent use. Writes are append-only:
// pieces and scores are never updated once inserted, and an insert is
// visible to every subsequent read in the same process.
type Driver interface {
	// AddPieces persists pieces in order within a single transaction.
	// Content digests are computed for pieces that do not carry them yet.
	AddPieces(ctx context.Context, pieces ...*prompt.Piece) error

	// AddScores persists scores, validating each value against its type.
	AddScores(ctx context.Context, scores ...*prompt.Score) error

	// PiecesByConversation returns the conversation's pieces in insertion order.
	PiecesByConversation(ctx context.Context, conversationID string) ([]*prompt.Piece, error)

	// PiecesByOrchestrator returns every piece stamped with the orchestrator
	// id, in insertion order.
	PiecesByOrchestrator(ctx context.Context, orchestratorID uuid.UUID) ([]*prompt.Piece, error)

	// PiecesByIDs returns the pieces with the given ids. Unknown ids are
	// skipped rather than reported.
	PiecesByIDs(ctx context.Context, ids []uuid.UUID) ([]*prompt.Piece, error)

	// QueryPieces returns pieces matching every given filter, in insertion order.
	QueryPieces(ctx context.Context, opts ...QueryOption) ([]*prompt.Piece, error)

	// ScoresByPieceIDs returns all scores attached to the given piece ids.
	ScoresByPieceIDs(ctx context.Context, pieceIDs []uuid.UUID) ([]*prompt.Score, error)

	// Conversations lists recorded conversations, most recent activity first.
	Conversations(ctx context.Context) ([]ConversationSummary, error)

	// Stats reports totals for the backend.
	Stats(ctx context.Context) (Stats, error)

	// Close releases the backend.
	Close() error
}

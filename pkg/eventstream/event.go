// Package eventstream defines transport-neutral events emitted when
// pieces and scores are persisted, plus the publisher capability that
// streams them to an external backend.
package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/probeworks/gauntlet/pkg/prompt"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypePiecePersisted is emitted after a conversation piece is persisted.
	EventTypePiecePersisted = "gauntlet.piece.persisted"

	// EventTypeScorePersisted is emitted after a judge score is persisted.
	EventTypeScorePersisted = "gauntlet.score.persisted"
)

// EventSource identifies the components that produced the payload.
type EventSource struct {
	Orchestrator string `json:"orchestrator,omitempty"`
	Target       string `json:"target,omitempty"`
	Scorer       string `json:"scorer,omitempty"`
}

// PiecePersistedEvent is a transport-neutral payload for a persisted
// conversation piece.
type PiecePersistedEvent struct {
	SchemaVersion int           `json:"schema_version"`
	EventType     string        `json:"event_type"`
	EventID       string        `json:"event_id"`
	EmittedAt     time.Time     `json:"emitted_at"`
	Source        EventSource   `json:"source"`
	Piece         *prompt.Piece `json:"piece"`
}

// ScorePersistedEvent is a transport-neutral payload for a persisted
// judge score.
type ScorePersistedEvent struct {
	SchemaVersion int           `json:"schema_version"`
	EventType     string        `json:"event_type"`
	EventID       string        `json:"event_id"`
	EmittedAt     time.Time     `json:"emitted_at"`
	Source        EventSource   `json:"source"`
	Score         *prompt.Score `json:"score"`
}

// NewPiecePersisted wraps a stored piece in a v1 event envelope.
func NewPiecePersisted(piece *prompt.Piece) *PiecePersistedEvent {
	return &PiecePersistedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypePiecePersisted,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source: EventSource{
			Orchestrator: piece.OrchestratorIdentifier.Name,
			Target:       piece.TargetIdentifier.Name,
		},
		Piece: piece,
	}
}

// NewScorePersisted wraps a stored score in a v1 event envelope.
func NewScorePersisted(score *prompt.Score) *ScorePersistedEvent {
	return &ScorePersistedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeScorePersisted,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source: EventSource{
			Scorer: score.ScorerIdentifier.Name,
		},
		Score: score,
	}
}

// Package inmemory provides a map-backed conversation memory driver for
// tests and ephemeral runs. Data is lost when the process exits.
package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/probeworks/gauntlet/pkg/memory"
	"github.com/probeworks/gauntlet/pkg/prompt"
)

// Driver implements memory.Driver using in-process slices guarded by a
// read-write mutex. Pieces and scores are copied on the way in and out so
// callers can never mutate stored state.
type Driver struct {
	mu     sync.RWMutex
	pieces []*prompt.Piece
	scores []*prompt.Score
}

var _ memory.Driver = (*Driver)(nil)

// NewDriver creates an empty in-memory driver.
func NewDriver() *Driver {
	return &Driver{}
}

// AddPieces persists pieces in order.
func (d *Driver) AddPieces(_ context.Context, pieces ...*prompt.Piece) error {
	if len(pieces) == 0 {
		return nil
	}

	// Validate the whole batch before touching state so a failure cannot
	// leave a partial write behind.
	for _, p := range pieces {
		if p == nil {
			return memory.ErrNilPiece
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, p := range pieces {
		p.EnsureHashes()
		d.pieces = append(d.pieces, clonePiece(p))
	}

	return nil
}

// AddScores persists scores in order.
func (d *Driver) AddScores(_ context.Context, scores ...*prompt.Score) error {
	if len(scores) == 0 {
		return nil
	}

	for _, s := range scores {
		if s == nil {
			return memory.ErrNilScore
		}
		if err := s.Validate(); err != nil {
			return err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, s := range scores {
		clone := *s
		d.scores = append(d.scores, &clone)
	}

	return nil
}

// PiecesByConversation returns the conversation's pieces in insertion order.
func (d *Driver) PiecesByConversation(ctx context.Context, conversationID string) ([]*prompt.Piece, error) {
	return d.QueryPieces(ctx, memory.WithConversation(conversationID))
}

// PiecesByOrchestrator returns pieces stamped with the orchestrator id.
func (d *Driver) PiecesByOrchestrator(ctx context.Context, orchestratorID uuid.UUID) ([]*prompt.Piece, error) {
	return d.QueryPieces(ctx, memory.WithOrchestrator(orchestratorID))
}

// PiecesByIDs returns the pieces with the given ids, skipping unknown ids.
func (d *Driver) PiecesByIDs(ctx context.Context, ids []uuid.UUID) ([]*prompt.Piece, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return d.QueryPieces(ctx, memory.WithPieceIDs(ids...))
}

// QueryPieces returns pieces matching every given filter, in insertion order.
func (d *Driver) QueryPieces(_ context.Context, opts ...memory.QueryOption) ([]*prompt.Piece, error) {
	f := memory.NewFilter(opts...)

	d.mu.RLock()
	defer d.mu.RUnlock()

	var result []*prompt.Piece
	for _, p := range d.pieces {
		if matches(f, p) {
			result = append(result, clonePiece(p))
		}
	}

	return result, nil
}

func matches(f memory.Filter, p *prompt.Piece) bool {
	if f.ConversationID != "" && p.ConversationID != f.ConversationID {
		return false
	}
	if f.OrchestratorID != uuid.Nil && p.OrchestratorIdentifier.ID != f.OrchestratorID {
		return false
	}
	if f.Role != "" && p.Role != f.Role {
		return false
	}
	if f.DataType != "" && p.ConvertedValueDataType != f.DataType {
		return false
	}
	if len(f.PieceIDs) > 0 {
		found := false
		for _, id := range f.PieceIDs {
			if p.ID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.SentAfter.IsZero() && p.Timestamp.Before(f.SentAfter) {
		return false
	}
	for key, value := range f.Labels {
		if p.Labels[key] != value {
			return false
		}
	}

	return true
}

// ScoresByPieceIDs returns all scores attached to the given piece ids.
func (d *Driver) ScoresByPieceIDs(_ context.Context, pieceIDs []uuid.UUID) ([]*prompt.Score, error) {
	if len(pieceIDs) == 0 {
		return nil, nil
	}

	wanted := make(map[uuid.UUID]bool, len(pieceIDs))
	for _, id := range pieceIDs {
		wanted[id] = true
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var result []*prompt.Score
	for _, s := range d.scores {
		if wanted[s.PieceID] {
			clone := *s
			result = append(result, &clone)
		}
	}

	return result, nil
}

// Conversations lists recorded conversations, most recent activity first.
func (d *Driver) Conversations(_ context.Context) ([]memory.ConversationSummary, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	index := make(map[string]int)
	var summaries []memory.ConversationSummary

	for _, p := range d.pieces {
		i, ok := index[p.ConversationID]
		if !ok {
			index[p.ConversationID] = len(summaries)
			summaries = append(summaries, memory.ConversationSummary{
				ConversationID: p.ConversationID,
				Pieces:         1,
				StartedAt:      p.Timestamp,
				LastActivityAt: p.Timestamp,
			})
			continue
		}

		summaries[i].Pieces++
		if p.Timestamp.Before(summaries[i].StartedAt) {
			summaries[i].StartedAt = p.Timestamp
		}
		if p.Timestamp.After(summaries[i].LastActivityAt) {
			summaries[i].LastActivityAt = p.Timestamp
		}
	}

	// Most recent activity first, matching the SQL-backed drivers.
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastActivityAt.After(summaries[j].LastActivityAt)
	})

	return summaries, nil
}

// Stats reports totals for the backend.
func (d *Driver) Stats(_ context.Context) (memory.Stats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	conversations := make(map[string]bool)
	for _, p := range d.pieces {
		conversations[p.ConversationID] = true
	}

	return memory.Stats{
		Pieces:        len(d.pieces),
		Conversations: len(conversations),
		Scores:        len(d.scores),
	}, nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}

// clonePiece deep-copies a piece so stored state never aliases caller state.
func clonePiece(p *prompt.Piece) *prompt.Piece {
	clone := *p

	if p.Labels != nil {
		clone.Labels = make(map[string]string, len(p.Labels))
		for k, v := range p.Labels {
			clone.Labels[k] = v
		}
	}
	if p.ConverterIdentifiers != nil {
		clone.ConverterIdentifiers = make([]prompt.Identifier, len(p.ConverterIdentifiers))
		copy(clone.ConverterIdentifiers, p.ConverterIdentifiers)
	}

	return &clone
}

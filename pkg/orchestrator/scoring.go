package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/probeworks/gauntlet/pkg/logger"
	"github.com/probeworks/gauntlet/pkg/memory"
	"github.com/probeworks/gauntlet/pkg/prompt"
	"github.com/probeworks/gauntlet/pkg/scorer"
	"github.com/probeworks/gauntlet/pkg/worker"
)

// ScoringConfig configures a Scoring orchestrator.
type ScoringConfig struct {
	// Memory is the driver holding the pieces to score.
	Memory memory.Driver

	// Scorer judges each piece.
	Scorer scorer.Scorer

	// BatchSize bounds concurrent judge calls. Defaults to
	// DefaultBatchSize.
	BatchSize int

	// ResponsesOnly restricts scoring to assistant pieces.
	ResponsesOnly bool

	// Logger defaults to the nop logger.
	Logger *slog.Logger
}

// Scoring batch-scores already-persisted pieces with a configured
// scorer.
type Scoring struct {
	mem           memory.Driver
	scorer        scorer.Scorer
	batchSize     int
	responsesOnly bool
	log           *slog.Logger
	id            prompt.Identifier
}

// NewScoring creates the orchestrator.
func NewScoring(cfg ScoringConfig) (*Scoring, error) {
	if cfg.Scorer == nil {
		return nil, errors.New("orchestrator: scorer required")
	}
	if cfg.Memory == nil {
		return nil, fmt.Errorf("orchestrator: %w", memory.ErrNotConfigured)
	}
	if cfg.BatchSize < 0 {
		return nil, fmt.Errorf("orchestrator: batch size must be at least 1, got %d", cfg.BatchSize)
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Scoring{
		mem:           cfg.Memory,
		scorer:        cfg.Scorer,
		batchSize:     cfg.BatchSize,
		responsesOnly: cfg.ResponsesOnly,
		log:           log,
		id:            prompt.NewIdentifier(prompt.KindOrchestrator, "scoring", "orchestrator"),
	}, nil
}

func (o *Scoring) Identifier() prompt.Identifier {
	return o.id
}

// ScorePiecesByID loads the given pieces and scores each one. Unknown
// ids are skipped the way the memory layer skips them.
func (o *Scoring) ScorePiecesByID(ctx context.Context, ids []uuid.UUID) ([]*prompt.Score, error) {
	pieces, err := o.mem.PiecesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: load pieces: %w", err)
	}
	return o.scorePieces(ctx, pieces)
}

// ScoreConversations scores every piece recorded under the given
// conversation ids.
func (o *Scoring) ScoreConversations(ctx context.Context, conversationIDs []string) ([]*prompt.Score, error) {
	var pieces []*prompt.Piece
	for _, conversationID := range conversationIDs {
		got, err := o.mem.PiecesByConversation(ctx, conversationID)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: load conversation %s: %w", conversationID, err)
		}
		pieces = append(pieces, got...)
	}
	return o.scorePieces(ctx, pieces)
}

// scorePieces fans the pieces out over a bounded worker pool, one
// judge round trip per piece. One piece's failure never blocks its
// siblings; all failures are joined into the returned error.
func (o *Scoring) scorePieces(ctx context.Context, pieces []*prompt.Piece) ([]*prompt.Score, error) {
	if o.responsesOnly {
		kept := make([]*prompt.Piece, 0, len(pieces))
		for _, piece := range pieces {
			if piece.Role == prompt.RoleAssistant {
				kept = append(kept, piece)
			}
		}
		pieces = kept
	}
	if len(pieces) == 0 {
		return nil, nil
	}

	pool, err := worker.NewPool(&worker.Config{
		NumWorkers: uint(o.batchSize),
		QueueSize:  uint(len(pieces)),
		Logger:     o.log,
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: start worker pool: %w", err)
	}
	defer pool.Close()

	type slot struct {
		scores []*prompt.Score
		err    error
	}
	slots := make([]slot, len(pieces))

	var wg sync.WaitGroup
	for i := range pieces {
		piece := pieces[i]
		s := &slots[i]

		wg.Add(1)
		submitErr := pool.Submit(ctx, func() {
			defer wg.Done()
			s.scores, s.err = o.scorer.Score(ctx, piece, "")
		})
		if submitErr != nil {
			wg.Done()
			s.err = fmt.Errorf("enqueue piece: %w", submitErr)
		}
	}
	wg.Wait()

	var (
		scores []*prompt.Score
		errs   []error
	)
	for i, s := range slots {
		if s.err != nil {
			errs = append(errs, fmt.Errorf("score piece %s: %w", pieces[i].ID, s.err))
			continue
		}
		scores = append(scores, s.scores...)
	}

	return scores, errors.Join(errs...)
}

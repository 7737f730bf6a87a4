// Package scorer defines LLM-assisted judges that rate persisted
// conversation pieces against a rubric and record the verdicts as
// scores.
package scorer

import (
	"context"
	"errors"
	"fmt"

	"github.com/probeworks/gauntlet/pkg/prompt"
	"github.com/probeworks/gauntlet/pkg/retry"
	"github.com/probeworks/gauntlet/pkg/target"
)

// ErrTaskNotSupported is returned by scorers that cannot condition
// their judgment on a task objective.
var ErrTaskNotSupported = errors.New("this scorer does not support tasks")

// ErrNilPiece is returned when a nil piece is handed to a scorer.
var ErrNilPiece = errors.New("nil piece")

// Scorer rates a single persisted piece against a rubric. Score runs
// the full judge round trip and persists exactly one score for the
// piece.
type Scorer interface {
	Score(ctx context.Context, piece *prompt.Piece, task string) ([]*prompt.Score, error)
	Validate(piece *prompt.Piece, task string) error
	Identifier() prompt.Identifier
}

// SendToJudge sends a value into an existing judge conversation and
// returns the reply text. An empty reply is marked retryable so the
// caller's retry loop can run the round trip again.
func SendToJudge(ctx context.Context, chat target.ChatTarget, value, conversationID string, labels map[string]string) (string, error) {
	resp, err := target.SendText(ctx, chat, value, conversationID, labels)
	if err != nil {
		return "", fmt.Errorf("send to judge: %w", err)
	}
	if resp == nil || resp.First() == nil {
		return "", retry.Retryable(errors.New("empty judge reply"))
	}
	return resp.First().ConvertedValue, nil
}

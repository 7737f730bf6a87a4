// Package console implements a prompt target that writes prompts to an
// io.Writer, for dry runs and tests.
package console

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/probeworks/gauntlet/pkg/memory"
	"github.com/probeworks/gauntlet/pkg/prompt"
	"github.com/probeworks/gauntlet/pkg/target"
)

// Target writes each request piece to the configured writer and
// persists it. It never produces a reply.
type Target struct {
	out io.Writer
	mem memory.Driver
	id  prompt.Identifier
}

var _ target.Target = (*Target)(nil)

// New creates the target. A nil writer defaults to os.Stdout.
func New(out io.Writer, mem memory.Driver) (*Target, error) {
	if mem == nil {
		return nil, fmt.Errorf("console: %w", memory.ErrNotConfigured)
	}
	if out == nil {
		out = os.Stdout
	}
	return &Target{
		out: out,
		mem: mem,
		id:  prompt.NewIdentifier(prompt.KindTarget, "console", "target/console"),
	}, nil
}

func (t *Target) Identifier() prompt.Identifier {
	return t.id
}

// Send writes the converted values to the writer and persists the
// request pieces. The returned group is nil: the console produces no
// reply.
func (t *Target) Send(ctx context.Context, group *prompt.Group) (*prompt.Group, error) {
	if err := group.Validate(); err != nil {
		return nil, err
	}

	history, err := t.mem.PiecesByConversation(ctx, group.ConversationID())
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", group.ConversationID(), err)
	}
	seq := target.NextSequence(history)

	for _, piece := range group.Pieces {
		piece.Sequence = seq
		piece.TargetIdentifier = t.id
		if _, err := fmt.Fprintf(t.out, "%s: %s\n", piece.Role, piece.ConvertedValue); err != nil {
			return nil, fmt.Errorf("write prompt: %w", err)
		}
	}
	if err := t.mem.AddPieces(ctx, group.Pieces...); err != nil {
		return nil, fmt.Errorf("persist request: %w", err)
	}

	return nil, nil
}

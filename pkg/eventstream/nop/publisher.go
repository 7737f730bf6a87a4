package nop

import (
	"context"

	"github.com/probeworks/gauntlet/pkg/eventstream"
)

// Publisher is a no-op eventstream publisher used for tests and disabled mode.
type Publisher struct{}

// NewPublisher creates a new no-op eventstream publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishPiece validates input and otherwise does nothing.
func (p *Publisher) PublishPiece(_ context.Context, event *eventstream.PiecePersistedEvent) error {
	if event == nil {
		return eventstream.ErrNilPieceEvent
	}

	return nil
}

// PublishScore validates input and otherwise does nothing.
func (p *Publisher) PublishScore(_ context.Context, event *eventstream.ScorePersistedEvent) error {
	if event == nil {
		return eventstream.ErrNilScoreEvent
	}

	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
